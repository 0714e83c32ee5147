// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package agent

import (
	"context"
	"fmt"
	"iter"
	"testing"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/claimsight/pkg/model"
	"github.com/kadirpekel/claimsight/pkg/tool"
	"github.com/kadirpekel/claimsight/pkg/tool/functiontool"
)

// scriptedLLM replays a fixed sequence of responses, one per call.
type scriptedLLM struct {
	responses []*model.Response
	errs      []error
	calls     int
	requests  []*model.Request
}

func (s *scriptedLLM) Name() string { return "scripted" }
func (s *scriptedLLM) Close() error { return nil }

func (s *scriptedLLM) GenerateContent(ctx context.Context, req *model.Request, stream bool) iter.Seq2[*model.Response, error] {
	return func(yield func(*model.Response, error) bool) {
		s.requests = append(s.requests, req)
		i := s.calls
		s.calls++
		if i < len(s.errs) && s.errs[i] != nil {
			yield(nil, s.errs[i])
			return
		}
		if i >= len(s.responses) {
			yield(nil, fmt.Errorf("unexpected LLM call %d", i+1))
			return
		}
		yield(s.responses[i], nil)
	}
}

func textResponse(text string) *model.Response {
	return &model.Response{
		TurnComplete: true,
		FinishReason: model.FinishReasonStop,
		Content: &model.Content{
			Role:  a2a.MessageRoleAgent,
			Parts: []a2a.Part{a2a.TextPart{Text: text}},
		},
	}
}

func toolCallResponse(id, name string, args map[string]any) *model.Response {
	return &model.Response{
		TurnComplete: true,
		FinishReason: model.FinishReasonToolCalls,
		ToolCalls:    []tool.ToolCall{{ID: id, Name: name, Args: args}},
		Content: &model.Content{
			Role: a2a.MessageRoleAgent,
			Parts: []a2a.Part{a2a.DataPart{Data: map[string]any{
				"type":      "tool_use",
				"id":        id,
				"name":      name,
				"arguments": args,
			}}},
		},
	}
}

func echoTool(t *testing.T) tool.CallableTool {
	t.Helper()

	type Args struct {
		Question string `json:"question" jsonschema:"required"`
	}
	tl, err := functiontool.New(
		functiontool.Config{Name: "insurance_analytics", Description: "Query insurance data"},
		func(ctx context.Context, args Args) (map[string]any, error) {
			return map[string]any{"result": "| n |\n| --- |\n| 1000 |"}, nil
		},
	)
	require.NoError(t, err)
	return tl
}

func collectEvents(t *testing.T, a *Agent, question string) ([]*Event, error) {
	t.Helper()

	var events []*Event
	for event, err := range a.Run(context.Background(), question) {
		if err != nil {
			return events, err
		}
		events = append(events, event)
	}
	return events, nil
}

func TestRun_DirectAnswer(t *testing.T) {
	llm := &scriptedLLM{responses: []*model.Response{textResponse("Hello!")}}

	a, err := New(Config{LLM: llm})
	require.NoError(t, err)

	events, err := collectEvents(t, a, "hi")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.True(t, events[0].Final)
	assert.Equal(t, "Hello!", events[0].Text())

	require.Len(t, llm.requests, 1)
	assert.Equal(t, DefaultSystemInstruction, llm.requests[0].SystemInstruction)
	require.Len(t, llm.requests[0].Tools, 0)
}

func TestRun_ToolCallThenAnswer(t *testing.T) {
	llm := &scriptedLLM{responses: []*model.Response{
		toolCallResponse("call_1", "insurance_analytics", map[string]any{"question": "how many customers"}),
		textResponse("There are 1000 customers."),
	}}

	a, err := New(Config{LLM: llm, Tools: []tool.CallableTool{echoTool(t)}})
	require.NoError(t, err)

	events, err := collectEvents(t, a, "How many customers are there?")
	require.NoError(t, err)
	require.Len(t, events, 3)

	// tool call, tool result, final answer
	assert.False(t, events[0].Final)
	assert.False(t, events[1].Final)
	assert.True(t, events[2].Final)
	assert.Equal(t, "There are 1000 customers.", events[2].Text())

	dp, ok := events[1].Message.Parts[0].(a2a.DataPart)
	require.True(t, ok)
	assert.Equal(t, "tool_result", dp.Data["type"])
	assert.Equal(t, "call_1", dp.Data["tool_call_id"])
	assert.Equal(t, false, dp.Data["is_error"])
	assert.Contains(t, dp.Data["content"], "1000")

	// The second model call must see the full exchange.
	require.Len(t, llm.requests, 2)
	assert.Len(t, llm.requests[1].Messages, 3)
}

func TestRun_ToolErrorBecomesResult(t *testing.T) {
	type Args struct {
		Question string `json:"question" jsonschema:"required"`
	}
	failing, err := functiontool.New(
		functiontool.Config{Name: "insurance_analytics", Description: "Query insurance data"},
		func(ctx context.Context, args Args) (map[string]any, error) {
			return nil, fmt.Errorf("query execution failed: no such table")
		},
	)
	require.NoError(t, err)

	llm := &scriptedLLM{responses: []*model.Response{
		toolCallResponse("call_1", "insurance_analytics", map[string]any{"question": "x"}),
		textResponse("The query failed because the table does not exist."),
	}}

	a, err := New(Config{LLM: llm, Tools: []tool.CallableTool{failing}})
	require.NoError(t, err)

	events, err := collectEvents(t, a, "x")
	require.NoError(t, err)
	require.Len(t, events, 3)

	dp := events[1].Message.Parts[0].(a2a.DataPart)
	assert.Equal(t, true, dp.Data["is_error"])
	assert.Contains(t, dp.Data["content"], "no such table")
}

func TestRun_UnknownTool(t *testing.T) {
	llm := &scriptedLLM{responses: []*model.Response{
		toolCallResponse("call_1", "nonexistent", nil),
		textResponse("I cannot run that tool."),
	}}

	a, err := New(Config{LLM: llm})
	require.NoError(t, err)

	events, err := collectEvents(t, a, "x")
	require.NoError(t, err)

	dp := events[1].Message.Parts[0].(a2a.DataPart)
	assert.Equal(t, true, dp.Data["is_error"])
	assert.Contains(t, dp.Data["content"], "unknown tool")
}

func TestRun_IterationLimit(t *testing.T) {
	call := toolCallResponse("call_1", "insurance_analytics", map[string]any{"question": "x"})
	llm := &scriptedLLM{responses: []*model.Response{call, call, call}}

	a, err := New(Config{LLM: llm, Tools: []tool.CallableTool{echoTool(t)}, MaxIterations: 3})
	require.NoError(t, err)

	_, err = collectEvents(t, a, "x")
	require.ErrorIs(t, err, ErrMaxIterations)
	assert.Equal(t, 3, llm.calls)
}

func TestRun_EmptyQuestion(t *testing.T) {
	llm := &scriptedLLM{}

	a, err := New(Config{LLM: llm})
	require.NoError(t, err)

	_, err = collectEvents(t, a, "   ")
	require.Error(t, err)
	assert.Zero(t, llm.calls, "empty questions must not reach the model")
}

func TestRun_LLMError(t *testing.T) {
	llm := &scriptedLLM{errs: []error{fmt.Errorf("connection refused")}}

	a, err := New(Config{LLM: llm})
	require.NoError(t, err)

	_, err = collectEvents(t, a, "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestAnswer(t *testing.T) {
	llm := &scriptedLLM{responses: []*model.Response{
		toolCallResponse("call_1", "insurance_analytics", map[string]any{"question": "count"}),
		textResponse("There are 1000 customers."),
	}}

	a, err := New(Config{LLM: llm, Tools: []tool.CallableTool{echoTool(t)}})
	require.NoError(t, err)

	answer, err := a.Answer(context.Background(), "How many customers?")
	require.NoError(t, err)
	assert.Equal(t, "There are 1000 customers.", answer)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)

	_, err = New(Config{
		LLM:   &scriptedLLM{},
		Tools: []tool.CallableTool{echoTool(t), echoTool(t)},
	})
	assert.Error(t, err, "duplicate tool names must be rejected")
}
