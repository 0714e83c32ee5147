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

// Package agent implements the insurance analytics agent.
//
// The agent runs a bounded tool-calling loop: it sends the conversation to
// the LLM, executes any requested tool calls, feeds the results back and
// repeats until the model produces a final text answer or the iteration
// limit is hit.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"time"

	"github.com/a2aproject/a2a-go/a2a"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kadirpekel/claimsight/pkg/model"
	"github.com/kadirpekel/claimsight/pkg/observability"
	"github.com/kadirpekel/claimsight/pkg/tool"
)

// DefaultMaxIterations bounds the reasoning loop.
const DefaultMaxIterations = 3

// ErrMaxIterations is returned when the loop limit is exhausted before the
// model produces a final answer.
var ErrMaxIterations = fmt.Errorf("reasoning loop safety limit exceeded")

// DefaultSystemInstruction is the agent persona.
const DefaultSystemInstruction = `You are an insurance data analyst assistant for ClaimSight.

You answer questions about insurance customers, policies and claims. When a
question requires data, call the insurance_analytics tool with the user's
question; it queries the insurance database and returns a table of results.

Guidelines:
- Always use the insurance_analytics tool for data questions, never guess numbers
- Summarize tool results in clear, plain language
- Include the relevant figures from the results in your answer
- If a tool call fails, explain what went wrong instead of inventing data`

// Event is a single step of an agent run.
type Event struct {
	// Message carries the step content: model text, tool calls or tool
	// results, using the a2a part conventions.
	Message *a2a.Message

	// Final marks the concluding answer of the run.
	Final bool
}

// Text returns the concatenated text parts of the event message.
func (e *Event) Text() string {
	if e == nil || e.Message == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range e.Message.Parts {
		if tp, ok := part.(a2a.TextPart); ok {
			b.WriteString(tp.Text)
		}
	}
	return b.String()
}

// Config configures an Agent.
type Config struct {
	// LLM is the language model backend. Required.
	LLM model.LLM

	// Tools available to the model.
	Tools []tool.CallableTool

	// MaxIterations caps the reasoning loop (default 3).
	MaxIterations int

	// SystemInstruction overrides the default persona.
	SystemInstruction string
}

// Agent is the insurance analytics agent.
type Agent struct {
	llm           model.LLM
	tools         map[string]tool.CallableTool
	defs          []tool.Definition
	maxIterations int
	instruction   string
	tracer        trace.Tracer
}

// New creates an agent from the given config.
func New(cfg Config) (*Agent, error) {
	if cfg.LLM == nil {
		return nil, fmt.Errorf("llm is required")
	}

	maxIterations := cfg.MaxIterations
	if maxIterations == 0 {
		maxIterations = DefaultMaxIterations
	}

	instruction := cfg.SystemInstruction
	if instruction == "" {
		instruction = DefaultSystemInstruction
	}

	tools := make(map[string]tool.CallableTool, len(cfg.Tools))
	defs := make([]tool.Definition, 0, len(cfg.Tools))
	for _, t := range cfg.Tools {
		if _, exists := tools[t.Name()]; exists {
			return nil, fmt.Errorf("duplicate tool name: %s", t.Name())
		}
		tools[t.Name()] = t
		defs = append(defs, tool.ToDefinition(t))
	}

	return &Agent{
		llm:           cfg.LLM,
		tools:         tools,
		defs:          defs,
		maxIterations: maxIterations,
		instruction:   instruction,
		tracer:        observability.GetTracer("claimsight.agent"),
	}, nil
}

// Run answers the question, yielding one Event per reasoning step. The last
// yielded event has Final set. The iterator stops on the first error.
func (a *Agent) Run(ctx context.Context, question string) iter.Seq2[*Event, error] {
	return func(yield func(*Event, error) bool) {
		question = strings.TrimSpace(question)
		if question == "" {
			yield(nil, fmt.Errorf("question is required"))
			return
		}

		ctx, span := a.tracer.Start(ctx, "agent.run",
			trace.WithAttributes(attribute.String("question", question)))
		defer span.End()

		start := time.Now()
		totalTokens := 0
		var runErr error
		defer func() {
			if m := observability.GetGlobalMetrics(); m != nil {
				m.RecordAgentCall(ctx, time.Since(start), totalTokens, runErr)
			}
		}()

		messages := []*a2a.Message{
			a2a.NewMessage(a2a.MessageRoleUser, a2a.TextPart{Text: question}),
		}

		for iteration := 0; iteration < a.maxIterations; iteration++ {
			resp, err := a.callModel(ctx, messages)
			if err != nil {
				runErr = err
				yield(nil, err)
				return
			}
			if resp.Usage != nil {
				totalTokens += resp.Usage.TotalTokens
			}

			msg := resp.ToMessage()
			if msg == nil {
				runErr = fmt.Errorf("model returned empty response")
				yield(nil, runErr)
				return
			}

			if !resp.HasToolCalls() {
				yield(&Event{Message: msg, Final: true}, nil)
				return
			}

			if !yield(&Event{Message: msg}, nil) {
				return
			}
			messages = append(messages, msg)

			resultMsg := a.executeToolCalls(ctx, resp.ToolCalls)
			if !yield(&Event{Message: resultMsg}, nil) {
				return
			}
			messages = append(messages, resultMsg)
		}

		slog.Warn("Agent hit iteration limit", "max_iterations", a.maxIterations)
		runErr = ErrMaxIterations
		yield(nil, ErrMaxIterations)
	}
}

// Answer runs the agent and returns the final answer text.
func (a *Agent) Answer(ctx context.Context, question string) (string, error) {
	for event, err := range a.Run(ctx, question) {
		if err != nil {
			return "", err
		}
		if event.Final {
			return event.Text(), nil
		}
	}
	return "", fmt.Errorf("agent produced no final answer")
}

func (a *Agent) callModel(ctx context.Context, messages []*a2a.Message) (*model.Response, error) {
	ctx, span := a.tracer.Start(ctx, "agent.llm_call",
		trace.WithAttributes(attribute.String("model", a.llm.Name())))
	defer span.End()

	start := time.Now()

	var last *model.Response
	for resp, err := range a.llm.GenerateContent(ctx, &model.Request{
		Messages:          messages,
		Tools:             a.defs,
		SystemInstruction: a.instruction,
	}, false) {
		if err != nil {
			a.recordLLMCall(ctx, start, nil, err)
			return nil, fmt.Errorf("LLM call failed: %w", err)
		}
		last = resp
	}

	if last == nil {
		err := fmt.Errorf("LLM yielded no response")
		a.recordLLMCall(ctx, start, nil, err)
		return nil, err
	}

	a.recordLLMCall(ctx, start, last.Usage, nil)
	return last, nil
}

func (a *Agent) recordLLMCall(ctx context.Context, start time.Time, usage *model.Usage, err error) {
	m := observability.GetGlobalMetrics()
	if m == nil {
		return
	}
	var input, output int
	if usage != nil {
		input = usage.PromptTokens
		output = usage.CompletionTokens
	}
	m.RecordLLMCall(ctx, a.llm.Name(), time.Since(start), input, output, err)
}

// executeToolCalls runs the requested tools and merges the results into a
// single user-role message of tool_result parts. Tool failures become
// is_error results so the model can react instead of the run aborting.
func (a *Agent) executeToolCalls(ctx context.Context, calls []tool.ToolCall) *a2a.Message {
	parts := make([]a2a.Part, 0, len(calls))

	for _, tc := range calls {
		content, isError := a.executeToolCall(ctx, tc)
		parts = append(parts, a2a.DataPart{
			Data: map[string]any{
				"type":         "tool_result",
				"tool_call_id": tc.ID,
				"tool_name":    tc.Name,
				"content":      content,
				"is_error":     isError,
			},
		})
	}

	return a2a.NewMessage(a2a.MessageRoleUser, parts...)
}

func (a *Agent) executeToolCall(ctx context.Context, tc tool.ToolCall) (content string, isError bool) {
	ctx, span := a.tracer.Start(ctx, "agent.tool_call",
		trace.WithAttributes(attribute.String("tool", tc.Name)))
	defer span.End()

	start := time.Now()

	t, ok := a.tools[tc.Name]
	if !ok {
		err := fmt.Errorf("unknown tool: %s", tc.Name)
		if m := observability.GetGlobalMetrics(); m != nil {
			m.RecordToolExecution(ctx, tc.Name, time.Since(start), err)
		}
		return err.Error(), true
	}

	result, err := t.Call(ctx, tc.Args)
	if m := observability.GetGlobalMetrics(); m != nil {
		m.RecordToolExecution(ctx, tc.Name, time.Since(start), err)
	}
	if err != nil {
		slog.Warn("Tool execution failed", "tool", tc.Name, "error", err)
		return err.Error(), true
	}

	return formatToolResult(result), false
}

func formatToolResult(result map[string]any) string {
	if len(result) == 0 {
		return ""
	}

	// Single-value results read better unwrapped.
	if v, ok := result["result"]; ok && len(result) == 1 {
		if s, isStr := v.(string); isStr {
			return s
		}
	}

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Sprintf("%v", result)
	}
	return string(data)
}
