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

// Package server exposes the insurance analytics agent over the A2A
// protocol (JSON-RPC over HTTP).
//
// Event translation follows these rules:
//   - New task: emit TaskStatusUpdateEvent with TaskStateSubmitted
//   - Before the agent run: emit TaskStatusUpdateEvent with TaskStateWorking
//   - For each agent event: emit TaskArtifactUpdateEvent with its parts
//   - After the last event: emit TaskArtifactUpdateEvent with LastChunk=true
//   - On error: emit TaskStatusUpdateEvent with TaskStateFailed
//   - On success: emit TaskStatusUpdateEvent with TaskStateCompleted
package server

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2asrv"
	"github.com/a2aproject/a2a-go/a2asrv/eventqueue"

	"github.com/kadirpekel/claimsight/pkg/agent"
)

// Executor implements a2asrv.AgentExecutor, bridging the analytics agent
// to A2A tasks.
type Executor struct {
	agent *agent.Agent
}

// NewExecutor creates an executor for the given agent.
func NewExecutor(a *agent.Agent) *Executor {
	return &Executor{agent: a}
}

// Execute implements a2asrv.AgentExecutor.
func (e *Executor) Execute(ctx context.Context, reqCtx *a2asrv.RequestContext, queue eventqueue.Queue) error {
	msg := reqCtx.Message
	if msg == nil {
		slog.Error("Execute: message not provided")
		return fmt.Errorf("message not provided")
	}

	// Emit TaskStateSubmitted for new tasks
	if reqCtx.StoredTask == nil {
		event := a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateSubmitted, nil)
		if err := queue.Write(ctx, event); err != nil {
			return fmt.Errorf("failed to write submitted event: %w", err)
		}
	}

	question := extractText(msg)
	if strings.TrimSpace(question) == "" {
		return queue.Write(ctx, toFailedStatusEvent(reqCtx, fmt.Errorf("message contains no question")))
	}

	workingEvent := a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateWorking, nil)
	if err := queue.Write(ctx, workingEvent); err != nil {
		return err
	}

	var responseID a2a.ArtifactID

	for event, err := range e.agent.Run(ctx, question) {
		if err != nil {
			failedEvent := toFailedStatusEvent(reqCtx, fmt.Errorf("agent run failed: %w", err))
			if writeErr := queue.Write(ctx, failedEvent); writeErr != nil {
				return fmt.Errorf("failed to write error event: %w (original: %w)", writeErr, err)
			}
			return nil
		}

		if event.Message == nil || len(event.Message.Parts) == 0 {
			continue
		}

		var artifactEvent *a2a.TaskArtifactUpdateEvent
		if responseID == "" {
			artifactEvent = a2a.NewArtifactEvent(reqCtx, event.Message.Parts...)
			responseID = artifactEvent.Artifact.ID
		} else {
			artifactEvent = a2a.NewArtifactUpdateEvent(reqCtx, responseID, event.Message.Parts...)
		}

		if err := queue.Write(ctx, artifactEvent); err != nil {
			return fmt.Errorf("failed to write event: %w", err)
		}
	}

	// Close the artifact stream, then complete the task.
	if responseID != "" {
		closing := a2a.NewArtifactUpdateEvent(reqCtx, responseID)
		closing.LastChunk = true
		if err := queue.Write(ctx, closing); err != nil {
			return fmt.Errorf("failed to write terminal event: %w", err)
		}
	}

	completed := a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateCompleted, nil)
	completed.Final = true
	return queue.Write(ctx, completed)
}

// Cancel implements a2asrv.AgentExecutor.
func (e *Executor) Cancel(ctx context.Context, reqCtx *a2asrv.RequestContext, queue eventqueue.Queue) error {
	event := a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateCanceled, nil)
	event.Final = true
	return queue.Write(ctx, event)
}

func extractText(msg *a2a.Message) string {
	var b strings.Builder
	for _, part := range msg.Parts {
		if tp, ok := part.(a2a.TextPart); ok {
			b.WriteString(tp.Text)
		}
	}
	return b.String()
}

func toFailedStatusEvent(reqCtx *a2asrv.RequestContext, cause error) *a2a.TaskStatusUpdateEvent {
	msg := a2a.NewMessageForTask(a2a.MessageRoleAgent, reqCtx, a2a.TextPart{Text: cause.Error()})
	ev := a2a.NewStatusUpdateEvent(reqCtx, a2a.TaskStateFailed, msg)
	ev.Final = true
	return ev
}

// Ensure Executor implements a2asrv.AgentExecutor
var _ a2asrv.AgentExecutor = (*Executor)(nil)
