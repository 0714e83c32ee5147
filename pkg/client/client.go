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

// Package client provides an A2A client for talking to the analytics agent
// from the CLI or other programs.
package client

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2aclient"
	"github.com/a2aproject/a2a-go/a2aclient/agentcard"
)

const defaultPollInterval = 500 * time.Millisecond

// Client talks to a ClaimSight agent server over A2A.
type Client struct {
	client       *a2aclient.Client
	card         *a2a.AgentCard
	pollInterval time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithPollInterval sets how often Ask polls for task completion.
func WithPollInterval(interval time.Duration) Option {
	return func(c *Client) {
		c.pollInterval = interval
	}
}

// New resolves the agent card at the given base URL and connects to the
// agent it describes.
func New(ctx context.Context, url string, opts ...Option) (*Client, error) {
	card, err := agentcard.DefaultResolver.Resolve(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve agent card: %w", err)
	}

	a2aClient, err := a2aclient.NewFromCard(ctx, card)
	if err != nil {
		return nil, fmt.Errorf("failed to create a2a client: %w", err)
	}

	c := &Client{
		client:       a2aClient,
		card:         card,
		pollInterval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Card returns the resolved agent card.
func (c *Client) Card() *a2a.AgentCard {
	return c.card
}

// Ask sends the question and waits for the task to reach a terminal state,
// returning the agent's answer text.
func (c *Client) Ask(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", fmt.Errorf("question is required")
	}

	msg := a2a.NewMessage(a2a.MessageRoleUser, a2a.TextPart{Text: question})

	result, err := c.client.SendMessage(ctx, &a2a.MessageSendParams{Message: msg})
	if err != nil {
		return "", fmt.Errorf("failed to send message: %w", err)
	}

	taskInfo := result.TaskInfo()
	if taskInfo.TaskID == "" {
		return "", fmt.Errorf("unable to extract task from SendMessage result")
	}

	task, err := c.waitForTask(ctx, taskInfo.TaskID)
	if err != nil {
		return "", err
	}

	switch task.Status.State {
	case a2a.TaskStateCompleted:
		answer := answerText(task)
		if answer == "" {
			return "", fmt.Errorf("task completed without an answer")
		}
		return answer, nil

	case a2a.TaskStateFailed:
		if reason := statusText(task); reason != "" {
			return "", fmt.Errorf("task failed: %s", reason)
		}
		return "", fmt.Errorf("task failed")

	case a2a.TaskStateCanceled:
		return "", fmt.Errorf("task was canceled")

	default:
		return "", fmt.Errorf("task ended in unexpected state %q", task.Status.State)
	}
}

// GetTask fetches a task by ID.
func (c *Client) GetTask(ctx context.Context, taskID string) (*a2a.Task, error) {
	return c.client.GetTask(ctx, &a2a.TaskQueryParams{ID: a2a.TaskID(taskID)})
}

// CancelTask cancels a running task.
func (c *Client) CancelTask(ctx context.Context, taskID string) (*a2a.Task, error) {
	return c.client.CancelTask(ctx, &a2a.TaskIDParams{ID: a2a.TaskID(taskID)})
}

// Close releases the underlying transport.
func (c *Client) Close() error {
	return c.client.Destroy()
}

func (c *Client) waitForTask(ctx context.Context, taskID a2a.TaskID) (*a2a.Task, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		task, err := c.client.GetTask(ctx, &a2a.TaskQueryParams{ID: taskID})
		if err != nil {
			return nil, fmt.Errorf("failed to get task: %w", err)
		}

		if isTerminal(task.Status.State) {
			return task, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func isTerminal(state a2a.TaskState) bool {
	switch state {
	case a2a.TaskStateCompleted, a2a.TaskStateFailed, a2a.TaskStateCanceled, a2a.TaskStateRejected:
		return true
	}
	return false
}

// answerText extracts the final answer from the task artifacts. Tool call
// and tool result parts are skipped; only text reaches the user.
func answerText(task *a2a.Task) string {
	var b strings.Builder
	for _, artifact := range task.Artifacts {
		for _, part := range artifact.Parts {
			if tp, ok := part.(a2a.TextPart); ok {
				b.WriteString(tp.Text)
			}
		}
	}
	return strings.TrimSpace(b.String())
}

func statusText(task *a2a.Task) string {
	if task.Status.Message == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range task.Status.Message.Parts {
		if tp, ok := part.(a2a.TextPart); ok {
			b.WriteString(tp.Text)
		}
	}
	return strings.TrimSpace(b.String())
}
