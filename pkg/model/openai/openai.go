// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package openai provides an Azure OpenAI LLM implementation backed by the
// chat completions API.
//
// Requests are addressed per deployment:
//
//	{endpoint}/openai/deployments/{deployment}/chat/completions?api-version={version}
//
// Tool calls and tool results travel through the conversation as a2a
// DataParts with type markers "tool_use" and "tool_result".
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/google/uuid"

	"github.com/kadirpekel/claimsight/pkg/httpclient"
	"github.com/kadirpekel/claimsight/pkg/model"
	"github.com/kadirpekel/claimsight/pkg/tool"
)

const (
	// DefaultAPIVersion is used when the config carries none.
	DefaultAPIVersion = "2024-02-01"

	// DefaultTemperature matches the rest of the stack's sampling default.
	DefaultTemperature = 0.7

	defaultMaxTokens = 4096
	defaultTimeout   = 120 * time.Second
)

// Config configures the Azure OpenAI client.
type Config struct {
	// APIKey authenticates against the Azure OpenAI resource.
	APIKey string

	// Endpoint is the resource base URL, e.g. https://myresource.openai.azure.com.
	Endpoint string

	// Deployment is the model deployment name.
	Deployment string

	// APIVersion selects the REST API version (default 2024-02-01).
	APIVersion string

	MaxTokens   int
	Temperature *float64
	Timeout     time.Duration
	MaxRetries  int
}

// Client is an Azure OpenAI chat completions client implementing model.LLM.
type Client struct {
	httpClient  *httpclient.Client
	apiKey      string
	requestURL  string
	deployment  string
	maxTokens   int
	temperature float64
}

// New creates a new Azure OpenAI client.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if cfg.Deployment == "" {
		return nil, fmt.Errorf("deployment name is required")
	}

	apiVersion := cfg.APIVersion
	if apiVersion == "" {
		apiVersion = DefaultAPIVersion
	}

	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	temperature := DefaultTemperature
	if cfg.Temperature != nil {
		temperature = *cfg.Temperature
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 5
	}

	requestURL := fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		strings.TrimSuffix(cfg.Endpoint, "/"),
		url.PathEscape(cfg.Deployment),
		url.QueryEscape(apiVersion))

	return &Client{
		httpClient: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{Timeout: timeout}),
			httpclient.WithMaxRetries(maxRetries),
			httpclient.WithHeaderParser(httpclient.ParseOpenAIHeaders),
		),
		apiKey:      cfg.APIKey,
		requestURL:  requestURL,
		deployment:  cfg.Deployment,
		maxTokens:   maxTokens,
		temperature: temperature,
	}, nil
}

// Name returns the deployment name.
func (c *Client) Name() string {
	return c.deployment
}

// GenerateContent produces a response for the given request.
// Streaming is not supported; stream=true yields the same single aggregated
// response as stream=false.
func (c *Client) GenerateContent(ctx context.Context, req *model.Request, stream bool) iter.Seq2[*model.Response, error] {
	return func(yield func(*model.Response, error) bool) {
		resp, err := c.generate(ctx, req)
		yield(resp, err)
	}
}

// Close releases resources.
func (c *Client) Close() error {
	return nil
}

func (c *Client) generate(ctx context.Context, req *model.Request) (*model.Response, error) {
	apiReq := c.buildRequest(req)

	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.requestURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			bodyBytes, _ := io.ReadAll(resp.Body)
			if len(bodyBytes) > 0 {
				return nil, fmt.Errorf("request failed: %w - response: %s", err, string(bodyBytes))
			}
		}
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(bodyBytes))
	}

	var apiResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return parseResponse(&apiResp)
}

// chat completions wire types

type chatRequest struct {
	Messages    []chatMessage `json:"messages"`
	Tools       []chatTool    `json:"tools,omitempty"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stop        []string      `json:"stop,omitempty"`
}

type chatMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content,omitempty"`
	ToolCalls  []chatToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

type chatTool struct {
	Type     string       `json:"type"`
	Function chatFunction `json:"function"`
}

type chatFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type chatToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function chatFunctionCall `json:"function"`
}

type chatFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
	Usage   *chatUsage   `json:"usage"`
	Error   *chatError   `json:"error"`
}

type chatChoice struct {
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type chatError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

func (c *Client) buildRequest(req *model.Request) *chatRequest {
	apiReq := &chatRequest{
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}

	if req.Config != nil {
		if req.Config.Temperature != nil {
			apiReq.Temperature = *req.Config.Temperature
		}
		if req.Config.MaxTokens != nil {
			apiReq.MaxTokens = *req.Config.MaxTokens
		}
		apiReq.Stop = req.Config.StopSequences
	}

	if req.SystemInstruction != "" {
		apiReq.Messages = append(apiReq.Messages, chatMessage{
			Role:    "system",
			Content: req.SystemInstruction,
		})
	}

	for _, msg := range req.Messages {
		apiReq.Messages = append(apiReq.Messages, convertMessage(msg)...)
	}

	for _, def := range req.Tools {
		apiReq.Tools = append(apiReq.Tools, chatTool{
			Type: "function",
			Function: chatFunction{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  def.Parameters,
			},
		})
	}

	return apiReq
}

// convertMessage flattens an a2a message into chat completion messages.
// Tool results become separate role=tool entries; tool_use parts on agent
// messages become assistant tool_calls.
func convertMessage(msg *a2a.Message) []chatMessage {
	if msg == nil {
		return nil
	}

	role := "user"
	if msg.Role == a2a.MessageRoleAgent {
		role = "assistant"
	}

	var text strings.Builder
	var toolCalls []chatToolCall
	var toolResults []chatMessage

	for _, part := range msg.Parts {
		switch p := part.(type) {
		case a2a.TextPart:
			text.WriteString(p.Text)

		case a2a.DataPart:
			switch p.Data["type"] {
			case "tool_use":
				args, _ := json.Marshal(p.Data["arguments"])
				toolCalls = append(toolCalls, chatToolCall{
					ID:   stringValue(p.Data, "id"),
					Type: "function",
					Function: chatFunctionCall{
						Name:      stringValue(p.Data, "name"),
						Arguments: string(args),
					},
				})
			case "tool_result":
				toolResults = append(toolResults, chatMessage{
					Role:       "tool",
					ToolCallID: stringValue(p.Data, "tool_call_id"),
					Content:    stringValue(p.Data, "content"),
				})
			}
		}
	}

	var result []chatMessage
	if text.Len() > 0 || len(toolCalls) > 0 {
		result = append(result, chatMessage{
			Role:      role,
			Content:   text.String(),
			ToolCalls: toolCalls,
		})
	}
	return append(result, toolResults...)
}

func parseResponse(apiResp *chatResponse) (*model.Response, error) {
	if apiResp.Error != nil {
		return nil, fmt.Errorf("API error: %s", apiResp.Error.Message)
	}
	if len(apiResp.Choices) == 0 {
		return nil, fmt.Errorf("no response choices returned")
	}

	choice := apiResp.Choices[0]

	resp := &model.Response{
		TurnComplete: true,
		FinishReason: mapFinishReason(choice.FinishReason),
		Content: &model.Content{
			Role: a2a.MessageRoleAgent,
		},
	}

	if choice.Message.Content != "" {
		resp.Content.Parts = append(resp.Content.Parts, a2a.TextPart{Text: choice.Message.Content})
	}

	for _, tc := range choice.Message.ToolCalls {
		var args map[string]any
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				return nil, fmt.Errorf("failed to parse tool call arguments for %s: %w", tc.Function.Name, err)
			}
		}

		// Some API versions omit tool call IDs; results are correlated by
		// ID, so assign one when missing.
		id := tc.ID
		if id == "" {
			id = "call_" + uuid.NewString()
		}

		resp.ToolCalls = append(resp.ToolCalls, tool.ToolCall{
			ID:   id,
			Name: tc.Function.Name,
			Args: args,
		})
		resp.Content.Parts = append(resp.Content.Parts, a2a.DataPart{
			Data: map[string]any{
				"type":      "tool_use",
				"id":        id,
				"name":      tc.Function.Name,
				"arguments": args,
			},
		})
	}

	if apiResp.Usage != nil {
		resp.Usage = &model.Usage{
			PromptTokens:     apiResp.Usage.PromptTokens,
			CompletionTokens: apiResp.Usage.CompletionTokens,
			TotalTokens:      apiResp.Usage.TotalTokens,
		}
	}

	return resp, nil
}

func mapFinishReason(reason string) model.FinishReason {
	switch reason {
	case "stop":
		return model.FinishReasonStop
	case "length":
		return model.FinishReasonLength
	case "tool_calls", "function_call":
		return model.FinishReasonToolCalls
	case "content_filter":
		return model.FinishReasonContent
	default:
		return model.FinishReasonStop
	}
}

func stringValue(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

// Ensure Client implements model.LLM
var _ model.LLM = (*Client)(nil)
