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

package client_test

import (
	"context"
	"fmt"
	"iter"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/claimsight/pkg/agent"
	"github.com/kadirpekel/claimsight/pkg/client"
	"github.com/kadirpekel/claimsight/pkg/config"
	"github.com/kadirpekel/claimsight/pkg/model"
	"github.com/kadirpekel/claimsight/pkg/server"
)

type fakeLLM struct {
	text string
	err  error
}

func (f *fakeLLM) Name() string { return "fake" }
func (f *fakeLLM) Close() error { return nil }

func (f *fakeLLM) GenerateContent(ctx context.Context, req *model.Request, stream bool) iter.Seq2[*model.Response, error] {
	return func(yield func(*model.Response, error) bool) {
		if f.err != nil {
			yield(nil, f.err)
			return
		}
		yield(&model.Response{
			TurnComplete: true,
			FinishReason: model.FinishReasonStop,
			Content: &model.Content{
				Role:  a2a.MessageRoleAgent,
				Parts: []a2a.Part{a2a.TextPart{Text: f.text}},
			},
		}, nil)
	}
}

// startAgentServer runs the agent behind an httptest server whose card URL
// matches the listen address, so card resolution works end to end.
func startAgentServer(t *testing.T, llm model.LLM) string {
	t.Helper()

	var handler http.Handler
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler.ServeHTTP(w, r)
	}))
	t.Cleanup(ts.Close)

	u, err := url.Parse(ts.URL)
	require.NoError(t, err)
	host, portStr, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	a, err := agent.New(agent.Config{LLM: llm})
	require.NoError(t, err)

	srv := server.NewHTTPServer(config.ServerConfig{Host: host, Port: port}, server.NewExecutor(a), nil)
	handler = srv.Handler()

	return ts.URL
}

func TestAsk(t *testing.T) {
	serverURL := startAgentServer(t, &fakeLLM{text: "There are 1000 customers."})

	ctx := context.Background()
	c, err := client.New(ctx, serverURL, client.WithPollInterval(10*time.Millisecond))
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, server.AgentName, c.Card().Name)

	answer, err := c.Ask(ctx, "How many customers are there?")
	require.NoError(t, err)
	assert.Equal(t, "There are 1000 customers.", answer)
}

func TestAsk_AgentFailure(t *testing.T) {
	serverURL := startAgentServer(t, &fakeLLM{err: fmt.Errorf("model unavailable")})

	ctx := context.Background()
	c, err := client.New(ctx, serverURL, client.WithPollInterval(10*time.Millisecond))
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Ask(ctx, "anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "task failed")
}

func TestAsk_EmptyQuestion(t *testing.T) {
	serverURL := startAgentServer(t, &fakeLLM{text: "unused"})

	ctx := context.Background()
	c, err := client.New(ctx, serverURL, client.WithPollInterval(10*time.Millisecond))
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Ask(ctx, "  ")
	assert.Error(t, err)
}

func TestNew_BadURL(t *testing.T) {
	_, err := client.New(context.Background(), "http://127.0.0.1:1/")
	assert.Error(t, err)
}
