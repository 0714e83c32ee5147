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

package analytics

import (
	"context"
	"fmt"
	"iter"
	"path/filepath"
	"strings"
	"testing"

	"github.com/a2aproject/a2a-go/a2a"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/claimsight/pkg/insurance"
	"github.com/kadirpekel/claimsight/pkg/model"
	"github.com/kadirpekel/claimsight/pkg/store"
)

// fakeLLM yields a fixed response, recording the last prompt it saw.
type fakeLLM struct {
	text       string
	err        error
	lastPrompt string
}

func (f *fakeLLM) Name() string { return "fake" }
func (f *fakeLLM) Close() error { return nil }

func (f *fakeLLM) GenerateContent(ctx context.Context, req *model.Request, stream bool) iter.Seq2[*model.Response, error] {
	return func(yield func(*model.Response, error) bool) {
		if len(req.Messages) > 0 {
			for _, part := range req.Messages[len(req.Messages)-1].Parts {
				if tp, ok := part.(a2a.TextPart); ok {
					f.lastPrompt = tp.Text
				}
			}
		}
		if f.err != nil {
			yield(nil, f.err)
			return
		}
		yield(&model.Response{
			TurnComplete: true,
			Content: &model.Content{
				Role:  a2a.MessageRoleAgent,
				Parts: []a2a.Part{a2a.TextPart{Text: f.text}},
			},
		}, nil)
	}
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "insurance.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	ctx := context.Background()
	require.NoError(t, st.Init(ctx))

	ds := insurance.Generate(insurance.GeneratorConfig{Customers: 30, Seed: 42})
	require.NoError(t, st.LoadDataset(ctx, ds))
	return st
}

func TestTool_AnswersQuestion(t *testing.T) {
	llm := &fakeLLM{text: "SELECT COUNT(*) AS total_customers FROM customers"}

	tl, err := New(llm, newTestStore(t))
	require.NoError(t, err)
	assert.Equal(t, ToolName, tl.Name())

	result, err := tl.Call(context.Background(), map[string]any{
		"question": "How many customers are there?",
	})
	require.NoError(t, err)

	assert.Equal(t, "SELECT COUNT(*) AS total_customers FROM customers", result["query"])
	assert.Contains(t, result["result"], "total_customers")
	assert.Contains(t, result["result"], "30")

	assert.Contains(t, llm.lastPrompt, "How many customers are there?")
	assert.Contains(t, llm.lastPrompt, "customers")
	assert.Contains(t, llm.lastPrompt, "policies")
	assert.Contains(t, llm.lastPrompt, "claims")
}

func TestTool_StripsMarkdownFences(t *testing.T) {
	llm := &fakeLLM{text: "```sql\nSELECT COUNT(*) AS n FROM policies\n```"}

	tl, err := New(llm, newTestStore(t))
	require.NoError(t, err)

	result, err := tl.Call(context.Background(), map[string]any{"question": "How many policies?"})
	require.NoError(t, err)
	assert.Equal(t, "SELECT COUNT(*) AS n FROM policies", result["query"])
}

func TestTool_RejectsMutatingQuery(t *testing.T) {
	llm := &fakeLLM{text: "DELETE FROM claims"}

	tl, err := New(llm, newTestStore(t))
	require.NoError(t, err)

	_, err = tl.Call(context.Background(), map[string]any{"question": "delete everything"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rejected")
}

func TestTool_EmptyQuestion(t *testing.T) {
	tl, err := New(&fakeLLM{text: "SELECT 1"}, newTestStore(t))
	require.NoError(t, err)

	_, err = tl.Call(context.Background(), map[string]any{"question": "   "})
	assert.Error(t, err)
}

func TestTool_LLMError(t *testing.T) {
	llm := &fakeLLM{err: fmt.Errorf("model unavailable")}

	tl, err := New(llm, newTestStore(t))
	require.NoError(t, err)

	_, err = tl.Call(context.Background(), map[string]any{"question": "anything"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model unavailable")
}

func TestStripFences(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"bare", "SELECT 1", "SELECT 1"},
		{"fenced with language", "```sql\nSELECT 1\n```", "SELECT 1"},
		{"fenced without language", "```\nSELECT 1\n```", "SELECT 1"},
		{"surrounding whitespace", "  \n```sql\nSELECT 1\n```\n  ", "SELECT 1"},
		{"multiline query", "```sql\nSELECT a,\n  b\nFROM t\n```", "SELECT a,\n  b\nFROM t"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripFences(tt.input))
		})
	}
}

func TestFormatResult(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		assert.Equal(t, "No results found.", FormatResult(&store.Result{Columns: []string{"a"}}))
	})

	t.Run("table", func(t *testing.T) {
		out := FormatResult(&store.Result{
			Columns: []string{"policy_type", "total"},
			Rows: [][]any{
				{"auto", int64(12)},
				{"home", int64(7)},
			},
		})
		assert.Equal(t, "| policy_type | total |\n| --- | --- |\n| auto | 12 |\n| home | 7 |", out)
	})

	t.Run("caps at twenty rows", func(t *testing.T) {
		rows := make([][]any, 25)
		for i := range rows {
			rows[i] = []any{int64(i)}
		}
		out := FormatResult(&store.Result{Columns: []string{"n"}, Rows: rows})
		assert.Contains(t, out, "... and 5 more rows")
		assert.Equal(t, 20, countDataRows(out))
	})

	t.Run("null and float", func(t *testing.T) {
		out := FormatResult(&store.Result{
			Columns: []string{"avg_premium"},
			Rows:    [][]any{{nil}, {1234.5}},
		})
		assert.Contains(t, out, "NULL")
		assert.Contains(t, out, "1234.5")
	})
}

// countDataRows counts table body lines, skipping the header and separator.
func countDataRows(table string) int {
	lines := strings.Split(table, "\n")
	count := 0
	for _, line := range lines[2:] {
		if strings.HasPrefix(line, "| ") {
			count++
		}
	}
	return count
}
