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

// Package analytics provides the insurance_analytics tool.
//
// The tool turns a natural-language question into a SQL query via the LLM,
// validates it, runs it against the insurance database and returns the
// result as a markdown table.
package analytics

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/a2aproject/a2a-go/a2a"

	"github.com/kadirpekel/claimsight/pkg/model"
	"github.com/kadirpekel/claimsight/pkg/store"
	"github.com/kadirpekel/claimsight/pkg/tool"
	"github.com/kadirpekel/claimsight/pkg/tool/functiontool"
)

const (
	// ToolName is the registered name of the analytics tool.
	ToolName = "insurance_analytics"

	toolDescription = "Answer analytical questions about insurance customers, policies and claims by querying the insurance database"

	// displayRowLimit caps how many result rows are rendered.
	displayRowLimit = 20
)

const sqlPromptTemplate = `You are a SQL expert working with a SQLite insurance database.

%s

Generate a single SQL SELECT query that answers the following question.

Rules:
- Return ONLY the SQL query, no explanation and no markdown
- Use only SELECT statements, never modify data
- Dates are stored as TEXT in YYYY-MM-DD format
- Prefer readable column aliases for aggregates

Question: %s`

// Args are the arguments of the analytics tool.
type Args struct {
	Question string `json:"question" jsonschema:"required,description=Natural language question about the insurance data"`
}

// New creates the insurance_analytics tool bound to the given LLM and store.
func New(llm model.LLM, st *store.Store) (tool.CallableTool, error) {
	if llm == nil {
		return nil, fmt.Errorf("llm is required")
	}
	if st == nil {
		return nil, fmt.Errorf("store is required")
	}

	return functiontool.New(
		functiontool.Config{
			Name:        ToolName,
			Description: toolDescription,
		},
		func(ctx context.Context, args Args) (map[string]any, error) {
			return run(ctx, llm, st, args.Question)
		},
	)
}

func run(ctx context.Context, llm model.LLM, st *store.Store, question string) (map[string]any, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("question is required")
	}

	query, err := generateQuery(ctx, llm, question)
	if err != nil {
		return nil, err
	}

	if err := store.ValidateQuery(query); err != nil {
		return nil, fmt.Errorf("generated query rejected: %w", err)
	}

	result, err := st.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query execution failed: %w", err)
	}

	return map[string]any{
		"query":  query,
		"result": FormatResult(result),
	}, nil
}

func generateQuery(ctx context.Context, llm model.LLM, question string) (string, error) {
	req := &model.Request{
		Messages: []*a2a.Message{
			a2a.NewMessage(a2a.MessageRoleUser, a2a.TextPart{
				Text: fmt.Sprintf(sqlPromptTemplate, store.SchemaDescription(), question),
			}),
		},
	}

	var text string
	for resp, err := range llm.GenerateContent(ctx, req, false) {
		if err != nil {
			return "", fmt.Errorf("SQL generation failed: %w", err)
		}
		text += resp.TextContent()
	}

	query := StripFences(text)
	if query == "" {
		return "", fmt.Errorf("model returned no SQL query")
	}
	return query, nil
}

// StripFences removes markdown code fences the model may wrap SQL in.
func StripFences(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		// drop a language hint like "sql" on the fence line
		if idx := strings.IndexByte(text, '\n'); idx >= 0 {
			first := strings.TrimSpace(text[:idx])
			if len(first) <= 10 && !strings.ContainsAny(first, " \t") {
				text = text[idx+1:]
			}
		}
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}

	return strings.TrimSpace(text)
}

// FormatResult renders a query result as a markdown pipe table, capped at
// displayRowLimit rows.
func FormatResult(result *store.Result) string {
	if result == nil || len(result.Rows) == 0 {
		return "No results found."
	}

	var b strings.Builder

	b.WriteString("| ")
	b.WriteString(strings.Join(result.Columns, " | "))
	b.WriteString(" |\n| ")
	for i := range result.Columns {
		if i > 0 {
			b.WriteString(" | ")
		}
		b.WriteString("---")
	}
	b.WriteString(" |\n")

	shown := len(result.Rows)
	if shown > displayRowLimit {
		shown = displayRowLimit
	}

	for _, row := range result.Rows[:shown] {
		b.WriteString("| ")
		for i, v := range row {
			if i > 0 {
				b.WriteString(" | ")
			}
			b.WriteString(formatValue(v))
		}
		b.WriteString(" |\n")
	}

	if remaining := len(result.Rows) - shown; remaining > 0 {
		fmt.Fprintf(&b, "\n... and %d more rows", remaining)
	}

	return strings.TrimRight(b.String(), "\n")
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case string:
		return val
	default:
		return fmt.Sprintf("%v", val)
	}
}
