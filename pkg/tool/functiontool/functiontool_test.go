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

package functiontool_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/claimsight/pkg/tool/functiontool"
)

func TestNew_SimpleArgs(t *testing.T) {
	type GreetArgs struct {
		Name string `json:"name" jsonschema:"required,description=User name"`
		Age  int    `json:"age,omitempty" jsonschema:"description=User age"`
	}

	greetTool, err := functiontool.New(
		functiontool.Config{
			Name:        "greet",
			Description: "Greet a user",
		},
		func(ctx context.Context, args GreetArgs) (map[string]any, error) {
			return map[string]any{
				"greeting": fmt.Sprintf("Hello, %s! Age: %d", args.Name, args.Age),
			}, nil
		},
	)
	require.NoError(t, err)

	assert.Equal(t, "greet", greetTool.Name())
	assert.Equal(t, "Greet a user", greetTool.Description())

	result, err := greetTool.Call(context.Background(), map[string]any{"name": "Ada", "age": 36})
	require.NoError(t, err)
	assert.Equal(t, "Hello, Ada! Age: 36", result["greeting"])
}

func TestNew_SchemaGeneration(t *testing.T) {
	type Args struct {
		Question string `json:"question" jsonschema:"required,description=Question to answer"`
	}

	tl, err := functiontool.New(
		functiontool.Config{Name: "ask", Description: "Ask a question"},
		func(ctx context.Context, args Args) (map[string]any, error) {
			return nil, nil
		},
	)
	require.NoError(t, err)

	schema := tl.Schema()
	require.NotNil(t, schema)
	assert.Equal(t, "object", schema["type"])

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "question")

	required, ok := schema["required"].([]any)
	require.True(t, ok)
	assert.Contains(t, required, "question")
}

func TestNew_ValidatesConfig(t *testing.T) {
	fn := func(ctx context.Context, args struct{}) (map[string]any, error) { return nil, nil }

	_, err := functiontool.New(functiontool.Config{Description: "no name"}, fn)
	assert.Error(t, err)

	_, err = functiontool.New(functiontool.Config{Name: "no-description"}, fn)
	assert.Error(t, err)
}

func TestCall_InvalidArgs(t *testing.T) {
	type Args struct {
		Count int `json:"count" jsonschema:"required"`
	}

	tl, err := functiontool.New(
		functiontool.Config{Name: "count", Description: "Count things"},
		func(ctx context.Context, args Args) (map[string]any, error) {
			return map[string]any{"count": args.Count}, nil
		},
	)
	require.NoError(t, err)

	_, err = tl.Call(context.Background(), map[string]any{"count": "not-a-number"})
	assert.Error(t, err)
}

func TestCall_PropagatesError(t *testing.T) {
	tl, err := functiontool.New(
		functiontool.Config{Name: "fail", Description: "Always fails"},
		func(ctx context.Context, args struct{}) (map[string]any, error) {
			return nil, fmt.Errorf("boom")
		},
	)
	require.NoError(t, err)

	_, err = tl.Call(context.Background(), nil)
	assert.EqualError(t, err, "boom")
}
