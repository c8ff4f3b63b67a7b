/**
 * Copyright 2025 ByteDance Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package llm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type story struct {
	ID                 string   `json:"id"`
	AcceptanceCriteria []string `json:"acceptance_criteria"`
	Priority           string   `json:"priority,omitempty"`
}

type stories struct {
	UserStories []story `json:"user_stories"`
	Count       int     `json:"count"`
}

func TestOutputSchema_Parse(t *testing.T) {
	out := SchemaFor[stories]("user_stories")
	assert.Contains(t, out.String(), `"user_stories"`)
	assert.Contains(t, out.FormatInstructions(), out.String())

	tests := []struct {
		name    string
		content string
		path    string
		wantErr bool
	}{
		{"plain", `{"user_stories": [{"id": "US-1", "acceptance_criteria": ["a"]}], "count": 1}`, "", false},
		{"fenced with prose", "Here you go:\n```json\n{\"user_stories\": [], \"count\": 0}\n```", "", false},
		{"optional omitted", `{"user_stories": [{"id": "US-1", "acceptance_criteria": []}], "count": 1}`, "", false},
		{"no object", "sorry, I cannot help", "", true},
		{"malformed", `{"user_stories": [}`, "", true},
		{"missing required", `{"user_stories": []}`, "count", true},
		{"nested missing", `{"user_stories": [{"id": "US-1"}], "count": 1}`, "user_stories[0].acceptance_criteria", true},
		{"wrong type", `{"user_stories": "none", "count": 1}`, "user_stories", true},
		{"fractional integer", `{"user_stories": [], "count": 1.5}`, "count", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := out.Parse(tt.content)
			if !tt.wantErr {
				require.NoError(t, err)
				assert.NotNil(t, rec)
				return
			}
			require.Error(t, err)
			var se *SchemaError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, "user_stories", se.Schema)
			if tt.path != "" {
				assert.Equal(t, tt.path, se.Path)
			}
		})
	}
}

func TestOutputSchema_Example(t *testing.T) {
	out := SchemaFor[stories]("user_stories")
	rec := out.Example()
	require.NoError(t, out.Validate(rec))
	items := rec.Records("user_stories")
	require.Len(t, items, 1)
	assert.Equal(t, "dry-run id", items[0].String("id"))
	assert.Equal(t, float64(1), rec["count"])
}

type ticket struct {
	Key      string `json:"key" jsonschema:"pattern=^[A-Z]+-[0-9]+$"`
	Priority string `json:"priority" jsonschema:"enum=High,enum=Medium,enum=Low"`
	Score    int    `json:"score" jsonschema:"minimum=0,maximum=100"`
}

func TestOutputSchema_Keywords(t *testing.T) {
	out := SchemaFor[ticket]("ticket")
	tests := []struct {
		name    string
		content string
		path    string
	}{
		{"valid", `{"key": "DEV-1", "priority": "High", "score": 90}`, ""},
		{"enum", `{"key": "DEV-1", "priority": "Urgent", "score": 90}`, "priority"},
		{"maximum", `{"key": "DEV-1", "priority": "Low", "score": 101}`, "score"},
		{"minimum", `{"key": "DEV-1", "priority": "Low", "score": -1}`, "score"},
		{"pattern", `{"key": "dev one", "priority": "Low", "score": 1}`, "key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := out.Parse(tt.content)
			if tt.path == "" {
				require.NoError(t, err)
				return
			}
			var se *SchemaError
			require.True(t, errors.As(err, &se), "got %v", err)
			assert.Equal(t, tt.path, se.Path)
			assert.NotEmpty(t, se.Reason)
		})
	}
}

func TestOutputSchema_ValidateGoValues(t *testing.T) {
	out := SchemaFor[stories]("user_stories")
	rec := map[string]any{
		"user_stories": []map[string]any{{"id": "US-1", "acceptance_criteria": []string{"a"}}},
		"count":        1,
	}
	assert.NoError(t, out.Validate(rec))
}
