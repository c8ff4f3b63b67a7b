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
	"context"
	"os"
	"strings"
	"time"

	"github.com/cloudwego/devflow/internal/artifact"
	"github.com/cloudwego/eino/components/model"
)

type ModelConfig struct {
	Name        string        `json:"name" yaml:"name" toml:"name"` // alias of the config, not endpoint!
	APIType     ModelType     `json:"type" yaml:"type" toml:"type"`
	BaseURL     string        `json:"base_url" yaml:"base_url" toml:"base_url"`
	APIKey      string        `json:"api_key" yaml:"api_key" toml:"api_key"`
	APIKeyEnv   string        `json:"api_key_env" yaml:"api_key_env" toml:"api_key_env"` // env var consulted when APIKey is empty
	ModelName   string        `json:"model_name" yaml:"model_name" toml:"model_name"`    // the endpoint of the model, like `gpt-4o`
	Temperature *float32      `json:"temperature" yaml:"temperature" toml:"temperature"`
	MaxTokens   int           `json:"max_tokens" yaml:"max_tokens" toml:"max_tokens"`
	Timeout     time.Duration `json:"timeout" yaml:"timeout" toml:"timeout"` // per-attempt request timeout, default: 600s
	Retries     int           `json:"retries" yaml:"retries" toml:"retries"` // retries after the first attempt, default: 0
}

// ResolveAPIKey returns the inline key, or the value of APIKeyEnv.
func (m ModelConfig) ResolveAPIKey() string {
	if m.APIKey != "" {
		return m.APIKey
	}
	if m.APIKeyEnv != "" {
		return os.Getenv(m.APIKeyEnv)
	}
	return ""
}

type ModelType string

func NewModelType(t string) ModelType {
	switch strings.ToLower(t) {
	case "ollama":
		return ModelTypeOllama
	case "ark", "doubao":
		return ModelTypeARK
	case "openai", "gpt":
		return ModelTypeOpenAI
	case "claude", "anthropic":
		return ModelTypeClaude
	case "dashscope", "qwen", "tongyi":
		return ModelTypeDashScope
	case "deepseek":
		return ModelTypeDeepSeek
	}
	return ModelTypeUnknown
}

const (
	ModelTypeUnknown   ModelType = ""
	ModelTypeOllama    ModelType = "ollama"
	ModelTypeARK       ModelType = "ark"
	ModelTypeOpenAI    ModelType = "openai"
	ModelTypeClaude    ModelType = "claude"
	ModelTypeDashScope ModelType = "dashscope"
	ModelTypeDeepSeek  ModelType = "deepseek"
)

// ChatModel is the interface for making LLM backend.
type ChatModel interface {
	model.ToolCallingChatModel
}

// Client produces one structured artifact per call. Implementations must
// validate the result against out and fail instead of returning malformed data.
type Client interface {
	Invoke(ctx context.Context, spec PromptSpec, out *OutputSchema) (artifact.Record, error)
}

// PromptSpec is an assembled prompt: system instruction, prior conversation
// and the task for this call.
type PromptSpec struct {
	System  string
	History []Message
	Task    string
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role
	Content string
}
