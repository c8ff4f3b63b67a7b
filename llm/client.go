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
	"time"

	"github.com/cloudwego/devflow/internal/artifact"
	"github.com/cloudwego/devflow/internal/log"
	"github.com/cloudwego/eino/callbacks"
	eprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/pkg/errors"
)

var _ Client = (*ChatClient)(nil)

// ChatClient is the Client backed by an eino chat model. Each call runs the
// chain system+history+task template -> chat model, then parses and validates
// the JSON answer.
type ChatClient struct {
	opts     ChatClientOptions
	runnable compose.Runnable[map[string]any, *schema.Message]
}

type ChatClientOptions struct {
	Timeout time.Duration // per-attempt timeout, default: 600s
	Policy  RetryPolicy   // default: DefaultRetryPolicy{MaxRetry: 0}
	// Backoff returns the wait before the next attempt; defaults to exponential.
	Backoff func(attempt int) time.Duration
}

const (
	varSystem  = "system"
	varHistory = "history"
	varTask    = "task"
)

func NewChatClient(ctx context.Context, cm ChatModel, opts ChatClientOptions) (*ChatClient, error) {
	if cm == nil {
		return nil, errors.New("chat model is required")
	}
	if opts.Timeout == 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Policy == nil {
		opts.Policy = DefaultRetryPolicy{}
	}
	if opts.Backoff == nil {
		opts.Backoff = backoff
	}
	// Every piece of text is passed as a variable so braces inside prompts or
	// schemas never reach the f-string parser.
	tpl := eprompt.FromMessages(schema.FString,
		schema.SystemMessage("{"+varSystem+"}"),
		schema.MessagesPlaceholder(varHistory, true),
		schema.UserMessage("{"+varTask+"}"),
	)
	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(tpl).AppendChatModel(cm)
	r, err := chain.Compile(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "compile model chain")
	}
	return &ChatClient{opts: opts, runnable: r}, nil
}

// Invoke implements Client.
func (c *ChatClient) Invoke(ctx context.Context, spec PromptSpec, out *OutputSchema) (artifact.Record, error) {
	if out == nil {
		return nil, errors.New("output schema is required")
	}
	vars := map[string]any{
		varSystem:  spec.System + "\n\n" + out.FormatInstructions(),
		varHistory: toSchemaMessages(spec.History),
		varTask:    spec.Task,
	}
	log.Debug("[Task:%s] %s", out.Name, spec.Task)

	var lastErr error
	attempt := 0
	for {
		attempt++
		rec, err := c.invokeOnce(ctx, vars, out)
		if err == nil {
			return rec, nil
		}
		lastErr = err
		if c.opts.Policy.OnFailure(ctx, attempt, err) != DecisionRetry {
			break
		}
		wait := c.opts.Backoff(attempt)
		log.Info("Retrying %s model call (attempt %d) in %s: %v", out.Name, attempt+1, wait, err)
		select {
		case <-ctx.Done():
			return nil, errors.Wrapf(ctx.Err(), "model call %s cancelled", out.Name)
		case <-time.After(wait):
		}
	}
	log.Error("Model call %s failed after %d attempt(s): %v", out.Name, attempt, lastErr)
	return nil, errors.Wrapf(lastErr, "model call %s failed after %d attempt(s)", out.Name, attempt)
}

func (c *ChatClient) invokeOnce(ctx context.Context, vars map[string]any, out *OutputSchema) (artifact.Record, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()
	msg, err := c.runnable.Invoke(attemptCtx, vars, compose.WithCallbacks(CallbackHandler{}))
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, &SchemaError{Schema: out.Name, Reason: "empty model response"}
	}
	return out.Parse(msg.Content)
}

func toSchemaMessages(history []Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(history))
	for _, m := range history {
		switch m.Role {
		case RoleAssistant:
			out = append(out, schema.AssistantMessage(m.Content, nil))
		default:
			out = append(out, schema.UserMessage(m.Content))
		}
	}
	return out
}

// CallbackHandler traces component starts, ends and errors at debug level.
type CallbackHandler struct{}

var _ callbacks.Handler = (*CallbackHandler)(nil)

func (h CallbackHandler) OnStart(ctx context.Context, info *callbacks.RunInfo, input callbacks.CallbackInput) context.Context {
	log.Debug("<OnStart> %+v", info)
	return ctx
}

func (h CallbackHandler) OnEnd(ctx context.Context, info *callbacks.RunInfo, output callbacks.CallbackOutput) context.Context {
	log.Debug("<OnEnd> %+v", info)
	return ctx
}

func (h CallbackHandler) OnError(ctx context.Context, info *callbacks.RunInfo, err error) context.Context {
	log.Error("<OnError> %+v: %v", info, err)
	return ctx
}

func (h CallbackHandler) OnStartWithStreamInput(ctx context.Context, info *callbacks.RunInfo,
	input *schema.StreamReader[callbacks.CallbackInput]) context.Context {
	input.Close()
	return ctx
}

func (h CallbackHandler) OnEndWithStreamOutput(ctx context.Context, info *callbacks.RunInfo,
	output *schema.StreamReader[callbacks.CallbackOutput]) context.Context {
	output.Close()
	return ctx
}
