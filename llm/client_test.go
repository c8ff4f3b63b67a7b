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
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type verdict struct {
	Approved bool              `json:"approved"`
	Feedback map[string]string `json:"feedback"`
}

// fakeModel replays answers in order and records the messages it received.
type fakeModel struct {
	mu      sync.Mutex
	answers []string
	errs    []error
	inputs  [][]*schema.Message
}

func (f *fakeModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := len(f.inputs)
	f.inputs = append(f.inputs, input)
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i >= len(f.answers) {
		return nil, errors.New("fake model exhausted")
	}
	return schema.AssistantMessage(f.answers[i], nil), nil
}

func (f *fakeModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := f.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (f *fakeModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return f, nil
}

func (f *fakeModel) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.inputs)
}

func noWait(int) time.Duration { return 0 }

func TestChatClient_Invoke(t *testing.T) {
	fm := &fakeModel{answers: []string{"```json\n{\"approved\": true, \"feedback\": {\"US-001\": \"ok\"}}\n```"}}
	c, err := NewChatClient(context.Background(), fm, ChatClientOptions{Backoff: noWait})
	require.NoError(t, err)

	out := SchemaFor[verdict]("review_result")
	rec, err := c.Invoke(context.Background(), PromptSpec{
		System: "You are a {reviewer}.",
		History: []Message{
			{Role: RoleUser, Content: "build a todo app"},
			{Role: RoleAssistant, Content: "noted"},
		},
		Task: "Review these stories: {\"id\": \"US-001\"}",
	}, out)
	require.NoError(t, err)
	approved, ok := rec.Bool("approved")
	assert.True(t, ok)
	assert.True(t, approved)

	require.Equal(t, 1, fm.calls())
	msgs := fm.inputs[0]
	require.Len(t, msgs, 4)
	assert.Equal(t, schema.System, msgs[0].Role)
	assert.Contains(t, msgs[0].Content, "You are a {reviewer}.")
	assert.Contains(t, msgs[0].Content, out.String())
	assert.Equal(t, schema.User, msgs[1].Role)
	assert.Equal(t, "build a todo app", msgs[1].Content)
	assert.Equal(t, schema.Assistant, msgs[2].Role)
	assert.Equal(t, "Review these stories: {\"id\": \"US-001\"}", msgs[3].Content)
}

func TestChatClient_SchemaViolationIsError(t *testing.T) {
	fm := &fakeModel{answers: []string{`{"feedback": {}}`}}
	c, err := NewChatClient(context.Background(), fm, ChatClientOptions{Backoff: noWait})
	require.NoError(t, err)

	_, err = c.Invoke(context.Background(), PromptSpec{Task: "review"}, SchemaFor[verdict]("review_result"))
	require.Error(t, err)
	var se *SchemaError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "approved", se.Path)
	assert.Equal(t, 1, fm.calls())
}

func TestChatClient_Retry(t *testing.T) {
	fm := &fakeModel{
		errs:    []error{errors.New("read tcp: connection reset by peer"), nil},
		answers: []string{"", `{"approved": false, "feedback": {}}`},
	}
	c, err := NewChatClient(context.Background(), fm, ChatClientOptions{
		Policy:  DefaultRetryPolicy{MaxRetry: 2},
		Backoff: noWait,
	})
	require.NoError(t, err)

	rec, err := c.Invoke(context.Background(), PromptSpec{Task: "review"}, SchemaFor[verdict]("review_result"))
	require.NoError(t, err)
	approved, ok := rec.Bool("approved")
	assert.True(t, ok)
	assert.False(t, approved)
	assert.Equal(t, 2, fm.calls())
}

func TestChatClient_NoRetryByDefault(t *testing.T) {
	fm := &fakeModel{errs: []error{errors.New("connection refused")}}
	c, err := NewChatClient(context.Background(), fm, ChatClientOptions{Backoff: noWait})
	require.NoError(t, err)

	_, err = c.Invoke(context.Background(), PromptSpec{Task: "review"}, SchemaFor[verdict]("review_result"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 1 attempt(s)")
	assert.Equal(t, 1, fm.calls())
}

func TestChatClient_NonRetryableAborts(t *testing.T) {
	fm := &fakeModel{errs: []error{errors.New("invalid api key")}}
	c, err := NewChatClient(context.Background(), fm, ChatClientOptions{
		Policy:  DefaultRetryPolicy{MaxRetry: 3},
		Backoff: noWait,
	})
	require.NoError(t, err)

	_, err = c.Invoke(context.Background(), PromptSpec{Task: "review"}, SchemaFor[verdict]("review_result"))
	require.Error(t, err)
	assert.Equal(t, 1, fm.calls())
}

func TestNewChatClient_RequiresModel(t *testing.T) {
	_, err := NewChatClient(context.Background(), nil, ChatClientOptions{})
	assert.Error(t, err)
}

func TestDryRunClient(t *testing.T) {
	out := SchemaFor[verdict]("review_result")
	rec, err := DryRunClient{}.Invoke(context.Background(), PromptSpec{}, out)
	require.NoError(t, err)
	approved, ok := rec.Bool("approved")
	assert.True(t, ok)
	assert.True(t, approved)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = DryRunClient{}.Invoke(ctx, PromptSpec{}, out)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDefaultRetryPolicy(t *testing.T) {
	p := DefaultRetryPolicy{MaxRetry: 1}
	ctx := context.Background()
	transient := errors.New("operation timed out")
	assert.Equal(t, DecisionRetry, p.OnFailure(ctx, 1, transient))
	assert.Equal(t, DecisionAbort, p.OnFailure(ctx, 2, transient))
	assert.Equal(t, DecisionAbort, p.OnFailure(ctx, 1, errors.New("bad request")))
	assert.Equal(t, DecisionRetry, p.OnFailure(ctx, 1, &SchemaError{Schema: "x", Reason: "expected object"}))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.Equal(t, DecisionAbort, p.OnFailure(cancelled, 1, transient))
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, time.Second, backoff(1))
	assert.Equal(t, 2*time.Second, backoff(2))
	assert.Equal(t, 4*time.Second, backoff(3))
	assert.Equal(t, 10*time.Second, backoff(8))
	for _, attempt := range []int{35, 63, 64, 1000} {
		assert.Equal(t, 10*time.Second, backoff(attempt), "attempt %d", attempt)
	}
}

func TestIsRetryable(t *testing.T) {
	for _, msg := range []string{
		"upstream 503",
		"status 502 Bad Gateway",
		"429 Too Many Requests",
		"read tcp 10.0.0.1:443: connection reset by peer",
		"service unavailable",
	} {
		assert.True(t, IsRetryable(errors.New(msg)), msg)
	}
	for _, msg := range []string{"401 unauthorized", "invalid model name"} {
		assert.False(t, IsRetryable(errors.New(msg)), msg)
	}
	assert.False(t, IsRetryable(nil))
}
