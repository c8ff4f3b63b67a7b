// Copyright 2025 ByteDance Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package llmtest provides a scripted llm.Client for tests.
package llmtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/cloudwego/devflow/internal/artifact"
	"github.com/cloudwego/devflow/llm"
)

// Call is one recorded Invoke.
type Call struct {
	Schema string
	Spec   llm.PromptSpec
}

type reply struct {
	rec artifact.Record
	err error
}

// Scripted answers calls from per-schema queues. When a queue is empty the
// fallback for that schema is used; when there is none either, the schema's
// synthesized example is returned (or an error if Strict is set).
type Scripted struct {
	Strict bool

	mu       sync.Mutex
	queues   map[string][]reply
	fallback map[string]reply
	calls    []Call
}

func NewScripted() *Scripted {
	return &Scripted{
		queues:   map[string][]reply{},
		fallback: map[string]reply{},
	}
}

// Push enqueues rec as the next answer for schema.
func (s *Scripted) Push(schema string, rec artifact.Record) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queues[schema] = append(s.queues[schema], reply{rec: rec})
	return s
}

// Fail enqueues err as the next answer for schema.
func (s *Scripted) Fail(schema string, err error) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queues[schema] = append(s.queues[schema], reply{err: err})
	return s
}

// Always sets the answer used once the queue for schema is drained.
func (s *Scripted) Always(schema string, rec artifact.Record) *Scripted {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fallback[schema] = reply{rec: rec}
	return s
}

// Calls returns a copy of the recorded calls in order.
func (s *Scripted) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// SchemaCalls returns the schema names of the recorded calls in order.
func (s *Scripted) SchemaCalls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.calls))
	for _, c := range s.calls {
		out = append(out, c.Schema)
	}
	return out
}

func (s *Scripted) Invoke(ctx context.Context, spec llm.PromptSpec, out *llm.OutputSchema) (artifact.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.calls = append(s.calls, Call{Schema: out.Name, Spec: spec})
	var (
		r     reply
		found bool
	)
	if q := s.queues[out.Name]; len(q) > 0 {
		r, found = q[0], true
		s.queues[out.Name] = q[1:]
	} else if fb, ok := s.fallback[out.Name]; ok {
		r, found = fb, true
	}
	strict := s.Strict
	s.mu.Unlock()

	if !found {
		if strict {
			return nil, fmt.Errorf("llmtest: no scripted answer for %s", out.Name)
		}
		return out.Example(), nil
	}
	if r.err != nil {
		return nil, r.err
	}
	if err := out.Validate(r.rec); err != nil {
		return nil, err
	}
	return r.rec.Clone(), nil
}

var _ llm.Client = (*Scripted)(nil)
