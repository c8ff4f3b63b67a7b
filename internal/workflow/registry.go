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

package workflow

import (
	"context"
	"sort"

	"github.com/cloudwego/devflow/llm"
)

// Handler runs one step: read inputs from st, call the model, write the
// artifact, append one history entry and set st.CurrentStep to its default
// successor. On failure it must leave st untouched.
type Handler interface {
	Run(ctx context.Context, st *State, client llm.Client) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, st *State, client llm.Client) error

func (f HandlerFunc) Run(ctx context.Context, st *State, client llm.Client) error {
	return f(ctx, st, client)
}

// ArtifactWriter is implemented by handlers that declare which artifact kinds
// they write, so events can carry their snapshots.
type ArtifactWriter interface {
	Writes() []string
}

// Registry maps step ids to handlers.
type Registry struct {
	handlers map[StepID]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: map[StepID]Handler{}}
}

// Register adds h under id. Registering an id twice, End, or a nil handler
// is a ConfigurationError.
func (r *Registry) Register(id StepID, h Handler) error {
	if id == "" || id == End {
		return configErrorf("cannot register step %q", id)
	}
	if h == nil {
		return configErrorf("nil handler for step %s", id)
	}
	if _, ok := r.handlers[id]; ok {
		return configErrorf("duplicate step %s", id)
	}
	r.handlers[id] = h
	return nil
}

// Lookup returns the handler for id or an UnknownStepError.
func (r *Registry) Lookup(id StepID) (Handler, error) {
	h, ok := r.handlers[id]
	if !ok {
		return nil, &UnknownStepError{Step: id, Reason: "no handler registered"}
	}
	return h, nil
}

// Has reports whether id is registered.
func (r *Registry) Has(id StepID) bool {
	_, ok := r.handlers[id]
	return ok
}

// IDs lists the registered ids in lexical order.
func (r *Registry) IDs() []StepID {
	out := make([]StepID, 0, len(r.handlers))
	for id := range r.handlers {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
