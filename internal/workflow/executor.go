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
	"time"

	"github.com/cloudwego/devflow/internal/artifact"
	"github.com/cloudwego/devflow/internal/log"
	"github.com/cloudwego/devflow/llm"
)

// Budget bounds a run. MaxSteps <= 0 means unbounded, which is only allowed
// with a cancellable context.
type Budget struct {
	MaxSteps int
}

// HaltReason is why a run stopped.
type HaltReason string

const (
	HaltBudget    HaltReason = "budget"
	HaltTerminal  HaltReason = "terminal"
	HaltCancelled HaltReason = "cancelled"
	HaltError     HaltReason = "error"
)

// Result summarizes a run. LastCompleted is the last step whose handler and
// transition both succeeded.
type Result struct {
	Steps         int        `json:"steps"`
	Visited       []StepID   `json:"visited"`
	Halt          HaltReason `json:"halt"`
	LastCompleted StepID     `json:"last_completed,omitempty"`
}

// Event is emitted once per completed iteration.
type Event struct {
	RunID     string              `json:"run_id"`
	Step      StepID              `json:"step"`
	Next      StepID              `json:"next"`
	Iteration int                 `json:"iteration"`
	Artifacts []artifact.Snapshot `json:"artifacts,omitempty"`
	Timestamp time.Time           `json:"timestamp"`
}

// Sink receives progress events. It is called synchronously from the run loop.
type Sink interface {
	OnEvent(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

func (f SinkFunc) OnEvent(ev Event) { f(ev) }

type multiSink []Sink

func (m multiSink) OnEvent(ev Event) {
	for _, s := range m {
		s.OnEvent(ev)
	}
}

// Executor drives a State through registered handlers and the transition
// table, one step at a time.
type Executor struct {
	registry    *Registry
	transitions *Transitions
	client      llm.Client
	sink        Sink
	now         func() time.Time
}

type Option func(*Executor)

// WithSink sets the progress sink.
func WithSink(s Sink) Option {
	return func(e *Executor) { e.sink = s }
}

// WithClock sets the clock used for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

// NewExecutor validates the table against the registry.
func NewExecutor(reg *Registry, tr *Transitions, client llm.Client, opts ...Option) (*Executor, error) {
	if reg == nil || tr == nil {
		return nil, configErrorf("executor needs a registry and a transition table")
	}
	if client == nil {
		return nil, configErrorf("executor needs a model client")
	}
	if err := tr.Validate(reg); err != nil {
		return nil, err
	}
	e := &Executor{
		registry:    reg,
		transitions: tr,
		client:      client,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Registry returns the executor's step registry.
func (e *Executor) Registry() *Registry { return e.registry }

// Transitions returns the executor's transition table.
func (e *Executor) Transitions() *Transitions { return e.transitions }

// Run executes steps from st.CurrentStep until End, the budget, cancellation
// or an error. On error st.CurrentStep is left at the failing step and the
// partial Result is returned together with the error.
func (e *Executor) Run(ctx context.Context, st *State, budget Budget) (Result, error) {
	return e.run(ctx, st, budget, e.sink)
}

// Stream runs in a new goroutine and delivers events over a channel. Both
// channels are closed when the run ends; the error channel yields at most one
// error. The caller must drain events or cancel ctx.
func (e *Executor) Stream(ctx context.Context, st *State, budget Budget) (<-chan Event, <-chan error) {
	events := make(chan Event)
	errc := make(chan error, 1)
	go func() {
		defer close(errc)
		defer close(events)
		sinks := multiSink{SinkFunc(func(ev Event) {
			select {
			case events <- ev:
			case <-ctx.Done():
			}
		})}
		if e.sink != nil {
			sinks = append(sinks, e.sink)
		}
		if _, err := e.run(ctx, st, budget, sinks); err != nil {
			errc <- err
		}
	}()
	return events, errc
}

func (e *Executor) run(ctx context.Context, st *State, budget Budget, sink Sink) (Result, error) {
	var res Result
	if st == nil {
		res.Halt = HaltError
		return res, configErrorf("nil state")
	}
	if budget.MaxSteps <= 0 && ctx.Done() == nil {
		res.Halt = HaltError
		return res, configErrorf("no halting condition: step budget is unbounded and the context cannot be cancelled")
	}
	st.fill()
	logger := log.With(map[string]any{"run_id": st.RunID})

	for {
		if st.CurrentStep == End {
			res.Halt = HaltTerminal
			logger.Infof("Run reached the end after %d step(s)", res.Steps)
			return res, nil
		}
		if budget.MaxSteps > 0 && res.Steps >= budget.MaxSteps {
			res.Halt = HaltBudget
			logger.Infof("Run stopped at %s: step budget %d exhausted", st.CurrentStep, budget.MaxSteps)
			return res, nil
		}
		if err := ctx.Err(); err != nil {
			res.Halt = HaltCancelled
			logger.Infof("Run cancelled before %s: %v", st.CurrentStep, err)
			return res, err
		}

		step := st.CurrentStep
		h, err := e.registry.Lookup(step)
		if err != nil {
			return e.fail(&res, st, step, err)
		}
		if err := h.Run(ctx, st, e.client); err != nil {
			return e.fail(&res, st, step, err)
		}
		next, err := e.transitions.Resolve(step, st)
		if err != nil {
			return e.fail(&res, st, step, err)
		}
		st.CurrentStep = next
		res.Steps++
		res.Visited = append(res.Visited, step)
		res.LastCompleted = step
		logger.Debugf("[%d] %s -> %s", res.Steps, step, next)

		if sink != nil {
			sink.OnEvent(Event{
				RunID:     st.RunID,
				Step:      step,
				Next:      next,
				Iteration: res.Steps,
				Artifacts: snapshots(h, st),
				Timestamp: e.now(),
			})
		}
	}
}

func (e *Executor) fail(res *Result, st *State, step StepID, err error) (Result, error) {
	st.CurrentStep = step
	res.Halt = HaltError
	log.Error("Run %s halted at %s: %v", st.RunID, step, err)
	return *res, err
}

func snapshots(h Handler, st *State) []artifact.Snapshot {
	w, ok := h.(ArtifactWriter)
	if !ok {
		return nil
	}
	kinds := w.Writes()
	out := make([]artifact.Snapshot, 0, len(kinds))
	for _, kind := range kinds {
		out = append(out, artifact.NewSnapshot(kind, st.artifactOf(kind)))
	}
	return out
}
