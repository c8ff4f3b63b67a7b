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

// Package steps implements the development-lifecycle handlers and assembles
// them with their transition table.
package steps

import (
	"context"
	"fmt"

	"github.com/cloudwego/devflow/internal/artifact"
	"github.com/cloudwego/devflow/internal/workflow"
	"github.com/cloudwego/devflow/llm"
	"github.com/cloudwego/devflow/llm/prompt"
)

const actorAI = "ai"

// Step is a model-backed handler. It builds the task from the state, asks the
// client for one record of its schema, and only then writes to the state.
type Step struct {
	ID     workflow.StepID
	Next   workflow.StepID
	Schema *llm.OutputSchema
	Kinds  []string

	prompts *prompt.Library
	history bool
	task    func(st *workflow.State) string
	// apply writes rec into st and returns the history message.
	apply func(st *workflow.State, rec artifact.Record) string
	// gate, when set, picks the default successor from the written record
	// with the same decision the transition table uses.
	gate *workflow.GateDecision
	// verdictKey is the record field the gate's default condition reads.
	verdictKey string
}

var (
	_ workflow.Handler        = (*Step)(nil)
	_ workflow.ArtifactWriter = (*Step)(nil)
)

// Run implements workflow.Handler.
func (s *Step) Run(ctx context.Context, st *workflow.State, client llm.Client) error {
	spec := llm.PromptSpec{
		System: s.prompts.System(string(s.ID)),
		Task:   s.task(st),
	}
	if s.history {
		spec.History = conversation(st.History)
	}
	rec, err := client.Invoke(ctx, spec, s.Schema)
	if err != nil {
		return &workflow.ModelCallError{Step: s.ID, Err: err}
	}
	msg := s.apply(st, rec)
	next := s.Next
	if s.gate != nil {
		// a missing verdict leaves Next; the transition table reports it
		if to, err := s.gate.Evaluate(st); err == nil {
			next = to
			if s.gate.Condition != s.verdictKey {
				msg += fmt.Sprintf(" (condition %q -> %s)", s.gate.Condition, to)
			}
		}
	}
	st.Append(actorAI, msg)
	st.CurrentStep = next
	return nil
}

// Writes implements workflow.ArtifactWriter.
func (s *Step) Writes() []string {
	return s.Kinds
}

// conversation replays the audit log as chat history.
func conversation(history []workflow.Entry) []llm.Message {
	out := make([]llm.Message, 0, len(history))
	for _, e := range history {
		role := llm.RoleUser
		if e.Actor == actorAI {
			role = llm.RoleAssistant
		}
		out = append(out, llm.Message{Role: role, Content: e.Message})
	}
	return out
}

// verdict labels a gate outcome for the audit log.
func verdict(rec artifact.Record, key, yes, no string) string {
	if ok, _ := rec.Bool(key); ok {
		return yes
	}
	return no
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
