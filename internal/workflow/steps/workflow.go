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

package steps

import (
	"fmt"
	"sort"

	"github.com/cloudwego/devflow/internal/workflow"
	"github.com/cloudwego/devflow/llm"
	"github.com/cloudwego/devflow/llm/prompt"
	"github.com/pkg/errors"
)

// Gate pairs a review step with its forward and fix steps.
type Gate struct {
	Step    workflow.StepID
	Forward workflow.StepID
	Fix     workflow.StepID
	// QA gates read the QA results instead of a feedback record.
	QA bool
}

// Gates lists the review gates in phase order.
var Gates = []Gate{
	{Step: workflow.ProductOwnerReview, Forward: workflow.CreateDesignDocuments, Fix: workflow.ReviseUserStories},
	{Step: workflow.DesignReview, Forward: workflow.GenerateCode, Fix: workflow.ReviseDesignDocuments},
	{Step: workflow.CodeReview, Forward: workflow.SecurityReview, Fix: workflow.FixCodeAfterReview},
	{Step: workflow.SecurityReview, Forward: workflow.WriteTestCases, Fix: workflow.FixCodeAfterSecurity},
	{Step: workflow.TestCasesReview, Forward: workflow.QATesting, Fix: workflow.FixTestCases},
	{Step: workflow.QATesting, Forward: workflow.Deployment, Fix: workflow.FixCodeAfterQA, QA: true},
}

// GateOf returns the gate definition for step.
func GateOf(step workflow.StepID) (Gate, bool) {
	for _, g := range Gates {
		if g.Step == step {
			return g, true
		}
	}
	return Gate{}, false
}

type Options struct {
	// Prompts supplies system prompts; nil means the embedded defaults.
	Prompts *prompt.Library
	// Conditions overrides gate conditions by gate step name.
	Conditions map[string]string
	// StopAfter, when set, makes that step lead to workflow.End.
	StopAfter workflow.StepID
}

// Workflow is the assembled development lifecycle.
type Workflow struct {
	Registry    *workflow.Registry
	Transitions *workflow.Transitions
}

// NewDevelopmentWorkflow registers all lifecycle handlers and their
// transition table, then validates the result.
func NewDevelopmentWorkflow(opts Options) (*Workflow, error) {
	lib := opts.Prompts
	if lib == nil {
		var err error
		if lib, err = prompt.NewLibrary(nil, ""); err != nil {
			return nil, err
		}
	}
	for name := range opts.Conditions {
		if _, ok := GateOf(workflow.StepID(name)); !ok {
			return nil, &workflow.ConfigurationError{Reason: fmt.Sprintf("condition for %q, which is not a gate", name)}
		}
	}

	reg := workflow.NewRegistry()
	tr := workflow.NewTransitions()
	for _, s := range defineSteps(lib) {
		if g, ok := GateOf(s.ID); ok {
			d, err := gateDecision(g, opts.Conditions[string(g.Step)])
			if err != nil {
				return nil, err
			}
			s.Next = g.Forward
			s.gate = d
			s.verdictKey = workflow.DefaultGateCondition
			if g.QA {
				s.verdictKey = workflow.DefaultQACondition
			}
			if err := tr.Branch(s.ID, d); err != nil {
				return nil, err
			}
		} else if err := tr.Edge(s.ID, s.Next); err != nil {
			return nil, err
		}
		if err := reg.Register(s.ID, s); err != nil {
			return nil, err
		}
	}
	if opts.StopAfter != "" {
		if err := tr.Terminate(opts.StopAfter); err != nil {
			return nil, &workflow.ConfigurationError{Reason: "stop_after: " + err.Error()}
		}
	}
	if err := tr.Validate(reg); err != nil {
		return nil, err
	}
	return &Workflow{Registry: reg, Transitions: tr}, nil
}

func gateDecision(g Gate, condition string) (*workflow.GateDecision, error) {
	if g.QA {
		return workflow.NewQADecision(g.Step, g.Forward, g.Fix, condition)
	}
	return workflow.NewGateDecision(g.Step, g.Forward, g.Fix, condition)
}

// Executor builds an executor over the workflow for client.
func (w *Workflow) Executor(client llm.Client, opts ...workflow.Option) (*workflow.Executor, error) {
	ex, err := workflow.NewExecutor(w.Registry, w.Transitions, client, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "build executor")
	}
	return ex, nil
}

// RouteInfo describes one outgoing route for display.
type RouteInfo struct {
	From      string   `json:"from"`
	To        []string `json:"to"`
	Condition string   `json:"condition,omitempty"`
	Writes    []string `json:"writes,omitempty"`
}

// Describe lists the routes in phase order.
func (w *Workflow) Describe() []RouteInfo {
	order := map[workflow.StepID]int{}
	for i, id := range workflow.Steps() {
		order[id] = i
	}
	routes := w.Transitions.Routes()
	sort.SliceStable(routes, func(i, j int) bool {
		return order[routes[i].From] < order[routes[j].From]
	})
	out := make([]RouteInfo, 0, len(routes))
	for _, r := range routes {
		info := RouteInfo{From: string(r.From)}
		for _, t := range r.Targets() {
			info.To = append(info.To, string(t))
		}
		if d, ok := r.Decision.(*workflow.GateDecision); ok {
			info.Condition = d.Condition
		}
		if h, err := w.Registry.Lookup(r.From); err == nil {
			if aw, ok := h.(workflow.ArtifactWriter); ok {
				info.Writes = aw.Writes()
			}
		}
		out = append(out, info)
	}
	return out
}
