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
	"fmt"

	"github.com/Knetic/govaluate"
	"github.com/cloudwego/devflow/internal/artifact"
)

const (
	DefaultGateCondition = "approved"
	DefaultQACondition   = "passed"
)

// GateDecision routes a gate step to Forward when its condition holds over
// the gate's record and to Fix otherwise. The condition is a govaluate
// expression whose variables are top-level record fields.
type GateDecision struct {
	Gate      StepID
	Forward   StepID
	Fix       StepID
	Condition string

	source func(*State) (artifact.Record, bool)
	key    string
	expr   *govaluate.EvaluableExpression
}

// NewGateDecision reads the record st.Feedback[gate]. An empty condition
// means "approved".
func NewGateDecision(gate, forward, fix StepID, condition string) (*GateDecision, error) {
	if condition == "" {
		condition = DefaultGateCondition
	}
	d := &GateDecision{
		Gate:      gate,
		Forward:   forward,
		Fix:       fix,
		Condition: condition,
		key:       string(gate),
		source: func(st *State) (artifact.Record, bool) {
			return st.FeedbackFor(gate)
		},
	}
	return d, d.compile()
}

// NewQADecision reads st.QAResults. An empty condition means "passed".
func NewQADecision(gate, forward, fix StepID, condition string) (*GateDecision, error) {
	if condition == "" {
		condition = DefaultQACondition
	}
	d := &GateDecision{
		Gate:      gate,
		Forward:   forward,
		Fix:       fix,
		Condition: condition,
		key:       KindQAResults,
		source: func(st *State) (artifact.Record, bool) {
			return st.QAResults, st.QAResults != nil
		},
	}
	return d, d.compile()
}

// CompileCondition checks that condition parses as a gate expression.
func CompileCondition(condition string) error {
	_, err := govaluate.NewEvaluableExpression(condition)
	if err != nil {
		return &ConfigurationError{Reason: fmt.Sprintf("invalid gate condition %q: %v", condition, err)}
	}
	return nil
}

func (d *GateDecision) compile() error {
	expr, err := govaluate.NewEvaluableExpression(d.Condition)
	if err != nil {
		return configErrorf("gate %s: invalid condition %q: %v", d.Gate, d.Condition, err)
	}
	if len(expr.Vars()) == 0 {
		return configErrorf("gate %s: condition %q reads no feedback field", d.Gate, d.Condition)
	}
	d.expr = expr
	return nil
}

// Evaluate implements Decision. A missing record, a missing variable, or a
// non-boolean result is a MissingFeedbackError; it never defaults to Fix.
func (d *GateDecision) Evaluate(st *State) (StepID, error) {
	rec, ok := d.source(st)
	if !ok || rec == nil {
		return "", &MissingFeedbackError{Gate: d.Gate, Key: d.key, Reason: "no record"}
	}
	params := make(map[string]interface{}, len(rec))
	for _, v := range d.expr.Vars() {
		val, ok := rec[v]
		if !ok {
			return "", &MissingFeedbackError{Gate: d.Gate, Key: d.key + "." + v, Reason: "field absent"}
		}
		params[v] = val
	}
	out, err := d.expr.Evaluate(params)
	if err != nil {
		return "", &MissingFeedbackError{Gate: d.Gate, Key: d.key, Reason: err.Error()}
	}
	pass, ok := out.(bool)
	if !ok {
		return "", &MissingFeedbackError{
			Gate:   d.Gate,
			Key:    d.key,
			Reason: fmt.Sprintf("condition %q yields %T, want bool", d.Condition, out),
		}
	}
	if pass {
		return d.Forward, nil
	}
	return d.Fix, nil
}

// Targets implements Decision.
func (d *GateDecision) Targets() []StepID {
	return []StepID{d.Forward, d.Fix}
}

func (d *GateDecision) GateStep() StepID { return d.Gate }

func (d *GateDecision) FixStep() StepID { return d.Fix }
