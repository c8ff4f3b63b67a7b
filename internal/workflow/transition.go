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

// Decision chooses the next step after a conditional step. Evaluate must only
// return one of Targets.
type Decision interface {
	Evaluate(st *State) (StepID, error)
	Targets() []StepID
}

// pairedDecision is implemented by gate decisions, whose fix step must loop
// straight back to the gate.
type pairedDecision interface {
	GateStep() StepID
	FixStep() StepID
}

// Route is one outgoing entry of the table.
type Route struct {
	From     StepID
	To       StepID   // set for unconditional edges
	Decision Decision // set for branches
}

// Conditional reports whether the route is a branch.
func (r Route) Conditional() bool {
	return r.Decision != nil
}

// Targets lists every step the route may lead to.
func (r Route) Targets() []StepID {
	if r.Decision != nil {
		return r.Decision.Targets()
	}
	return []StepID{r.To}
}

// Transitions is the table of outgoing routes, one per step.
type Transitions struct {
	routes map[StepID]Route
	order  []StepID
}

func NewTransitions() *Transitions {
	return &Transitions{routes: map[StepID]Route{}}
}

// Edge declares that from always proceeds to to.
func (t *Transitions) Edge(from, to StepID) error {
	if to == "" {
		return configErrorf("edge from %s has no target", from)
	}
	return t.add(Route{From: from, To: to})
}

// Branch declares that d chooses the step after from.
func (t *Transitions) Branch(from StepID, d Decision) error {
	if d == nil {
		return configErrorf("nil decision for step %s", from)
	}
	if len(d.Targets()) == 0 {
		return configErrorf("decision for step %s declares no targets", from)
	}
	return t.add(Route{From: from, Decision: d})
}

func (t *Transitions) add(r Route) error {
	if r.From == "" || r.From == End {
		return configErrorf("cannot add a route from %q", r.From)
	}
	if _, ok := t.routes[r.From]; ok {
		return configErrorf("step %s already has an outgoing route", r.From)
	}
	t.routes[r.From] = r
	t.order = append(t.order, r.From)
	return nil
}

// Terminate replaces the route from step with an edge to End.
func (t *Transitions) Terminate(step StepID) error {
	if _, ok := t.routes[step]; !ok {
		return &UnknownStepError{Step: step, Reason: "no outgoing route to terminate"}
	}
	t.routes[step] = Route{From: step, To: End}
	return nil
}

// Route returns the outgoing route of from.
func (t *Transitions) Route(from StepID) (Route, bool) {
	r, ok := t.routes[from]
	return r, ok
}

// Routes lists all routes in declaration order.
func (t *Transitions) Routes() []Route {
	out := make([]Route, 0, len(t.order))
	for _, from := range t.order {
		out = append(out, t.routes[from])
	}
	return out
}

// Resolve returns the step after from for the given state.
func (t *Transitions) Resolve(from StepID, st *State) (StepID, error) {
	r, ok := t.routes[from]
	if !ok {
		return "", &UnknownStepError{Step: from, Reason: "no outgoing transition"}
	}
	if r.Decision == nil {
		return r.To, nil
	}
	next, err := r.Decision.Evaluate(st)
	if err != nil {
		return "", err
	}
	for _, target := range r.Decision.Targets() {
		if target == next {
			return next, nil
		}
	}
	return "", &UnknownStepError{Step: next, Reason: "not a declared target of " + string(from)}
}

// Validate checks the table against reg: every registered step has a route,
// every route starts at a registered step, every target is registered or End,
// and every gate's fix step loops unconditionally back to that gate.
func (t *Transitions) Validate(reg *Registry) error {
	for _, id := range reg.IDs() {
		if _, ok := t.routes[id]; !ok {
			return configErrorf("step %s has no outgoing route", id)
		}
	}
	for _, from := range t.order {
		r := t.routes[from]
		if !reg.Has(from) {
			return configErrorf("route from unregistered step %s", from)
		}
		for _, target := range r.Targets() {
			if target != End && !reg.Has(target) {
				return configErrorf("step %s leads to unregistered step %s", from, target)
			}
		}
		p, ok := r.Decision.(pairedDecision)
		if !ok {
			continue
		}
		if p.GateStep() != from {
			return configErrorf("gate decision for %s is attached to step %s", p.GateStep(), from)
		}
		fix, ok := t.routes[p.FixStep()]
		if !ok || fix.Conditional() || fix.To != from {
			return configErrorf("fix step %s must lead unconditionally back to gate %s", p.FixStep(), from)
		}
	}
	return nil
}
