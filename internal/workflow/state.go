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
	"strings"
	"time"

	"github.com/cloudwego/devflow/internal/artifact"
	"github.com/oklog/ulid/v2"
)

// Artifact kinds, as reported in events and used by handlers' Writes.
const (
	KindUserInputs        = "user_inputs"
	KindUserStories       = "user_stories"
	KindDesignDocuments   = "design_documents"
	KindCode              = "code"
	KindTestCases         = "test_cases"
	KindQAResults         = "qa_results"
	KindDeploymentPlan    = "deployment_plan"
	KindMonitoringResults = "monitoring_results"
	KindMaintenancePlan   = "maintenance_plan"
	KindMaintenanceNotes  = "maintenance_notes"
	KindFeedback          = "feedback"
)

// State is the single mutable record of one run. The executor owns it and
// lends it to one handler at a time. Artifacts are replaced wholesale.
type State struct {
	RunID string `json:"run_id"`

	UserInputs        map[string]any             `json:"user_inputs"`
	UserStories       []artifact.Record          `json:"user_stories"`
	DesignDocuments   artifact.Record            `json:"design_documents"`
	Code              artifact.Record            `json:"code"`
	TestCases         []artifact.Record          `json:"test_cases"`
	QAResults         artifact.Record            `json:"qa_results"`
	DeploymentPlan    artifact.Record            `json:"deployment_plan"`
	MonitoringResults artifact.Record            `json:"monitoring_results"`
	MaintenancePlan   artifact.Record            `json:"maintenance_plan"`
	MaintenanceNotes  []string                   `json:"maintenance_notes"`
	Feedback          map[string]artifact.Record `json:"feedback"`

	CurrentStep StepID  `json:"current_step"`
	History     []Entry `json:"history"`

	now func() time.Time
}

// Entry is an immutable audit log record.
type Entry struct {
	Actor     string    `json:"actor"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

type StateOption func(*State)

// WithStateClock sets the clock used for history timestamps.
func WithStateClock(now func() time.Time) StateOption {
	return func(s *State) { s.now = now }
}

// WithInputs seeds UserInputs, e.g. with the project brief.
func WithInputs(inputs map[string]any) StateOption {
	return func(s *State) {
		for k, v := range inputs {
			s.UserInputs[k] = v
		}
	}
}

// WithRunID overrides the generated run id.
func WithRunID(id string) StateOption {
	return func(s *State) { s.RunID = id }
}

// NewState creates an empty State positioned at entry.
func NewState(entry StepID, opts ...StateOption) *State {
	s := &State{
		RunID:            ulid.Make().String(),
		UserInputs:       map[string]any{},
		UserStories:      []artifact.Record{},
		TestCases:        []artifact.Record{},
		MaintenanceNotes: []string{},
		Feedback:         map[string]artifact.Record{},
		History:          []Entry{},
		CurrentStep:      entry,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// fill replaces nil collections and an empty run id, so a State decoded from
// JSON or built as a literal can be resumed like one from NewState.
func (s *State) fill() {
	if s.RunID == "" {
		s.RunID = ulid.Make().String()
	}
	if s.UserInputs == nil {
		s.UserInputs = map[string]any{}
	}
	if s.UserStories == nil {
		s.UserStories = []artifact.Record{}
	}
	if s.TestCases == nil {
		s.TestCases = []artifact.Record{}
	}
	if s.MaintenanceNotes == nil {
		s.MaintenanceNotes = []string{}
	}
	if s.Feedback == nil {
		s.Feedback = map[string]artifact.Record{}
	}
	if s.History == nil {
		s.History = []Entry{}
	}
}

// Append adds one history entry. Timestamps never go backwards: a clock that
// moved back yields the previous entry's timestamp.
func (s *State) Append(actor, message string) Entry {
	now := time.Now
	if s.now != nil {
		now = s.now
	}
	ts := now()
	if n := len(s.History); n > 0 && ts.Before(s.History[n-1].Timestamp) {
		ts = s.History[n-1].Timestamp
	}
	e := Entry{Actor: actor, Message: message, Timestamp: ts}
	s.History = append(s.History, e)
	return e
}

// SetFeedback stores the review record for gate, replacing any previous one.
func (s *State) SetFeedback(gate StepID, rec artifact.Record) {
	if s.Feedback == nil {
		s.Feedback = map[string]artifact.Record{}
	}
	s.Feedback[string(gate)] = rec
}

// FeedbackFor returns the review record for gate.
func (s *State) FeedbackFor(gate StepID) (artifact.Record, bool) {
	rec, ok := s.Feedback[string(gate)]
	return rec, ok
}

// Requirements returns the requirements document collected so far.
func (s *State) Requirements() string {
	v, _ := s.UserInputs["requirements_document"].(string)
	return v
}

// artifactOf returns the current value of an artifact kind. Feedback kinds
// are written as "feedback.<gate>".
func (s *State) artifactOf(kind string) any {
	switch kind {
	case KindUserInputs:
		return s.UserInputs
	case KindUserStories:
		return s.UserStories
	case KindDesignDocuments:
		return s.DesignDocuments
	case KindCode:
		return s.Code
	case KindTestCases:
		return s.TestCases
	case KindQAResults:
		return s.QAResults
	case KindDeploymentPlan:
		return s.DeploymentPlan
	case KindMonitoringResults:
		return s.MonitoringResults
	case KindMaintenancePlan:
		return s.MaintenancePlan
	case KindMaintenanceNotes:
		return s.MaintenanceNotes
	}
	if gate, ok := strings.CutPrefix(kind, KindFeedback+"."); ok {
		return s.Feedback[gate]
	}
	return nil
}

// FeedbackKind is the artifact kind of gate's review record.
func FeedbackKind(gate StepID) string {
	return KindFeedback + "." + string(gate)
}
