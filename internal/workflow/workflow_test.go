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
	"errors"
	"testing"
	"time"

	"github.com/cloudwego/devflow/internal/artifact"
	"github.com/cloudwego/devflow/llm"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stepTo returns a handler that logs one entry and moves to next.
func stepTo(next StepID, write func(st *State)) HandlerFunc {
	return func(ctx context.Context, st *State, client llm.Client) error {
		if write != nil {
			write(st)
		}
		st.Append("ai", "ran "+string(st.CurrentStep))
		st.CurrentStep = next
		return nil
	}
}

type writingHandler struct {
	HandlerFunc
	kinds []string
}

func (w writingHandler) Writes() []string { return w.kinds }

func TestStateDefaults(t *testing.T) {
	st := NewState(CollectRequirements, WithInputs(map[string]any{"brief": "todo app"}))
	_, err := ulid.ParseStrict(st.RunID)
	assert.NoError(t, err)
	assert.Equal(t, CollectRequirements, st.CurrentStep)
	assert.Empty(t, st.History)
	assert.Empty(t, st.UserStories)
	assert.Empty(t, st.Feedback)
	assert.Equal(t, "todo app", st.UserInputs["brief"])

	other := NewState(CollectRequirements)
	assert.NotEqual(t, st.RunID, other.RunID)
}

func TestStateAppendMonotonic(t *testing.T) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := []time.Time{base, base.Add(-time.Hour), base.Add(time.Minute)}
	i := 0
	st := NewState(CollectRequirements, WithStateClock(func() time.Time {
		ts := clock[i]
		i++
		return ts
	}))
	st.Append("ai", "one")
	st.Append("ai", "two")
	st.Append("ai", "three")
	require.Len(t, st.History, 3)
	assert.Equal(t, base, st.History[1].Timestamp)
	assert.Equal(t, base.Add(time.Minute), st.History[2].Timestamp)
	for k := 1; k < len(st.History); k++ {
		assert.False(t, st.History[k].Timestamp.Before(st.History[k-1].Timestamp))
	}
}

func TestParseStepID(t *testing.T) {
	id, err := ParseStepID("design_review")
	require.NoError(t, err)
	assert.Equal(t, DesignReview, id)

	id, err = ParseStepID("end")
	require.NoError(t, err)
	assert.Equal(t, End, id)

	_, err = ParseStepID("code_reveiw")
	var use *UnknownStepError
	assert.True(t, errors.As(err, &use))
	assert.Len(t, Steps(), 20)
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(CollectRequirements, stepTo(GenerateUserStories, nil)))

	var ce *ConfigurationError
	assert.True(t, errors.As(reg.Register(CollectRequirements, stepTo(End, nil)), &ce))
	assert.True(t, errors.As(reg.Register(End, stepTo(End, nil)), &ce))
	assert.True(t, errors.As(reg.Register(Deployment, nil), &ce))

	_, err := reg.Lookup(Deployment)
	var use *UnknownStepError
	require.True(t, errors.As(err, &use))
	assert.Equal(t, Deployment, use.Step)

	h, err := reg.Lookup(CollectRequirements)
	require.NoError(t, err)
	assert.NotNil(t, h)
}

func TestGateDecision(t *testing.T) {
	gate, err := NewGateDecision(DesignReview, GenerateCode, ReviseDesignDocuments, "")
	require.NoError(t, err)
	assert.Equal(t, []StepID{GenerateCode, ReviseDesignDocuments}, gate.Targets())

	tests := []struct {
		name     string
		feedback map[string]artifact.Record
		want     StepID
		missing  bool
	}{
		{"approved", map[string]artifact.Record{"design_review": {"approved": true}}, GenerateCode, false},
		{"rejected", map[string]artifact.Record{"design_review": {"approved": false}}, ReviseDesignDocuments, false},
		{"no record", map[string]artifact.Record{"code_review": {"approved": true}}, "", true},
		{"no approved key", map[string]artifact.Record{"design_review": {"feedback": map[string]any{}}}, "", true},
		{"not a bool", map[string]artifact.Record{"design_review": {"approved": "yes"}}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := NewState(DesignReview)
			st.Feedback = tt.feedback
			got, err := gate.Evaluate(st)
			if tt.missing {
				var mfe *MissingFeedbackError
				require.True(t, errors.As(err, &mfe), "got %v", err)
				assert.Equal(t, DesignReview, mfe.Gate)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGateDecision_CustomCondition(t *testing.T) {
	gate, err := NewGateDecision(CodeReview, SecurityReview, FixCodeAfterReview, "approved && score >= 8")
	require.NoError(t, err)

	st := NewState(CodeReview)
	st.SetFeedback(CodeReview, artifact.Record{"approved": true, "score": float64(9)})
	next, err := gate.Evaluate(st)
	require.NoError(t, err)
	assert.Equal(t, SecurityReview, next)

	st.SetFeedback(CodeReview, artifact.Record{"approved": true, "score": float64(7)})
	next, err = gate.Evaluate(st)
	require.NoError(t, err)
	assert.Equal(t, FixCodeAfterReview, next)

	st.SetFeedback(CodeReview, artifact.Record{"approved": true})
	_, err = gate.Evaluate(st)
	var mfe *MissingFeedbackError
	require.True(t, errors.As(err, &mfe))
	assert.Equal(t, "code_review.score", mfe.Key)

	_, err = NewGateDecision(CodeReview, SecurityReview, FixCodeAfterReview, "approved &&")
	var ce *ConfigurationError
	assert.True(t, errors.As(err, &ce))
	_, err = NewGateDecision(CodeReview, SecurityReview, FixCodeAfterReview, "true")
	assert.True(t, errors.As(err, &ce))
}

func TestQADecision(t *testing.T) {
	qa, err := NewQADecision(QATesting, Deployment, FixCodeAfterQA, "")
	require.NoError(t, err)

	st := NewState(QATesting)
	_, err = qa.Evaluate(st)
	var mfe *MissingFeedbackError
	require.True(t, errors.As(err, &mfe))
	assert.Equal(t, KindQAResults, mfe.Key)

	st.QAResults = artifact.Record{"passed": true, "pass_rate": float64(100)}
	next, err := qa.Evaluate(st)
	require.NoError(t, err)
	assert.Equal(t, Deployment, next)

	st.QAResults = artifact.Record{"passed": false, "pass_rate": float64(40)}
	next, err = qa.Evaluate(st)
	require.NoError(t, err)
	assert.Equal(t, FixCodeAfterQA, next)
}

type fixedDecision struct {
	next    StepID
	targets []StepID
}

func (d fixedDecision) Evaluate(*State) (StepID, error) { return d.next, nil }
func (d fixedDecision) Targets() []StepID               { return d.targets }

func TestTransitions_Resolve(t *testing.T) {
	tr := NewTransitions()
	require.NoError(t, tr.Edge(ReviseUserStories, ProductOwnerReview))
	require.NoError(t, tr.Branch(Monitoring, fixedDecision{next: Deployment, targets: []StepID{Maintenance}}))

	next, err := tr.Resolve(ReviseUserStories, NewState(ReviseUserStories))
	require.NoError(t, err)
	assert.Equal(t, ProductOwnerReview, next)

	var use *UnknownStepError
	_, err = tr.Resolve(Monitoring, NewState(Monitoring))
	assert.True(t, errors.As(err, &use), "undeclared target")
	_, err = tr.Resolve(Deployment, NewState(Deployment))
	assert.True(t, errors.As(err, &use), "no route")

	var ce *ConfigurationError
	assert.True(t, errors.As(tr.Edge(ReviseUserStories, End), &ce), "duplicate route")
	assert.True(t, errors.As(tr.Branch(Deployment, fixedDecision{}), &ce), "no targets")
}

func TestTransitions_Validate(t *testing.T) {
	newReg := func(ids ...StepID) *Registry {
		reg := NewRegistry()
		for _, id := range ids {
			require.NoError(t, reg.Register(id, stepTo(End, nil)))
		}
		return reg
	}
	gate := func() Decision {
		d, err := NewGateDecision(ProductOwnerReview, CreateDesignDocuments, ReviseUserStories, "")
		require.NoError(t, err)
		return d
	}
	var ce *ConfigurationError

	t.Run("valid", func(t *testing.T) {
		tr := NewTransitions()
		require.NoError(t, tr.Branch(ProductOwnerReview, gate()))
		require.NoError(t, tr.Edge(ReviseUserStories, ProductOwnerReview))
		require.NoError(t, tr.Edge(CreateDesignDocuments, End))
		assert.NoError(t, tr.Validate(newReg(ProductOwnerReview, ReviseUserStories, CreateDesignDocuments)))
	})
	t.Run("dangling target", func(t *testing.T) {
		tr := NewTransitions()
		require.NoError(t, tr.Edge(CreateDesignDocuments, DesignReview))
		assert.True(t, errors.As(tr.Validate(newReg(CreateDesignDocuments)), &ce))
	})
	t.Run("registered step without route", func(t *testing.T) {
		tr := NewTransitions()
		require.NoError(t, tr.Edge(CreateDesignDocuments, End))
		assert.True(t, errors.As(tr.Validate(newReg(CreateDesignDocuments, DesignReview)), &ce))
	})
	t.Run("fix step leaves the loop", func(t *testing.T) {
		tr := NewTransitions()
		require.NoError(t, tr.Branch(ProductOwnerReview, gate()))
		require.NoError(t, tr.Edge(ReviseUserStories, CreateDesignDocuments))
		require.NoError(t, tr.Edge(CreateDesignDocuments, End))
		assert.True(t, errors.As(tr.Validate(newReg(ProductOwnerReview, ReviseUserStories, CreateDesignDocuments)), &ce))
	})
	t.Run("fix step is conditional", func(t *testing.T) {
		tr := NewTransitions()
		require.NoError(t, tr.Branch(ProductOwnerReview, gate()))
		require.NoError(t, tr.Branch(ReviseUserStories, fixedDecision{next: ProductOwnerReview, targets: []StepID{ProductOwnerReview}}))
		require.NoError(t, tr.Edge(CreateDesignDocuments, End))
		assert.True(t, errors.As(tr.Validate(newReg(ProductOwnerReview, ReviseUserStories, CreateDesignDocuments)), &ce))
	})
}
