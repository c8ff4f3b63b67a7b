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

// Package workflow is the development-lifecycle state machine: a registry of
// step handlers, a transition table with gated branches, and an executor that
// drives one State through them under an explicit budget.
package workflow

// StepID names a workflow step.
type StepID string

// End is the terminal marker. It is never registered; resolving to it stops
// the executor.
const End StepID = "__end__"

const (
	CollectRequirements   StepID = "collect_requirements"
	GenerateUserStories   StepID = "generate_user_stories"
	ProductOwnerReview    StepID = "product_owner_review"
	ReviseUserStories     StepID = "revise_user_stories"
	CreateDesignDocuments StepID = "create_design_documents"
	DesignReview          StepID = "design_review"
	ReviseDesignDocuments StepID = "revise_design_documents"
	GenerateCode          StepID = "generate_code"
	CodeReview            StepID = "code_review"
	FixCodeAfterReview    StepID = "fix_code_after_review"
	SecurityReview        StepID = "security_review"
	FixCodeAfterSecurity  StepID = "fix_code_after_security"
	WriteTestCases        StepID = "write_test_cases"
	TestCasesReview       StepID = "test_cases_review"
	FixTestCases          StepID = "fix_test_cases"
	QATesting             StepID = "qa_testing"
	FixCodeAfterQA        StepID = "fix_code_after_qa"
	Deployment            StepID = "deployment"
	Monitoring            StepID = "monitoring"
	Maintenance           StepID = "maintenance"
)

var knownSteps = []StepID{
	CollectRequirements,
	GenerateUserStories,
	ProductOwnerReview,
	ReviseUserStories,
	CreateDesignDocuments,
	DesignReview,
	ReviseDesignDocuments,
	GenerateCode,
	CodeReview,
	FixCodeAfterReview,
	SecurityReview,
	FixCodeAfterSecurity,
	WriteTestCases,
	TestCasesReview,
	FixTestCases,
	QATesting,
	FixCodeAfterQA,
	Deployment,
	Monitoring,
	Maintenance,
}

// Steps returns the development-lifecycle steps in phase order.
func Steps() []StepID {
	return append([]StepID(nil), knownSteps...)
}

// ParseStepID maps a name to a known step. "end" and End's own name both
// yield End.
func ParseStepID(s string) (StepID, error) {
	if s == "end" || s == string(End) {
		return End, nil
	}
	for _, id := range knownSteps {
		if string(id) == s {
			return id, nil
		}
	}
	return "", &UnknownStepError{Step: StepID(s)}
}

func (s StepID) String() string {
	return string(s)
}
