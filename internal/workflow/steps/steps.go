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
	"strings"

	"github.com/cloudwego/devflow/internal/artifact"
	"github.com/cloudwego/devflow/internal/workflow"
	"github.com/cloudwego/devflow/llm/prompt"
)

// BriefKey is the UserInputs key holding the project brief.
const BriefKey = "brief"

const requirementsKey = "requirements_document"

func feedbackOf(st *workflow.State, gate workflow.StepID) artifact.Record {
	rec, _ := st.FeedbackFor(gate)
	return rec
}

// defineSteps returns all handlers in phase order.
func defineSteps(p *prompt.Library) []*Step {
	fb := workflow.FeedbackKind
	return []*Step{
		{
			ID: workflow.CollectRequirements, Next: workflow.GenerateUserStories,
			Schema: schemaRequirements, Kinds: []string{workflow.KindUserInputs},
			prompts: p, history: true,
			task: func(st *workflow.State) string {
				var b strings.Builder
				b.WriteString("Please provide your project requirements.")
				if brief, _ := st.UserInputs[BriefKey].(string); brief != "" {
					fmt.Fprintf(&b, "\n\nProject brief:\n%s", brief)
				}
				if len(st.MaintenanceNotes) > 0 {
					fmt.Fprintf(&b, "\n\nMaintenance notes from the previous cycle:\n- %s", strings.Join(st.MaintenanceNotes, "\n- "))
				}
				return b.String()
			},
			apply: func(st *workflow.State, rec artifact.Record) string {
				doc := rec.String(requirementsKey)
				st.UserInputs[requirementsKey] = doc
				return "Requirements collected: " + truncate(doc, 100)
			},
		},
		{
			ID: workflow.GenerateUserStories, Next: workflow.ProductOwnerReview,
			Schema: schemaUserStories, Kinds: []string{workflow.KindUserStories}, prompts: p,
			task: func(st *workflow.State) string {
				return "Generate user stories based on these requirements:\n" + st.Requirements()
			},
			apply: func(st *workflow.State, rec artifact.Record) string {
				st.UserStories = rec.Records("user_stories")
				return fmt.Sprintf("Generated %d user stories", len(st.UserStories))
			},
		},
		{
			ID: workflow.ProductOwnerReview, Schema: schemaStoryReview,
			Kinds: []string{fb(workflow.ProductOwnerReview)}, prompts: p,
			task: func(st *workflow.State) string {
				return "Review these user stories:\n" + artifact.Pretty(st.UserStories)
			},
			apply: func(st *workflow.State, rec artifact.Record) string {
				st.SetFeedback(workflow.ProductOwnerReview, rec)
				return "Product owner review: " + verdict(rec, "approved", "Approved", "Needs revision")
			},
		},
		{
			ID: workflow.ReviseUserStories, Next: workflow.ProductOwnerReview,
			Schema: schemaRevisedStories, Kinds: []string{workflow.KindUserStories}, prompts: p,
			task: func(st *workflow.State) string {
				return fmt.Sprintf("Revise these user stories:\n%s\n\nBased on this feedback:\n%s",
					artifact.Pretty(st.UserStories), artifact.Pretty(feedbackOf(st, workflow.ProductOwnerReview)))
			},
			apply: func(st *workflow.State, rec artifact.Record) string {
				st.UserStories = rec.Records("user_stories")
				return "User stories revised based on feedback"
			},
		},
		{
			ID: workflow.CreateDesignDocuments, Next: workflow.DesignReview,
			Schema: schemaDesign, Kinds: []string{workflow.KindDesignDocuments}, prompts: p,
			task: func(st *workflow.State) string {
				return fmt.Sprintf("Create design documents based on these requirements:\n%s\n\nAnd these user stories:\n%s",
					st.Requirements(), artifact.Pretty(st.UserStories))
			},
			apply: func(st *workflow.State, rec artifact.Record) string {
				st.DesignDocuments = rec
				return "Design documents created"
			},
		},
		{
			ID: workflow.DesignReview, Schema: schemaDesignReview,
			Kinds: []string{fb(workflow.DesignReview)}, prompts: p,
			task: func(st *workflow.State) string {
				return "Review these design documents:\n" + artifact.Pretty(st.DesignDocuments)
			},
			apply: func(st *workflow.State, rec artifact.Record) string {
				st.SetFeedback(workflow.DesignReview, rec)
				return "Design review: " + verdict(rec, "approved", "Approved", "Needs revision")
			},
		},
		{
			ID: workflow.ReviseDesignDocuments, Next: workflow.DesignReview,
			Schema: schemaRevisedDesign, Kinds: []string{workflow.KindDesignDocuments}, prompts: p,
			task: func(st *workflow.State) string {
				return fmt.Sprintf("Revise these design documents:\n%s\n\nBased on this feedback:\n%s",
					artifact.Pretty(st.DesignDocuments), artifact.Pretty(feedbackOf(st, workflow.DesignReview)))
			},
			apply: func(st *workflow.State, rec artifact.Record) string {
				st.DesignDocuments = rec
				return "Design documents revised based on feedback"
			},
		},
		{
			ID: workflow.GenerateCode, Next: workflow.CodeReview,
			Schema: schemaCode, Kinds: []string{workflow.KindCode}, prompts: p,
			task: func(st *workflow.State) string {
				return fmt.Sprintf("Generate code based on these design documents:\n%s\n\nTo implement these user stories:\n%s",
					artifact.Pretty(st.DesignDocuments), artifact.Pretty(st.UserStories))
			},
			apply: func(st *workflow.State, rec artifact.Record) string {
				st.Code = rec
				return "Code generated for implementation"
			},
		},
		{
			ID: workflow.CodeReview, Schema: schemaCodeReview,
			Kinds: []string{fb(workflow.CodeReview)}, prompts: p,
			task: func(st *workflow.State) string {
				return "Review this code:\n" + artifact.Pretty(st.Code)
			},
			apply: func(st *workflow.State, rec artifact.Record) string {
				st.SetFeedback(workflow.CodeReview, rec)
				return "Code review: " + verdict(rec, "approved", "Approved", "Needs revision")
			},
		},
		{
			ID: workflow.FixCodeAfterReview, Next: workflow.CodeReview,
			Schema: schemaReviewedCode, Kinds: []string{workflow.KindCode}, prompts: p,
			task: func(st *workflow.State) string {
				return fmt.Sprintf("Fix this code:\n%s\n\nBased on this feedback:\n%s",
					artifact.Pretty(st.Code), artifact.Pretty(feedbackOf(st, workflow.CodeReview)))
			},
			apply: func(st *workflow.State, rec artifact.Record) string {
				st.Code = rec
				return "Code fixed based on review feedback"
			},
		},
		{
			ID: workflow.SecurityReview, Schema: schemaSecurityReview,
			Kinds: []string{fb(workflow.SecurityReview)}, prompts: p,
			task: func(st *workflow.State) string {
				return "Conduct a security review of this code:\n" + artifact.Pretty(st.Code)
			},
			apply: func(st *workflow.State, rec artifact.Record) string {
				st.SetFeedback(workflow.SecurityReview, rec)
				return "Security review: " + verdict(rec, "approved", "Approved", "Security issues found")
			},
		},
		{
			ID: workflow.FixCodeAfterSecurity, Next: workflow.SecurityReview,
			Schema: schemaSecuredCode, Kinds: []string{workflow.KindCode}, prompts: p,
			task: func(st *workflow.State) string {
				return fmt.Sprintf("Fix security issues in this code:\n%s\n\nBased on this security review:\n%s",
					artifact.Pretty(st.Code), artifact.Pretty(feedbackOf(st, workflow.SecurityReview)))
			},
			apply: func(st *workflow.State, rec artifact.Record) string {
				st.Code = rec
				return "Code fixed based on security review"
			},
		},
		{
			ID: workflow.WriteTestCases, Next: workflow.TestCasesReview,
			Schema: schemaTestCases, Kinds: []string{workflow.KindTestCases}, prompts: p,
			task: func(st *workflow.State) string {
				return fmt.Sprintf("Create test cases for this code:\n%s\n\nBased on these user stories:\n%s",
					artifact.Pretty(st.Code), artifact.Pretty(st.UserStories))
			},
			apply: func(st *workflow.State, rec artifact.Record) string {
				st.TestCases = rec.Records("test_cases")
				return fmt.Sprintf("Created %d test cases", len(st.TestCases))
			},
		},
		{
			ID: workflow.TestCasesReview, Schema: schemaTestCasesReview,
			Kinds: []string{fb(workflow.TestCasesReview)}, prompts: p,
			task: func(st *workflow.State) string {
				return fmt.Sprintf("Review these test cases:\n%s\n\nAgainst these user stories:\n%s",
					artifact.Pretty(st.TestCases), artifact.Pretty(st.UserStories))
			},
			apply: func(st *workflow.State, rec artifact.Record) string {
				st.SetFeedback(workflow.TestCasesReview, rec)
				return "Test cases review: " + verdict(rec, "approved", "Approved", "Needs revision")
			},
		},
		{
			ID: workflow.FixTestCases, Next: workflow.TestCasesReview,
			Schema: schemaRevisedTestCases, Kinds: []string{workflow.KindTestCases}, prompts: p,
			task: func(st *workflow.State) string {
				return fmt.Sprintf("Fix these test cases:\n%s\n\nBased on this feedback:\n%s",
					artifact.Pretty(st.TestCases), artifact.Pretty(feedbackOf(st, workflow.TestCasesReview)))
			},
			apply: func(st *workflow.State, rec artifact.Record) string {
				st.TestCases = rec.Records("test_cases")
				return "Test cases revised based on feedback"
			},
		},
		{
			ID: workflow.QATesting, Schema: schemaTestingResults,
			Kinds: []string{workflow.KindQAResults}, prompts: p,
			task: func(st *workflow.State) string {
				return fmt.Sprintf("Test this code:\n%s\n\nUsing these test cases:\n%s",
					artifact.Pretty(st.Code), artifact.Pretty(st.TestCases))
			},
			apply: func(st *workflow.State, rec artifact.Record) string {
				st.QAResults = rec
				return fmt.Sprintf("QA testing: %s with %v%% pass rate",
					verdict(rec, "passed", "Passed", "Failed"), rec["pass_rate"])
			},
		},
		{
			ID: workflow.FixCodeAfterQA, Next: workflow.QATesting,
			Schema: schemaQAFixedCode, Kinds: []string{workflow.KindCode}, prompts: p,
			task: func(st *workflow.State) string {
				return fmt.Sprintf("Fix this code:\n%s\n\nBased on these QA results:\n%s",
					artifact.Pretty(st.Code), artifact.Pretty(st.QAResults))
			},
			apply: func(st *workflow.State, rec artifact.Record) string {
				st.Code = rec
				return "Code fixed based on QA testing results"
			},
		},
		{
			ID: workflow.Deployment, Next: workflow.Monitoring,
			Schema: schemaDeployment, Kinds: []string{workflow.KindDeploymentPlan}, prompts: p,
			task: func(st *workflow.State) string {
				return "Create a deployment plan for this code:\n" + artifact.Pretty(st.Code)
			},
			apply: func(st *workflow.State, rec artifact.Record) string {
				st.DeploymentPlan = rec
				return "Deployment plan created and executed"
			},
		},
		{
			ID: workflow.Monitoring, Next: workflow.Maintenance,
			Schema: schemaMonitoring, Kinds: []string{workflow.KindMonitoringResults}, prompts: p,
			task: func(st *workflow.State) string {
				return "Monitor the application deployed with this plan:\n" + artifact.Pretty(st.DeploymentPlan)
			},
			apply: func(st *workflow.State, rec artifact.Record) string {
				st.MonitoringResults = rec
				return "Monitoring data collected and analyzed"
			},
		},
		{
			ID: workflow.Maintenance, Next: workflow.CollectRequirements,
			Schema: schemaMaintenance, prompts: p,
			Kinds: []string{workflow.KindMaintenancePlan, workflow.KindMaintenanceNotes},
			task: func(st *workflow.State) string {
				return fmt.Sprintf("Create a maintenance plan for this code:\n%s\n\nBased on these monitoring results:\n%s",
					artifact.Pretty(st.Code), artifact.Pretty(st.MonitoringResults))
			},
			apply: func(st *workflow.State, rec artifact.Record) string {
				st.MaintenancePlan = rec
				notes := rec.Strings("notes")
				st.MaintenanceNotes = append(st.MaintenanceNotes, notes...)
				return fmt.Sprintf("Maintenance plan created with %d note(s)", len(notes))
			},
		},
	}
}
