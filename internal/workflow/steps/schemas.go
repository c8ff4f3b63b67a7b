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
	"github.com/cloudwego/devflow/internal/workflow"
	"github.com/cloudwego/devflow/llm"
)

// The types below only describe output shapes; payloads travel as
// artifact.Record.

type Requirements struct {
	RequirementsDocument string `json:"requirements_document" jsonschema_description:"Detailed requirements document"`
}

type UserStory struct {
	ID                 string   `json:"id" jsonschema_description:"Unique identifier for the user story (US-XXX)"`
	UserType           string   `json:"user_type" jsonschema_description:"Type of user"`
	Action             string   `json:"action" jsonschema_description:"What the user wants to do"`
	Benefit            string   `json:"benefit" jsonschema_description:"The benefit or value to the user"`
	AcceptanceCriteria []string `json:"acceptance_criteria" jsonschema_description:"List of acceptance criteria"`
	Priority           string   `json:"priority" jsonschema_description:"Priority (High, Medium, Low)"`
}

type UserStories struct {
	UserStories []UserStory `json:"user_stories" jsonschema_description:"List of user stories"`
}

type StoryReview struct {
	Approved bool              `json:"approved" jsonschema_description:"Whether the stories are approved overall"`
	Feedback map[string]string `json:"feedback" jsonschema_description:"Feedback for each story by ID"`
}

type DesignDocuments struct {
	SystemArchitecture      map[string]any   `json:"system_architecture" jsonschema_description:"System architecture overview"`
	Components              []map[string]any `json:"components" jsonschema_description:"Component descriptions and diagrams"`
	DataModels              []map[string]any `json:"data_models" jsonschema_description:"Data models and relationships"`
	APISpecifications       []map[string]any `json:"api_specifications" jsonschema_description:"API endpoints and specifications"`
	TechnicalConsiderations []string         `json:"technical_considerations" jsonschema_description:"Technical considerations and constraints"`
}

type DesignReview struct {
	Approved bool                `json:"approved" jsonschema_description:"Whether the design is approved overall"`
	Feedback map[string][]string `json:"feedback" jsonschema_description:"Feedback for each section"`
}

type CodeBase struct {
	Components        map[string]string   `json:"components" jsonschema_description:"Code for each component"`
	FileStructure     map[string][]string `json:"file_structure" jsonschema_description:"File structure for the codebase"`
	SetupInstructions []string            `json:"setup_instructions" jsonschema_description:"Instructions for setting up the codebase"`
}

type ReviewedCodeBase struct {
	CodeBase
	ChangesMade map[string][]string `json:"changes_made" jsonschema_description:"Summary of changes made to address feedback"`
}

type SecuredCodeBase struct {
	CodeBase
	SecurityFixes map[string][]string `json:"security_fixes" jsonschema_description:"Summary of security fixes implemented"`
}

type QAFixedCodeBase struct {
	CodeBase
	Fixes map[string]string `json:"fixes" jsonschema_description:"Fixes implemented for each defect"`
}

type CodeReview struct {
	Approved       bool                `json:"approved" jsonschema_description:"Whether the code is approved overall"`
	Feedback       map[string][]string `json:"feedback" jsonschema_description:"Feedback for each component"`
	SecurityIssues []map[string]any    `json:"security_issues" jsonschema_description:"Potential security issues identified"`
}

type SecurityReview struct {
	Approved        bool             `json:"approved" jsonschema_description:"Whether the code passes security review"`
	Vulnerabilities []map[string]any `json:"vulnerabilities" jsonschema_description:"Identified security vulnerabilities"`
	Recommendations []string         `json:"recommendations" jsonschema_description:"Security improvement recommendations"`
}

type TestCase struct {
	ID                 string   `json:"id" jsonschema_description:"Unique identifier for the test case (TC-XXX)"`
	Name               string   `json:"name" jsonschema_description:"Name of the test case"`
	Description        string   `json:"description" jsonschema_description:"Description of what is being tested"`
	TestType           string   `json:"test_type" jsonschema_description:"Type of test (Unit, Integration, System, etc.)"`
	Prerequisites      []string `json:"prerequisites" jsonschema_description:"Prerequisites for running the test"`
	TestSteps          []string `json:"test_steps" jsonschema_description:"Steps to execute the test"`
	ExpectedResults    []string `json:"expected_results" jsonschema_description:"Expected results for each step"`
	RelatedUserStories []string `json:"related_user_stories" jsonschema_description:"IDs of related user stories"`
}

type TestCases struct {
	TestCases    []TestCase         `json:"test_cases" jsonschema_description:"List of test cases"`
	TestCoverage map[string]float64 `json:"test_coverage" jsonschema_description:"Test coverage metrics"`
}

type RevisedTestCases struct {
	TestCases   []TestCase          `json:"test_cases" jsonschema_description:"List of revised test cases"`
	ChangesMade map[string][]string `json:"changes_made" jsonschema_description:"Summary of changes made to address feedback"`
}

type TestCasesReview struct {
	Approved        bool                `json:"approved" jsonschema_description:"Whether the test cases are approved overall"`
	Feedback        map[string][]string `json:"feedback" jsonschema_description:"Feedback for test cases by ID"`
	MissingCoverage []string            `json:"missing_coverage" jsonschema_description:"Areas with missing test coverage"`
}

type TestResult struct {
	TestCaseID string   `json:"test_case_id" jsonschema_description:"ID of the test case"`
	Status     string   `json:"status" jsonschema_description:"Status (Pass/Fail)"`
	Issues     []string `json:"issues" jsonschema_description:"Issues found if failed"`
}

type TestingResults struct {
	Passed   bool             `json:"passed" jsonschema_description:"Whether all tests passed"`
	Results  []TestResult     `json:"results" jsonschema_description:"Results for each test case"`
	Defects  []map[string]any `json:"defects" jsonschema_description:"Detailed defects found"`
	PassRate float64          `json:"pass_rate" jsonschema_description:"Percentage of tests that passed"`
}

type DeploymentPlan struct {
	Strategy          string                    `json:"strategy" jsonschema_description:"Deployment strategy"`
	Environments      map[string]map[string]any `json:"environments" jsonschema_description:"Environment configurations"`
	Steps             []string                  `json:"steps" jsonschema_description:"Deployment steps"`
	RollbackPlan      []string                  `json:"rollback_plan" jsonschema_description:"Rollback plan"`
	Monitoring        map[string][]string       `json:"monitoring" jsonschema_description:"Monitoring setup"`
	DeploymentOutcome string                    `json:"deployment_outcome" jsonschema_description:"Outcome of the deployment"`
}

type MonitoringResults struct {
	Metrics         map[string]map[string]any `json:"metrics" jsonschema_description:"Key performance metrics"`
	Alerts          []map[string]any          `json:"alerts" jsonschema_description:"Alerts triggered"`
	UserFeedback    map[string]float64        `json:"user_feedback" jsonschema_description:"User feedback metrics"`
	Insights        []string                  `json:"insights" jsonschema_description:"Insights from monitoring"`
	Recommendations []string                  `json:"recommendations" jsonschema_description:"Recommendations for improvements"`
}

type MaintenancePlan struct {
	Improvements         []map[string]any    `json:"improvements" jsonschema_description:"Planned improvements"`
	BugFixes             []map[string]any    `json:"bug_fixes" jsonschema_description:"Bug fixes to implement"`
	FeatureEnhancements  []map[string]any    `json:"feature_enhancements" jsonschema_description:"Feature enhancements to develop"`
	ScheduledMaintenance map[string][]string `json:"scheduled_maintenance" jsonschema_description:"Scheduled maintenance activities"`
	Notes                []string            `json:"notes" jsonschema_description:"Short notes for the next requirements pass"`
}

// Output schemas, named after the step that requests them.
var (
	schemaRequirements     = llm.SchemaFor[Requirements](string(workflow.CollectRequirements))
	schemaUserStories      = llm.SchemaFor[UserStories](string(workflow.GenerateUserStories))
	schemaStoryReview      = llm.SchemaFor[StoryReview](string(workflow.ProductOwnerReview))
	schemaRevisedStories   = llm.SchemaFor[UserStories](string(workflow.ReviseUserStories))
	schemaDesign           = llm.SchemaFor[DesignDocuments](string(workflow.CreateDesignDocuments))
	schemaDesignReview     = llm.SchemaFor[DesignReview](string(workflow.DesignReview))
	schemaRevisedDesign    = llm.SchemaFor[DesignDocuments](string(workflow.ReviseDesignDocuments))
	schemaCode             = llm.SchemaFor[CodeBase](string(workflow.GenerateCode))
	schemaCodeReview       = llm.SchemaFor[CodeReview](string(workflow.CodeReview))
	schemaReviewedCode     = llm.SchemaFor[ReviewedCodeBase](string(workflow.FixCodeAfterReview))
	schemaSecurityReview   = llm.SchemaFor[SecurityReview](string(workflow.SecurityReview))
	schemaSecuredCode      = llm.SchemaFor[SecuredCodeBase](string(workflow.FixCodeAfterSecurity))
	schemaTestCases        = llm.SchemaFor[TestCases](string(workflow.WriteTestCases))
	schemaTestCasesReview  = llm.SchemaFor[TestCasesReview](string(workflow.TestCasesReview))
	schemaRevisedTestCases = llm.SchemaFor[RevisedTestCases](string(workflow.FixTestCases))
	schemaTestingResults   = llm.SchemaFor[TestingResults](string(workflow.QATesting))
	schemaQAFixedCode      = llm.SchemaFor[QAFixedCodeBase](string(workflow.FixCodeAfterQA))
	schemaDeployment       = llm.SchemaFor[DeploymentPlan](string(workflow.Deployment))
	schemaMonitoring       = llm.SchemaFor[MonitoringResults](string(workflow.Monitoring))
	schemaMaintenance      = llm.SchemaFor[MaintenancePlan](string(workflow.Maintenance))
)

// Schema returns the output schema requested by step.
func Schema(step workflow.StepID) (*llm.OutputSchema, bool) {
	s, ok := schemas[step]
	return s, ok
}

var schemas = map[workflow.StepID]*llm.OutputSchema{
	workflow.CollectRequirements:   schemaRequirements,
	workflow.GenerateUserStories:   schemaUserStories,
	workflow.ProductOwnerReview:    schemaStoryReview,
	workflow.ReviseUserStories:     schemaRevisedStories,
	workflow.CreateDesignDocuments: schemaDesign,
	workflow.DesignReview:          schemaDesignReview,
	workflow.ReviseDesignDocuments: schemaRevisedDesign,
	workflow.GenerateCode:          schemaCode,
	workflow.CodeReview:            schemaCodeReview,
	workflow.FixCodeAfterReview:    schemaReviewedCode,
	workflow.SecurityReview:        schemaSecurityReview,
	workflow.FixCodeAfterSecurity:  schemaSecuredCode,
	workflow.WriteTestCases:        schemaTestCases,
	workflow.TestCasesReview:       schemaTestCasesReview,
	workflow.FixTestCases:          schemaRevisedTestCases,
	workflow.QATesting:             schemaTestingResults,
	workflow.FixCodeAfterQA:        schemaQAFixedCode,
	workflow.Deployment:            schemaDeployment,
	workflow.Monitoring:            schemaMonitoring,
	workflow.Maintenance:           schemaMaintenance,
}
