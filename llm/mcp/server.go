/**
 * Copyright 2025 ByteDance Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package mcp exposes the development workflow as MCP tools.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	stdlog "log"
	"os"

	"github.com/cloudwego/devflow/internal/log"
	"github.com/cloudwego/devflow/internal/workflow"
	"github.com/cloudwego/devflow/internal/workflow/steps"
	"github.com/cloudwego/devflow/llm"
	"github.com/cloudwego/devflow/llm/prompt"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const (
	ToolDescribeWorkflow = "describe_workflow"
	DescDescribeWorkflow = "List every step of the development workflow with its successors, gate condition and the artifacts it writes."

	ToolRunWorkflow = "run_workflow"
	DescRunWorkflow = "Run the development workflow for a project brief and return the run result with the final state. Set dry_run to run without a model."
)

var (
	SchemaDescribeWorkflow = json.RawMessage(`{"type":"object","properties":{}}`)
	SchemaRunWorkflow      = json.RawMessage(`{
	"type": "object",
	"properties": {
		"brief": {"type": "string", "description": "the project brief fed to the requirements step"},
		"entry_step": {"type": "string", "description": "step to start from, default the configured entry step"},
		"max_steps": {"type": "integer", "description": "step budget, default from server options"},
		"stop_after": {"type": "string", "description": "end the run after this step"},
		"dry_run": {"type": "boolean", "description": "synthesize approving artifacts instead of calling the model"}
	},
	"required": ["brief"]
}`)
)

const defaultMaxSteps = 50

type ServerOptions struct {
	ServerName    string
	ServerVersion string
	Verbose       bool
	// Prompts supplies system prompts; nil means the embedded defaults.
	Prompts *prompt.Library
	// Client answers model calls; nil forces every run into dry-run mode.
	Client llm.Client
	// Workflow carries gate condition overrides and a default stop step.
	Workflow steps.Options
	// EntryStep is where runs start unless a request names one; empty means
	// collect_requirements.
	EntryStep workflow.StepID
	MaxSteps  int
}

type Server struct {
	Server  *server.MCPServer
	opts    ServerOptions
	prompts *prompt.Library
}

func NewServer(opts ServerOptions) (*Server, error) {
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = defaultMaxSteps
	}
	if opts.EntryStep == "" {
		opts.EntryStep = workflow.CollectRequirements
	}
	if opts.EntryStep == workflow.End {
		return nil, &workflow.ConfigurationError{Reason: "entry step cannot be the end marker"}
	}
	if _, err := workflow.ParseStepID(string(opts.EntryStep)); err != nil {
		return nil, err
	}
	lib := opts.Prompts
	if lib == nil {
		var err error
		if lib, err = prompt.NewLibrary(nil, ""); err != nil {
			return nil, err
		}
	}
	opts.Workflow.Prompts = lib
	if _, err := steps.NewDevelopmentWorkflow(opts.Workflow); err != nil {
		return nil, err
	}

	s := &Server{opts: opts, prompts: lib}
	svr := server.NewMCPServer(
		opts.ServerName,
		opts.ServerVersion,
		server.WithToolCapabilities(false),
		server.WithPromptCapabilities(false),
		server.WithRecovery(),
	)
	svr.AddTools(
		NewTool(ToolDescribeWorkflow, DescDescribeWorkflow, SchemaDescribeWorkflow, s.DescribeWorkflow),
		NewTool(ToolRunWorkflow, DescRunWorkflow, SchemaRunWorkflow, s.RunWorkflow),
	)
	svr.AddPrompt(mcp.NewPrompt(PromptStepSystem,
		mcp.WithPromptDescription("The system prompt a workflow step sends to the model"),
		mcp.WithArgument("step", mcp.ArgumentDescription("step name, e.g. design_review"), mcp.RequiredArgument()),
	), s.handleStepPrompt)
	s.Server = svr
	return s, nil
}

type DescribeWorkflowReq struct{}

type DescribeWorkflowResp struct {
	EntryStep string            `json:"entry_step"`
	Routes    []steps.RouteInfo `json:"routes"`
}

func (s *Server) DescribeWorkflow(ctx context.Context, req DescribeWorkflowReq) (*DescribeWorkflowResp, error) {
	wf, err := steps.NewDevelopmentWorkflow(s.opts.Workflow)
	if err != nil {
		return nil, err
	}
	return &DescribeWorkflowResp{
		EntryStep: string(s.opts.EntryStep),
		Routes:    wf.Describe(),
	}, nil
}

type RunWorkflowReq struct {
	Brief     string `json:"brief"`
	EntryStep string `json:"entry_step,omitempty"`
	MaxSteps  int    `json:"max_steps,omitempty"`
	StopAfter string `json:"stop_after,omitempty"`
	DryRun    bool   `json:"dry_run,omitempty"`
}

type RunWorkflowResp struct {
	Result workflow.Result `json:"result"`
	Error  string          `json:"error,omitempty"`
	State  *workflow.State `json:"state"`
}

// RunWorkflow runs one workflow to a halt. Engine errors are reported in the
// response next to the partial state rather than as tool failures.
func (s *Server) RunWorkflow(ctx context.Context, req RunWorkflowReq) (*RunWorkflowResp, error) {
	entry := s.opts.EntryStep
	if req.EntryStep != "" {
		id, err := workflow.ParseStepID(req.EntryStep)
		if err != nil {
			return nil, err
		}
		entry = id
	}
	opts := s.opts.Workflow
	if req.StopAfter != "" {
		id, err := workflow.ParseStepID(req.StopAfter)
		if err != nil {
			return nil, err
		}
		opts.StopAfter = id
	}
	wf, err := steps.NewDevelopmentWorkflow(opts)
	if err != nil {
		return nil, err
	}

	client := s.opts.Client
	dryRun := req.DryRun || client == nil
	if dryRun {
		client = llm.DryRunClient{}
	}
	ex, err := wf.Executor(client)
	if err != nil {
		return nil, err
	}

	budget := workflow.Budget{MaxSteps: s.opts.MaxSteps}
	if req.MaxSteps > 0 {
		budget.MaxSteps = req.MaxSteps
	}
	st := workflow.NewState(entry, workflow.WithInputs(map[string]any{steps.BriefKey: req.Brief}))
	if s.opts.Verbose {
		log.Info("mcp run %s: entry=%s max_steps=%d dry_run=%v", st.RunID, entry, budget.MaxSteps, dryRun)
	}
	res, err := ex.Run(ctx, st, budget)
	resp := &RunWorkflowResp{Result: res, State: st}
	if err != nil {
		resp.Error = fmt.Sprintf("%s halted at %s: %v", st.RunID, st.CurrentStep, err)
	}
	return resp, nil
}

// ServeStdio serves the MCP protocol on stdin/stdout until EOF.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.Server, server.WithErrorLogger(stdlog.New(os.Stderr, "[devflow-mcp] ", stdlog.LstdFlags)))
}
