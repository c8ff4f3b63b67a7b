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

package main

import (
	"github.com/cloudwego/devflow/internal/config"
	"github.com/cloudwego/devflow/internal/workflow"
	"github.com/cloudwego/devflow/llm"
	"github.com/cloudwego/devflow/llm/mcp"
	"github.com/cloudwego/devflow/llm/prompt"
	"github.com/cloudwego/devflow/llm/provider"
	"github.com/cloudwego/devflow/version"
	"github.com/spf13/cobra"
)

func (c *cli) mcpCmd(load func() (*config.Config, error), verbose *bool) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "serve describe_workflow and run_workflow as MCP tools over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			lib, err := prompt.NewLibrary(c.fs, cfg.Prompts.Dir)
			if err != nil {
				return err
			}
			wopts, err := cfg.WorkflowOptions()
			if err != nil {
				return err
			}
			entry, err := workflow.ParseStepID(cfg.Workflow.EntryStep)
			if err != nil {
				return err
			}
			var client llm.Client
			if cfg.HasModel() && !dryRun {
				if client, err = provider.NewClientFromConfig(cmd.Context(), cfg.Model); err != nil {
					return err
				}
			}
			svr, err := mcp.NewServer(mcp.ServerOptions{
				ServerName:    "devflow",
				ServerVersion: version.Version,
				Verbose:       *verbose,
				Prompts:       lib,
				Client:        client,
				Workflow:      wopts,
				EntryStep:     entry,
				MaxSteps:      cfg.Workflow.MaxSteps,
			})
			if err != nil {
				return err
			}
			return svr.ServeStdio()
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "never call the model, even when one is configured")
	return cmd
}
