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
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/devflow/internal/config"
	"github.com/cloudwego/devflow/internal/log"
	"github.com/cloudwego/devflow/internal/workflow"
	"github.com/cloudwego/devflow/internal/workflow/steps"
	"github.com/cloudwego/devflow/llm"
	"github.com/cloudwego/devflow/llm/prompt"
	"github.com/cloudwego/devflow/llm/provider"
	"github.com/cloudwego/devflow/version"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const Usage = `devflow drives a software project through an LLM-backed development
lifecycle: requirements, user stories, design, code, reviews, QA, deployment,
monitoring and maintenance. Review gates loop back to fix steps until approved.`

// cli carries the process-wide dependencies so tests can swap them.
type cli struct {
	fs     afero.Fs
	stdout io.Writer
	stderr io.Writer
}

func main() {
	c := &cli{fs: afero.NewOsFs(), stdout: os.Stdout, stderr: os.Stderr}
	if err := c.root().Execute(); err != nil {
		log.Error("%v", err)
		os.Exit(1)
	}
}

func (c *cli) root() *cobra.Command {
	root := &cobra.Command{
		Use:           "devflow",
		Short:         "LLM-driven software development workflow",
		Long:          Usage,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	var configPath string
	var verbose bool
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (.yaml, .yml or .toml)")
	root.PersistentFlags().BoolVar(&verbose, "verbose", false, "verbose mode")

	load := func() (*config.Config, error) {
		if verbose {
			log.SetLogLevel(log.DebugLevel)
		}
		cfg, err := config.Load(c.fs, configPath)
		if err != nil {
			return nil, err
		}
		if !verbose {
			log.SetLogLevel(cfg.LogLevel())
		}
		return cfg, nil
	}

	root.AddCommand(
		c.runCmd(load),
		c.graphCmd(load),
		c.mcpCmd(load, &verbose),
		c.versionCmd(),
	)
	root.SetOut(c.stdout)
	root.SetErr(c.stderr)
	return root
}

type runFlags struct {
	briefs   []string
	maxSteps int
	entry    string
	dryRun   bool
	json     bool
}

func (c *cli) runCmd(load func() (*config.Config, error)) *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "run the workflow, once per brief",
		Example: `  devflow run --brief todo.md --dry-run --max-steps 14
  devflow run -c devflow.yaml --brief a.md --brief b.md`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("max-steps") {
				cfg.Workflow.MaxSteps = f.maxSteps
			}
			if f.entry != "" {
				cfg.Workflow.EntryStep = f.entry
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return c.run(ctx, cfg, f)
		},
	}
	cmd.Flags().StringArrayVar(&f.briefs, "brief", nil, "project brief file; repeat to run several projects concurrently")
	cmd.Flags().IntVar(&f.maxSteps, "max-steps", config.DefaultMaxSteps, "step budget per run")
	cmd.Flags().StringVar(&f.entry, "entry", "", "step to start from (default collect_requirements)")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "synthesize approving artifacts instead of calling the model")
	cmd.Flags().BoolVar(&f.json, "json", false, "print the final state of each run as JSON")
	return cmd
}

func (c *cli) run(ctx context.Context, cfg *config.Config, f runFlags) error {
	lib, err := prompt.NewLibrary(c.fs, cfg.Prompts.Dir)
	if err != nil {
		return err
	}
	if cfg.Prompts.Watch && cfg.Prompts.Dir != "" {
		wctx, cancel := context.WithCancel(ctx)
		done, err := lib.Watch(wctx, nil)
		if err != nil {
			cancel()
			return err
		}
		defer func() {
			cancel()
			<-done
		}()
	}

	wopts, err := cfg.WorkflowOptions()
	if err != nil {
		return err
	}
	wopts.Prompts = lib
	wf, err := steps.NewDevelopmentWorkflow(wopts)
	if err != nil {
		return err
	}
	client, err := c.client(ctx, cfg, f.dryRun)
	if err != nil {
		return err
	}
	entry, err := workflow.ParseStepID(cfg.Workflow.EntryStep)
	if err != nil {
		return err
	}

	briefs, err := c.readBriefs(f.briefs)
	if err != nil {
		return err
	}
	out := newConsole(c.stderr)
	states := make([]*workflow.State, len(briefs))
	results := make([]workflow.Result, len(briefs))

	// runs are independent: one failing run does not cancel the others
	var g errgroup.Group
	for i, brief := range briefs {
		g.Go(func() error {
			ex, err := wf.Executor(client, workflow.WithSink(out))
			if err != nil {
				return err
			}
			st := workflow.NewState(entry, workflow.WithInputs(map[string]any{steps.BriefKey: brief}))
			states[i] = st
			log.Info("run %s started at %s", st.RunID, entry)
			res, err := ex.Run(ctx, st, cfg.Budget())
			results[i] = res
			out.Summary(st, res, err)
			return errors.Wrapf(err, "run %s", st.RunID)
		})
	}
	runErr := g.Wait()

	if f.json {
		for i, st := range states {
			if st == nil {
				continue
			}
			js, err := sonic.ConfigStd.MarshalIndent(map[string]any{"result": results[i], "state": st}, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(c.stdout, string(js))
		}
	}
	return runErr
}

func (c *cli) client(ctx context.Context, cfg *config.Config, dryRun bool) (llm.Client, error) {
	if dryRun {
		return llm.DryRunClient{}, nil
	}
	if !cfg.HasModel() {
		return nil, &workflow.ConfigurationError{Reason: "no model configured; set model.type in the config or pass --dry-run"}
	}
	return provider.NewClientFromConfig(ctx, cfg.Model)
}

// readBriefs loads each brief file. No files means one run without a brief.
func (c *cli) readBriefs(paths []string) ([]string, error) {
	if len(paths) == 0 {
		return []string{""}, nil
	}
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		data, err := afero.ReadFile(c.fs, p)
		if err != nil {
			return nil, errors.Wrapf(err, "read brief %s", filepath.Base(p))
		}
		out = append(out, strings.TrimSpace(string(data)))
	}
	return out, nil
}

func (c *cli) graphCmd(load func() (*config.Config, error)) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "print the transition table",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			wopts, err := cfg.WorkflowOptions()
			if err != nil {
				return err
			}
			wf, err := steps.NewDevelopmentWorkflow(wopts)
			if err != nil {
				return err
			}
			routes := wf.Describe()
			if asJSON {
				js, err := sonic.ConfigStd.MarshalIndent(routes, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(c.stdout, string(js))
				return nil
			}
			fmt.Fprint(c.stdout, renderGraph(routes))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the table as JSON")
	return cmd
}

func (c *cli) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print the version of devflow",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(c.stdout, "%s\n", version.Version)
		},
	}
}
