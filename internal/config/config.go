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

// Package config loads the devflow run configuration from YAML or TOML.
package config

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/cloudwego/devflow/internal/log"
	"github.com/cloudwego/devflow/internal/workflow"
	"github.com/cloudwego/devflow/internal/workflow/steps"
	"github.com/cloudwego/devflow/llm"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

const (
	DefaultMaxSteps = 50
	DefaultLogLevel = "info"
)

type Config struct {
	Workflow Workflow        `json:"workflow" yaml:"workflow" toml:"workflow"`
	Model    llm.ModelConfig `json:"model" yaml:"model" toml:"model"`
	Prompts  Prompts         `json:"prompts" yaml:"prompts" toml:"prompts"`
	Log      Log             `json:"log" yaml:"log" toml:"log"`
}

type Workflow struct {
	EntryStep string            `json:"entry_step" yaml:"entry_step" toml:"entry_step"`
	MaxSteps  int               `json:"max_steps" yaml:"max_steps" toml:"max_steps"`
	Gates     map[string]string `json:"gates" yaml:"gates" toml:"gates"` // gate step -> condition
	StopAfter string            `json:"stop_after" yaml:"stop_after" toml:"stop_after"`
}

type Prompts struct {
	Dir   string `json:"dir" yaml:"dir" toml:"dir"`
	Watch bool   `json:"watch" yaml:"watch" toml:"watch"`
}

type Log struct {
	Level string `json:"level" yaml:"level" toml:"level"`
}

// Default returns a configuration that runs the lifecycle from the
// requirements step with the default budget.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads path from fs. The format is chosen by extension: .yaml/.yml or
// .toml. An empty path yields Default().
func Load(fs afero.Fs, path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, errors.Wrapf(err, "read config %s", path)
	}
	c := &Config{}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(c); err != nil && err != io.EOF {
			return nil, errors.Wrapf(err, "parse yaml config %s", path)
		}
	case ".toml":
		md, err := toml.Decode(string(data), c)
		if err != nil {
			return nil, errors.Wrapf(err, "parse toml config %s", path)
		}
		if undec := md.Undecoded(); len(undec) > 0 {
			return nil, fmt.Errorf("unknown keys in %s: %v", path, undec)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}
	c.applyDefaults()
	log.Debug("loaded config %s: entry=%s max_steps=%d gates=%d", path, c.Workflow.EntryStep, c.Workflow.MaxSteps, len(c.Workflow.Gates))
	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Workflow.EntryStep == "" {
		c.Workflow.EntryStep = string(workflow.CollectRequirements)
	}
	if c.Workflow.MaxSteps == 0 {
		c.Workflow.MaxSteps = DefaultMaxSteps
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	c.Model = c.Model.WithDefaults()
}

// Validate checks the configuration without touching the network. A model
// section is optional; when present its type must be known.
func (c *Config) Validate() error {
	if _, err := workflow.ParseStepID(c.Workflow.EntryStep); err != nil {
		return errors.Wrap(err, "workflow.entry_step")
	}
	if c.Workflow.MaxSteps < 0 {
		return &workflow.ConfigurationError{Reason: fmt.Sprintf("workflow.max_steps must not be negative, got %d", c.Workflow.MaxSteps)}
	}
	if c.Workflow.StopAfter != "" {
		if _, err := workflow.ParseStepID(c.Workflow.StopAfter); err != nil {
			return errors.Wrap(err, "workflow.stop_after")
		}
	}
	gates := make([]string, 0, len(c.Workflow.Gates))
	for g := range c.Workflow.Gates {
		gates = append(gates, g)
	}
	sort.Strings(gates)
	for _, g := range gates {
		if _, ok := steps.GateOf(workflow.StepID(g)); !ok {
			return &workflow.ConfigurationError{Reason: fmt.Sprintf("workflow.gates: %q is not a gate", g)}
		}
		if cond := c.Workflow.Gates[g]; cond == "" {
			continue
		} else if err := workflow.CompileCondition(cond); err != nil {
			return errors.Wrapf(err, "workflow.gates.%s", g)
		}
	}
	if c.Model.APIType != "" && llm.NewModelType(string(c.Model.APIType)) == llm.ModelTypeUnknown {
		return &workflow.ConfigurationError{Reason: fmt.Sprintf("model.type %q is not supported", c.Model.APIType)}
	}
	if c.Model.Retries < 0 {
		return &workflow.ConfigurationError{Reason: "model.retries must not be negative"}
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "trace", "info", "error", "fatal":
	default:
		return &workflow.ConfigurationError{Reason: fmt.Sprintf("log.level %q is not supported", c.Log.Level)}
	}
	return nil
}

// LogLevel returns the configured logging level.
func (c *Config) LogLevel() log.Level {
	return log.ParseLevel(c.Log.Level)
}

// HasModel reports whether a model provider is configured.
func (c *Config) HasModel() bool {
	return c.Model.APIType != ""
}

// WorkflowOptions maps the workflow section onto assembly options.
func (c *Config) WorkflowOptions() (steps.Options, error) {
	opts := steps.Options{Conditions: c.Workflow.Gates}
	if c.Workflow.StopAfter != "" {
		id, err := workflow.ParseStepID(c.Workflow.StopAfter)
		if err != nil {
			return opts, err
		}
		opts.StopAfter = id
	}
	return opts, nil
}

// Budget returns the configured step budget.
func (c *Config) Budget() workflow.Budget {
	return workflow.Budget{MaxSteps: c.Workflow.MaxSteps}
}
