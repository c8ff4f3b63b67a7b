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

import "fmt"

// ConfigurationError reports a malformed registry or transition table, or an
// executor call without any halting condition.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "workflow configuration: " + e.Reason
}

func configErrorf(format string, args ...any) error {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}

// UnknownStepError reports a step with no handler or no outgoing transition.
type UnknownStepError struct {
	Step   StepID
	Reason string
}

func (e *UnknownStepError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("unknown step %q", e.Step)
	}
	return fmt.Sprintf("unknown step %q: %s", e.Step, e.Reason)
}

// ModelCallError wraps a failed model call made by a step handler.
type ModelCallError struct {
	Step StepID
	Err  error
}

func (e *ModelCallError) Error() string {
	return fmt.Sprintf("step %s: model call failed: %v", e.Step, e.Err)
}

func (e *ModelCallError) Unwrap() error {
	return e.Err
}

// MissingFeedbackError reports a gate decision whose feedback record, or the
// variable its condition reads, is absent or not boolean.
type MissingFeedbackError struct {
	Gate   StepID
	Key    string
	Reason string
}

func (e *MissingFeedbackError) Error() string {
	msg := fmt.Sprintf("gate %s: missing feedback", e.Gate)
	if e.Key != "" {
		msg += fmt.Sprintf(" %q", e.Key)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}
