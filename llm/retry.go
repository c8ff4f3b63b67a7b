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

package llm

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// RetryPolicy decides what to do after a failed model call attempt.
// The policy only schedules; it never edits prompts or output.
type RetryPolicy interface {
	OnFailure(ctx context.Context, attempt int, err error) RetryDecision
}

// RetryDecision is the action to take after a call failure.
type RetryDecision string

const (
	DecisionRetry RetryDecision = "retry"
	DecisionAbort RetryDecision = "abort"
)

// DefaultRetryPolicy retries transient failures up to MaxRetry times after
// the first attempt. MaxRetry 0 means every failure is final.
type DefaultRetryPolicy struct {
	MaxRetry int
}

// OnFailure implements RetryPolicy.
func (p DefaultRetryPolicy) OnFailure(ctx context.Context, attempt int, err error) RetryDecision {
	if ctx.Err() != nil {
		return DecisionAbort
	}
	if attempt > p.MaxRetry {
		return DecisionAbort
	}
	if !IsRetryable(err) {
		return DecisionAbort
	}
	return DecisionRetry
}

// IsRetryable reports whether err looks transient: timeouts, dropped
// connections, rate limits and 5xx answers, or output that failed schema
// validation.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var se *SchemaError
	if errors.As(err, &se) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := err.Error()
	for _, s := range []string{
		"timeout",
		"connection reset",
		"connection refused",
		"operation timed out",
		"context deadline exceeded",
		"read tcp",
		"write tcp",
		"429",
		"500",
		"502",
		"503",
		"504",
		"too many requests",
		"internal server error",
		"bad gateway",
		"service unavailable",
		"gateway timeout",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

const maxBackoff = 10 * time.Second

// backoff waits 1s, 2s, 4s... capped at maxBackoff. The exponent is clamped
// before shifting so large attempts cannot overflow.
func backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 5 {
		return maxBackoff
	}
	wait := time.Duration(1<<uint(attempt-1)) * time.Second
	if wait > maxBackoff {
		wait = maxBackoff
	}
	return wait
}
