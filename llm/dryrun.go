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

package llm

import (
	"context"

	"github.com/cloudwego/devflow/internal/artifact"
	"github.com/cloudwego/devflow/internal/log"
	"github.com/pkg/errors"
)

// DryRunClient answers every call with a synthesized, schema-valid record.
// Gates approve and QA passes, so a dry run walks the happy path offline.
type DryRunClient struct{}

var _ Client = DryRunClient{}

func (DryRunClient) Invoke(ctx context.Context, spec PromptSpec, out *OutputSchema) (artifact.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "dry-run call")
	}
	if out == nil {
		return nil, errors.New("output schema is required")
	}
	rec := out.Example()
	if err := out.Validate(rec); err != nil {
		return nil, err
	}
	log.Debug("[dry-run] %s", out.Name)
	return rec, nil
}
