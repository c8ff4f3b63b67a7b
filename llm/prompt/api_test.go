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

package prompt

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLibrary_Defaults(t *testing.T) {
	l, err := NewLibrary(nil, "")
	require.NoError(t, err)
	assert.Len(t, l.Names(), 20)
	assert.Contains(t, l.System("product_owner_review"), "INVEST")
	assert.Contains(t, l.System("qa_testing"), "QA tester")
	assert.Equal(t, "", l.System("no_such_step"))
}

func TestLibrary_Overrides(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/prompts/design_review.md", []byte("Be harsh.\n"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/prompts/custom.md", []byte("Extra."), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/prompts/notes.txt", []byte("ignored"), 0o644))

	l, err := NewLibrary(fs, "/prompts")
	require.NoError(t, err)
	assert.Equal(t, "Be harsh.", l.System("design_review"))
	assert.Equal(t, "Extra.", l.System("custom"))
	assert.Contains(t, l.System("code_review"), "senior developer")
	assert.NotContains(t, l.Names(), "notes")
}

func TestLibrary_MissingDir(t *testing.T) {
	_, err := NewLibrary(afero.NewMemMapFs(), "/nope")
	assert.Error(t, err)
}

func TestLibrary_ApplyRemoveRestoresDefault(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/p/deployment.md", []byte("Ship it."), 0o644))
	l, err := NewLibrary(fs, "/p")
	require.NoError(t, err)
	require.Equal(t, "Ship it.", l.System("deployment"))

	name, err := l.apply(fsnotify.Remove, "/p/deployment.md")
	require.NoError(t, err)
	assert.Equal(t, "deployment", name)
	assert.Contains(t, l.System("deployment"), "DevOps engineer")
}

func TestLibrary_Watch(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLibrary(afero.NewOsFs(), dir)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	changed := make(chan string, 8)
	done, err := l.Watch(ctx, func(name string) { changed <- name })
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "monitoring.md"), []byte("Watch the dashboards."), 0o644))
	assert.Eventually(t, func() bool {
		return l.System("monitoring") == "Watch the dashboards."
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, "monitoring", <-changed)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}
