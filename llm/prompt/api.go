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
	"embed"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

type Prompt interface {
	String() string
}

type TextPrompt string

func (p TextPrompt) String() string {
	return string(p)
}

func NewTextPrompt(content string) Prompt {
	return TextPrompt(content)
}

const ext = ".md"

//go:embed templates/*.md
var defaults embed.FS

// Library holds one system prompt per workflow step. Embedded defaults are
// loaded first; files named <step>.md in the override dir replace them.
type Library struct {
	fs  afero.Fs
	dir string

	mu      sync.RWMutex
	prompts map[string]Prompt
}

// NewLibrary loads the embedded prompts, then overrides from dir on fs.
// An empty dir means defaults only.
func NewLibrary(fs afero.Fs, dir string) (*Library, error) {
	l := &Library{fs: fs, dir: dir, prompts: map[string]Prompt{}}
	entries, err := defaults.ReadDir("templates")
	if err != nil {
		return nil, errors.Wrap(err, "read embedded prompts")
	}
	for _, e := range entries {
		bs, err := defaults.ReadFile(path.Join("templates", e.Name()))
		if err != nil {
			return nil, errors.Wrapf(err, "read embedded prompt %s", e.Name())
		}
		l.prompts[strings.TrimSuffix(e.Name(), ext)] = TextPrompt(bs)
	}
	if dir == "" {
		return l, nil
	}
	if fs == nil {
		return nil, errors.New("prompt override dir set without a filesystem")
	}
	files, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil, errors.Wrapf(err, "read prompt dir %s", dir)
	}
	for _, fi := range files {
		if fi.IsDir() || filepath.Ext(fi.Name()) != ext {
			continue
		}
		if _, err := l.reload(filepath.Join(dir, fi.Name())); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// System returns the system prompt for name, or "" if none is known.
func (l *Library) System(name string) string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if p, ok := l.prompts[name]; ok {
		return strings.TrimSpace(p.String())
	}
	return ""
}

// Names lists the known prompt names in order.
func (l *Library) Names() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, 0, len(l.prompts))
	for k := range l.prompts {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// reload reads one override file and returns the prompt name it replaced.
// Files that are not .md are ignored and report "".
func (l *Library) reload(file string) (string, error) {
	if filepath.Ext(file) != ext {
		return "", nil
	}
	bs, err := afero.ReadFile(l.fs, file)
	if err != nil {
		return "", errors.Wrapf(err, "read prompt %s", file)
	}
	name := strings.TrimSuffix(filepath.Base(file), ext)
	l.mu.Lock()
	l.prompts[name] = TextPrompt(bs)
	l.mu.Unlock()
	return name, nil
}
