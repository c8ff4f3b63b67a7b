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
	"path"
	"path/filepath"
	"strings"

	"github.com/cloudwego/devflow/internal/log"
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
)

// Watch reloads override prompts when files in the override dir change, until
// ctx is done. A removed override falls back to the embedded default. onChange,
// if set, is called with the prompt name after each reload. The returned
// channel is closed once the watcher has stopped.
func (l *Library) Watch(ctx context.Context, onChange func(name string)) (<-chan struct{}, error) {
	if l.dir == "" {
		return nil, errors.New("no prompt override dir to watch")
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "create prompt watcher")
	}
	if err := w.Add(l.dir); err != nil {
		w.Close()
		return nil, errors.Wrapf(err, "watch prompt dir %s", l.dir)
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				name, err := l.apply(ev.Op, ev.Name)
				if err != nil {
					log.Error("Reload prompt %s failed: %v", ev.Name, err)
					continue
				}
				if name != "" {
					log.Info("Prompt %s reloaded", name)
					if onChange != nil {
						onChange(name)
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Error("Prompt watcher: %v", err)
			}
		}
	}()
	return done, nil
}

func (l *Library) apply(op fsnotify.Op, file string) (string, error) {
	if filepath.Ext(file) != ext {
		return "", nil
	}
	switch {
	case op&fsnotify.Write != 0 || op&fsnotify.Create != 0:
		return l.reload(file)
	case op&fsnotify.Remove != 0 || op&fsnotify.Rename != 0:
		name := strings.TrimSuffix(filepath.Base(file), ext)
		bs, err := defaults.ReadFile(path.Join("templates", name+ext))
		l.mu.Lock()
		if err != nil {
			delete(l.prompts, name)
		} else {
			l.prompts[name] = TextPrompt(bs)
		}
		l.mu.Unlock()
		return name, nil
	}
	return "", nil
}
