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
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/cloudwego/devflow/internal/workflow"
	"github.com/cloudwego/devflow/internal/workflow/steps"
)

var (
	runIDStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	stepStyle   = lipgloss.NewStyle().Bold(true)
	gateStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("13"))
	arrowStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	fixStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	kindStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	okStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	failStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)
)

// console renders progress events, one line per completed step. Runs may
// share it.
type console struct {
	mu sync.Mutex
	w  io.Writer
}

func newConsole(w io.Writer) *console {
	return &console{w: w}
}

func (c *console) OnEvent(ev workflow.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.w, renderEvent(ev))
}

func (c *console) Summary(st *workflow.State, res workflow.Result, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	status := okStyle.Render(string(res.Halt))
	if err != nil {
		status = failStyle.Render(fmt.Sprintf("%s: %v", res.Halt, err))
	}
	fmt.Fprintf(c.w, "%s %s after %d step(s), current step %s\n",
		runIDStyle.Render(shortID(st.RunID)), status, res.Steps, stepStyle.Render(string(st.CurrentStep)))
}

func renderEvent(ev workflow.Event) string {
	var b strings.Builder
	b.WriteString(runIDStyle.Render(fmt.Sprintf("%s #%02d", shortID(ev.RunID), ev.Iteration)))
	b.WriteByte(' ')
	step := stepStyle
	if _, ok := steps.GateOf(ev.Step); ok {
		step = gateStyle
	}
	b.WriteString(step.Render(string(ev.Step)))
	b.WriteString(arrowStyle.Render(" -> "))
	next := stepStyle
	if isFix(ev.Next) {
		next = fixStyle
	}
	b.WriteString(next.Render(string(ev.Next)))
	if len(ev.Artifacts) > 0 {
		kinds := make([]string, 0, len(ev.Artifacts))
		for _, a := range ev.Artifacts {
			kinds = append(kinds, a.Kind)
		}
		b.WriteString(" ")
		b.WriteString(kindStyle.Render("[" + strings.Join(kinds, ", ") + "]"))
	}
	return b.String()
}

func renderGraph(routes []steps.RouteInfo) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("devflow transition table"))
	b.WriteByte('\n')
	for _, r := range routes {
		from := stepStyle
		if r.Condition != "" {
			from = gateStyle
		}
		fmt.Fprintf(&b, "%-26s", from.Render(r.From))
		if r.Condition != "" {
			fmt.Fprintf(&b, " if %s -> %s else -> %s", r.Condition, r.To[0], fixStyle.Render(r.To[1]))
		} else {
			fmt.Fprintf(&b, " -> %s", r.To[0])
		}
		if len(r.Writes) > 0 {
			b.WriteString(" ")
			b.WriteString(kindStyle.Render("writes " + strings.Join(r.Writes, ", ")))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func isFix(id workflow.StepID) bool {
	for _, g := range steps.Gates {
		if g.Fix == id {
			return true
		}
	}
	return false
}

func shortID(id string) string {
	if len(id) > 10 {
		return id[len(id)-10:]
	}
	return id
}
