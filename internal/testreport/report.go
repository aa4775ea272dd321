// Copyright 2026 The Credentia Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package testreport

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"
)

// Test outcomes
const (
	StatusPass   = "pass"
	StatusFail   = "fail"
	StatusSkip   = "skip"
	StatusNotRun = "not run"
)

// event is one line of `go test -json`
type event struct {
	Action  string  `json:"Action"`
	Package string  `json:"Package"`
	Test    string  `json:"Test"`
	Elapsed float64 `json:"Elapsed"`
	Output  string  `json:"Output"`
}

// Result is the merged outcome of one test or subtest
type Result struct {
	Name        string     `json:"name"`
	Package     string     `json:"package"`
	Status      string     `json:"status"`
	Elapsed     float64    `json:"elapsed_seconds"`
	Failure     string     `json:"failure_reason,omitempty"`
	Annotations Annotation `json:"annotations"`
}

// Summary is the full report
type Summary struct {
	GeneratedAt time.Time `json:"generated_at"`
	Total       int       `json:"total"`
	Passed      int       `json:"passed"`
	Failed      int       `json:"failed"`
	Skipped     int       `json:"skipped"`
	Results     []Result  `json:"results"`
}

// Merge reads `go test -json` events and attaches annotations. Annotated
// tests that never ran are reported as "not run"; subtests inherit their
// parent's annotations.
func Merge(r io.Reader, meta map[string]Annotation, modulePath string) ([]Result, error) {
	states := make(map[string]*Result, len(meta))
	for key, a := range meta {
		states[key] = &Result{Name: a.Name, Package: a.Package, Status: StatusNotRun, Annotations: a}
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var ev event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil || ev.Test == "" {
			continue
		}

		key := ev.Package + "." + ev.Test
		res, ok := states[key]
		if !ok {
			a := Annotation{Name: ev.Test, Package: ev.Package, Category: Category(ev.Package, modulePath)}
			if parent, sub, found := strings.Cut(ev.Test, "/"); found {
				if p, ok := meta[ev.Package+"."+parent]; ok {
					a = p
					a.Name = ev.Test
					a.Purpose = strings.TrimSpace(p.Purpose + " (subtest: " + sub + ")")
				}
			}
			res = &Result{Name: ev.Test, Package: ev.Package, Annotations: a}
			states[key] = res
		}

		switch ev.Action {
		case "run":
			res.Status = ""
		case StatusPass, StatusFail:
			res.Status = ev.Action
			res.Elapsed = ev.Elapsed
		case StatusSkip:
			res.Status = StatusSkip
		case "output":
			if res.Status == "" || res.Status == StatusFail {
				res.Failure += ev.Output
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read test output: %w", err)
	}

	results := make([]Result, 0, len(states))
	for _, r := range states {
		if r.Status != StatusFail {
			r.Failure = ""
		}
		results = append(results, *r)
	}
	slices.SortFunc(results, func(a, b Result) int {
		if c := strings.Compare(a.Package, b.Package); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
	return results, nil
}

// Summarize counts outcomes
func Summarize(results []Result, now time.Time) Summary {
	s := Summary{GeneratedAt: now, Results: results}
	for _, r := range results {
		s.Total++
		switch r.Status {
		case StatusPass:
			s.Passed++
		case StatusFail:
			s.Failed++
		case StatusSkip:
			s.Skipped++
		}
	}
	return s
}

// Filter keeps results whose category is in include (when non-empty) and
// not in exclude.
func Filter(results []Result, include, exclude []string) []Result {
	out := results[:0:0]
	for _, r := range results {
		if len(include) > 0 && !slices.Contains(include, r.Annotations.Category) {
			continue
		}
		if slices.Contains(exclude, r.Annotations.Category) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// WriteJSON renders the summary as indented JSON
func WriteJSON(w io.Writer, s Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

// WriteMarkdown renders the summary grouped by category
func WriteMarkdown(w io.Writer, s Summary, title string) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", title)
	fmt.Fprintf(&sb, "**Generated:** %s  \n", s.GeneratedAt.Format("2006-01-02 15:04:05 MST"))

	status := "PASSED"
	if s.Failed > 0 {
		status = "FAILED"
	}
	fmt.Fprintf(&sb, "**Status:** %s\n\n", status)

	rate := 0.0
	if s.Total > 0 {
		rate = float64(s.Passed) / float64(s.Total) * 100
	}
	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Total | Passed | Failed | Skipped | Pass Rate |\n")
	sb.WriteString("|-------|--------|--------|---------|-----------|\n")
	fmt.Fprintf(&sb, "| %d | %d | %d | %d | %.1f%% |\n\n", s.Total, s.Passed, s.Failed, s.Skipped, rate)

	byCategory := make(map[string][]Result)
	for _, r := range s.Results {
		byCategory[r.Annotations.Category] = append(byCategory[r.Annotations.Category], r)
	}

	sb.WriteString("## Results by Category\n\n")
	for _, cat := range CategoryOrder {
		tests := byCategory[cat]
		if len(tests) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "### %s\n\n", cat)
		sb.WriteString("| ID | Test | Status | Purpose | Security |\n")
		sb.WriteString("|----|------|--------|---------|----------|\n")
		for _, t := range tests {
			security := t.Annotations.Security
			if security != "" {
				security = "**" + security + "**"
			}
			fmt.Fprintf(&sb, "| %s | %s | %s | %s | %s |\n",
				t.Annotations.TestCaseID, t.Name, t.Status, cell(t.Annotations.Purpose), cell(security))
		}
		sb.WriteString("\n")
	}

	if s.Failed > 0 {
		sb.WriteString("## Failures\n\n")
		for _, r := range s.Results {
			if r.Status != StatusFail {
				continue
			}
			fmt.Fprintf(&sb, "### %s\n\n```\n%s```\n\n", r.Name, r.Failure)
		}
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

func cell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
