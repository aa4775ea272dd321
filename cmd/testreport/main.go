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

// Command testreport turns `go test -json` output into JSON and Markdown
// reports annotated with the TestPurpose/Test Case ID headers of each test.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/credentia/credentia/internal/testreport"
)

const modulePath = "github.com/credentia/credentia"

func main() {
	input := flag.String("input", "", "path to go test -json output")
	outJSON := flag.String("out-json", "", "path for the JSON report")
	outMD := flag.String("out-md", "", "path for the Markdown report")
	title := flag.String("title", "Credentia Test Report", "report title")
	root := flag.String("root", ".", "module root to scan for annotations")
	include := flag.String("filter-categories", "", "comma-separated categories to include")
	exclude := flag.String("exclude-categories", "", "comma-separated categories to exclude")
	flag.Parse()

	if *input == "" || (*outJSON == "" && *outMD == "") {
		fmt.Fprintln(os.Stderr, "usage: testreport -input <go-test.json> [-out-json <file>] [-out-md <file>]")
		os.Exit(2)
	}

	failed, err := run(*input, *outJSON, *outMD, *title, *root, splitList(*include), splitList(*exclude))
	if err != nil {
		fmt.Fprintf(os.Stderr, "testreport: %v\n", err)
		os.Exit(1)
	}
	if failed > 0 {
		fmt.Fprintf(os.Stderr, "testreport: %d tests failed\n", failed)
		os.Exit(1)
	}
}

func run(input, outJSON, outMD, title, root string, include, exclude []string) (int, error) {
	meta, err := testreport.Scan(root, modulePath)
	if err != nil {
		return 0, fmt.Errorf("scan annotations: %w", err)
	}

	f, err := os.Open(input)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	results, err := testreport.Merge(f, meta, modulePath)
	if err != nil {
		return 0, err
	}
	summary := testreport.Summarize(testreport.Filter(results, include, exclude), time.Now())

	if outJSON != "" {
		if err := writeFile(outJSON, func(w *os.File) error { return testreport.WriteJSON(w, summary) }); err != nil {
			return 0, err
		}
	}
	if outMD != "" {
		if err := writeFile(outMD, func(w *os.File) error { return testreport.WriteMarkdown(w, summary, title) }); err != nil {
			return 0, err
		}
	}
	return summary.Failed, nil
}

func writeFile(path string, render func(*os.File) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := render(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
