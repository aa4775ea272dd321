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

// Package testreport merges test annotations with `go test -json` output
// into a readable report.
package testreport

import (
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"path"
	"path/filepath"
	"strings"
)

// Annotation holds the metadata written above a test function
type Annotation struct {
	Name       string `json:"name"`
	Package    string `json:"package"`
	Purpose    string `json:"purpose,omitempty"`
	Scope      string `json:"scope,omitempty"`
	Security   string `json:"security,omitempty"`
	Expected   string `json:"expected,omitempty"`
	TestCaseID string `json:"test_case_id,omitempty"`
	Category   string `json:"category"`
}

var fields = []struct {
	prefix string
	set    func(*Annotation, string)
}{
	{"TestPurpose:", func(a *Annotation, v string) { a.Purpose = v }},
	{"Scope:", func(a *Annotation, v string) { a.Scope = v }},
	{"Security:", func(a *Annotation, v string) { a.Security = v }},
	{"Expected:", func(a *Annotation, v string) { a.Expected = v }},
	{"Test Case ID:", func(a *Annotation, v string) { a.TestCaseID = v }},
}

// Scan walks root for _test.go files and returns the annotations of every
// Test function keyed by "<import path>.<TestName>".
func Scan(root, modulePath string) (map[string]Annotation, error) {
	out := make(map[string]Annotation)
	fset := token.NewFileSet()

	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			switch d.Name() {
			case ".git", "vendor", "testdata":
				return filepath.SkipDir
			}
			if strings.HasPrefix(d.Name(), "_") {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(p, "_test.go") {
			return nil
		}

		file, err := parser.ParseFile(fset, p, nil, parser.ParseComments)
		if err != nil {
			return nil
		}

		rel, err := filepath.Rel(root, filepath.Dir(p))
		if err != nil {
			return err
		}
		pkg := importPath(modulePath, rel)

		for _, decl := range file.Decls {
			fn, ok := decl.(*ast.FuncDecl)
			if !ok || fn.Recv != nil || !strings.HasPrefix(fn.Name.Name, "Test") {
				continue
			}
			a := Annotation{Name: fn.Name.Name, Package: pkg, Category: Category(pkg, modulePath)}
			if fn.Doc != nil {
				parseDoc(&a, fn.Doc)
			}
			out[pkg+"."+fn.Name.Name] = a
		}
		return nil
	})
	return out, err
}

func parseDoc(a *Annotation, doc *ast.CommentGroup) {
	for _, c := range doc.List {
		text := strings.TrimSpace(strings.TrimPrefix(c.Text, "//"))
		for _, f := range fields {
			if v, ok := strings.CutPrefix(text, f.prefix); ok {
				f.set(a, strings.TrimSpace(v))
				break
			}
		}
	}
}

func importPath(modulePath, rel string) string {
	rel = filepath.ToSlash(rel)
	if rel == "." {
		return modulePath
	}
	return path.Join(modulePath, rel)
}

// categories maps a package prefix (relative to the module) to a report section.
var categories = []struct {
	prefix string
	name   string
}{
	{"internal/identity", "Account"},
	{"internal/session", "Session"},
	{"internal/authz", "Roles"},
	{"internal/transport/http", "Account API"},
	{"internal/store", "Storage"},
	{"internal/notify", "Notification"},
	{"internal/observability", "Observability"},
	{"internal/config", "Config"},
}

// CategoryOrder is the order sections appear in a report.
var CategoryOrder = []string{
	"Account", "Session", "Roles", "Account API", "Storage",
	"Notification", "Observability", "Config", "Other",
}

// Category assigns a package to a report section
func Category(pkg, modulePath string) string {
	rel := strings.TrimPrefix(strings.TrimPrefix(pkg, modulePath), "/")
	for _, c := range categories {
		if rel == c.prefix || strings.HasPrefix(rel, c.prefix+"/") {
			return c.name
		}
	}
	return "Other"
}
