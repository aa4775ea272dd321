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
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testModule = "example.com/acct"

const annotatedSource = `package identity

import "testing"

// TestPurpose: Validates lockout.
// Scope: Unit Test
// Security: Brute-force protection
// Expected: Account locks on the third failure.
// Test Case ID: ACC-07
func TestLockout(t *testing.T) {}

func TestPlain(t *testing.T) {}

func helper() {}
`

func writeTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "internal", "identity")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "service_test.go"), []byte(annotatedSource), 0o600))

	skipped := filepath.Join(root, "_examples", "other")
	require.NoError(t, os.MkdirAll(skipped, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(skipped, "x_test.go"), []byte("package other\nfunc TestIgnored(t *testing.T) {}\n"), 0o600))
	return root
}

func TestScan(t *testing.T) {
	meta, err := Scan(writeTree(t), testModule)
	require.NoError(t, err)

	require.Len(t, meta, 2)
	a := meta[testModule+"/internal/identity.TestLockout"]
	assert.Equal(t, "Validates lockout.", a.Purpose)
	assert.Equal(t, "Brute-force protection", a.Security)
	assert.Equal(t, "ACC-07", a.TestCaseID)
	assert.Equal(t, "Account", a.Category)

	plain := meta[testModule+"/internal/identity.TestPlain"]
	assert.Empty(t, plain.Purpose)
}

func TestCategory(t *testing.T) {
	assert.Equal(t, "Account API", Category(testModule+"/internal/transport/http", testModule))
	assert.Equal(t, "Storage", Category(testModule+"/internal/store/postgres", testModule))
	assert.Equal(t, "Other", Category(testModule+"/cmd/server", testModule))
	assert.Equal(t, "Other", Category(testModule+"/internal/sessionx", testModule))
}

func TestMergeAndRender(t *testing.T) {
	pkg := testModule + "/internal/identity"
	meta := map[string]Annotation{
		pkg + ".TestLockout": {Name: "TestLockout", Package: pkg, Purpose: "Validates lockout.", TestCaseID: "ACC-07", Category: "Account"},
		pkg + ".TestNever":   {Name: "TestNever", Package: pkg, Category: "Account"},
	}
	events := strings.Join([]string{
		`{"Action":"run","Package":"` + pkg + `","Test":"TestLockout"}`,
		`{"Action":"run","Package":"` + pkg + `","Test":"TestLockout/third"}`,
		`{"Action":"output","Package":"` + pkg + `","Test":"TestLockout/third","Output":"service_test.go:42: expected locked\n"}`,
		`{"Action":"fail","Package":"` + pkg + `","Test":"TestLockout/third","Elapsed":0.01}`,
		`{"Action":"fail","Package":"` + pkg + `","Test":"TestLockout","Elapsed":0.02}`,
		`not json`,
		`{"Action":"pass","Package":"` + pkg + `","Elapsed":0.3}`,
	}, "\n")

	results, err := Merge(strings.NewReader(events), meta, testModule)
	require.NoError(t, err)
	require.Len(t, results, 3)

	byName := map[string]Result{}
	for _, r := range results {
		byName[r.Name] = r
	}
	assert.Equal(t, StatusFail, byName["TestLockout"].Status)
	assert.Equal(t, StatusNotRun, byName["TestNever"].Status)

	sub := byName["TestLockout/third"]
	assert.Equal(t, StatusFail, sub.Status)
	assert.Equal(t, "ACC-07", sub.Annotations.TestCaseID)
	assert.Contains(t, sub.Annotations.Purpose, "subtest: third")
	assert.Contains(t, sub.Failure, "expected locked")

	summary := Summarize(results, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.Failed)

	var md bytes.Buffer
	require.NoError(t, WriteMarkdown(&md, summary, "Credentia Test Report"))
	out := md.String()
	assert.Contains(t, out, "# Credentia Test Report")
	assert.Contains(t, out, "**Status:** FAILED")
	assert.Contains(t, out, "### Account")
	assert.Contains(t, out, "| ACC-07 | TestLockout | fail |")
	assert.Contains(t, out, "## Failures")

	var js bytes.Buffer
	require.NoError(t, WriteJSON(&js, summary))
	assert.Contains(t, js.String(), `"failed": 2`)
}

func TestFilter(t *testing.T) {
	results := []Result{
		{Name: "a", Annotations: Annotation{Category: "Account"}},
		{Name: "b", Annotations: Annotation{Category: "Storage"}},
		{Name: "c", Annotations: Annotation{Category: "Config"}},
	}

	assert.Len(t, Filter(results, []string{"Account", "Config"}, nil), 2)
	assert.Len(t, Filter(results, nil, []string{"Storage"}), 2)
	assert.Len(t, Filter(results, nil, nil), 3)
}
