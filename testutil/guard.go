// Package testutil holds test-only helpers that enforce import boundaries
// between the domain model, the infrastructure packages, and third-party
// modules.
package testutil

import (
	"go/parser"
	"go/token"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// AssertNoTransitiveDependency resolves the full dependency closure of the
// package pattern via `go list -deps` and fails the test if any package path
// in the closure satisfies the forbidden predicate. The reason is included in
// the failure message.
func AssertNoTransitiveDependency(t testing.TB, pattern string, forbidden func(path string) bool, reason string) {
	t.Helper()
	out, err := listDeps(pattern)
	if err != nil {
		t.Fatalf("go list failed: %v\n%s", err, string(out))
	}
	var viols []string
	for _, line := range strings.Split(string(out), "\n") {
		path := strings.TrimSpace(line)
		if path == "" {
			continue
		}
		if forbidden(path) {
			viols = append(viols, path)
		}
	}
	failOnViolations(t, "transitive dependency", reason, viols)
}

// AssertNoDirectImports parses every non-test .go file in dir and fails the
// test if any import path satisfies the forbidden predicate. Subdirectories
// and build tags are not considered.
func AssertNoDirectImports(t testing.TB, dir string, forbidden func(importPath string) bool, reason string) {
	t.Helper()
	viols, err := directImportViolations(dir, forbidden)
	if err != nil {
		t.Fatalf("scan %s: %v", dir, err)
	}
	failOnViolations(t, "direct import", reason, viols)
}

// DomainImportForbidden reports whether path refers to the domain model
// package. Infrastructure that must stay decoupled from the model uses this
// as its forbidden predicate.
func DomainImportForbidden(path string) bool {
	return strings.HasSuffix(path, "/pkg/domain") || strings.Contains(path, "/pkg/domain@")
}

// InternalImportForbidden reports whether path crosses into an internal tree.
func InternalImportForbidden(path string) bool {
	return strings.Contains(path, "/internal/")
}

// ThirdPartyImportForbidden reports whether path names a hosted module rather
// than a standard-library or in-repo package. Hosted module paths carry a dot
// in their first element.
func ThirdPartyImportForbidden(path string) bool {
	first := path
	if i := strings.IndexByte(path, '/'); i >= 0 {
		first = path[:i]
	}
	return strings.Contains(first, ".")
}

var listDeps = func(pattern string) ([]byte, error) {
	return exec.Command("go", "list", "-deps", pattern).CombinedOutput()
}

func directImportViolations(dir string, forbidden func(importPath string) bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	fset := token.NewFileSet()
	var viols []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".go") || strings.HasSuffix(name, "_test.go") {
			continue
		}
		fileAst, err := parser.ParseFile(fset, filepath.Join(dir, name), nil, parser.ImportsOnly)
		if err != nil {
			return nil, err
		}
		for _, imp := range fileAst.Imports {
			ip := strings.Trim(imp.Path.Value, "\"")
			if forbidden(ip) {
				viols = append(viols, ip+" (in "+name+")")
			}
		}
	}
	return viols, nil
}

func failOnViolations(t testing.TB, kind, reason string, viols []string) {
	t.Helper()
	if len(viols) > 0 {
		t.Fatalf("forbidden %s (%s):\n%s", kind, reason, strings.Join(viols, "\n"))
	}
}
