package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDomainImportForbiddenPredicate(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"studycore/pkg/domain", true},
		{"example.com/mod/pkg/domain@v1", true},
		{"studycore/pkg/domainmodel", false},
		{"studycore/internal/ingest", false},
	}
	for _, c := range cases {
		if got := DomainImportForbidden(c.in); got != c.want {
			t.Fatalf("DomainImportForbidden(%q)=%v want %v", c.in, got, c.want)
		}
	}
}

func TestInternalImportForbiddenPredicate(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"studycore/internal/blob", true},
		{"studycore/pkg/domain", false},
		{"internal", false},
	}
	for _, c := range cases {
		if got := InternalImportForbidden(c.in); got != c.want {
			t.Fatalf("InternalImportForbidden(%q)=%v want %v", c.in, got, c.want)
		}
	}
}

func TestThirdPartyImportForbiddenPredicate(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"go.uber.org/zap", true},
		{"github.com/jackc/pgx/v5", true},
		{"encoding/json", false},
		{"studycore/pkg/domain", false},
	}
	for _, c := range cases {
		if got := ThirdPartyImportForbidden(c.in); got != c.want {
			t.Fatalf("ThirdPartyImportForbidden(%q)=%v want %v", c.in, got, c.want)
		}
	}
}

// TestAssertNoDirectImports builds a throwaway package and checks that only
// non-test files are scanned.
func TestAssertNoDirectImports(t *testing.T) {
	dir := t.TempDir()
	src := []byte("package tmp\nimport \"fmt\"\nfunc X(){fmt.Println(1)}\n")
	if err := os.WriteFile(filepath.Join(dir, "x.go"), src, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	testSrc := []byte("package tmp\nimport \"net/http\"\nvar _ = http.Get\n")
	if err := os.WriteFile(filepath.Join(dir, "x_test.go"), testSrc, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	AssertNoDirectImports(t, dir, func(ip string) bool {
		return ip == "net/http"
	}, "test files are out of scope")
}

func TestAssertNoTransitiveDependency(t *testing.T) {
	AssertNoTransitiveDependency(t, ".", func(string) bool { return false }, "none")
}
