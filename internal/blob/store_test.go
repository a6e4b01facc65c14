package blob

import (
	"context"
	"io"
	"strings"
	"testing"
)

// storeUnderTest runs the shared contract against any Store implementation.
func storeUnderTest(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	info, err := store.Put(ctx, "reports/run1.csv", strings.NewReader("a,b\n1,2\n"), PutOptions{
		ContentType: "text/csv",
		Metadata:    map[string]string{"run": "1"},
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != 8 || info.ContentType != "text/csv" || info.ETag == "" {
		t.Fatalf("info = %+v", info)
	}

	// Put is create-only; replacing requires an explicit delete.
	if _, err := store.Put(ctx, "reports/run1.csv", strings.NewReader("x"), PutOptions{}); err == nil {
		t.Fatal("second put on the same key should fail")
	}

	got, rc, err := store.Get(ctx, "reports/run1.csv")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(body) != "a,b\n1,2\n" {
		t.Fatalf("body = %q", body)
	}
	if got.Metadata["run"] != "1" {
		t.Fatalf("metadata = %+v", got.Metadata)
	}

	head, err := store.Head(ctx, "reports/run1.csv")
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	if head.ETag != info.ETag {
		t.Fatalf("etag drifted: %q vs %q", head.ETag, info.ETag)
	}

	if _, err := store.Put(ctx, "reports/run2.csv", strings.NewReader("c\n"), PutOptions{}); err != nil {
		t.Fatalf("put second: %v", err)
	}
	if _, err := store.Put(ctx, "other/file.txt", strings.NewReader("d"), PutOptions{}); err != nil {
		t.Fatalf("put third: %v", err)
	}
	infos, err := store.List(ctx, "reports/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 2 || infos[0].Key != "reports/run1.csv" || infos[1].Key != "reports/run2.csv" {
		t.Fatalf("list = %+v", infos)
	}

	deleted, err := store.Delete(ctx, "reports/run1.csv")
	if err != nil || !deleted {
		t.Fatalf("delete = %v, %v", deleted, err)
	}
	deleted, err = store.Delete(ctx, "reports/run1.csv")
	if err != nil || deleted {
		t.Fatalf("second delete = %v, %v", deleted, err)
	}
	if _, err := store.Head(ctx, "reports/run1.csv"); err == nil {
		t.Fatal("head after delete should fail")
	}
}

func TestMemoryStoreContract(t *testing.T) {
	storeUnderTest(t, NewMemory())
}

func TestFilesystemStoreContract(t *testing.T) {
	store, err := NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	storeUnderTest(t, store)
}

func TestSanitizeKeyRejectsEscapes(t *testing.T) {
	for _, key := range []string{"", " ", "../secret", "a/../../b", "/abs/path"} {
		if _, err := sanitizeKey(key); err == nil {
			t.Errorf("sanitizeKey(%q) accepted", key)
		}
	}
	if k, err := sanitizeKey("reports/run1.csv"); err != nil || k != "reports/run1.csv" {
		t.Fatalf("sanitizeKey = %q, %v", k, err)
	}
}
