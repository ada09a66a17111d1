package store

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rushteam/wdkit/core"
)

func TestFileStore_GetSet(t *testing.T) {
	fs := NewFileStore(t.TempDir())
	defer fs.Close()
	ctx := context.Background()

	if _, err := fs.Get(ctx, "missing"); !core.IsStoreNotFound(err) {
		t.Errorf("missing key: expected not found, got %v", err)
	}

	payload := []byte("model checkpoint")
	if err := fs.Set(ctx, "prod:wdl:v3", payload); err != nil {
		t.Fatal(err)
	}
	got, err := fs.Get(ctx, "prod:wdl:v3")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("got %q", got)
	}

	// 覆盖写
	if err := fs.Set(ctx, "prod:wdl:v3", []byte("v2")); err != nil {
		t.Fatal(err)
	}
	if got, _ := fs.Get(ctx, "prod:wdl:v3"); string(got) != "v2" {
		t.Errorf("after overwrite: %q", got)
	}

	if err := fs.Delete(ctx, "prod:wdl:v3"); err != nil {
		t.Fatal(err)
	}
	if _, err := fs.Get(ctx, "prod:wdl:v3"); !core.IsStoreNotFound(err) {
		t.Error("deleted key must be not found")
	}
	// 删除不存在的 key 不报错
	if err := fs.Delete(ctx, "prod:wdl:v3"); err != nil {
		t.Errorf("deleting missing key: %v", err)
	}
}

func TestFileStore_KeySanitized(t *testing.T) {
	dir := t.TempDir()
	fs := NewFileStore(dir)
	ctx := context.Background()

	// key 中的路径字符不能逃出存储目录
	if err := fs.Set(ctx, "../escape/attempt", []byte("x")); err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 file inside store dir, got %d", len(entries))
	}
	if _, err := os.Stat(filepath.Join(dir, "..", "escape")); !os.IsNotExist(err) {
		t.Error("key must not escape the store directory")
	}
}

func TestFileStore_Batch(t *testing.T) {
	fs := NewFileStore(t.TempDir())
	ctx := context.Background()

	if err := fs.BatchSet(ctx, map[string][]byte{
		"a": []byte("1"),
		"b": []byte("2"),
	}); err != nil {
		t.Fatal(err)
	}
	got, err := fs.BatchGet(ctx, []string{"a", "b", "c"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || string(got["a"]) != "1" {
		t.Errorf("BatchGet = %v", got)
	}
}
