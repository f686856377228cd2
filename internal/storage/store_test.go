package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

type storeFactory func(t *testing.T) Store

func storeFactories() map[string]storeFactory {
	return map[string]storeFactory{
		"fs": func(t *testing.T) Store {
			s, err := NewFSStore(filepath.Join(t.TempDir(), ".cachedir"))
			if err != nil {
				t.Fatalf("NewFSStore failed: %v", err)
			}
			return s
		},
		"sqlite": func(t *testing.T) Store {
			s, err := NewSQLiteStore(t.TempDir())
			if err != nil {
				t.Fatalf("NewSQLiteStore failed: %v", err)
			}
			return s
		},
		"mock": func(t *testing.T) Store { return NewMockStore() },
	}
}

func TestStoreContract(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			store := factory(t)
			defer store.Close()
			ctx := context.Background()

			if _, err := store.Get(ctx, "missing"); !IsNotFound(err) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}

			if err := store.Put(ctx, "bbb", []byte(`{"status":"succeeded"}`)); err != nil {
				t.Fatalf("Put failed: %v", err)
			}
			if err := store.Put(ctx, "aaa", []byte("1700000000.5")); err != nil {
				t.Fatalf("Put failed: %v", err)
			}

			data, err := store.Get(ctx, "bbb")
			if err != nil {
				t.Fatalf("Get failed: %v", err)
			}
			if string(data) != `{"status":"succeeded"}` {
				t.Errorf("Got data %q", data)
			}

			if err := store.Put(ctx, "bbb", []byte(`{"status":"failed"}`)); err != nil {
				t.Fatalf("overwrite failed: %v", err)
			}
			data, _ = store.Get(ctx, "bbb")
			if string(data) != `{"status":"failed"}` {
				t.Errorf("overwrite not visible, got %q", data)
			}

			keys, err := store.List(ctx)
			if err != nil {
				t.Fatalf("List failed: %v", err)
			}
			if len(keys) != 2 || keys[0] != "aaa" || keys[1] != "bbb" {
				t.Errorf("unexpected keys %v", keys)
			}

			if err := store.Delete(ctx, "aaa"); err != nil {
				t.Fatalf("Delete failed: %v", err)
			}
			if err := store.Delete(ctx, "aaa"); !IsNotFound(err) {
				t.Errorf("expected ErrNotFound on second delete, got %v", err)
			}

			if err := store.Clear(ctx); err != nil {
				t.Fatalf("Clear failed: %v", err)
			}
			keys, _ = store.List(ctx)
			if len(keys) != 0 {
				t.Errorf("expected empty store after Clear, got %v", keys)
			}
		})
	}
}

func TestFSStoreOneFilePerKey(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	store, err := NewFSStore(dir)
	if err != nil {
		t.Fatalf("NewFSStore failed: %v", err)
	}
	ctx := context.Background()

	if err := store.Put(ctx, "abc123", []byte("value")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	raw, err := os.ReadFile(filepath.Join(dir, "abc123"))
	if err != nil {
		t.Fatalf("entry file not created: %v", err)
	}
	if string(raw) != "value" {
		t.Errorf("entry file holds %q", raw)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("expected no leftover temp files, got %d entries", len(entries))
	}
}

func TestFSStoreClearLeavesForeignFiles(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFSStore(dir)
	if err != nil {
		t.Fatalf("NewFSStore failed: %v", err)
	}
	ctx := context.Background()

	foreign := map[string]string{
		"build.yaml":        "targets: {}\n",
		"cafe.txt":          "not an entry",
		".tmp-notes-backup": "looks like a temp file",
	}
	for name, content := range foreign {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.MkdirAll(filepath.Join(dir, "src"), 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "src", "game.js"), []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".tmp-abc123-42"), []byte("half"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := store.Put(ctx, "abc123", []byte("value")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	keys, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(keys) != 1 || keys[0] != "abc123" {
		t.Errorf("List must only report entries, got %v", keys)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "abc123")); !os.IsNotExist(err) {
		t.Errorf("entry survived Clear: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, ".tmp-abc123-42")); !os.IsNotExist(err) {
		t.Errorf("leftover temp file survived Clear: %v", err)
	}
	for name, content := range foreign {
		raw, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Errorf("foreign file %s removed by Clear: %v", name, err)
			continue
		}
		if string(raw) != content {
			t.Errorf("foreign file %s changed to %q", name, raw)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "src", "game.js")); err != nil {
		t.Errorf("foreign directory removed by Clear: %v", err)
	}
}

func TestFSStoreRejectsNonDigestKeys(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFSStore(dir)
	if err != nil {
		t.Fatalf("NewFSStore failed: %v", err)
	}
	ctx := context.Background()

	if err := store.Put(ctx, "build.yaml", []byte("x")); err == nil {
		t.Fatal("expected Put to reject a non-digest key")
	}
	if err := os.WriteFile(filepath.Join(dir, "Makefile"), []byte("all:"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Get(ctx, "Makefile"); !IsNotFound(err) {
		t.Errorf("expected ErrNotFound for a foreign file, got %v", err)
	}
	if err := store.Delete(ctx, "Makefile"); !IsNotFound(err) {
		t.Errorf("expected ErrNotFound deleting a foreign file, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "Makefile")); err != nil {
		t.Errorf("foreign file removed: %v", err)
	}
}

func TestSQLiteStorePersistsAcrossOpens(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	first, err := NewSQLiteStore(dir)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	if err := first.Put(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	_ = first.Close()

	second, err := NewSQLiteStore(dir)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer second.Close()
	data, err := second.Get(ctx, "k")
	if err != nil || string(data) != "v" {
		t.Fatalf("expected persisted value, got %q, %v", data, err)
	}
}

func TestOpenBackends(t *testing.T) {
	dir := t.TempDir()
	for _, backend := range []Backend{"", BackendFS, BackendSQLite} {
		s, err := Open(backend, filepath.Join(dir, string(backend)+"x"))
		if err != nil {
			t.Fatalf("Open(%q) failed: %v", backend, err)
		}
		_ = s.Close()
	}
	if _, err := Open("redis", dir); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestMockStoreCountsAndFailures(t *testing.T) {
	store := NewMockStore()
	ctx := context.Background()

	_ = store.Put(ctx, "a", []byte("1"))
	_, _ = store.Get(ctx, "a")
	_, _ = store.Get(ctx, "b")

	calls := store.Calls()
	if calls.Put != 1 || calls.Get != 2 {
		t.Errorf("unexpected call counts %+v", calls)
	}

	store.PutErr = os.ErrPermission
	if err := store.Put(ctx, "c", nil); err != os.ErrPermission {
		t.Errorf("expected injected error, got %v", err)
	}
	if store.Len() != 1 {
		t.Errorf("failed Put must not store, len=%d", store.Len())
	}
}
