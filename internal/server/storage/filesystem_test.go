package storage

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFileSystemStore_Save(t *testing.T) {
	t.Run("saves file under the user namespace", func(t *testing.T) {
		store := NewFileSystemStore(t.TempDir())

		n, err := store.Save("alice", "photo.jpg", bytes.NewReader([]byte("test content")))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != 12 {
			t.Errorf("expected 12 bytes written, got %d", n)
		}

		content, err := os.ReadFile(store.Path("alice", "photo.jpg"))
		if err != nil {
			t.Fatalf("failed to read saved file: %v", err)
		}
		if string(content) != "test content" {
			t.Errorf("expected 'test content', got %q", content)
		}
	})

	t.Run("creates nested subfolders lazily", func(t *testing.T) {
		store := NewFileSystemStore(t.TempDir())

		if _, err := store.Save("alice", "trip/day1/a.jpg", bytes.NewReader([]byte("x"))); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := os.Stat(store.Path("alice", "trip/day1/a.jpg")); err != nil {
			t.Errorf("nested file missing: %v", err)
		}
	})

	t.Run("never overwrites an existing file", func(t *testing.T) {
		store := NewFileSystemStore(t.TempDir())

		if _, err := store.Save("alice", "photo.jpg", bytes.NewReader([]byte("original"))); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		_, err := store.Save("alice", "photo.jpg", bytes.NewReader([]byte("imposter")))
		if !errors.Is(err, ErrExists) {
			t.Fatalf("expected ErrExists, got %v", err)
		}

		content, _ := os.ReadFile(store.Path("alice", "photo.jpg"))
		if string(content) != "original" {
			t.Errorf("original content must survive, got %q", content)
		}
	})

	t.Run("same relpath in different namespaces is fine", func(t *testing.T) {
		store := NewFileSystemStore(t.TempDir())

		if _, err := store.Save("alice", "photo.jpg", bytes.NewReader([]byte("a"))); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := store.Save("bob", "photo.jpg", bytes.NewReader([]byte("b"))); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestFileSystemStore_Delete(t *testing.T) {
	store := NewFileSystemStore(t.TempDir())

	if _, err := store.Save("alice", "photo.jpg", bytes.NewReader([]byte("x"))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.Delete("alice", "photo.jpg"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(store.Path("alice", "photo.jpg")); !os.IsNotExist(err) {
		t.Error("file should be gone")
	}

	// Deleting a missing file is not an error.
	if err := store.Delete("alice", "photo.jpg"); err != nil {
		t.Errorf("delete of missing file should be a no-op: %v", err)
	}
}

func TestFileSystemStore_UserDir(t *testing.T) {
	t.Run("existing namespace", func(t *testing.T) {
		store := NewFileSystemStore(t.TempDir())
		store.Save("alice", "photo.jpg", bytes.NewReader([]byte("x")))

		dir, err := store.UserDir("alice")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if filepath.Base(dir) != "alice" {
			t.Errorf("unexpected dir %q", dir)
		}
	})

	t.Run("unknown namespace satisfies os.IsNotExist", func(t *testing.T) {
		store := NewFileSystemStore(t.TempDir())
		_, err := store.UserDir("nobody")
		if !os.IsNotExist(err) {
			t.Errorf("expected not-exist error, got %v", err)
		}
	})
}

func TestZipDirectory(t *testing.T) {
	dir := t.TempDir()
	os.MkdirAll(filepath.Join(dir, "sub"), 0755)
	os.WriteFile(filepath.Join(dir, "a.txt"), []byte("alpha"), 0644)
	os.WriteFile(filepath.Join(dir, "sub", "b.txt"), []byte("beta"), 0644)

	var buf bytes.Buffer
	if err := ZipDirectory(&buf, dir); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("invalid zip: %v", err)
	}

	contents := map[string]string{}
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("failed to open entry %s: %v", f.Name, err)
		}
		var b bytes.Buffer
		b.ReadFrom(rc)
		rc.Close()
		contents[f.Name] = b.String()
	}

	if contents["a.txt"] != "alpha" || contents["sub/b.txt"] != "beta" {
		t.Errorf("unexpected archive contents: %v", contents)
	}
}
