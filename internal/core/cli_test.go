package core

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolve(t *testing.T) {
	t.Run("no arguments", func(t *testing.T) {
		if _, err := Resolve(nil); err == nil {
			t.Error("expected error for empty argument list")
		}
	})

	t.Run("missing path", func(t *testing.T) {
		if _, err := Resolve([]string{"/does/not/exist"}); err == nil {
			t.Error("expected error for missing path")
		}
	})

	t.Run("plain file keeps its base name", func(t *testing.T) {
		dir := t.TempDir()
		file := filepath.Join(dir, "solo.txt")
		os.WriteFile(file, []byte("x"), 0644)

		files, err := Resolve([]string{file})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(files) != 1 || files[0].RelPath() != "solo.txt" {
			t.Fatalf("unexpected result: %+v", files)
		}
	})

	t.Run("directory contributes prefixed relative paths", func(t *testing.T) {
		root := t.TempDir()
		trip := filepath.Join(root, "trip")
		os.MkdirAll(filepath.Join(trip, "day1"), 0755)
		os.WriteFile(filepath.Join(trip, "a.jpg"), []byte("x"), 0644)
		os.WriteFile(filepath.Join(trip, "day1", "b.jpg"), []byte("y"), 0644)

		files, err := Resolve([]string{trip})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		got := map[string]bool{}
		for _, f := range files {
			got[f.RelPath()] = true
		}
		if !got["trip/a.jpg"] || !got["trip/day1/b.jpg"] {
			t.Errorf("unexpected relative paths: %v", got)
		}
	})

	t.Run("mixes files and directories in one call", func(t *testing.T) {
		root := t.TempDir()
		file := filepath.Join(root, "solo.txt")
		os.WriteFile(file, []byte("x"), 0644)
		sub := filepath.Join(root, "sub")
		os.MkdirAll(sub, 0755)
		os.WriteFile(filepath.Join(sub, "inner.txt"), []byte("y"), 0644)

		files, err := Resolve([]string{file, sub})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(files) != 2 {
			t.Fatalf("expected 2 files, got %d", len(files))
		}
	})
}
