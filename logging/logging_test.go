package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestRotatingWriter_RotatesPastCap(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "daemon.log")

	w, err := newRotatingWriter(path, 64)
	if err != nil {
		t.Fatalf("failed to open writer: %v", err)
	}
	defer w.Close()

	line := bytes.Repeat([]byte("a"), 40)
	for i := 0; i < 3; i++ {
		if _, err := w.Write(line); err != nil {
			t.Fatalf("write failed: %v", err)
		}
	}

	backup, err := os.ReadFile(path + ".1")
	if err != nil {
		t.Fatalf("expected backup after rotation: %v", err)
	}
	if len(backup) == 0 {
		t.Fatal("backup is empty")
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat failed: %v", err)
	}
	if info.Size() > 64 {
		t.Fatalf("active log not reset after rotation, size %d", info.Size())
	}
}

func TestRotatingWriter_TruncatesOversizedOnOpen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "daemon.log")

	if err := os.WriteFile(path, bytes.Repeat([]byte("x"), 200), 0644); err != nil {
		t.Fatalf("failed to seed log: %v", err)
	}

	w, err := newRotatingWriter(path, 64)
	if err != nil {
		t.Fatalf("failed to open writer: %v", err)
	}
	defer w.Close()

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat failed: %v", err)
	}
	if info.Size() != 0 {
		t.Fatalf("expected oversized log truncated on open, size %d", info.Size())
	}
}
