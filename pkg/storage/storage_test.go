package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSaveFile_ReplacesContentAndKeepsMode(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "page.html")
	if err := os.WriteFile(path, []byte("old"), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	s := &Storage{}
	if err := s.SaveFile(path, []byte("new")); err != nil {
		t.Fatalf("SaveFile() error = %v", err)
	}

	data, err := s.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(data) != "new" {
		t.Errorf("content = %q, want %q", data, "new")
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("directory has %d entries, want 1 (temp file left behind)", len(entries))
	}
}

func TestSaveFile_NewFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fresh.html")
	s := &Storage{}

	if s.HasFile(path) {
		t.Fatal("HasFile() = true before save")
	}
	if err := s.SaveFile(path, []byte("<html></html>")); err != nil {
		t.Fatalf("SaveFile() error = %v", err)
	}
	if !s.HasFile(path) {
		t.Error("HasFile() = false after save")
	}

	stats, err := s.GetFileStats(path)
	if err != nil {
		t.Fatalf("GetFileStats() error = %v", err)
	}
	if stats.SizeBytes != int64(len("<html></html>")) {
		t.Errorf("SizeBytes = %d, want %d", stats.SizeBytes, len("<html></html>"))
	}
}

func TestReadFile_Missing(t *testing.T) {
	s := &Storage{}
	if _, err := s.ReadFile(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("ReadFile() error = nil, want error for missing file")
	}
}

func TestIsDir(t *testing.T) {
	dir := t.TempDir()
	s := &Storage{}
	if !s.IsDir(dir) {
		t.Error("IsDir(tempdir) = false")
	}
	if s.IsDir(filepath.Join(dir, "missing")) {
		t.Error("IsDir(missing) = true")
	}
}
