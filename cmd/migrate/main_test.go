package main

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestVersionFromFile(t *testing.T) {
	v, err := versionFromFile("001_posts.up.sql")
	if err != nil || v != 1 {
		t.Errorf("got (%d, %v), want (1, nil)", v, err)
	}
	if _, err := versionFromFile("posts.sql"); err == nil {
		t.Error("expected error for a file without a version prefix")
	}
}

func TestUpMigrations_skipsDownFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"002_b.up.sql", "001_a.up.sql", "001_a.down.sql", "README.md"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("--"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	files, err := upMigrations(dir)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(files, []string{"001_a.up.sql", "002_b.up.sql"}) {
		t.Errorf("unexpected files: %v", files)
	}
}

func TestUpMigrations_repoMigrations(t *testing.T) {
	files, err := upMigrations("../../migrations")
	if err != nil {
		t.Fatal(err)
	}
	if len(files) == 0 || files[0] != "001_posts.up.sql" {
		t.Errorf("expected 001_posts.up.sql first, got %v", files)
	}
}
