package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestVersionFromFile(t *testing.T) {
	cases := []struct {
		file    string
		want    int64
		wantErr bool
	}{
		{"001_custom_domains.up.sql", 1, false},
		{"012_add_index.up.sql", 12, false},
		{"nounderscore.sql", 0, true},
		{"abc_init.up.sql", 0, true},
	}
	for _, tc := range cases {
		got, err := versionFromFile(tc.file)
		if (err != nil) != tc.wantErr {
			t.Errorf("%s: err = %v, wantErr %v", tc.file, err, tc.wantErr)
			continue
		}
		if got != tc.want {
			t.Errorf("%s: version = %d, want %d", tc.file, got, tc.want)
		}
	}
}

func TestUpMigrations(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"010_later.up.sql", "002_second.up.sql", "002_second.down.sql", "001_first.up.sql", "README.md"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1;"), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	got, err := upMigrations(dir)
	if err != nil {
		t.Fatal(err)
	}
	want := []int64{1, 2, 10}
	if len(got) != len(want) {
		t.Fatalf("got %d migrations, want %d", len(got), len(want))
	}
	for i, m := range got {
		if m.version != want[i] {
			t.Errorf("migration %d: version = %d, want %d", i, m.version, want[i])
		}
	}
}

func TestUpMigrations_duplicateVersion(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"001_a.up.sql", "001_b.up.sql"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1;"), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := upMigrations(dir); err == nil {
		t.Error("expected duplicate version error")
	}
}

func TestUpMigrations_repoMigrationsParse(t *testing.T) {
	got, err := upMigrations(filepath.Join("..", "..", "migrations"))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) == 0 {
		t.Error("expected at least one migration in the repository")
	}
}
