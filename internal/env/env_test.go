package env

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMergeLaterWins(t *testing.T) {
	got := Merge(
		Vars{"A": "1", "B": "1"},
		Vars{"B": "2", "C": "2"},
	)

	want := Vars{"A": "1", "B": "2", "C": "2"}
	if len(got) != len(want) {
		t.Fatalf("Merge() = %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("Merge()[%q] = %q, want %q", k, got[k], v)
		}
	}
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deploy.env")
	content := "SELFHOST_DOMAIN=example.com\n# comment\nSELFHOST_REGION=\"us-east-1\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	vars, err := LoadEnvFile(path)
	if err != nil {
		t.Fatalf("LoadEnvFile() error = %v", err)
	}
	if vars["SELFHOST_DOMAIN"] != "example.com" {
		t.Errorf("SELFHOST_DOMAIN = %q, want %q", vars["SELFHOST_DOMAIN"], "example.com")
	}
	if vars["SELFHOST_REGION"] != "us-east-1" {
		t.Errorf("SELFHOST_REGION = %q, want %q", vars["SELFHOST_REGION"], "us-east-1")
	}
}

func TestLoadEnvFilesMergesInOrder(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.env"), []byte("KEY=first\nONLY_A=a\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "b.env"), []byte("KEY=second\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	vars, err := LoadEnvFiles(dir, []string{"a.env", "b.env", ""})
	if err != nil {
		t.Fatalf("LoadEnvFiles() error = %v", err)
	}
	if vars["KEY"] != "second" {
		t.Errorf("KEY = %q, want %q", vars["KEY"], "second")
	}
	if vars["ONLY_A"] != "a" {
		t.Errorf("ONLY_A = %q, want %q", vars["ONLY_A"], "a")
	}
}

func TestLoadEnvFilesMissingFile(t *testing.T) {
	if _, err := LoadEnvFiles(t.TempDir(), []string{"missing.env"}); err == nil {
		t.Error("LoadEnvFiles() error = nil, want error for missing file")
	}
}
