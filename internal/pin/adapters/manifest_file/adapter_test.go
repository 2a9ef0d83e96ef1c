package manifestfile

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nathantilsley/chart-pin/api"
)

func TestLoadSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "build.json")

	original := `{
  "schema": 1,
  "helmCharts": {
    "wire-server": {
      "repo": "https://charts.example.com/wire",
      "version": "5.23.0",
      "meta": {
        "commit": "0123456789012345678901234567890123456789"
      }
    }
  }
}
`
	if err := os.WriteFile(path, []byte(original), 0o644); err != nil {
		t.Fatal(err)
	}

	a := New()
	m, err := a.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	chart, ok := m.Chart("wire-server")
	if !ok || chart.Version != "5.23.0" {
		t.Fatalf("Load() chart = %+v, ok = %v", chart, ok)
	}

	chart.Version = "5.24.0"
	m.SetChart("wire-server", chart)
	if err := a.Save(path, m); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(string(data), "\n") {
		t.Error("Save() output missing trailing newline")
	}
	if !strings.Contains(string(data), `"schema": 1`) {
		t.Error("Save() dropped unknown top-level key \"schema\"")
	}

	reloaded, err := a.Load(path)
	if err != nil {
		t.Fatalf("Load() after Save() error = %v", err)
	}
	got, _ := reloaded.Chart("wire-server")
	if got.Version != "5.24.0" {
		t.Errorf("round trip version = %q, want %q", got.Version, "5.24.0")
	}
	if got.Meta[api.MetaCommit] != "0123456789012345678901234567890123456789" {
		t.Errorf("round trip meta = %v", got.Meta)
	}
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	malformed := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(malformed, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		path string
	}{
		{"missing file", filepath.Join(dir, "absent.json")},
		{"malformed json", malformed},
	}

	a := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := a.Load(tt.path); err == nil {
				t.Error("Load() expected error, got nil")
			}
		})
	}
}

func TestSave_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "build.json")

	m := &api.Manifest{HelmCharts: map[string]api.Chart{
		"brig": {Repo: "https://charts.example.com/wire", Version: "1.0.0"},
	}}

	if err := New().Save(path, m); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if e.Name() != "build.json" {
			t.Errorf("unexpected leftover file %q", e.Name())
		}
	}
}
