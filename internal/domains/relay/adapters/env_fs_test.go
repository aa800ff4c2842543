package adapters

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/devflow/devflow/internal/domains/relay/ports"
)

func TestFSEnvLoader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "# comment\n\nexport DEVFLOW_TEST_A=one\nDEVFLOW_TEST_B=\"two words\"\nDEVFLOW_TEST_C='three'\nnot a pair\nDEVFLOW_TEST_KEEP=file\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DEVFLOW_TEST_KEEP", "process")
	for _, k := range []string{"DEVFLOW_TEST_A", "DEVFLOW_TEST_B", "DEVFLOW_TEST_C"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	res, err := NewFSEnvLoader().Load(ports.LoadEnvRequest{Path: path})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !res.Loaded {
		t.Fatal("Loaded = false")
	}
	if len(res.Warnings) != 1 {
		t.Errorf("Warnings = %v, want one for the invalid line", res.Warnings)
	}

	checks := map[string]string{
		"DEVFLOW_TEST_A":    "one",
		"DEVFLOW_TEST_B":    "two words",
		"DEVFLOW_TEST_C":    "three",
		"DEVFLOW_TEST_KEEP": "process",
	}
	for k, want := range checks {
		if got := os.Getenv(k); got != want {
			t.Errorf("%s = %q, want %q", k, got, want)
		}
	}
}

func TestFSEnvLoaderMissingFile(t *testing.T) {
	res, err := NewFSEnvLoader().Load(ports.LoadEnvRequest{Path: filepath.Join(t.TempDir(), "nope.env")})
	if err != nil || res.Loaded {
		t.Errorf("missing file: Loaded=%v err=%v, want false/nil", res.Loaded, err)
	}
}
