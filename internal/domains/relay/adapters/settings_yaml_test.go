package adapters

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/devflow/devflow/internal/platform/errors"
)

func TestYAMLSettingsStoreRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devflow.yaml")
	content := `listen: ":8080"
provider: anthropic
model: claude-3-5-haiku-latest
allowed_origins:
  - https://devflow.example
rate_limit:
  max: 10
  window: 1m
upstream_timeout: 30s
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	s, found, err := NewYAMLSettingsStore().Read(path)
	if err != nil || !found {
		t.Fatalf("Read() found=%v err=%v", found, err)
	}
	if s.Listen != ":8080" || s.Provider != "anthropic" || s.Model != "claude-3-5-haiku-latest" {
		t.Errorf("settings = %+v", s)
	}
	if len(s.AllowedOrigins) != 1 || s.AllowedOrigins[0] != "https://devflow.example" {
		t.Errorf("AllowedOrigins = %v", s.AllowedOrigins)
	}
	if s.RateLimit.Max != 10 || s.RateLimit.Window != time.Minute {
		t.Errorf("RateLimit = %+v", s.RateLimit)
	}
	if s.UpstreamTimeout != 30*time.Second {
		t.Errorf("UpstreamTimeout = %v", s.UpstreamTimeout)
	}
}

func TestYAMLSettingsStoreMissingAndInvalid(t *testing.T) {
	dir := t.TempDir()

	if _, found, err := NewYAMLSettingsStore().Read(filepath.Join(dir, "absent.yaml")); found || err != nil {
		t.Errorf("missing file: found=%v err=%v", found, err)
	}

	empty := filepath.Join(dir, "empty.yaml")
	_ = os.WriteFile(empty, nil, 0o644)
	if _, found, err := NewYAMLSettingsStore().Read(empty); !found || err != nil {
		t.Errorf("empty file: found=%v err=%v", found, err)
	}

	bad := filepath.Join(dir, "bad.yaml")
	_ = os.WriteFile(bad, []byte("lisen: \":1\"\n"), 0o644)
	_, _, err := NewYAMLSettingsStore().Read(bad)
	if !errors.IsConfig(err) {
		t.Errorf("unknown key: error = %v, want config kind", err)
	}
}
