package cli

import (
	"bytes"
	"context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/devflow/devflow/internal/app/wiring"
	contractrelay "github.com/devflow/devflow/internal/contracts/v1/relay"
	"github.com/devflow/devflow/internal/platform/console"
)

func runCLI(t *testing.T, ctx context.Context, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(ctx, args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

// cleanEnv keeps the developer's shell environment out of config resolution.
func cleanEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"PORT", "DEVFLOW_PROVIDER", "DEVFLOW_MODEL", "ALLOWED_ORIGIN",
		"DEVFLOW_UPSTREAM_TIMEOUT", "OTEL_EXPORTER_OTLP_ENDPOINT", "GROQ_API_KEY",
	} {
		t.Setenv(k, "")
	}
}

func TestRootCommand(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantCode int
		wantOut  string
	}{
		{name: "version flag", args: []string{"--version"}, wantCode: exitOK, wantOut: "dev"},
		{name: "help flag", args: []string{"--help"}, wantCode: exitOK, wantOut: "devflow serve"},
		{name: "unknown command", args: []string{"nonexistent-command"}, wantCode: exitUsage},
		{name: "unknown flag", args: []string{"serve", "--nope"}, wantCode: exitUsage},
		{name: "ask without prompt", args: []string{"ask"}, wantCode: exitUsage},
		{name: "copy without number", args: []string{"copy"}, wantCode: exitUsage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, out, errOut := runCLI(t, context.Background(), tt.args...)
			if code != tt.wantCode {
				t.Fatalf("code=%d want %d\nstdout=%s\nstderr=%s", code, tt.wantCode, out, errOut)
			}
			if tt.wantOut != "" && !strings.Contains(out, tt.wantOut) {
				t.Fatalf("stdout missing %q:\n%s", tt.wantOut, out)
			}
		})
	}
}

func TestServeMissingCredentialExitsBeforeListening(t *testing.T) {
	cleanEnv(t)
	dir := t.TempDir()

	code, _, errOut := runCLI(t, context.Background(),
		"serve",
		"--config", filepath.Join(dir, "devflow.yaml"),
		"--env-file", filepath.Join(dir, ".env"),
		"--listen", "127.0.0.1:0",
	)
	if code != exitError {
		t.Fatalf("code=%d want %d", code, exitError)
	}
	if !strings.Contains(errOut, "GROQ_API_KEY") {
		t.Fatalf("stderr does not name the missing key:\n%s", errOut)
	}
	if strings.Contains(errOut, "relay listening") {
		t.Fatalf("server started despite missing credential:\n%s", errOut)
	}
}

func TestServeUnknownProvider(t *testing.T) {
	cleanEnv(t)
	dir := t.TempDir()

	code, _, errOut := runCLI(t, context.Background(),
		"serve", "--provider", "nope",
		"--config", filepath.Join(dir, "devflow.yaml"),
		"--env-file", filepath.Join(dir, ".env"),
	)
	if code != exitError || !strings.Contains(errOut, "unknown provider") {
		t.Fatalf("code=%d stderr=%s", code, errOut)
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	cleanEnv(t)
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	code, _, errOut := runCLI(t, ctx,
		"serve", "--provider", "stub",
		"--config", filepath.Join(dir, "devflow.yaml"),
		"--env-file", filepath.Join(dir, ".env"),
		"--listen", "127.0.0.1:0",
	)
	if code != exitOK {
		t.Fatalf("code=%d stderr=%s", code, errOut)
	}
	for _, want := range []string{"relay listening", "provider=stub", "relay stopped"} {
		if !strings.Contains(errOut, want) {
			t.Fatalf("stderr missing %q:\n%s", want, errOut)
		}
	}
}

func stubRelay(t *testing.T) *httptest.Server {
	t.Helper()
	ctr := wiring.New(console.Discard())
	s := contractrelay.SettingsV1{
		Provider:        "stub",
		RateLimit:       contractrelay.RateLimitV1{Max: 100, Window: time.Minute},
		UpstreamTimeout: time.Minute,
	}
	srv := httptest.NewServer(ctr.RelayHandler(s, ctr.Relay(s)))
	t.Cleanup(srv.Close)
	return srv
}

func TestAskHistoryClear(t *testing.T) {
	relay := stubRelay(t)
	store := filepath.Join(t.TempDir(), "history.db")
	shellFlags := []string{"--relay", relay.URL, "--store", store, "--style", "notty"}

	code, out, errOut := runCLI(t, context.Background(), append([]string{"ask", "what", "is", "defer?"}, shellFlags...)...)
	if code != exitOK {
		t.Fatalf("ask code=%d stderr=%s", code, errOut)
	}
	if !strings.Contains(out, "You asked:") || !strings.Contains(out, "> what is defer?") {
		t.Fatalf("ask stdout:\n%s", out)
	}

	code, out, errOut = runCLI(t, context.Background(), append([]string{"history"}, shellFlags...)...)
	if code != exitOK {
		t.Fatalf("history code=%d stderr=%s", code, errOut)
	}
	for _, want := range []string{"You", "DevFlow", "what is defer?"} {
		if !strings.Contains(out, want) {
			t.Fatalf("history missing %q:\n%s", want, out)
		}
	}

	code, _, errOut = runCLI(t, context.Background(), append([]string{"copy", "1"}, shellFlags...)...)
	if code != exitError || !strings.Contains(errOut, "no code block 1") {
		t.Fatalf("copy code=%d stderr=%s", code, errOut)
	}

	code, out, _ = runCLI(t, context.Background(), append([]string{"clear"}, shellFlags...)...)
	if code != exitOK || !strings.Contains(out, "Conversation cleared.") {
		t.Fatalf("clear code=%d stdout=%s", code, out)
	}

	code, out, _ = runCLI(t, context.Background(), append([]string{"history"}, shellFlags...)...)
	if code != exitOK || !strings.Contains(out, "No conversation yet.") {
		t.Fatalf("history after clear code=%d stdout=%s", code, out)
	}
}

func TestAskRelayUnreachable(t *testing.T) {
	relay := stubRelay(t)
	url := relay.URL
	relay.Close()

	store := filepath.Join(t.TempDir(), "history.sqlite")
	code, _, errOut := runCLI(t, context.Background(), "ask", "hello", "--relay", url, "--store", store)
	if code != exitError {
		t.Fatalf("code=%d stderr=%s", code, errOut)
	}
}

func TestCopyRejectsNonNumber(t *testing.T) {
	store := filepath.Join(t.TempDir(), "history.db")
	code, _, errOut := runCLI(t, context.Background(), "copy", "first", "--store", store)
	if code != exitError || !strings.Contains(errOut, "must be an integer") {
		t.Fatalf("code=%d stderr=%s", code, errOut)
	}
}
