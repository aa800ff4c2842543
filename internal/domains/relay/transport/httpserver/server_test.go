package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	contractchat "github.com/devflow/devflow/internal/contracts/v1/chat"
	relayapi "github.com/devflow/devflow/internal/domains/relay/api"
	"github.com/devflow/devflow/internal/domains/relay/adapters"
	"github.com/devflow/devflow/internal/domains/relay/ports"
	"github.com/devflow/devflow/internal/platform/clock"
	"github.com/devflow/devflow/internal/platform/console"
	"github.com/devflow/devflow/internal/platform/policy"
)

// fakeProvider streams fragments. When gate is set it waits on it after the
// first fragment; failErr ends the stream with an error after all fragments.
type fakeProvider struct {
	fragments []string
	gate      chan struct{}
	failErr   error
	calls     atomic.Int32
}

func (p *fakeProvider) Name() string           { return "fake" }
func (p *fakeProvider) NetworkHosts() []string { return nil }

func (p *fakeProvider) StreamChat(ctx context.Context, req ports.ChatRequest, h ports.StreamHandler) (ports.ChatResponse, error) {
	p.calls.Add(1)
	h.OnStart()
	for i, f := range p.fragments {
		if err := h.OnDelta(f); err != nil {
			return ports.ChatResponse{}, err
		}
		if i == 0 && p.gate != nil {
			select {
			case <-p.gate:
			case <-ctx.Done():
				return ports.ChatResponse{}, ctx.Err()
			}
		}
	}
	if p.failErr != nil {
		return ports.ChatResponse{}, p.failErr
	}
	h.OnDone()
	return ports.ChatResponse{Text: strings.Join(p.fragments, "")}, nil
}

type fixture struct {
	srv      *httptest.Server
	provider *fakeProvider
	clock    *clock.Manual
}

func newFixture(t *testing.T, p *fakeProvider) fixture {
	t.Helper()
	clk := clock.NewManual(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	relay := relayapi.New(relayapi.Dependencies{
		Providers: adapters.NewProviderRegistry("fake", p),
		Provider:  "fake",
		Log:       console.Discard(),
	})
	srv := httptest.NewServer(Server{
		Relay:   relay,
		Origins: policy.DefaultOriginPolicy("https://devflow-ai-chrome-extension.onrender.com"),
		Limiter: adapters.NewMemoryLimiter(clk, 100, 15*time.Minute),
		Clock:   clk,
		Log:     console.Discard(),
	}.Handler())
	t.Cleanup(srv.Close)
	return fixture{srv: srv, provider: p, clock: clk}
}

func (f fixture) post(t *testing.T, path, body string, headers map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, f.srv.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := f.srv.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func decodeError(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	var body contractchat.ErrorBodyV1
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body.Error
}

func TestAskStreamsFragmentsInOrder(t *testing.T) {
	f := newFixture(t, &fakeProvider{fragments: []string{"A closure ", "captures ", "its scope."}})

	resp := f.post(t, "/ask", `{"prompt":"What is a closure?","sessionId":"s-1"}`, nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/plain; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	if len(resp.TransferEncoding) == 0 || resp.TransferEncoding[0] != "chunked" {
		t.Errorf("TransferEncoding = %v, want chunked", resp.TransferEncoding)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "A closure captures its scope." {
		t.Errorf("body = %q", b)
	}
}

func TestAskFlushesBeforeUpstreamFinishes(t *testing.T) {
	gate := make(chan struct{})
	f := newFixture(t, &fakeProvider{fragments: []string{"first ", "second"}, gate: gate})

	resp := f.post(t, "/ask", `{"prompt":"hi"}`, nil)
	defer resp.Body.Close()

	buf := make([]byte, 64)
	n, err := resp.Body.Read(buf)
	if err != nil {
		t.Fatalf("first read: %v", err)
	}
	if got := string(buf[:n]); got != "first " {
		t.Fatalf("first chunk = %q, want it delivered before the upstream continues", got)
	}
	close(gate)

	rest, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if string(rest) != "second" {
		t.Errorf("rest = %q", rest)
	}
}

func TestAskLegacyPath(t *testing.T) {
	f := newFixture(t, &fakeProvider{fragments: []string{"ok"}})
	resp := f.post(t, "/api/ask", `{"prompt":"hi"}`, nil)
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(b) != "ok" {
		t.Errorf("status=%d body=%q", resp.StatusCode, b)
	}
}

func TestAskValidation(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode int
		wantMsg  string
	}{
		{"missing prompt", `{}`, 400, "Prompt is required"},
		{"empty prompt", `{"prompt":""}`, 400, "Prompt is required"},
		{"whitespace prompt", `{"prompt":"   \n"}`, 400, "Prompt is required"},
		{"non-string prompt", `{"prompt":42}`, 400, "Prompt is required"},
		{"empty body", ``, 400, "Prompt is required"},
		{"malformed json", `{"prompt":`, 400, "Invalid JSON body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, &fakeProvider{fragments: []string{"x"}})
			resp := f.post(t, "/ask", tt.body, nil)
			if resp.StatusCode != tt.wantCode {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantCode)
			}
			if msg := decodeError(t, resp); msg != tt.wantMsg {
				t.Errorf("error = %q, want %q", msg, tt.wantMsg)
			}
			if n := f.provider.calls.Load(); n != 0 {
				t.Errorf("upstream called %d times", n)
			}
		})
	}
}

func TestAskBodyTooLarge(t *testing.T) {
	f := newFixture(t, &fakeProvider{fragments: []string{"x"}})
	big := `{"prompt":"` + strings.Repeat("a", DefaultMaxBodyBytes) + `"}`
	resp := f.post(t, "/ask", big, nil)
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", resp.StatusCode)
	}
	resp.Body.Close()
	if f.provider.calls.Load() != 0 {
		t.Error("upstream must not be called")
	}
}

func TestAskUpstreamFailsBeforeFirstFragment(t *testing.T) {
	f := newFixture(t, &fakeProvider{failErr: fmt.Errorf("status=401 invalid api key")})
	resp := f.post(t, "/ask", `{"prompt":"hi"}`, nil)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
	if msg := decodeError(t, resp); msg != "Internal Server Error" {
		t.Errorf("error = %q, upstream detail must not leak", msg)
	}
}

func TestAskUpstreamFailsMidStream(t *testing.T) {
	f := newFixture(t, &fakeProvider{fragments: []string{"partial ", "answer"}, failErr: fmt.Errorf("connection reset")})
	resp := f.post(t, "/ask", `{"prompt":"hi"}`, nil)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, headers were already committed", resp.StatusCode)
	}
	b, err := io.ReadAll(resp.Body)
	if err == nil {
		t.Fatal("want a read error from the aborted stream")
	}
	if string(b) != "partial answer" {
		t.Errorf("partial body = %q", b)
	}
	if strings.Contains(string(b), "error") {
		t.Error("no in-band error marker may be injected")
	}
}

func TestOriginPolicy(t *testing.T) {
	tests := []struct {
		origin  string
		allowed bool
	}{
		{"", true},
		{"chrome-extension://abcdefghijklmnop", true},
		{"http://localhost:5173", true},
		{"http://127.0.0.1:3000", true},
		{"https://devflow-ai-chrome-extension.onrender.com", true},
		{"https://evil.example", false},
		{"https://devflow-ai-chrome-extension.onrender.com.evil.example", false},
	}
	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			f := newFixture(t, &fakeProvider{fragments: []string{"ok"}})
			headers := map[string]string{}
			if tt.origin != "" {
				headers["Origin"] = tt.origin
			}
			resp := f.post(t, "/ask", `{"prompt":"hi"}`, headers)

			if !tt.allowed {
				if resp.StatusCode != http.StatusForbidden {
					t.Errorf("status = %d, want 403", resp.StatusCode)
				}
				if msg := decodeError(t, resp); msg != "Not allowed by CORS" {
					t.Errorf("error = %q", msg)
				}
				if f.provider.calls.Load() != 0 {
					t.Error("upstream called for a rejected origin")
				}
				return
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				t.Errorf("status = %d, want 200", resp.StatusCode)
			}
			if tt.origin != "" {
				if got := resp.Header.Get("Access-Control-Allow-Origin"); got != tt.origin {
					t.Errorf("Access-Control-Allow-Origin = %q", got)
				}
				if resp.Header.Get("Access-Control-Allow-Credentials") != "true" {
					t.Error("credentials header missing")
				}
			}
		})
	}
}

func TestPreflight(t *testing.T) {
	f := newFixture(t, &fakeProvider{})
	req, _ := http.NewRequest(http.MethodOptions, f.srv.URL+"/ask", nil)
	req.Header.Set("Origin", "chrome-extension://abc")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "content-type")
	resp, err := f.srv.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want 204", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Methods"); got != "GET, POST" {
		t.Errorf("Allow-Methods = %q", got)
	}
	if got := resp.Header.Get("Access-Control-Allow-Headers"); got != "content-type" {
		t.Errorf("Allow-Headers = %q", got)
	}
}

func TestRateLimit(t *testing.T) {
	f := newFixture(t, &fakeProvider{fragments: []string{"ok"}})

	for i := 1; i <= 100; i++ {
		resp, err := f.srv.Client().Get(f.srv.URL + "/health")
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("request %d: status = %d", i, resp.StatusCode)
		}
	}

	resp := f.post(t, "/ask", `{"prompt":"hi"}`, nil)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("101st request: status = %d, want 429", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") != "900" {
		t.Errorf("Retry-After = %q, want 900", resp.Header.Get("Retry-After"))
	}
	if resp.Header.Get("RateLimit-Remaining") != "0" {
		t.Errorf("RateLimit-Remaining = %q", resp.Header.Get("RateLimit-Remaining"))
	}
	if msg := decodeError(t, resp); msg != "Too many requests, please try again later." {
		t.Errorf("error = %q", msg)
	}
	if f.provider.calls.Load() != 0 {
		t.Error("upstream called while rate limited")
	}

	f.clock.Advance(15 * time.Minute)
	resp = f.post(t, "/ask", `{"prompt":"hi"}`, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("after window: status = %d, want 200", resp.StatusCode)
	}
}

func TestHealth(t *testing.T) {
	f := newFixture(t, &fakeProvider{})
	for _, path := range []string{"/", "/health"} {
		resp, err := f.srv.Client().Get(f.srv.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		var body contractchat.HealthV1
		_ = json.NewDecoder(resp.Body).Decode(&body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK || body.Status != "DevFlow API running" {
			t.Errorf("%s: status=%d body=%+v", path, resp.StatusCode, body)
		}
		if body.Time != "2025-03-01T12:00:00Z" {
			t.Errorf("%s: time = %q", path, body.Time)
		}
	}

	resp, err := f.srv.Client().Get(f.srv.URL + "/missing")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("/missing: status = %d", resp.StatusCode)
	}
}

func TestRecoverPanics(t *testing.T) {
	var logs bytes.Buffer
	s := Server{Log: console.New(&logs)}
	h := s.recoverPanics(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d", rec.Code)
	}
	if !strings.Contains(logs.String(), "boom") {
		t.Error("panic should be logged")
	}

	defer func() {
		if v := recover(); v != http.ErrAbortHandler {
			t.Errorf("recovered %v, want http.ErrAbortHandler to pass through", v)
		}
	}()
	s.recoverPanics(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	})).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
}

func TestClientKey(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.7:51234"
	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")

	if got := clientKey(r, false); got != "10.0.0.7" {
		t.Errorf("untrusted proxy: key = %q", got)
	}
	if got := clientKey(r, true); got != "203.0.113.9" {
		t.Errorf("trusted proxy: key = %q", got)
	}
}
