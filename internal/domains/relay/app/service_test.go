package app

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/devflow/devflow/internal/domains/relay/domain"
	"github.com/devflow/devflow/internal/domains/relay/ports"
	"github.com/devflow/devflow/internal/platform/errors"
)

// scriptedProvider emits fragments, then fails with failErr (if set). With
// block set it waits for ctx instead of ending.
type scriptedProvider struct {
	fragments []string
	failErr   error
	block     bool

	calls   int
	lastReq ports.ChatRequest
}

func (p *scriptedProvider) Name() string           { return "scripted" }
func (p *scriptedProvider) NetworkHosts() []string { return nil }

func (p *scriptedProvider) StreamChat(ctx context.Context, req ports.ChatRequest, h ports.StreamHandler) (ports.ChatResponse, error) {
	p.calls++
	p.lastReq = req
	h.OnStart()
	var sb strings.Builder
	for _, f := range p.fragments {
		if err := h.OnDelta(f); err != nil {
			return ports.ChatResponse{Text: sb.String()}, err
		}
		sb.WriteString(f)
	}
	if p.block {
		<-ctx.Done()
		return ports.ChatResponse{Text: sb.String()}, ctx.Err()
	}
	if p.failErr != nil {
		return ports.ChatResponse{Text: sb.String()}, p.failErr
	}
	h.OnDone()
	return ports.ChatResponse{Text: sb.String(), Model: "scripted-1"}, nil
}

type registry struct{ p ports.Provider }

func (r registry) Get(string) (ports.Provider, bool) { return r.p, true }
func (r registry) Names() []string                   { return []string{r.p.Name()} }
func (r registry) Default() ports.Provider           { return r.p }

type bufferSink struct {
	got     []string
	failAt  int
	onWrite func()
}

func (s *bufferSink) WriteFragment(f string) error {
	if s.failAt > 0 && len(s.got)+1 >= s.failAt {
		return fmt.Errorf("broken pipe")
	}
	s.got = append(s.got, f)
	if s.onWrite != nil {
		s.onWrite()
	}
	return nil
}

func newService(p ports.Provider) *Service {
	return &Service{Providers: registry{p}}
}

func TestAskForwardsFragmentsInOrder(t *testing.T) {
	p := &scriptedProvider{fragments: []string{"A closure ", "", "captures ", "its scope."}}
	sink := &bufferSink{}

	res, err := newService(p).Ask(context.Background(), AskRequest{Prompt: "What is a closure?", SessionID: "abc"}, sink)
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if got := strings.Join(sink.got, "|"); got != "A closure |captures |its scope." {
		t.Errorf("sink got %q", got)
	}
	if res.State != domain.StateCompleted || res.Cause != domain.CauseNone {
		t.Errorf("state=%s cause=%q", res.State, res.Cause)
	}
	if res.Fragments != 3 || res.Bytes != len("A closure captures its scope.") {
		t.Errorf("fragments=%d bytes=%d", res.Fragments, res.Bytes)
	}
	wantTrail := []domain.State{domain.StateReceived, domain.StateValidated, domain.StateUpstreamStreaming, domain.StateCompleted}
	if fmt.Sprint(res.Trail) != fmt.Sprint(wantTrail) {
		t.Errorf("trail = %v, want %v", res.Trail, wantTrail)
	}
	if res.Model != "scripted-1" {
		t.Errorf("Model = %q", res.Model)
	}
}

func TestAskSendsSystemTextAndSingleUserTurn(t *testing.T) {
	p := &scriptedProvider{}
	_, err := newService(p).Ask(context.Background(), AskRequest{Prompt: "  hi  "}, &bufferSink{})
	if err != nil {
		t.Fatal(err)
	}
	if p.lastReq.SystemText != domain.DefaultSystemText {
		t.Errorf("SystemText = %q", p.lastReq.SystemText)
	}
	if len(p.lastReq.Messages) != 1 || p.lastReq.Messages[0].Role != "user" || p.lastReq.Messages[0].Text != "  hi  " {
		t.Errorf("Messages = %+v", p.lastReq.Messages)
	}
}

func TestAskRejectsEmptyPromptWithoutUpstreamCall(t *testing.T) {
	for _, prompt := range []string{"", "   ", "\n\t"} {
		p := &scriptedProvider{fragments: []string{"x"}}
		res, err := newService(p).Ask(context.Background(), AskRequest{Prompt: prompt}, &bufferSink{})
		if !errors.IsValidation(err) {
			t.Errorf("prompt %q: error = %v, want validation", prompt, err)
		}
		if p.calls != 0 {
			t.Errorf("prompt %q: upstream called %d times", prompt, p.calls)
		}
		if res.State != domain.StateFailed || res.Cause != domain.CauseValidation {
			t.Errorf("prompt %q: state=%s cause=%s", prompt, res.State, res.Cause)
		}
	}
}

func TestAskClassifiesFailures(t *testing.T) {
	upstreamErr := fmt.Errorf("status=503")

	tests := []struct {
		name      string
		provider  *scriptedProvider
		sink      *bufferSink
		timeout   time.Duration
		wantKind  errors.Kind
		wantCause domain.FailureCause
	}{
		{
			name:      "before first fragment",
			provider:  &scriptedProvider{failErr: upstreamErr},
			wantKind:  errors.KindUpstream,
			wantCause: domain.CauseUpstreamError,
		},
		{
			name:      "after first fragment",
			provider:  &scriptedProvider{fragments: []string{"partial"}, failErr: upstreamErr},
			wantKind:  errors.KindMidStream,
			wantCause: domain.CauseUpstreamError,
		},
		{
			name:      "timeout",
			provider:  &scriptedProvider{fragments: []string{"slow"}, block: true},
			timeout:   20 * time.Millisecond,
			wantKind:  errors.KindMidStream,
			wantCause: domain.CauseUpstreamTimeout,
		},
		{
			name:      "sink refuses write",
			provider:  &scriptedProvider{fragments: []string{"a", "b", "c"}},
			sink:      &bufferSink{failAt: 2},
			wantKind:  errors.KindCanceled,
			wantCause: domain.CauseClientDisconnect,
		},
		{
			name:      "missing credential",
			provider:  &scriptedProvider{failErr: errors.NewConfig("missing key")},
			wantKind:  errors.KindConfig,
			wantCause: domain.CauseUpstreamError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := tt.sink
			if sink == nil {
				sink = &bufferSink{}
			}
			svc := newService(tt.provider)
			svc.UpstreamTimeout = tt.timeout

			res, err := svc.Ask(context.Background(), AskRequest{Prompt: "hello"}, sink)
			if errors.KindOf(err) != tt.wantKind {
				t.Fatalf("kind = %q (%v), want %q", errors.KindOf(err), err, tt.wantKind)
			}
			if res.Cause != tt.wantCause {
				t.Errorf("cause = %q, want %q", res.Cause, tt.wantCause)
			}
			if res.State != domain.StateFailed {
				t.Errorf("state = %s, want failed", res.State)
			}
		})
	}
}

func TestAskClientCancelIsNotTimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := &scriptedProvider{fragments: []string{"first"}, block: true}
	sink := &bufferSink{onWrite: cancel}

	res, err := newService(p).Ask(ctx, AskRequest{Prompt: "hello"}, sink)
	if errors.KindOf(err) != errors.KindCanceled {
		t.Fatalf("error = %v, want canceled", err)
	}
	if res.Cause != domain.CauseClientDisconnect {
		t.Errorf("cause = %q", res.Cause)
	}
}

func TestAskNilDependencies(t *testing.T) {
	if _, err := (&Service{}).Ask(context.Background(), AskRequest{Prompt: "x"}, &bufferSink{}); err == nil {
		t.Error("nil Providers should error")
	}
	if _, err := newService(&scriptedProvider{}).Ask(context.Background(), AskRequest{Prompt: "x"}, nil); err == nil {
		t.Error("nil sink should error")
	}
}
