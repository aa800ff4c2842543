package app

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/devflow/devflow/internal/domains/relay/domain"
	"github.com/devflow/devflow/internal/domains/relay/ports"
	"github.com/devflow/devflow/internal/platform/console"
	"github.com/devflow/devflow/internal/platform/errors"
	"github.com/devflow/devflow/internal/platform/telemetry"
)

// DefaultUpstreamTimeout bounds one upstream stream end to end.
const DefaultUpstreamTimeout = 2 * time.Minute

// Service implements the relay use-case: validate one prompt, forward it upstream
// with the fixed system instruction, and pass every fragment to the caller's sink.
//
// The service holds no per-request state; it is safe for concurrent use.
type Service struct {
	Providers ports.ProviderRegistry

	// Provider selects the upstream by name; empty means the registry default.
	Provider string
	Model    string

	SystemText      string
	MaxOutputTokens int

	// UpstreamTimeout <= 0 means DefaultUpstreamTimeout.
	UpstreamTimeout time.Duration

	Log console.Logger
}

type AskRequest struct {
	Prompt string

	// SessionID is an opaque client token. It is logged and otherwise ignored.
	SessionID string
}

type AskResult struct {
	State domain.State
	Trail []domain.State
	Cause domain.FailureCause

	// Fragments and Bytes count what reached the sink.
	Fragments int
	Bytes     int

	Provider string
	Model    string
	Duration time.Duration
}

// Ask runs one relay request. Fragments are written to sink in arrival order.
//
// The returned error's kind tells the transport what the caller may still see:
//   - validation: nothing was sent upstream
//   - upstream: the upstream failed before any fragment reached the sink
//   - midstream: fragments were already forwarded when the upstream failed
//   - canceled: the caller went away
func (s *Service) Ask(ctx context.Context, req AskRequest, sink ports.FragmentSink) (AskResult, error) {
	if s.Providers == nil {
		return AskResult{}, errors.NewInternal("relay Providers is nil", nil)
	}
	if sink == nil {
		return AskResult{}, errors.NewInternal("relay sink is nil", nil)
	}

	start := time.Now()
	lc := domain.NewLifecycle()
	res := AskResult{}
	log := s.Log.With("session", req.SessionID)

	ctx, span := telemetry.Tracer().Start(ctx, "relay.ask")
	defer span.End()

	finish := func(cause domain.FailureCause, err error) (AskResult, error) {
		if err != nil {
			lc.Fail()
			span.RecordError(err)
			span.SetStatus(codes.Error, string(cause))
		}
		res.State = lc.State()
		res.Trail = lc.Trail()
		res.Cause = cause
		res.Duration = time.Since(start)
		span.SetAttributes(
			attribute.String("relay.state", string(res.State)),
			attribute.String("relay.failure_cause", string(cause)),
			attribute.String("relay.provider", res.Provider),
			attribute.Int("relay.fragments", res.Fragments),
			attribute.Int("relay.bytes", res.Bytes),
		)
		return res, err
	}

	if err := domain.ValidatePrompt(req.Prompt); err != nil {
		log.Debug("ask rejected", "reason", errors.MessageOf(err))
		return finish(domain.CauseValidation, err)
	}
	_ = lc.To(domain.StateValidated)

	provider, ok := s.Providers.Get(s.Provider)
	if !ok || provider == nil {
		return finish(domain.CauseUpstreamError, errors.NewConfig("unknown provider: "+s.Provider))
	}
	res.Provider = provider.Name()
	res.Model = strings.TrimSpace(s.Model)

	timeout := s.UpstreamTimeout
	if timeout <= 0 {
		timeout = DefaultUpstreamTimeout
	}
	upCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	_ = lc.To(domain.StateUpstreamStreaming)
	log.Debug("upstream stream started", "provider", res.Provider, "model", res.Model)

	fw := &forwarder{sink: sink}
	resp, err := provider.StreamChat(upCtx, ports.ChatRequest{
		Model:           res.Model,
		SystemText:      domain.SystemTextOrDefault(s.SystemText),
		Messages:        []ports.ChatMessage{{Role: "user", Text: req.Prompt}},
		MaxOutputTokens: s.MaxOutputTokens,
	}, fw)
	res.Fragments, res.Bytes = fw.fragments, fw.bytes
	if resp.Model != "" {
		res.Model = resp.Model
	}

	if err == nil {
		_ = lc.To(domain.StateCompleted)
		log.Info("ask completed", "provider", res.Provider, "fragments", res.Fragments, "bytes", res.Bytes, "elapsed", time.Since(start).Round(time.Millisecond))
		return finish(domain.CauseNone, nil)
	}

	cause := classify(ctx, upCtx, fw, err)
	switch cause {
	case domain.CauseClientDisconnect:
		log.Info("client disconnected", "provider", res.Provider, "fragments", res.Fragments)
		return finish(cause, errors.NewCanceled("client disconnected", err))
	case domain.CauseUpstreamTimeout:
		log.Error("upstream timeout", "provider", res.Provider, "timeout", timeout, "fragments", res.Fragments)
	default:
		log.Error("upstream failed", "provider", res.Provider, "fragments", res.Fragments, "err", err)
	}

	if errors.IsConfig(err) {
		return finish(cause, err)
	}
	if res.Fragments > 0 {
		return finish(cause, errors.NewMidStream("upstream failed after streaming began", err))
	}
	return finish(cause, errors.NewUpstream("upstream failed", err))
}

// classify names the failure. A dead caller wins over everything else: the
// sink refused a write, or the caller's own context ended.
func classify(ctx, upCtx context.Context, fw *forwarder, err error) domain.FailureCause {
	if fw.sinkErr != nil || ctx.Err() != nil {
		return domain.CauseClientDisconnect
	}
	if stderrors.Is(upCtx.Err(), context.DeadlineExceeded) || stderrors.Is(err, context.DeadlineExceeded) {
		return domain.CauseUpstreamTimeout
	}
	return domain.CauseUpstreamError
}

////////////////////////////////////////////////////////////////////////////////
// Forwarding
////////////////////////////////////////////////////////////////////////////////

// forwarder is the provider's StreamHandler. It forwards fragments without
// buffering and remembers whether the sink refused one.
type forwarder struct {
	sink ports.FragmentSink

	fragments int
	bytes     int
	sinkErr   error
}

func (f *forwarder) OnStart() {}

func (f *forwarder) OnDelta(delta string) error {
	if delta == "" {
		return nil
	}
	if err := f.sink.WriteFragment(delta); err != nil {
		f.sinkErr = err
		return err
	}
	f.fragments++
	f.bytes += len(delta)
	return nil
}

func (f *forwarder) OnDone() {}
