package api

import (
	"context"
	"time"

	relayapp "github.com/devflow/devflow/internal/domains/relay/app"
	"github.com/devflow/devflow/internal/domains/relay/ports"
	"github.com/devflow/devflow/internal/platform/console"
)

// API is the stable boundary for the relay domain.
// The HTTP transport and the CLI call into this interface.
type API interface {
	Ask(ctx context.Context, req relayapp.AskRequest, sink ports.FragmentSink) (relayapp.AskResult, error)

	// CheckProvider verifies the configured provider exists and has its credential.
	CheckProvider() error

	// ProviderName is the resolved upstream name, for logs and health output.
	ProviderName() string
}

// Dependencies are injected by wiring.Container.
type Dependencies struct {
	Providers ports.ProviderRegistry

	Provider        string
	Model           string
	SystemText      string
	MaxOutputTokens int
	UpstreamTimeout time.Duration

	Log console.Logger
}

func New(deps Dependencies) API {
	return &relayAPI{
		svc: &relayapp.Service{
			Providers:       deps.Providers,
			Provider:        deps.Provider,
			Model:           deps.Model,
			SystemText:      deps.SystemText,
			MaxOutputTokens: deps.MaxOutputTokens,
			UpstreamTimeout: deps.UpstreamTimeout,
			Log:             deps.Log,
		},
	}
}

type relayAPI struct {
	svc *relayapp.Service
}

func (r *relayAPI) Ask(ctx context.Context, req relayapp.AskRequest, sink ports.FragmentSink) (relayapp.AskResult, error) {
	return r.svc.Ask(ctx, req, sink)
}

func (r *relayAPI) CheckProvider() error {
	return relayapp.CheckProvider(r.svc.Providers, r.svc.Provider)
}

func (r *relayAPI) ProviderName() string {
	if r.svc.Providers == nil {
		return ""
	}
	if p, ok := r.svc.Providers.Get(r.svc.Provider); ok && p != nil {
		return p.Name()
	}
	return r.svc.Provider
}
