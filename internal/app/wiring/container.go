package wiring

import (
	"net/http"

	"github.com/google/uuid"

	contractrelay "github.com/devflow/devflow/internal/contracts/v1/relay"

	relayadapters "github.com/devflow/devflow/internal/domains/relay/adapters"
	relayapi "github.com/devflow/devflow/internal/domains/relay/api"
	relayapp "github.com/devflow/devflow/internal/domains/relay/app"
	relayhttp "github.com/devflow/devflow/internal/domains/relay/transport/httpserver"

	shelladapters "github.com/devflow/devflow/internal/domains/shell/adapters"
	shellapi "github.com/devflow/devflow/internal/domains/shell/api"
	"github.com/devflow/devflow/internal/domains/shell/ports"

	"github.com/devflow/devflow/internal/platform/clock"
	"github.com/devflow/devflow/internal/platform/console"
	"github.com/devflow/devflow/internal/platform/policy"
)

// Container is the in-process DI container. Domain APIs that depend on
// resolved settings are built on demand by the methods below.
type Container struct {
	Clock clock.Clock
	Log   console.Logger

	// Config resolves relay settings from dotenv, devflow.yaml and the environment.
	Config *relayapp.Config
}

func New(log console.Logger) Container {
	return Container{
		Clock: clock.SystemUTC{},
		Log:   log,
		Config: &relayapp.Config{
			Env:      relayadapters.NewFSEnvLoader(),
			Settings: relayadapters.NewYAMLSettingsStore(),
		},
	}
}

////////////////////////////////////////////////////////////////////////////////
// Relay
////////////////////////////////////////////////////////////////////////////////

// Relay builds the relay API for resolved settings.
func (c Container) Relay(s contractrelay.SettingsV1) relayapi.API {
	return relayapi.New(relayapi.Dependencies{
		Providers:       relayadapters.NewConfiguredProviderRegistry(s.Provider, s.BaseURL),
		Provider:        s.Provider,
		Model:           s.Model,
		SystemText:      s.SystemText,
		MaxOutputTokens: s.MaxOutputTokens,
		UpstreamTimeout: s.UpstreamTimeout,
		Log:             c.Log,
	})
}

// RelayHandler builds the full HTTP handler (admission, routes, tracing) around relay.
func (c Container) RelayHandler(s contractrelay.SettingsV1, relay relayapi.API) http.Handler {
	origins := policy.DefaultOriginPolicy(s.AllowedOrigins...)
	if s.DisableLocalhost {
		origins.AllowLocalhost = false
	}
	return relayhttp.Server{
		Relay:      relay,
		Origins:    origins,
		Limiter:    relayadapters.NewMemoryLimiter(c.Clock, s.RateLimit.Max, s.RateLimit.Window),
		TrustProxy: s.TrustProxy,
		Clock:      c.Clock,
		Log:        c.Log,
	}.Handler()
}

////////////////////////////////////////////////////////////////////////////////
// Shell
////////////////////////////////////////////////////////////////////////////////

type ShellOptions struct {
	// RelayURL is the relay origin; empty means shelladapters.DefaultRelayURL.
	RelayURL string

	// StorePath is the history file; empty means shelladapters.DefaultHistoryPath().
	StorePath string
	// StoreKind is "bolt" or "sqlite"; empty picks by file extension.
	StoreKind string

	// Style is the glamour style name; empty picks by terminal background.
	Style string
}

// Shell opens the history store and builds the shell API. The caller owns
// the returned API and must Close it. The session id is fresh per call.
func (c Container) Shell(opts ShellOptions) (shellapi.API, error) {
	store, err := shelladapters.OpenHistoryStore(opts.StorePath, opts.StoreKind)
	if err != nil {
		return nil, err
	}

	relayURL := opts.RelayURL
	if relayURL == "" {
		relayURL = shelladapters.DefaultRelayURL
	}

	shell := shellapi.New(shellapi.Dependencies{
		Store:     store,
		Relay:     shelladapters.NewHTTPRelayClient(relayURL),
		Clipboard: shelladapters.SystemClipboard{},
		Renderer:  shelladapters.NewGlamourRenderer(opts.Style),
		Log:       c.Log,
		SessionID: uuid.NewString(),
	})
	if _, err := shell.Restore(); err != nil {
		_ = shell.Close()
		return nil, err
	}
	return shell, nil
}

// SelectionBus is the channel selected text travels on into the shell input.
func (c Container) SelectionBus() ports.SelectionBus {
	return shelladapters.NewSelectionBus()
}
