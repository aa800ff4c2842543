package cli

import (
	"context"
	stderrors "errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	relayapp "github.com/devflow/devflow/internal/domains/relay/app"
	"github.com/devflow/devflow/internal/platform/errors"
	"github.com/devflow/devflow/internal/platform/telemetry"
)

type serveOptions struct {
	configPath string
	envFile    string
	listen     string
	provider   string
}

func (a *app) serveCmd() *cobra.Command {
	var opts serveOptions
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the streaming relay (POST /ask)",
		Long: `Run the relay HTTP server.

Settings come from, lowest precedence first: built-in defaults, the YAML
config file, the environment (PORT, DEVFLOW_PROVIDER, DEVFLOW_MODEL,
ALLOWED_ORIGIN, DEVFLOW_UPSTREAM_TIMEOUT, OTEL_EXPORTER_OTLP_ENDPOINT), flags.
The dotenv file is loaded first and never overrides variables already set.

The provider credential (GROQ_API_KEY, OPENAI_API_KEY or ANTHROPIC_API_KEY) is
checked before listening; a missing key exits non-zero.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context(), opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.configPath, "config", "devflow.yaml", "YAML config file (optional)")
	f.StringVar(&opts.envFile, "env-file", ".env", "Dotenv file (optional)")
	f.StringVar(&opts.listen, "listen", "", "Listen address (default :3000 or $PORT)")
	f.StringVar(&opts.provider, "provider", "", "Upstream provider: groq, openai, anthropic, stub")
	return cmd
}

func (a *app) serve(ctx context.Context, opts serveOptions) error {
	resolved, err := a.ctr.Config.Resolve(relayapp.ResolveConfigRequest{
		ConfigPath: opts.configPath,
		EnvFile:    opts.envFile,
		Listen:     opts.listen,
		Provider:   opts.provider,
	})
	if err != nil {
		return err
	}
	for _, w := range resolved.Warnings {
		a.log.Warn("env file", "warning", w)
	}
	s := resolved.Settings

	relay := a.ctr.Relay(s)
	if err := relay.CheckProvider(); err != nil {
		return err
	}

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		Endpoint:    s.Telemetry.Endpoint,
		Insecure:    s.Telemetry.Insecure,
		Environment: s.Telemetry.Environment,
	})
	if err != nil {
		return errors.New(errors.KindConfig, "telemetry setup failed", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			a.log.Warn("trace flush failed", "err", err)
		}
	}()

	ln, err := net.Listen("tcp", s.Listen)
	if err != nil {
		return errors.NewIO("listen on "+s.Listen, err)
	}

	srv := &http.Server{
		Handler:           a.ctr.RelayHandler(s, relay),
		ReadHeaderTimeout: 10 * time.Second,
	}

	a.log.Info("relay listening",
		"addr", ln.Addr().String(),
		"provider", relay.ProviderName(),
		"config_file", resolved.ConfigFound,
		"env_file", resolved.EnvLoaded,
		"rate_limit", s.RateLimit.Max,
		"window", s.RateLimit.Window,
		"tracing", s.Telemetry.Endpoint != "",
	)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			return errors.NewIO("server error", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return errors.NewInternal("shutdown failed", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}
	a.log.Info("relay stopped")
	return nil
}
