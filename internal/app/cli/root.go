package cli

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/devflow/devflow/internal/app/wiring"
	"github.com/devflow/devflow/internal/platform/console"
	"github.com/devflow/devflow/internal/platform/errors"
)

const (
	exitOK    = 0
	exitUsage = 2
	exitError = 1
)

var (
	version = "dev"
	commit  = "unknown"
)

// app carries what every command needs. It is rebuilt per Run so tests do not
// share flag state.
type app struct {
	stdout io.Writer
	stderr io.Writer
	log    console.Logger
	ctr    wiring.Container

	verbose bool
	shell   wiring.ShellOptions
}

// Run executes the devflow command line and returns the process exit code.
func Run(argv []string) int {
	return run(context.Background(), argv, os.Stdout, os.Stderr)
}

func run(ctx context.Context, argv []string, stdout, stderr io.Writer) int {
	a := &app{stdout: stdout, stderr: stderr, log: console.New(stderr)}
	a.ctr = wiring.New(a.log)

	root := a.rootCmd()
	root.SetArgs(argv)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}
	// Commands only return AppErrors; anything else came from cobra's
	// argument and flag parsing.
	if errors.KindOf(err) == "" {
		a.log.Error(err.Error())
		_, _ = io.WriteString(stderr, "Run 'devflow --help' for usage.\n")
		return exitUsage
	}
	a.log.Error(errors.MessageOf(err), "kind", errors.KindOf(err), "err", err)
	return exitError
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "devflow",
		Short: "Streaming coding-assistant relay and terminal chat",
		Long: `DevFlow relays a single coding question to a language-model provider and
streams the answer back as plain text. The same binary runs the relay and a
terminal chat shell that talks to it.

Quick Start:
  devflow serve                         # relay on :3000 (needs GROQ_API_KEY)
  devflow chat                          # interactive chat against the local relay
  devflow ask "what does defer do?"     # one question, streamed to stdout`,
		Version:       version + " (commit: " + commit + ")",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			a.log.SetVerbose(a.verbose)
		},
	}
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	pf := root.PersistentFlags()
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")
	pf.StringVar(&a.shell.RelayURL, "relay", "", "Relay origin for chat commands (default http://localhost:3000)")
	pf.StringVar(&a.shell.StorePath, "store", "", "Chat history file (default ~/.devflow/history.db)")
	pf.StringVar(&a.shell.StoreKind, "store-kind", "", "History backend: bolt or sqlite (default: by file extension)")
	pf.StringVar(&a.shell.Style, "style", "", "Markdown style: dark, light, notty (default: by terminal)")

	root.AddCommand(
		a.serveCmd(),
		a.chatCmd(),
		a.askCmd(),
		a.historyCmd(),
		a.clearCmd(),
		a.copyCmd(),
	)
	return root
}
