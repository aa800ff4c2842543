package cli

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	contractchat "github.com/devflow/devflow/internal/contracts/v1/chat"
	shelladapters "github.com/devflow/devflow/internal/domains/shell/adapters"
	shellapp "github.com/devflow/devflow/internal/domains/shell/app"
	"github.com/devflow/devflow/internal/domains/shell/transport/tui"
	"github.com/devflow/devflow/internal/platform/console"
	"github.com/devflow/devflow/internal/platform/errors"
)

func (a *app) chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Interactive chat against the relay",
		Long: `Open the terminal chat shell. The conversation is restored from the history
file and saved after every change.

Keys:
  enter      send the prompt
  esc        stop the reply in progress
  ctrl+y     paste the clipboard selection into the input
  ctrl+l     clear the conversation
  /copy N    copy code block N to the clipboard
  ctrl+c     quit`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// The alternate screen owns the terminal; logs go to a file or nowhere.
			log := console.Discard()
			if a.verbose {
				dir := filepath.Dir(a.historyPath())
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return errors.NewIO("create "+dir, err)
				}
				f, err := tea.LogToFile(filepath.Join(dir, "chat.log"), "devflow")
				if err != nil {
					return errors.NewIO("open chat log", err)
				}
				defer f.Close()
				log = console.New(f)
				log.SetVerbose(true)
			}
			ctr := a.ctr
			ctr.Log = log

			// Detect the background now; querying the terminal once bubbletea
			// owns stdin can stall.
			opts := a.shell
			if opts.Style == "" {
				opts.Style = "light"
				if lipgloss.HasDarkBackground() {
					opts.Style = "dark"
				}
			}

			shell, err := ctr.Shell(opts)
			if err != nil {
				return err
			}
			defer shell.Close()

			if err := tui.Run(cmd.Context(), shell, ctr.SelectionBus()); err != nil {
				return errors.NewInternal("chat ui failed", err)
			}
			return nil
		},
	}
}

func (a *app) askCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask PROMPT...",
		Short: "Ask one question and stream the answer to stdout",
		Long: `Send one prompt through the relay and stream the reply to stdout as it
arrives. The exchange is appended to the chat history.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			shell, err := a.ctr.Shell(a.shell)
			if err != nil {
				return err
			}
			defer shell.Close()

			printer := &replyPrinter{w: a.stdout, snapshot: shell.Snapshot}
			shell.OnChange(printer.flush)

			res, err := shell.Submit(cmd.Context(), shellapp.SubmitRequest{Prompt: strings.Join(args, " ")})
			printer.flush()
			if res.Fragments > 0 && !strings.HasSuffix(res.Reply, "\n") {
				_, _ = io.WriteString(a.stdout, "\n")
			}
			if err != nil {
				if res.Incomplete {
					a.log.Warn("reply is incomplete", "fragments", res.Fragments)
				}
				return err
			}
			return nil
		},
	}
}

// replyPrinter writes the part of the newest assistant turn not printed yet.
// OnChange fires from the submitting goroutine, so no locking is needed.
type replyPrinter struct {
	w        io.Writer
	snapshot func() shellapp.Snapshot
	printed  int
}

func (p *replyPrinter) flush() {
	turns := p.snapshot().Turns
	if len(turns) == 0 {
		return
	}
	last := turns[len(turns)-1]
	if last.Role != contractchat.RoleAssistant || len(last.Content) <= p.printed {
		return
	}
	_, _ = io.WriteString(p.w, last.Content[p.printed:])
	p.printed = len(last.Content)
}

func (a *app) historyPath() string {
	if a.shell.StorePath != "" {
		return a.shell.StorePath
	}
	return shelladapters.DefaultHistoryPath()
}
