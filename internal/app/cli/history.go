package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	shellapp "github.com/devflow/devflow/internal/domains/shell/app"
	"github.com/devflow/devflow/internal/platform/errors"
)

var noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))

func (a *app) historyCmd() *cobra.Command {
	var width int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print the stored conversation",
		Long: `Render the stored conversation as markdown. Code blocks are numbered in
order; pass the number to 'devflow copy' to put a block on the clipboard.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			shell, err := a.ctr.Shell(a.shell)
			if err != nil {
				return err
			}
			defer shell.Close()

			snap := shell.Snapshot()
			if len(snap.Turns) == 0 {
				_, _ = io.WriteString(a.stdout, noticeStyle.Render("No conversation yet.")+"\n")
				return nil
			}
			if width <= 0 {
				width = a.terminalWidth()
			}
			res, err := shell.Render(shellapp.RenderRequest{Turns: snap.Turns, Width: width})
			if err != nil {
				return err
			}
			_, _ = io.WriteString(a.stdout, res.Text)
			if res.CodeBlocks > 0 {
				_, _ = fmt.Fprintln(a.stdout, noticeStyle.Render(fmt.Sprintf("%d code block(s); copy one with: devflow copy N", res.CodeBlocks)))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&width, "width", 0, "Wrap width (default: terminal width, or 100)")
	return cmd
}

func (a *app) clearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete the stored conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			shell, err := a.ctr.Shell(a.shell)
			if err != nil {
				return err
			}
			defer shell.Close()

			if err := shell.Clear(); err != nil {
				return err
			}
			_, _ = io.WriteString(a.stdout, "Conversation cleared.\n")
			return nil
		},
	}
}

func (a *app) copyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "copy N",
		Short: "Copy code block N of the stored conversation to the clipboard",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return errors.NewValidation("code block number must be an integer, got " + strconv.Quote(args[0]))
			}

			shell, err := a.ctr.Shell(a.shell)
			if err != nil {
				return err
			}
			defer shell.Close()

			res, err := shell.CopyCodeBlock(shellapp.CopyCodeBlockRequest{N: n})
			if err != nil {
				return err
			}
			lang := res.Block.Lang
			if lang == "" {
				lang = "text"
			}
			_, _ = fmt.Fprintf(a.stdout, "Copied code block %d (%s).\n", n, lang)
			return nil
		},
	}
}

// terminalWidth is the width of stdout when it is a terminal, else 100.
func (a *app) terminalWidth() int {
	if f, ok := a.stdout.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
			return w
		}
	}
	return 100
}
