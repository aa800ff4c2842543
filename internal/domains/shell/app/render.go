package app

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	contractchat "github.com/devflow/devflow/internal/contracts/v1/chat"
	"github.com/devflow/devflow/internal/domains/shell/domain"
	"github.com/devflow/devflow/internal/platform/errors"
)

var (
	userHeader      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#10B981"))
	assistantHeader = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#F97316"))
	noteStyle       = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("#9CA3AF"))
)

// CopyLabel is the affordance placed under each closed code block.
func CopyLabel(n int) string {
	return fmt.Sprintf("*⧉ copy %d*", n)
}

type RenderRequest struct {
	Turns []contractchat.TurnV1
	Width int
}

type RenderResult struct {
	Text string
	// CodeBlocks is how many code blocks were numbered.
	CodeBlocks int
}

// Render draws the conversation: a styled header per turn, its markdown
// rendered, and a copy label under every code block. Numbering runs across
// the whole conversation starting at 1, the same order CopyCodeBlock uses.
func (s *Service) Render(req RenderRequest) (RenderResult, error) {
	if s.Renderer == nil {
		return RenderResult{}, errors.NewInternal("shell Renderer is nil", nil)
	}

	var b strings.Builder
	next := 1
	for i, t := range req.Turns {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(turnHeader(t))
		b.WriteString("\n")

		md, n := domain.AnnotateCodeBlocks(t.Content, next, CopyLabel)
		next = n
		if strings.TrimSpace(md) == "" {
			continue
		}
		out, err := s.Renderer.Render(md, req.Width)
		if err != nil {
			return RenderResult{}, err
		}
		b.WriteString(strings.TrimRight(out, "\n"))
		b.WriteString("\n")
	}
	return RenderResult{Text: b.String(), CodeBlocks: next - 1}, nil
}

func turnHeader(t contractchat.TurnV1) string {
	if t.Role == contractchat.RoleUser {
		return userHeader.Render("You")
	}
	h := assistantHeader.Render("DevFlow")
	if t.Incomplete {
		h += " " + noteStyle.Render("(incomplete)")
	}
	return h
}

////////////////////////////////////////////////////////////////////////////////
// Code blocks
////////////////////////////////////////////////////////////////////////////////

// CodeBlocks lists every fenced code block of the conversation in display order.
func CodeBlocks(turns []contractchat.TurnV1) []domain.CodeBlock {
	var out []domain.CodeBlock
	for _, t := range turns {
		out = append(out, domain.ExtractCodeBlocks(t.Content)...)
	}
	return out
}

type CopyCodeBlockRequest struct {
	// N is the 1-based number shown by Render.
	N int
}

type CopyCodeBlockResult struct {
	Block domain.CodeBlock
}

// CopyCodeBlock writes code block N of the current conversation to the clipboard.
func (s *Service) CopyCodeBlock(req CopyCodeBlockRequest) (CopyCodeBlockResult, error) {
	if s.Clipboard == nil {
		return CopyCodeBlockResult{}, errors.NewInternal("shell Clipboard is nil", nil)
	}
	blocks := CodeBlocks(s.Snapshot().Turns)
	if req.N < 1 || req.N > len(blocks) {
		return CopyCodeBlockResult{}, errors.NewValidation(fmt.Sprintf("no code block %d (conversation has %d)", req.N, len(blocks)))
	}
	blk := blocks[req.N-1]
	if err := s.Clipboard.WriteText(blk.Code); err != nil {
		return CopyCodeBlockResult{}, err
	}
	return CopyCodeBlockResult{Block: blk}, nil
}
