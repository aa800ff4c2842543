package adapters

import (
	"sync"

	"github.com/charmbracelet/glamour"

	"github.com/devflow/devflow/internal/platform/errors"
)

// GlamourRenderer renders markdown with glamour. Code blocks are highlighted
// by chroma using the fence's language tag. Renderers are cached per width.
type GlamourRenderer struct {
	// Style is a glamour style name; empty picks one from the terminal background.
	Style string

	mu    sync.Mutex
	cache map[int]*glamour.TermRenderer
}

func NewGlamourRenderer(style string) *GlamourRenderer {
	return &GlamourRenderer{Style: style, cache: map[int]*glamour.TermRenderer{}}
}

func (g *GlamourRenderer) Render(markdown string, width int) (string, error) {
	r, err := g.renderer(width)
	if err != nil {
		return "", err
	}
	out, err := r.Render(markdown)
	if err != nil {
		return "", errors.NewInternal("render markdown", err)
	}
	return out, nil
}

func (g *GlamourRenderer) renderer(width int) (*glamour.TermRenderer, error) {
	if width < 0 {
		width = 0
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cache == nil {
		g.cache = map[int]*glamour.TermRenderer{}
	}
	if r, ok := g.cache[width]; ok {
		return r, nil
	}

	opts := []glamour.TermRendererOption{glamour.WithWordWrap(width)}
	if g.Style != "" {
		opts = append(opts, glamour.WithStandardStyle(g.Style))
	} else {
		opts = append(opts, glamour.WithAutoStyle())
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return nil, errors.NewInternal("create markdown renderer", err)
	}
	g.cache[width] = r
	return r, nil
}
