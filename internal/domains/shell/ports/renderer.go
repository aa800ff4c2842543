package ports

// MarkdownRenderer turns markdown into terminal output. Width <= 0 means no wrapping.
type MarkdownRenderer interface {
	Render(markdown string, width int) (string, error)
}
