package domain

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// CodeBlock is one fenced code block in a turn's markdown.
type CodeBlock struct {
	Lang string
	Code string

	// End is the byte offset just past the closing fence, or -1 when unknown.
	End int
	// Closed is false while a streaming reply has opened a fence but not closed it.
	Closed bool
}

var markdown = goldmark.New()

// ExtractCodeBlocks returns the fenced code blocks of md in document order.
// Indented code blocks and inline code spans are not included.
func ExtractCodeBlocks(md string) []CodeBlock {
	if !strings.Contains(md, "```") && !strings.Contains(md, "~~~") {
		return nil
	}
	src := []byte(md)
	doc := markdown.Parser().Parse(text.NewReader(src))

	var out []CodeBlock
	cursor := 0
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		fcb, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}

		var code bytes.Buffer
		lines := fcb.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			code.Write(seg.Value(src))
		}

		block := CodeBlock{
			Lang: string(fcb.Language(src)),
			Code: strings.TrimSuffix(code.String(), "\n"),
			End:  -1,
		}

		// contentEnd is the start of the line after the block's last content
		// line (or after the opening fence when the block is empty).
		contentEnd := -1
		switch {
		case lines.Len() > 0:
			contentEnd = lines.At(lines.Len() - 1).Stop
		case fcb.Info != nil:
			contentEnd = endOfLine(src, fcb.Info.Segment.Stop)
		default:
			if open := findFence(src, cursor); open >= 0 {
				contentEnd = endOfLine(src, open)
			}
		}
		if contentEnd >= 0 && contentEnd <= len(src) {
			fence := contentEnd
			if fence > 0 && fence < len(src) && src[fence-1] != '\n' && src[fence] == '\n' {
				fence++
			}
			if isFenceLine(src[fence:endOfLine(src, fence)]) {
				block.Closed = true
				block.End = endOfLine(src, fence)
			}
			cursor = contentEnd
			if block.Closed {
				cursor = block.End
			}
		}

		out = append(out, block)
		return ast.WalkSkipChildren, nil
	})
	return out
}

// AnnotateCodeBlocks inserts label(n) on its own line after every closed fenced
// block, numbering from first. It returns the annotated markdown and the next
// unused number. Unclosed blocks are counted but not labelled.
func AnnotateCodeBlocks(md string, first int, label func(n int) string) (string, int) {
	blocks := ExtractCodeBlocks(md)
	if len(blocks) == 0 {
		return md, first
	}

	var b strings.Builder
	prev := 0
	n := first
	for _, blk := range blocks {
		if blk.Closed && blk.End >= prev {
			b.WriteString(md[prev:blk.End])
			if !strings.HasSuffix(md[:blk.End], "\n") {
				b.WriteString("\n")
			}
			b.WriteString(label(n))
			b.WriteString("\n\n")
			prev = blk.End
		}
		n++
	}
	b.WriteString(md[prev:])
	return b.String(), n
}

// endOfLine returns the offset just past the newline that ends the line
// containing pos, or len(src) for the last line.
func endOfLine(src []byte, pos int) int {
	if pos >= len(src) {
		return len(src)
	}
	if i := bytes.IndexByte(src[pos:], '\n'); i >= 0 {
		return pos + i + 1
	}
	return len(src)
}

// findFence returns the offset of the first line at or after from that opens
// or closes a fence, or -1.
func findFence(src []byte, from int) int {
	for pos := from; pos < len(src); {
		next := endOfLine(src, pos)
		if isFenceLine(src[pos:next]) {
			return pos
		}
		pos = next
	}
	return -1
}

// isFenceLine reports whether line starts with a fence once indentation and
// block quote markers are removed.
func isFenceLine(line []byte) bool {
	for {
		line = bytes.TrimLeft(line, " \t")
		if len(line) == 0 || line[0] != '>' {
			break
		}
		line = line[1:]
	}
	return bytes.HasPrefix(line, []byte("```")) || bytes.HasPrefix(line, []byte("~~~"))
}
