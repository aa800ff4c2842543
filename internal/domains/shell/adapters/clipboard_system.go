package adapters

import (
	"github.com/atotto/clipboard"

	"github.com/devflow/devflow/internal/platform/errors"
)

// SystemClipboard is ports.Clipboard backed by the OS clipboard
// (pbcopy, xclip/xsel/wl-clipboard, or the Windows API).
type SystemClipboard struct{}

func (SystemClipboard) ReadText() (string, error) {
	if clipboard.Unsupported {
		return "", errors.NewIO("clipboard: no clipboard utility found", nil)
	}
	s, err := clipboard.ReadAll()
	if err != nil {
		return "", errors.NewIO("clipboard: read", err)
	}
	return s, nil
}

func (SystemClipboard) WriteText(text string) error {
	if clipboard.Unsupported {
		return errors.NewIO("clipboard: no clipboard utility found", nil)
	}
	if err := clipboard.WriteAll(text); err != nil {
		return errors.NewIO("clipboard: write", err)
	}
	return nil
}
