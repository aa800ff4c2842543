package app

import (
	"strings"

	"github.com/devflow/devflow/internal/domains/shell/ports"
	"github.com/devflow/devflow/internal/platform/errors"
)

// WatchSelection subscribes the shell to bus. Every non-empty trimmed value
// replaces the input field; nothing is submitted. The returned func unsubscribes.
func (s *Service) WatchSelection(bus ports.SelectionBus) func() {
	if bus == nil {
		return func() {}
	}
	return bus.Subscribe(func(text string) {
		text = strings.TrimSpace(text)
		if text == "" {
			return
		}
		s.SetInput(text)
	})
}

// CaptureSelection reads the system clipboard and publishes it on bus.
// It is how a terminal user hands selected text to the shell.
func (s *Service) CaptureSelection(bus ports.SelectionBus) error {
	if s.Clipboard == nil {
		return errors.NewInternal("shell Clipboard is nil", nil)
	}
	if bus == nil {
		return errors.NewInternal("selection bus is nil", nil)
	}
	text, err := s.Clipboard.ReadText()
	if err != nil {
		return err
	}
	bus.Publish(text)
	return nil
}
