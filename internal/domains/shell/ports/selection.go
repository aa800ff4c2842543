package ports

// SelectionBus carries text selected outside the shell (context menu, clipboard
// capture) to the shell's input field.
//
// Publish delivers only when the value differs from the last published one.
// There is at most one subscriber; a new Subscribe replaces the previous one.
type SelectionBus interface {
	Publish(text string)
	Subscribe(fn func(text string)) (unsubscribe func())
}

// Clipboard is the system clipboard.
type Clipboard interface {
	ReadText() (string, error)
	WriteText(text string) error
}
