package api

import (
	"context"

	shellapp "github.com/devflow/devflow/internal/domains/shell/app"
	"github.com/devflow/devflow/internal/domains/shell/ports"
	"github.com/devflow/devflow/internal/platform/console"
)

// API is the stable boundary for the client shell.
// The TUI and the one-shot CLI commands call into this interface.
type API interface {
	Snapshot() shellapp.Snapshot
	SetInput(text string)

	Submit(ctx context.Context, req shellapp.SubmitRequest) (shellapp.SubmitResult, error)
	Cancel()
	Restore() (shellapp.RestoreResult, error)
	Clear() error

	WatchSelection(bus ports.SelectionBus) (unsubscribe func())
	CaptureSelection(bus ports.SelectionBus) error

	Render(req shellapp.RenderRequest) (shellapp.RenderResult, error)
	CopyCodeBlock(req shellapp.CopyCodeBlockRequest) (shellapp.CopyCodeBlockResult, error)

	// OnChange registers the single change listener.
	OnChange(fn func())

	Close() error
}

// Dependencies are injected by wiring.Container.
type Dependencies struct {
	Store     ports.HistoryStore
	Relay     ports.RelayClient
	Clipboard ports.Clipboard
	Renderer  ports.MarkdownRenderer
	Log       console.Logger

	SessionID string
}

func New(deps Dependencies) API {
	return &shellAPI{
		svc: &shellapp.Service{
			Store:     deps.Store,
			Relay:     deps.Relay,
			Clipboard: deps.Clipboard,
			Renderer:  deps.Renderer,
			Log:       deps.Log,
			SessionID: deps.SessionID,
		},
	}
}

type shellAPI struct {
	svc *shellapp.Service
}

func (a *shellAPI) Snapshot() shellapp.Snapshot { return a.svc.Snapshot() }

func (a *shellAPI) SetInput(text string) { a.svc.SetInput(text) }

func (a *shellAPI) Submit(ctx context.Context, req shellapp.SubmitRequest) (shellapp.SubmitResult, error) {
	return a.svc.Submit(ctx, req)
}

func (a *shellAPI) Cancel() { a.svc.Cancel() }

func (a *shellAPI) Restore() (shellapp.RestoreResult, error) { return a.svc.Restore() }

func (a *shellAPI) Clear() error { return a.svc.Clear() }

func (a *shellAPI) WatchSelection(bus ports.SelectionBus) func() { return a.svc.WatchSelection(bus) }

func (a *shellAPI) CaptureSelection(bus ports.SelectionBus) error {
	return a.svc.CaptureSelection(bus)
}

func (a *shellAPI) Render(req shellapp.RenderRequest) (shellapp.RenderResult, error) {
	return a.svc.Render(req)
}

func (a *shellAPI) CopyCodeBlock(req shellapp.CopyCodeBlockRequest) (shellapp.CopyCodeBlockResult, error) {
	return a.svc.CopyCodeBlock(req)
}

func (a *shellAPI) OnChange(fn func()) { a.svc.SetOnChange(fn) }

func (a *shellAPI) Close() error {
	a.svc.Cancel()
	if a.svc.Store == nil {
		return nil
	}
	return a.svc.Store.Close()
}
