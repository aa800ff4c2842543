package app

import (
	"context"
	"strings"
	"sync"

	contractchat "github.com/devflow/devflow/internal/contracts/v1/chat"
	"github.com/devflow/devflow/internal/domains/shell/domain"
	"github.com/devflow/devflow/internal/domains/shell/ports"
	"github.com/devflow/devflow/internal/platform/console"
	"github.com/devflow/devflow/internal/platform/errors"
)

// Service is the client shell: it owns the conversation, streams replies into
// it, and keeps the persisted copy in step with every change.
//
// All state is guarded by one mutex. The streaming goroutine only touches the
// conversation through the in-progress handle, under that mutex.
type Service struct {
	Store     ports.HistoryStore
	Relay     ports.RelayClient
	Clipboard ports.Clipboard
	Renderer  ports.MarkdownRenderer
	Log       console.Logger

	// SessionID is attached to every request and never persisted.
	SessionID string

	mu       sync.Mutex
	onChange func()
	conv    *domain.Conversation
	input   string
	loading bool
	cancel  context.CancelFunc
	lastErr error
}

// Snapshot is a consistent copy of the shell state for rendering.
type Snapshot struct {
	Turns   []contractchat.TurnV1
	Input   string
	Loading bool
	// LastError is the error of the most recent failed submit, cleared by the next one.
	LastError error
}

func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Turns:     s.conversation().Turns(),
		Input:     s.input,
		Loading:   s.loading,
		LastError: s.lastErr,
	}
}

func (s *Service) SetInput(text string) {
	s.mu.Lock()
	s.input = text
	s.mu.Unlock()
	s.changed()
}

////////////////////////////////////////////////////////////////////////////////
// Restore / Clear
////////////////////////////////////////////////////////////////////////////////

type RestoreResult struct {
	Turns int
}

// Restore replaces the in-memory conversation with the persisted one.
func (s *Service) Restore() (RestoreResult, error) {
	if s.Store == nil {
		return RestoreResult{}, errors.NewInternal("shell Store is nil", nil)
	}
	s.mu.Lock()
	if s.loading {
		s.mu.Unlock()
		return RestoreResult{}, errors.New(errors.KindBusy, "a reply is still streaming", nil)
	}
	turns, err := s.Store.Load()
	if err != nil {
		s.mu.Unlock()
		return RestoreResult{}, err
	}
	conv := s.conversation()
	conv.Replace(turns)
	n := conv.Len()
	s.mu.Unlock()

	s.Log.Debug("history restored", "turns", n)
	s.changed()
	return RestoreResult{Turns: n}, nil
}

// Clear empties the conversation, removes the persisted copy and abandons any
// reply still streaming.
func (s *Service) Clear() error {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.conversation().Clear()
	s.loading = false
	s.lastErr = nil
	var err error
	if s.Store != nil {
		err = s.Store.Remove()
	}
	s.mu.Unlock()

	s.changed()
	return err
}

////////////////////////////////////////////////////////////////////////////////
// Submit
////////////////////////////////////////////////////////////////////////////////

type SubmitRequest struct {
	Prompt string
}

type SubmitResult struct {
	// Reply is the assistant text as streamed, complete or not.
	Reply      string
	Incomplete bool
	Fragments  int
}

// Submit appends the prompt and an empty assistant turn, then streams the
// reply into that turn. It blocks until the stream ends.
//
// A failed stream keeps its partial text, marks the turn incomplete and
// returns the transport error. Nothing is retried.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (SubmitResult, error) {
	if s.Relay == nil {
		return SubmitResult{}, errors.NewInternal("shell Relay is nil", nil)
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return SubmitResult{}, errors.NewValidation("Prompt is required")
	}

	s.mu.Lock()
	if s.loading {
		s.mu.Unlock()
		return SubmitResult{}, errors.New(errors.KindBusy, "a reply is still streaming", nil)
	}
	conv := s.conversation()
	conv.AppendUser(req.Prompt)
	s.input = ""
	handle := conv.BeginAssistant()
	s.loading = true
	s.lastErr = nil
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.persistLocked()
	s.mu.Unlock()
	s.changed()

	defer cancel()

	res := SubmitResult{}
	err := s.Relay.Ask(ctx, ports.AskRequest{Prompt: req.Prompt, SessionID: s.SessionID}, func(fragment string) error {
		s.mu.Lock()
		ok := handle.Append(fragment)
		if ok {
			s.persistLocked()
		}
		s.mu.Unlock()
		if !ok {
			return errors.NewCanceled("conversation cleared", nil)
		}
		res.Fragments++
		s.changed()
		return nil
	})

	s.mu.Lock()
	res.Reply = handle.Content()
	if !handle.Live() {
		// Clear already reset the shell; the reply has nowhere to go.
		s.mu.Unlock()
		return res, errors.NewCanceled("conversation cleared", err)
	}
	res.Incomplete = err != nil
	handle.Finish(res.Incomplete)
	s.loading = false
	s.cancel = nil
	if err != nil {
		s.lastErr = err
	}
	s.persistLocked()
	s.mu.Unlock()
	s.changed()

	if err != nil {
		s.Log.Warn("reply failed", "kind", errors.KindOf(err), "fragments", res.Fragments, "err", err)
		return res, err
	}
	return res, nil
}

// Cancel abandons the reply in flight, if any. The turn keeps its partial
// text and is marked incomplete.
func (s *Service) Cancel() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
}

func (s *Service) persistLocked() {
	if s.Store == nil {
		return
	}
	if err := s.Store.Save(s.conv.Turns()); err != nil {
		s.Log.Warn("history not saved", "err", err)
	}
}

func (s *Service) conversation() *domain.Conversation {
	if s.conv == nil {
		s.conv = domain.NewConversation(nil)
	}
	return s.conv
}

// SetOnChange registers the listener called after every state change. It runs
// outside the lock, on whichever goroutine made the change. nil removes it.
func (s *Service) SetOnChange(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

func (s *Service) changed() {
	s.mu.Lock()
	fn := s.onChange
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}
