package httpserver

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	contractchat "github.com/devflow/devflow/internal/contracts/v1/chat"
	relayapi "github.com/devflow/devflow/internal/domains/relay/api"
	relayapp "github.com/devflow/devflow/internal/domains/relay/app"
	"github.com/devflow/devflow/internal/domains/relay/ports"
	"github.com/devflow/devflow/internal/platform/clock"
	"github.com/devflow/devflow/internal/platform/console"
	"github.com/devflow/devflow/internal/platform/errors"
	"github.com/devflow/devflow/internal/platform/policy"
	"github.com/devflow/devflow/internal/platform/telemetry"
)

// DefaultMaxBodyBytes caps the /ask request body.
const DefaultMaxBodyBytes = 1 << 20

const (
	msgInternal     = "Internal Server Error"
	msgBadJSON      = "Invalid JSON body"
	msgBodyTooLarge = "Request body too large"
	msgCORS         = "Not allowed by CORS"
	msgRateLimited  = "Too many requests, please try again later."
	healthStatus    = "DevFlow API running"
)

// Server is the HTTP transport adapter for the relay domain.
type Server struct {
	Relay relayapi.API

	Origins policy.OriginPolicy
	Limiter ports.Limiter

	// TrustProxy keys the limiter on X-Forwarded-For instead of the peer address.
	TrustProxy bool

	Clock clock.Clock
	Log   console.Logger

	// MaxBodyBytes <= 0 means DefaultMaxBodyBytes.
	MaxBodyBytes int64
}

// Handler returns the full relay handler. Middleware order, outermost first:
// tracing, panic recovery, request log, origin policy, rate limit, routes.
func (s Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleHealth)
	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("POST "+contractchat.AskPath, s.handleAsk)
	mux.HandleFunc("POST "+contractchat.LegacyAskPath, s.handleAsk)

	var h http.Handler = mux
	h = s.rateLimit(h)
	h = s.cors(h)
	h = s.logRequests(h)
	h = s.recoverPanics(h)
	return telemetry.WrapHandler(h)
}

func (s Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, contractchat.HealthV1{
		Status: healthStatus,
		Time:   s.clock().NowUTC().Format(time.RFC3339Nano),
	})
}

func (s Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if s.Relay == nil {
		s.Log.Error("server misconfigured: Relay API is nil")
		writeError(w, http.StatusInternalServerError, msgInternal)
		return
	}

	var body contractchat.AskRequestV1
	if status, msg, err := s.readJSON(w, r, &body); err != nil {
		s.Log.Debug("ask body rejected", "status", status, "err", err)
		writeError(w, status, msg)
		return
	}

	sw := newStreamWriter(w)
	_, err := s.Relay.Ask(r.Context(), relayapp.AskRequest{
		Prompt:    body.Prompt,
		SessionID: body.SessionID,
	}, sw)

	switch {
	case err == nil:
		// A reply with no fragments is still a successful, empty stream.
		sw.commit()
	case errors.IsValidation(err):
		writeError(w, http.StatusBadRequest, errors.MessageOf(err))
	case sw.committed:
		// The status line is gone; the only signal left is an unterminated body.
		panic(http.ErrAbortHandler)
	case errors.Is(err, errors.KindCanceled):
		// nobody is listening
	default:
		writeError(w, http.StatusInternalServerError, msgInternal)
	}
}

// readJSON decodes the request body into dst. An empty body decodes as {}.
// On failure it returns the status and client-facing message to send.
func (s Server) readJSON(w http.ResponseWriter, r *http.Request, dst any) (int, string, error) {
	if r.Body == nil {
		return 0, "", nil
	}
	defer r.Body.Close()

	limit := s.MaxBodyBytes
	if limit <= 0 {
		limit = DefaultMaxBodyBytes
	}
	b, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return http.StatusRequestEntityTooLarge, msgBodyTooLarge, err
		}
		return http.StatusBadRequest, msgBadJSON, fmt.Errorf("failed reading request body: %w", err)
	}
	if len(strings.TrimSpace(string(b))) == 0 {
		b = []byte("{}")
	}
	if err := json.Unmarshal(b, dst); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field == "prompt" {
			return http.StatusBadRequest, "Prompt is required", err
		}
		return http.StatusBadRequest, msgBadJSON, err
	}
	return 0, "", nil
}

func (s Server) clock() clock.Clock {
	if s.Clock == nil {
		return clock.SystemUTC{}
	}
	return s.Clock
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	if w == nil {
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	b, err := json.Marshal(v)
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"failed to marshal json"}`))
		return
	}
	_, _ = w.Write(append(b, '\n'))
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, contractchat.ErrorBodyV1{Error: msg})
}
