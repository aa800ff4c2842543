package ports

import (
	"context"
)

// Provider is the outbound port for upstream language-model providers (Groq, OpenAI, Anthropic, stub).
//
// The relay service talks only to this interface; it never knows which wire protocol is behind it.
type Provider interface {
	// Name is a stable identifier like "groq", "openai", "anthropic", "stub".
	Name() string

	// NetworkHosts returns the hostnames this provider contacts. Offline providers return nil.
	NetworkHosts() []string

	// StreamChat performs one streaming completion.
	//
	// Implementations call handler.OnDelta for every non-empty text fragment, in arrival
	// order, and must stop consuming the upstream stream as soon as OnDelta returns an
	// error or ctx is done. The returned error is nil only when the upstream stream ended
	// normally.
	StreamChat(ctx context.Context, req ChatRequest, handler StreamHandler) (ChatResponse, error)
}

// ChatMessage is a single message in a chat request.
type ChatMessage struct {
	Role string `json:"role"` // "system" | "user" | "assistant"
	Text string `json:"text"`
}

// ChatRequest is the provider-facing request for a single assistant response.
type ChatRequest struct {
	Model string `json:"model,omitempty"`

	// SystemText is the fixed style instruction; adapters map it to their system slot.
	SystemText string `json:"systemText,omitempty"`

	// Messages carries exactly one user message for the relay; no history is forwarded.
	Messages []ChatMessage `json:"messages,omitempty"`

	MaxOutputTokens int `json:"maxOutputTokens,omitempty"`
}

// ChatResponse summarises a finished stream.
type ChatResponse struct {
	Text string `json:"text"`

	ProviderRequestID string `json:"provider_request_id,omitempty"`
	Model             string `json:"model,omitempty"`
}

// StreamHandler receives streaming callbacks.
// Implementations should be fast; OnDelta is on the hot path of every fragment.
type StreamHandler interface {
	// OnStart is called once the upstream accepted the request (optional).
	OnStart()

	// OnDelta is called as text fragments arrive. A non-nil error aborts the stream.
	OnDelta(textDelta string) error

	// OnDone is called when streaming finishes successfully (optional).
	OnDone()
}

// CredentialChecker is implemented by providers that need a secret. CheckCredentials
// returns a config error when the secret is missing, so a misconfigured relay can
// refuse to start instead of failing every request.
type CredentialChecker interface {
	CheckCredentials() error
}
