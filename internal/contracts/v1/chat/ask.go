package chat

// AskRequestV1 is the JSON body of POST /ask.
//
// SessionID is generated once per client process and forwarded as-is. The relay
// never uses it for routing, limiting or state.
type AskRequestV1 struct {
	Prompt    string `json:"prompt"`
	SessionID string `json:"sessionId,omitempty"`
}

// ErrorBodyV1 is the JSON body of every non-streaming error response.
type ErrorBodyV1 struct {
	Error string `json:"error"`
}

// HealthV1 is returned by GET /.
type HealthV1 struct {
	Status string `json:"status"`
	Time   string `json:"time,omitempty"` // RFC3339Nano UTC
}

const (
	// AskPath is the streaming endpoint.
	AskPath = "/ask"
	// LegacyAskPath is the older alias still used by deployed extensions.
	LegacyAskPath = "/api/ask"

	// StreamContentType is the content type of a successful /ask response.
	StreamContentType = "text/plain; charset=utf-8"
)
