package ports

import "context"

type AskRequest struct {
	Prompt    string
	SessionID string
}

// RelayClient sends one prompt to the relay and streams the reply.
//
// onFragment receives decoded text in arrival order; it never sees a split
// UTF-8 sequence. Returning an error from onFragment stops the stream.
//
// Error kinds: validation (400), admission (403/429), upstream (other non-200
// or unreachable relay), midstream (the body broke off after text arrived),
// canceled (ctx ended).
type RelayClient interface {
	Ask(ctx context.Context, req AskRequest, onFragment func(fragment string) error) error
}
