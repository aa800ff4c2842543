package adapters

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	contractchat "github.com/devflow/devflow/internal/contracts/v1/chat"
	"github.com/devflow/devflow/internal/domains/shell/ports"
	"github.com/devflow/devflow/internal/platform/errors"
)

// DefaultRelayURL is the relay a local `devflow serve` listens on.
const DefaultRelayURL = "http://localhost:3000"

// HTTPRelayClient implements ports.RelayClient against POST /ask.
type HTTPRelayClient struct {
	// BaseURL is the relay root, e.g. "http://localhost:3000".
	BaseURL string

	// HTTPClient must not set a Timeout; the stream is bounded by ctx.
	HTTPClient *http.Client

	// ReadSize is the body read buffer; 0 means 4096.
	ReadSize int
}

func NewHTTPRelayClient(baseURL string) HTTPRelayClient {
	return HTTPRelayClient{BaseURL: baseURL}
}

func (c HTTPRelayClient) Ask(ctx context.Context, req ports.AskRequest, onFragment func(string) error) error {
	body, err := json.Marshal(contractchat.AskRequestV1{Prompt: req.Prompt, SessionID: req.SessionID})
	if err != nil {
		return errors.NewInternal("relay: marshal request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.askURL(), bytes.NewReader(body))
	if err != nil {
		return errors.NewConfig("relay: bad URL " + c.askURL())
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/plain")

	resp, err := c.client().Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return errors.NewCanceled("relay: request canceled", ctx.Err())
		}
		return errors.NewUpstream("relay: unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}

	received := 0
	var pending []byte
	buf := make([]byte, c.readSize())
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
			ready, rest := splitUTF8(pending)
			if len(ready) > 0 {
				received += len(ready)
				if err := onFragment(string(ready)); err != nil {
					return err
				}
			}
			pending = append(pending[:0], rest...)
		}

		if readErr == io.EOF {
			if len(pending) > 0 {
				// A truncated sequence at a clean end is delivered as-is.
				if err := onFragment(string(pending)); err != nil {
					return err
				}
			}
			return nil
		}
		if readErr != nil {
			if ctx.Err() != nil {
				return errors.NewCanceled("relay: request canceled", ctx.Err())
			}
			if received > 0 || len(pending) > 0 {
				return errors.NewMidStream("relay: stream interrupted", readErr)
			}
			return errors.NewUpstream("relay: stream failed before any text", readErr)
		}
	}
}

func (c HTTPRelayClient) askURL() string {
	base := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if base == "" {
		base = DefaultRelayURL
	}
	return base + contractchat.AskPath
}

func (c HTTPRelayClient) client() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c HTTPRelayClient) readSize() int {
	if c.ReadSize > 0 {
		return c.ReadSize
	}
	return 4096
}

// statusError maps a non-200 reply to an error kind, using the relay's
// {"error": "..."} body as the message when present.
func statusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64_000))
	msg := strings.TrimSpace(string(raw))
	var body contractchat.ErrorBodyV1
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		msg = body.Error
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	switch {
	case resp.StatusCode == http.StatusBadRequest:
		return errors.NewValidation(msg)
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests:
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			msg = fmt.Sprintf("%s (retry after %ss)", msg, ra)
		}
		return errors.NewAdmission(msg)
	default:
		return errors.NewUpstream(fmt.Sprintf("relay: status %d: %s", resp.StatusCode, msg), nil)
	}
}

// splitUTF8 splits b into a prefix that ends on a rune boundary and the
// trailing bytes of a sequence that is still incomplete.
func splitUTF8(b []byte) (ready, rest []byte) {
	// A UTF-8 sequence is at most 4 bytes, so only the tail needs checking.
	for i := 1; i <= utf8.UTFMax && i <= len(b); i++ {
		start := len(b) - i
		if !utf8.RuneStart(b[start]) {
			continue
		}
		if utf8.FullRune(b[start:]) {
			return b, nil
		}
		return b[:start], b[start:]
	}
	return b, nil
}
