package adapters

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/devflow/devflow/internal/domains/relay/ports"
	"github.com/devflow/devflow/internal/platform/errors"
	"github.com/devflow/devflow/internal/platform/telemetry"
)

// ChatCompletionsProvider implements ports.Provider against any OpenAI-compatible
// /chat/completions endpoint (Groq, OpenAI, local gateways).
//
// Streaming uses stream=true and SSE parsing of "data:" lines; each event's
// choices[0].delta.content is one fragment. "[DONE]" ends the stream.
type ChatCompletionsProvider struct {
	// ProviderName is returned by Name(), e.g. "groq".
	ProviderName string

	// BaseURL is the API root including the version segment, e.g. "https://api.groq.com/openai/v1".
	BaseURL string

	// APIKey is used when set; otherwise the key is read from APIKeyEnvVar at call time.
	APIKey       string
	APIKeyEnvVar string

	// DefaultModel is used when the request leaves Model empty.
	DefaultModel string

	// StreamClient is used for streaming calls. If nil, an instrumented client without a
	// hard timeout is used; cancellation comes from the request context.
	StreamClient *http.Client
}

func NewGroqProvider() ChatCompletionsProvider {
	return ChatCompletionsProvider{
		ProviderName: "groq",
		BaseURL:      "https://api.groq.com/openai/v1",
		APIKeyEnvVar: "GROQ_API_KEY",
		DefaultModel: "llama-3.1-8b-instant",
	}
}

func NewOpenAIProvider() ChatCompletionsProvider {
	return ChatCompletionsProvider{
		ProviderName: "openai",
		BaseURL:      "https://api.openai.com/v1",
		APIKeyEnvVar: "OPENAI_API_KEY",
		DefaultModel: "gpt-4o-mini",
	}
}

func (p ChatCompletionsProvider) Name() string { return p.ProviderName }

func (p ChatCompletionsProvider) NetworkHosts() []string {
	u, err := url.Parse(p.baseURL())
	if err != nil || u.Hostname() == "" {
		return nil
	}
	return []string{u.Hostname()}
}

func (p ChatCompletionsProvider) CheckCredentials() error {
	_, err := p.apiKey()
	return err
}

func (p ChatCompletionsProvider) StreamChat(ctx context.Context, req ports.ChatRequest, handler ports.StreamHandler) (ports.ChatResponse, error) {
	key, err := p.apiKey()
	if err != nil {
		return ports.ChatResponse{}, err
	}

	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = p.DefaultModel
	}

	b, err := json.Marshal(p.buildPayload(req, model))
	if err != nil {
		return ports.ChatResponse{}, errors.NewInternal(p.Name()+": marshal request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL()+"/chat/completions", bytes.NewReader(b))
	if err != nil {
		return ports.ChatResponse{}, errors.NewInternal(p.Name()+": build request", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+key)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := p.streamClient().Do(httpReq)
	if err != nil {
		return ports.ChatResponse{}, errors.NewUpstream(p.Name()+": stream request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := readAllLimit(resp.Body, 64_000)
		return ports.ChatResponse{}, errors.NewUpstream(
			fmt.Sprintf("%s: stream failed: status=%d body=%s", p.Name(), resp.StatusCode, strings.TrimSpace(string(bodyBytes))), nil)
	}

	if handler != nil {
		handler.OnStart()
	}

	var full strings.Builder
	respID := ""
	respModel := model
	// finished is set by [DONE] or a finish_reason; EOF without it is a truncated stream.
	finished := false

	// SSE parsing: read lines, collect "data:" blocks until blank line.
	br := bufio.NewReader(resp.Body)
	var dataBuf strings.Builder

	flush := func() error {
		raw := strings.TrimSpace(dataBuf.String())
		dataBuf.Reset()
		if raw == "" {
			return nil
		}
		if raw == "[DONE]" {
			finished = true
			return errDone
		}

		var ev chatCompletionChunk
		if err := json.Unmarshal([]byte(raw), &ev); err != nil {
			return errors.NewUpstream(p.Name()+": invalid stream json", err)
		}
		if ev.Error != nil && strings.TrimSpace(ev.Error.Message) != "" {
			return errors.NewUpstream(p.Name()+": "+ev.Error.Message, nil)
		}
		if ev.ID != "" {
			respID = ev.ID
		}
		if ev.Model != "" {
			respModel = ev.Model
		}
		if len(ev.Choices) == 0 {
			return nil
		}
		if fr := ev.Choices[0].FinishReason; fr != nil && *fr != "" {
			finished = true
		}
		d := ev.Choices[0].Delta.Content
		if d == "" {
			return nil
		}
		full.WriteString(d)
		if handler != nil {
			return handler.OnDelta(d)
		}
		return nil
	}

	for {
		line, readErr := br.ReadString('\n')
		if line != "" {
			trim := strings.TrimRight(line, "\r\n")
			if trim == "" {
				// End of event
				if err := flush(); err != nil {
					if err == errDone {
						break
					}
					return ports.ChatResponse{Text: full.String(), ProviderRequestID: respID, Model: respModel}, err
				}
			} else if strings.HasPrefix(trim, "data:") {
				data := strings.TrimSpace(strings.TrimPrefix(trim, "data:"))
				if dataBuf.Len() > 0 {
					dataBuf.WriteString("\n")
				}
				dataBuf.WriteString(data)
			}
		}

		if readErr != nil {
			if readErr != io.EOF {
				return ports.ChatResponse{Text: full.String(), ProviderRequestID: respID, Model: respModel},
					errors.NewUpstream(p.Name()+": stream read failed", readErr)
			}
			// EOF: flush remaining buffered event.
			if err := flush(); err != nil && err != errDone {
				return ports.ChatResponse{Text: full.String(), ProviderRequestID: respID, Model: respModel}, err
			}
			if !finished {
				return ports.ChatResponse{Text: full.String(), ProviderRequestID: respID, Model: respModel},
					errors.NewUpstream(p.Name()+": stream ended before [DONE]", io.ErrUnexpectedEOF)
			}
			break
		}
	}

	if handler != nil {
		handler.OnDone()
	}

	return ports.ChatResponse{
		Text:              full.String(),
		ProviderRequestID: respID,
		Model:             respModel,
	}, nil
}

////////////////////////////////////////////////////////////////////////////////
// Payload / parsing helpers
////////////////////////////////////////////////////////////////////////////////

type chatCompletionChunk struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (p ChatCompletionsProvider) buildPayload(req ports.ChatRequest, model string) map[string]any {
	var messages []map[string]any
	addMsg := func(role, text string) {
		if strings.TrimSpace(text) == "" {
			return
		}
		messages = append(messages, map[string]any{
			"role":    role,
			"content": text,
		})
	}

	addMsg("system", req.SystemText)
	for _, m := range req.Messages {
		r := strings.TrimSpace(strings.ToLower(m.Role))
		if r == "" {
			r = "user"
		}
		addMsg(r, m.Text)
	}

	payload := map[string]any{
		"model":    model,
		"messages": messages,
		"stream":   true,
	}
	if req.MaxOutputTokens > 0 {
		payload["max_tokens"] = req.MaxOutputTokens
	}
	return payload
}

func (p ChatCompletionsProvider) baseURL() string {
	if strings.TrimSpace(p.BaseURL) != "" {
		return strings.TrimRight(strings.TrimSpace(p.BaseURL), "/")
	}
	return "https://api.openai.com/v1"
}

func (p ChatCompletionsProvider) apiKey() (string, error) {
	if k := strings.TrimSpace(p.APIKey); k != "" {
		return k, nil
	}
	env := strings.TrimSpace(p.APIKeyEnvVar)
	if env == "" {
		return "", errors.NewConfig(p.Name() + ": no API key configured")
	}
	k := strings.TrimSpace(os.Getenv(env))
	if k == "" {
		return "", errors.NewConfig(fmt.Sprintf("%s: missing API key in env var %s", p.Name(), env))
	}
	return k, nil
}

func (p ChatCompletionsProvider) streamClient() *http.Client {
	if p.StreamClient != nil {
		return p.StreamClient
	}
	// For streaming, avoid a hard client timeout; rely on request context cancellation.
	return &http.Client{Transport: telemetry.WrapTransport(nil)}
}

func readAllLimit(r io.Reader, max int64) ([]byte, error) {
	if max <= 0 {
		max = 1_000_000
	}
	return io.ReadAll(io.LimitReader(r, max))
}

type doneErr struct{}

func (doneErr) Error() string { return "done" }

var errDone error = doneErr{}
