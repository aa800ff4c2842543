package adapters

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/devflow/devflow/internal/domains/relay/ports"
	"github.com/devflow/devflow/internal/platform/errors"
	"github.com/devflow/devflow/internal/platform/telemetry"
)

// AnthropicProvider implements ports.Provider with the Messages streaming API.
type AnthropicProvider struct {
	// BaseURL overrides the SDK default (https://api.anthropic.com).
	BaseURL string

	APIKey       string
	APIKeyEnvVar string

	DefaultModel string

	// MaxTokens is required by the Messages API; 0 means 4096.
	MaxTokens int

	HTTPClient *http.Client
}

func NewAnthropicProvider() AnthropicProvider {
	return AnthropicProvider{
		APIKeyEnvVar: "ANTHROPIC_API_KEY",
		DefaultModel: "claude-3-5-haiku-latest",
		MaxTokens:    4096,
	}
}

func (p AnthropicProvider) Name() string { return "anthropic" }

func (p AnthropicProvider) NetworkHosts() []string {
	return []string{"api.anthropic.com"}
}

func (p AnthropicProvider) CheckCredentials() error {
	_, err := p.apiKey()
	return err
}

func (p AnthropicProvider) apiKey() (string, error) {
	key := strings.TrimSpace(p.APIKey)
	if key == "" && p.APIKeyEnvVar != "" {
		key = strings.TrimSpace(os.Getenv(p.APIKeyEnvVar))
	}
	if key == "" {
		return "", errors.NewConfig(fmt.Sprintf("anthropic: missing API key in env var %s", p.APIKeyEnvVar))
	}
	return key, nil
}

func (p AnthropicProvider) StreamChat(ctx context.Context, req ports.ChatRequest, handler ports.StreamHandler) (ports.ChatResponse, error) {
	key, err := p.apiKey()
	if err != nil {
		return ports.ChatResponse{}, err
	}

	httpClient := p.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Transport: telemetry.WrapTransport(nil)}
	}
	opts := []option.RequestOption{
		option.WithAPIKey(key),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(0),
	}
	if strings.TrimSpace(p.BaseURL) != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSpace(p.BaseURL)))
	}
	client := anthropic.NewClient(opts...)

	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = p.DefaultModel
	}
	maxTokens := req.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = p.MaxTokens
	}
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages:  toAnthropicMessages(req.Messages),
	}
	if strings.TrimSpace(req.SystemText) != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemText}}
	}

	stream := client.Messages.NewStreaming(ctx, params)
	defer stream.Close()

	var full strings.Builder
	respID := ""
	started := false

	for stream.Next() {
		if !started {
			started = true
			if handler != nil {
				handler.OnStart()
			}
		}
		switch ev := stream.Current().AsAny().(type) {
		case anthropic.MessageStartEvent:
			respID = ev.Message.ID
		case anthropic.ContentBlockDeltaEvent:
			delta, ok := ev.Delta.AsAny().(anthropic.TextDelta)
			if !ok || delta.Text == "" {
				continue
			}
			full.WriteString(delta.Text)
			if handler != nil {
				if err := handler.OnDelta(delta.Text); err != nil {
					return ports.ChatResponse{Text: full.String(), ProviderRequestID: respID, Model: model}, err
				}
			}
		}
	}
	if err := stream.Err(); err != nil {
		return ports.ChatResponse{Text: full.String(), ProviderRequestID: respID, Model: model},
			errors.NewUpstream("anthropic: stream failed", err)
	}

	if handler != nil {
		handler.OnDone()
	}
	return ports.ChatResponse{Text: full.String(), ProviderRequestID: respID, Model: model}, nil
}

func toAnthropicMessages(msgs []ports.ChatMessage) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		if strings.TrimSpace(m.Text) == "" {
			continue
		}
		block := anthropic.NewTextBlock(m.Text)
		if strings.EqualFold(strings.TrimSpace(m.Role), "assistant") {
			out = append(out, anthropic.NewAssistantMessage(block))
		} else {
			out = append(out, anthropic.NewUserMessage(block))
		}
	}
	return out
}
