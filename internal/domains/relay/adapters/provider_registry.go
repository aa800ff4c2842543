package adapters

import (
	"context"
	"sort"
	"strings"

	"github.com/devflow/devflow/internal/domains/relay/ports"
)

// ProviderRegistry is the default in-process provider registry.
type ProviderRegistry struct {
	items   map[string]ports.Provider
	defName string
}

// NewProviderRegistry registers the given providers; defaultName picks Default().
// With no providers the registry serves only the stub.
func NewProviderRegistry(defaultName string, providers ...ports.Provider) ProviderRegistry {
	items := map[string]ports.Provider{}
	for _, p := range providers {
		if p == nil {
			continue
		}
		items[ports.NormalizeProviderName(p.Name())] = p
	}
	return ProviderRegistry{
		items:   items,
		defName: defaultName,
	}
}

// NewDefaultProviderRegistry registers every built-in provider with default endpoints.
func NewDefaultProviderRegistry(defaultName string) ProviderRegistry {
	return NewProviderRegistry(defaultName,
		NewGroqProvider(),
		NewOpenAIProvider(),
		NewAnthropicProvider(),
		NewStubProvider(),
	)
}

// NewConfiguredProviderRegistry is NewDefaultProviderRegistry with baseURL applied to
// the default provider. An empty baseURL keeps the built-in endpoints.
func NewConfiguredProviderRegistry(defaultName, baseURL string) ProviderRegistry {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return NewDefaultProviderRegistry(defaultName)
	}
	groq, openai, anthropic := NewGroqProvider(), NewOpenAIProvider(), NewAnthropicProvider()
	switch ports.NormalizeProviderName(defaultName) {
	case groq.Name():
		groq.BaseURL = baseURL
	case openai.Name():
		openai.BaseURL = baseURL
	case anthropic.Name():
		anthropic.BaseURL = baseURL
	}
	return NewProviderRegistry(defaultName, groq, openai, anthropic, NewStubProvider())
}

func (r ProviderRegistry) Get(name string) (ports.Provider, bool) {
	if len(r.items) == 0 {
		return NewStubProvider(), true
	}
	key := ports.NormalizeProviderName(name)
	if key == "" {
		return r.Default(), true
	}
	p, ok := r.items[key]
	return p, ok
}

func (r ProviderRegistry) Names() []string {
	if len(r.items) == 0 {
		return []string{NewStubProvider().Name()}
	}
	out := make([]string, 0, len(r.items))
	for k := range r.items {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (r ProviderRegistry) Default() ports.Provider {
	if len(r.items) == 0 {
		return NewStubProvider()
	}
	name := ports.NormalizeProviderName(r.defName)
	if name != "" {
		if p, ok := r.items[name]; ok && p != nil {
			return p
		}
	}
	// stable fallback: return lexicographically-first provider
	names := r.Names()
	if len(names) > 0 {
		if p, ok := r.items[names[0]]; ok && p != nil {
			return p
		}
	}
	return NewStubProvider()
}

////////////////////////////////////////////////////////////////////////////////
// Stub provider (offline, deterministic)
////////////////////////////////////////////////////////////////////////////////

// StubProvider answers locally without network access. It is meant for extension
// development against a relay that has no provider key.
type StubProvider struct {
	// ChunkSize is the fragment length in bytes; 0 means 24.
	ChunkSize int
}

func NewStubProvider() StubProvider { return StubProvider{} }

func (StubProvider) Name() string { return "stub" }

func (StubProvider) NetworkHosts() []string { return nil }

func (s StubProvider) StreamChat(ctx context.Context, req ports.ChatRequest, handler ports.StreamHandler) (ports.ChatResponse, error) {
	txt := "**DevFlow stub reply** (no upstream provider configured).\n\nYou asked:\n\n> " + lastUserText(req.Messages) + "\n"

	if handler != nil {
		handler.OnStart()
	}

	n := s.ChunkSize
	if n <= 0 {
		n = 24
	}
	var sent strings.Builder
	for _, c := range chunkText(txt, n) {
		if err := ctx.Err(); err != nil {
			return ports.ChatResponse{Text: sent.String(), Model: "stub-model"}, err
		}
		sent.WriteString(c)
		if handler != nil {
			if err := handler.OnDelta(c); err != nil {
				return ports.ChatResponse{Text: sent.String(), Model: "stub-model"}, err
			}
		}
	}

	if handler != nil {
		handler.OnDone()
	}
	return ports.ChatResponse{Text: txt, Model: "stub-model"}, nil
}

func lastUserText(msgs []ports.ChatMessage) string {
	if len(msgs) == 0 {
		return ""
	}
	// Find last "user" role message.
	for i := len(msgs) - 1; i >= 0; i-- {
		if strings.ToLower(strings.TrimSpace(msgs[i].Role)) == "user" {
			return strings.TrimSpace(msgs[i].Text)
		}
	}
	// fallback: last message text
	return strings.TrimSpace(msgs[len(msgs)-1].Text)
}

// chunkText splits s into pieces of at most n bytes without splitting a UTF-8 sequence.
func chunkText(s string, n int) []string {
	if n <= 0 || s == "" {
		return []string{s}
	}
	var out []string
	for len(s) > 0 {
		if len(s) <= n {
			out = append(out, s)
			break
		}
		cut := n
		for cut > 0 && !isRuneStart(s[cut]) {
			cut--
		}
		if cut == 0 {
			cut = n
		}
		out = append(out, s[:cut])
		s = s[cut:]
	}
	return out
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }
