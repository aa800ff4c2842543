package relay

import "time"

// SettingsV1 is the relay's non-secret configuration, read from devflow.yaml:
//
//	listen: ":3000"
//	provider: groq
//	model: llama-3.1-8b-instant
//	allowed_origins:
//	  - https://devflow-ai-chrome-extension.onrender.com
//	rate_limit:
//	  max: 100
//	  window: 15m
//	upstream_timeout: 2m
//
// API keys never live here; they come from the environment (or a dotenv file).
type SettingsV1 struct {
	Listen string `yaml:"listen,omitempty" json:"listen,omitempty"`

	// Provider is one of "groq", "openai", "anthropic", "stub".
	Provider string `yaml:"provider,omitempty" json:"provider,omitempty"`
	Model    string `yaml:"model,omitempty" json:"model,omitempty"`

	// SystemText replaces the built-in system instruction when non-empty.
	SystemText string `yaml:"system_text,omitempty" json:"systemText,omitempty"`

	// MaxOutputTokens is passed to providers that require a limit.
	MaxOutputTokens int `yaml:"max_output_tokens,omitempty" json:"maxOutputTokens,omitempty"`

	// AllowedOrigins are exact deployment origins in addition to extensions and localhost.
	AllowedOrigins []string `yaml:"allowed_origins,omitempty" json:"allowedOrigins,omitempty"`
	// DisableLocalhost turns off the loopback development allowance.
	DisableLocalhost bool `yaml:"disable_localhost,omitempty" json:"disableLocalhost,omitempty"`

	RateLimit RateLimitV1 `yaml:"rate_limit,omitempty" json:"rateLimit,omitempty"`

	// TrustProxy keys the rate limiter on the first X-Forwarded-For entry.
	TrustProxy bool `yaml:"trust_proxy,omitempty" json:"trustProxy,omitempty"`

	UpstreamTimeout time.Duration `yaml:"upstream_timeout,omitempty" json:"upstreamTimeout,omitempty"`

	// BaseURL overrides the provider endpoint (proxies, tests).
	BaseURL string `yaml:"base_url,omitempty" json:"baseUrl,omitempty"`

	Telemetry TelemetryV1 `yaml:"telemetry,omitempty" json:"telemetry,omitempty"`
}

// RateLimitV1 is a fixed-window request ceiling per caller.
type RateLimitV1 struct {
	Max    int           `yaml:"max,omitempty" json:"max,omitempty"`
	Window time.Duration `yaml:"window,omitempty" json:"window,omitempty"`
}

// TelemetryV1 configures OTLP trace export. An empty endpoint disables export.
type TelemetryV1 struct {
	Endpoint    string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	Insecure    bool   `yaml:"insecure,omitempty" json:"insecure,omitempty"`
	Environment string `yaml:"environment,omitempty" json:"environment,omitempty"`
}
