package app

import (
	"os"
	"strings"
	"time"

	contractrelay "github.com/devflow/devflow/internal/contracts/v1/relay"
	"github.com/devflow/devflow/internal/domains/relay/ports"
	"github.com/devflow/devflow/internal/platform/errors"
)

const (
	DefaultListen          = ":3000"
	DefaultProvider        = "groq"
	DefaultRateLimitMax    = 100
	DefaultRateLimitWindow = 15 * time.Minute
)

// Config resolves relay settings. Precedence, lowest first:
//
//	built-in defaults < devflow.yaml < environment < explicit overrides (flags)
//
// The dotenv file is loaded before the environment is read, so keys placed in
// .env behave like real environment variables.
type Config struct {
	Env      ports.EnvLoader
	Settings ports.SettingsStore
	Lookup   func(key string) (string, bool)
}

type ResolveConfigRequest struct {
	ConfigPath string
	EnvFile    string

	// Overrides win over file and environment when non-empty.
	Listen   string
	Provider string
}

type ResolveConfigResult struct {
	Settings    contractrelay.SettingsV1
	ConfigFound bool
	EnvLoaded   bool
	Warnings    []string
}

func (c *Config) Resolve(req ResolveConfigRequest) (ResolveConfigResult, error) {
	res := ResolveConfigResult{}

	if c.Env != nil && strings.TrimSpace(req.EnvFile) != "" {
		envRes, err := c.Env.Load(ports.LoadEnvRequest{Path: req.EnvFile})
		if err != nil {
			return ResolveConfigResult{}, err
		}
		res.EnvLoaded = envRes.Loaded
		res.Warnings = append(res.Warnings, envRes.Warnings...)
	}

	var s contractrelay.SettingsV1
	if c.Settings != nil && strings.TrimSpace(req.ConfigPath) != "" {
		fileSettings, found, err := c.Settings.Read(req.ConfigPath)
		if err != nil {
			return ResolveConfigResult{}, err
		}
		s = fileSettings
		res.ConfigFound = found
	}

	if err := c.applyEnv(&s); err != nil {
		return ResolveConfigResult{}, err
	}

	if v := strings.TrimSpace(req.Listen); v != "" {
		s.Listen = v
	}
	if v := strings.TrimSpace(req.Provider); v != "" {
		s.Provider = v
	}

	applyDefaults(&s)
	res.Settings = s
	return res, nil
}

func (c *Config) applyEnv(s *contractrelay.SettingsV1) error {
	if v := c.get("PORT"); v != "" {
		s.Listen = ":" + strings.TrimPrefix(v, ":")
	}
	if v := c.get("DEVFLOW_PROVIDER"); v != "" {
		s.Provider = v
	}
	if v := c.get("DEVFLOW_MODEL"); v != "" {
		s.Model = v
	}
	if v := c.get("ALLOWED_ORIGIN"); v != "" {
		s.AllowedOrigins = append(s.AllowedOrigins, v)
	}
	if v := c.get("DEVFLOW_UPSTREAM_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return errors.NewConfig("DEVFLOW_UPSTREAM_TIMEOUT must be a positive duration, got " + v)
		}
		s.UpstreamTimeout = d
	}
	if v := c.get("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		s.Telemetry.Endpoint = v
	}
	return nil
}

func (c *Config) get(key string) string {
	lookup := c.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	v, _ := lookup(key)
	return strings.TrimSpace(v)
}

func applyDefaults(s *contractrelay.SettingsV1) {
	if strings.TrimSpace(s.Listen) == "" {
		s.Listen = DefaultListen
	}
	if strings.TrimSpace(s.Provider) == "" {
		s.Provider = DefaultProvider
	}
	s.Provider = ports.NormalizeProviderName(s.Provider)
	if s.RateLimit.Max <= 0 {
		s.RateLimit.Max = DefaultRateLimitMax
	}
	if s.RateLimit.Window <= 0 {
		s.RateLimit.Window = DefaultRateLimitWindow
	}
	if s.UpstreamTimeout <= 0 {
		s.UpstreamTimeout = DefaultUpstreamTimeout
	}
}

// CheckProvider fails with a config error when name is unknown or its credential
// is missing. The relay calls it once before listening.
func CheckProvider(providers ports.ProviderRegistry, name string) error {
	if providers == nil {
		return errors.NewInternal("relay Providers is nil", nil)
	}
	p, ok := providers.Get(name)
	if !ok || p == nil {
		return errors.NewConfig("unknown provider " + name + " (available: " + strings.Join(providers.Names(), ", ") + ")")
	}
	if cc, ok := p.(ports.CredentialChecker); ok {
		return cc.CheckCredentials()
	}
	return nil
}
