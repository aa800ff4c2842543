package policy

import (
	"net"
	"net/url"
	"strings"

	"github.com/devflow/devflow/internal/platform/errors"
)

// OriginPolicy decides which browser origins may call the relay.
//
// Rules, first match wins:
//   - an empty Origin (curl, server-to-server, some extension contexts) is allowed
//   - origins whose scheme is in ExtensionSchemes (chrome-extension, moz-extension) are allowed
//   - loopback hosts (localhost, 127.0.0.1, [::1]) on any port are allowed when AllowLocalhost is set
//   - exact matches against AllowOrigins (scheme://host[:port], no trailing slash)
//
// Everything else is rejected with an admission error.
type OriginPolicy struct {
	ExtensionSchemes []string
	AllowLocalhost   bool
	AllowOrigins     []string
}

// DefaultOriginPolicy allows browser extensions, local development and the given deployment origins.
func DefaultOriginPolicy(deploymentOrigins ...string) OriginPolicy {
	return OriginPolicy{
		ExtensionSchemes: []string{"chrome-extension", "moz-extension"},
		AllowLocalhost:   true,
		AllowOrigins:     cleanOrigins(deploymentOrigins),
	}
}

// RequireOriginAllowed returns an admission error if origin is not permitted.
func (p OriginPolicy) RequireOriginAllowed(origin string) error {
	origin = strings.TrimSpace(origin)
	if origin == "" {
		return nil
	}

	u, err := url.Parse(origin)
	if err != nil || u.Scheme == "" {
		return errors.NewAdmission("Not allowed by CORS")
	}
	scheme := strings.ToLower(u.Scheme)

	for _, s := range p.ExtensionSchemes {
		if strings.EqualFold(strings.TrimSpace(s), scheme) {
			return nil
		}
	}

	if p.AllowLocalhost && (scheme == "http" || scheme == "https") && isLoopback(normalizeHost(u.Host)) {
		return nil
	}

	want := strings.TrimRight(strings.ToLower(origin), "/")
	for _, allowed := range p.AllowOrigins {
		if strings.EqualFold(strings.TrimRight(strings.TrimSpace(allowed), "/"), want) {
			return nil
		}
	}

	return errors.NewAdmission("Not allowed by CORS")
}

func isLoopback(host string) bool {
	if host == "localhost" || strings.HasSuffix(host, ".localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func normalizeHost(host string) string {
	h := strings.TrimSpace(host)
	if h == "" {
		return ""
	}
	h = strings.ToLower(h)

	// net.SplitHostPort requires brackets for IPv6; handle best-effort.
	if strings.Contains(h, ":") {
		if hostOnly, _, err := net.SplitHostPort(h); err == nil && hostOnly != "" {
			return strings.Trim(hostOnly, "[]")
		}
	}

	// If not a host:port form, return as-is (also trims IPv6 brackets).
	return strings.Trim(h, "[]")
}

func cleanOrigins(xs []string) []string {
	var out []string
	for _, x := range xs {
		for _, part := range strings.Split(x, ",") {
			part = strings.TrimRight(strings.TrimSpace(part), "/")
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
