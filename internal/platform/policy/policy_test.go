package policy

import (
	"testing"

	"github.com/devflow/devflow/internal/platform/errors"
)

func TestRequireOriginAllowed(t *testing.T) {
	pol := DefaultOriginPolicy("https://devflow-ai-chrome-extension.onrender.com", "https://a.example, https://b.example/")

	tests := []struct {
		name    string
		origin  string
		wantErr bool
	}{
		{name: "no origin", origin: "", wantErr: false},
		{name: "chrome extension", origin: "chrome-extension://abcdefghijklmnop", wantErr: false},
		{name: "firefox extension", origin: "moz-extension://1234", wantErr: false},
		{name: "localhost with port", origin: "http://localhost:5173", wantErr: false},
		{name: "loopback ip", origin: "http://127.0.0.1:3000", wantErr: false},
		{name: "ipv6 loopback", origin: "http://[::1]:8080", wantErr: false},
		{name: "deployment origin", origin: "https://devflow-ai-chrome-extension.onrender.com", wantErr: false},
		{name: "comma separated entry", origin: "https://b.example", wantErr: false},
		{name: "case insensitive", origin: "HTTPS://A.EXAMPLE", wantErr: false},
		{name: "unknown site", origin: "https://evil.example", wantErr: true},
		{name: "localhost lookalike", origin: "https://localhost.evil.example", wantErr: true},
		{name: "deployment subdomain", origin: "https://x.devflow-ai-chrome-extension.onrender.com", wantErr: true},
		{name: "garbage", origin: "not a url", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := pol.RequireOriginAllowed(tt.origin)
			if (err != nil) != tt.wantErr {
				t.Fatalf("RequireOriginAllowed(%q) error = %v, wantErr %v", tt.origin, err, tt.wantErr)
			}
			if err != nil && errors.KindOf(err) != errors.KindAdmission {
				t.Errorf("error kind = %q, want admission", errors.KindOf(err))
			}
		})
	}
}

func TestLocalhostDisabled(t *testing.T) {
	pol := OriginPolicy{AllowLocalhost: false}
	if err := pol.RequireOriginAllowed("http://localhost:3000"); err == nil {
		t.Error("localhost should be rejected when AllowLocalhost is false")
	}
}
