package util

import (
	"net/http"
	"net/url"
	"testing"
)

func proxyFor(t *testing.T, fn func(*http.Request) (*url.URL, error), rawURL string) string {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, rawURL, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	u, err := fn(req)
	if err != nil {
		t.Fatalf("proxy func: %v", err)
	}
	if u == nil {
		return ""
	}
	return u.String()
}

func TestNewProxyFunc_Explicit(t *testing.T) {
	t.Setenv("HTTP_PROXY", "")
	t.Setenv("HTTPS_PROXY", "")
	t.Setenv("NO_PROXY", "")

	fn := NewProxyFunc("http://plain-proxy:8080", "http://tls-proxy:8443", "localhost,internal.example")

	if got := proxyFor(t, fn, "https://api.openai.com/v1/chat"); got != "http://tls-proxy:8443" {
		t.Errorf("https request: got %q", got)
	}
	if got := proxyFor(t, fn, "http://ollama.example:11434/api/generate"); got != "http://plain-proxy:8080" {
		t.Errorf("http request: got %q", got)
	}
	if got := proxyFor(t, fn, "http://internal.example/api"); got != "" {
		t.Errorf("no_proxy host should bypass proxy, got %q", got)
	}
}

func TestNewProxyFunc_NoProxyOverridesEnvironment(t *testing.T) {
	t.Setenv("HTTPS_PROXY", "http://env-proxy:3128")
	t.Setenv("NO_PROXY", "")

	fn := NewProxyFunc("", "", "generativelanguage.googleapis.com")

	if got := proxyFor(t, fn, "https://generativelanguage.googleapis.com/v1beta"); got != "" {
		t.Errorf("expected bypass, got %q", got)
	}
	if got := proxyFor(t, fn, "https://api.anthropic.com/v1/messages"); got != "http://env-proxy:3128" {
		t.Errorf("expected environment proxy, got %q", got)
	}
}

func TestNewHTTPClient(t *testing.T) {
	client := NewHTTPClient("http://proxy:8080", "", "")

	transport, ok := client.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("expected *http.Transport, got %T", client.Transport)
	}
	if transport.Proxy == nil {
		t.Error("expected proxy func on transport")
	}
}
