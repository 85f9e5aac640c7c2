package renderer

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/netip"
	"strings"
	"testing"

	"github.com/pixelproof/design-diff-tool/internal/platform/errs"
)

func TestIsBlockedIP(t *testing.T) {
	tests := []struct {
		name    string
		ip      string
		blocked bool
	}{
		// Loopback
		{name: "IPv4 loopback", ip: "127.0.0.1", blocked: true},
		{name: "IPv6 loopback", ip: "::1", blocked: true},

		// Private ranges (RFC 1918)
		{name: "10.x.x.x", ip: "10.0.0.1", blocked: true},
		{name: "172.16.x.x", ip: "172.16.0.1", blocked: true},
		{name: "192.168.x.x", ip: "192.168.1.1", blocked: true},

		// Link-local
		{name: "link-local IPv4", ip: "169.254.1.1", blocked: true},
		{name: "link-local IPv6", ip: "fe80::1", blocked: true},

		// Cloud metadata
		{name: "AWS metadata", ip: "169.254.169.254", blocked: true},

		// Carrier-grade NAT (RFC 6598)
		{name: "CGN low", ip: "100.64.0.1", blocked: true},
		{name: "CGN high", ip: "100.127.255.254", blocked: true},

		// TEST-NET ranges (RFC 5737)
		{name: "TEST-NET-1", ip: "192.0.2.1", blocked: true},
		{name: "TEST-NET-2", ip: "198.51.100.1", blocked: true},
		{name: "TEST-NET-3", ip: "203.0.113.1", blocked: true},

		// IETF protocol assignments
		{name: "IETF 192.0.0.x", ip: "192.0.0.1", blocked: true},

		// Benchmarking (RFC 2544)
		{name: "benchmark 198.18.x.x", ip: "198.18.0.1", blocked: true},
		{name: "benchmark 198.19.x.x", ip: "198.19.255.254", blocked: true},

		// Unspecified
		{name: "unspecified IPv4", ip: "0.0.0.0", blocked: true},
		{name: "unspecified IPv6", ip: "::", blocked: true},

		// IPv4-mapped IPv6 (bypass attempt)
		{name: "mapped loopback", ip: "::ffff:127.0.0.1", blocked: true},
		{name: "mapped private", ip: "::ffff:10.0.0.1", blocked: true},
		{name: "mapped metadata", ip: "::ffff:169.254.169.254", blocked: true},
		{name: "mapped public", ip: "::ffff:8.8.8.8", blocked: false},

		// Public IPs - should NOT be blocked
		{name: "Google DNS", ip: "8.8.8.8", blocked: false},
		{name: "Cloudflare DNS", ip: "1.1.1.1", blocked: false},
		{name: "public IPv4", ip: "93.184.216.34", blocked: false},
		{name: "public range near CGN", ip: "100.63.255.255", blocked: false},
		{name: "public range after CGN", ip: "100.128.0.1", blocked: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr, err := netip.ParseAddr(tt.ip)
			if err != nil {
				t.Fatalf("failed to parse IP %q: %v", tt.ip, err)
			}
			if got := isBlockedIP(addr); got != tt.blocked {
				t.Errorf("isBlockedIP(%s) = %v, want %v", tt.ip, got, tt.blocked)
			}
		})
	}
}

func TestBlockPrivateAddresses(t *testing.T) {
	tests := []struct {
		name    string
		address string
		wantErr bool
	}{
		{name: "public address", address: "93.184.216.34:443", wantErr: false},
		{name: "loopback", address: "127.0.0.1:80", wantErr: true},
		{name: "private 10.x", address: "10.0.0.5:6379", wantErr: true},
		{name: "AWS metadata", address: "169.254.169.254:80", wantErr: true},
		{name: "invalid address no port", address: "127.0.0.1", wantErr: true},
		{name: "IPv6 bracket format", address: "[::1]:80", wantErr: true},
		{name: "mapped IPv4 loopback", address: "[::ffff:127.0.0.1]:80", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := blockPrivateAddresses("tcp", tt.address, nil)
			if (err != nil) != tt.wantErr {
				t.Errorf("blockPrivateAddresses(%q) error = %v, wantErr %v", tt.address, err, tt.wantErr)
			}
		})
	}
}

func TestValidateTarget(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		wantErr  bool
		wantKind errs.Kind
	}{
		{name: "valid https", url: "https://example.com", wantErr: false},
		{name: "valid http with path", url: "http://example.com/pricing", wantErr: false},
		{name: "missing scheme", url: "example.com", wantErr: true, wantKind: errs.InvalidInput},
		{name: "unsupported scheme", url: "ftp://example.com", wantErr: true, wantKind: errs.InvalidInput},
		{name: "file scheme", url: "file:///etc/passwd", wantErr: true, wantKind: errs.InvalidInput},
		{name: "empty", url: "", wantErr: true, wantKind: errs.InvalidInput},
		{name: "loopback host", url: "http://127.0.0.1:8080", wantErr: true, wantKind: errs.InvalidInput},
		{name: "private host", url: "http://192.168.1.10", wantErr: true, wantKind: errs.InvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateTarget(context.Background(), tt.url, false)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateTarget(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
			if err == nil {
				return
			}
			var appErr *errs.AppError
			if !errors.As(err, &appErr) {
				t.Fatalf("expected *errs.AppError, got %T", err)
			}
			if appErr.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", appErr.Kind, tt.wantKind)
			}
		})
	}
}

func TestValidateTarget_AllowPrivate(t *testing.T) {
	if _, err := ValidateTarget(context.Background(), "http://127.0.0.1:8080", true); err != nil {
		t.Fatalf("unexpected error with private targets allowed: %v", err)
	}
}

func TestParseProbe(t *testing.T) {
	tests := []struct {
		name       string
		html       string
		wantTitle  string
		wantImages int
	}{
		{
			name:       "title and images",
			html:       `<html><head><title>Landing Page</title></head><body><img src="a.png"><img src="b.png"/></body></html>`,
			wantTitle:  "Landing Page",
			wantImages: 2,
		},
		{
			name:       "no title",
			html:       `<html><body><img src="a.png"></body></html>`,
			wantTitle:  "",
			wantImages: 1,
		},
		{
			name:       "whitespace title",
			html:       "<html><head><title>\n  Hero\t</title></head><body></body></html>",
			wantTitle:  "Hero",
			wantImages: 0,
		},
		{
			name:       "no images",
			html:       `<html><head><title>Plain</title></head><body><p>text</p></body></html>`,
			wantTitle:  "Plain",
			wantImages: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			probe, err := parseProbe(strings.NewReader(tt.html))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if probe.Title != tt.wantTitle {
				t.Errorf("Title = %q, want %q", probe.Title, tt.wantTitle)
			}
			if probe.ImageCount != tt.wantImages {
				t.Errorf("ImageCount = %d, want %d", probe.ImageCount, tt.wantImages)
			}
		})
	}
}

func TestProbePage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head><title>Checkout</title></head><body><img src="x.png"><img src="y.png"><img src="z.png"></body></html>`))
	}))
	defer srv.Close()

	probe, err := ProbePage(context.Background(), NewProbeClient(true), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if probe.Title != "Checkout" {
		t.Errorf("Title = %q, want %q", probe.Title, "Checkout")
	}
	if probe.ImageCount != 3 {
		t.Errorf("ImageCount = %d, want 3", probe.ImageCount)
	}
}

func TestProbePage_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := ProbePage(context.Background(), NewProbeClient(true), srv.URL)
	if err == nil {
		t.Fatal("expected error for 404 response")
	}
	var appErr *errs.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *errs.AppError, got %T", err)
	}
	if appErr.Kind != errs.RenderFailed {
		t.Errorf("Kind = %v, want %v", appErr.Kind, errs.RenderFailed)
	}
	if appErr.UpstreamStatus != http.StatusNotFound {
		t.Errorf("UpstreamStatus = %d, want %d", appErr.UpstreamStatus, http.StatusNotFound)
	}
}
