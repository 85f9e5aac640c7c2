package renderer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"syscall"
	"time"

	"golang.org/x/net/html"

	"github.com/pixelproof/design-diff-tool/internal/platform/errs"
)

var errBlockedAddress = errors.New("request to private/reserved network address is not allowed")

// The headless browser will happily navigate to loopback, link-local metadata
// endpoints, or anything else a crafted URL points at, so targets are vetted
// before a browser ever sees them.

// reservedPrefixes are CIDR ranges not covered by the netip.Addr helper methods
// (IsLoopback, IsPrivate, IsLinkLocalUnicast, IsLinkLocalMulticast, IsUnspecified).
var reservedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("100.64.0.0/10"),   // Carrier-grade NAT (RFC 6598)
	netip.MustParsePrefix("192.0.0.0/24"),    // IETF protocol assignments (RFC 6890)
	netip.MustParsePrefix("192.0.2.0/24"),    // TEST-NET-1 (RFC 5737)
	netip.MustParsePrefix("198.18.0.0/15"),   // Benchmarking (RFC 2544)
	netip.MustParsePrefix("198.51.100.0/24"), // TEST-NET-2 (RFC 5737)
	netip.MustParsePrefix("203.0.113.0/24"),  // TEST-NET-3 (RFC 5737)
}

func isBlockedIP(addr netip.Addr) bool {
	// Unmap IPv4-in-IPv6 (e.g. ::ffff:127.0.0.1 -> 127.0.0.1) so that
	// mapped addresses cannot bypass IPv4 checks.
	addr = addr.Unmap()

	if !addr.IsGlobalUnicast() || addr.IsPrivate() {
		return true
	}

	for _, p := range reservedPrefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// ValidateTarget parses and vets a capture URL: http(s) scheme, non-empty
// host, and no resolution to private or reserved addresses.
func ValidateTarget(ctx context.Context, rawURL string, allowPrivate bool) (*url.URL, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, &errs.AppError{
			Kind:    errs.InvalidInput,
			Message: "Invalid URL format. Please ensure you entered a valid URL (e.g., https://example.com).",
			Cause:   err,
		}
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, &errs.AppError{
			Kind:    errs.InvalidInput,
			Message: "Invalid URL format. Please ensure you entered a valid URL (e.g., https://example.com).",
		}
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, &errs.AppError{
			Kind:    errs.InvalidInput,
			Message: "Only http and https URLs are supported.",
		}
	}

	if allowPrivate {
		return parsed, nil
	}

	addrs, err := net.DefaultResolver.LookupNetIP(ctx, "ip", parsed.Hostname())
	if err != nil {
		return nil, &errs.AppError{
			Kind:    errs.RenderFailed,
			Message: "The target host could not be resolved.",
			Cause:   err,
		}
	}
	for _, addr := range addrs {
		if isBlockedIP(addr) {
			return nil, &errs.AppError{
				Kind:    errs.InvalidInput,
				Message: "The target URL resolves to a private or reserved address.",
				Cause:   fmt.Errorf("%w: %s", errBlockedAddress, addr),
			}
		}
	}

	return parsed, nil
}

// safeDialer returns a net.Dialer whose Control function rejects connections
// to private, loopback, link-local, and other reserved IP ranges. The check
// runs at dial time (after DNS resolution), which also prevents DNS-rebinding.
func safeDialer() *net.Dialer {
	return &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
		Control:   blockPrivateAddresses,
	}
}

func blockPrivateAddresses(_ string, address string, _ syscall.RawConn) error {
	addrPort, err := netip.ParseAddrPort(address)
	if err != nil {
		return fmt.Errorf("%w: %w", errBlockedAddress, err)
	}

	if isBlockedIP(addrPort.Addr()) {
		return fmt.Errorf("%w: %s", errBlockedAddress, addrPort.Addr())
	}

	return nil
}

// Probe is a lightweight pre-render census of the target page.
type Probe struct {
	Title      string
	ImageCount int
}

// NewProbeClient returns the HTTP client used for preflight fetches. When
// allowPrivate is true the SSRF dialer guard is disabled (tests, staging
// behind private addressing).
func NewProbeClient(allowPrivate bool) *http.Client {
	transport := &http.Transport{
		MaxConnsPerHost:     10,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
	if !allowPrivate {
		transport.DialContext = safeDialer().DialContext
	}
	return &http.Client{
		Timeout:   10 * time.Second,
		Transport: transport,
	}
}

// ProbePage fetches the raw HTML and tokenizes it for the page title and the
// number of <img> tags. The image count sizes the image-load wait budget
// during stabilization; the title feeds the capture metadata.
func ProbePage(ctx context.Context, client *http.Client, targetURL string) (*Probe, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/html")

	resp, err := client.Do(req)
	if err != nil {
		return nil, &errs.AppError{
			Kind:    errs.RenderFailed,
			Message: "The target URL could not be reached. Check the address.",
			Cause:   err,
		}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return nil, &errs.AppError{
			Kind:           errs.RenderFailed,
			UpstreamStatus: resp.StatusCode,
			Message:        "The target URL returned an error status.",
		}
	}

	const maxProbeBody = 10 << 20
	return parseProbe(io.LimitReader(resp.Body, maxProbeBody))
}

// parseProbe performs a single-pass traversal of the HTML body.
func parseProbe(body io.Reader) (*Probe, error) {
	probe := &Probe{}

	z := html.NewTokenizer(body)
	var inTitle bool

	for {
		switch z.Next() {
		case html.ErrorToken:
			if errors.Is(z.Err(), io.EOF) {
				return probe, nil
			}
			return nil, z.Err()

		case html.StartTagToken, html.SelfClosingTagToken:
			tn, _ := z.TagName()
			switch string(tn) {
			case "title":
				inTitle = true
			case "img":
				probe.ImageCount++
			}

		case html.TextToken:
			if inTitle {
				probe.Title = strings.TrimSpace(string(z.Text()))
				inTitle = false
			}

		case html.EndTagToken:
			tn, _ := z.TagName()
			if string(tn) == "title" {
				inTitle = false
			}
		}
	}
}
