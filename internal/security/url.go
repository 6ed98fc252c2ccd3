// Package security validates outbound fetch targets.
//
// The web enricher fetches URLs that come from search results, which are
// attacker-influenced input. The URL validator blocks requests that would
// reach private networks, loopback, or cloud metadata endpoints.
package security

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
)

// ErrBlockedURL is wrapped by every rejection so callers can treat all
// blocked targets uniformly.
var ErrBlockedURL = errors.New("blocked URL")

// URL validates fetch targets. Blocked: non-HTTP schemes, private and
// loopback IP ranges, link-local addresses (including the cloud metadata
// endpoint), and a denylist of internal hostnames.
type URL struct {
	blockedHosts map[string]struct{}
}

// NewURL creates a validator with the default denylist.
func NewURL() *URL {
	return &URL{
		blockedHosts: map[string]struct{}{
			"localhost":                {},
			"metadata.google.internal": {},
			"metadata.gce.internal":    {},
			"metadata.internal":        {},
		},
	}
}

// Validate reports whether rawURL is safe to fetch. Hostname targets pass
// static checks only; IP literals are checked against blocked ranges.
func (v *URL) Validate(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: unparseable: %v", ErrBlockedURL, err)
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return fmt.Errorf("%w: scheme %q not allowed", ErrBlockedURL, u.Scheme)
	}

	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("%w: empty hostname", ErrBlockedURL)
	}

	if _, blocked := v.blockedHosts[strings.ToLower(host)]; blocked {
		return fmt.Errorf("%w: host %q", ErrBlockedURL, host)
	}
	if ip := net.ParseIP(host); ip != nil {
		return v.checkIP(ip)
	}
	return nil
}

// ValidateRedirect is a CheckRedirect hook: it re-validates every redirect
// target so a public page cannot bounce the fetcher into a private network,
// and caps the chain length.
func (v *URL) ValidateRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= 10 {
		return fmt.Errorf("%w: more than 10 redirects", ErrBlockedURL)
	}
	return v.Validate(req.URL.String())
}

func (v *URL) checkIP(ip net.IP) error {
	// ::ffff:127.0.0.1 and friends normalize to their IPv4 form.
	if v4 := ip.To4(); v4 != nil {
		ip = v4
	}

	switch {
	case ip.IsLoopback():
		return fmt.Errorf("%w: loopback address %s", ErrBlockedURL, ip)
	case ip.IsPrivate():
		return fmt.Errorf("%w: private address %s", ErrBlockedURL, ip)
	case ip.IsLinkLocalUnicast(), ip.IsLinkLocalMulticast():
		// Covers 169.254.169.254, the cloud metadata endpoint.
		return fmt.Errorf("%w: link-local address %s", ErrBlockedURL, ip)
	case ip.IsUnspecified():
		return fmt.Errorf("%w: unspecified address %s", ErrBlockedURL, ip)
	}
	return nil
}
