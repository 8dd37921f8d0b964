package security

import (
	"net/netip"
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

// OutboundURLOptions relaxes ValidateOutboundURL for self-hosted gateways.
type OutboundURLOptions struct {
	// AllowHTTP permits plain http. https is always allowed.
	AllowHTTP bool
	// AllowLocalNetworks permits loopback, private and link-local targets.
	AllowLocalNetworks bool
}

// ValidateOutboundURL checks a URL the API client is about to send the
// credential to. IP literals are checked without DNS lookups.
func ValidateOutboundURL(rawURL string, opts OutboundURLOptions) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.Wrap(err, "invalid URL")
	}

	switch parsed.Scheme {
	case "https":
	case "http":
		if !opts.AllowHTTP {
			return errors.New("http scheme is not allowed")
		}
	default:
		return errors.Errorf("unsupported URL scheme %q", parsed.Scheme)
	}

	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return errors.New("URL host is required")
	}
	if !opts.AllowLocalNetworks && isLocalHostname(host) {
		return errors.Errorf("local hostname %q is not allowed", host)
	}

	addr, err := netip.ParseAddr(host)
	if err != nil {
		return nil
	}
	if addr.Zone() != "" && !opts.AllowLocalNetworks {
		return errors.Errorf("zoned IP address %q is not allowed", host)
	}
	addr = addr.Unmap()
	if addr.IsUnspecified() || addr.IsMulticast() {
		return errors.Errorf("disallowed IP address %q", host)
	}
	if !opts.AllowLocalNetworks &&
		(addr.IsLoopback() || addr.IsPrivate() || addr.IsLinkLocalUnicast() || addr.IsLinkLocalMulticast()) {
		return errors.Errorf("local network IP %q is not allowed", host)
	}
	return nil
}

func isLocalHostname(host string) bool {
	return host == "localhost" || strings.HasSuffix(host, ".localhost") || strings.HasSuffix(host, ".local")
}
