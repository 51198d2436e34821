package provider

import (
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
)

// HostPolicy is the per-category trusted-host allow-list. API endpoints
// and scrape targets are validated against separate lists so a
// misconfigured facility cannot point an API client at an arbitrary site
// (or vice versa).
type HostPolicy struct {
	APIHosts     []string
	WebsiteHosts []string
}

// ValidateAPI checks an API endpoint URL: parseable, https, host on the
// API allow-list. Returns ErrInvalidURL on any violation, before any
// network activity.
func (p HostPolicy) ValidateAPI(raw string) (*url.URL, error) {
	return validate(raw, p.APIHosts)
}

// ValidateWebsite checks a scrape-target URL against the website list.
func (p HostPolicy) ValidateWebsite(raw string) (*url.URL, error) {
	return validate(raw, p.WebsiteHosts)
}

func validate(raw string, allowed []string) (*url.URL, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, eris.Wrap(ErrInvalidURL, "empty url")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, eris.Wrapf(ErrInvalidURL, "parse %q: %v", raw, err)
	}
	if !strings.EqualFold(u.Scheme, "https") {
		return nil, eris.Wrapf(ErrInvalidURL, "scheme %q is not https", u.Scheme)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return nil, eris.Wrapf(ErrInvalidURL, "missing host in %q", raw)
	}
	for _, a := range allowed {
		a = strings.ToLower(strings.TrimSpace(a))
		if a == "" {
			continue
		}
		// A leading dot allows any subdomain of the entry.
		if strings.HasPrefix(a, ".") {
			if strings.HasSuffix(host, a) || host == strings.TrimPrefix(a, ".") {
				return u, nil
			}
			continue
		}
		if host == a {
			return u, nil
		}
	}
	return nil, eris.Wrapf(ErrInvalidURL, "host %q is not on the allow-list", host)
}
