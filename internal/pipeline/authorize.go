package pipeline

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// DomainOf extracts the lowercase registrable hostname from a raw URL,
// dropping any port and a leading "www." so policy lookups are stable.
func DomainOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", fmt.Errorf("url %q has no host", rawURL)
	}
	return strings.TrimPrefix(host, "www."), nil
}

// Authorize checks a URL against the domain allow-list and returns the
// matched domain. It is the single authorization gate for outbound fetches;
// it performs no network I/O.
func Authorize(ctx context.Context, policies PolicyStore, rawURL string) (string, error) {
	domain, err := DomainOf(rawURL)
	if err != nil {
		return "", &AuthorizationError{Domain: rawURL}
	}
	policy, ok, err := policies.GetPolicy(ctx, domain)
	if err != nil {
		return "", fmt.Errorf("policy lookup for %s: %w", domain, err)
	}
	if !ok || !policy.Active {
		return "", &AuthorizationError{Domain: domain}
	}
	return domain, nil
}
