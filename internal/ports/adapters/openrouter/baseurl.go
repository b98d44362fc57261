package openrouter

import (
	"fmt"
	"net/url"
	"strings"
)

const defaultBaseURL = "https://openrouter.ai"

// Hosts the completer may talk to when OPENROUTER_ALLOWED_HOSTS is unset.
var defaultAllowedHosts = []string{"openrouter.ai", "api.openrouter.ai"}

func normalizeBaseURL(baseURL string) string {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return defaultBaseURL
	}
	return strings.TrimRight(baseURL, "/")
}

// ValidateBaseURL rejects base URLs that could leak the API key somewhere
// unexpected: only https, only allow-listed hosts, no userinfo, no query or
// fragment. An empty allow list falls back to the official hosts.
func ValidateBaseURL(baseURL string, allowedHosts []string) error {
	baseURL = normalizeBaseURL(baseURL)

	u, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("invalid OPENROUTER_BASE_URL: %w", err)
	}

	reject := func(reason string) error {
		return fmt.Errorf("invalid OPENROUTER_BASE_URL %q: %s", baseURL, reason)
	}
	switch {
	case !u.IsAbs() || u.Host == "":
		return reject("absolute URL with host is required")
	case u.User != nil:
		return reject("userinfo is not allowed")
	case u.RawQuery != "" || u.Fragment != "":
		return reject("query and fragment are not allowed")
	case !strings.EqualFold(u.Scheme, "https"):
		return reject("https is required")
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return reject("host is required")
	}
	for _, allowed := range hostAllowList(allowedHosts) {
		if host == allowed {
			return nil
		}
	}
	return fmt.Errorf("invalid OPENROUTER_BASE_URL %q: host %q is not in OPENROUTER_ALLOWED_HOSTS", baseURL, host)
}

// hostAllowList cleans the configured entries down to bare lowercase host
// names. Entries pasted with a scheme or port still match.
func hostAllowList(entries []string) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		h := strings.ToLower(strings.TrimSpace(e))
		h = strings.TrimPrefix(h, "https://")
		h = strings.TrimPrefix(h, "http://")
		h = strings.Trim(h, "/")
		if i := strings.IndexByte(h, ':'); i >= 0 {
			h = h[:i]
		}
		if h != "" {
			out = append(out, h)
		}
	}
	if len(out) == 0 {
		return defaultAllowedHosts
	}
	return out
}
