package search

import (
	"net/url"
	"strings"

	"github.com/xandervandijck/scraper-backend/internal/leads"
)

// searchEngineHosts are the engine's own domains, never returned as results.
var searchEngineHosts = []string{"duckduckgo.com", "duck.com"}

// decodeRedirect unwraps DuckDuckGo's /l/?uddg= redirect links to the target
// URL. Non-redirect hrefs pass through unchanged.
func decodeRedirect(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	host := strings.ToLower(u.Host)
	if !isSearchEngineHost(host) && host != "" {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		if decoded, err := url.QueryUnescape(target); err == nil {
			return decoded
		}
		return target
	}
	return href
}

func isSearchEngineHost(host string) bool {
	host = strings.TrimPrefix(strings.ToLower(host), "www.")
	for _, engine := range searchEngineHosts {
		if host == engine || strings.HasSuffix(host, "."+engine) {
			return true
		}
	}
	return false
}

// normalizeResults decodes, filters, and dedupes raw result hrefs: only
// http(s), never the engine itself, no noise hosts, accepted TLDs only, one
// URL per domain, at most maxResults.
func normalizeResults(hrefs []string, maxResults int) []string {
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}
	seen := make(map[string]struct{})
	var out []string
	for _, href := range hrefs {
		target := decodeRedirect(strings.TrimSpace(href))
		u, err := url.Parse(target)
		if err != nil {
			continue
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			continue
		}
		if isSearchEngineHost(u.Host) {
			continue
		}
		domain := leads.NormalizeDomain(u.Host)
		if domain == "" || leads.IsNoiseDomain(domain) || !leads.HasValidTLD(domain) {
			continue
		}
		if _, dup := seen[domain]; dup {
			continue
		}
		seen[domain] = struct{}{}
		out = append(out, target)
		if len(out) >= maxResults {
			break
		}
	}
	return out
}
