package leads

import (
	"net/url"
	"strings"
)

// validTLDs are the market TLDs accepted by the search filter.
var validTLDs = []string{".nl", ".be", ".de", ".com", ".eu", ".net", ".org", ".biz", ".info"}

// NormalizeDomain reduces a URL or host to its comparable form: lower-case
// host with any leading "www." stripped. Idempotent.
func NormalizeDomain(raw string) string {
	host := strings.TrimSpace(strings.ToLower(raw))
	if host == "" {
		return ""
	}
	if strings.Contains(host, "://") {
		if u, err := url.Parse(host); err == nil && u.Host != "" {
			host = u.Host
		}
	}
	if i := strings.IndexAny(host, "/?#"); i >= 0 {
		host = host[:i]
	}
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}
	host = strings.TrimPrefix(host, "www.")
	return host
}

// HasValidTLD reports whether the domain ends in one of the accepted TLDs.
func HasValidTLD(domain string) bool {
	domain = strings.ToLower(domain)
	for _, tld := range validTLDs {
		if strings.HasSuffix(domain, tld) {
			return true
		}
	}
	return false
}

// IsNoiseDomain reports whether the domain is a well-known social,
// marketplace, job-board, CDN, or dev-platform host. Matching is exact or
// suffix after a dot, so subdomains of noise hosts are noise too.
func IsNoiseDomain(domain string) bool {
	domain = NormalizeDomain(domain)
	if domain == "" {
		return false
	}
	if _, ok := noiseDomains[domain]; ok {
		return true
	}
	for noise := range noiseDomains {
		if strings.HasSuffix(domain, "."+noise) {
			return true
		}
	}
	return false
}
