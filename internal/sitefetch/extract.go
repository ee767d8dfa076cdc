package sitefetch

import (
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/xandervandijck/scraper-backend/internal/leads"
)

const (
	maxEmails         = 5
	maxDescriptionLen = 300
	maxTitleLen       = 80
	minAddressLen     = 10
	maxAddressLen     = 200
	maxEmailLocalLen  = 40
)

var (
	emailRe = regexp.MustCompile(`[\w.+-]+@[\w.-]+\.[a-zA-Z]{2,}`)

	// Matches file-like strings the email regex picks up from asset paths.
	assetExtRe = regexp.MustCompile(`(?i)\.(png|jpe?g|gif|svg|webp|ico|css|js|woff2?)$`)

	serviceEmailHosts = []string{
		"sentry", "amazonaws", "cloudflare", "cloudfront", "googleapis",
		"gstatic", "example.com", "domain.com", "email.com", "yourdomain",
		"wixpress", "sendgrid",
	}

	preferredLocals = map[string]int{
		"info": 0, "contact": 1, "sales": 2, "office": 3, "admin": 4,
	}

	phoneRes = []*regexp.Regexp{
		// NL: +31 6 12345678, +31 (0)20 123 4567, 020-1234567
		regexp.MustCompile(`(?:\+31|0031)[\s.-]?\(?0?\)?[\s.-]?\d{1,3}(?:[\s.-]?\d{2,4}){2,4}`),
		// BE: +32 3 123 45 67
		regexp.MustCompile(`(?:\+32|0032)[\s.-]?\(?0?\)?[\s.-]?\d{1,3}(?:[\s.-]?\d{2,4}){2,4}`),
		// DE: +49 30 12345678
		regexp.MustCompile(`(?:\+49|0049)[\s.-]?\(?0?\)?[\s.-]?\d{2,5}(?:[\s.-]?\d{2,8}){1,3}`),
		// Domestic NL/BE style.
		regexp.MustCompile(`\b0\d{1,3}[\s.-]?\d{6,8}\b`),
		// Generic international.
		regexp.MustCompile(`\+\d{1,3}[\s.-]?\d{4,14}`),
	}

	titleSplitRe = regexp.MustCompile(`\s+[-–—|]\s+`)

	addressSelectors = []string{
		`[itemtype*="PostalAddress"]`,
		`address`,
		`.address`,
		`.contact-info`,
		`[class*="adres"]`,
	}
)

// extractEmails pulls addresses from the accumulated page content, filters
// obvious junk, and ranks them: own-domain first (role mailboxes info,
// contact, sales, office, admin ahead of the rest), external addresses last.
// The first after ranking is the primary.
func extractEmails(content, domain string) (string, []string) {
	matches := emailRe.FindAllString(content, -1)
	seen := make(map[string]struct{})
	var candidates []string
	for _, raw := range matches {
		email := strings.ToLower(strings.Trim(raw, "."))
		if !validEmailCandidate(email) {
			continue
		}
		if _, dup := seen[email]; dup {
			continue
		}
		seen[email] = struct{}{}
		candidates = append(candidates, email)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return emailRank(candidates[i], domain) < emailRank(candidates[j], domain)
	})

	if len(candidates) > maxEmails {
		candidates = candidates[:maxEmails]
	}
	if len(candidates) == 0 {
		return "", nil
	}
	return candidates[0], candidates
}

func validEmailCandidate(email string) bool {
	at := strings.LastIndexByte(email, '@')
	if at <= 0 || at == len(email)-1 {
		return false
	}
	local, host := email[:at], email[at+1:]
	if len(local) > maxEmailLocalLen {
		return false
	}
	if strings.Contains(email, "..") {
		return false
	}
	if assetExtRe.MatchString(email) {
		return false
	}
	for _, service := range serviceEmailHosts {
		if strings.Contains(host, service) {
			return false
		}
	}
	return true
}

// emailRank orders candidates: own-domain role mailboxes, own-domain
// everything else, then external addresses in discovery order.
func emailRank(email, domain string) int {
	at := strings.LastIndexByte(email, '@')
	local, host := email[:at], email[at+1:]
	if leads.NormalizeDomain(host) != domain {
		return 200
	}
	if pos, ok := preferredLocals[local]; ok {
		return pos
	}
	return 100
}

// extractPhone tries market-specific patterns before the generic
// international one; first match wins.
func extractPhone(text string) string {
	for _, re := range phoneRes {
		if match := re.FindString(text); match != "" {
			return strings.TrimSpace(match)
		}
	}
	return ""
}

// extractCompanyName resolves the company name from og:site_name, the first
// title segment, the first h1, or finally the bare domain.
func extractCompanyName(doc *goquery.Document, domain string) string {
	if name, ok := doc.Find(`meta[property="og:site_name"]`).Attr("content"); ok {
		if name = strings.TrimSpace(name); name != "" {
			return name
		}
	}
	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title != "" && len(title) < maxTitleLen {
		if first := strings.TrimSpace(titleSplitRe.Split(title, 2)[0]); first != "" {
			return first
		}
	}
	h1 := strings.TrimSpace(doc.Find("h1").First().Text())
	if h1 != "" && len(h1) <= maxTitleLen {
		return h1
	}
	return domain
}

// extractDescription prefers the meta description over og:description,
// trimmed to 300 characters.
func extractDescription(doc *goquery.Document) string {
	desc, _ := doc.Find(`meta[name="description"]`).Attr("content")
	desc = strings.TrimSpace(desc)
	if desc == "" {
		desc, _ = doc.Find(`meta[property="og:description"]`).Attr("content")
		desc = strings.TrimSpace(desc)
	}
	if len(desc) > maxDescriptionLen {
		desc = desc[:maxDescriptionLen]
	}
	return desc
}

// extractAddress returns the first plausible address block across the
// fetched documents.
func extractAddress(docs []*goquery.Document) string {
	for _, doc := range docs {
		for _, selector := range addressSelectors {
			var found string
			doc.Find(selector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
				candidate := strings.Join(strings.Fields(sel.Text()), " ")
				if len(candidate) >= minAddressLen && len(candidate) <= maxAddressLen {
					found = candidate
					return false
				}
				return true
			})
			if found != "" {
				return found
			}
		}
	}
	return ""
}

// collapseText flattens the document's visible text with single spaces.
func collapseText(doc *goquery.Document) string {
	clone := doc.Selection.Clone()
	clone.Find("script, style, noscript").Remove()
	return strings.Join(strings.Fields(clone.Text()), " ")
}
