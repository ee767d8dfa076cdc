package analyzer

import (
	"bytes"
	"context"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/xandervandijck/scraper-backend/internal/leads"
)

// Recruitment dimension weights.
const (
	recVacancyPresenceWeight = 35
	recVacancyCountWeight    = 25
	recGrowthWeight          = 20
	recHRContactWeight       = 10
	recATSWeight             = 10

	recVacancyCountCap = 50
	recMaxVacancyPages = 2
	recVacancyTimeout  = 10 * time.Second
	recMaxHTMLBytes    = 20 * 1024
)

var (
	recVacancyLinkRe = regexp.MustCompile(`(?i)/(vacatures?|jobs?|careers?|werken-bij|werkenbij|karriere|stellenangebote|join-?us|solliciteren)([/-]|$)`)

	recVacancyIndicators = []*regexp.Regexp{
		regexp.MustCompile(`vacature`),
		regexp.MustCompile(`functie`),
		regexp.MustCompile(`job opening`),
		regexp.MustCompile(`we (zijn op zoek|zoeken)`),
		regexp.MustCompile(`open position`),
		regexp.MustCompile(`stellenangebot`),
	}

	recGrowthKeywords = []string{
		"groei", "expansie", "uitbreiding", "nieuwe vestiging", "scale-up",
		"snelgroeiend", "investering", "overname", "internationale ambitie",
		"expansion", "fast-growing",
	}

	recHRLocalRe = regexp.MustCompile(`^(hr|jobs?|careers?|recruitment|vacatures?|werk|talent|people)\b`)

	recHRContextTerms = []string{
		"recruitment", "recruiter", "personeelszaken", "talent acquisition",
		"hr-afdeling", "hr afdeling",
	}

	recEmailRe = regexp.MustCompile(`[\w.+-]+@[\w.-]+\.[a-zA-Z]{2,}`)

	// Hosted applicant-tracking systems whose embeds betray active hiring.
	atsSignatures = []string{
		"teamtailor.com", "recruitee.com", "homerun.co", "workable.com",
		"greenhouse.io", "lever.co", "bamboohr.com", "personio.de",
		"smartrecruiters.com", "jobvite.com", "icims.com", "ashbyhq.com",
	}
)

// RecruitmentAnalyzer scores companies on hiring appeal: open vacancies,
// growth signals, reachable HR contacts, and ATS usage.
type RecruitmentAnalyzer struct {
	sectors []Sector
}

// NewRecruitment builds a RecruitmentAnalyzer with its built-in taxonomy.
func NewRecruitment() *RecruitmentAnalyzer {
	return &RecruitmentAnalyzer{sectors: recruitmentSectors}
}

// GenerateQueries expands the recruitment taxonomy across countries.
func (a *RecruitmentAnalyzer) GenerateQueries(cfg leads.JobConfig) []leads.QuerySpec {
	return buildQueries(a.sectors, cfg)
}

// FetchExtra re-fetches the homepage HTML, records any ATS signature, and
// crawls up to two same-domain vacancy pages. Captured HTML is capped per
// page so pathological sites cannot balloon the analysis payload.
func (a *RecruitmentAnalyzer) FetchExtra(ctx context.Context, baseURL string, fetch leads.FetchFunc) (leads.ExtraResult, error) {
	home, err := fetch(ctx, baseURL, recVacancyTimeout)
	if err != nil {
		return leads.ExtraResult{Data: map[string]any{"vacancy_page_found": false}}, nil
	}
	home = capBytes(home, recMaxHTMLBytes)

	ats := detectATS(home)
	vacancyURLs := findVacancyLinks(baseURL, home)

	var textParts []string
	var htmlBuf bytes.Buffer
	htmlBuf.Write(home)

	found := false
	for _, link := range vacancyURLs {
		body, err := fetch(ctx, link, recVacancyTimeout)
		if err != nil {
			continue
		}
		found = true
		body = capBytes(body, recMaxHTMLBytes)
		htmlBuf.Write(body)
		if ats == "" {
			ats = detectATS(body)
		}
		if text := htmlToText(body); text != "" {
			textParts = append(textParts, text)
		}
	}

	return leads.ExtraResult{
		Text: strings.Join(textParts, " "),
		Data: map[string]any{
			"vacancy_page_found": found,
			"vacancy_urls":       vacancyURLs,
			"ats":                ats,
			"html":               htmlBuf.String(),
		},
	}, nil
}

// Analyze scores five weighted dimensions from the accumulated text and the
// FetchExtra payload.
func (a *RecruitmentAnalyzer) Analyze(in leads.AnalyzeInput) leads.AnalyzeResult {
	text := strings.ToLower(in.Text)
	dims := map[string]dimension{}

	// Vacancy presence: binary on the extra crawl outcome.
	presence := dimension{max: recVacancyPresenceWeight}
	if found, _ := in.Extra["vacancy_page_found"].(bool); found {
		presence.score = recVacancyPresenceWeight
		presence.hits = 1
	}
	dims["vacancy_presence"] = presence

	// Vacancy count: tiered on total indicator occurrences.
	count := 0
	var countSignals []string
	for _, re := range recVacancyIndicators {
		matches := re.FindAllString(text, -1)
		if len(matches) > 0 && len(countSignals) < 5 {
			countSignals = append(countSignals, re.String())
		}
		count += len(matches)
	}
	if count > recVacancyCountCap {
		count = recVacancyCountCap
	}
	dims["vacancy_count"] = dimension{
		score:   vacancyCountTier(count),
		max:     recVacancyCountWeight,
		hits:    count,
		signals: countSignals,
	}

	// Growth signals: distinct keyword matches.
	growthHits, growthSignals := countUniqueHits(text, recGrowthKeywords)
	growth := dimension{max: recGrowthWeight, hits: growthHits, signals: growthSignals}
	switch {
	case growthHits >= 3:
		growth.score = 20
	case growthHits == 2:
		growth.score = 14
	case growthHits == 1:
		growth.score = 8
	}
	dims["growth"] = growth

	// HR contact: a role mailbox or an address in HR context.
	hr := dimension{max: recHRContactWeight}
	if hasHRContact(in.Emails, text) {
		hr.score = recHRContactWeight
		hr.hits = 1
	}
	dims["hr_contact"] = hr

	// ATS detected during the extra crawl.
	ats := dimension{max: recATSWeight}
	if name, _ := in.Extra["ats"].(string); name != "" {
		ats.score = recATSWeight
		ats.hits = 1
		ats.signals = []string{name}
	} else if html, _ := in.Extra["html"].(string); html != "" {
		if name := detectATS([]byte(html)); name != "" {
			ats.score = recATSWeight
			ats.hits = 1
			ats.signals = []string{name}
		}
	}
	dims["ats"] = ats

	total := 0
	breakdown := make(map[string]any, len(dims))
	for name, dim := range dims {
		total += dim.score
		breakdown[name] = dim.asMap()
	}
	if total > 100 {
		total = 100
	}
	return leads.AnalyzeResult{
		Score: total,
		Data: map[string]any{
			"score":     total,
			"breakdown": breakdown,
		},
	}
}

func vacancyCountTier(count int) int {
	switch {
	case count >= 10:
		return 25
	case count >= 5:
		return 18
	case count >= 2:
		return 10
	case count >= 1:
		return 5
	default:
		return 0
	}
}

func hasHRContact(emails []string, text string) bool {
	for _, email := range emails {
		at := strings.IndexByte(email, '@')
		if at <= 0 {
			continue
		}
		if recHRLocalRe.MatchString(strings.ToLower(email[:at])) {
			return true
		}
	}
	// Fall back to any email appearing near an HR term.
	for _, loc := range recEmailRe.FindAllStringIndex(text, -1) {
		start := loc[0] - 100
		if start < 0 {
			start = 0
		}
		end := loc[1] + 100
		if end > len(text) {
			end = len(text)
		}
		window := text[start:end]
		for _, term := range recHRContextTerms {
			if strings.Contains(window, term) {
				return true
			}
		}
	}
	return false
}

func detectATS(html []byte) string {
	lower := bytes.ToLower(html)
	for _, sig := range atsSignatures {
		if bytes.Contains(lower, []byte(sig)) {
			return sig
		}
	}
	return ""
}

func findVacancyLinks(baseURL string, html []byte) []string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil
	}
	baseDomain := leads.NormalizeDomain(base.Host)
	seen := make(map[string]struct{})
	var links []string
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return true
		}
		abs := base.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			return true
		}
		if leads.NormalizeDomain(abs.Host) != baseDomain {
			return true
		}
		if !recVacancyLinkRe.MatchString(abs.Path) {
			return true
		}
		key := abs.String()
		if _, dup := seen[key]; dup {
			return true
		}
		seen[key] = struct{}{}
		links = append(links, key)
		return len(links) < recMaxVacancyPages
	})
	return links
}

func htmlToText(html []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return ""
	}
	doc.Find("script, style, noscript").Remove()
	return strings.Join(strings.Fields(doc.Text()), " ")
}

func capBytes(b []byte, max int) []byte {
	if len(b) <= max {
		return b
	}
	return b[:max]
}

var recruitmentSectors = []Sector{
	{
		Key:   "techniek",
		Label: "Techniek & Engineering",
		Queries: []string{
			"technisch bedrijf vacatures",
			"engineeringbureau personeel",
		},
	},
	{
		Key:   "ict",
		Label: "ICT & Software",
		Queries: []string{
			"softwarebedrijf vacatures",
			"it-dienstverlener personeel gezocht",
		},
	},
	{
		Key:   "logistiek",
		Label: "Logistiek",
		Queries: []string{
			"logistiek bedrijf vacatures",
			"transportbedrijf chauffeurs gezocht",
		},
	},
	{
		Key:   "bouw",
		Label: "Bouw",
		Queries: []string{
			"bouwbedrijf vacatures",
			"installatiebedrijf monteurs gezocht",
		},
	},
	{
		Key:   "zorg",
		Label: "Zorg & Welzijn",
		Queries: []string{
			"zorginstelling vacatures",
			"thuiszorgorganisatie personeel",
		},
	},
}

var (
	_ leads.Analyzer = (*ERPAnalyzer)(nil)
	_ leads.Analyzer = (*RecruitmentAnalyzer)(nil)
)
