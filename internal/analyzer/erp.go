package analyzer

import (
	"context"
	"strings"

	"github.com/xandervandijck/scraper-backend/internal/leads"
)

// ERP dimension weights.
const (
	erpLogisticsWeight      = 30
	erpOperationsWeight     = 25
	erpDigitalizationWeight = 25
	erpB2BWeight            = 20

	erpLocalTLDBonus = 2
)

var (
	erpLogisticsKeywords = []string{
		"warehouse", "inventory", "logistics", "logistiek", "voorraad",
		"magazijn", "distributie", "fulfilment", "supply chain",
		"expeditie", "transportplanning",
	}
	erpOperationsKeywords = []string{
		"productie", "fabriek", "machines", "assemblage", "medewerkers",
		"vestigingen", "productielijn", "manufacturing", "produktion",
		"werkplaats",
	}
	erpDigitalizationKeywords = []string{
		"software", "automatisering", "digitalisering", "cloud", "saas",
		"koppeling", "integratie", "webshop", "e-commerce", "digitaal",
	}
	erpB2BKeywords = []string{
		"b2b", "zakelijk", "groothandel", "wholesale", "leverancier",
		"industrie", "toeleverancier", "business-to-business", "offerte",
	}

	erpLocalTLDs = []string{".nl", ".be", ".de"}
)

// ERPAnalyzer scores companies on ERP readiness: logistics complexity,
// operational scale, digitalization maturity, and B2B orientation.
type ERPAnalyzer struct {
	sectors *SectorSource
}

// NewERP builds an ERPAnalyzer over a sector taxonomy source.
func NewERP(sectors *SectorSource) *ERPAnalyzer {
	return &ERPAnalyzer{sectors: sectors}
}

// GenerateQueries expands the configured sectors and countries into search
// queries, one per base template.
func (a *ERPAnalyzer) GenerateQueries(cfg leads.JobConfig) []leads.QuerySpec {
	return buildQueries(a.sectors.Sectors(), cfg)
}

// FetchExtra is a no-op: ERP scoring only needs the homepage and contact
// pages already fetched.
func (a *ERPAnalyzer) FetchExtra(_ context.Context, _ string, _ leads.FetchFunc) (leads.ExtraResult, error) {
	return leads.ExtraResult{}, nil
}

// Analyze scores the accumulated site text across four weighted dimensions.
// Sites on a local TLD with no B2B signal get a small bonus so that regional
// candidates are not dropped outright.
func (a *ERPAnalyzer) Analyze(in leads.AnalyzeInput) leads.AnalyzeResult {
	text := strings.ToLower(in.Text)

	dims := map[string]dimension{}
	total := 0
	for _, d := range []struct {
		name     string
		weight   int
		keywords []string
	}{
		{"logistics", erpLogisticsWeight, erpLogisticsKeywords},
		{"operations", erpOperationsWeight, erpOperationsKeywords},
		{"digitalization", erpDigitalizationWeight, erpDigitalizationKeywords},
		{"b2b", erpB2BWeight, erpB2BKeywords},
	} {
		hits, signals := countUniqueHits(text, d.keywords)
		dim := dimension{score: tierScore(hits, d.weight), max: d.weight, hits: hits, signals: signals}
		dims[d.name] = dim
		total += dim.score
	}

	if dims["b2b"].score == 0 && hasLocalTLD(in.URL, in.Domain) {
		b2b := dims["b2b"]
		b2b.score = erpLocalTLDBonus
		dims["b2b"] = b2b
		total += erpLocalTLDBonus
	}

	if total > 100 {
		total = 100
	}

	breakdown := make(map[string]any, len(dims))
	for name, dim := range dims {
		breakdown[name] = dim.asMap()
	}
	return leads.AnalyzeResult{
		Score: total,
		Data: map[string]any{
			"score":     total,
			"breakdown": breakdown,
		},
	}
}

func hasLocalTLD(rawURL, domain string) bool {
	host := leads.NormalizeDomain(rawURL)
	if host == "" {
		host = domain
	}
	for _, tld := range erpLocalTLDs {
		if strings.HasSuffix(host, tld) {
			return true
		}
	}
	return false
}
