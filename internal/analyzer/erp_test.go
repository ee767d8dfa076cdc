package analyzer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xandervandijck/scraper-backend/internal/leads"
)

func testERP(t *testing.T) *ERPAnalyzer {
	t.Helper()
	sectors, err := LoadSectors("", nil)
	require.NoError(t, err)
	t.Cleanup(sectors.Close)
	return NewERP(sectors)
}

func TestERPAnalyzeLogisticsWithTLDBonus(t *testing.T) {
	t.Parallel()

	a := testERP(t)
	res := a.Analyze(leads.AnalyzeInput{
		Text:   "warehouse inventory logistics",
		URL:    "https://x.nl",
		Domain: "x.nl",
	})

	require.Equal(t, 32, res.Score)
	require.Equal(t, 32, res.Data["score"])

	breakdown := res.Data["breakdown"].(map[string]any)
	logistics := breakdown["logistics"].(map[string]any)
	require.Equal(t, 30, logistics["score"])
	require.Equal(t, 3, logistics["hits"])
	b2b := breakdown["b2b"].(map[string]any)
	require.Equal(t, 2, b2b["score"], "local TLD bonus applies when B2B scored zero")
}

func TestERPAnalyzeNoBonusOutsideLocalTLDs(t *testing.T) {
	t.Parallel()

	a := testERP(t)
	res := a.Analyze(leads.AnalyzeInput{
		Text:   "warehouse inventory logistics",
		URL:    "https://x.com",
		Domain: "x.com",
	})
	require.Equal(t, 30, res.Score)
}

func TestERPAnalyzeNoBonusWhenB2BScored(t *testing.T) {
	t.Parallel()

	a := testERP(t)
	res := a.Analyze(leads.AnalyzeInput{
		Text:   "groothandel",
		URL:    "https://x.nl",
		Domain: "x.nl",
	})
	breakdown := res.Data["breakdown"].(map[string]any)
	b2b := breakdown["b2b"].(map[string]any)
	require.Equal(t, 8, b2b["score"], "one hit scores 40% of 20, not the bonus")
}

func TestERPHitTiers(t *testing.T) {
	t.Parallel()

	a := testERP(t)
	cases := []struct {
		text string
		want int
	}{
		{"", 0},
		{"warehouse", 12},                               // 40% of 30
		{"warehouse inventory", 21},                     // 70% of 30
		{"warehouse inventory logistics", 30},           // full weight
		{"warehouse inventory logistics voorraad", 30},  // capped at weight
	}
	for _, tc := range cases {
		res := a.Analyze(leads.AnalyzeInput{Text: tc.text, URL: "https://x.com", Domain: "x.com"})
		require.Equal(t, tc.want, res.Score, "text %q", tc.text)
	}
}

func TestERPAnalyzeDeterministic(t *testing.T) {
	t.Parallel()

	a := testERP(t)
	in := leads.AnalyzeInput{
		Text:   "groothandel software voorraad magazijn productie medewerkers cloud b2b",
		URL:    "https://acme.nl",
		Domain: "acme.nl",
	}
	first := a.Analyze(in)
	for i := 0; i < 5; i++ {
		require.Equal(t, first, a.Analyze(in))
	}
	require.LessOrEqual(t, first.Score, 100)
}

func TestERPGenerateQueries(t *testing.T) {
	t.Parallel()

	a := testERP(t)
	specs := a.GenerateQueries(leads.JobConfig{
		SectorKeys:  []string{"logistics"},
		CountryKeys: []string{"nl"},
	})
	require.Len(t, specs, 3, "one spec per base template")
	for _, spec := range specs {
		require.Equal(t, "logistics", spec.SectorKey)
		require.Equal(t, "nl", spec.CountryKey)
		require.Contains(t, spec.Query, "site:.nl")
		require.Contains(t, spec.Query, "Nederland")
	}
}

func TestERPGenerateQueriesAllSectorsAllCountries(t *testing.T) {
	t.Parallel()

	a := testERP(t)
	specs := a.GenerateQueries(leads.JobConfig{})
	// 5 sectors x 3 countries x 3 templates.
	require.Len(t, specs, 45)
}

func TestERPFetchExtraEmpty(t *testing.T) {
	t.Parallel()

	a := testERP(t)
	extra, err := a.FetchExtra(context.Background(), "https://acme.nl", nil)
	require.NoError(t, err)
	require.Empty(t, extra.Text)
	require.Empty(t, extra.Data)
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.Register("erp", testERP(t))
	reg.Register("recruitment", NewRecruitment())

	a, err := reg.Get("erp")
	require.NoError(t, err)
	require.NotNil(t, a)

	_, err = reg.Get("nope")
	require.ErrorIs(t, err, ErrUnknownUseCase)
	require.Equal(t, []string{"erp", "recruitment"}, reg.Keys())
}
