// Package analyzer hosts the use-case registry and the concrete analyzers
// that own query generation and lead scoring.
package analyzer

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/xandervandijck/scraper-backend/internal/leads"
)

// ErrUnknownUseCase is returned when no analyzer is registered for a key.
var ErrUnknownUseCase = errors.New("unknown use case")

// Registry maps use-case keys to analyzers.
type Registry struct {
	mu        sync.RWMutex
	analyzers map[string]leads.Analyzer
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{analyzers: make(map[string]leads.Analyzer)}
}

// Register installs an analyzer under key, replacing any previous entry.
func (r *Registry) Register(key string, a leads.Analyzer) {
	r.mu.Lock()
	r.analyzers[key] = a
	r.mu.Unlock()
}

// Get resolves a use-case key.
func (r *Registry) Get(key string) (leads.Analyzer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.analyzers[key]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownUseCase, key)
	}
	return a, nil
}

// Keys lists the registered use cases, sorted.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.analyzers))
	for k := range r.analyzers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Country is one search market with its query suffix.
type Country struct {
	Key    string
	Label  string
	Suffix string
}

// Countries supported by the search adapters, in emission order.
var Countries = []Country{
	{Key: "nl", Label: "Nederland", Suffix: "Nederland site:.nl"},
	{Key: "be", Label: "België", Suffix: "België site:.be"},
	{Key: "de", Label: "Duitsland", Suffix: "Deutschland site:.de"},
}

func selectedCountries(keys []string) []Country {
	if len(keys) == 0 {
		return Countries
	}
	want := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		want[strings.ToLower(k)] = struct{}{}
	}
	var out []Country
	for _, c := range Countries {
		if _, ok := want[c.Key]; ok {
			out = append(out, c)
		}
	}
	return out
}

// buildQueries expands sectors x countries x templates into QuerySpecs.
func buildQueries(sectors []Sector, cfg leads.JobConfig) []leads.QuerySpec {
	wantSector := make(map[string]struct{}, len(cfg.SectorKeys))
	for _, k := range cfg.SectorKeys {
		wantSector[strings.ToLower(k)] = struct{}{}
	}
	countries := selectedCountries(cfg.CountryKeys)

	var specs []leads.QuerySpec
	for _, sector := range sectors {
		if len(wantSector) > 0 {
			if _, ok := wantSector[strings.ToLower(sector.Key)]; !ok {
				continue
			}
		}
		for _, country := range countries {
			for _, template := range sector.Queries {
				specs = append(specs, leads.QuerySpec{
					Query:        template + " " + country.Suffix,
					SectorKey:    sector.Key,
					SectorLabel:  sector.Label,
					CountryKey:   country.Key,
					CountryLabel: country.Label,
				})
			}
		}
	}
	return specs
}

// countUniqueHits counts how many keywords occur in text (case-insensitive
// substring) and returns up to five matched signals.
func countUniqueHits(lowerText string, keywords []string) (int, []string) {
	hits := 0
	var signals []string
	for _, kw := range keywords {
		if strings.Contains(lowerText, kw) {
			hits++
			if len(signals) < 5 {
				signals = append(signals, kw)
			}
		}
	}
	return hits, signals
}

// tierScore maps a unique-hit count onto a dimension weight: full weight at
// three hits, 70% at two, 40% at one.
func tierScore(hits, weight int) int {
	switch {
	case hits >= 3:
		return weight
	case hits == 2:
		return int(float64(weight)*0.7 + 0.5)
	case hits == 1:
		return int(float64(weight)*0.4 + 0.5)
	default:
		return 0
	}
}

type dimension struct {
	score   int
	max     int
	hits    int
	signals []string
}

func (d dimension) asMap() map[string]any {
	m := map[string]any{
		"score": d.score,
		"max":   d.max,
		"hits":  d.hits,
	}
	if len(d.signals) > 0 {
		m["signals"] = d.signals
	}
	return m
}
