// Package emailcheck validates email addresses in tiers: syntax, known-bad
// domains, MX presence, and an optional SMTP mailbox probe.
package emailcheck

import (
	"context"
	"errors"
	"net"
	"regexp"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xandervandijck/scraper-backend/internal/cache"
)

// Result is the outcome of a validation. Validate never returns an error;
// internal failures map to a Reason with Valid=false.
type Result struct {
	Valid  bool   `json:"valid"`
	Score  int    `json:"score"`
	Reason string `json:"reason"`
}

// Reasons reported by Validate, ordered roughly by increasing quality.
const (
	ReasonInvalidFormat    = "invalid_format"
	ReasonDisposableDomain = "disposable_domain"
	ReasonServiceDomain    = "service_domain"
	ReasonNoMXRecords      = "no_mx_records"
	ReasonDNSLookupFailed  = "dns_lookup_failed"
	ReasonGenericAddress   = "generic_address"
	ReasonMXVerified       = "mx_verified"
	ReasonSMTPVerified     = "smtp_verified"
	ReasonSMTPRejected     = "smtp_rejected"
	ReasonSMTPInconclusive = "smtp_inconclusive"
)

var (
	emailRe   = regexp.MustCompile(`^[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}$`)
	genericRe = regexp.MustCompile(`^(info|contact|admin|support|hello|sales|noreply|no-reply|mail|office|service|help|billing|accounts?)$`)

	servicePatterns = []string{
		"sentry", "amazonaws", "cloudflare", "cloudfront", "googleapis",
		"gstatic", "doubleclick", "hotjar", "mailchimp", "sendgrid",
		"wixpress", "godaddy", "jsdelivr", "akamai",
	}

	disposableDomains = map[string]struct{}{
		"mailinator.com":     {},
		"guerrillamail.com":  {},
		"10minutemail.com":   {},
		"tempmail.com":       {},
		"temp-mail.org":      {},
		"throwawaymail.com":  {},
		"yopmail.com":        {},
		"getnada.com":        {},
		"maildrop.cc":        {},
		"sharklasers.com":    {},
		"trashmail.com":      {},
		"dispostable.com":    {},
		"fakeinbox.com":      {},
		"mintemail.com":      {},
		"mytemp.email":       {},
		"spamgourmet.com":    {},
		"mailnesia.com":      {},
		"tempr.email":        {},
		"discard.email":      {},
		"emailondeck.com":    {},
		"mohmal.com":         {},
		"burnermail.io":      {},
		"inboxkitten.com":    {},
		"spambox.me":         {},
		"mail-temporaire.fr": {},
	}
)

// MXLookup resolves MX records for a domain. Swapped out in tests.
type MXLookup func(ctx context.Context, domain string) ([]*net.MX, error)

// SMTPProbe performs the RCPT handshake against an MX host and returns the
// probe outcome. Swapped out in tests.
type SMTPProbe func(ctx context.Context, mxHost, email string) ProbeOutcome

// ProbeOutcome classifies the SMTP probe result.
type ProbeOutcome int

// SMTP probe outcomes.
const (
	ProbeExists ProbeOutcome = iota
	ProbeRejected
	ProbeInconclusive
)

// Config controls validator timeouts and the probe identity.
type Config struct {
	DNSTimeout  time.Duration
	SMTPTimeout time.Duration
	HelloDomain string
	ProbeSender string
}

// Validator runs the staged checks. Zero value is not usable; call New.
type Validator struct {
	cfg     Config
	lookup  MXLookup
	probe   SMTPProbe
	mxCache *cache.TTLMap
	logger  *zap.Logger
}

// New builds a Validator with production DNS and SMTP implementations.
func New(cfg Config, logger *zap.Logger) *Validator {
	if cfg.DNSTimeout <= 0 {
		cfg.DNSTimeout = 5 * time.Second
	}
	if cfg.SMTPTimeout <= 0 {
		cfg.SMTPTimeout = 5 * time.Second
	}
	if cfg.HelloDomain == "" {
		cfg.HelloDomain = "leadengine.local"
	}
	if cfg.ProbeSender == "" {
		cfg.ProbeSender = "check@leadengine.local"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	v := &Validator{cfg: cfg, logger: logger}
	v.lookup = func(ctx context.Context, domain string) ([]*net.MX, error) {
		return net.DefaultResolver.LookupMX(ctx, domain)
	}
	v.probe = v.smtpProbe
	return v
}

// WithLookup overrides the MX resolver, for tests.
func (v *Validator) WithLookup(lookup MXLookup) *Validator {
	v.lookup = lookup
	return v
}

// WithProbe overrides the SMTP probe, for tests.
func (v *Validator) WithProbe(probe SMTPProbe) *Validator {
	v.probe = probe
	return v
}

// WithMXCache enables per-domain caching of MX lookups, so validating many
// addresses on the same domain costs one DNS round trip.
func (v *Validator) WithMXCache(store *cache.TTLMap) *Validator {
	v.mxCache = store
	return v
}

// Validate runs the tiers in order and short-circuits on the first failure.
// With deep=false the check stops after MX resolution.
func (v *Validator) Validate(ctx context.Context, email string, deep bool) Result {
	email = strings.TrimSpace(strings.ToLower(email))
	if !emailRe.MatchString(email) {
		return Result{Valid: false, Score: 0, Reason: ReasonInvalidFormat}
	}

	at := strings.LastIndexByte(email, '@')
	local, domain := email[:at], email[at+1:]

	if _, ok := disposableDomains[domain]; ok {
		return Result{Valid: false, Score: 0, Reason: ReasonDisposableDomain}
	}
	for _, pattern := range servicePatterns {
		if strings.Contains(domain, pattern) {
			return Result{Valid: false, Score: 0, Reason: ReasonServiceDomain}
		}
	}

	generic := genericRe.MatchString(local)

	records, err := v.lookupMX(ctx, domain)
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
			return Result{Valid: false, Score: 10, Reason: ReasonNoMXRecords}
		}
		return Result{Valid: false, Score: 20, Reason: ReasonDNSLookupFailed}
	}
	if len(records) == 0 {
		return Result{Valid: false, Score: 10, Reason: ReasonNoMXRecords}
	}

	baseScore := 85
	baseReason := ReasonMXVerified
	if generic {
		baseScore = 70
		baseReason = ReasonGenericAddress
	}
	if !deep {
		return Result{Valid: true, Score: baseScore, Reason: baseReason}
	}

	sorted := append([]*net.MX(nil), records...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Pref < sorted[j].Pref })
	mxHost := strings.TrimSuffix(sorted[0].Host, ".")

	probeCtx, cancelProbe := context.WithTimeout(ctx, v.cfg.SMTPTimeout)
	defer cancelProbe()
	switch v.probe(probeCtx, mxHost, email) {
	case ProbeExists:
		score := 95
		if generic {
			score = 75
		}
		return Result{Valid: true, Score: score, Reason: ReasonSMTPVerified}
	case ProbeRejected:
		return Result{Valid: false, Score: 15, Reason: ReasonSMTPRejected}
	default:
		return Result{Valid: true, Score: baseScore, Reason: ReasonSMTPInconclusive}
	}
}

// lookupMX resolves MX records within the DNS timeout, caching successful
// resolutions (including empty ones) per domain.
func (v *Validator) lookupMX(ctx context.Context, domain string) ([]*net.MX, error) {
	cacheKey := "mx:" + domain
	if v.mxCache != nil {
		if cached, ok := v.mxCache.Get(cacheKey); ok {
			if records, ok := cached.([]*net.MX); ok {
				return records, nil
			}
		}
	}
	dnsCtx, cancel := context.WithTimeout(ctx, v.cfg.DNSTimeout)
	defer cancel()
	records, err := v.lookup(dnsCtx, domain)
	if err != nil {
		return nil, err
	}
	if v.mxCache != nil {
		v.mxCache.Set(cacheKey, records)
	}
	return records, nil
}
