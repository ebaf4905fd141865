// Package urlscan checks whether a link is safe to follow: it traces the
// redirect chain, asks VirusTotal for a reputation and looks up the domain's
// registration date over RDAP.
package urlscan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
	"golang.org/x/sync/errgroup"

	"github.com/deusflow/technews/internal/metrics"
)

var ErrInvalidURL = errors.New("url must be an absolute http(s) URL")

const (
	MaxHops = 10

	traceTimeout      = 5 * time.Second
	reputationTimeout = 5 * time.Second
	rdapTimeout       = 3 * time.Second
)

const (
	VerdictSafe       = "safe"
	VerdictSuspicious = "suspicious"
	VerdictDangerous  = "dangerous"
)

type Hop struct {
	URL    string `json:"url"`
	Status int    `json:"status"`
}

// Reputation holds engine counts from the last analysis. Simulated is set
// when no real lookup was made.
type Reputation struct {
	Malicious  int  `json:"malicious"`
	Suspicious int  `json:"suspicious"`
	Harmless   int  `json:"harmless"`
	Undetected int  `json:"undetected"`
	Simulated  bool `json:"simulated"`
}

type Report struct {
	URL           string     `json:"url"`
	FinalURL      string     `json:"finalUrl"`
	Domain        string     `json:"domain"`
	Redirects     []Hop      `json:"redirects"`
	RedirectCount int        `json:"redirectCount"`
	TooManyHops   bool       `json:"tooManyRedirects"`
	Unreachable   bool       `json:"unreachable"`
	InternalHop   bool       `json:"internalRedirect"`
	Reputation    Reputation `json:"reputation"`
	DomainAgeDays *int       `json:"domainAgeDays,omitempty"`
	IPHost        bool       `json:"ipHost"`
	Verdict       string     `json:"verdict"`
	Reasons       []string   `json:"reasons"`
	CheckedAt     time.Time  `json:"checkedAt"`
}

type Options struct {
	VirusTotalKey string
	VirusTotalURL string
	RDAPURL       string
	HTTPClient    *http.Client
	Metrics       *metrics.Metrics
	Logger        *slog.Logger
}

type Scanner struct {
	vtKey   string
	vtURL   string
	rdapURL string
	http    *http.Client
	tracer  *http.Client
	metrics *metrics.Metrics
	log     *slog.Logger
	now     func() time.Time

	// allowPrivate lets the tracer reach internal addresses; tests only.
	allowPrivate bool
}

func New(opts Options) *Scanner {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.Global
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	vtURL := opts.VirusTotalURL
	if vtURL == "" {
		vtURL = "https://www.virustotal.com/api/v3"
	}
	rdapURL := opts.RDAPURL
	if rdapURL == "" {
		rdapURL = "https://rdap.org"
	}
	s := &Scanner{
		vtKey:   opts.VirusTotalKey,
		vtURL:   strings.TrimRight(vtURL, "/"),
		rdapURL: strings.TrimRight(rdapURL, "/"),
		http:    hc,
		metrics: m,
		log:     log,
		now:     time.Now,
	}
	s.tracer = s.newTracerClient()
	return s
}

// ParseTarget accepts absolute http and https URLs only.
func ParseTarget(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, ErrInvalidURL
	}
	return u, nil
}

// Check runs the three lookups concurrently and rates the link. Lookup
// failures lower confidence but never fail the check. Internal targets are
// refused with ErrInvalidURL and never fetched.
func (s *Scanner) Check(ctx context.Context, raw string) (*Report, error) {
	target, err := ParseTarget(raw)
	if err != nil {
		return nil, err
	}

	report := &Report{
		URL:       target.String(),
		FinalURL:  target.String(),
		CheckedAt: s.now().UTC(),
	}

	host := target.Hostname()
	if blockedHost(host) && !s.allowPrivate {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURL, ErrBlockedAddress)
	}
	if net.ParseIP(host) != nil {
		report.IPHost = true
		report.Domain = host
	} else if domain, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
		report.Domain = domain
	} else {
		report.Domain = host
	}

	var g errgroup.Group
	g.Go(func() error {
		tr, err := s.TraceRedirects(ctx, target)
		switch {
		case errors.Is(err, ErrBlockedAddress):
			s.log.Warn("redirect chain reaches an internal address", "url", report.URL, "error", err)
			report.InternalHop = true
		case err != nil:
			s.log.Debug("redirect trace failed", "url", report.URL, "error", err)
			report.Unreachable = true
		}
		report.Redirects = tr.Hops
		report.RedirectCount = tr.Redirects()
		report.TooManyHops = tr.Capped
		if tr.Final != "" {
			report.FinalURL = tr.Final
		}
		return nil
	})
	g.Go(func() error {
		report.Reputation = s.Reputation(ctx, report.URL)
		return nil
	})
	if !report.IPHost {
		g.Go(func() error {
			created, err := s.RegistrationDate(ctx, report.Domain)
			if err != nil {
				s.log.Debug("RDAP lookup failed", "domain", report.Domain, "error", err)
				return nil
			}
			days := int(s.now().Sub(created).Hours() / 24)
			report.DomainAgeDays = &days
			return nil
		})
	}
	_ = g.Wait()

	report.Verdict, report.Reasons = Evaluate(report)
	s.metrics.RecordURLScan(report.Reputation.Simulated)
	return report, nil
}

// Evaluate scores a report. Three or more malicious detections are always
// dangerous.
func Evaluate(r *Report) (string, []string) {
	reasons := []string{}
	score := 0

	rep := r.Reputation
	if rep.Malicious >= 3 {
		return VerdictDangerous, append(reasons, fmt.Sprintf("flagged as malicious by %d engines", rep.Malicious))
	}
	if rep.Malicious > 0 {
		score += 3
		reasons = append(reasons, fmt.Sprintf("flagged as malicious by %d engines", rep.Malicious))
	}
	if rep.Suspicious > 0 {
		score++
		reasons = append(reasons, fmt.Sprintf("flagged as suspicious by %d engines", rep.Suspicious))
	}

	if r.DomainAgeDays != nil {
		switch age := *r.DomainAgeDays; {
		case age < 30:
			score += 2
			reasons = append(reasons, fmt.Sprintf("domain registered %d days ago", age))
		case age < 180:
			score++
			reasons = append(reasons, fmt.Sprintf("domain registered %d days ago", age))
		}
	}

	if r.IPHost {
		score += 2
		reasons = append(reasons, "link points to a bare IP address")
	}
	if r.TooManyHops {
		score += 2
		reasons = append(reasons, fmt.Sprintf("more than %d redirects", MaxHops))
	} else if r.RedirectCount > 3 {
		score++
		reasons = append(reasons, fmt.Sprintf("%d redirects", r.RedirectCount))
	}
	if r.InternalHop {
		score += 2
		reasons = append(reasons, "redirects to an internal network address")
	}
	if r.Unreachable {
		score++
		reasons = append(reasons, "site did not respond")
	}

	switch {
	case score >= 4:
		return VerdictDangerous, reasons
	case score >= 2:
		return VerdictSuspicious, reasons
	default:
		return VerdictSafe, reasons
	}
}
