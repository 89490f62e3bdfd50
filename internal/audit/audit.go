// Package audit runs the advanced on-page SEO checks for a single URL.
//
// The page is fetched once. The checks then run concurrently over the shared,
// read-only page and are joined before the report is returned. A failing check
// records its error and leaves the others untouched.
package audit

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"

	"github.com/TobiSchelling/BlogPulse/internal/pagespeed"
)

const (
	userAgent       = "BlogPulse/1.0 (seo audit)"
	maxBodyBytes    = 5 << 20
	defaultTimeout  = 15 * time.Second
	maxRedirects    = 10
	minContentWords = 300
)

// CheckResult is the outcome of one check. Score is 0..100.
type CheckResult struct {
	Name     string   `json:"name"`
	Score    int      `json:"score"`
	Passed   bool     `json:"passed"`
	Findings []string `json:"findings,omitempty"`
	Err      string   `json:"error,omitempty"`
}

// Report is the joined result of all checks.
type Report struct {
	URL       string        `json:"url"`
	Status    int           `json:"status"`
	FetchedAt time.Time     `json:"fetched_at"`
	Score     int           `json:"score"`
	Checks    []CheckResult `json:"checks"`
}

// Failed returns the names of checks that did not pass.
func (r *Report) Failed() []string {
	var out []string
	for _, c := range r.Checks {
		if !c.Passed {
			out = append(out, c.Name)
		}
	}
	return out
}

// MetricsRunner measures Core Web Vitals. *pagespeed.Client implements it.
type MetricsRunner interface {
	Run(ctx context.Context, url, strategy string) (*pagespeed.Metrics, error)
}

// Auditor fetches pages and runs the checks.
type Auditor struct {
	client   *http.Client
	metrics  MetricsRunner
	strategy string
	now      func() time.Time
}

// NewAuditor creates an Auditor. metrics may be nil, in which case the Core
// Web Vitals check is skipped.
func NewAuditor(timeout time.Duration, metrics MetricsRunner) *Auditor {
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &Auditor{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		metrics:  metrics,
		strategy: pagespeed.StrategyMobile,
		now:      time.Now,
	}
}

// WithStrategy sets the PageSpeed strategy (mobile or desktop).
func (a *Auditor) WithStrategy(strategy string) *Auditor {
	if strategy != "" {
		a.strategy = strategy
	}
	return a
}

// page is the shared input of every check. Checks must not modify it.
type page struct {
	url  *url.URL
	body []byte
	doc  *goquery.Document
}

type check struct {
	name string
	run  func(ctx context.Context, p *page) CheckResult
}

func (a *Auditor) checks() []check {
	cs := []check{
		{"images", func(_ context.Context, p *page) CheckResult { return checkImages(p) }},
		{"semantic", func(_ context.Context, p *page) CheckResult { return checkSemantic(p) }},
		{"mobile", func(_ context.Context, p *page) CheckResult { return checkMobile(p) }},
		{"schema", func(_ context.Context, p *page) CheckResult { return checkSchema(p) }},
		{"links", func(_ context.Context, p *page) CheckResult { return checkLinks(p) }},
		{"content", func(_ context.Context, p *page) CheckResult { return checkContent(p) }},
	}
	if a.metrics != nil {
		cs = append(cs, check{"core_web_vitals", a.checkVitals})
	}
	return cs
}

// Audit fetches pageURL and runs every check. Only a failed fetch is
// returned as an error.
func (a *Auditor) Audit(ctx context.Context, pageURL string) (*Report, error) {
	p, status, err := a.fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	cs := a.checks()
	results := make([]CheckResult, len(cs))

	g, gctx := errgroup.WithContext(ctx)
	for i, c := range cs {
		g.Go(func() error {
			results[i] = runCheck(gctx, c, p)
			return nil
		})
	}
	_ = g.Wait()

	report := &Report{URL: pageURL, Status: status, FetchedAt: a.now(), Checks: results}
	report.Score = overall(results)
	log.Printf("Audited %s: score %d, %d checks failed", pageURL, report.Score, len(report.Failed()))
	return report, nil
}

// runCheck turns a panicking check into a recorded error.
func runCheck(ctx context.Context, c check, p *page) (res CheckResult) {
	defer func() {
		if r := recover(); r != nil {
			res = CheckResult{Name: c.name, Err: fmt.Sprintf("check panicked: %v", r)}
		}
	}()
	res = c.run(ctx, p)
	res.Name = c.name
	return res
}

func overall(results []CheckResult) int {
	total, n := 0, 0
	for _, r := range results {
		if r.Err != "" {
			continue
		}
		total += r.Score
		n++
	}
	if n == 0 {
		return 0
	}
	return int(math.Floor(float64(total)/float64(n) + 0.5))
}

func (a *Auditor) fetch(ctx context.Context, pageURL string) (*page, int, error) {
	u, err := url.Parse(pageURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, 0, fmt.Errorf("invalid URL %q", pageURL)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", pageURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("fetching %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, resp.StatusCode, fmt.Errorf("fetching %s: %s", pageURL, http.StatusText(resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("reading %s: %w", pageURL, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("parsing %s: %w", pageURL, err)
	}
	return &page{url: resp.Request.URL, body: body, doc: doc}, resp.StatusCode, nil
}
