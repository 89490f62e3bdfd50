// Package pagespeed reads Core Web Vitals from the PageSpeed Insights API.
package pagespeed

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	pagespeedonline "google.golang.org/api/pagespeedonline/v5"
)

// Strategies accepted by Run.
const (
	StrategyMobile  = "mobile"
	StrategyDesktop = "desktop"
)

// ErrUnauthorized means the API rejected the key.
var ErrUnauthorized = errors.New("PageSpeed Insights rejected the API key; update search.pagespeed_api_key_env and try again")

// Metrics is the lab data of one PageSpeed run. Times are milliseconds.
type Metrics struct {
	URL      string  `json:"url"`
	Strategy string  `json:"strategy"`
	Score    int     `json:"performance_score"`
	LCP      float64 `json:"lcp_ms"`
	CLS      float64 `json:"cls"`
	TBT      float64 `json:"tbt_ms"`
	FCP      float64 `json:"fcp_ms"`
	// FieldCategory is the real-user verdict (FAST, AVERAGE, SLOW) when
	// Chrome UX data exists for the URL.
	FieldCategory string `json:"field_category,omitempty"`
}

// Client wraps the generated PageSpeed Insights service.
type Client struct {
	svc *pagespeedonline.Service
}

// NewClient creates a client. A missing key is a configuration error. Extra
// options are passed to the service, e.g. option.WithEndpoint in tests.
func NewClient(ctx context.Context, apiKey string, opts ...option.ClientOption) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("PageSpeed Insights key is required: set the variable named by search.pagespeed_api_key_env")
	}
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	svc, err := pagespeedonline.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating PageSpeed service: %w", err)
	}
	return &Client{svc: svc}, nil
}

// Run measures url with the given strategy (mobile when empty).
func (c *Client) Run(ctx context.Context, url, strategy string) (*Metrics, error) {
	if strategy == "" {
		strategy = StrategyMobile
	}
	resp, err := c.svc.Pagespeedapi.Runpagespeed(url).
		Strategy(strategy).
		Category("performance").
		Context(ctx).
		Do()
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && (gerr.Code == http.StatusUnauthorized || gerr.Code == http.StatusForbidden) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("running PageSpeed for %s: %w", url, err)
	}

	m := &Metrics{URL: url, Strategy: strategy}
	if lr := resp.LighthouseResult; lr != nil {
		if lr.Categories != nil && lr.Categories.Performance != nil {
			m.Score = scoreOf(lr.Categories.Performance.Score)
		}
		m.LCP = numeric(lr.Audits, "largest-contentful-paint")
		m.CLS = numeric(lr.Audits, "cumulative-layout-shift")
		m.TBT = numeric(lr.Audits, "total-blocking-time")
		m.FCP = numeric(lr.Audits, "first-contentful-paint")
	}
	if le := resp.LoadingExperience; le != nil {
		m.FieldCategory = le.OverallCategory
	}
	return m, nil
}

// scoreOf converts the 0..1 category score to 0..100.
func scoreOf(v any) int {
	f, ok := v.(float64)
	if !ok {
		return 0
	}
	return int(math.Floor(f*100 + 0.5))
}

func numeric(audits map[string]pagespeedonline.LighthouseAuditResultV5, id string) float64 {
	a, ok := audits[id]
	if !ok {
		return 0
	}
	return a.NumericValue
}
