// Package serp queries SerpApi for Google search results.
package serp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/TobiSchelling/BlogPulse/internal/retry"
)

// DefaultBaseURL is the SerpApi endpoint root.
const DefaultBaseURL = "https://serpapi.com"

// ErrUnauthorized means SerpApi rejected the key.
var ErrUnauthorized = errors.New("SerpApi rejected the API key; update search.api_key_env and try again")

// Result is one organic search result.
type Result struct {
	Position int    `json:"position"`
	Title    string `json:"title"`
	Link     string `json:"link"`
	Snippet  string `json:"snippet"`
}

// Rank is where a domain appears for a keyword. Position 0 means the domain
// was not found in the returned results.
type Rank struct {
	Keyword  string    `json:"keyword"`
	Position int       `json:"position"`
	URL      string    `json:"url"`
	Checked  time.Time `json:"checked_at"`
}

// Options configures a Client.
type Options struct {
	APIKey     string
	BaseURL    string
	Location   string
	Results    int
	HTTPClient *http.Client
	Sleep      retry.SleepFunc
}

// Client is a SerpApi client.
type Client struct {
	apiKey   string
	baseURL  string
	location string
	results  int
	http     *http.Client
	policy   retry.Policy
	now      func() time.Time
}

// NewClient creates a client. A missing key is a configuration error.
func NewClient(opts Options) (*Client, error) {
	if opts.APIKey == "" {
		return nil, errors.New("SerpApi key is required: set the variable named by search.api_key_env")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Results <= 0 {
		opts.Results = 100
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		apiKey:   opts.APIKey,
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		location: opts.Location,
		results:  opts.Results,
		http:     opts.HTTPClient,
		policy: retry.Policy{
			MaxAttempts: 3,
			Backoff:     retry.Exponential(time.Second),
			Sleep:       opts.Sleep,
		},
		now: time.Now,
	}, nil
}

// Search returns the organic results for query.
func (c *Client) Search(ctx context.Context, query string) ([]Result, error) {
	params := url.Values{}
	params.Set("engine", "google")
	params.Set("q", query)
	params.Set("num", fmt.Sprint(c.results))
	params.Set("api_key", c.apiKey)
	if c.location != "" {
		params.Set("location", c.location)
	}
	endpoint := c.baseURL + "/search.json?" + params.Encode()

	var results []Result
	err := c.policy.Do(ctx, func(ctx context.Context, attempt int) error {
		req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
		if err != nil {
			return retry.Permanent(fmt.Errorf("creating request: %w", err))
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("SerpApi request: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("reading SerpApi response: %w", err)
		}

		var payload struct {
			Organic []Result `json:"organic_results"`
			Error   string   `json:"error"`
		}
		_ = json.Unmarshal(body, &payload)

		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return retry.Permanent(ErrUnauthorized)
		case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
			return fmt.Errorf("SerpApi returned %d", resp.StatusCode)
		case resp.StatusCode != http.StatusOK:
			msg := payload.Error
			if msg == "" {
				msg = http.StatusText(resp.StatusCode)
			}
			return retry.Permanent(fmt.Errorf("SerpApi returned %d: %s", resp.StatusCode, msg))
		}
		// SerpApi answers 200 with an error field for searches without results.
		if payload.Error != "" && !strings.Contains(payload.Error, "hasn't returned any results") {
			return retry.Permanent(fmt.Errorf("SerpApi: %s", payload.Error))
		}
		results = payload.Organic
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// Rank returns the first organic position whose link belongs to domain.
func (c *Client) Rank(ctx context.Context, keyword, domain string) (Rank, error) {
	results, err := c.Search(ctx, keyword)
	if err != nil {
		return Rank{}, err
	}
	r := Rank{Keyword: keyword, Checked: c.now()}
	for i, res := range results {
		if !MatchesDomain(res.Link, domain) {
			continue
		}
		r.Position = res.Position
		if r.Position == 0 {
			r.Position = i + 1
		}
		r.URL = res.Link
		break
	}
	return r, nil
}

// MatchesDomain reports whether link is on domain or one of its subdomains.
// domain may be a bare host or a URL.
func MatchesDomain(link, domain string) bool {
	u, err := url.Parse(link)
	if err != nil || u.Host == "" {
		return false
	}
	want := hostOf(domain)
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	return want != "" && (host == want || strings.HasSuffix(host, "."+want))
}

func hostOf(domain string) string {
	d := strings.ToLower(strings.TrimSpace(domain))
	if strings.Contains(d, "://") {
		if u, err := url.Parse(d); err == nil {
			d = u.Hostname()
		}
	}
	d = strings.TrimSuffix(d, "/")
	return strings.TrimPrefix(d, "www.")
}
