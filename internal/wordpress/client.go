package wordpress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/TobiSchelling/BlogPulse/internal/retry"
)

const (
	DefaultPageSize    = 50
	DefaultMaxAttempts = 3
	DefaultPageDelay   = 200 * time.Millisecond
	DefaultBackoffBase = time.Second

	categoriesPerPage = 100
	userAgent         = "BlogPulse/1.0 (content analytics)"
)

// StopReason explains why pagination ended.
type StopReason string

const (
	StopEmptyPage        StopReason = "empty_page"
	StopShortPage        StopReason = "short_page"
	StopLastPage         StopReason = "last_page"
	StopStatus           StopReason = "non_retryable_status"
	StopRetriesExhausted StopReason = "retries_exhausted"
)

// StatusError is an unexpected HTTP status from the WordPress origin.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("wordpress returned %d", e.Code)
	}
	return fmt.Sprintf("wordpress returned %d: %s", e.Code, e.Body)
}

// Retryable reports whether the same request may succeed later.
func (e *StatusError) Retryable() bool {
	return e.Code >= 500 || e.Code == http.StatusTooManyRequests
}

// PostsResult holds the posts of a pagination run and how it went.
type PostsResult struct {
	Posts      []Post
	Pages      int
	Requests   int
	Retries    int
	StopReason StopReason
	StopStatus int
}

// Options configures a Client. Zero values fall back to the defaults.
type Options struct {
	PageSize    int
	MaxAttempts int
	BackoffBase time.Duration
	PageDelay   time.Duration
	Timeout     time.Duration
	HTTPClient  *http.Client
	Sleep       retry.SleepFunc
}

// Client pages through the WordPress REST API one page at a time.
type Client struct {
	http      *http.Client
	pageSize  int
	pageDelay time.Duration
	policy    retry.Policy
	sleep     retry.SleepFunc
}

// NewClient creates a new WordPress client.
func NewClient(opts Options) *Client {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = DefaultBackoffBase
	}
	if opts.PageDelay < 0 {
		opts.PageDelay = 0
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Sleep == nil {
		opts.Sleep = retry.Sleep
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	return &Client{
		http:      httpClient,
		pageSize:  opts.PageSize,
		pageDelay: opts.PageDelay,
		sleep:     opts.Sleep,
		policy: retry.Policy{
			MaxAttempts: opts.MaxAttempts,
			Backoff:     retry.Exponential(opts.BackoffBase),
			Sleep:       opts.Sleep,
			OnRetry: func(attempt int, err error, wait time.Duration) {
				log.Printf("WordPress request failed (attempt %d): %v; retrying in %s", attempt, err, wait)
			},
		},
	}
}

// PageSize returns the number of posts requested per page.
func (c *Client) PageSize() int {
	return c.pageSize
}

// FetchAllPosts retrieves every post, newest first. Transient failures are
// retried per page; when a page cannot be fetched, pagination stops and the
// posts gathered so far are returned. The error is non-nil only for an
// invalid base URL or a cancelled context.
func (c *Client) FetchAllPosts(ctx context.Context, baseURL string) (*PostsResult, error) {
	endpoint, err := apiURL(baseURL, "posts")
	if err != nil {
		return nil, err
	}

	res := &PostsResult{}
	for page := 1; ; page++ {
		q := url.Values{
			"per_page": {strconv.Itoa(c.pageSize)},
			"page":     {strconv.Itoa(page)},
			"orderby":  {"date"},
			"order":    {"desc"},
			"_embed":   {""},
		}
		pageURL := endpoint + "?" + q.Encode()

		var batch []Post
		var totalPages int
		err := c.policy.Do(ctx, func(ctx context.Context, attempt int) error {
			res.Requests++
			if attempt > 1 {
				res.Retries++
			}
			var hdr http.Header
			var err error
			batch, hdr, err = c.getPosts(ctx, pageURL)
			if err != nil {
				return err
			}
			totalPages, _ = strconv.Atoi(hdr.Get("X-WP-TotalPages"))
			return nil
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return res, ctxErr
			}
			var se *StatusError
			if errors.As(err, &se) && !se.Retryable() {
				res.StopReason = StopStatus
				res.StopStatus = se.Code
				log.Printf("Stopping pagination at page %d: HTTP %d", page, se.Code)
			} else {
				res.StopReason = StopRetriesExhausted
				log.Printf("Stopping pagination at page %d: %v", page, err)
			}
			break
		}

		if len(batch) == 0 {
			res.StopReason = StopEmptyPage
			break
		}
		res.Posts = append(res.Posts, batch...)
		res.Pages++
		log.Printf("Fetched page %d: %d posts (%d total)", page, len(batch), len(res.Posts))

		if len(batch) < c.pageSize {
			res.StopReason = StopShortPage
			break
		}
		if totalPages > 0 && page >= totalPages {
			res.StopReason = StopLastPage
			break
		}

		if err := c.sleep(ctx, c.pageDelay); err != nil {
			return res, err
		}
	}

	return res, nil
}

// FetchCategories retrieves up to 100 categories in a single request.
func (c *Client) FetchCategories(ctx context.Context, baseURL string) ([]Category, error) {
	endpoint, err := apiURL(baseURL, "categories")
	if err != nil {
		return nil, err
	}
	catURL := endpoint + "?per_page=" + strconv.Itoa(categoriesPerPage)

	var categories []Category
	err = c.policy.Do(ctx, func(ctx context.Context, _ int) error {
		body, _, err := c.get(ctx, catURL)
		if err != nil {
			return err
		}
		categories = nil
		if err := json.Unmarshal(body, &categories); err != nil {
			return fmt.Errorf("decoding categories: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetching categories: %w", err)
	}
	return categories, nil
}

func (c *Client) getPosts(ctx context.Context, pageURL string) ([]Post, http.Header, error) {
	body, hdr, err := c.get(ctx, pageURL)
	if err != nil {
		return nil, nil, err
	}
	var posts []Post
	if err := json.Unmarshal(body, &posts); err != nil {
		return nil, nil, fmt.Errorf("decoding posts: %w", err)
	}
	return posts, hdr, nil
}

// get performs a GET and classifies failures: non-retryable statuses are
// wrapped with retry.Permanent.
func (c *Client) get(ctx context.Context, rawURL string) ([]byte, http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, nil, retry.Permanent(fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("requesting %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		se := &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
		if se.Retryable() {
			return nil, nil, se
		}
		return nil, nil, retry.Permanent(se)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("reading response: %w", err)
	}
	return body, resp.Header, nil
}

// apiURL builds {base}/wp-json/wp/v2/{resource} from a site base URL.
func apiURL(baseURL, resource string) (string, error) {
	base, err := normalizeBase(baseURL)
	if err != nil {
		return "", err
	}
	return base + "/wp-json/wp/v2/" + resource, nil
}

func normalizeBase(baseURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return "", fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("invalid base URL %q: need http(s)://host", baseURL)
	}
	return strings.TrimRight(u.Scheme+"://"+u.Host+u.Path, "/"), nil
}
