// Package advisor turns dashboard statistics into AI recommendations.
//
// Every call walks the same state machine: the primary model is tried up to
// Attempts times with a fixed delay, then the secondary model the same way.
// Authentication failures end the walk immediately. When every model is
// exhausted the caller gets ErrAllModelsExhausted, and the higher-level
// operations substitute local content.
package advisor

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log"
	"strings"
	"time"

	"github.com/TobiSchelling/BlogPulse/internal/llm"
	"github.com/TobiSchelling/BlogPulse/internal/retry"
)

const (
	DefaultAttempts  = 3
	DefaultDelay     = 15 * time.Second
	DefaultMaxTokens = 2048
)

// ErrAllModelsExhausted means neither model produced a usable answer.
var ErrAllModelsExhausted = errors.New("all models exhausted")

var errEmptyResponse = errors.New("empty response from model")

// Config holds the model identifiers and the retry policy.
type Config struct {
	PrimaryModel   string
	SecondaryModel string
	Attempts       int
	Delay          time.Duration
	MaxTokens      int
}

// Advisor wraps an LLM provider with retry and model failover.
type Advisor struct {
	provider llm.Provider
	cfg      Config
	sleep    retry.SleepFunc
}

// New creates an Advisor. Zero config values use the defaults.
func New(provider llm.Provider, cfg Config) *Advisor {
	if cfg.Attempts <= 0 {
		cfg.Attempts = DefaultAttempts
	}
	if cfg.Delay <= 0 {
		cfg.Delay = DefaultDelay
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	return &Advisor{provider: provider, cfg: cfg, sleep: retry.Sleep}
}

// WithSleep replaces the delay function, mainly for tests.
func (a *Advisor) WithSleep(sleep retry.SleepFunc) *Advisor {
	a.sleep = sleep
	return a
}

// Models returns the models in the order they are tried. A pinned provider
// gets a single entry.
func (a *Advisor) Models() []string {
	if p, ok := a.provider.(llm.Pinned); ok {
		return []string{p.PinnedModel()}
	}
	var out []string
	for _, m := range []string{a.cfg.PrimaryModel, a.cfg.SecondaryModel} {
		if m == "" || (len(out) > 0 && out[0] == m) {
			continue
		}
		out = append(out, m)
	}
	if len(out) == 0 {
		// Provider default.
		out = []string{""}
	}
	return out
}

func (a *Advisor) policy(model string) retry.Policy {
	return retry.Policy{
		MaxAttempts: a.cfg.Attempts,
		Backoff:     retry.Fixed(a.cfg.Delay),
		Sleep:       a.sleep,
		OnRetry: func(attempt int, err error, wait time.Duration) {
			log.Printf("Model %s attempt %d failed: %v (retrying in %s)", displayModel(model), attempt, err, wait)
		},
	}
}

// classify marks errors that must not be retried on the same model.
func classify(err error) error {
	if !llm.IsRetryable(err) {
		return retry.Permanent(err)
	}
	return err
}

// Complete runs the request through the model chain and returns the first
// non-empty answer.
func (a *Advisor) Complete(ctx context.Context, req llm.Request) (string, error) {
	if a.provider == nil {
		return "", fmt.Errorf("%w: no provider configured", ErrAllModelsExhausted)
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = a.cfg.MaxTokens
	}

	var lastErr error
	for _, model := range a.Models() {
		var out string
		err := a.policy(model).Do(ctx, func(ctx context.Context, attempt int) error {
			r := req
			r.Model = model
			text, err := a.provider.Generate(ctx, r)
			if err != nil {
				return classify(err)
			}
			if strings.TrimSpace(text) == "" {
				return errEmptyResponse
			}
			out = text
			return nil
		})
		if err == nil {
			return out, nil
		}
		if errors.Is(err, llm.ErrUnauthorized) {
			return "", err
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		log.Printf("Model %s gave up: %v", displayModel(model), err)
		lastErr = err
	}
	return "", fmt.Errorf("%w: %v", ErrAllModelsExhausted, lastErr)
}

// Stream returns a lazy sequence of answer chunks. Each call starts a new
// request. Retries and failover apply only until the first chunk arrives;
// a later error ends the sequence and already yielded chunks stand.
// Providers without streaming yield the whole answer as one chunk.
func (a *Advisor) Stream(ctx context.Context, req llm.Request) iter.Seq2[string, error] {
	streamer, ok := a.provider.(llm.Streamer)
	if !ok {
		return func(yield func(string, error) bool) {
			out, err := a.Complete(ctx, req)
			if err != nil {
				yield("", err)
				return
			}
			yield(out, nil)
		}
	}

	return func(yield func(string, error) bool) {
		if req.MaxTokens == 0 {
			req.MaxTokens = a.cfg.MaxTokens
		}

		var lastErr error
		for _, model := range a.Models() {
			var (
				first string
				next  func() (string, error, bool)
				stop  func()
			)
			err := a.policy(model).Do(ctx, func(ctx context.Context, attempt int) error {
				r := req
				r.Model = model
				n, s := iter.Pull2(streamer.Stream(ctx, r))
				for {
					chunk, err, ok := n()
					if !ok {
						s()
						return errEmptyResponse
					}
					if err != nil {
						s()
						return classify(err)
					}
					if chunk != "" {
						first, next, stop = chunk, n, s
						return nil
					}
				}
			})
			if err != nil {
				if errors.Is(err, llm.ErrUnauthorized) || ctx.Err() != nil {
					yield("", err)
					return
				}
				log.Printf("Model %s gave up: %v", displayModel(model), err)
				lastErr = err
				continue
			}

			defer stop()
			if !yield(first, nil) {
				return
			}
			for {
				chunk, err, ok := next()
				if !ok {
					return
				}
				if !yield(chunk, err) || err != nil {
					return
				}
			}
		}
		yield("", fmt.Errorf("%w: %v", ErrAllModelsExhausted, lastErr))
	}
}

func displayModel(m string) string {
	if m == "" {
		return "(default)"
	}
	return m
}
