package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/TobiSchelling/BlogPulse/internal/advisor"
	"github.com/TobiSchelling/BlogPulse/internal/compose"
	"github.com/TobiSchelling/BlogPulse/internal/config"
	"github.com/TobiSchelling/BlogPulse/internal/database"
	"github.com/TobiSchelling/BlogPulse/internal/ingest"
	"github.com/TobiSchelling/BlogPulse/internal/llm"
	"github.com/TobiSchelling/BlogPulse/internal/stats"
	"github.com/TobiSchelling/BlogPulse/internal/wordpress"
)

// StepResult holds the result of a single pipeline step.
type StepResult struct {
	Name    string
	Summary string
	Err     error
}

// Result holds the results of a full pipeline run.
type Result struct {
	Date      string
	RunID     string
	Data      *ingest.BlogData
	Dashboard *stats.Dashboard
	Steps     []StepResult
}

// Err returns the first step error.
func (r *Result) Err() error {
	for _, s := range r.Steps {
		if s.Err != nil {
			return fmt.Errorf("%s: %w", s.Name, s.Err)
		}
	}
	return nil
}

// Options controls a pipeline run.
type Options struct {
	// Date keys the composed report; defaults to today.
	Date string
	// Report composes and stores the markdown report.
	Report bool
}

// Pipeline orchestrates ingest → stats → store → compose.
type Pipeline struct {
	cfg     *config.Config
	db      *database.DB
	fetcher ingest.Fetcher
	advisor *advisor.Advisor
	now     func() time.Time
}

// New creates a new pipeline. A nil advisor composes reports with local
// content only.
func New(cfg *config.Config, db *database.DB, fetcher ingest.Fetcher, adv *advisor.Advisor) *Pipeline {
	return &Pipeline{cfg: cfg, db: db, fetcher: fetcher, advisor: adv, now: time.Now}
}

// FromConfig wires the WordPress client and, when one is reachable, the AI
// advisor.
func FromConfig(ctx context.Context, cfg *config.Config, db *database.DB) *Pipeline {
	adv, err := NewAdvisor(ctx, cfg)
	if err != nil {
		log.Printf("AI disabled, reports will use local content: %v", err)
		adv = nil
	}
	return New(cfg, db, NewWordPressClient(cfg), adv)
}

// NewWordPressClient builds the REST client from the ingest settings.
func NewWordPressClient(cfg *config.Config) *wordpress.Client {
	return wordpress.NewClient(wordpress.Options{
		PageSize:    cfg.Ingest.PageSize,
		MaxAttempts: cfg.Ingest.MaxAttempts,
		PageDelay:   cfg.Ingest.PageDelay,
		Timeout:     cfg.Ingest.Timeout,
	})
}

// NewAdvisor creates the configured provider and wraps it with retry and
// model failover.
func NewAdvisor(ctx context.Context, cfg *config.Config) (*advisor.Advisor, error) {
	ai := cfg.AI
	provider, err := llm.CreateProvider(ctx, llm.ProviderOptions{
		Name:         ai.Provider,
		Model:        ai.PrimaryModel,
		OllamaURL:    ai.OllamaURL,
		OpenAIModel:  ai.OpenAIModel,
		OpenAIKeyEnv: ai.OpenAIKeyEnv,
		GeminiKeyEnv: ai.GeminiKeyEnv,
	})
	if err != nil {
		return nil, err
	}
	return advisor.New(provider, advisor.Config{
		PrimaryModel:   ai.PrimaryModel,
		SecondaryModel: ai.SecondaryModel,
		Attempts:       ai.Attempts,
		Delay:          ai.Delay,
		MaxTokens:      ai.MaxTokens,
	}), nil
}

// Site returns the ingestion input for the configured blog.
func Site(cfg *config.Config) ingest.Site {
	return ingest.Site{
		BaseURL:       cfg.Site.BaseURL,
		Treatments:    cfg.Site.Treatments,
		LocaleSuffix:  cfg.Site.LocaleSuffix,
		LocaleMarkers: cfg.Site.LocaleMarkers,
		FeedFallback:  cfg.Site.FeedFallback,
	}
}

// Analyze ingests the blog and builds the dashboard without storing anything.
func (p *Pipeline) Analyze(ctx context.Context) (*ingest.BlogData, *ingest.Report, stats.Dashboard, error) {
	data, report, err := ingest.New(p.fetcher).Run(ctx, Site(p.cfg))
	if err != nil {
		return nil, nil, stats.Dashboard{}, err
	}
	return data, report, stats.Build(data, p.now()), nil
}

// Run executes the pipeline.
func (p *Pipeline) Run(ctx context.Context, opts Options) *Result {
	date := opts.Date
	if date == "" {
		date = p.now().Format("2006-01-02")
	}
	r := &Result{Date: date}

	steps := 3
	if opts.Report {
		steps = 4
	}

	// Step 1: Ingest
	log.Printf("Step 1/%d: Ingesting %s...", steps, p.cfg.Site.BaseURL)
	data, report, err := ingest.New(p.fetcher).Run(ctx, Site(p.cfg))
	if err != nil {
		r.Steps = append(r.Steps, StepResult{Name: "Ingest", Err: err})
		return r
	}
	r.Data = data
	summary := fmt.Sprintf("Fetched %d posts in %d pages (%d requests, %d retries, stop: %s)",
		len(data.Posts), report.Pages, report.Requests, report.Retries, report.StopReason)
	if report.UsedFeed {
		summary += " via RSS fallback"
	}
	r.Steps = append(r.Steps, StepResult{Name: "Ingest", Summary: summary})

	// Step 2: Stats
	log.Printf("Step 2/%d: Building statistics...", steps)
	dash := stats.Build(data, p.now())
	r.Dashboard = &dash
	r.Steps = append(r.Steps, StepResult{
		Name: "Stats",
		Summary: fmt.Sprintf("%d keywords, gap rate %d%%, diversity %d, %d words/post",
			dash.UniqueKeywords, dash.ContentGapRate, dash.KeywordDiversityIndex, dash.AvgWordsPerPost),
	})

	// Step 3: Store
	log.Printf("Step 3/%d: Recording run...", steps)
	runID, err := p.storeRun(data, report, dash)
	if err != nil {
		r.Steps = append(r.Steps, StepResult{Name: "Store", Err: err})
		return r
	}
	r.RunID = runID
	r.Steps = append(r.Steps, StepResult{Name: "Store", Summary: "Recorded run " + runID})

	if !opts.Report {
		return r
	}

	// Step 4: Compose
	log.Printf("Step 4/%d: Composing report...", steps)
	composed, err := compose.NewComposer(p.db, p.advisor).ComposeReport(ctx, date, dash)
	if err != nil {
		r.Steps = append(r.Steps, StepResult{Name: "Compose", Err: err})
		return r
	}
	r.Steps = append(r.Steps, StepResult{
		Name:    "Compose",
		Summary: fmt.Sprintf("Report composed for %s (%s)", composed.Date, derefOr(composed.Source, "unknown")),
	})
	return r
}

// DryRun shows what would be done without executing.
func (p *Pipeline) DryRun() *Result {
	r := &Result{Date: p.now().Format("2006-01-02")}
	r.Steps = append(r.Steps, StepResult{
		Name: "Ingest",
		Summary: fmt.Sprintf("[dry-run] Would fetch %s (%d posts per page, %d treatments)",
			p.cfg.Site.BaseURL, p.cfg.Ingest.PageSize, len(p.cfg.Site.Treatments)),
	})

	last, _ := p.db.GetLatestRun(p.cfg.Site.BaseURL)
	if last != nil {
		r.Steps = append(r.Steps, StepResult{
			Name:    "Store",
			Summary: fmt.Sprintf("[dry-run] Last run %s had %d posts", last.StartedAt, last.Posts),
		})
	} else {
		r.Steps = append(r.Steps, StepResult{Name: "Store", Summary: "[dry-run] No previous runs"})
	}

	existing, _ := p.db.GetReport(r.Date)
	if existing != nil {
		r.Steps = append(r.Steps, StepResult{Name: "Compose", Summary: fmt.Sprintf("[dry-run] Report for %s would be replaced", r.Date)})
	} else {
		r.Steps = append(r.Steps, StepResult{Name: "Compose", Summary: fmt.Sprintf("[dry-run] Would compose report for %s", r.Date)})
	}
	return r
}

func (p *Pipeline) storeRun(data *ingest.BlogData, report *ingest.Report, dash stats.Dashboard) (string, error) {
	coverage := make([]database.TreatmentCoverage, 0, len(dash.Treatments))
	for _, t := range dash.Treatments {
		coverage = append(coverage, database.TreatmentCoverage{Treatment: t.Treatment, Frequency: t.Frequency})
	}
	return p.db.InsertIngestionRun(database.IngestionRun{
		Site:       data.Site,
		StartedAt:  data.FetchedAt.UTC().Format(time.RFC3339),
		Posts:      dash.PostCount,
		Categories: dash.CategoryCount,
		Keywords:   dash.UniqueKeywords,
		Pages:      report.Pages,
		Requests:   report.Requests,
		Retries:    report.Retries,
		StopReason: string(report.StopReason),
		UsedFeed:   report.UsedFeed,
		GapRate:    dash.ContentGapRate,
		Diversity:  dash.KeywordDiversityIndex,
		AvgWords:   dash.AvgWordsPerPost,
		GrowthRate: dash.GrowthRate,
	}, coverage)
}

func derefOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}
