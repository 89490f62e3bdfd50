package compose

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/TobiSchelling/BlogPulse/internal/advisor"
	"github.com/TobiSchelling/BlogPulse/internal/database"
	"github.com/TobiSchelling/BlogPulse/internal/stats"
)

// maxKeywordRows caps the keyword table in the report.
const maxKeywordRows = 10

// Composer composes the markdown report from a dashboard.
type Composer struct {
	db      *database.DB
	advisor *advisor.Advisor
}

// NewComposer creates a new report composer. A nil advisor composes with
// local content only.
func NewComposer(db *database.DB, adv *advisor.Advisor) *Composer {
	return &Composer{db: db, advisor: adv}
}

// ComposeReport builds and stores the report for a date.
func (c *Composer) ComposeReport(ctx context.Context, date string, d stats.Dashboard) (*database.Report, error) {
	summary, recs, err := c.generate(ctx, d)
	if err != nil {
		return nil, err
	}

	source := string(summary.Source)
	if recs.Source == advisor.SourceFallback {
		source = string(advisor.SourceFallback)
	}

	if _, err := c.db.InsertReport(database.Report{
		Date:         date,
		Site:         d.Site,
		Summary:      summary.Text,
		BodyMarkdown: AssembleBody(d, recs),
		PostCount:    d.PostCount,
		GapRate:      d.ContentGapRate,
		Source:       &source,
	}); err != nil {
		return nil, fmt.Errorf("storing report: %w", err)
	}

	report, err := c.db.GetReport(date)
	if err != nil {
		return nil, err
	}
	log.Printf("Report composed for %s: %d posts, %d suggestions (%s)", date, d.PostCount, len(recs.Suggestions), source)
	return report, nil
}

func (c *Composer) generate(ctx context.Context, d stats.Dashboard) (advisor.Summary, advisor.Recommendations, error) {
	if c.advisor == nil {
		return advisor.Summary{Text: advisor.LocalSummary(d), Source: advisor.SourceFallback},
			advisor.Recommendations{Suggestions: advisor.FallbackSuggestions(d.Gaps), Source: advisor.SourceFallback},
			nil
	}

	summary, err := c.advisor.Summarize(ctx, d)
	if err != nil {
		return advisor.Summary{}, advisor.Recommendations{}, fmt.Errorf("summarizing: %w", err)
	}
	recs, err := c.advisor.Recommend(ctx, d)
	if err != nil {
		return advisor.Summary{}, advisor.Recommendations{}, fmt.Errorf("recommending: %w", err)
	}
	return summary, recs, nil
}

// AssembleBody renders the report sections as markdown.
func AssembleBody(d stats.Dashboard, recs advisor.Recommendations) string {
	sections := []string{
		overviewSection(d),
		coverageSection(d),
		keywordSection(d),
		publishingSection(d),
		suggestionSection(recs),
	}
	return strings.Join(sections, "\n\n---\n\n")
}

func overviewSection(d stats.Dashboard) string {
	var b strings.Builder
	b.WriteString("## Overview\n\n")
	b.WriteString("| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Posts | %d |\n", d.PostCount)
	fmt.Fprintf(&b, "| Categories | %d |\n", d.CategoryCount)
	fmt.Fprintf(&b, "| Unique keywords | %d |\n", d.UniqueKeywords)
	fmt.Fprintf(&b, "| Keyword diversity | %d |\n", d.KeywordDiversityIndex)
	fmt.Fprintf(&b, "| Avg. words per post | %d |\n", d.AvgWordsPerPost)
	fmt.Fprintf(&b, "| Content gap rate | %d%% |", d.ContentGapRate)
	return b.String()
}

func coverageSection(d stats.Dashboard) string {
	var b strings.Builder
	b.WriteString("## Treatment Coverage\n\n")
	if len(d.Treatments) == 0 {
		b.WriteString("No treatments configured.")
		return b.String()
	}
	b.WriteString("| Treatment | Posts |\n|---|---|\n")
	for _, t := range d.Treatments {
		fmt.Fprintf(&b, "| %s | %d |\n", escapeCell(t.Treatment), t.Frequency)
	}
	if len(d.Gaps) > 0 {
		b.WriteString("\n**Gaps:** " + strings.Join(d.Gaps, ", "))
	}
	return strings.TrimRight(b.String(), "\n")
}

func keywordSection(d stats.Dashboard) string {
	var b strings.Builder
	b.WriteString("## Top Keywords\n\n")
	if len(d.TopKeywords) == 0 {
		b.WriteString("No keywords extracted.")
		return b.String()
	}
	for i, k := range d.TopKeywords {
		if i == maxKeywordRows {
			break
		}
		fmt.Fprintf(&b, "%d. %s (%d)\n", i+1, k.Keyword, k.Count)
	}
	return strings.TrimRight(b.String(), "\n")
}

func publishingSection(d stats.Dashboard) string {
	var b strings.Builder
	b.WriteString("## Publishing\n\n")
	fmt.Fprintf(&b, "- Last 30 days: %d posts\n", d.PublicationTrend.Last30Days)
	fmt.Fprintf(&b, "- Days 31-90: %d posts\n", d.PublicationTrend.Days31To90)
	fmt.Fprintf(&b, "- Growth rate: %d%%", d.GrowthRate)
	if len(d.MonthlyPosts) > 0 {
		b.WriteString("\n\n| Month | Posts |\n|---|---|")
		for _, m := range d.MonthlyPosts {
			fmt.Fprintf(&b, "\n| %s | %d |", m.Label, m.Count)
		}
	}
	return b.String()
}

func suggestionSection(recs advisor.Recommendations) string {
	var b strings.Builder
	b.WriteString("## Suggested Posts\n\n")
	if len(recs.Suggestions) == 0 {
		b.WriteString("No suggestions.")
		return b.String()
	}
	for _, s := range recs.Suggestions {
		fmt.Fprintf(&b, "- **%s** (%s priority, keyword: %s)", s.Title, s.Priority, s.Keyword)
		if s.Rationale != "" {
			b.WriteString(": " + s.Rationale)
		}
		b.WriteString("\n")
	}
	if recs.Source == advisor.SourceFallback {
		b.WriteString("\n_Generated locally; the AI service was unavailable._")
	}
	return strings.TrimRight(b.String(), "\n")
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
