package advisor

import (
	"fmt"
	"strings"

	"github.com/TobiSchelling/BlogPulse/internal/stats"
)

// promptKeywords is how many top keywords go into a prompt.
const promptKeywords = 10

const systemPrompt = `You are a content marketing and SEO strategist for a medical tourism clinic blog.
Base every statement on the statistics provided. Be concrete and brief.`

// BuildPrompt describes the dashboard in plain language.
func BuildPrompt(d stats.Dashboard) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Blog: %s\n", d.Site)
	fmt.Fprintf(&b, "Posts analyzed: %d across %d categories\n", d.PostCount, d.CategoryCount)
	fmt.Fprintf(&b, "Unique keywords: %d (diversity index %d/100)\n", d.UniqueKeywords, d.KeywordDiversityIndex)
	fmt.Fprintf(&b, "Average words per post: %d\n", d.AvgWordsPerPost)
	fmt.Fprintf(&b, "Posts in the last 30 days: %d, in the 60 days before: %d (growth %d%%)\n",
		d.PublicationTrend.Last30Days, d.PublicationTrend.Days31To90, d.GrowthRate)
	fmt.Fprintf(&b, "Content gap rate: %d%%\n", d.ContentGapRate)

	if len(d.TopKeywords) > 0 {
		n := min(promptKeywords, len(d.TopKeywords))
		parts := make([]string, n)
		for i, k := range d.TopKeywords[:n] {
			parts[i] = fmt.Sprintf("%s (%d)", k.Keyword, k.Count)
		}
		fmt.Fprintf(&b, "Top keywords: %s\n", strings.Join(parts, ", "))
	}

	if len(d.Treatments) > 0 {
		b.WriteString("Treatment coverage (posts per treatment):\n")
		for _, t := range d.Treatments {
			fmt.Fprintf(&b, "- %s: %d\n", t.Treatment, t.Frequency)
		}
	}

	if len(d.Gaps) > 0 {
		fmt.Fprintf(&b, "Content gaps (fewer than 2 posts): %s\n", strings.Join(d.Gaps, "; "))
	} else {
		b.WriteString("Content gaps: none\n")
	}

	return b.String()
}

// RecommendPrompt asks for a JSON array of post suggestions.
func RecommendPrompt(d stats.Dashboard) string {
	return BuildPrompt(d) + `
Suggest up to 8 new blog posts that close the content gaps and strengthen SEO.
Respond ONLY with a JSON array, no prose. Each element:
{"title": "...", "keyword": "primary search keyword", "treatment": "related treatment or empty", "rationale": "one sentence", "priority": "high|medium|low"}`
}

// SummaryPrompt asks for a short executive summary.
func SummaryPrompt(d stats.Dashboard) string {
	return BuildPrompt(d) + `
Write a short executive summary (3 to 5 sentences) of the blog's content health,
followed by the three most important next steps as a markdown list.`
}
