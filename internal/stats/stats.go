// Package stats derives the dashboard numbers from an ingestion run.
//
// Every percentage and score is an integer rounded half up, matching what the
// dashboard renders. The growth rate is a rough period-over-period figure and
// is kept exactly as defined below.
package stats

import (
	"math"
	"time"

	"github.com/TobiSchelling/BlogPulse/internal/htmltext"
	"github.com/TobiSchelling/BlogPulse/internal/ingest"
	"github.com/TobiSchelling/BlogPulse/internal/keywords"
	"github.com/TobiSchelling/BlogPulse/internal/treatment"
	"github.com/TobiSchelling/BlogPulse/internal/wordpress"
)

// TopKeywordCount is how many keywords the dashboard lists.
const TopKeywordCount = 20

// PublicationTrend counts recent posts in two fixed buckets.
type PublicationTrend struct {
	Last30Days int `json:"last_30_days"`
	Days31To90 int `json:"days_31_to_90"`
}

// MonthlyCount is the number of posts published in one calendar month.
type MonthlyCount struct {
	Label string `json:"month_label"`
	Count int    `json:"post_count"`
}

// TreatmentCount is a treatment with its matched post count.
type TreatmentCount struct {
	Treatment string `json:"treatment"`
	Frequency int    `json:"frequency"`
}

// Dashboard is the full set of aggregate statistics for one run.
type Dashboard struct {
	Site                  string                  `json:"site"`
	GeneratedAt           time.Time               `json:"generated_at"`
	PostCount             int                     `json:"post_count"`
	CategoryCount         int                     `json:"category_count"`
	UniqueKeywords        int                     `json:"unique_keywords"`
	ContentGapRate        int                     `json:"content_gap_rate"`
	Gaps                  []string                `json:"gaps"`
	KeywordDiversityIndex int                     `json:"keyword_diversity_index"`
	AvgWordsPerPost       int                     `json:"avg_words_per_post"`
	PublicationTrend      PublicationTrend        `json:"publication_trend"`
	MonthlyPosts          []MonthlyCount          `json:"monthly_posts"`
	GrowthRate            int                     `json:"growth_rate"`
	TopKeywords           []keywords.KeywordCount `json:"top_keywords"`
	Treatments            []TreatmentCount        `json:"treatments"`
}

// Build computes every statistic from scratch.
func Build(data *ingest.BlogData, now time.Time) Dashboard {
	trend := Trend(data.Posts, now)

	d := Dashboard{
		Site:                  data.Site,
		GeneratedAt:           now,
		PostCount:             len(data.Posts),
		CategoryCount:         len(data.Categories),
		UniqueKeywords:        len(data.Keywords),
		ContentGapRate:        ContentGapRate(data.TreatmentMatches),
		Gaps:                  treatment.Gaps(data.TreatmentMatches),
		KeywordDiversityIndex: KeywordDiversityIndex(len(data.Keywords), len(data.Posts)),
		AvgWordsPerPost:       AvgWordsPerPost(data.Posts),
		PublicationTrend:      trend,
		MonthlyPosts:          MonthlyPosts(data.Posts, now),
		GrowthRate:            GrowthRate(trend.Last30Days, trend.Days31To90),
		TopKeywords:           keywords.Top(keywords.Count(data.Posts), TopKeywordCount),
	}
	for _, m := range data.TreatmentMatches {
		d.Treatments = append(d.Treatments, TreatmentCount{Treatment: m.Treatment, Frequency: m.Frequency})
	}
	return d
}

// ContentGapRate is the share of treatments with fewer than two posts.
func ContentGapRate(matches []treatment.Match) int {
	if len(matches) == 0 {
		return 0
	}
	gaps := len(treatment.Gaps(matches))
	return Round(100 * float64(gaps) / float64(len(matches)))
}

// KeywordDiversityIndex is unique keywords per post as a percentage, capped
// at 100. It is 0 for an empty corpus.
func KeywordDiversityIndex(uniqueKeywords, postCount int) int {
	if postCount == 0 {
		return 0
	}
	idx := Round(100 * float64(uniqueKeywords) / float64(postCount))
	if idx > 100 {
		return 100
	}
	return idx
}

// AvgWordsPerPost averages the stripped word count.
func AvgWordsPerPost(posts []wordpress.Post) int {
	if len(posts) == 0 {
		return 0
	}
	total := 0
	for _, p := range posts {
		total += htmltext.WordCount(p.Content)
	}
	return Round(float64(total) / float64(len(posts)))
}

// Trend buckets posts into the last 30 days and the 60 days before that.
func Trend(posts []wordpress.Post, now time.Time) PublicationTrend {
	cut30 := now.AddDate(0, 0, -30)
	cut90 := now.AddDate(0, 0, -90)

	var t PublicationTrend
	for _, p := range posts {
		switch {
		case p.Date.After(cut30):
			t.Last30Days++
		case p.Date.After(cut90):
			t.Days31To90++
		}
	}
	return t
}

// MonthlyPosts counts posts in each of the last 12 calendar months, oldest
// first, the current month included.
func MonthlyPosts(posts []wordpress.Post, now time.Time) []MonthlyCount {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	out := make([]MonthlyCount, 0, 12)
	for i := 11; i >= 0; i-- {
		start := first.AddDate(0, -i, 0)
		end := start.AddDate(0, 1, 0)
		n := 0
		for _, p := range posts {
			if !p.Date.Before(start) && p.Date.Before(end) {
				n++
			}
		}
		out = append(out, MonthlyCount{Label: start.Format("Jan 2006"), Count: n})
	}
	return out
}

// GrowthRate compares the last 30 days with half of the 60 days before.
func GrowthRate(recent, older int) int {
	half := float64(older) / 2
	denom := half
	if denom == 0 {
		denom = 1
	}
	return Round(100 * (float64(recent) - half) / denom)
}

// Round rounds half up, like JavaScript's Math.round.
func Round(x float64) int {
	return int(math.Floor(x + 0.5))
}
