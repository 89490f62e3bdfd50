package advisor

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log"
	"strings"

	"github.com/TobiSchelling/BlogPulse/internal/llm"
	"github.com/TobiSchelling/BlogPulse/internal/stats"
)

// Source tells where generated content came from.
type Source string

const (
	SourceAI       Source = "ai"
	SourceFallback Source = "fallback"
)

// Suggestion is one proposed blog post.
type Suggestion struct {
	Title     string `json:"title"`
	Keyword   string `json:"keyword"`
	Treatment string `json:"treatment,omitempty"`
	Rationale string `json:"rationale,omitempty"`
	Priority  string `json:"priority"`
}

// Recommendations is the result of Recommend.
type Recommendations struct {
	Suggestions []Suggestion `json:"suggestions"`
	Source      Source       `json:"source"`
	// Reason is set when the fallback was used.
	Reason string `json:"reason,omitempty"`
}

// Summary is the result of Summarize.
type Summary struct {
	Text   string `json:"text"`
	Source Source `json:"source"`
}

// Recommend asks the model for post suggestions. Failed calls and
// unparseable answers fall back to FallbackSuggestions. Only an
// authentication failure is returned as an error.
func (a *Advisor) Recommend(ctx context.Context, d stats.Dashboard) (Recommendations, error) {
	text, err := a.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: systemPrompt},
			{Role: llm.RoleUser, Content: RecommendPrompt(d)},
		},
	})
	if err != nil {
		if errors.Is(err, llm.ErrUnauthorized) || ctx.Err() != nil {
			return Recommendations{}, err
		}
		log.Printf("Using local suggestions: %v", err)
		return fallback(d.Gaps, err.Error()), nil
	}

	suggestions, err := parseSuggestions(llm.ParseJSON(text))
	if err != nil {
		log.Printf("Using local suggestions: %v", err)
		return fallback(d.Gaps, err.Error()), nil
	}
	return Recommendations{Suggestions: suggestions, Source: SourceAI}, nil
}

func fallback(gaps []string, reason string) Recommendations {
	return Recommendations{Suggestions: FallbackSuggestions(gaps), Source: SourceFallback, Reason: reason}
}

// parseSuggestions accepts an array of suggestions or an object holding one
// under "suggestions". Elements without a title are dropped.
func parseSuggestions(res llm.ParseResult) ([]Suggestion, error) {
	var items []any
	switch res.Kind {
	case llm.ParseArray:
		items = res.Array
	case llm.ParseObject:
		arr, ok := res.Object["suggestions"].([]any)
		if !ok {
			return nil, errors.New("response object has no suggestions array")
		}
		items = arr
	default:
		if res.Err != nil {
			return nil, fmt.Errorf("response is not JSON: %w", res.Err)
		}
		return nil, errors.New("response is not JSON")
	}

	var out []Suggestion
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		s := Suggestion{
			Title:     stringField(obj, "title"),
			Keyword:   stringField(obj, "keyword"),
			Treatment: stringField(obj, "treatment"),
			Rationale: stringField(obj, "rationale"),
			Priority:  normalizePriority(stringField(obj, "priority")),
		}
		if s.Title == "" {
			continue
		}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil, errors.New("response contained no usable suggestions")
	}
	return out, nil
}

func stringField(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return strings.TrimSpace(s)
}

func normalizePriority(p string) string {
	switch strings.ToLower(p) {
	case "high", "medium", "low":
		return strings.ToLower(p)
	default:
		return "medium"
	}
}

// FallbackSuggestions builds suggestions from the gap list alone. It never
// touches the network and returns the same output for the same input.
func FallbackSuggestions(gaps []string) []Suggestion {
	if len(gaps) == 0 {
		return []Suggestion{
			{Title: "Refresh your five most-read posts with current prices and patient FAQs", Keyword: "treatment prices", Priority: "medium",
				Rationale: "Every configured treatment is covered; updating existing posts keeps rankings fresh."},
			{Title: "Publish a patient journey story with before-and-after timeline", Keyword: "patient experience", Priority: "low",
				Rationale: "First-hand stories build trust and earn long-tail traffic."},
		}
	}

	var out []Suggestion
	for i, gap := range gaps {
		priority := "medium"
		if i < 3 {
			priority = "high"
		}
		kw := strings.ToLower(gap)
		out = append(out,
			Suggestion{
				Title:     fmt.Sprintf("The Complete Guide to %s", gap),
				Keyword:   kw,
				Treatment: gap,
				Rationale: fmt.Sprintf("The blog has fewer than two posts about %s.", gap),
				Priority:  priority,
			},
			Suggestion{
				Title:     fmt.Sprintf("%s: Costs, Clinics and Recovery Explained", gap),
				Keyword:   kw + " cost",
				Treatment: gap,
				Rationale: "Price and recovery questions are the most common searches before booking.",
				Priority:  "medium",
			},
		)
	}
	return out
}

// Summarize asks for an executive summary and falls back to LocalSummary.
// Only an authentication failure is returned as an error.
func (a *Advisor) Summarize(ctx context.Context, d stats.Dashboard) (Summary, error) {
	text, err := a.Complete(ctx, llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: systemPrompt},
			{Role: llm.RoleUser, Content: SummaryPrompt(d)},
		},
	})
	if err != nil {
		if errors.Is(err, llm.ErrUnauthorized) || ctx.Err() != nil {
			return Summary{}, err
		}
		log.Printf("Using local summary: %v", err)
		return Summary{Text: LocalSummary(d), Source: SourceFallback}, nil
	}
	return Summary{Text: strings.TrimSpace(text), Source: SourceAI}, nil
}

// LocalSummary describes the dashboard without a model.
func LocalSummary(d stats.Dashboard) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The blog has %d posts with an average of %d words. ", d.PostCount, d.AvgWordsPerPost)
	fmt.Fprintf(&b, "%d posts were published in the last 30 days (growth %d%%). ", d.PublicationTrend.Last30Days, d.GrowthRate)
	switch len(d.Gaps) {
	case 0:
		b.WriteString("Every configured treatment has at least two posts.")
	case 1:
		fmt.Fprintf(&b, "One treatment lacks coverage: %s.", d.Gaps[0])
	default:
		fmt.Fprintf(&b, "%d treatments lack coverage (gap rate %d%%): %s.", len(d.Gaps), d.ContentGapRate, strings.Join(d.Gaps, ", "))
	}
	return b.String()
}

// Ask continues a conversation. The system prompt is prepended unless the
// history already starts with one.
func (a *Advisor) Ask(ctx context.Context, history []llm.Message) (string, error) {
	if len(history) == 0 {
		return "", errors.New("empty conversation")
	}
	return a.Complete(ctx, llm.Request{Messages: withSystem(history)})
}

// AskStream is Ask with a streamed answer.
func (a *Advisor) AskStream(ctx context.Context, history []llm.Message) iter.Seq2[string, error] {
	return a.Stream(ctx, llm.Request{Messages: withSystem(history)})
}

func withSystem(history []llm.Message) []llm.Message {
	if len(history) > 0 && history[0].Role == llm.RoleSystem {
		return history
	}
	return append([]llm.Message{{Role: llm.RoleSystem, Content: systemPrompt}}, history...)
}
