// Package treatment matches configured treatments (service offerings) against
// the post corpus.
//
// The match rule is a coarse heuristic and over-matches treatments with a single
// distinguishing word: any post mentioning that word together with a locale
// marker counts. Run history compares frequencies across runs, so the rule
// must stay stable.
package treatment

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/TobiSchelling/BlogPulse/internal/htmltext"
	"github.com/TobiSchelling/BlogPulse/internal/wordpress"
)

// DefaultLocaleSuffix is stripped from the end of a treatment name.
const DefaultLocaleSuffix = "in Turkey"

// DefaultLocaleMarkers is the canonical marker set. A post must mention one
// of them to count as a match.
var DefaultLocaleMarkers = []string{"turkey", "turkiye", "türkiye", "istanbul", "antalya", "izmir"}

var (
	wordPattern    = regexp.MustCompile(`\w+`)
	specialPattern = regexp.MustCompile(`[^a-z0-9\s]+`)
	spacePattern   = regexp.MustCompile(`\s+`)
)

// Match is the set of posts covering one treatment.
type Match struct {
	Treatment string           `json:"treatment"`
	Posts     []wordpress.Post `json:"-"`
	Frequency int              `json:"frequency"`
}

// Options tunes the matcher. Zero values use the defaults.
type Options struct {
	LocaleSuffix  string
	LocaleMarkers []string
}

func (o Options) withDefaults() Options {
	if o.LocaleSuffix == "" {
		o.LocaleSuffix = DefaultLocaleSuffix
	}
	if len(o.LocaleMarkers) == 0 {
		o.LocaleMarkers = DefaultLocaleMarkers
	}
	markers := make([]string, len(o.LocaleMarkers))
	for i, m := range o.LocaleMarkers {
		markers[i] = strings.ToLower(m)
	}
	o.LocaleMarkers = markers
	return o
}

// Analyze returns one Match per treatment, sorted by frequency descending.
// Equal frequencies keep the input order.
func Analyze(posts []wordpress.Post, treatments []string, opts Options) []Match {
	opts = opts.withDefaults()

	docs := make([]document, len(posts))
	for i, p := range posts {
		docs[i] = newDocument(p)
	}

	matches := make([]Match, 0, len(treatments))
	for _, t := range treatments {
		variants := Variants(BasePhrase(t, opts.LocaleSuffix))
		m := Match{Treatment: t}
		for i, d := range docs {
			if d.matches(variants, opts.LocaleMarkers) {
				m.Posts = append(m.Posts, posts[i])
			}
		}
		m.Frequency = len(m.Posts)
		matches = append(matches, m)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Frequency > matches[j].Frequency
	})
	return matches
}

// Gaps returns the treatments with fewer than two matching posts, in the
// order of matches.
func Gaps(matches []Match) []string {
	var gaps []string
	for _, m := range matches {
		if m.Frequency < 2 {
			gaps = append(gaps, m.Treatment)
		}
	}
	return gaps
}

// BasePhrase strips the trailing locale suffix, case-insensitively. The
// suffix must be preceded by whitespace.
func BasePhrase(treatment, suffix string) string {
	t := strings.TrimSpace(treatment)
	suffix = strings.TrimSpace(suffix)
	if suffix == "" {
		return t
	}
	runes := []rune(t)
	n := utf8.RuneCountInString(suffix)
	if len(runes) <= n {
		return t
	}
	head, tail := runes[:len(runes)-n], string(runes[len(runes)-n:])
	if strings.EqualFold(tail, suffix) && unicode.IsSpace(head[len(head)-1]) {
		return strings.TrimSpace(string(head))
	}
	return t
}

// Variants derives the lower-cased keyword variants of a base phrase: the exact
// phrase, the space-normalized phrase and the phrase without special characters.
func Variants(base string) []string {
	lower := strings.ToLower(base)
	candidates := []string{
		lower,
		strings.TrimSpace(spacePattern.ReplaceAllString(lower, " ")),
		strings.TrimSpace(spacePattern.ReplaceAllString(specialPattern.ReplaceAllString(lower, " "), " ")),
	}

	var out []string
	seen := make(map[string]struct{})
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

// SignificantWords returns the words of a variant longer than two characters.
func SignificantWords(variant string) []string {
	var out []string
	for _, w := range strings.Fields(variant) {
		if len(w) > 2 {
			out = append(out, w)
		}
	}
	return out
}

type document struct {
	title         string
	content       string
	titleTokens   map[string]struct{}
	contentTokens map[string]struct{}
}

func newDocument(p wordpress.Post) document {
	title := strings.ToLower(htmltext.StripTags(p.Title))
	content := strings.ToLower(htmltext.StripTags(p.Content))
	return document{
		title:         title,
		content:       content,
		titleTokens:   tokenSet(title),
		contentTokens: tokenSet(content),
	}
}

func (d document) matches(variants, markers []string) bool {
	if !d.hasMarker(markers) {
		return false
	}
	for _, v := range variants {
		words := SignificantWords(v)
		if len(words) == 0 {
			continue
		}
		if strings.Contains(d.title, v) && countPresent(words, d.titleTokens) == len(words) {
			return true
		}
		need := 2
		if len(words) < need {
			need = len(words)
		}
		if countPresent(words, d.contentTokens) >= need {
			return true
		}
	}
	return false
}

func (d document) hasMarker(markers []string) bool {
	for _, m := range markers {
		if strings.Contains(d.title, m) || strings.Contains(d.content, m) {
			return true
		}
	}
	return false
}

func tokenSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range wordPattern.FindAllString(text, -1) {
		set[tok] = struct{}{}
	}
	return set
}

// countPresent counts words found in the token set. Words containing
// non-word characters (e.g. "e-max") are checked as their \w+ parts.
func countPresent(words []string, tokens map[string]struct{}) int {
	n := 0
	for _, w := range words {
		parts := wordPattern.FindAllString(w, -1)
		if len(parts) == 0 {
			continue
		}
		all := true
		for _, p := range parts {
			if _, ok := tokens[p]; !ok {
				all = false
				break
			}
		}
		if all {
			n++
		}
	}
	return n
}
