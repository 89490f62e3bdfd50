package keywords

import (
	"regexp"
	"sort"
	"strings"

	"github.com/TobiSchelling/BlogPulse/internal/htmltext"
	"github.com/TobiSchelling/BlogPulse/internal/wordpress"
)

// minLength is the shortest token kept; shorter tokens are noise.
const minLength = 4

var wordPattern = regexp.MustCompile(`\w+`)

// Frequencies maps a lower-cased keyword to its occurrence count.
type Frequencies map[string]int

// KeywordCount is a keyword with its count.
type KeywordCount struct {
	Keyword string `json:"keyword"`
	Count   int    `json:"count"`
}

// Extract returns the sorted, de-duplicated keyword set of the corpus.
func Extract(posts []wordpress.Post) []string {
	seen := make(map[string]struct{})
	for _, p := range posts {
		for _, tok := range Tokens(postText(p)) {
			seen[tok] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Count computes keyword frequencies across the corpus from scratch.
func Count(posts []wordpress.Post) Frequencies {
	freq := make(Frequencies)
	for _, p := range posts {
		for _, tok := range Tokens(postText(p)) {
			freq[tok]++
		}
	}
	return freq
}

// Top returns the n most frequent keywords, ties broken alphabetically.
func Top(freq Frequencies, n int) []KeywordCount {
	out := make([]KeywordCount, 0, len(freq))
	for k, c := range freq {
		out = append(out, KeywordCount{Keyword: k, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Keyword < out[j].Keyword
	})
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Tokens lower-cases text, splits on word boundaries and drops short tokens
// and stop-words.
func Tokens(text string) []string {
	var out []string
	for _, tok := range wordPattern.FindAllString(strings.ToLower(text), -1) {
		if len(tok) < minLength {
			continue
		}
		if IsStopWord(tok) {
			continue
		}
		out = append(out, tok)
	}
	return out
}

// IsStopWord reports whether w is a common English function word.
func IsStopWord(w string) bool {
	_, ok := stopWords[w]
	return ok
}

func postText(p wordpress.Post) string {
	return htmltext.StripTags(p.Title) + " " + htmltext.StripTags(p.Content)
}

var stopWords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`
		about above after again against also although among another around
		because been before being below between both cannot could couldn
		does doesn doing down during each either else even every from further
		have haven having hence here hers herself himself however into itself
		just like more most much must myself neither once only other others
		ought ours ourselves over same shall should shouldn since some such
		than that their theirs them themselves then there therefore these they
		this those though through thus under until upon very were weren what
		whatever when whenever where whereas wherever whether which while whom
		whose will with within without would wouldn your yours yourself
		yourselves`) {
		stopWords[w] = struct{}{}
	}
}
