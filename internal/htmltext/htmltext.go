// Package htmltext turns WordPress HTML fragments into plain text.
//
// The tag pattern is deliberately non-validating: malformed markup such as an
// unclosed "<" is left in place rather than parsed. Tags are removed without
// a separator, so adjacent block elements run together ("<p>a</p><p>b</p>"
// becomes "ab").
package htmltext

import (
	"regexp"
	"strings"
)

var (
	tagPattern       = regexp.MustCompile(`<[^>]*>`)
	entityPattern    = regexp.MustCompile(`&(#[0-9]+|#[xX][0-9a-fA-F]+|[a-zA-Z][a-zA-Z0-9]*);`)
	whitespaceRunner = regexp.MustCompile(`\s+`)
)

var namedEntities = map[string]string{
	"&nbsp;": " ",
	"&amp;":  "&",
	"&lt;":   "<",
	"&gt;":   ">",
	"&quot;": `"`,
}

// StripTags removes tags, decodes the five common named entities, drops every
// other entity and collapses whitespace.
func StripTags(html string) string {
	if html == "" {
		return ""
	}
	s := tagPattern.ReplaceAllString(html, "")
	s = entityPattern.ReplaceAllStringFunc(s, func(ent string) string {
		if repl, ok := namedEntities[ent]; ok {
			return repl
		}
		return ""
	})
	s = whitespaceRunner.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// WordCount counts whitespace-separated words after stripping.
func WordCount(html string) int {
	return len(strings.Fields(StripTags(html)))
}
