package llm

import (
	"encoding/json"
	"strings"
)

// ParseKind tags the outcome of ParseJSON.
type ParseKind int

const (
	// ParseFailed means no JSON object or array could be decoded.
	ParseFailed ParseKind = iota
	ParseObject
	ParseArray
)

// ParseResult is the validated shape of a model response. Raw always holds
// the original text so callers can fall back to it.
type ParseResult struct {
	Kind   ParseKind
	Object map[string]any
	Array  []any
	Raw    string
	Err    error
}

// OK reports whether the response decoded to an object or array.
func (r ParseResult) OK() bool { return r.Kind != ParseFailed }

// ParseJSON decodes a JSON object or array from a model response. Markdown
// code fences are stripped wherever they appear, and surrounding prose is
// ignored.
func ParseJSON(text string) ParseResult {
	res := ParseResult{Raw: text}
	body := strings.TrimSpace(stripFences(text))
	if body == "" {
		return res
	}

	for _, candidate := range []string{body, enclosed(body)} {
		if candidate == "" {
			continue
		}
		var v any
		if err := json.Unmarshal([]byte(candidate), &v); err != nil {
			res.Err = err
			continue
		}
		switch val := v.(type) {
		case map[string]any:
			res.Kind, res.Object, res.Err = ParseObject, val, nil
			return res
		case []any:
			res.Kind, res.Array, res.Err = ParseArray, val, nil
			return res
		}
	}
	return res
}

// stripFences returns the content of the first fenced block, or text when
// there is none.
func stripFences(text string) string {
	start := strings.Index(text, "```")
	if start < 0 {
		return text
	}
	rest := text[start+3:]
	// Skip the info string (e.g. "json").
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[nl+1:]
	}
	if end := strings.Index(rest, "```"); end >= 0 {
		rest = rest[:end]
	}
	return rest
}

// enclosed cuts text down to the outermost JSON array or object.
func enclosed(text string) string {
	start := strings.IndexAny(text, "[{")
	if start < 0 {
		return ""
	}
	closer := byte('}')
	if text[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(text, closer)
	if end <= start {
		return ""
	}
	return text[start : end+1]
}
