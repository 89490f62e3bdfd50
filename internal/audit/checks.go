package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

// Core Web Vitals "good" thresholds.
const (
	goodLCP = 2500.0
	goodCLS = 0.1
	goodTBT = 200.0
)

func percent(n, total int) int {
	if total == 0 {
		return 100
	}
	return int(math.Floor(100*float64(n)/float64(total) + 0.5))
}

func checkImages(p *page) CheckResult {
	var total, withAlt, unsized, eager int
	p.doc.Find("img").Each(func(i int, s *goquery.Selection) {
		total++
		if alt, ok := s.Attr("alt"); ok && strings.TrimSpace(alt) != "" {
			withAlt++
		}
		_, hasW := s.Attr("width")
		_, hasH := s.Attr("height")
		if !hasW || !hasH {
			unsized++
		}
		// The first image is usually above the fold.
		if loading, _ := s.Attr("loading"); i > 0 && loading != "lazy" {
			eager++
		}
	})

	res := CheckResult{Score: percent(withAlt, total), Passed: withAlt == total}
	if total == 0 {
		res.Findings = append(res.Findings, "page has no images")
		return res
	}
	if missing := total - withAlt; missing > 0 {
		res.Findings = append(res.Findings, fmt.Sprintf("%d of %d images have no alt text", missing, total))
	}
	if unsized > 0 {
		res.Findings = append(res.Findings, fmt.Sprintf("%d images lack width/height attributes", unsized))
	}
	if eager > 0 {
		res.Findings = append(res.Findings, fmt.Sprintf("%d below-the-fold images are not lazy-loaded", eager))
	}
	return res
}

func checkSemantic(p *page) CheckResult {
	var findings []string
	passed := 0
	const criteria = 5

	title := strings.TrimSpace(p.doc.Find("head title").First().Text())
	switch n := len([]rune(title)); {
	case n == 0:
		findings = append(findings, "missing <title>")
	case n < 10 || n > 60:
		findings = append(findings, fmt.Sprintf("title is %d characters (aim for 10-60)", n))
	default:
		passed++
	}

	desc, _ := p.doc.Find(`meta[name="description"]`).First().Attr("content")
	switch n := len([]rune(strings.TrimSpace(desc))); {
	case n == 0:
		findings = append(findings, "missing meta description")
	case n < 50 || n > 160:
		findings = append(findings, fmt.Sprintf("meta description is %d characters (aim for 50-160)", n))
	default:
		passed++
	}

	if h1 := p.doc.Find("h1").Length(); h1 == 1 {
		passed++
	} else {
		findings = append(findings, fmt.Sprintf("page has %d <h1> elements (want exactly 1)", h1))
	}

	skipped := ""
	prev := 0
	p.doc.Find("h1, h2, h3, h4, h5, h6").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		level := int(goquery.NodeName(s)[1] - '0')
		if prev > 0 && level > prev+1 {
			skipped = fmt.Sprintf("heading level jumps from h%d to h%d", prev, level)
			return false
		}
		prev = level
		return true
	})
	if skipped == "" {
		passed++
	} else {
		findings = append(findings, skipped)
	}

	if p.doc.Find("main, article").Length() > 0 {
		passed++
	} else {
		findings = append(findings, "no <main> or <article> landmark")
	}

	score := percent(passed, criteria)
	return CheckResult{Score: score, Passed: score >= 80, Findings: findings}
}

func checkMobile(p *page) CheckResult {
	content, ok := p.doc.Find(`meta[name="viewport"]`).First().Attr("content")
	if !ok {
		return CheckResult{Score: 0, Findings: []string{"missing viewport meta tag"}}
	}

	props := make(map[string]string)
	for _, part := range strings.Split(content, ",") {
		k, v, _ := strings.Cut(part, "=")
		props[strings.ToLower(strings.TrimSpace(k))] = strings.ToLower(strings.TrimSpace(v))
	}

	var findings []string
	score := 100
	if props["width"] != "device-width" {
		findings = append(findings, "viewport width is not device-width")
		score -= 50
	}
	if props["user-scalable"] == "no" || props["user-scalable"] == "0" || props["maximum-scale"] == "1" || props["maximum-scale"] == "1.0" {
		findings = append(findings, "viewport disables zooming")
		score -= 25
	}
	return CheckResult{Score: score, Passed: props["width"] == "device-width", Findings: findings}
}

func checkSchema(p *page) CheckResult {
	var types, findings []string
	valid, invalid := 0, 0
	p.doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		var v any
		if err := json.Unmarshal([]byte(s.Text()), &v); err != nil {
			invalid++
			findings = append(findings, fmt.Sprintf("invalid JSON-LD block: %v", err))
			return
		}
		valid++
		types = append(types, schemaTypes(v)...)
	})

	switch {
	case valid == 0 && invalid == 0:
		return CheckResult{Score: 0, Findings: []string{"no structured data (JSON-LD) found"}}
	case valid == 0:
		return CheckResult{Score: 0, Findings: findings}
	}
	if len(types) > 0 {
		findings = append(findings, "schema types: "+strings.Join(types, ", "))
	}
	score := 100
	if invalid > 0 {
		score = 50
	}
	return CheckResult{Score: score, Passed: true, Findings: findings}
}

// schemaTypes collects @type values, descending into @graph and arrays.
func schemaTypes(v any) []string {
	var out []string
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			out = append(out, schemaTypes(item)...)
		}
	case map[string]any:
		switch typ := t["@type"].(type) {
		case string:
			out = append(out, typ)
		case []any:
			for _, x := range typ {
				if s, ok := x.(string); ok {
					out = append(out, s)
				}
			}
		}
		if g, ok := t["@graph"]; ok {
			out = append(out, schemaTypes(g)...)
		}
	}
	return out
}

// checkLinks walks the raw markup with the tokenizer so it sees every anchor,
// including those inside malformed fragments the DOM parser would move.
func checkLinks(p *page) CheckResult {
	z := html.NewTokenizer(bytes.NewReader(p.body))

	var internal, external, nofollow, empty int
	inAnchor := false
	var anchorText strings.Builder

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if z.Err() != io.EOF {
				return CheckResult{Err: fmt.Sprintf("tokenizing page: %v", z.Err())}
			}
			break
		}
		switch tt {
		case html.StartTagToken:
			tok := z.Token()
			if tok.Data == "img" && inAnchor {
				anchorText.WriteString("[img]")
				continue
			}
			if tok.Data != "a" {
				continue
			}
			var href, rel string
			for _, attr := range tok.Attr {
				switch attr.Key {
				case "href":
					href = attr.Val
				case "rel":
					rel = attr.Val
				}
			}
			if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "tel:") {
				continue
			}
			target, err := p.url.Parse(href)
			if err != nil {
				continue
			}
			if sameSite(target, p.url) {
				internal++
			} else {
				external++
			}
			if strings.Contains(rel, "nofollow") {
				nofollow++
			}
			inAnchor = true
			anchorText.Reset()
		case html.TextToken:
			if inAnchor {
				anchorText.Write(z.Text())
			}
		case html.SelfClosingTagToken:
			if inAnchor {
				// <img> inside an anchor counts as content.
				if name, _ := z.TagName(); string(name) == "img" {
					anchorText.WriteString("[img]")
				}
			}
		case html.EndTagToken:
			if name, _ := z.TagName(); string(name) == "a" && inAnchor {
				if strings.TrimSpace(anchorText.String()) == "" {
					empty++
				}
				inAnchor = false
			}
		}
	}

	var findings []string
	score := 100
	if internal == 0 {
		findings = append(findings, "no internal links")
		score -= 30
	}
	if empty > 0 {
		findings = append(findings, fmt.Sprintf("%d links have no anchor text", empty))
		score -= min(50, 10*empty)
	}
	findings = append(findings, fmt.Sprintf("%d internal, %d external, %d nofollow links", internal, external, nofollow))
	return CheckResult{Score: max(0, score), Passed: internal > 0 && empty == 0, Findings: findings}
}

func sameSite(a, b *url.URL) bool {
	ha := strings.TrimPrefix(strings.ToLower(a.Hostname()), "www.")
	hb := strings.TrimPrefix(strings.ToLower(b.Hostname()), "www.")
	return ha == hb
}

func checkContent(p *page) CheckResult {
	article, err := readability.FromReader(bytes.NewReader(p.body), p.url)
	if err != nil {
		return CheckResult{Err: fmt.Sprintf("extracting main content: %v", err)}
	}
	words := len(strings.Fields(article.TextContent))
	res := CheckResult{
		Score:  min(100, percent(words, minContentWords)),
		Passed: words >= minContentWords,
	}
	res.Findings = append(res.Findings, fmt.Sprintf("main content has %d words", words))
	if !res.Passed {
		res.Findings = append(res.Findings, fmt.Sprintf("thin content (under %d words)", minContentWords))
	}
	return res
}

func (a *Auditor) checkVitals(ctx context.Context, p *page) CheckResult {
	m, err := a.metrics.Run(ctx, p.url.String(), a.strategy)
	if err != nil {
		return CheckResult{Err: err.Error()}
	}

	var findings []string
	good := true
	if m.LCP > goodLCP {
		good = false
		findings = append(findings, fmt.Sprintf("LCP %.0f ms exceeds %.0f ms", m.LCP, goodLCP))
	}
	if m.CLS > goodCLS {
		good = false
		findings = append(findings, fmt.Sprintf("CLS %.2f exceeds %.1f", m.CLS, goodCLS))
	}
	if m.TBT > goodTBT {
		good = false
		findings = append(findings, fmt.Sprintf("TBT %.0f ms exceeds %.0f ms", m.TBT, goodTBT))
	}
	findings = append(findings, fmt.Sprintf("performance score %d (FCP %.0f ms)", m.Score, m.FCP))
	return CheckResult{Score: m.Score, Passed: good, Findings: findings}
}
