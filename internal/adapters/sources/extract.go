package sources

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"sitescan/internal/analysis"
)

// Extraction is written as ordered strategy lists: each strategy either
// finds something or passes to the next one.

// nodePick selects candidate nodes below s; an empty selection means "not found".
type nodePick func(s *goquery.Selection) *goquery.Selection

// textPick extracts a value below s.
type textPick func(s *goquery.Selection) (string, bool)

func firstNodes(s *goquery.Selection, picks ...nodePick) *goquery.Selection {
	for _, p := range picks {
		if n := p(s); n.Length() > 0 {
			return n
		}
	}
	return s.Slice(0, 0)
}

func firstText(s *goquery.Selection, picks ...textPick) (string, bool) {
	for _, p := range picks {
		if v, ok := p(s); ok {
			return v, true
		}
	}
	return "", false
}

func css(sel string) nodePick {
	return func(s *goquery.Selection) *goquery.Selection { return s.Find(sel) }
}

// classLike matches tag elements whose class attribute matches re.
func classLike(tag string, re *regexp.Regexp) nodePick {
	return func(s *goquery.Selection) *goquery.Selection {
		return s.Find(tag).FilterFunction(func(_ int, n *goquery.Selection) bool {
			return re.MatchString(n.AttrOr("class", ""))
		})
	}
}

// textOf takes the cleaned text of the first node with at least minRunes runes.
func textOf(p nodePick, minRunes int) textPick {
	return func(s *goquery.Selection) (string, bool) {
		var out string
		p(s).EachWithBreak(func(_ int, n *goquery.Selection) bool {
			t := analysis.CleanText(n.Text())
			if t != "" && utf8.RuneCountInString(t) >= minRunes {
				out = t
				return false
			}
			return true
		})
		return out, out != ""
	}
}

// attrOrText reads the first node's attributes in order, then its text.
func attrOrText(p nodePick, attrs ...string) textPick {
	return func(s *goquery.Selection) (string, bool) {
		n := p(s).First()
		if n.Length() == 0 {
			return "", false
		}
		for _, a := range attrs {
			if v := strings.TrimSpace(n.AttrOr(a, "")); v != "" {
				return v, true
			}
		}
		t := analysis.CleanText(n.Text())
		return t, t != ""
	}
}

func attrOf(p nodePick, attr string) textPick {
	return func(s *goquery.Selection) (string, bool) {
		var out string
		p(s).EachWithBreak(func(_ int, n *goquery.Selection) bool {
			out = strings.TrimSpace(n.AttrOr(attr, ""))
			return out == ""
		})
		return out, out != ""
	}
}

// absURL resolves href against base; "" if href is empty or unparseable.
func absURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	b, err := url.Parse(base)
	if err != nil {
		return ""
	}
	h, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return b.ResolveReference(h).String()
}

func parseDoc(body []byte) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(bytes.NewReader(body))
}
