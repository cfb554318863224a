package sources

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var slugStrip = regexp.MustCompile(`[^a-z0-9-]`)

// dotless ı and dotted İ have no decomposition that ends in plain ASCII
var turkishFold = strings.NewReplacer("ı", "i", "İ", "I")

// slugify turns a company name into a URL slug: "Türk Telekom" -> "turk-telekom".
func slugify(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	s, _, err := transform.String(t, turkishFold.Replace(name))
	if err != nil {
		s = name
	}
	s = strings.ToLower(strings.Join(strings.Fields(s), "-"))
	return slugStrip.ReplaceAllString(s, "")
}
