package analysis

import "strings"

var (
	resolvedKeywords = []string{"çözüldü", "cozuldu", "resolved", "solved", "yanıtlandı", "cevaplandı"}

	// negated forms; "unresolved" also contains "resolved" so it must be listed here
	unresolvedKeywords = []string{
		"çözülmedi", "cozulmedi", "not resolved", "unresolved", "not solved",
		"yanıtlanmadı", "cevaplanmadı",
	}
)

// DetectResolved reports whether a complaint reads as resolved. marker is the
// source specific structural signal (badge, company reply) and wins outright.
// The free-text path requires a resolution keyword and no negated form.
func DetectResolved(marker bool, text string) bool {
	if marker {
		return true
	}
	low := strings.ToLower(text)
	if countHits(low, unresolvedKeywords) > 0 {
		return false
	}
	return countHits(low, resolvedKeywords) > 0
}
