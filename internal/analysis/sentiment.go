package analysis

import (
	"strings"

	"sitescan/internal/domain"
)

var (
	negativeKeywords = []string{
		"kötü", "berbat", "rezalet", "sorun", "problem", "mağdur", "şikayet",
		"terrible", "awful", "worst", "scam", "fraud", "disappointed",
	}
	positiveKeywords = []string{
		"iyi", "güzel", "teşekkür", "memnun", "çözüm", "başarılı",
		"excellent", "great", "thank", "satisfied", "recommend", "helpful",
	}
)

// ClassifySentiment counts how many keywords of each set appear in text
// (case-insensitive substring match) and picks the side with more hits.
func ClassifySentiment(text string) domain.Sentiment {
	low := strings.ToLower(text)
	neg := countHits(low, negativeKeywords)
	pos := countHits(low, positiveKeywords)
	switch {
	case neg > pos:
		return domain.SentimentNegative
	case pos > neg:
		return domain.SentimentPositive
	default:
		return domain.SentimentNeutral
	}
}

// ApplyRating lets an explicit rating override text sentiment: >=4 positive, <=2 negative, 3 keeps s.
func ApplyRating(s domain.Sentiment, rating *int) domain.Sentiment {
	if rating == nil {
		return s
	}
	switch {
	case *rating >= 4:
		return domain.SentimentPositive
	case *rating <= 2:
		return domain.SentimentNegative
	default:
		return s
	}
}

func countHits(text string, keywords []string) int {
	n := 0
	for _, k := range keywords {
		if strings.Contains(text, k) {
			n++
		}
	}
	return n
}
