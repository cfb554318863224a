package analysis

import (
	"math"

	"sitescan/internal/domain"
)

// ComputeRisk scores a complaint set on [0,100]:
//
//	clamp(0, 100, round(80*neg_ratio - 20*pos_ratio + 20))
//
// An empty set scores 0.
func ComputeRisk(records []domain.Complaint) (int, domain.RiskLevel) {
	if len(records) == 0 {
		return 0, domain.RiskLow
	}
	var neg, pos int
	for _, r := range records {
		switch r.Sentiment {
		case domain.SentimentNegative:
			neg++
		case domain.SentimentPositive:
			pos++
		}
	}
	total := float64(len(records))
	raw := 80*(float64(neg)/total) - 20*(float64(pos)/total) + 20
	score := int(math.Round(raw))
	score = max(0, min(100, score))
	return score, LevelForScore(score)
}

func LevelForScore(score int) domain.RiskLevel {
	switch {
	case score >= 75:
		return domain.RiskCritical
	case score >= 50:
		return domain.RiskHigh
	case score >= 25:
		return domain.RiskMedium
	default:
		return domain.RiskLow
	}
}

// Summarize counts sentiment and resolution state.
func Summarize(records []domain.Complaint) domain.Stats {
	var st domain.Stats
	for _, r := range records {
		switch r.Sentiment {
		case domain.SentimentNegative:
			st.Negative++
		case domain.SentimentPositive:
			st.Positive++
		default:
			st.Neutral++
		}
		if r.IsResolved {
			st.Resolved++
		} else {
			st.Unresolved++
		}
	}
	return st
}
