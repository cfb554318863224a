package domain

import (
	"strings"
	"time"
)

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// ParseSentiment maps a stored label back to a Sentiment; anything unknown is neutral.
func ParseSentiment(s string) Sentiment {
	switch Sentiment(strings.ToLower(strings.TrimSpace(s))) {
	case SentimentPositive:
		return SentimentPositive
	case SentimentNegative:
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}

// Complaint is one normalized complaint/review regardless of where it came from.
type Complaint struct {
	Title      string
	Content    string
	Author     string
	Date       *time.Time
	Rating     *int
	Sentiment  Sentiment
	URL        string
	Source     string // set by the analysis service, never by an adapter
	IsResolved bool
	FromCache  bool
}

// Source names used for tagging, cache keys and history rows.
const (
	SourceSikayetvar    = "sikayetvar"
	SourceTrustpilot    = "trustpilot"
	SourceGoogleReviews = "google_reviews"
)
