package domain

import "time"

type RiskLevel string

const (
	RiskLow      RiskLevel = "Low"
	RiskMedium   RiskLevel = "Medium"
	RiskHigh     RiskLevel = "High"
	RiskCritical RiskLevel = "Critical"
)

type HistoryStatus string

const (
	StatusSuccess HistoryStatus = "Success"
	StatusFailed  HistoryStatus = "Failed"
)

// Stats are per-run counters derived from the aggregated complaints.
type Stats struct {
	Negative   int `json:"negative"`
	Positive   int `json:"positive"`
	Neutral    int `json:"neutral"`
	Resolved   int `json:"resolved"`
	Unresolved int `json:"unresolved"`
}

// SiteAggregate is computed once per run and never mutated after it is returned.
type SiteAggregate struct {
	Domain          string
	SiteName        string
	TotalComplaints int
	RiskScore       int
	RiskLevel       RiskLevel
	SourceCounts    map[string]int
	Stats           Stats
}

type ScrapeHistory struct {
	SiteID       int64
	Source       string
	Status       HistoryStatus
	RecordsFound int
	Duration     time.Duration
	ErrorMessage string
}

// AnalysisResult is the entry point payload returned to callers.
type AnalysisResult struct {
	Success         bool           `json:"success"`
	RunID           string         `json:"run_id"`
	SiteID          int64          `json:"site_id"`
	Domain          string         `json:"domain"`
	SiteName        string         `json:"site_name"`
	TotalComplaints int            `json:"total_complaints"`
	SavedCount      int            `json:"saved_count"`
	RiskScore       int            `json:"risk_score"`
	RiskLevel       RiskLevel      `json:"risk_level"`
	Duration        float64        `json:"duration"` // seconds
	Sources         map[string]int `json:"sources"`
	Stats           Stats          `json:"stats"`
}
