package app

import (
	"maps"
	"time"

	"sitescan/internal/domain"
)

func newResult(runID string, siteID int64, agg domain.SiteAggregate, saved int, took time.Duration) domain.AnalysisResult {
	return domain.AnalysisResult{
		Success:         true,
		RunID:           runID,
		SiteID:          siteID,
		Domain:          agg.Domain,
		SiteName:        agg.SiteName,
		TotalComplaints: agg.TotalComplaints,
		SavedCount:      saved,
		RiskScore:       agg.RiskScore,
		RiskLevel:       agg.RiskLevel,
		Duration:        roundSeconds(took),
		Sources:         maps.Clone(agg.SourceCounts),
		Stats:           agg.Stats,
	}
}

// roundSeconds keeps two decimals.
func roundSeconds(d time.Duration) float64 {
	return float64(d.Round(10*time.Millisecond)) / float64(time.Second)
}
