package domain

import (
	"context"
	"errors"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidTarget = errors.New("invalid target url")
)

// SiteRepository is the persistence collaborator. Implementations must be safe for concurrent use.
type SiteRepository interface {
	GetOrCreateSite(ctx context.Context, domain string) (int64, error)
	SaveComplaint(ctx context.Context, siteID int64, c Complaint) error
	UpdateSiteRiskScore(ctx context.Context, siteID int64, score int) error
	SaveScrapingHistory(ctx context.Context, h ScrapeHistory) error
}

// CacheStore keeps the last successful fetch per (domain, source).
// Check treats any read problem as a miss; every record it returns has FromCache set.
// Save is a no-op for an empty list.
type CacheStore interface {
	Check(ctx context.Context, domain, source string) ([]Complaint, bool)
	Save(ctx context.Context, domain, source, siteName string, records []Complaint) error
}

// CacheInvalidator drops the entry of one (domain, source); a missing entry is not an error.
type CacheInvalidator interface {
	Del(ctx context.Context, domain, source string) error
}

// Source fetches and normalizes complaints from one external site.
// Scrape never returns an error: failures are logged and whatever was collected is returned.
type Source interface {
	Name() string
	Scrape(ctx context.Context, domain, siteName string) []Complaint
}
