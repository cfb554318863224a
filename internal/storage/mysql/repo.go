package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"sitescan/internal/domain"
)

func valStr(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}
func valInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}
func valTime(p *time.Time) any {
	if p == nil {
		return nil
	}
	return p.UTC()
}

// Repo is the MySQL SiteRepository.
type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

func (r *Repo) Ping(ctx context.Context) error { return r.db.PingContext(ctx) }

func (r *Repo) GetOrCreateSite(ctx context.Context, host string) (int64, error) {
	res, err := r.db.ExecContext(ctx, upsertSiteSQL, host)
	if err != nil {
		return 0, fmt.Errorf("upsert site %s: %w", host, err)
	}
	if id, err := res.LastInsertId(); err == nil && id > 0 {
		return id, nil
	}
	var id int64
	if err := r.db.QueryRowContext(ctx, selectSiteIDSQL, host).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, domain.ErrNotFound
		}
		return 0, fmt.Errorf("select site %s: %w", host, err)
	}
	return id, nil
}

func (r *Repo) SaveComplaint(ctx context.Context, siteID int64, c domain.Complaint) error {
	_, err := r.db.ExecContext(ctx, insertComplaintSQL,
		siteID,
		c.Source,
		c.Title,
		c.Content,
		valStr(c.Author),
		valTime(c.Date),
		valInt(c.Rating),
		string(c.Sentiment),
		valStr(c.URL),
		c.IsResolved,
	)
	return err
}

func (r *Repo) UpdateSiteRiskScore(ctx context.Context, siteID int64, score int) error {
	res, err := r.db.ExecContext(ctx, updateRiskSQL, score, siteID)
	if err != nil {
		return err
	}
	// RowsAffected is 0 when the score did not change, so only a missing row is an error here.
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		var id int64
		if err := r.db.QueryRowContext(ctx, `SELECT id FROM sites WHERE id = ?`, siteID).Scan(&id); errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
	}
	return nil
}

func (r *Repo) SaveScrapingHistory(ctx context.Context, h domain.ScrapeHistory) error {
	_, err := r.db.ExecContext(ctx, insertHistorySQL,
		h.SiteID,
		h.Source,
		string(h.Status),
		h.RecordsFound,
		h.Duration.Milliseconds(),
		valStr(h.ErrorMessage),
	)
	return err
}
