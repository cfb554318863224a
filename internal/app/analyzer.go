package app

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"sitescan/internal/adapters/observability"
	"sitescan/internal/analysis"
	"sitescan/internal/domain"
)

type AnalysisService struct {
	repo    domain.SiteRepository
	sources []domain.Source
	timeout time.Duration
}

// NewAnalysisService runs sources in the given order; timeout <= 0 disables the per-run deadline.
func NewAnalysisService(r domain.SiteRepository, sources []domain.Source, timeout time.Duration) *AnalysisService {
	return &AnalysisService{repo: r, sources: sources, timeout: timeout}
}

// ParseTarget reduces a URL (or bare host) to its domain and a display name:
// "https://www.example.com.tr/x" -> ("example.com.tr", "Example").
func ParseTarget(rawURL string) (host, siteName string, err error) {
	s := strings.TrimSpace(rawURL)
	if s == "" {
		return "", "", domain.ErrInvalidTarget
	}
	if !strings.Contains(s, "://") {
		s = "http://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", domain.ErrInvalidTarget, err)
	}
	host = strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if host == "" || strings.ContainsAny(host, " \t") {
		return "", "", domain.ErrInvalidTarget
	}
	label := host
	if i := strings.IndexByte(host, '.'); i > 0 {
		label = host[:i]
	}
	r := []rune(label)
	r[0] = unicode.ToUpper(r[0])
	return host, string(r), nil
}

type sourceOutcome struct {
	source  string
	records []domain.Complaint
	elapsed time.Duration
	err     error
}

// Process runs one full analysis of rawURL. Only target parsing and site
// identity failures are returned as errors; source and persistence problems
// are logged and show up in history and saved_count.
func (s *AnalysisService) Process(ctx context.Context, rawURL string) (domain.AnalysisResult, error) {
	start := time.Now()
	runID := uuid.NewString()

	host, siteName, err := ParseTarget(rawURL)
	if err != nil {
		return domain.AnalysisResult{}, err
	}
	logger := log.With().Str("run_id", runID).Str("domain", host).Logger()
	logger.Info().Str("site_name", siteName).Int("sources", len(s.sources)).Msg("analysis started")

	siteID, err := s.repo.GetOrCreateSite(ctx, host)
	if err != nil {
		logger.Error().Err(err).Msg("site resolution failed")
		return domain.AnalysisResult{}, fmt.Errorf("resolve site %s: %w", host, err)
	}

	outcomes := s.runSources(ctx, logger, host, siteName)

	var all []domain.Complaint
	counts := make(map[string]int, len(outcomes))
	for _, o := range outcomes {
		all = append(all, o.records...)
		counts[o.source] = len(o.records)
	}

	saved := s.persist(ctx, logger, siteID, all)

	score, level := analysis.ComputeRisk(all)
	if err := s.repo.UpdateSiteRiskScore(ctx, siteID, score); err != nil {
		logger.Warn().Err(err).Int("risk_score", score).Msg("risk score update failed")
	}
	observability.ObserveRisk(score)

	for _, o := range outcomes {
		s.recordHistory(ctx, logger, siteID, o)
	}

	agg := domain.SiteAggregate{
		Domain:          host,
		SiteName:        siteName,
		TotalComplaints: len(all),
		RiskScore:       score,
		RiskLevel:       level,
		SourceCounts:    counts,
		Stats:           analysis.Summarize(all),
	}
	res := newResult(runID, siteID, agg, saved, time.Since(start))
	logger.Info().
		Int("total", res.TotalComplaints).
		Int("saved", res.SavedCount).
		Int("risk_score", res.RiskScore).
		Str("risk_level", string(res.RiskLevel)).
		Float64("duration_s", res.Duration).
		Msg("analysis finished")
	return res, nil
}

// runSources fans out one goroutine per source under the run deadline and
// returns the outcomes in registration order. The group has no shared
// context: one source never cancels the others.
func (s *AnalysisService) runSources(ctx context.Context, logger zerolog.Logger, host, siteName string) []sourceOutcome {
	runCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	out := make([]sourceOutcome, len(s.sources))
	var g errgroup.Group
	g.SetLimit(max(1, len(s.sources)))
	for i, src := range s.sources {
		g.Go(func() error {
			o := runSource(runCtx, src, host, siteName)
			ev := logger.Info()
			if o.err != nil {
				ev = logger.Warn().Err(o.err)
			}
			ev.Str("source", o.source).Int("records", len(o.records)).Dur("elapsed", o.elapsed).Msg("source finished")
			out[i] = o
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// runSource isolates one adapter: panics become errors, and an adapter still
// running at the deadline is abandoned with zero records.
func runSource(ctx context.Context, src domain.Source, host, siteName string) sourceOutcome {
	start := time.Now()
	name := src.Name()
	o := sourceOutcome{source: name}

	type result struct {
		records []domain.Complaint
		err     error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("source %s panicked: %v", name, r)}
			}
		}()
		done <- result{records: src.Scrape(ctx, host, siteName)}
	}()

	var r result
	select {
	case r = <-done:
	case <-ctx.Done():
		// partial results of an interrupted source are dropped
		r.err = ctx.Err()
	}
	o.elapsed = time.Since(start)
	o.err = r.err
	if r.err == nil && len(r.records) > 0 {
		o.records = make([]domain.Complaint, len(r.records))
		copy(o.records, r.records)
		for i := range o.records {
			o.records[i].Source = name
		}
	}
	return o
}

// persist saves every record that did not come from a cache.
func (s *AnalysisService) persist(ctx context.Context, logger zerolog.Logger, siteID int64, records []domain.Complaint) int {
	saved := 0
	for _, c := range records {
		if c.FromCache {
			continue
		}
		if err := s.repo.SaveComplaint(ctx, siteID, c); err != nil {
			logger.Warn().Err(err).Str("source", c.Source).Str("url", c.URL).Msg("complaint save failed")
			continue
		}
		saved++
	}
	return saved
}

func (s *AnalysisService) recordHistory(ctx context.Context, logger zerolog.Logger, siteID int64, o sourceOutcome) {
	status := domain.StatusFailed
	if len(o.records) > 0 {
		status = domain.StatusSuccess
	}
	var msg string
	if o.err != nil {
		msg = o.err.Error()
	}
	h := domain.ScrapeHistory{
		SiteID:       siteID,
		Source:       o.source,
		Status:       status,
		RecordsFound: len(o.records),
		Duration:     o.elapsed,
		ErrorMessage: msg,
	}
	if err := s.repo.SaveScrapingHistory(ctx, h); err != nil {
		logger.Warn().Err(err).Str("source", o.source).Msg("history save failed")
	}
	observability.ObserveSource(o.source, strings.ToLower(string(status)), len(o.records), o.elapsed)
}

// Evict drops the cached records of every registered source for rawURL so the
// next run fetches live.
func (s *AnalysisService) Evict(ctx context.Context, inv domain.CacheInvalidator, rawURL string) error {
	host, _, err := ParseTarget(rawURL)
	if err != nil {
		return err
	}
	for _, src := range s.sources {
		if err := inv.Del(ctx, host, src.Name()); err != nil {
			return fmt.Errorf("evict %s/%s: %w", host, src.Name(), err)
		}
	}
	log.Info().Str("domain", host).Int("sources", len(s.sources)).Msg("cache evicted")
	return nil
}

// IsClientError reports whether err comes from a bad request rather than the system.
func IsClientError(err error) bool {
	return errors.Is(err, domain.ErrInvalidTarget)
}
