package shared

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"sitescan/internal/adapters/cachestore"
	"sitescan/internal/adapters/httpfetch"
	redisad "sitescan/internal/adapters/redis"
	"sitescan/internal/adapters/sources"
	"sitescan/internal/domain"
)

// NewCache builds the configured cache backend. A redis backend that does not
// answer a ping falls back to the file store.
func NewCache(ctx context.Context, c Config) domain.CacheStore {
	if c.CacheBackend == "redis" {
		rc := redisad.New(c.RedisAddr, c.RedisPass, c.RedisDB, c.CacheMaxAge)
		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		err := rc.Ping(pctx)
		if err == nil {
			log.Info().Str("addr", c.RedisAddr).Msg("redis cache ready")
			return rc
		}
		log.Warn().Err(err).Str("addr", c.RedisAddr).Msg("redis unreachable, using file cache")
	}
	log.Info().Str("dir", c.CacheDir).Dur("max_age", c.CacheMaxAge).Msg("file cache ready")
	return cachestore.NewFileStore(c.CacheDir, c.CacheMaxAge)
}

// NewSources returns the adapters in registration order, sharing one Resources.
func NewSources(c Config, cache domain.CacheStore) []domain.Source {
	res := sources.NewResources(cache)
	policy := sources.ParseCandidatePolicy(c.CandidatePolicy)

	sv := httpfetch.New(c.FetchOptions(domain.SourceSikayetvar))
	tp := httpfetch.New(c.FetchOptions(domain.SourceTrustpilot))
	chrome := sources.NewChrome(sources.ChromeConfig{Headless: c.BrowserHeadless, ExecPath: c.ChromePath})

	return []domain.Source{
		sources.NewSikayetvar(res, sv, sources.SikayetvarConfig{BaseURL: c.SikayetvarBase, Policy: policy}),
		sources.NewTrustpilot(res, tp, sources.TrustpilotConfig{
			BaseURL: c.TrustpilotBase, LocalURL: c.TrustpilotLocal, Policy: policy,
		}),
		sources.NewGoogleMaps(res, chrome, sources.GoogleMapsConfig{
			BaseURL:     c.MapsBase,
			MaxReviews:  c.MapsMaxReviews,
			Settle:      3 * time.Second,
			ScrollPause: 2 * time.Second,
		}),
	}
}
