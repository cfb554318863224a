package sources

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"sitescan/internal/domain"
)

// Fetcher is the HTTP side of the static adapters; *httpfetch.Client satisfies it.
type Fetcher interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Resources is shared by every adapter of a process: the cache store and the
// per-key flight group that keeps concurrent runs for one (domain, source)
// down to a single live fetch.
type Resources struct {
	cache  domain.CacheStore
	flight singleflight.Group
}

func NewResources(cache domain.CacheStore) *Resources {
	return &Resources{cache: cache}
}

type flightResult struct {
	recs        []domain.Complaint
	interrupted bool
}

// fetchOnce runs the cache check, live fetch and cache save for one key.
// Callers that piggyback on someone else's live fetch get copies marked
// FromCache so the records are only persisted once. A fetch whose context
// ended early is never cached, and followers of such a fetch start their own.
func (r *Resources) fetchOnce(ctx context.Context, source, host, siteName string,
	fetch func(context.Context) []domain.Complaint) []domain.Complaint {

	for {
		leader := false
		v, _, _ := r.flight.Do(host+"|"+source, func() (interface{}, error) {
			leader = true
			if r.cache != nil {
				if recs, ok := r.cache.Check(ctx, host, source); ok {
					log.Info().Str("source", source).Str("domain", host).Int("records", len(recs)).Msg("served from cache")
					return flightResult{recs: recs}, nil
				}
			}
			recs := fetch(ctx)
			if err := ctx.Err(); err != nil {
				log.Warn().Err(err).Str("source", source).Str("domain", host).Int("records", len(recs)).Msg("live fetch interrupted, not cached")
				return flightResult{recs: recs, interrupted: true}, nil
			}
			log.Info().Str("source", source).Str("domain", host).Int("records", len(recs)).Msg("live fetch finished")
			if len(recs) > 0 && r.cache != nil {
				if err := r.cache.Save(ctx, host, source, siteName, recs); err != nil {
					log.Warn().Err(err).Str("source", source).Str("domain", host).Msg("cache save failed")
				}
			}
			return flightResult{recs: recs}, nil
		})

		fr, _ := v.(flightResult)
		if fr.interrupted && !leader && ctx.Err() == nil {
			continue
		}
		out := make([]domain.Complaint, len(fr.recs))
		copy(out, fr.recs)
		if !leader {
			for i := range out {
				out[i].FromCache = true
			}
		}
		return out
	}
}

type CandidatePolicy int

const (
	// FirstMatch stops at the first candidate that yields any record.
	FirstMatch CandidatePolicy = iota
	// BestOfN tries every candidate and keeps the largest result set.
	BestOfN
)

func ParseCandidatePolicy(s string) CandidatePolicy {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "best", "best_of_n", "best-of-n", "bestofn":
		return BestOfN
	default:
		return FirstMatch
	}
}

func pickCandidate(ctx context.Context, p CandidatePolicy, candidates []string,
	try func(string) []domain.Complaint) []domain.Complaint {

	var best []domain.Complaint
	for _, c := range candidates {
		if ctx.Err() != nil {
			break
		}
		if recs := try(c); len(recs) > len(best) {
			best = recs
		}
		if p == FirstMatch && len(best) > 0 {
			break
		}
	}
	return best
}

func uniqueNonEmpty(in ...string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// stem is the first label of a host: "example.com.tr" -> "example".
func stem(host string) string {
	if i := strings.IndexByte(host, '.'); i >= 0 {
		return host[:i]
	}
	return host
}
