package shared_test

import (
	"testing"
	"time"

	"sitescan/internal/domain"
	"sitescan/internal/shared"
)

func TestFetchOptions_PerSourceInterval(t *testing.T) {
	t.Setenv("SIKAYETVAR_INTERVAL_MS", "")
	t.Setenv("TRUSTPILOT_INTERVAL_MS", "")
	c := shared.Load()

	sv := c.FetchOptions(domain.SourceSikayetvar)
	if sv.Interval != time.Second || sv.Service != domain.SourceSikayetvar {
		t.Fatalf("sikayetvar should default to one request per second, got %+v", sv)
	}
	tp := c.FetchOptions(domain.SourceTrustpilot)
	if tp.Interval != 2*time.Second || tp.Service != domain.SourceTrustpilot {
		t.Fatalf("trustpilot should default to one request per 2s, got %+v", tp)
	}

	t.Setenv("TRUSTPILOT_INTERVAL_MS", "500")
	if got := shared.Load().FetchOptions(domain.SourceTrustpilot).Interval; got != 500*time.Millisecond {
		t.Fatalf("override not applied: %v", got)
	}
}

func TestLoad_UnknownCacheBackendFallsBackToFile(t *testing.T) {
	t.Setenv("CACHE_BACKEND", "memcached")
	if got := shared.Load().CacheBackend; got != "file" {
		t.Fatalf("backend: %s", got)
	}
}
