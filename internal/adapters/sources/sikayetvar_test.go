package sources_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"sitescan/internal/adapters/cachestore"
	"sitescan/internal/adapters/httpfetch"
	"sitescan/internal/adapters/sources"
	"sitescan/internal/domain"
)

// pageServer serves pages keyed by "path" or "path?page=N"; anything else is a 404.
func pageServer(t *testing.T, pages map[string]string, delay time.Duration) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if delay > 0 {
			time.Sleep(delay)
		}
		key := r.URL.Path
		if p := r.URL.Query().Get("page"); p != "" {
			key += "?page=" + p
		}
		body, ok := pages[key]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(ts.Close)
	return ts, &hits
}

const svPage1 = `<html><body>
<article class="card-v2">
  <h2 class="complaint-title"><a href="/acme/kargo-gelmedi">Kargo gelmedi</a></h2>
  <a class="profile-user" href="/u/1">mehmet</a>
  <time datetime="2024-02-10T09:00:00Z">10 Şubat</time>
  <section><p class="complaint-description js-replace-to-link">Siparişim gelmedi, berbat bir durum.</p></section>
</article>
<article class="card-v2">
  <h2 class="complaint-title"><a href="https://www.sikayetvar.com/acme/iade">İade talebi</a></h2>
  <span class="badge solved-badge">Çözüldü</span>
  <section><p class="complaint-description js-replace-to-link">İade yapıldı, teşekkürler.</p></section>
</article>
<article class="card-v2"><h2 class="complaint-title"><a href="/acme/empty"></a></h2></article>
</body></html>`

const svPage2 = `<html><body>
<article class="card-v2">
  <h2 class="complaint-title"><a href="/acme/destek">Destek yanıt vermiyor</a></h2>
  <span class="post-date">05.01.2024</span>
  <section><p class="complaint-description js-replace-to-link">Talebim hala çözülmedi.</p></section>
</article>
</body></html>`

const svEmpty = `<html><body><p>no complaints</p></body></html>`

func newSikayetvar(t *testing.T, baseURL string, cache domain.CacheStore, policy sources.CandidatePolicy) *sources.Sikayetvar {
	t.Helper()
	return sources.NewSikayetvar(sources.NewResources(cache),
		httpfetch.New(httpfetch.Options{Service: "sikayetvar-test"}),
		sources.SikayetvarConfig{BaseURL: baseURL, Policy: policy})
}

func TestSikayetvar_PaginatesAndParses(t *testing.T) {
	ts, hits := pageServer(t, map[string]string{
		"/acme":        svPage1,
		"/acme?page=2": svPage2,
		"/acme?page=3": svEmpty,
	}, 0)
	a := newSikayetvar(t, ts.URL, nil, sources.FirstMatch)

	got := a.Scrape(context.Background(), "acme.com", "Acme")
	if len(got) != 3 {
		t.Fatalf("expected 3 complaints, got %d: %+v", len(got), got)
	}
	if n := atomic.LoadInt32(hits); n != 3 {
		t.Fatalf("expected pagination to stop at the empty page (3 requests), got %d", n)
	}

	first := got[0]
	if first.Title != "Kargo gelmedi" || first.Author != "mehmet" || first.Sentiment != domain.SentimentNegative {
		t.Fatalf("unexpected first complaint: %+v", first)
	}
	if first.URL != ts.URL+"/acme/kargo-gelmedi" {
		t.Fatalf("relative link not resolved: %s", first.URL)
	}
	if first.Date == nil || first.Date.Day() != 10 || first.IsResolved || first.FromCache || first.Rating != nil {
		t.Fatalf("unexpected first complaint metadata: %+v", first)
	}

	second := got[1]
	if !second.IsResolved || second.Author != "Anonymous Sikayetvar User" || second.Sentiment != domain.SentimentPositive {
		t.Fatalf("unexpected second complaint: %+v", second)
	}
	if second.URL != "https://www.sikayetvar.com/acme/iade" {
		t.Fatalf("absolute link changed: %s", second.URL)
	}

	third := got[2]
	if third.IsResolved {
		t.Fatalf("negated resolution text must not count as resolved: %+v", third)
	}
	if third.Date == nil || third.Date.Month() != time.January {
		t.Fatalf("dotted date not parsed: %v", third.Date)
	}
}

func TestSikayetvar_FallsBackToDomainSlug(t *testing.T) {
	ts, _ := pageServer(t, map[string]string{
		"/turktelekom":        svPage2,
		"/turktelekom?page=2": svEmpty,
	}, 0)
	a := newSikayetvar(t, ts.URL, nil, sources.FirstMatch)

	// "Türk Telekom" -> "/turk-telekom" (404), then the domain stem
	got := a.Scrape(context.Background(), "turktelekom.com.tr", "Türk Telekom")
	if len(got) != 1 || got[0].Title != "Destek yanıt vermiyor" {
		t.Fatalf("expected the domain-slug page, got %+v", got)
	}
}

func TestSikayetvar_CandidatePolicy(t *testing.T) {
	pages := map[string]string{
		"/acme-shop": svPage2,
		"/acmeshop":  svPage1,
	}
	ts, _ := pageServer(t, pages, 0)

	first := newSikayetvar(t, ts.URL, nil, sources.FirstMatch).Scrape(context.Background(), "acmeshop.com", "Acme Shop")
	if len(first) != 1 {
		t.Fatalf("first-match should stop at the site-name slug, got %d", len(first))
	}
	best := newSikayetvar(t, ts.URL, nil, sources.BestOfN).Scrape(context.Background(), "acmeshop.com", "Acme Shop")
	if len(best) != 2 {
		t.Fatalf("best-of-n should keep the larger set, got %d", len(best))
	}
}

func TestSikayetvar_CacheShortCircuits(t *testing.T) {
	ts, hits := pageServer(t, map[string]string{"/acme": svPage2}, 0)
	cache := cachestore.NewFileStore(t.TempDir(), 0)
	a := newSikayetvar(t, ts.URL, cache, sources.FirstMatch)
	ctx := context.Background()

	live := a.Scrape(ctx, "acme.com", "Acme")
	if len(live) != 1 || live[0].FromCache {
		t.Fatalf("expected one live record, got %+v", live)
	}
	before := atomic.LoadInt32(hits)

	cached := a.Scrape(ctx, "acme.com", "Acme")
	if len(cached) != 1 || !cached[0].FromCache || cached[0].Title != live[0].Title {
		t.Fatalf("expected the cached record, got %+v", cached)
	}
	if atomic.LoadInt32(hits) != before {
		t.Fatalf("cache hit must not touch the network")
	}
}

func TestSikayetvar_ConcurrentRunsShareOneFetch(t *testing.T) {
	ts, hits := pageServer(t, map[string]string{"/acme": svPage2}, 100*time.Millisecond)
	a := newSikayetvar(t, ts.URL, cachestore.NewFileStore(t.TempDir(), 0), sources.FirstMatch)

	var wg sync.WaitGroup
	results := make([][]domain.Complaint, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = a.Scrape(context.Background(), "acme.com", "Acme")
		}(i)
	}
	wg.Wait()

	// one live run: "/acme" then "/acme?page=2" (404)
	if n := atomic.LoadInt32(hits); n != 2 {
		t.Fatalf("expected a single live fetch (2 requests), got %d", n)
	}
	live := 0
	for _, r := range results {
		if len(r) != 1 {
			t.Fatalf("every caller should see the record, got %+v", r)
		}
		if !r[0].FromCache {
			live++
		}
	}
	if live != 1 {
		t.Fatalf("exactly one caller should own the live records, got %d", live)
	}
}

// stallingFetcher serves fixed pages; while stalling is set, a request for
// stall blocks until the caller's context ends.
type stallingFetcher struct {
	pages    map[string]string
	stall    string
	stalling atomic.Bool
	once     sync.Once
	started  chan struct{}
}

func newStallingFetcher(pages map[string]string, stall string) *stallingFetcher {
	f := &stallingFetcher{pages: pages, stall: stall, started: make(chan struct{})}
	f.stalling.Store(true)
	return f
}

func (f *stallingFetcher) Get(ctx context.Context, u string) ([]byte, error) {
	if u == f.stall && f.stalling.Load() {
		f.once.Do(func() { close(f.started) })
		<-ctx.Done()
		return nil, ctx.Err()
	}
	body, ok := f.pages[u]
	if !ok {
		return nil, httpfetch.ErrNotFound
	}
	return []byte(body), nil
}

func stalledPages() *stallingFetcher {
	return newStallingFetcher(map[string]string{
		"http://sv.test/acme":        svPage1,
		"http://sv.test/acme?page=2": svPage2,
	}, "http://sv.test/acme?page=2")
}

func TestSikayetvar_InterruptedFetchIsNotCached(t *testing.T) {
	f := stalledPages()
	cache := cachestore.NewFileStore(t.TempDir(), 0)
	a := sources.NewSikayetvar(sources.NewResources(cache), f, sources.SikayetvarConfig{BaseURL: "http://sv.test"})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-f.started
		cancel()
	}()
	a.Scrape(ctx, "acme.com", "Acme")

	if _, ok := cache.Check(context.Background(), "acme.com", domain.SourceSikayetvar); ok {
		t.Fatalf("a fetch cut off by its context must not be cached")
	}

	f.stalling.Store(false)
	got := a.Scrape(context.Background(), "acme.com", "Acme")
	if len(got) != 3 {
		t.Fatalf("next run should fetch the full listing live, got %d: %+v", len(got), got)
	}
	for _, c := range got {
		if c.FromCache {
			t.Fatalf("records of the next run must be live so they get persisted: %+v", c)
		}
	}
}

func TestSikayetvar_FollowerRefetchesAfterInterruptedLeader(t *testing.T) {
	f := stalledPages()
	a := sources.NewSikayetvar(sources.NewResources(cachestore.NewFileStore(t.TempDir(), 0)), f,
		sources.SikayetvarConfig{BaseURL: "http://sv.test"})

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderDone := make(chan struct{})
	go func() {
		defer close(leaderDone)
		a.Scrape(leaderCtx, "acme.com", "Acme")
	}()
	<-f.started

	followerDone := make(chan []domain.Complaint, 1)
	go func() { followerDone <- a.Scrape(context.Background(), "acme.com", "Acme") }()
	time.Sleep(50 * time.Millisecond)
	f.stalling.Store(false)
	cancel()
	<-leaderDone

	select {
	case got := <-followerDone:
		if len(got) != 3 {
			t.Fatalf("follower should get the full listing, got %d", len(got))
		}
		for _, c := range got {
			if c.FromCache {
				t.Fatalf("follower of an interrupted fetch must own its records: %+v", c)
			}
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("follower did not finish")
	}
}

func TestSikayetvar_NothingFoundIsNotCached(t *testing.T) {
	ts, _ := pageServer(t, map[string]string{}, 0)
	dir := t.TempDir()
	cache := cachestore.NewFileStore(dir, 0)
	a := newSikayetvar(t, ts.URL, cache, sources.FirstMatch)

	if got := a.Scrape(context.Background(), "nobody.com", "Nobody"); len(got) != 0 {
		t.Fatalf("expected nothing, got %+v", got)
	}
	if _, ok := cache.Check(context.Background(), "nobody.com", domain.SourceSikayetvar); ok {
		t.Fatalf("empty result must not be cached")
	}
}

func TestParseCandidatePolicy(t *testing.T) {
	if sources.ParseCandidatePolicy("best_of_n") != sources.BestOfN {
		t.Fatalf("best_of_n not parsed")
	}
	for _, s := range []string{"", "first", "garbage"} {
		if sources.ParseCandidatePolicy(s) != sources.FirstMatch {
			t.Fatalf("%q should default to first match", s)
		}
	}
}
