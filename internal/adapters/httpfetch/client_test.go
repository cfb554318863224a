package httpfetch_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"

	"sitescan/internal/adapters/httpfetch"
)

func TestClient_Get_RetriesThenSuccess(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch atomic.AddInt32(&hits, 1) {
		case 1, 2:
			w.WriteHeader(503)
		default:
			_, _ = w.Write([]byte("<html><body>ok</body></html>"))
		}
	}))
	defer ts.Close()

	cl := httpfetch.New(httpfetch.Options{Service: "test"})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	body, err := cl.Get(ctx, ts.URL+"/page")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if string(body) != "<html><body>ok</body></html>" {
		t.Fatalf("unexpected body: %q", body)
	}
	if atomic.LoadInt32(&hits) < 3 {
		t.Fatalf("expected at least 3 calls due to retries, got %d", hits)
	}
}

func TestClient_Get_404(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()

	cl := httpfetch.New(httpfetch.Options{Service: "test"})
	_, err := cl.Get(context.Background(), ts.URL+"/missing")
	if !errors.Is(err, httpfetch.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestClient_Get_ForbiddenIsStatusError(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if ua := r.Header.Get("User-Agent"); ua == "" {
			t.Errorf("missing user agent")
		}
		w.WriteHeader(http.StatusForbidden)
	}))
	defer ts.Close()

	cl := httpfetch.New(httpfetch.Options{Service: "test"})
	_, err := cl.Get(context.Background(), ts.URL)
	var se *httpfetch.StatusError
	if !errors.As(err, &se) || se.Code != http.StatusForbidden {
		t.Fatalf("expected StatusError 403, got %v", err)
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Fatalf("403 must not be retried, got %d calls", hits)
	}
}

func TestClient_BreakerOpensOnRepeatedFailures(t *testing.T) {
	var hits int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusNotImplemented)
	}))
	defer ts.Close()

	cl := httpfetch.New(httpfetch.Options{Service: "breaker-test"})
	for i := 0; i < 5; i++ {
		if _, err := cl.Get(context.Background(), ts.URL); err == nil {
			t.Fatalf("expected error on call %d", i)
		}
	}
	before := atomic.LoadInt32(&hits)
	_, err := cl.Get(context.Background(), ts.URL)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open breaker, got %v", err)
	}
	if atomic.LoadInt32(&hits) != before {
		t.Fatalf("open breaker must not hit the server")
	}
}

func TestClient_Throttles(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("x"))
	}))
	defer ts.Close()

	cl := httpfetch.New(httpfetch.Options{Service: "test", Interval: 100 * time.Millisecond})
	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := cl.Get(context.Background(), ts.URL); err != nil {
			t.Fatalf("get: %v", err)
		}
	}
	if el := time.Since(start); el < 190*time.Millisecond {
		t.Fatalf("expected requests spaced by the interval, took %v", el)
	}
}
