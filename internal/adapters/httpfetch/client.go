// internal/adapters/httpfetch/client.go
package httpfetch

import (
	"context"
	crand "crypto/rand"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"sitescan/internal/adapters/observability"
)

const defaultUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

var ErrNotFound = errors.New("httpfetch: not found")

// StatusError is returned for any non-200 answer that is not retried away.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string { return fmt.Sprintf("httpfetch: %s returned %d", e.URL, e.Code) }

type Options struct {
	Service   string        // metrics label
	Interval  time.Duration // minimum spacing between requests; 0 = unthrottled
	Timeout   time.Duration
	Retries   int
	UserAgent string
	MaxBody   int64
}

// Client fetches HTML pages politely: one request per Interval, retries on
// 429 and transient 5xx, and a circuit breaker around the remote host.
type Client struct {
	service string
	hc      *http.Client
	rl      *rate.Limiter
	cb      *gobreaker.CircuitBreaker
	retries int
	ua      string
	maxBody int64
}

func New(o Options) *Client {
	if o.Timeout <= 0 {
		o.Timeout = 20 * time.Second
	}
	if o.Retries <= 0 {
		o.Retries = 3
	}
	if o.UserAgent == "" {
		o.UserAgent = defaultUA
	}
	if o.MaxBody <= 0 {
		o.MaxBody = 8 << 20
	}
	lim := rate.NewLimiter(rate.Inf, 1)
	if o.Interval > 0 {
		lim = rate.NewLimiter(rate.Every(o.Interval), 1)
	}
	return &Client{
		service: o.Service,
		hc:      &http.Client{Timeout: o.Timeout},
		rl:      lim,
		retries: o.Retries,
		ua:      o.UserAgent,
		maxBody: o.MaxBody,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        o.Service,
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 5 },
			// 404 and other definite answers mean the host is up
			IsSuccessful: func(err error) bool {
				var se *StatusError
				return err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, context.Canceled) ||
					(errors.As(err, &se) && se.Code < 500 && se.Code != http.StatusTooManyRequests)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn().Str("service", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
			},
		}),
	}
}

// Get returns the body of a 200 response. 404 maps to ErrNotFound, other
// final statuses to *StatusError.
func (c *Client) Get(ctx context.Context, rawURL string) ([]byte, error) {
	v, err := c.cb.Execute(func() (interface{}, error) { return c.get(ctx, rawURL) })
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (c *Client) get(ctx context.Context, rawURL string) ([]byte, error) {
	if err := c.rl.Wait(ctx); err != nil {
		return nil, err
	}
	endpoint := host(rawURL)

	var lastErr error
	for i := 0; i <= c.retries; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", c.ua)
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		req.Header.Set("Accept-Language", "tr-TR,tr;q=0.9,en-US;q=0.8,en;q=0.7")

		start := time.Now()
		resp, err := c.hc.Do(req)
		if err != nil {
			observability.ObserveExternal(c.service, endpoint, 0, time.Since(start))
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			if i < c.retries && sleepCtx(ctx, backoff(i)) {
				continue
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, lastErr
		}
		observability.ObserveExternal(c.service, endpoint, resp.StatusCode, time.Since(start))

		switch resp.StatusCode {
		case http.StatusOK:
			b, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody))
			resp.Body.Close()
			return b, err

		case http.StatusNotFound:
			resp.Body.Close()
			return nil, ErrNotFound

		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			wait := retryAfter(resp)
			resp.Body.Close()
			if wait == 0 {
				wait = backoff(i)
			}
			lastErr = &StatusError{Code: resp.StatusCode, URL: rawURL}
			if i < c.retries && sleepCtx(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, lastErr

		default:
			io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return nil, &StatusError{Code: resp.StatusCode, URL: rawURL}
		}
	}
	return nil, lastErr
}

func host(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		return u.Host
	}
	return "unknown"
}

// sleepCtx waits for d or returns false early if ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Sleep is sleepCtx for callers outside the package.
func Sleep(ctx context.Context, d time.Duration) bool { return sleepCtx(ctx, d) }

// retryAfter parses Retry-After (seconds or HTTP-date). 0 if absent/invalid.
func retryAfter(resp *http.Response) time.Duration {
	h := resp.Header.Get("Retry-After")
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(strings.TrimSpace(h)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// backoff: 200ms, 400ms, 800ms... plus up to 50% jitter.
func backoff(i int) time.Duration {
	base := time.Duration(1<<i) * 200 * time.Millisecond
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	f := float64(b[0]) / 255.0
	return base + time.Duration(0.5*f*float64(base))
}
