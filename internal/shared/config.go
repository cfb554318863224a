package shared

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"sitescan/internal/adapters/httpfetch"
	"sitescan/internal/domain"
)

type Config struct {
	AppEnv      string
	LogLevel    string
	HTTPAddr    string
	MetricsAddr string
	MySQLDSN    string

	RedisAddr string
	RedisDB   int
	RedisPass string

	CacheBackend string // file|redis
	CacheDir     string
	CacheMaxAge  time.Duration // 0 = never expires

	RunTimeout time.Duration
	Workers    int // cmd/scan concurrency

	// minimum spacing between requests to one site
	SikayetvarInterval time.Duration
	TrustpilotInterval time.Duration

	SikayetvarBase  string
	TrustpilotBase  string
	TrustpilotLocal string
	MapsBase        string
	MapsMaxReviews  int
	BrowserHeadless bool
	ChromePath      string
	CandidatePolicy string
}

// Load reads the environment, after an optional .env in the working directory.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Debug().Err(err).Msg(".env not loaded, using process environment")
	}
	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
			log.Warn().Str("key", k).Str("value", v).Msg("not an integer, using default")
		}
		return def
	}
	boolean := func(k string, def bool) bool {
		if v := os.Getenv(k); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				return b
			}
		}
		return def
	}
	secs := func(k string, def int) time.Duration { return time.Duration(atoi(k, def)) * time.Second }
	millis := func(k string, def int) time.Duration { return time.Duration(atoi(k, def)) * time.Millisecond }

	c := Config{
		AppEnv:      env("APP_ENV", "prod"),
		LogLevel:    env("LOG_LEVEL", "info"),
		HTTPAddr:    env("HTTP_ADDR", ":8080"),
		MetricsAddr: env("METRICS_ADDR", ""),
		MySQLDSN:    env("MYSQL_DSN", "root:root@tcp(localhost:3306)/sitescan?parseTime=true&charset=utf8mb4,utf8&loc=UTC"),

		RedisAddr: env("REDIS_ADDR", "localhost:6379"),
		RedisPass: env("REDIS_PASSWORD", ""),
		RedisDB:   atoi("REDIS_DB", 0),

		CacheBackend: strings.ToLower(env("CACHE_BACKEND", "file")),
		CacheDir:     env("CACHE_DIR", "scraped_data"),
		CacheMaxAge:  secs("CACHE_MAX_AGE_SECONDS", 0),

		RunTimeout: secs("RUN_TIMEOUT_SECONDS", 600),
		Workers:    atoi("SCAN_WORKERS", 2),

		SikayetvarInterval: millis("SIKAYETVAR_INTERVAL_MS", 1000),
		TrustpilotInterval: millis("TRUSTPILOT_INTERVAL_MS", 2000),

		SikayetvarBase:  env("SIKAYETVAR_BASE_URL", "https://www.sikayetvar.com"),
		TrustpilotBase:  env("TRUSTPILOT_BASE_URL", "https://www.trustpilot.com"),
		TrustpilotLocal: env("TRUSTPILOT_LOCAL_URL", "https://tr.trustpilot.com"),
		MapsBase:        env("MAPS_BASE_URL", "https://www.google.com"),
		MapsMaxReviews:  atoi("MAPS_MAX_REVIEWS", 30),
		BrowserHeadless: boolean("BROWSER_HEADLESS", true),
		ChromePath:      env("CHROME_PATH", ""),
		CandidatePolicy: env("CANDIDATE_POLICY", "first"),
	}
	if c.CacheBackend != "file" && c.CacheBackend != "redis" {
		log.Warn().Str("backend", c.CacheBackend).Msg("unknown CACHE_BACKEND, using file")
		c.CacheBackend = "file"
	}
	return c
}

// FetchOptions is the outbound client setup of a static source.
func (c Config) FetchOptions(source string) httpfetch.Options {
	o := httpfetch.Options{Service: source}
	switch source {
	case domain.SourceSikayetvar:
		o.Interval = c.SikayetvarInterval
	case domain.SourceTrustpilot:
		o.Interval = c.TrustpilotInterval
	}
	return o
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
