// Command scan analyzes every URL given on the command line and prints one
// JSON result per line.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"sitescan/internal/adapters/observability"
	"sitescan/internal/app"
	"sitescan/internal/domain"
	"sitescan/internal/shared"
	mysqlrepo "sitescan/internal/storage/mysql"
)

func main() {
	cfg := shared.Load()
	workers := flag.Int("workers", cfg.Workers, "sites analyzed concurrently")
	refresh := flag.Bool("refresh", false, "drop cached records of each site before analyzing it")
	flag.Parse()

	// 1) initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, cfg.LogLevel)

	urls := flag.Args()
	if len(urls) == 0 {
		fmt.Fprintln(os.Stderr, "usage: scan [-workers N] [-refresh] URL [URL...]")
		os.Exit(2)
	}
	if *workers < 1 {
		*workers = 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().Int("sites", len(urls)).Int("workers", *workers).Msg("scan starting")

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("db ping ok")

	cache := shared.NewCache(ctx, cfg)
	svc := app.NewAnalysisService(mysqlrepo.New(db), shared.NewSources(cfg, cache), cfg.RunTimeout)

	sem := semaphore.NewWeighted(int64(*workers))
	var (
		wg     sync.WaitGroup
		outMu  sync.Mutex
		failed int
	)
	enc := json.NewEncoder(os.Stdout)

	for _, u := range urls {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Warn().Err(err).Msg("scan interrupted")
			break
		}

		wg.Add(1)
		go func(target string) {
			defer wg.Done()
			defer sem.Release(1)

			if *refresh {
				if inv, ok := cache.(domain.CacheInvalidator); ok {
					if err := svc.Evict(ctx, inv, target); err != nil {
						log.Warn().Err(err).Str("url", target).Msg("cache eviction failed")
					}
				}
			}
			res, err := svc.Process(ctx, target)
			outMu.Lock()
			defer outMu.Unlock()
			if err != nil {
				failed++
				log.Warn().Str("url", target).Err(err).Msg("analysis failed")
				_ = enc.Encode(map[string]any{"success": false, "url": target, "error": err.Error()})
				return
			}
			if err := enc.Encode(res); err != nil {
				log.Error().Err(err).Msg("write result failed")
			}
		}(u)
	}

	wg.Wait()
	log.Info().Int("failed", failed).Msg("scan completed")
	if failed > 0 {
		os.Exit(1)
	}
}
