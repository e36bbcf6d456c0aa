// Package main replays ledger traffic against the example server so the
// profile has something to show.
//
// Usage:
//
//	go run ./example/cmd/load -url http://localhost:8080 -rps 50
package main

import (
	"context"
	"flag"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/chosenoffset/nestprof/example/internal/scenario"
)

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "ledger server base URL")
	accounts := flag.Int("accounts", 20, "number of accounts to seed")
	rps := flag.Float64("rps", 20, "scenario runs per second")
	duration := flag.Duration("duration", 0, "stop after this long; 0 runs until interrupted")
	seed := flag.Int64("seed", time.Now().UnixNano(), "random seed")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if *duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	client := &http.Client{Timeout: 5 * time.Second}

	// The server may still be starting
	seedAccounts := func() error {
		return scenario.Seed(ctx, client, *baseURL, *accounts, 1000)
	}
	notify := func(err error, wait time.Duration) {
		logger.Warn().Err(err).Dur("retry_in", wait).Msg("seeding accounts")
	}
	if err := backoff.RetryNotify(seedAccounts, backoff.WithContext(backoff.NewExponentialBackOff(), ctx), notify); err != nil {
		logger.Fatal().Err(err).Msg("could not seed accounts")
	}
	logger.Info().Int("accounts", *accounts).Msg("seeded accounts")

	rng := rand.New(rand.NewSource(*seed))
	scenarios := scenario.All(*accounts, rng)
	limiter := rate.NewLimiter(rate.Limit(*rps), 1)

	runs, failures := 0, 0
	for {
		if err := limiter.Wait(ctx); err != nil {
			break
		}
		sc := scenarios[rng.Intn(len(scenarios))]
		if err := sc.Run(ctx, client, *baseURL); err != nil {
			if ctx.Err() != nil {
				break
			}
			failures++
			logger.Warn().Err(err).Str("scenario", sc.Name()).Msg("scenario failed")
		}
		runs++
	}

	logger.Info().Int("runs", runs).Int("failures", failures).Msg("load finished")
}
