// Package main runs several ranks side by side, each with its own verbose
// profiler writing to profiler_myid_<rank>.txt. Rank 0 also prints its
// report to stdout.
//
// Ranks are goroutines here, but the file naming matches what each process
// of a multi-process job would produce.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"github.com/chosenoffset/nestprof/pkg/nestprof"
)

func main() {
	n := flag.Int("n", 4, "number of ranks")
	dir := flag.String("dir", ".", "directory for the per-rank files")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	if err := runRanks(*n, *dir, os.Stdout); err != nil {
		logger.Fatal().Err(err).Msg("ranks failed")
	}
	logger.Info().Int("ranks", *n).Str("dir", *dir).Msg("wrote rank profiles")
}

func rankFile(dir string, rank int) string {
	return filepath.Join(dir, fmt.Sprintf("profiler_myid_%d.txt", rank))
}

func runRanks(n int, dir string, stdout io.Writer) error {
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		result *multierror.Error
	)
	for rank := 0; rank < n; rank++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			if err := runRank(rank, dir, stdout); err != nil {
				mu.Lock()
				result = multierror.Append(result, fmt.Errorf("rank %d: %w", rank, err))
				mu.Unlock()
			}
		}(rank)
	}
	wg.Wait()
	return result.ErrorOrNil()
}

func runRank(rank int, dir string, stdout io.Writer) error {
	f, err := os.Create(rankFile(dir, rank))
	if err != nil {
		return err
	}
	defer f.Close()

	prof := nestprof.New(f)
	prof.Start("hello")
	prof.Stop("hello")
	prof.Start("world")
	prof.Stop("world")
	if err := prof.Display(nestprof.DefaultMaxDepth); err != nil {
		return err
	}

	if rank == 0 {
		if _, err := io.WriteString(stdout, prof.String()); err != nil {
			return err
		}
	}
	return f.Close()
}
