package main

import (
	"log/slog"
	"sync"

	"github.com/pathpilot/fhirserve/store"
)

// performWarmup precomputes the line count of every backing file so that
// unfiltered count queries never pay a first-access scan. Returns the number
// of files counted and the total resource count across them.
func performWarmup(catalog *store.Catalog, lines *store.LineCountIndex, logger *slog.Logger) (int, int) {
	var countedFiles int
	var totalResources int
	var mu sync.Mutex

	// Use a bounded worker pool; counting is I/O-bound and the files vary
	// wildly in size (chartevents dwarfs everything else).
	const workerCount = 8
	jobs := make(chan string, 100)

	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				n, err := lines.Count(path)
				if err != nil {
					logger.Warn("skipped file during warmup", "path", path, "error", err)
					continue
				}
				mu.Lock()
				countedFiles++
				totalResources += n
				mu.Unlock()
			}
		}()
	}

	for _, path := range catalog.AllFiles() {
		jobs <- path
	}

	close(jobs)
	wg.Wait()
	return countedFiles, totalResources
}
