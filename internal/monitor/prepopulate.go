package monitor

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/bassamsdata/fsmonitor/internal/logging"
)

var prepopulateLog = logging.ForComponent(logging.CompPrepopulate)

// PrepopulateStats is the argument to a prepopulation's on-ready callback
// (spec §4.6).
type PrepopulateStats struct {
	FilesScanned       int
	FilesCached        int
	BytesCached        int64
	Errors             int
	DirectoriesScanned int
	ElapsedMs          int64
}

// prepopulateReadRate bounds how many files per second the prepopulator
// reads, so a very large tree cannot starve the host loop — grounded on the
// teacher's rate.Limiter use for its background indexer
// (internal/session/global_search.go).
const prepopulateReadRate = 200

// Prepopulate walks root depth-first up to maxDepth directory descents
// and maxFiles total files, inserting every regular, non-ignored file's
// content into cache. Returns the stats the caller passes to its on-ready
// callback (spec §4.6).
func Prepopulate(ctx context.Context, root string, ignore *IgnoreFilter, reader *Reader, cache *Cache, maxDepth, maxFiles int) PrepopulateStats {
	start := time.Now()
	stats := PrepopulateStats{}

	var filesScanned, filesCached, errCount, dirsScanned int64
	var bytesCached int64

	limiter := rate.NewLimiter(rate.Limit(prepopulateReadRate), prepopulateReadRate/4+1)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(16)

	type walkItem struct {
		absPath string
		relPath string
	}
	items := make(chan walkItem, 64)

	g.Go(func() error {
		defer close(items)
		return walkBounded(root, maxDepth, maxFiles, ignore, &dirsScanned, &filesScanned, func(absPath, relPath string) bool {
			select {
			case items <- walkItem{absPath: absPath, relPath: relPath}:
				return true
			case <-gctx.Done():
				return false
			}
		})
	})

	for i := 0; i < 16; i++ {
		g.Go(func() error {
			for item := range items {
				if err := limiter.Wait(gctx); err != nil {
					return nil
				}
				result, err := reader.Read(item.absPath)
				if err != nil {
					atomic.AddInt64(&errCount, 1)
					continue
				}
				cache.Set(item.relPath, result.Content, result.Device, result.Inode)
				atomic.AddInt64(&filesCached, 1)
				atomic.AddInt64(&bytesCached, int64(len(result.Content)))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		prepopulateLog.Warn("prepopulate_error", slog.String("root", root), slog.String("error", err.Error()))
	}

	stats.FilesScanned = int(atomic.LoadInt64(&filesScanned))
	stats.FilesCached = int(atomic.LoadInt64(&filesCached))
	stats.BytesCached = atomic.LoadInt64(&bytesCached)
	stats.Errors = int(atomic.LoadInt64(&errCount))
	stats.DirectoriesScanned = int(atomic.LoadInt64(&dirsScanned))
	stats.ElapsedMs = time.Since(start).Milliseconds()

	prepopulateLog.Debug("prepopulate_complete",
		slog.Int("files_cached", stats.FilesCached),
		slog.Int64("bytes_cached", stats.BytesCached),
		slog.Int("errors", stats.Errors),
	)

	return stats
}

// walkBounded performs a depth- and count-bounded directory walk, invoking
// emit(absPath, relPath) for every regular, non-ignored file found. It
// yields cooperatively (via emit's channel send) rather than holding the
// host scheduler for the whole walk, per spec §4.6.
func walkBounded(root string, maxDepth, maxFiles int, ignore *IgnoreFilter, dirsScanned, filesScanned *int64, emit func(absPath, relPath string) bool) error {
	var fileCount int

	var walk func(dir string, depth int) error
	walk = func(dir string, depth int) error {
		atomic.AddInt64(dirsScanned, 1)
		entries, err := readDirSorted(dir)
		if err != nil {
			return nil
		}

		for _, entry := range entries {
			if fileCount >= maxFiles {
				return nil
			}

			absPath := filepath.Join(dir, entry.Name())
			relPath, relErr := filepath.Rel(root, absPath)
			if relErr != nil {
				continue
			}
			relPath = filepath.ToSlash(relPath)

			if entry.IsDir() {
				if depth >= maxDepth {
					continue
				}
				if ignore.ShouldIgnore(relPath) {
					continue
				}
				if err := walk(absPath, depth+1); err != nil {
					return err
				}
				continue
			}

			if !entry.Type().IsRegular() {
				continue
			}
			if ignore.ShouldIgnore(relPath) {
				continue
			}

			atomic.AddInt64(filesScanned, 1)
			fileCount++
			if !emit(absPath, relPath) {
				return nil
			}
		}
		return nil
	}

	return walk(root, 0)
}

func readDirSorted(dir string) ([]fs.DirEntry, error) {
	return os.ReadDir(dir)
}
