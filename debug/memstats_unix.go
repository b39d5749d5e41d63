//go:build linux || darwin

package debug

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"
)

// StartMemLogger logs peak RSS from getrusage next to Go heap stats every
// interval until ctx is done.
func StartMemLogger(ctx context.Context, interval time.Duration, logger *slog.Logger) {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		var rssErrLogged bool
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			var ms runtime.MemStats
			runtime.ReadMemStats(&ms)
			var ru unix.Rusage
			maxRSS := uint64(0)
			if err := unix.Getrusage(unix.RUSAGE_SELF, &ru); err == nil {
				maxRSS = rssBytes(int64(ru.Maxrss))
			} else if !rssErrLogged {
				logger.Warn("memlog: getrusage failed", slog.String("err", err.Error()))
				rssErrLogged = true
			}
			logger.Info("memstats", append(heapAttrs(&ms), slog.String("max_rss", humanize.IBytes(maxRSS)))...)
		}
	}()
}

// rssBytes converts ru_maxrss, reported in KiB on Linux and bytes on Darwin.
func rssBytes(maxrss int64) uint64 {
	if maxrss < 0 {
		return 0
	}
	if runtime.GOOS == "darwin" {
		return uint64(maxrss)
	}
	return uint64(maxrss) * 1024
}
