package builder

import (
	"context"
	"runtime"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/solari-transit/engine/internal/feed"
	"github.com/solari-transit/engine/internal/metrics"
	"github.com/solari-transit/engine/internal/timetable"
	"github.com/solari-transit/engine/internal/xerrors"
)

// BuildAll runs Stage 1-3 for each feed concurrently at a bounded
// fan-out (default: runtime.NumCPU(), the number of logical CPUs, §5), then merges the
// resulting partial images single-threadedly (Stage 4). A single bad
// feed's error is collected and does not abort the others.
func BuildAll(ctx context.Context, log *zap.SugaredLogger, feeds []feed.Source, anchor time.Time, opts Options, maxParallel int) (*timetable.InMemory, []error) {
	if maxParallel <= 0 {
		maxParallel = runtime.NumCPU()
	}
	sem := semaphore.NewWeighted(int64(maxParallel))
	images := make([]*timetable.InMemory, len(feeds))
	feedErrors := make([]error, len(feeds))

	g, gctx := errgroup.WithContext(ctx)
	for i, src := range feeds {
		i, src := i, src
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return nil
			}
			defer sem.Release(1)

			stageTimer := metrics.BuildStageDuration.WithLabelValues("ingest")
			start := time.Now()
			b := New(log, opts)
			if err := b.Ingest(src, anchor); err != nil {
				feedErrors[i] = xerrors.Wrapf(xerrors.InvalidFeed, err, "feed %s", src.FeedID)
				log.Warnw("skipping invalid feed", "feed", src.FeedID, "error", err)
				return nil
			}
			img, err := b.Finish()
			if err != nil {
				feedErrors[i] = err
				return nil
			}
			images[i] = img
			stageTimer.Observe(time.Since(start).Seconds())
			return nil
		})
	}
	_ = g.Wait()

	var good []*timetable.InMemory
	var errs []error
	for i, img := range images {
		if img != nil {
			good = append(good, img)
		}
		if feedErrors[i] != nil {
			errs = append(errs, feedErrors[i])
		}
	}
	if len(good) == 0 {
		return nil, append(errs, xerrors.New(xerrors.InvalidFeed, "no feed produced a usable image"))
	}

	merged, err := MergeImages(good...)
	if err != nil {
		return nil, append(errs, err)
	}
	return merged, errs
}
