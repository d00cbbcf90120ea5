package mode

import (
	"context"
	"log/slog"
	"time"

	"github.com/khaledhikmat/vs-erase/model"
	"github.com/khaledhikmat/vs-erase/service/lgr"
)

// Watch processes the clips delivered by the queue service, one at a time,
// until the context is cancelled. Clips left queued in the ledger by an
// earlier process are published again first.
func Watch(canxCtx context.Context, svcs ServicesFactory, _ []string) error {
	clipStream, err := svcs.QueueSvc.Subscribe()
	if err != nil {
		return err
	}

	requeue(svcs)

	startTime := time.Now()
	stats := model.WatcherStats{
		Name: "watcher",
	}

	for {
		select {
		case <-canxCtx.Done():
			lgr.Logger.Info(
				"watcher context cancelled",
			)
			goto resume

		case clips := <-clipStream:
			stats.Queued += len(clips)

			for _, rec := range clips {
				if canxCtx.Err() != nil {
					break
				}

				_, err := RunClip(canxCtx, svcs, rec)
				if err != nil {
					stats.Failed++
					lgr.Logger.Warn("clip failed",
						slog.String("clip", rec.Clip),
						slog.String("source", rec.Source),
						lgr.Err(err),
					)
					continue
				}
				stats.Processed++
			}

			stats.Uptime = time.Now().Unix() - startTime.Unix()
			procStats(svcs.DataSvc, stats)
		}
	}

resume:
	lgr.Logger.Info(
		"watcher is exiting",
		slog.Int("queued", stats.Queued),
		slog.Int("processed", stats.Processed),
		slog.Int("failed", stats.Failed),
	)

	stats.Uptime = time.Now().Unix() - startTime.Unix()
	procStats(svcs.DataSvc, stats)

	if err := svcs.QueueSvc.Unsubscribe(); err != nil {
		lgr.Logger.Debug("watcher unsubscribe", lgr.Err(err))
	}
	return nil
}

func requeue(svcs ServicesFactory) {
	pending, err := svcs.DataSvc.RetrieveClipsByStatus(model.ClipStatusQueued)
	if err != nil {
		procError(svcs.DataSvc, model.GenError("watcher", err, map[string]interface{}{}, "error retrieving queued clips"))
		return
	}
	if len(pending) == 0 {
		return
	}

	if err := svcs.QueueSvc.Publish(pending); err != nil {
		procError(svcs.DataSvc, model.GenError("watcher", err, map[string]interface{}{}, "error publishing queued clips"))
		return
	}

	lgr.Logger.Info("watcher requeued clips", slog.Int("clips", len(pending)))
}
