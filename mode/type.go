package mode

import (
	"context"
	"log/slog"

	"golang.org/x/xerrors"

	"github.com/khaledhikmat/vs-erase/model"
	"github.com/khaledhikmat/vs-erase/service/config"
	"github.com/khaledhikmat/vs-erase/service/data"
	"github.com/khaledhikmat/vs-erase/service/imaging"
	"github.com/khaledhikmat/vs-erase/service/inference"
	"github.com/khaledhikmat/vs-erase/service/lgr"
	"github.com/khaledhikmat/vs-erase/service/notify"
	"github.com/khaledhikmat/vs-erase/service/queue"
	"github.com/khaledhikmat/vs-erase/service/storage"
	"github.com/khaledhikmat/vs-erase/service/video"
)

// ErrUsage reports missing or extra mode arguments.
var ErrUsage = xerrors.New("invalid arguments")

// ServicesFactory carries the services a mode processor needs. Models are
// opened per clip through the two constructors.
type ServicesFactory struct {
	CfgSvc      config.IService
	DataSvc     data.IService
	StorageSvc  storage.IService
	ImagingSvc  imaging.IService
	QueueSvc    queue.IService
	NotifySvc   notify.IService
	VideoSvc    video.IService
	NewDetector func(cfgsvc config.IService) (inference.Detector, error)
	NewBackend  func(cfgsvc config.IService) (inference.Backend, error)
}

type Processor func(canxCtx context.Context, svcs ServicesFactory, args []string) error

func procStats(datasvc data.IService, stats interface{}) {
	switch stats := stats.(type) {
	case model.MaskerStats:
		procMaskerStats(datasvc, stats)
	case model.InpainterStats:
		procInpainterStats(datasvc, stats)
	case model.WatcherStats:
		procWatcherStats(datasvc, stats)
	default:
		lgr.Logger.Error(
			"unknown stats type",
			slog.Any("stats", stats),
		)
	}
}

func procMaskerStats(datasvc data.IService, stats model.MaskerStats) {
	err := datasvc.NewMaskerStats(stats)
	if err != nil {
		lgr.Logger.Error(
			"failed to store masker stats",
			slog.Any("stats", stats),
			lgr.Err(err),
		)
	}
}

func procInpainterStats(datasvc data.IService, stats model.InpainterStats) {
	err := datasvc.NewInpainterStats(stats)
	if err != nil {
		lgr.Logger.Error(
			"failed to store inpainter stats",
			slog.Any("stats", stats),
			lgr.Err(err),
		)
	}
}

func procWatcherStats(datasvc data.IService, stats model.WatcherStats) {
	err := datasvc.NewWatcherStats(stats)
	if err != nil {
		lgr.Logger.Error(
			"failed to store watcher stats",
			slog.Any("stats", stats),
			lgr.Err(err),
		)
	}
}

func procError(datasvc data.IService, err interface{}) {
	errTemp := datasvc.NewError(err)
	if errTemp != nil {
		lgr.Logger.Error(
			"failed to store error",
			lgr.Err(errTemp),
		)
	}
}
