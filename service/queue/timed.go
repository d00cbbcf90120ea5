package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/xerrors"

	"github.com/khaledhikmat/vs-erase/model"
	"github.com/khaledhikmat/vs-erase/service/config"
	"github.com/khaledhikmat/vs-erase/service/data"
	"github.com/khaledhikmat/vs-erase/service/lgr"
)

type timedService struct {
	CanxCtx     context.Context
	SubsCtx     context.Context
	SubsCancel  context.CancelFunc
	ClipChannel chan []model.ClipRecord
	Published   chan []model.ClipRecord
	CfgSvc      config.IService
	DataSvc     data.IService
	Seen        *seenSet
	Settle      time.Duration
	mu          sync.Mutex
}

// NewTimed scans the input folder every periodic timeout and delivers the
// sources it has not seen before once they stop changing. Published clips
// are delivered right away.
func NewTimed(canxCtx context.Context, cfgSvc config.IService, dataSvc data.IService) IService {
	return newTimed(canxCtx, cfgSvc, dataSvc, settle)
}

func newTimed(canxCtx context.Context, cfgSvc config.IService, dataSvc data.IService, quiet time.Duration) *timedService {
	return &timedService{
		CanxCtx:   canxCtx,
		CfgSvc:    cfgSvc,
		DataSvc:   dataSvc,
		Published: make(chan []model.ClipRecord, 16),
		Seen:      newSeenSet(dataSvc),
		Settle:    quiet,
	}
}

func (svc *timedService) Publish(clips []model.ClipRecord) error {
	if err := svc.Seen.publish(svc.Published, clips); err != nil {
		return xerrors.Errorf("queue timed service: %w", err)
	}
	return nil
}

func (svc *timedService) Subscribe() (<-chan []model.ClipRecord, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if svc.SubsCtx != nil {
		lgr.Logger.Error(
			"queue timed service. Already subscribed to clips. Unsubscribe first",
		)
		return nil, xerrors.New("queue timed service. child context is not nil. Unsubscribe first")
	}

	// Regardless of how many times we subscribe/unsubscribe, we will always
	// have only one channel to send the clips to the watcher
	if svc.ClipChannel == nil {
		svc.ClipChannel = make(chan []model.ClipRecord)
	}

	subsContext, subsCancel := context.WithCancel(svc.CanxCtx)
	svc.SubsCtx = subsContext
	svc.SubsCancel = subsCancel

	period := time.Duration(svc.CfgSvc.GetQueuePeriodicTimeout()) * time.Second
	go func(ctx context.Context) {
		defer svc.cleanup()

		ticker := time.NewTicker(period)
		defer ticker.Stop()

		// retry fires once sources still being written have had time to settle
		var retry <-chan time.Time
		if svc.scan(ctx) {
			retry = time.After(svc.Settle)
		}
		for {
			select {
			case <-ctx.Done():
				lgr.Logger.Info(
					"queue timed service context cancelled",
				)
				return
			case clips := <-svc.Published:
				svc.deliver(ctx, clips)
			case <-ticker.C:
				if svc.scan(ctx) && retry == nil {
					retry = time.After(svc.Settle)
				}
			case <-retry:
				retry = nil
				if svc.scan(ctx) {
					retry = time.After(svc.Settle)
				}
			}
		}
	}(subsContext)

	return svc.ClipChannel, nil
}

// scan delivers the fresh sources that have settled and reports whether any
// source was skipped because it is still changing.
func (svc *timedService) scan(ctx context.Context) bool {
	now := time.Now()
	ready := []string{}
	unsettled := false
	for _, src := range ScanSources(svc.CfgSvc.GetInputFolder()) {
		if settled(src, svc.Settle, now) {
			ready = append(ready, src)
			continue
		}
		unsettled = true
	}

	clips := svc.Seen.fresh(ready)
	if len(clips) == 0 {
		return unsettled
	}

	lgr.Logger.Info("queue timed service found clips",
		slog.Int("clips", len(clips)),
		slog.String("folder", svc.CfgSvc.GetInputFolder()),
	)
	svc.deliver(ctx, clips)
	return unsettled
}

func (svc *timedService) deliver(ctx context.Context, clips []model.ClipRecord) {
	select {
	case <-ctx.Done():
	case svc.ClipChannel <- clips:
	}
}

func (svc *timedService) Unsubscribe() error {
	svc.mu.Lock()
	subscribed := svc.SubsCtx != nil
	svc.mu.Unlock()

	if !subscribed {
		return xerrors.New("Not subscribed yet. Subscribe first")
	}

	svc.cleanup()
	return nil
}

func (svc *timedService) Finalize() {
	svc.cleanup()
}

func (svc *timedService) cleanup() {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if svc.SubsCancel != nil {
		svc.SubsCancel()
		svc.SubsCtx = nil
		svc.SubsCancel = nil
	}
}
