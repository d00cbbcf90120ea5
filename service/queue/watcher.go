package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/xerrors"

	"github.com/khaledhikmat/vs-erase/model"
	"github.com/khaledhikmat/vs-erase/service/config"
	"github.com/khaledhikmat/vs-erase/service/data"
	"github.com/khaledhikmat/vs-erase/service/lgr"
)

// settle is how long a new source must stay quiet before it is delivered.
const settle = 2 * time.Second

type watcherService struct {
	CanxCtx     context.Context
	SubsCtx     context.Context
	SubsCancel  context.CancelFunc
	ClipChannel chan []model.ClipRecord
	Published   chan []model.ClipRecord
	CfgSvc      config.IService
	Seen        *seenSet
	Settle      time.Duration
	watcher     *fsnotify.Watcher
	mu          sync.Mutex
}

// NewWatcher delivers sources created in the input folder once their files
// stop changing. Sources present at subscription time are delivered too.
func NewWatcher(canxCtx context.Context, cfgSvc config.IService, dataSvc data.IService) (IService, error) {
	return newWatcher(canxCtx, cfgSvc, dataSvc, settle)
}

func newWatcher(canxCtx context.Context, cfgSvc config.IService, dataSvc data.IService, quiet time.Duration) (*watcherService, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, xerrors.Errorf("creating watcher: %w", err)
	}

	if err := w.Add(cfgSvc.GetInputFolder()); err != nil {
		w.Close()
		return nil, xerrors.Errorf("watching %s: %w", cfgSvc.GetInputFolder(), err)
	}

	return &watcherService{
		CanxCtx:   canxCtx,
		CfgSvc:    cfgSvc,
		Published: make(chan []model.ClipRecord, 16),
		Seen:      newSeenSet(dataSvc),
		Settle:    quiet,
		watcher:   w,
	}, nil
}

func (svc *watcherService) Publish(clips []model.ClipRecord) error {
	if err := svc.Seen.publish(svc.Published, clips); err != nil {
		return xerrors.Errorf("queue watcher service: %w", err)
	}
	return nil
}

func (svc *watcherService) Subscribe() (<-chan []model.ClipRecord, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if svc.SubsCtx != nil {
		return nil, xerrors.New("queue watcher service. child context is not nil. Unsubscribe first")
	}

	if svc.ClipChannel == nil {
		svc.ClipChannel = make(chan []model.ClipRecord)
	}

	subsContext, subsCancel := context.WithCancel(svc.CanxCtx)
	svc.SubsCtx = subsContext
	svc.SubsCancel = subsCancel

	go svc.run(subsContext)

	return svc.ClipChannel, nil
}

func (svc *watcherService) run(ctx context.Context) {
	defer svc.cleanup()

	// Pending sources and the time of their last change.
	pending := map[string]time.Time{}
	for _, src := range ScanSources(svc.CfgSvc.GetInputFolder()) {
		pending[src] = time.Time{}
	}

	ticker := time.NewTicker(svc.Settle / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			lgr.Logger.Info("queue watcher service context cancelled")
			return

		case clips := <-svc.Published:
			svc.deliver(ctx, clips)

		case event, ok := <-svc.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			// New directories are watched so frame copies keep them pending.
			if event.Op&fsnotify.Create == fsnotify.Create {
				if IsSource(event.Name) || isDir(event.Name) {
					_ = svc.watcher.Add(event.Name)
				}
			}
			pending[svc.sourceOf(event.Name)] = time.Now()

		case err, ok := <-svc.watcher.Errors:
			if !ok {
				return
			}
			lgr.Logger.Warn("queue watcher service error", lgr.Err(err))

		case now := <-ticker.C:
			ready := []string{}
			for src, changed := range pending {
				if now.Sub(changed) < svc.Settle {
					continue
				}
				delete(pending, src)
				if IsSource(src) {
					ready = append(ready, src)
				}
			}

			clips := svc.Seen.fresh(ready)
			if len(clips) == 0 {
				continue
			}
			lgr.Logger.Info("queue watcher service found clips", slog.Int("clips", len(clips)))
			svc.deliver(ctx, clips)
		}
	}
}

// sourceOf maps a changed path to the top-level entry of the input folder.
func (svc *watcherService) sourceOf(path string) string {
	root := svc.CfgSvc.GetInputFolder()
	return topLevel(root, path)
}

func (svc *watcherService) deliver(ctx context.Context, clips []model.ClipRecord) {
	select {
	case <-ctx.Done():
	case svc.ClipChannel <- clips:
	}
}

func (svc *watcherService) Unsubscribe() error {
	svc.mu.Lock()
	subscribed := svc.SubsCtx != nil
	svc.mu.Unlock()

	if !subscribed {
		return xerrors.New("Not subscribed yet. Subscribe first")
	}

	svc.cleanup()
	return nil
}

func (svc *watcherService) Finalize() {
	svc.cleanup()
	svc.watcher.Close()
}

func (svc *watcherService) cleanup() {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if svc.SubsCancel != nil {
		svc.SubsCancel()
		svc.SubsCtx = nil
		svc.SubsCancel = nil
	}
}
