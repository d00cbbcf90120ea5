package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"golang.org/x/xerrors"

	"github.com/khaledhikmat/vs-erase/mode"
	"github.com/khaledhikmat/vs-erase/service/config"
	"github.com/khaledhikmat/vs-erase/service/data"
	"github.com/khaledhikmat/vs-erase/service/imaging"
	"github.com/khaledhikmat/vs-erase/service/inference/dnn"
	"github.com/khaledhikmat/vs-erase/service/lgr"
	"github.com/khaledhikmat/vs-erase/service/notify"
	"github.com/khaledhikmat/vs-erase/service/queue"
	"github.com/khaledhikmat/vs-erase/service/storage"
	"github.com/khaledhikmat/vs-erase/service/video"
)

const (
	// WARNING: this has to be bigger that the mode processor shutdown time
	waitOnShutdown = 8 * time.Second
)

var modeProcessors = map[string]mode.Processor{
	"mask":      mode.Mask,
	"inpaint":   mode.Inpaint,
	"run":       mode.Run,
	"watch":     mode.Watch,
	"serve":     mode.Serve,
	"transcode": mode.Transcode,
}

func main() {
	rootCtx := context.Background()
	canxCtx, canxFn := context.WithCancel(rootCtx)
	defer canxFn()

	// Hook up a signal handler to cancel the context
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		lgr.Logger.Info(
			"received kill signal",
			slog.Any("signal", sig),
		)
		canxFn()
	}()

	// Load env vars if we are in DEV mode
	if os.Getenv("RUN_TIME_ENV") == "dev" || os.Getenv("RUN_TIME_ENV") == "" {
		if err := godotenv.Load(); err != nil {
			lgr.Logger.Debug("no .env file loaded", lgr.Err(err))
		}
	}

	modeType := "watch"
	args := os.Args[1:]
	if len(args) > 0 {
		modeType = args[0]
		args = args[1:]
	}

	modeProc, ok := modeProcessors[modeType]
	if !ok {
		color.Red("invalid mode %q. Valid modes: mask, inpaint, run, watch, serve, transcode", modeType)
		os.Exit(2)
	}

	cfgSvc, err := config.NewYAML(os.Getenv("VSE_CONFIG"))
	if err != nil {
		color.Red("configuration error: %v", err)
		os.Exit(2)
	}
	lgr.Configure(cfgSvc.GetLogLevel(), cfgSvc.GetLogFile())

	svcs, err := newServices(canxCtx, cfgSvc)
	if err != nil {
		lgr.Logger.Error("error creating services", lgr.Err(err))
		os.Exit(1)
	}
	defer finalize(svcs)

	// Create mode processor result
	modeProcResult := make(chan error, 1)

	startTime := time.Now()
	go func() {
		modeProcResult <- modeProc(canxCtx, svcs, args)
	}()

	var procErr error
	select {
	case <-canxCtx.Done():
		lgr.Logger.Info(
			"vs-erase context cancelled",
		)

		// Wait for the mode processor to wind down
		timer := time.NewTimer(waitOnShutdown)
		defer timer.Stop()

		select {
		case <-timer.C:
			lgr.Logger.Info(
				"vs-erase shutdown waiting period expired. Exiting now",
				slog.Duration("period", waitOnShutdown),
			)
		case procErr = <-modeProcResult:
		}

	case procErr = <-modeProcResult:
	}

	summary(modeType, args, time.Since(startTime), procErr)
	if procErr != nil {
		finalize(svcs)
		os.Exit(1)
	}
}

// newServices creates the services needed for the mode processors from the
// configuration.
func newServices(canxCtx context.Context, cfgSvc config.IService) (mode.ServicesFactory, error) {
	var (
		dataSvc data.IService
		err     error
	)
	switch cfgSvc.GetLedgerType() {
	case "sqlite":
		dataSvc, err = data.NewSQLite(cfgSvc)
		if err != nil {
			return mode.ServicesFactory{}, err
		}
	default:
		dataSvc = data.NewFilesDB(cfgSvc)
	}

	if err := os.MkdirAll(cfgSvc.GetInputFolder(), 0755); err != nil {
		return mode.ServicesFactory{}, xerrors.Errorf("creating input folder: %w", err)
	}

	var queueSvc queue.IService
	switch cfgSvc.GetQueueType() {
	case "fsnotify":
		queueSvc, err = queue.NewWatcher(canxCtx, cfgSvc, dataSvc)
		if err != nil {
			return mode.ServicesFactory{}, err
		}
	default:
		queueSvc = queue.NewTimed(canxCtx, cfgSvc, dataSvc)
	}

	imagingSvc := imaging.NewGoCV()

	return mode.ServicesFactory{
		CfgSvc:      cfgSvc,
		DataSvc:     dataSvc,
		StorageSvc:  storage.NewLocal(cfgSvc, imagingSvc),
		ImagingSvc:  imagingSvc,
		QueueSvc:    queueSvc,
		NotifySvc:   notify.NewWebhook(cfgSvc),
		VideoSvc:    video.NewGoCV(),
		NewDetector: dnn.NewDetector,
		NewBackend:  dnn.NewBackend,
	}, nil
}

func finalize(svcs mode.ServicesFactory) {
	if svcs.QueueSvc != nil {
		svcs.QueueSvc.Finalize()
	}
	if svcs.DataSvc != nil {
		if err := svcs.DataSvc.Finalize(); err != nil {
			lgr.Logger.Warn("error closing ledger", lgr.Err(err))
		}
	}
}

func summary(modeType string, args []string, elapsed time.Duration, err error) {
	label := color.New(color.Bold).SprintFunc()
	fmt.Printf("%s %s %v (%s)\n", label("mode:"), modeType, args, elapsed.Round(time.Millisecond))
	if err != nil {
		color.Red("failed: %v", err)
		return
	}
	color.Green("completed")
}
