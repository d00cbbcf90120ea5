package mode

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/xerrors"

	"github.com/khaledhikmat/vs-erase/api"
	"github.com/khaledhikmat/vs-erase/service/lgr"
)

// Serve exposes the clip API and processes submitted and discovered clips
// until the context is cancelled or the listener fails.
func Serve(canxCtx context.Context, svcs ServicesFactory, args []string) error {
	ctx, cancel := context.WithCancel(canxCtx)
	defer cancel()

	srv := &http.Server{
		Addr: svcs.CfgSvc.GetAPIAddress(),
		Handler: api.NewRouter(&api.App{
			CfgSvc:     svcs.CfgSvc,
			DataSvc:    svcs.DataSvc,
			StorageSvc: svcs.StorageSvc,
			QueueSvc:   svcs.QueueSvc,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		lgr.Logger.Info("api listening", slog.String("address", srv.Addr))
		err := srv.ListenAndServe()
		if err != nil && !xerrors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			cancel()
		}
		close(serveErr)
	}()

	watchErr := Watch(ctx, svcs, args)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(svcs.CfgSvc.GetModeMaxShutdownTime())*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lgr.Logger.Warn("api shutdown", lgr.Err(err))
	}

	if err := <-serveErr; err != nil {
		return xerrors.Errorf("api server: %w", err)
	}
	return watchErr
}
