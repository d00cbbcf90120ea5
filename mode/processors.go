package mode

import (
	"context"
	"log/slog"

	"golang.org/x/xerrors"

	"github.com/khaledhikmat/vs-erase/model"
	"github.com/khaledhikmat/vs-erase/service/lgr"
)

// Mask expects <src> <dst>: a frame directory or mp4 file, and the root the
// clip's mask artifacts are written under.
func Mask(canxCtx context.Context, svcs ServicesFactory, args []string) error {
	if len(args) != 2 {
		return xerrors.Errorf("mask <src> <dst>: %w", ErrUsage)
	}

	_, _, err := MaskClip(canxCtx, svcs, args[0], args[1])
	if err != nil {
		procError(svcs.DataSvc, model.GenError("masker", err, map[string]interface{}{"source": args[0]}, "error masking clip"))
	}
	return err
}

// Inpaint expects <clipdir>, a directory holding images/ and masks/.
func Inpaint(canxCtx context.Context, svcs ServicesFactory, args []string) error {
	if len(args) != 1 {
		return xerrors.Errorf("inpaint <clipdir>: %w", ErrUsage)
	}

	_, _, err := InpaintClip(canxCtx, svcs, args[0])
	if err != nil {
		procError(svcs.DataSvc, model.GenError("inpainter", err, map[string]interface{}{"dir": args[0]}, "error inpainting clip"))
	}
	return err
}

// Run expects <src> and masks then inpaints it in one go.
func Run(canxCtx context.Context, svcs ServicesFactory, args []string) error {
	if len(args) != 1 {
		return xerrors.Errorf("run <src>: %w", ErrUsage)
	}

	rec, err := RunClip(canxCtx, svcs, model.ClipRecord{Source: args[0]})
	if err != nil {
		return err
	}

	lgr.Logger.Info("clip run finished",
		slog.String("id", rec.ID),
		slog.String("results", rec.ResultDir),
	)
	return nil
}

// Transcode expects <root> [<outroot>]. Without an output root the .mov
// files are written next to their sources.
func Transcode(canxCtx context.Context, svcs ServicesFactory, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return xerrors.Errorf("transcode <root> [<outroot>]: %w", ErrUsage)
	}

	root, outRoot := args[0], args[0]
	if len(args) == 2 {
		outRoot = args[1]
	}

	n, err := svcs.VideoSvc.Transcode(canxCtx, root, outRoot)
	if err != nil {
		procError(svcs.DataSvc, model.GenError("transcoder", err, map[string]interface{}{"root": root}, "error transcoding videos"))
		return err
	}

	lgr.Logger.Info("videos transcoded",
		slog.String("root", root),
		slog.String("outRoot", outRoot),
		slog.Int("files", n),
	)
	return nil
}
