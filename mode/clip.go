package mode

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/xerrors"

	"github.com/khaledhikmat/vs-erase/model"
	"github.com/khaledhikmat/vs-erase/pipeline"
	"github.com/khaledhikmat/vs-erase/service/inference"
	"github.com/khaledhikmat/vs-erase/service/lgr"
	"github.com/khaledhikmat/vs-erase/service/storage"
)

var tracer = otel.Tracer("github.com/khaledhikmat/vs-erase/mode")

const resultFPS = 30

func clipName(src string) string {
	base := filepath.Base(filepath.Clean(src))
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func isVideo(src string) bool {
	return strings.EqualFold(filepath.Ext(src), ".mp4")
}

// MaskClip runs the detector over every frame of src (a frame directory or an
// mp4 file) and writes the clip's images, masks and objects under dst/<clip>.
func MaskClip(ctx context.Context, svcs ServicesFactory, src, dst string) (string, model.MaskerStats, error) {
	name := clipName(src)
	clipDir := filepath.Join(dst, name)

	ctx, span := tracer.Start(ctx, "mode.mask_clip")
	defer span.End()
	span.SetAttributes(attribute.String("clip", name), attribute.String("source", src))

	srcDir := src
	if isVideo(src) {
		tmp, err := os.MkdirTemp("", "vse-"+name+"-")
		if err != nil {
			return "", model.MaskerStats{}, xerrors.Errorf("creating frame directory: %w", err)
		}
		defer os.RemoveAll(tmp)

		if _, err := svcs.VideoSvc.ExtractFrames(ctx, src, tmp); err != nil {
			return "", model.MaskerStats{}, err
		}
		srcDir = tmp
	}

	frames, err := svcs.StorageSvc.LoadFrames(srcDir)
	if err != nil {
		return "", model.MaskerStats{}, err
	}
	if len(frames) == 0 {
		return "", model.MaskerStats{}, xerrors.Errorf("%s: %w", srcDir, model.ErrEmptyClip)
	}

	p, err := pipeline.New(svcs.CfgSvc)
	if err != nil {
		return "", model.MaskerStats{}, err
	}

	detector, err := svcs.NewDetector(svcs.CfgSvc)
	if err != nil {
		return "", model.MaskerStats{}, xerrors.Errorf("opening detector: %w", err)
	}
	defer detector.Close()

	masks, stats, err := p.SynthesizeMasks(ctx, name, frames, detector)
	procStats(svcs.DataSvc, stats)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "mask synthesis failed")
		return "", stats, err
	}

	for _, fm := range masks {
		if err := svcs.StorageSvc.SaveMaskArtifacts(clipDir, filepath.Join(srcDir, fm.Name), fm); err != nil {
			return "", stats, err
		}
	}

	lgr.WithSpan(ctx).Info("clip masked",
		slog.String("clip", name),
		slog.String("dir", clipDir),
		slog.Int("frames", stats.Frames),
		slog.Int("primaries", stats.Primaries),
		slog.Int("rejected", stats.Rejected),
	)
	return clipDir, stats, nil
}

// InpaintClip fills the masked regions of a clip directory with the configured
// backend and writes the frames to the backend's result directory.
func InpaintClip(ctx context.Context, svcs ServicesFactory, clipDir string) (string, model.InpainterStats, error) {
	ctx, span := tracer.Start(ctx, "mode.inpaint_clip")
	defer span.End()
	span.SetAttributes(attribute.String("dir", clipDir))

	imgDir := filepath.Join(clipDir, storage.ImagesDir)
	names, err := svcs.StorageSvc.ListImages(imgDir)
	if err != nil {
		return "", model.InpainterStats{}, err
	}
	if len(names) == 0 {
		return "", model.InpainterStats{}, xerrors.Errorf("%s: %w", imgDir, model.ErrEmptyClip)
	}

	backend, err := svcs.NewBackend(svcs.CfgSvc)
	if err != nil {
		return "", model.InpainterStats{}, xerrors.Errorf("opening backend: %w", err)
	}
	defer backend.Close()

	width, height := backend.Size()
	clip, err := svcs.StorageSvc.LoadClip(clipDir, storage.LoadOptions{
		Width:            width,
		Height:           height,
		DilateIterations: svcs.CfgSvc.GetCompositorParameters().DilateIterations,
	})
	if err != nil {
		return "", model.InpainterStats{}, err
	}

	p, err := pipeline.New(svcs.CfgSvc)
	if err != nil {
		return "", model.InpainterStats{}, err
	}

	var (
		frames []model.Frame
		stats  model.InpainterStats
	)
	switch b := backend.(type) {
	case inference.WindowBackend:
		frames, stats, err = p.InpaintWindowed(ctx, clip, b)
	case inference.FrameBackend:
		frames, stats, err = p.InpaintSingle(ctx, clip, b)
	default:
		err = xerrors.Errorf("backend %s has no inpainting method", backend.Name())
	}
	procStats(svcs.DataSvc, stats)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "inpainting failed")
		return "", stats, err
	}

	dir := svcs.StorageSvc.ResultDir(backend.Name(), clip.Name)
	if err := svcs.StorageSvc.SaveResults(dir, frames); err != nil {
		return "", stats, err
	}

	lgr.WithSpan(ctx).Info("clip inpainted",
		slog.String("clip", clip.Name),
		slog.String("backend", backend.Name()),
		slog.String("dir", dir),
		slog.Int("frames", stats.Frames),
		slog.Int("windows", stats.Windows),
	)
	return dir, stats, nil
}

// RunClip masks and inpaints one source, tracking it in the ledger. A record
// without an ID is created first. Failures are recorded, not retried.
func RunClip(ctx context.Context, svcs ServicesFactory, rec model.ClipRecord) (model.ClipRecord, error) {
	runID := uuid.New().String()
	ctx, span := tracer.Start(ctx, "mode.run_clip")
	defer span.End()
	span.SetAttributes(attribute.String("run", runID), attribute.String("source", rec.Source))

	if rec.Clip == "" {
		rec.Clip = clipName(rec.Source)
	}
	rec.Stage = "run"
	rec.Status = model.ClipStatusRunning
	rec.Backend = svcs.CfgSvc.GetBackendName()
	rec.Error = ""
	rec.StartedAt = time.Now().Unix()

	var err error
	if rec.ID == "" {
		rec, err = svcs.DataSvc.NewClip(rec)
	} else {
		err = svcs.DataSvc.UpdateClip(rec)
	}
	if err != nil {
		return rec, xerrors.Errorf("recording clip %s: %w", rec.Clip, err)
	}

	lgr.WithSpan(ctx).Info("clip run started",
		slog.String("run", runID),
		slog.String("id", rec.ID),
		slog.String("source", rec.Source),
	)

	runErr := runStages(ctx, svcs, &rec)

	rec.EndedAt = time.Now().Unix()
	rec.Status = model.ClipStatusDone
	if runErr != nil {
		rec.Status = model.ClipStatusFailed
		rec.Error = runErr.Error()
		span.RecordError(runErr)
		span.SetStatus(codes.Error, "clip run failed")

		customErr := model.GenError("clip_runner", runErr, map[string]interface{}{"run": runID, "source": rec.Source}, "error running clip %s", rec.Clip)
		customErr.Clip = rec.Clip
		procError(svcs.DataSvc, customErr)
	}

	if err := svcs.DataSvc.UpdateClip(rec); err != nil {
		procError(svcs.DataSvc, model.GenError("clip_runner", err, map[string]interface{}{"run": runID}, "error updating clip %s", rec.ID))
	}

	if err := svcs.NotifySvc.Post(map[string]interface{}{
		"run":       runID,
		"id":        rec.ID,
		"clip":      rec.Clip,
		"status":    rec.Status,
		"backend":   rec.Backend,
		"frames":    rec.Frames,
		"resultDir": rec.ResultDir,
		"error":     rec.Error,
	}); err != nil {
		lgr.Logger.Warn("clip notification failed", slog.String("id", rec.ID), lgr.Err(err))
	}

	return rec, runErr
}

func runStages(ctx context.Context, svcs ServicesFactory, rec *model.ClipRecord) error {
	clipDir, maskStats, err := MaskClip(ctx, svcs, rec.Source, svcs.CfgSvc.GetOutputFolder())
	if err != nil {
		return err
	}
	rec.Frames = maskStats.Frames

	resultDir, _, err := InpaintClip(ctx, svcs, clipDir)
	if err != nil {
		return err
	}
	rec.ResultDir = resultDir

	if isVideo(rec.Source) {
		out := resultDir + ".mp4"
		if err := svcs.VideoSvc.AssembleMP4(ctx, resultDir, out, resultFPS); err != nil {
			return err
		}
	}
	return nil
}
