package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/xerrors"

	"github.com/khaledhikmat/vs-erase/model"
	"github.com/khaledhikmat/vs-erase/service/inference"
	"github.com/khaledhikmat/vs-erase/service/lgr"
)

// SynthesizeMasks builds the FrameMask of every frame in order. The first
// detector failure stops the clip.
func (p *Pipeline) SynthesizeMasks(ctx context.Context, clip string, frames []model.Frame, detector inference.Detector) (masks []model.FrameMask, stats model.MaskerStats, err error) {
	ctx, span := tracer.Start(ctx, "pipeline.synthesize_masks")
	defer span.End()
	span.SetAttributes(attribute.String("clip", clip), attribute.Int("frames", len(frames)))

	startTime := time.Now()
	stats = model.MaskerStats{
		Name: "masker",
		Clip: clip,
	}
	defer func() {
		stats.Uptime = int64(time.Since(startTime).Seconds())
		if stats.Frames > 0 {
			stats.AvgProcTime = float64(time.Since(startTime).Milliseconds()) / float64(stats.Frames)
		}
		stats.Timestamp = time.Now().Unix()
	}()

	if len(frames) == 0 {
		return nil, stats, xerrors.Errorf("clip %q: %w", clip, model.ErrEmptyClip)
	}

	masks = make([]model.FrameMask, 0, len(frames))
	total := MaskCounts{}
	for _, frame := range frames {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}

		fm, counts, err := p.synthesizer.Synthesize(ctx, frame, detector)
		if err != nil {
			stats.Errors++
			span.RecordError(err)
			span.SetStatus(codes.Error, "detection failed")
			return nil, stats, err
		}

		total.add(counts)
		masks = append(masks, fm)
		stats.Frames++
	}

	stats.Primaries = total.Primaries
	stats.Rejected = total.Rejected
	stats.Dependents = total.Dependents
	stats.MaskedPixels = total.MaskedPixels
	return masks, stats, nil
}

// InpaintWindowed fills the clip with a temporal model. Windows are blended in
// non-decreasing anchor order even when inference runs on several workers.
// Any inference failure aborts the clip and no frame is returned.
func (p *Pipeline) InpaintWindowed(ctx context.Context, clip model.Clip, backend inference.WindowBackend) (frames []model.Frame, stats model.InpainterStats, err error) {
	startTime := time.Now()
	stats = model.InpainterStats{
		Name:    "windowedInpainter",
		Clip:    clip.Name,
		Backend: backend.Name(),
		Workers: p.workers,
	}
	defer func() {
		stats.Uptime = int64(time.Since(startTime).Seconds())
		if stats.Windows > 0 {
			stats.AvgProcTime = float64(time.Since(startTime).Milliseconds()) / float64(stats.Windows)
		}
		stats.Timestamp = time.Now().Unix()
	}()

	if err := clip.Validate(); err != nil {
		return nil, stats, err
	}

	ctx, span := tracer.Start(ctx, "pipeline.inpaint_windowed")
	defer span.End()
	span.SetAttributes(
		attribute.String("clip", clip.Name),
		attribute.String("backend", backend.Name()),
		attribute.Int("frames", clip.Len()),
		attribute.Int("workers", p.workers),
	)

	acc := NewAccumulator(clip.Len(), clip.Frames[0].H, clip.Frames[0].W)
	apply := func(w model.Window, pred model.Tensor) error {
		if err := p.compositor.Apply(w, clip, pred, acc); err != nil {
			return err
		}
		stats.Windows++
		stats.TrimmedRefs += w.Trimmed
		if w.OverBudget {
			stats.OverBudget++
			lgr.Logger.Warn("window exceeds budget",
				slog.String("clip", clip.Name),
				slog.Int("anchor", w.Anchor),
				slog.Int("size", w.Size()),
			)
		}
		return nil
	}

	if p.workers == 1 {
		err = p.runSequential(ctx, clip, backend, apply)
	} else {
		err = p.runConcurrent(ctx, clip, backend, apply)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "inpainting failed")
		return nil, stats, err
	}

	names := make([]string, clip.Len())
	for i, f := range clip.Frames {
		names[i] = f.Name
		if acc.Hits(i) > 1 {
			stats.Blends += acc.Hits(i) - 1
		}
	}

	frames, err = acc.Finalize(names)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "uncovered frame")
		return nil, stats, err
	}
	stats.Frames = len(frames)
	return frames, stats, nil
}

func (p *Pipeline) runSequential(ctx context.Context, clip model.Clip, backend inference.WindowBackend, apply func(model.Window, model.Tensor) error) error {
	for w := range p.scheduler.Windows(clip.Len()) {
		pred, err := p.predict(ctx, w, clip, backend)
		if err != nil {
			return err
		}
		if err := apply(w, pred); err != nil {
			return err
		}
	}
	return nil
}

type windowJob struct {
	seq    int
	window model.Window
}

type windowResult struct {
	windowJob
	pred model.Tensor
	err  error
}

// runConcurrent predicts windows on a bounded pool of workers and applies
// their results in scheduling order through a reorder buffer. At most
// 2*workers windows are in flight.
func (p *Pipeline) runConcurrent(ctx context.Context, clip model.Clip, backend inference.WindowBackend, apply func(model.Window, model.Tensor) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	inflight := make(chan struct{}, 2*p.workers)
	jobs := make(chan windowJob)
	results := make(chan windowResult)

	go func() {
		defer close(jobs)
		seq := 0
		for w := range p.scheduler.Windows(clip.Len()) {
			select {
			case <-ctx.Done():
				return
			case inflight <- struct{}{}:
			}

			select {
			case <-ctx.Done():
				return
			case jobs <- windowJob{seq: seq, window: w}:
			}
			seq++
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				pred, err := p.predict(ctx, job.window, clip, backend)
				select {
				case <-ctx.Done():
					return
				case results <- windowResult{windowJob: job, pred: pred, err: err}:
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	pending := map[int]windowResult{}
	next := 0
	var firstErr error
	for r := range results {
		if firstErr != nil {
			continue
		}
		if r.err != nil {
			firstErr = r.err
			cancel()
			continue
		}

		pending[r.seq] = r
		for {
			ready, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			next++
			<-inflight

			if err := apply(ready.window, ready.pred); err != nil {
				firstErr = err
				cancel()
				break
			}
		}
	}

	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}

func (p *Pipeline) predict(ctx context.Context, w model.Window, clip model.Clip, backend inference.WindowBackend) (model.Tensor, error) {
	ctx, span := tracer.Start(ctx, "pipeline.window")
	defer span.End()
	span.SetAttributes(
		attribute.Int("anchor", w.Anchor),
		attribute.Int("neighbors", len(w.NeighborIDs)),
		attribute.Int("refs", len(w.RefIDs)),
	)

	if err := ctx.Err(); err != nil {
		return model.Tensor{}, err
	}

	pred, err := p.compositor.Predict(ctx, w, clip, backend)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "inference failed")
		return model.Tensor{}, err
	}
	return pred, nil
}

// InpaintSingle fills every frame independently with a single-frame model, in
// sequence order. Masked pixels are fed to the model at the 1.0 fill value.
func (p *Pipeline) InpaintSingle(ctx context.Context, clip model.Clip, backend inference.FrameBackend) (out []model.Frame, stats model.InpainterStats, err error) {
	startTime := time.Now()
	stats = model.InpainterStats{
		Name:    "singleFrameInpainter",
		Clip:    clip.Name,
		Backend: backend.Name(),
		Workers: 1,
	}
	defer func() {
		stats.Uptime = int64(time.Since(startTime).Seconds())
		if stats.Frames > 0 {
			stats.AvgProcTime = float64(time.Since(startTime).Milliseconds()) / float64(stats.Frames)
		}
		stats.Timestamp = time.Now().Unix()
	}()

	if err := clip.Validate(); err != nil {
		return nil, stats, err
	}

	ctx, span := tracer.Start(ctx, "pipeline.inpaint_single")
	defer span.End()
	span.SetAttributes(
		attribute.String("clip", clip.Name),
		attribute.String("backend", backend.Name()),
		attribute.Int("frames", clip.Len()),
	)

	out = make([]model.Frame, 0, clip.Len())
	for i, frame := range clip.Frames {
		if err := ctx.Err(); err != nil {
			return nil, stats, err
		}

		mask := clip.Masks[i]
		masked := FramesToTensor([]model.Frame{frame}, []model.Mask{mask}, 1)
		pred, err := backend.InpaintFrame(ctx, masked, MasksToTensor([]model.Mask{mask}))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "inference failed")
			return nil, stats, xerrors.Errorf("frame %s: %w", frame.Name, err)
		}
		if err := pred.Expect(1, 3, frame.H, frame.W); err != nil {
			return nil, stats, xerrors.Errorf("frame %s: %w", frame.Name, err)
		}

		result := model.NewFrame(frame.Index, frame.Name, frame.H, frame.W)
		for px, v := range compose(pred, 0, frame, mask) {
			result.Pix[px] = uint8(v)
		}
		out = append(out, result)
		stats.Frames++
	}

	return out, stats, nil
}
