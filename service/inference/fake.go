package inference

import (
	"context"
	"sync"

	"github.com/khaledhikmat/vs-erase/model"
)

type fakeDetector struct {
	detections map[int]model.DetectionSet
}

// NewFakeDetector answers from a table keyed by frame index. Unknown frames have no detections.
func NewFakeDetector(detections map[int]model.DetectionSet) Detector {
	return &fakeDetector{
		detections: detections,
	}
}

func (svc *fakeDetector) Detect(_ context.Context, frame model.Frame) (model.DetectionSet, error) {
	set, ok := svc.detections[frame.Index]
	if !ok {
		return model.DetectionSet{}, nil
	}
	return set, nil
}

func (svc *fakeDetector) Close() error {
	return nil
}

type fakeFrameBackend struct {
	Base
	fill float32
}

// NewFakeFrameBackend predicts a constant value for every pixel.
func NewFakeFrameBackend(fill float32) FrameBackend {
	return &fakeFrameBackend{
		Base: Base{BackendName: "fake", Kind: SingleFrame},
		fill: fill,
	}
}

func (svc *fakeFrameBackend) InpaintFrame(_ context.Context, masked model.Tensor, _ model.Tensor) (model.Tensor, error) {
	out := model.NewTensor(masked.T, masked.C, masked.H, masked.W)
	for i := range out.Data {
		out.Data[i] = svc.fill
	}
	return out, nil
}

func (svc *fakeFrameBackend) Close() error {
	return nil
}

type fakeWindowBackend struct {
	Base
	mu    sync.Mutex
	fills []float32
	calls int
}

// NewFakeWindowBackend predicts a constant value for every pixel of every
// frame. With several fills the n-th call uses fills[n % len(fills)].
func NewFakeWindowBackend(fills ...float32) WindowBackend {
	if len(fills) == 0 {
		fills = []float32{0}
	}
	return &fakeWindowBackend{
		Base:  Base{BackendName: "fake", Kind: WindowedTemporal},
		fills: fills,
	}
}

func (svc *fakeWindowBackend) InpaintWindow(ctx context.Context, batch model.Tensor, _ model.Tensor, _ int) (model.Tensor, error) {
	if err := ctx.Err(); err != nil {
		return model.Tensor{}, err
	}

	svc.mu.Lock()
	fill := svc.fills[svc.calls%len(svc.fills)]
	svc.calls++
	svc.mu.Unlock()

	out := model.NewTensor(batch.T, batch.C, batch.H, batch.W)
	for i := range out.Data {
		out.Data[i] = fill
	}
	return out, nil
}

func (svc *fakeWindowBackend) Close() error {
	return nil
}
