package inference

import (
	"context"

	"github.com/khaledhikmat/vs-erase/model"
)

// Capability is the closed set of inpainting model kinds.
type Capability int

const (
	// SingleFrame models fill one frame at a time without temporal context.
	SingleFrame Capability = iota
	// WindowedTemporal models fill a window of neighbor and reference frames.
	WindowedTemporal
)

func (c Capability) String() string {
	switch c {
	case SingleFrame:
		return "single-frame"
	case WindowedTemporal:
		return "windowed-temporal"
	default:
		return "unknown"
	}
}

// Detector finds instance-segmented objects in one frame. It must be
// deterministic for a given frame and set of weights.
type Detector interface {
	Detect(ctx context.Context, frame model.Frame) (model.DetectionSet, error)
	Close() error
}

// Backend is an inpainting model. The set of implementations is closed:
// every backend is either a FrameBackend or a WindowBackend.
type Backend interface {
	Name() string
	Capability() Capability
	// Size returns the frame size the model expects, zero values keep the native size.
	Size() (width, height int)
	Close() error
	sealed()
}

// FrameBackend receives masked [1,3,H,W] input in [-1,1] and a [1,1,H,W] mask
// and returns a [1,3,H,W] prediction in [-1,1].
type FrameBackend interface {
	Backend
	InpaintFrame(ctx context.Context, masked model.Tensor, mask model.Tensor) (model.Tensor, error)
}

// WindowBackend receives a padded [T,3,H',W'] batch in [-1,1] (neighbors first),
// the matching [T,1,H',W'] masks and the neighbor count, and returns a
// [T,3,H',W'] prediction in [-1,1].
type WindowBackend interface {
	Backend
	InpaintWindow(ctx context.Context, batch model.Tensor, masks model.Tensor, neighbors int) (model.Tensor, error)
}

// Base carries the identity shared by every backend implementation and seals
// the Backend interface. Implementations embed it.
type Base struct {
	BackendName string
	Kind        Capability
	Width       int
	Height      int
}

func (b Base) Name() string {
	return b.BackendName
}

func (b Base) Capability() Capability {
	return b.Kind
}

func (b Base) Size() (int, int) {
	return b.Width, b.Height
}

func (b Base) sealed() {}
