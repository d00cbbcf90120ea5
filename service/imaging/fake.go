package imaging

import (
	"path/filepath"
	"sync"

	"golang.org/x/xerrors"

	"github.com/khaledhikmat/vs-erase/model"
)

type fakeService struct {
	mu     sync.Mutex
	frames map[string]model.Frame
	masks  map[string]model.Mask
}

// NewFake keeps images in memory, keyed by path.
func NewFake() IService {
	return &fakeService{
		frames: map[string]model.Frame{},
		masks:  map[string]model.Mask{},
	}
}

func (svc *fakeService) ReadFrame(path string, index int) (model.Frame, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	frame, ok := svc.frames[filepath.Clean(path)]
	if !ok {
		return model.Frame{}, xerrors.Errorf("reading frame %s: %w", path, model.ErrMissingArtifact)
	}
	frame.Index = index
	frame.Name = filepath.Base(path)
	frame.Pix = append([]uint8(nil), frame.Pix...)
	return frame, nil
}

func (svc *fakeService) WriteFrame(path string, frame model.Frame) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	frame.Pix = append([]uint8(nil), frame.Pix...)
	svc.frames[filepath.Clean(path)] = frame
	return nil
}

func (svc *fakeService) ReadMask(path string) (model.Mask, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	mask, ok := svc.masks[filepath.Clean(path)]
	if !ok {
		return model.Mask{}, xerrors.Errorf("reading mask %s: %w", path, model.ErrMissingArtifact)
	}
	out := model.NewMask(mask.H, mask.W)
	for i, v := range mask.Pix {
		if v != 0 {
			out.Pix[i] = model.MaskOn
		}
	}
	return out, nil
}

func (svc *fakeService) WriteMask(path string, mask model.Mask) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	mask.Pix = append([]uint8(nil), mask.Pix...)
	svc.masks[filepath.Clean(path)] = mask
	return nil
}

func (svc *fakeService) ResizeFrame(frame model.Frame, width, height int) (model.Frame, error) {
	out := model.NewFrame(frame.Index, frame.Name, height, width)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			sy, sx := y*frame.H/height, x*frame.W/width
			for c := 0; c < 3; c++ {
				out.Set(y, x, c, frame.At(sy, sx, c))
			}
		}
	}
	return out, nil
}

func (svc *fakeService) ResizeMask(mask model.Mask, width, height int) (model.Mask, error) {
	out := model.NewMask(height, width)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			out.Pix[y*width+x] = mask.Pix[(y*mask.H/height)*mask.W+x*mask.W/width]
		}
	}
	return out, nil
}

func (svc *fakeService) DilateMask(mask model.Mask, iterations int) (model.Mask, error) {
	current := mask
	for i := 0; i < iterations; i++ {
		next := model.NewMask(mask.H, mask.W)
		for y := 0; y < mask.H; y++ {
			for x := 0; x < mask.W; x++ {
				if current.On(y, x) ||
					(y > 0 && current.On(y-1, x)) || (y+1 < mask.H && current.On(y+1, x)) ||
					(x > 0 && current.On(y, x-1)) || (x+1 < mask.W && current.On(y, x+1)) {
					next.Pix[y*mask.W+x] = model.MaskOn
				}
			}
		}
		current = next
	}
	return current, nil
}

// Paths lists the stored frame paths, for tests.
func Paths(svc IService) []string {
	fake, ok := svc.(*fakeService)
	if !ok {
		return nil
	}

	fake.mu.Lock()
	defer fake.mu.Unlock()

	paths := make([]string, 0, len(fake.frames))
	for p := range fake.frames {
		paths = append(paths, p)
	}
	return paths
}
