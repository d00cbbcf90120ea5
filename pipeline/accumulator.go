package pipeline

import (
	"golang.org/x/xerrors"

	"github.com/khaledhikmat/vs-erase/model"
)

// Accumulator holds the running result of every frame of one clip. It is not
// safe for concurrent use; the pipeline applies windows from one goroutine.
type Accumulator struct {
	h     int
	w     int
	slots [][]float32
	hits  []int
}

func NewAccumulator(length, h, w int) *Accumulator {
	return &Accumulator{
		h:     h,
		w:     w,
		slots: make([][]float32, length),
		hits:  make([]int, length),
	}
}

func (a *Accumulator) Len() int {
	return len(a.slots)
}

func (a *Accumulator) IsSet(idx int) bool {
	return a.slots[idx] != nil
}

// Hits reports how many windows wrote frame idx.
func (a *Accumulator) Hits(idx int) int {
	return a.hits[idx]
}

// Blend stores result in an unset slot, otherwise replaces the slot with
// 0.5*previous + 0.5*result.
func (a *Accumulator) Blend(idx int, result []float32) error {
	if idx < 0 || idx >= len(a.slots) {
		return xerrors.Errorf("frame %d outside clip of %d frames", idx, len(a.slots))
	}
	if len(result) != a.h*a.w*3 {
		return xerrors.Errorf("frame %d: result has %d values, want %d: %w", idx, len(result), a.h*a.w*3, model.ErrShapeMismatch)
	}

	a.hits[idx]++

	prev := a.slots[idx]
	if prev == nil {
		a.slots[idx] = append([]float32(nil), result...)
		return nil
	}

	for i, v := range result {
		prev[i] = 0.5*prev[i] + 0.5*v
	}
	return nil
}

// Finalize converts every slot to a frame, truncating to 8 bits. An unset
// slot means a window schedule left the frame uncovered and no frame is
// returned.
func (a *Accumulator) Finalize(names []string) ([]model.Frame, error) {
	for idx, slot := range a.slots {
		if slot == nil {
			return nil, xerrors.Errorf("frame %d: %w", idx, model.ErrUnsetSlot)
		}
	}

	frames := make([]model.Frame, len(a.slots))
	for idx, slot := range a.slots {
		name := ""
		if idx < len(names) {
			name = names[idx]
		}
		frame := model.NewFrame(idx, name, a.h, a.w)
		for i, v := range slot {
			frame.Pix[i] = clampByte(v)
		}
		frames[idx] = frame
	}
	return frames, nil
}

func clampByte(v float32) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v)
}
