package model

import "golang.org/x/xerrors"

const (
	// MaskOn is the value of a removal pixel in a persisted mask.
	MaskOn uint8 = 255
	// MaskOff is the value of a kept pixel.
	MaskOff uint8 = 0
)

// Frame is an RGB, 8-bit, row-major (H, W, 3) pixel buffer.
type Frame struct {
	Index int
	Name  string
	H     int
	W     int
	Pix   []uint8
}

func NewFrame(index int, name string, h, w int) Frame {
	return Frame{
		Index: index,
		Name:  name,
		H:     h,
		W:     w,
		Pix:   make([]uint8, h*w*3),
	}
}

func (f Frame) At(row, col, ch int) uint8 {
	return f.Pix[(row*f.W+col)*3+ch]
}

func (f Frame) Set(row, col, ch int, v uint8) {
	f.Pix[(row*f.W+col)*3+ch] = v
}

// Mask is a single channel binary image (0 or 255).
type Mask struct {
	H   int
	W   int
	Pix []uint8
}

func NewMask(h, w int) Mask {
	return Mask{
		H:   h,
		W:   w,
		Pix: make([]uint8, h*w),
	}
}

// On treats any non-zero value as a removal pixel.
func (m Mask) On(row, col int) bool {
	return m.Pix[row*m.W+col] != 0
}

func (m Mask) Count() int {
	n := 0
	for _, v := range m.Pix {
		if v != 0 {
			n++
		}
	}
	return n
}

// ObjectRecord is the structured per-frame record of accepted primary detections.
// Boxes[i] and Coords[i] describe the same merged region.
type ObjectRecord struct {
	Boxes  []Box     `json:"box"`
	Coords [][]Coord `json:"coord"`
}

// FrameMask is written once by mask synthesis and only read afterwards.
type FrameMask struct {
	Name   string
	Mask   Mask
	Record ObjectRecord
}

// MergedRegion is the removal region of one primary detection and its accepted dependents.
type MergedRegion struct {
	Box        Box
	Coords     map[Coord]struct{}
	Dependents int
}

// Clip is one ordered sequence of frames and their masks.
type Clip struct {
	Name   string
	Frames []Frame
	Masks  []Mask
}

func (c Clip) Len() int {
	return len(c.Frames)
}

// Validate checks the clip is non-empty and every frame has a same-sized mask.
func (c Clip) Validate() error {
	if len(c.Frames) == 0 {
		return xerrors.Errorf("clip %q: %w", c.Name, ErrEmptyClip)
	}
	if len(c.Masks) != len(c.Frames) {
		return xerrors.Errorf("clip %q: %d frames but %d masks: %w", c.Name, len(c.Frames), len(c.Masks), ErrMissingArtifact)
	}
	h, w := c.Frames[0].H, c.Frames[0].W
	for i, f := range c.Frames {
		if f.H != h || f.W != w || len(f.Pix) != h*w*3 {
			return xerrors.Errorf("clip %q: frame %s is %dx%d, expected %dx%d: %w", c.Name, f.Name, f.W, f.H, w, h, ErrMissingArtifact)
		}
		m := c.Masks[i]
		if m.H != h || m.W != w || len(m.Pix) != h*w {
			return xerrors.Errorf("clip %q: mask for %s is %dx%d, expected %dx%d: %w", c.Name, f.Name, m.W, m.H, w, h, ErrMissingArtifact)
		}
	}
	return nil
}

// Window is one scheduling unit: an anchor, its temporal neighbors and distant references.
type Window struct {
	Anchor      int   `json:"anchor"`
	NeighborIDs []int `json:"neighborIds"`
	RefIDs      []int `json:"refIds"`
	Trimmed     int   `json:"trimmed"`
	OverBudget  bool  `json:"overBudget"`
}

// IDs returns neighbor ids followed by reference ids.
func (w Window) IDs() []int {
	ids := make([]int, 0, len(w.NeighborIDs)+len(w.RefIDs))
	ids = append(ids, w.NeighborIDs...)
	return append(ids, w.RefIDs...)
}

func (w Window) Size() int {
	return len(w.NeighborIDs) + len(w.RefIDs)
}
