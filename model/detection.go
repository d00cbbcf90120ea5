package model

import (
	"slices"
	"sort"
)

// Detection is one candidate instance produced by a detector for one frame.
// Mask is row-major over Box (Box.Dx() columns, Box.Dy() rows).
type Detection struct {
	Class int     `json:"class"`
	Label string  `json:"label"`
	Score float32 `json:"score"`
	Box   Box     `json:"box"`
	Mask  []bool  `json:"-"`
}

// Covers reports whether the pixel at (row, col) belongs to the detection.
func (d Detection) Covers(row, col int) bool {
	if !d.Box.Contains(Coord{Row: row, Col: col}) {
		return false
	}
	i := (row-d.Box.Y1)*d.Box.Dx() + (col - d.Box.X1)
	if i < 0 || i >= len(d.Mask) {
		return false
	}
	return d.Mask[i]
}

// Pixels returns the member coordinates that fall inside an h x w frame.
func (d Detection) Pixels(h, w int) []Coord {
	clipped := d.Box.Clip(h, w)
	coords := []Coord{}
	for r := clipped.Y1; r < clipped.Y2; r++ {
		for c := clipped.X1; c < clipped.X2; c++ {
			if d.Covers(r, c) {
				coords = append(coords, Coord{Row: r, Col: c})
			}
		}
	}
	return coords
}

// DetectionSet groups detections by class id. Within a class the detector's
// native index order is kept.
type DetectionSet map[int][]Detection

func (s DetectionSet) Add(d Detection) {
	s[d.Class] = append(s[d.Class], d)
}

// Of returns the detections of the given classes, class-then-index order.
func (s DetectionSet) Of(classes ...int) []Detection {
	ordered := slices.Clone(classes)
	sort.Ints(ordered)
	ordered = slices.Compact(ordered)

	out := []Detection{}
	for _, class := range ordered {
		out = append(out, s[class]...)
	}
	return out
}

func (s DetectionSet) Len() int {
	n := 0
	for _, dets := range s {
		n += len(dets)
	}
	return n
}
