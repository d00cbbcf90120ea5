package model

import (
	"encoding/json"
	"fmt"
)

// Box is an axis-aligned rectangle with exclusive max edges.
// It serializes as [x1,y1,x2,y2].
type Box struct {
	X1 int
	Y1 int
	X2 int
	Y2 int
}

func (b Box) Dx() int {
	return b.X2 - b.X1
}

func (b Box) Dy() int {
	return b.Y2 - b.Y1
}

// Area is zero for degenerate or inverted boxes.
func (b Box) Area() int {
	if b.X2 <= b.X1 || b.Y2 <= b.Y1 {
		return 0
	}
	return b.Dx() * b.Dy()
}

// IntersectArea uses max(0, min(x2,x2')-max(x1,x1')) * max(0, min(y2,y2')-max(y1,y1')).
func (b Box) IntersectArea(o Box) int {
	w := min(b.X2, o.X2) - max(b.X1, o.X1)
	h := min(b.Y2, o.Y2) - max(b.Y1, o.Y1)
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

func (b Box) Union(o Box) Box {
	return Box{
		X1: min(b.X1, o.X1),
		Y1: min(b.Y1, o.Y1),
		X2: max(b.X2, o.X2),
		Y2: max(b.Y2, o.Y2),
	}
}

// Clip restricts the box to a h x w image.
func (b Box) Clip(h, w int) Box {
	return Box{
		X1: min(max(b.X1, 0), w),
		Y1: min(max(b.Y1, 0), h),
		X2: min(max(b.X2, 0), w),
		Y2: min(max(b.Y2, 0), h),
	}
}

func (b Box) Contains(c Coord) bool {
	return c.Row >= b.Y1 && c.Row < b.Y2 && c.Col >= b.X1 && c.Col < b.X2
}

func (b Box) String() string {
	return fmt.Sprintf("[%d,%d,%d,%d]", b.X1, b.Y1, b.X2, b.Y2)
}

func (b Box) MarshalJSON() ([]byte, error) {
	return json.Marshal([4]int{b.X1, b.Y1, b.X2, b.Y2})
}

func (b *Box) UnmarshalJSON(data []byte) error {
	var edges [4]int
	if err := json.Unmarshal(data, &edges); err != nil {
		return err
	}
	b.X1, b.Y1, b.X2, b.Y2 = edges[0], edges[1], edges[2], edges[3]
	return nil
}

// Coord is a pixel position. It serializes as [row,col].
type Coord struct {
	Row int
	Col int
}

// Less orders coordinates row-major.
func (c Coord) Less(o Coord) bool {
	if c.Row != o.Row {
		return c.Row < o.Row
	}
	return c.Col < o.Col
}

func (c Coord) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{c.Row, c.Col})
}

func (c *Coord) UnmarshalJSON(data []byte) error {
	var rc [2]int
	if err := json.Unmarshal(data, &rc); err != nil {
		return err
	}
	c.Row, c.Col = rc[0], rc[1]
	return nil
}
