package model

import "golang.org/x/xerrors"

// Tensor is a dense float32 batch laid out as [T, C, H, W].
type Tensor struct {
	T    int
	C    int
	H    int
	W    int
	Data []float32
}

func NewTensor(t, c, h, w int) Tensor {
	return Tensor{
		T:    t,
		C:    c,
		H:    h,
		W:    w,
		Data: make([]float32, t*c*h*w),
	}
}

func (t Tensor) Offset(i, c, y, x int) int {
	return ((i*t.C+c)*t.H+y)*t.W + x
}

func (t Tensor) At(i, c, y, x int) float32 {
	return t.Data[t.Offset(i, c, y, x)]
}

func (t Tensor) Set(i, c, y, x int, v float32) {
	t.Data[t.Offset(i, c, y, x)] = v
}

// FrameSize is the number of values of one element of the batch.
func (t Tensor) FrameSize() int {
	return t.C * t.H * t.W
}

func (t Tensor) SameShape(o Tensor) bool {
	return t.T == o.T && t.C == o.C && t.H == o.H && t.W == o.W && len(o.Data) == len(t.Data)
}

// Expect returns ErrShapeMismatch unless the tensor has the given shape.
func (t Tensor) Expect(n, c, h, w int) error {
	if t.T != n || t.C != c || t.H != h || t.W != w || len(t.Data) != n*c*h*w {
		return xerrors.Errorf("got [%d,%d,%d,%d], want [%d,%d,%d,%d]: %w", t.T, t.C, t.H, t.W, n, c, h, w, ErrShapeMismatch)
	}
	return nil
}
