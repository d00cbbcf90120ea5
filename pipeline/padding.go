package pipeline

import "github.com/khaledhikmat/vs-erase/model"

// PaddedSize rounds h and w up to the next multiple of the block sizes.
func PaddedSize(h, w, blockH, blockW int) (int, int) {
	return ceilTo(h, blockH), ceilTo(w, blockW)
}

func ceilTo(v, block int) int {
	if block <= 0 {
		return v
	}
	return (v + block - 1) / block * block
}

// mirror maps a padded index back into [0,n). The padded axis is the source
// concatenated with its flip, repeated as often as needed.
func mirror(i, n int) int {
	i %= 2 * n
	if i < n {
		return i
	}
	return 2*n - 1 - i
}

// MirrorPad extends every element of the batch to ph x pw by flipping and
// concatenating along the width and then the height.
func MirrorPad(t model.Tensor, ph, pw int) model.Tensor {
	if ph == t.H && pw == t.W {
		return t
	}

	cols := make([]int, pw)
	for x := range cols {
		cols[x] = mirror(x, t.W)
	}

	out := model.NewTensor(t.T, t.C, ph, pw)
	for i := 0; i < t.T; i++ {
		for c := 0; c < t.C; c++ {
			for y := 0; y < ph; y++ {
				src := t.Offset(i, c, mirror(y, t.H), 0)
				dst := out.Offset(i, c, y, 0)
				for x, sx := range cols {
					out.Data[dst+x] = t.Data[src+sx]
				}
			}
		}
	}
	return out
}

// Crop keeps the top-left h x w region of every element of the batch.
func Crop(t model.Tensor, h, w int) model.Tensor {
	if h == t.H && w == t.W {
		return t
	}

	out := model.NewTensor(t.T, t.C, h, w)
	for i := 0; i < t.T; i++ {
		for c := 0; c < t.C; c++ {
			for y := 0; y < h; y++ {
				src := t.Offset(i, c, y, 0)
				copy(out.Data[out.Offset(i, c, y, 0):out.Offset(i, c, y, 0)+w], t.Data[src:src+w])
			}
		}
	}
	return out
}
