package pipeline

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/khaledhikmat/vs-erase/model"
)

func TestPaddedSize(t *testing.T) {
	tests := []struct {
		h, w   int
		ph, pw int
	}{
		{240, 432, 240, 432},
		{100, 200, 120, 216},
		{1, 1, 60, 108},
		{61, 109, 120, 216},
		{720, 1280, 720, 1296},
	}

	for _, tt := range tests {
		ph, pw := PaddedSize(tt.h, tt.w, 60, 108)
		require.Equal(t, tt.ph, ph, "height of %dx%d", tt.h, tt.w)
		require.Equal(t, tt.pw, pw, "width of %dx%d", tt.h, tt.w)
	}
}

func TestMirrorPad(t *testing.T) {
	src := model.NewTensor(1, 1, 2, 3)
	copy(src.Data, []float32{1, 2, 3, 4, 5, 6})

	padded := MirrorPad(src, 5, 8)
	require.Equal(t, 5, padded.H)
	require.Equal(t, 8, padded.W)

	want := []float32{
		1, 2, 3, 3, 2, 1, 1, 2,
		4, 5, 6, 6, 5, 4, 4, 5,
		4, 5, 6, 6, 5, 4, 4, 5,
		1, 2, 3, 3, 2, 1, 1, 2,
		1, 2, 3, 3, 2, 1, 1, 2,
	}
	require.Equal(t, want, padded.Data)
	require.Equal(t, src, Crop(padded, 2, 3))
}

func TestMirrorPadBatch(t *testing.T) {
	src := model.NewTensor(3, 3, 7, 9)
	for i := range src.Data {
		src.Data[i] = float32(i)
	}

	ph, pw := PaddedSize(7, 9, 4, 5)
	padded := MirrorPad(src, ph, pw)
	require.NoError(t, padded.Expect(3, 3, 8, 10))
	require.Equal(t, src, Crop(padded, 7, 9))
	// Row 7 mirrors row 6, column 9 mirrors column 8.
	require.Equal(t, src.At(2, 1, 6, 4), padded.At(2, 1, 7, 4))
	require.Equal(t, src.At(1, 2, 3, 8), padded.At(1, 2, 3, 9))
}
