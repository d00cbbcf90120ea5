package imaging

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/khaledhikmat/vs-erase/model"
)

func TestFrameRoundTrip(t *testing.T) {
	svc := NewGoCV()
	dir := t.TempDir()

	frame := model.NewFrame(0, "a.png", 4, 6)
	for p := range frame.Pix {
		frame.Pix[p] = uint8(p * 7)
	}

	path := filepath.Join(dir, "nested", "a.png")
	require.NoError(t, svc.WriteFrame(path, frame))

	got, err := svc.ReadFrame(path, 3)
	require.NoError(t, err)
	require.Equal(t, 3, got.Index)
	require.Equal(t, "a.png", got.Name)
	require.Equal(t, frame.Pix, got.Pix)
}

func TestMaskRoundTripAndDilate(t *testing.T) {
	svc := NewGoCV()
	dir := t.TempDir()

	mask := model.NewMask(9, 9)
	mask.Pix[4*9+4] = 1

	path := filepath.Join(dir, "m.png")
	require.NoError(t, svc.WriteMask(path, mask))

	got, err := svc.ReadMask(path)
	require.NoError(t, err)
	require.Equal(t, 1, got.Count())
	require.Equal(t, model.MaskOn, got.Pix[4*9+4])

	dilated, err := svc.DilateMask(got, 1)
	require.NoError(t, err)
	require.Equal(t, 5, dilated.Count())

	fake, err := NewFake().DilateMask(got, 2)
	require.NoError(t, err)
	actual, err := svc.DilateMask(got, 2)
	require.NoError(t, err)
	require.Equal(t, fake.Pix, actual.Pix)
}

func TestReadMissing(t *testing.T) {
	svc := NewGoCV()

	_, err := svc.ReadFrame(filepath.Join(t.TempDir(), "nope.jpg"), 0)
	require.ErrorIs(t, err, model.ErrMissingArtifact)

	_, err = svc.ReadMask(filepath.Join(t.TempDir(), "nope.png"))
	require.ErrorIs(t, err, model.ErrMissingArtifact)
}

func TestResizeMaskStaysBinary(t *testing.T) {
	svc := NewGoCV()

	mask := model.NewMask(4, 4)
	for i := range mask.Pix[:8] {
		mask.Pix[i] = model.MaskOn
	}

	resized, err := svc.ResizeMask(mask, 8, 8)
	require.NoError(t, err)
	require.Equal(t, 32, resized.Count())
	for _, v := range resized.Pix {
		require.Contains(t, []uint8{model.MaskOff, model.MaskOn}, v)
	}
}
