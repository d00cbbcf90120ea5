package dnn

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/khaledhikmat/vs-erase/model"
	"github.com/khaledhikmat/vs-erase/service/config"
	"github.com/khaledhikmat/vs-erase/service/inference"
)

func rampTensor(t, c, h, w int) model.Tensor {
	out := model.NewTensor(t, c, h, w)
	for i := range out.Data {
		out.Data[i] = float32(i)/float32(len(out.Data))*2 - 1
	}
	return out
}

func TestBlobRoundTrip(t *testing.T) {
	for _, swap := range []bool{false, true} {
		in := rampTensor(2, 3, 3, 5)

		blob, err := tensorToBlob(in, swap)
		require.NoError(t, err)
		require.Equal(t, []int{2, 3, 3, 5}, blob.Size())

		out, err := blobToTensor(blob, 2, 3, 3, 5, swap)
		blob.Close()
		require.NoError(t, err)
		require.InDeltaSlice(t, in.Data, out.Data, 1e-6)
	}
}

func TestBlobSwapsRedAndBlue(t *testing.T) {
	in := rampTensor(1, 3, 2, 2)

	blob, err := tensorToBlob(in, true)
	require.NoError(t, err)
	defer blob.Close()

	out, err := blobToTensor(blob, 1, 3, 2, 2, false)
	require.NoError(t, err)
	require.InDelta(t, in.At(0, 2, 1, 1), out.At(0, 0, 1, 1), 1e-6)
	require.InDelta(t, in.At(0, 1, 1, 1), out.At(0, 1, 1, 1), 1e-6)
}

func TestBlobShapeMismatch(t *testing.T) {
	blob, err := tensorToBlob(rampTensor(1, 1, 4, 4), false)
	require.NoError(t, err)
	defer blob.Close()

	_, err = blobToTensor(blob, 1, 3, 4, 4, false)
	require.ErrorIs(t, err, model.ErrShapeMismatch)
}

func TestNewBackendFake(t *testing.T) {
	t.Setenv("VSE_BACKEND", config.FakeBackendName)
	cfg, err := config.NewYAML("")
	require.NoError(t, err)

	backend, err := NewBackend(cfg)
	require.NoError(t, err)
	defer backend.Close()

	require.Equal(t, inference.WindowedTemporal, backend.Capability())
	_, ok := backend.(inference.WindowBackend)
	require.True(t, ok)
}

func TestMissingModels(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
backend: e2fgvi_hq
backends:
  e2fgvi_hq:
    model_path: `+filepath.Join(dir, "missing.onnx")+`
detector:
  model_path: `+filepath.Join(dir, "missing.onnx")+`
  labels_path: ""
`), 0644))

	cfg, err := config.NewYAML(cfgPath)
	require.NoError(t, err)

	_, err = NewBackend(cfg)
	require.ErrorContains(t, err, "does not exist")

	_, err = NewDetector(cfg)
	require.ErrorContains(t, err, "does not exist")
}

func TestLoadLabels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coco.names")
	require.NoError(t, os.WriteFile(path, []byte("person\nbicycle\ncar\n"), 0644))

	labels, err := loadLabels(path)
	require.NoError(t, err)
	require.Equal(t, []string{"person", "bicycle", "car"}, labels)

	labels, err = loadLabels("")
	require.NoError(t, err)
	require.Nil(t, labels)
}

func TestReadLabels(t *testing.T) {
	labels := gocv.NewMatWithSize(1, 3, gocv.MatTypeCV32F)
	defer labels.Close()
	labels.SetFloatAt(0, 0, 0)
	labels.SetFloatAt(0, 1, 2)
	labels.SetFloatAt(0, 2, 1)

	classes, err := readLabels(labels, 3)
	require.NoError(t, err)
	require.Equal(t, []int{0, 2, 1}, classes)

	short := gocv.NewMatWithSize(1, 2, gocv.MatTypeCV32F)
	defer short.Close()

	_, err = readLabels(short, 3)
	require.EqualError(t, err, "labels has 2 values, want 3")
}
