package dnn

import (
	"image"

	"gocv.io/x/gocv"
	"golang.org/x/xerrors"

	"github.com/khaledhikmat/vs-erase/model"
)

// tensorToBlob turns a planar [T,C,H,W] tensor into an NCHW float blob.
// With swapRB the first and third channels are exchanged.
func tensorToBlob(t model.Tensor, swapRB bool) (gocv.Mat, error) {
	matType := gocv.MatTypeCV32FC3
	if t.C == 1 {
		matType = gocv.MatTypeCV32FC1
	} else if t.C != 3 {
		return gocv.NewMat(), xerrors.Errorf("unsupported channel count %d", t.C)
	}

	images := make([]gocv.Mat, 0, t.T)
	defer func() {
		for _, img := range images {
			img.Close()
		}
	}()

	for i := 0; i < t.T; i++ {
		img := gocv.NewMatWithSize(t.H, t.W, matType)
		images = append(images, img)

		data, err := img.DataPtrFloat32()
		if err != nil {
			return gocv.NewMat(), xerrors.Errorf("accessing image buffer: %w", err)
		}
		for y := 0; y < t.H; y++ {
			for x := 0; x < t.W; x++ {
				for c := 0; c < t.C; c++ {
					data[(y*t.W+x)*t.C+c] = t.At(i, c, y, x)
				}
			}
		}
	}

	blob := gocv.NewMat()
	gocv.BlobFromImages(images, &blob, 1.0, image.Pt(t.W, t.H), gocv.NewScalar(0, 0, 0, 0), swapRB && t.C == 3, false, gocv.MatTypeCV32F)
	if blob.Empty() {
		blob.Close()
		return gocv.NewMat(), xerrors.New("building input blob failed")
	}
	return blob, nil
}

// blobToTensor copies an NCHW float output of the expected shape.
func blobToTensor(blob gocv.Mat, n, c, h, w int, swapRB bool) (model.Tensor, error) {
	dims := blob.Size()
	total := 1
	for _, d := range dims {
		total *= d
	}
	if total != n*c*h*w {
		return model.Tensor{}, xerrors.Errorf("output dims %v, want [%d,%d,%d,%d]: %w", dims, n, c, h, w, model.ErrShapeMismatch)
	}

	flat := blob.Reshape(1, n*c*h)
	defer flat.Close()

	data, err := flat.DataPtrFloat32()
	if err != nil {
		return model.Tensor{}, xerrors.Errorf("reading output: %w", err)
	}

	t := model.NewTensor(n, c, h, w)
	copy(t.Data, data)

	if swapRB && c == 3 {
		plane := h * w
		for i := 0; i < n; i++ {
			r := t.Offset(i, 0, 0, 0)
			b := t.Offset(i, 2, 0, 0)
			for p := 0; p < plane; p++ {
				t.Data[r+p], t.Data[b+p] = t.Data[b+p], t.Data[r+p]
			}
		}
	}
	return t, nil
}

// scalarBlob is a 1x1 float input.
func scalarBlob(v float32) gocv.Mat {
	m := gocv.NewMatWithSize(1, 1, gocv.MatTypeCV32F)
	m.SetFloatAt(0, 0, v)
	return m
}
