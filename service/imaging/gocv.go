package imaging

import (
	"image"
	"os"
	"path/filepath"

	"gocv.io/x/gocv"
	"golang.org/x/xerrors"

	"github.com/khaledhikmat/vs-erase/model"
)

type gocvService struct{}

func NewGoCV() IService {
	return &gocvService{}
}

func (svc *gocvService) ReadFrame(path string, index int) (model.Frame, error) {
	mat := gocv.IMRead(path, gocv.IMReadColor)
	defer mat.Close()

	if mat.Empty() {
		return model.Frame{}, xerrors.Errorf("reading frame %s: %w", path, model.ErrMissingArtifact)
	}

	return MatToFrame(mat, index, filepath.Base(path))
}

func (svc *gocvService) WriteFrame(path string, frame model.Frame) error {
	mat, err := FrameToMat(frame)
	if err != nil {
		return err
	}
	defer mat.Close()

	return write(path, mat)
}

func (svc *gocvService) ReadMask(path string) (model.Mask, error) {
	mat := gocv.IMRead(path, gocv.IMReadGrayScale)
	defer mat.Close()

	if mat.Empty() {
		return model.Mask{}, xerrors.Errorf("reading mask %s: %w", path, model.ErrMissingArtifact)
	}

	mask := model.NewMask(mat.Rows(), mat.Cols())
	data := mat.ToBytes()
	if len(data) != len(mask.Pix) {
		return model.Mask{}, xerrors.Errorf("mask %s has %d channels: %w", path, mat.Channels(), model.ErrMissingArtifact)
	}
	for i, v := range data {
		if v != 0 {
			mask.Pix[i] = model.MaskOn
		}
	}
	return mask, nil
}

func (svc *gocvService) WriteMask(path string, mask model.Mask) error {
	mat, err := gocv.NewMatFromBytes(mask.H, mask.W, gocv.MatTypeCV8UC1, mask.Pix)
	if err != nil {
		return xerrors.Errorf("wrapping mask for %s: %w", path, err)
	}
	defer mat.Close()

	return write(path, mat)
}

func (svc *gocvService) ResizeFrame(frame model.Frame, width, height int) (model.Frame, error) {
	if frame.W == width && frame.H == height {
		return frame, nil
	}

	mat, err := FrameToMat(frame)
	if err != nil {
		return model.Frame{}, err
	}
	defer mat.Close()

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(mat, &resized, image.Pt(width, height), 0, 0, gocv.InterpolationLinear)

	return MatToFrame(resized, frame.Index, frame.Name)
}

func (svc *gocvService) ResizeMask(mask model.Mask, width, height int) (model.Mask, error) {
	if mask.W == width && mask.H == height {
		return mask, nil
	}

	mat, err := gocv.NewMatFromBytes(mask.H, mask.W, gocv.MatTypeCV8UC1, mask.Pix)
	if err != nil {
		return model.Mask{}, xerrors.Errorf("wrapping mask: %w", err)
	}
	defer mat.Close()

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(mat, &resized, image.Pt(width, height), 0, 0, gocv.InterpolationNearestNeighbor)

	out := model.NewMask(height, width)
	copy(out.Pix, resized.ToBytes())
	return out, nil
}

func (svc *gocvService) DilateMask(mask model.Mask, iterations int) (model.Mask, error) {
	if iterations <= 0 {
		return mask, nil
	}

	src, err := gocv.NewMatFromBytes(mask.H, mask.W, gocv.MatTypeCV8UC1, mask.Pix)
	if err != nil {
		return model.Mask{}, xerrors.Errorf("wrapping mask: %w", err)
	}
	defer src.Close()

	kernel := gocv.GetStructuringElement(gocv.MorphCross, image.Pt(3, 3))
	defer kernel.Close()

	current := src.Clone()
	for i := 0; i < iterations; i++ {
		next := gocv.NewMat()
		gocv.Dilate(current, &next, kernel)
		current.Close()
		current = next
	}
	defer current.Close()

	out := model.NewMask(mask.H, mask.W)
	for i, v := range current.ToBytes() {
		if v != 0 {
			out.Pix[i] = model.MaskOn
		}
	}
	return out, nil
}

// FrameToMat builds a BGR Mat from an RGB frame. The caller closes the Mat.
func FrameToMat(frame model.Frame) (gocv.Mat, error) {
	bgr := make([]byte, len(frame.Pix))
	for p := 0; p+2 < len(frame.Pix); p += 3 {
		bgr[p], bgr[p+1], bgr[p+2] = frame.Pix[p+2], frame.Pix[p+1], frame.Pix[p]
	}

	mat, err := gocv.NewMatFromBytes(frame.H, frame.W, gocv.MatTypeCV8UC3, bgr)
	if err != nil {
		return gocv.NewMat(), xerrors.Errorf("wrapping frame %s: %w", frame.Name, err)
	}
	return mat, nil
}

// MatToFrame copies a BGR Mat into an RGB frame.
func MatToFrame(mat gocv.Mat, index int, name string) (model.Frame, error) {
	if mat.Channels() != 3 {
		return model.Frame{}, xerrors.Errorf("frame %s has %d channels: %w", name, mat.Channels(), model.ErrMissingArtifact)
	}

	frame := model.NewFrame(index, name, mat.Rows(), mat.Cols())
	data := mat.ToBytes()
	if len(data) != len(frame.Pix) {
		return model.Frame{}, xerrors.Errorf("frame %s: unexpected buffer size %d: %w", name, len(data), model.ErrMissingArtifact)
	}
	for p := 0; p+2 < len(data); p += 3 {
		frame.Pix[p], frame.Pix[p+1], frame.Pix[p+2] = data[p+2], data[p+1], data[p]
	}
	return frame, nil
}

func write(path string, mat gocv.Mat) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return xerrors.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	if ok := gocv.IMWrite(path, mat); !ok {
		return xerrors.Errorf("writing %s failed", path)
	}
	return nil
}
