package imaging

import "github.com/khaledhikmat/vs-erase/model"

// IService decodes and encodes frames and masks and runs the few image
// operations the pipeline needs outside of the models.
type IService interface {
	ReadFrame(path string, index int) (model.Frame, error)
	WriteFrame(path string, frame model.Frame) error
	// ReadMask loads a single channel image and maps every non-zero pixel to 255.
	ReadMask(path string) (model.Mask, error)
	WriteMask(path string, mask model.Mask) error
	ResizeFrame(frame model.Frame, width, height int) (model.Frame, error)
	// ResizeMask uses nearest neighbor interpolation so the mask stays binary.
	ResizeMask(mask model.Mask, width, height int) (model.Mask, error)
	// DilateMask grows the mask with a 3x3 cross element.
	DilateMask(mask model.Mask, iterations int) (model.Mask, error)
}
