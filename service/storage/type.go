package storage

import (
	"io"

	"github.com/khaledhikmat/vs-erase/model"
)

const (
	ImagesDir  = "images"
	MasksDir   = "masks"
	ObjectsDir = "objects"
)

// LoadOptions controls how a clip is brought to the size a backend expects.
type LoadOptions struct {
	// Width and Height resize every frame and mask when both are non-zero.
	Width  int
	Height int
	// DilateIterations grows every mask after loading.
	DilateIterations int
}

// IService owns the on-disk layout of source frames, mask artifacts and results.
type IService interface {
	// ListImages returns the .jpg and .png file names of dir in lexicographic order.
	ListImages(dir string) ([]string, error)
	// ListClips returns the sub-directories of root that hold an images directory.
	ListClips(root string) ([]string, error)
	LoadFrames(dir string) ([]model.Frame, error)
	LoadClip(clipDir string, opts LoadOptions) (model.Clip, error)
	SaveMaskArtifacts(clipDir string, srcPath string, fm model.FrameMask) error
	ReadObjects(clipDir string, name string) (model.ObjectRecord, error)
	ResultDir(backend, clip string) string
	SaveResults(dir string, frames []model.Frame) error
	// StoreFile saves an uploaded file under the input folder and returns its name.
	StoreFile(fileName string, r io.Reader) (string, error)
}
