package storage

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/xerrors"

	"github.com/khaledhikmat/vs-erase/model"
	"github.com/khaledhikmat/vs-erase/service/config"
	"github.com/khaledhikmat/vs-erase/service/imaging"
)

type localService struct {
	CfgSvc     config.IService
	ImagingSvc imaging.IService
}

func NewLocal(cfgsvc config.IService, imagingsvc imaging.IService) IService {
	return &localService{
		CfgSvc:     cfgsvc,
		ImagingSvc: imagingsvc,
	}
}

func (svc *localService) ListImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, xerrors.Errorf("listing %s: %w", dir, model.ErrMissingArtifact)
	}

	names := []string{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".jpg", ".png":
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func (svc *localService) ListClips(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, xerrors.Errorf("listing clips in %s: %w", root, err)
	}

	clips := []string{}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if info, err := os.Stat(filepath.Join(root, e.Name(), ImagesDir)); err == nil && info.IsDir() {
			clips = append(clips, e.Name())
		}
	}
	sort.Strings(clips)
	return clips, nil
}

func (svc *localService) LoadFrames(dir string) ([]model.Frame, error) {
	names, err := svc.ListImages(dir)
	if err != nil {
		return nil, err
	}

	frames := make([]model.Frame, 0, len(names))
	for i, name := range names {
		frame, err := svc.ImagingSvc.ReadFrame(filepath.Join(dir, name), i)
		if err != nil {
			return nil, err
		}
		frames = append(frames, frame)
	}
	return frames, nil
}

// LoadClip reads images/ and the matching masks/ of a clip directory. A mask
// is looked up under the image's own name first, then as <stem>.png.
func (svc *localService) LoadClip(clipDir string, opts LoadOptions) (model.Clip, error) {
	clip := model.Clip{Name: filepath.Base(filepath.Clean(clipDir))}

	imgDir := filepath.Join(clipDir, ImagesDir)
	names, err := svc.ListImages(imgDir)
	if err != nil {
		return clip, err
	}
	if len(names) == 0 {
		return clip, xerrors.Errorf("%s: %w", imgDir, model.ErrEmptyClip)
	}

	for i, name := range names {
		frame, err := svc.ImagingSvc.ReadFrame(filepath.Join(imgDir, name), i)
		if err != nil {
			return clip, err
		}

		mask, err := svc.readMask(filepath.Join(clipDir, MasksDir), name)
		if err != nil {
			return clip, err
		}
		if mask.H != frame.H || mask.W != frame.W {
			return clip, xerrors.Errorf("mask for %s is %dx%d, frame is %dx%d: %w", name, mask.W, mask.H, frame.W, frame.H, model.ErrMissingArtifact)
		}

		if opts.Width > 0 && opts.Height > 0 {
			if frame, err = svc.ImagingSvc.ResizeFrame(frame, opts.Width, opts.Height); err != nil {
				return clip, err
			}
			if mask, err = svc.ImagingSvc.ResizeMask(mask, opts.Width, opts.Height); err != nil {
				return clip, err
			}
		}

		if mask, err = svc.ImagingSvc.DilateMask(mask, opts.DilateIterations); err != nil {
			return clip, err
		}

		clip.Frames = append(clip.Frames, frame)
		clip.Masks = append(clip.Masks, mask)
	}

	return clip, nil
}

func (svc *localService) readMask(dir, name string) (model.Mask, error) {
	same := filepath.Join(dir, name)
	if _, err := os.Stat(same); err == nil {
		return svc.ImagingSvc.ReadMask(same)
	}

	png := filepath.Join(dir, stem(name)+".png")
	if _, err := os.Stat(png); err != nil {
		return model.Mask{}, xerrors.Errorf("no mask for %s at %s: %w", name, png, model.ErrMissingArtifact)
	}
	return svc.ImagingSvc.ReadMask(png)
}

// SaveMaskArtifacts copies the source image and writes the mask and the
// object record of one frame into clipDir.
func (svc *localService) SaveMaskArtifacts(clipDir string, srcPath string, fm model.FrameMask) error {
	for _, dir := range []string{ImagesDir, MasksDir, ObjectsDir} {
		if err := os.MkdirAll(filepath.Join(clipDir, dir), 0755); err != nil {
			return xerrors.Errorf("creating %s: %w", dir, err)
		}
	}

	name := filepath.Base(srcPath)
	if err := copyFile(srcPath, filepath.Join(clipDir, ImagesDir, name)); err != nil {
		return err
	}

	if err := svc.ImagingSvc.WriteMask(filepath.Join(clipDir, MasksDir, stem(name)+".png"), fm.Mask); err != nil {
		return err
	}

	data, err := json.Marshal(fm.Record)
	if err != nil {
		return xerrors.Errorf("marshaling objects of %s: %w", name, err)
	}
	if err := os.WriteFile(filepath.Join(clipDir, ObjectsDir, stem(name)+".json"), data, 0644); err != nil {
		return xerrors.Errorf("writing objects of %s: %w", name, err)
	}
	return nil
}

func (svc *localService) ReadObjects(clipDir string, name string) (model.ObjectRecord, error) {
	record := model.ObjectRecord{}

	path := filepath.Join(clipDir, ObjectsDir, stem(name)+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return record, xerrors.Errorf("reading %s: %w", path, model.ErrMissingArtifact)
	}
	if err := json.Unmarshal(data, &record); err != nil {
		return record, xerrors.Errorf("parsing %s: %w", path, model.ErrMissingArtifact)
	}
	return record, nil
}

func (svc *localService) ResultDir(backend, clip string) string {
	return filepath.Join(svc.CfgSvc.GetResultsFolder(), backend, clip)
}

// SaveResults writes one file per frame, named after its source frame.
func (svc *localService) SaveResults(dir string, frames []model.Frame) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return xerrors.Errorf("creating result directory: %w", err)
	}

	for _, frame := range frames {
		if frame.Name == "" {
			return xerrors.Errorf("frame %d has no name", frame.Index)
		}
		if err := svc.ImagingSvc.WriteFrame(filepath.Join(dir, frame.Name), frame); err != nil {
			return err
		}
	}
	return nil
}

func (svc *localService) StoreFile(fileName string, r io.Reader) (string, error) {
	ext := filepath.Ext(fileName)
	if ext == "" {
		ext = ".mp4"
	}

	base := svc.CfgSvc.GetInputFolder()
	if err := os.MkdirAll(base, 0755); err != nil {
		return "", xerrors.Errorf("failed to create storage directory: %w", err)
	}

	filename := fmt.Sprintf("%s%s", uuid.New().String(), ext)
	fullPath := filepath.Join(base, filename)

	// Scanners ignore the .part name until the upload is complete.
	partPath := fullPath + ".part"
	dst, err := os.Create(partPath)
	if err != nil {
		return "", xerrors.Errorf("failed to create file: %w", err)
	}

	if _, err := io.Copy(dst, r); err != nil {
		dst.Close()
		os.Remove(partPath)
		return "", xerrors.Errorf("failed to save file: %w", err)
	}
	if err := dst.Close(); err != nil {
		os.Remove(partPath)
		return "", xerrors.Errorf("failed to save file: %w", err)
	}

	if err := os.Rename(partPath, fullPath); err != nil {
		os.Remove(partPath)
		return "", xerrors.Errorf("failed to finish upload: %w", err)
	}

	return filename, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return xerrors.Errorf("opening %s: %w", src, model.ErrMissingArtifact)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return xerrors.Errorf("creating %s: %w", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return xerrors.Errorf("copying %s: %w", src, err)
	}
	return nil
}

func stem(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}
