package video

import (
	"context"
	"fmt"
	"image"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gocv.io/x/gocv"
	"golang.org/x/xerrors"

	"github.com/khaledhikmat/vs-erase/model"
	"github.com/khaledhikmat/vs-erase/service/lgr"
)

const (
	defaultFPS = 30
	codec      = "avc1"
)

type gocvService struct {
	// convert re-encodes one file. Tests swap it out.
	convert func(ctx context.Context, src, dst string) error
}

func NewGoCV() IService {
	svc := &gocvService{}
	svc.convert = svc.reencode
	return svc
}

func (svc *gocvService) ExtractFrames(ctx context.Context, src, dstDir string) ([]string, error) {
	capture, err := gocv.VideoCaptureFile(src)
	if err != nil {
		return nil, xerrors.Errorf("opening video %s: %w", src, model.ErrMissingArtifact)
	}
	defer capture.Close()

	if err := os.MkdirAll(dstDir, 0755); err != nil {
		return nil, xerrors.Errorf("creating frame directory %s: %w", dstDir, err)
	}

	mat := gocv.NewMat()
	defer mat.Close()

	names := []string{}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if ok := capture.Read(&mat); !ok || mat.Empty() {
			break
		}

		name := fmt.Sprintf("%05d.jpg", len(names))
		path := filepath.Join(dstDir, name)
		if ok := gocv.IMWrite(path, mat); !ok {
			return nil, xerrors.Errorf("writing frame %s", path)
		}
		names = append(names, name)
	}

	if len(names) == 0 {
		return nil, xerrors.Errorf("decoding video %s: %w", src, model.ErrEmptyClip)
	}

	lgr.Logger.Info("video frames extracted",
		slog.String("source", src),
		slog.Int("frames", len(names)),
	)
	return names, nil
}

func (svc *gocvService) AssembleMP4(ctx context.Context, dir, out string, fps float64) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return xerrors.Errorf("listing frames in %s: %w", dir, model.ErrMissingArtifact)
	}

	paths := []string{}
	for _, e := range entries {
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".jpg", ".png":
			if !e.IsDir() {
				paths = append(paths, filepath.Join(dir, e.Name()))
			}
		}
	}
	sort.Strings(paths)

	if len(paths) == 0 {
		return xerrors.Errorf("assembling %s: %w", dir, model.ErrEmptyClip)
	}

	return writeMP4(ctx, out, fps, len(paths), func(i int) (gocv.Mat, error) {
		mat := gocv.IMRead(paths[i], gocv.IMReadColor)
		if mat.Empty() {
			mat.Close()
			return mat, xerrors.Errorf("reading frame %s: %w", paths[i], model.ErrMissingArtifact)
		}
		return mat, nil
	})
}

func (svc *gocvService) Transcode(ctx context.Context, root, outRoot string) (int, error) {
	count := 0
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".mp4") {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		dst, err := MovPath(root, outRoot, path)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
			return xerrors.Errorf("creating %s: %w", filepath.Dir(dst), err)
		}

		if err := svc.convert(ctx, path, dst); err != nil {
			return xerrors.Errorf("transcoding %s: %w", path, err)
		}

		lgr.Logger.Info("video transcoded", slog.String("source", path), slog.String("target", dst))
		count++
		return nil
	})
	if err != nil {
		return count, err
	}
	return count, nil
}

// MovPath maps a file under root to the same relative path under outRoot
// with a .mov extension.
func MovPath(root, outRoot, path string) (string, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", xerrors.Errorf("relative path of %s: %w", path, err)
	}
	return filepath.Join(outRoot, strings.TrimSuffix(rel, filepath.Ext(rel))+".mov"), nil
}

func (svc *gocvService) reencode(ctx context.Context, src, dst string) error {
	capture, err := gocv.VideoCaptureFile(src)
	if err != nil {
		return xerrors.Errorf("opening video %s: %w", src, model.ErrMissingArtifact)
	}
	defer capture.Close()

	fps := capture.Get(gocv.VideoCaptureFPS)
	frames := int(capture.Get(gocv.VideoCaptureFrameCount))

	return writeMP4(ctx, dst, fps, frames, func(_ int) (gocv.Mat, error) {
		mat := gocv.NewMat()
		if ok := capture.Read(&mat); !ok || mat.Empty() {
			mat.Close()
			return mat, errEndOfStream
		}
		return mat, nil
	})
}

var errEndOfStream = xerrors.New("end of stream")

// writeMP4 encodes up to n frames produced by next. Frames that do not match
// the first frame's size are resized to it.
func writeMP4(ctx context.Context, out string, fps float64, n int, next func(i int) (gocv.Mat, error)) error {
	if fps <= 0 {
		fps = defaultFPS
	}
	if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
		return xerrors.Errorf("creating %s: %w", filepath.Dir(out), err)
	}

	var writer *gocv.VideoWriter
	defer func() {
		if writer != nil {
			writer.Close()
		}
	}()

	width, height := 0, 0
	written := 0
	for i := 0; n <= 0 || i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		mat, err := next(i)
		if xerrors.Is(err, errEndOfStream) {
			break
		}
		if err != nil {
			return err
		}

		if writer == nil {
			width, height = mat.Cols(), mat.Rows()
			writer, err = gocv.VideoWriterFile(out, codec, fps, width, height, true)
			if err != nil {
				mat.Close()
				return xerrors.Errorf("creating video writer %s: %w", out, err)
			}
		}

		if mat.Cols() != width || mat.Rows() != height {
			lgr.Logger.Warn("frame dimensions do not match video dimensions, resizing frame",
				slog.Int("frame_cols", mat.Cols()),
				slog.Int("frame_rows", mat.Rows()),
				slog.Int("video_cols", width),
				slog.Int("video_rows", height),
			)
			resized := gocv.NewMat()
			gocv.Resize(mat, &resized, image.Pt(width, height), 0, 0, gocv.InterpolationLinear)
			mat.Close()
			mat = resized
		}

		err = writer.Write(mat)
		mat.Close()
		if err != nil {
			return xerrors.Errorf("writing frame %d to %s: %w", i, out, err)
		}
		written++
	}

	if written == 0 {
		return xerrors.Errorf("encoding %s: %w", out, model.ErrEmptyClip)
	}
	return nil
}
