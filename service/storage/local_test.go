package storage

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/require"

	"github.com/khaledhikmat/vs-erase/model"
	"github.com/khaledhikmat/vs-erase/service/config"
	"github.com/khaledhikmat/vs-erase/service/imaging"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
}

// seedClip puts a frame and a one pixel mask per name both on disk and in the fake.
func seedClip(t *testing.T, img imaging.IService, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		framePath := filepath.Join(dir, ImagesDir, name)
		touch(t, framePath)
		require.NoError(t, img.WriteFrame(framePath, model.NewFrame(0, name, 4, 6)))

		maskPath := filepath.Join(dir, MasksDir, strings.TrimSuffix(name, filepath.Ext(name))+".png")
		touch(t, maskPath)
		mask := model.NewMask(4, 6)
		mask.Pix[2*6+3] = model.MaskOn
		require.NoError(t, img.WriteMask(maskPath, mask))
	}
}

func TestListImages(t *testing.T) {
	svc := NewLocal(config.NewHardCoded(), imaging.NewFake())
	dir := t.TempDir()

	for _, name := range []string{"010.jpg", "002.png", "001.jpg", "notes.txt", "003.JPG"} {
		touch(t, filepath.Join(dir, name))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.jpg"), 0755))

	names, err := svc.ListImages(dir)
	require.NoError(t, err)
	require.Equal(t, []string{"001.jpg", "002.png", "003.JPG", "010.jpg"}, names)

	_, err = svc.ListImages(filepath.Join(dir, "missing"))
	require.ErrorIs(t, err, model.ErrMissingArtifact)
}

func TestLoadClip(t *testing.T) {
	img := imaging.NewFake()
	svc := NewLocal(config.NewHardCoded(), img)
	dir := filepath.Join(t.TempDir(), "walk")
	seedClip(t, img, dir, "b.jpg", "a.jpg", "c.jpg")

	clip, err := svc.LoadClip(dir, LoadOptions{})
	require.NoError(t, err)
	require.Equal(t, "walk", clip.Name)
	require.Equal(t, 3, clip.Len())
	require.Equal(t, "a.jpg", clip.Frames[0].Name)
	require.Equal(t, 2, clip.Frames[2].Index)
	require.Equal(t, 1, clip.Masks[1].Count())
	require.NoError(t, clip.Validate())

	clip, err = svc.LoadClip(dir, LoadOptions{Width: 12, Height: 8, DilateIterations: 1})
	require.NoError(t, err)
	require.Equal(t, 8, clip.Frames[0].H)
	require.Equal(t, 12, clip.Masks[0].W)
	require.Greater(t, clip.Masks[0].Count(), 4)
}

func TestLoadClipMissingMask(t *testing.T) {
	img := imaging.NewFake()
	svc := NewLocal(config.NewHardCoded(), img)
	dir := filepath.Join(t.TempDir(), "walk")
	seedClip(t, img, dir, "a.jpg", "b.jpg")
	require.NoError(t, os.Remove(filepath.Join(dir, MasksDir, "b.png")))

	_, err := svc.LoadClip(dir, LoadOptions{})
	require.ErrorIs(t, err, model.ErrMissingArtifact)
	require.Contains(t, err.Error(), filepath.Join(dir, MasksDir, "b.png"))
}

func TestLoadClipEmpty(t *testing.T) {
	svc := NewLocal(config.NewHardCoded(), imaging.NewFake())
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, ImagesDir), 0755))

	_, err := svc.LoadClip(dir, LoadOptions{})
	require.ErrorIs(t, err, model.ErrEmptyClip)
}

func TestMaskArtifacts(t *testing.T) {
	img := imaging.NewFake()
	svc := NewLocal(config.NewHardCoded(), img)
	src := filepath.Join(t.TempDir(), "000.jpg")
	require.NoError(t, os.WriteFile(src, []byte("jpeg bytes"), 0644))

	fm := model.FrameMask{
		Name: "000.jpg",
		Mask: model.NewMask(2, 2),
		Record: model.ObjectRecord{
			Boxes:  []model.Box{{X1: 0, Y1: 0, X2: 1, Y2: 2}},
			Coords: [][]model.Coord{{{Row: 0, Col: 0}, {Row: 1, Col: 0}}},
		},
	}
	clipDir := filepath.Join(t.TempDir(), "clip")
	require.NoError(t, svc.SaveMaskArtifacts(clipDir, src, fm))

	copied, err := os.ReadFile(filepath.Join(clipDir, ImagesDir, "000.jpg"))
	require.NoError(t, err)
	require.Equal(t, "jpeg bytes", string(copied))

	raw, err := os.ReadFile(filepath.Join(clipDir, ObjectsDir, "000.json"))
	require.NoError(t, err)
	require.JSONEq(t, `{"box":[[0,0,1,2]],"coord":[[[0,0],[1,0]]]}`, string(raw))

	record, err := svc.ReadObjects(clipDir, "000.jpg")
	require.NoError(t, err)
	require.Equal(t, fm.Record, record)

	_, err = img.ReadMask(filepath.Join(clipDir, MasksDir, "000.png"))
	require.NoError(t, err)
}

func TestStoreFile(t *testing.T) {
	t.Setenv("VSE_INPUT_FOLDER", t.TempDir())
	cfg, err := config.NewYAML("")
	require.NoError(t, err)
	svc := NewLocal(cfg, imaging.NewFake())

	name, err := svc.StoreFile("walk.mp4", strings.NewReader("video"))
	require.NoError(t, err)
	require.Equal(t, ".mp4", filepath.Ext(name))

	data, err := os.ReadFile(filepath.Join(cfg.GetInputFolder(), name))
	require.NoError(t, err)
	require.Equal(t, "video", string(data))

	entries, err := os.ReadDir(cfg.GetInputFolder())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, name, entries[0].Name())
}

func TestStoreFileFailedCopyLeavesNothing(t *testing.T) {
	t.Setenv("VSE_INPUT_FOLDER", t.TempDir())
	cfg, err := config.NewYAML("")
	require.NoError(t, err)
	svc := NewLocal(cfg, imaging.NewFake())

	_, err = svc.StoreFile("walk.mp4", iotest.ErrReader(io.ErrUnexpectedEOF))
	require.Error(t, err)

	entries, err := os.ReadDir(cfg.GetInputFolder())
	require.NoError(t, err)
	require.Empty(t, entries)
}
