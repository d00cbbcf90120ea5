package video

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/khaledhikmat/vs-erase/model"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
}

func TestMovPath(t *testing.T) {
	dst, err := MovPath("in", "out", filepath.Join("in", "day1", "walk.mp4"))
	require.NoError(t, err)
	require.Equal(t, filepath.Join("out", "day1", "walk.mov"), dst)
}

func TestTranscodeMirrorsTree(t *testing.T) {
	root := t.TempDir()
	outRoot := t.TempDir()
	touch(t, filepath.Join(root, "a.mp4"))
	touch(t, filepath.Join(root, "day1", "b.MP4"))
	touch(t, filepath.Join(root, "day1", "notes.txt"))

	var mu sync.Mutex
	converted := []string{}
	svc := &gocvService{}
	svc.convert = func(_ context.Context, src, dst string) error {
		mu.Lock()
		defer mu.Unlock()
		converted = append(converted, dst)
		return os.WriteFile(dst, []byte("mov"), 0644)
	}

	n, err := svc.Transcode(context.Background(), root, outRoot)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	sort.Strings(converted)
	require.Equal(t, []string{
		filepath.Join(outRoot, "a.mov"),
		filepath.Join(outRoot, "day1", "b.mov"),
	}, converted)
	require.FileExists(t, filepath.Join(outRoot, "day1", "b.mov"))
}

func TestTranscodeStopsOnCancel(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "a.mp4"))

	svc := &gocvService{}
	svc.convert = func(context.Context, string, string) error {
		t.Fatal("convert called after cancel")
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.Transcode(ctx, root, t.TempDir())
	require.ErrorIs(t, err, context.Canceled)
}

func TestMissingInputs(t *testing.T) {
	svc := NewGoCV()
	dir := t.TempDir()

	_, err := svc.ExtractFrames(context.Background(), filepath.Join(dir, "missing.mp4"), filepath.Join(dir, "frames"))
	require.ErrorIs(t, err, model.ErrMissingArtifact)

	err = svc.AssembleMP4(context.Background(), filepath.Join(dir, "missing"), filepath.Join(dir, "out.mp4"), 30)
	require.ErrorIs(t, err, model.ErrMissingArtifact)

	empty := filepath.Join(dir, "empty")
	require.NoError(t, os.Mkdir(empty, 0755))
	err = svc.AssembleMP4(context.Background(), empty, filepath.Join(dir, "out.mp4"), 30)
	require.ErrorIs(t, err, model.ErrEmptyClip)
}
