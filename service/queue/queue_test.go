package queue

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/khaledhikmat/vs-erase/model"
	"github.com/khaledhikmat/vs-erase/service/config"
	"github.com/khaledhikmat/vs-erase/service/data"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
}

// inputConfig points the input and ledger folders at fresh temp dirs.
func inputConfig(t *testing.T) (config.IService, string) {
	t.Helper()
	input := t.TempDir()
	t.Setenv("VSE_INPUT_FOLDER", input)
	t.Setenv("VSE_LEDGER_PATH", t.TempDir())

	cfg, err := config.NewYAML("")
	require.NoError(t, err)
	return cfg, input
}

func receive(t *testing.T, ch <-chan []model.ClipRecord) []model.ClipRecord {
	t.Helper()
	select {
	case clips := <-ch:
		return clips
	case <-time.After(5 * time.Second):
		t.Fatal("no clips delivered")
		return nil
	}
}

func TestIsSource(t *testing.T) {
	root := t.TempDir()

	touch(t, filepath.Join(root, "walk.mp4"))
	touch(t, filepath.Join(root, "notes.txt"))
	touch(t, filepath.Join(root, "frames", "00000.jpg"))
	touch(t, filepath.Join(root, "empty", "readme.md"))
	touch(t, filepath.Join(root, "upload.mp4.part"))

	require.True(t, IsSource(filepath.Join(root, "walk.mp4")))
	require.True(t, IsSource(filepath.Join(root, "frames")))
	require.False(t, IsSource(filepath.Join(root, "notes.txt")))
	require.False(t, IsSource(filepath.Join(root, "empty")))
	require.False(t, IsSource(filepath.Join(root, "missing.mp4")))
	require.False(t, IsSource(filepath.Join(root, "upload.mp4.part")))

	require.Equal(t, []string{
		filepath.Join(root, "frames"),
		filepath.Join(root, "walk.mp4"),
	}, ScanSources(root))
	require.Empty(t, ScanSources(filepath.Join(root, "missing")))
}

func TestTopLevel(t *testing.T) {
	root := filepath.Join("in", "videos")
	require.Equal(t, filepath.Join(root, "walk"), topLevel(root, filepath.Join(root, "walk", "00001.jpg")))
	require.Equal(t, filepath.Join(root, "a.mp4"), topLevel(root, filepath.Join(root, "a.mp4")))
	require.Equal(t, filepath.Join("elsewhere", "b.mp4"), topLevel(root, filepath.Join("elsewhere", "b.mp4")))
}

func TestSeenSetSkipsLedgerSources(t *testing.T) {
	cfg, input := inputConfig(t)
	ledger := data.NewFilesDB(cfg)

	known := filepath.Join(input, "known.mp4")
	_, err := ledger.NewClip(model.ClipRecord{Clip: "known", Source: known, Status: model.ClipStatusDone})
	require.NoError(t, err)

	seen := newSeenSet(ledger)
	clips := seen.fresh([]string{known, filepath.Join(input, "new.mp4")})
	require.Len(t, clips, 1)
	require.Equal(t, "new", clips[0].Clip)
	require.Equal(t, model.ClipStatusQueued, clips[0].Status)
	require.Empty(t, clips[0].ID)

	// Second delivery of the same source is suppressed.
	require.Empty(t, seen.fresh([]string{filepath.Join(input, "new.mp4")}))
}

func TestPublishRequeuesLedgerSourceOnce(t *testing.T) {
	cfg, input := inputConfig(t)
	ledger := data.NewFilesDB(cfg)

	left := filepath.Join(input, "left.mp4")
	rec, err := ledger.NewClip(model.ClipRecord{Clip: "left", Source: left, Status: model.ClipStatusQueued})
	require.NoError(t, err)

	svc := newTimed(context.Background(), cfg, ledger, time.Second)
	require.Empty(t, svc.Seen.fresh([]string{left}))

	require.NoError(t, svc.Publish([]model.ClipRecord{rec}))
	require.ErrorIs(t, svc.Publish([]model.ClipRecord{rec}), ErrAlreadyQueued)
}

func TestTimedDeliversScanAndPublished(t *testing.T) {
	cfg, input := inputConfig(t)
	touch(t, filepath.Join(input, "walk.mp4"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc := newTimed(ctx, cfg, nil, 100*time.Millisecond)
	defer svc.Finalize()

	ch, err := svc.Subscribe()
	require.NoError(t, err)

	_, err = svc.Subscribe()
	require.Error(t, err)

	clips := receive(t, ch)
	require.Len(t, clips, 1)
	require.Equal(t, "walk", clips[0].Clip)

	require.NoError(t, svc.Publish([]model.ClipRecord{{ID: "abc", Clip: "upload"}}))
	clips = receive(t, ch)
	require.Equal(t, "abc", clips[0].ID)

	require.NoError(t, svc.Unsubscribe())
}

func TestTimedDeliversPublishedSourceOnce(t *testing.T) {
	cfg, input := inputConfig(t)
	src := filepath.Join(input, "3f2a.mp4")
	touch(t, src)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quiet := time.Second
	svc := newTimed(ctx, cfg, nil, quiet)
	defer svc.Finalize()

	ch, err := svc.Subscribe()
	require.NoError(t, err)
	require.NoError(t, svc.Publish([]model.ClipRecord{{ID: "abc", Clip: "3f2a", Source: src}}))

	clips := receive(t, ch)
	require.Len(t, clips, 1)
	require.Equal(t, "abc", clips[0].ID)

	// The scan after the file settles must not deliver it again.
	select {
	case clips := <-ch:
		t.Fatalf("source delivered twice: %+v", clips)
	case <-time.After(2 * quiet):
	}
}

func TestPublishSkipsDeliveredSources(t *testing.T) {
	cfg, input := inputConfig(t)
	scanned := filepath.Join(input, "scanned.mp4")

	svc := newTimed(context.Background(), cfg, nil, time.Second)
	require.Len(t, svc.Seen.fresh([]string{scanned}), 1)

	err := svc.Publish([]model.ClipRecord{{ID: "abc", Source: scanned}})
	require.ErrorIs(t, err, ErrAlreadyQueued)

	uploaded := filepath.Join(input, "uploaded.mp4")
	require.NoError(t, svc.Publish([]model.ClipRecord{{ID: "def", Source: uploaded}}))
	require.ErrorIs(t, svc.Publish([]model.ClipRecord{{ID: "ghi", Source: uploaded}}), ErrAlreadyQueued)
	require.Empty(t, svc.Seen.fresh([]string{uploaded}))
}

func TestPublishReleasesSourceWhenBufferIsFull(t *testing.T) {
	seen := newSeenSet(nil)
	src := filepath.Join("in", "walk.mp4")

	full := make(chan []model.ClipRecord)
	err := seen.publish(full, []model.ClipRecord{{ID: "abc", Source: src}})
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrAlreadyQueued)

	buffered := make(chan []model.ClipRecord, 1)
	require.NoError(t, seen.publish(buffered, []model.ClipRecord{{ID: "abc", Source: src}}))
	require.Equal(t, "abc", (<-buffered)[0].ID)
}

func TestSettled(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "walk.mp4")
	touch(t, file)
	touch(t, filepath.Join(root, "frames", "00000.jpg"))

	now := time.Now()
	require.False(t, settled(file, time.Hour, now))
	require.True(t, settled(file, time.Second, now.Add(time.Minute)))
	require.False(t, settled(filepath.Join(root, "frames"), time.Hour, now))
	require.True(t, settled(filepath.Join(root, "frames"), time.Second, now.Add(time.Minute)))
	require.False(t, settled(filepath.Join(root, "missing.mp4"), 0, now))
}

func TestUnsubscribeWithoutSubscribe(t *testing.T) {
	cfg, _ := inputConfig(t)
	svc := NewTimed(context.Background(), cfg, nil)
	require.Error(t, svc.Unsubscribe())
}

func TestWatcherDeliversSettledSources(t *testing.T) {
	cfg, input := inputConfig(t)
	touch(t, filepath.Join(input, "existing.mp4"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc, err := newWatcher(ctx, cfg, nil, 200*time.Millisecond)
	require.NoError(t, err)
	defer svc.Finalize()

	ch, err := svc.Subscribe()
	require.NoError(t, err)

	clips := receive(t, ch)
	require.Len(t, clips, 1)
	require.Equal(t, "existing", clips[0].Clip)

	touch(t, filepath.Join(input, "later", "00000.jpg"))
	clips = receive(t, ch)
	require.Len(t, clips, 1)
	require.Equal(t, "later", clips[0].Clip)
	require.Equal(t, filepath.Join(input, "later"), clips[0].Source)
}
