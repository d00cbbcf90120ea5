package data

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"

	"github.com/khaledhikmat/vs-erase/model"
	"github.com/khaledhikmat/vs-erase/service/config"
)

func newConfig(t *testing.T, ledger string) config.IService {
	t.Helper()
	t.Setenv("VSE_LEDGER_TYPE", ledger)
	t.Setenv("VSE_LEDGER_PATH", t.TempDir())

	cfg, err := config.NewYAML("")
	require.NoError(t, err)
	return cfg
}

func ledgers(t *testing.T) map[string]IService {
	t.Helper()

	files := NewFilesDB(newConfig(t, "files"))

	db, err := NewSQLite(newConfig(t, "sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() {
		db.Finalize()
	})

	return map[string]IService{
		"files":  files,
		"sqlite": db,
	}
}

func TestClipLedger(t *testing.T) {
	for name, svc := range ledgers(t) {
		t.Run(name, func(t *testing.T) {
			first, err := svc.NewClip(model.ClipRecord{Clip: "walk", Source: "/in/walk", Stage: "run", Status: model.ClipStatusRunning, StartedAt: 100})
			require.NoError(t, err)
			require.NotEmpty(t, first.ID)

			second, err := svc.NewClip(model.ClipRecord{Clip: "park", Source: "/in/park", Stage: "mask", Status: model.ClipStatusQueued, StartedAt: 200})
			require.NoError(t, err)

			clips, err := svc.RetrieveClips()
			require.NoError(t, err)
			require.Len(t, clips, 2)
			require.Equal(t, second.ID, clips[0].ID)

			first.Status = model.ClipStatusDone
			first.Frames = 20
			first.Backend = config.E2FGVIHQBackendName
			first.ResultDir = "/results/e2fgvi_hq/walk"
			first.EndedAt = 150
			require.NoError(t, svc.UpdateClip(first))

			got, err := svc.RetrieveClip(first.ID)
			require.NoError(t, err)
			require.Equal(t, first, got)

			queued, err := svc.RetrieveClipsByStatus(model.ClipStatusQueued)
			require.NoError(t, err)
			require.Len(t, queued, 1)
			require.Equal(t, "park", queued[0].Clip)

			_, err = svc.RetrieveClip("missing")
			require.ErrorIs(t, err, ErrNotFound)
			require.ErrorIs(t, svc.UpdateClip(model.ClipRecord{ID: "missing"}), ErrNotFound)
		})
	}
}

func TestErrorsAndStats(t *testing.T) {
	for name, svc := range ledgers(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, svc.NewError(model.GenError("inpaint", xerrors.New("boom"), nil, "clip %s failed", "walk")))
			require.NoError(t, svc.NewError(xerrors.New("plain")))
			require.Error(t, svc.NewError("not an error"))

			require.NoError(t, svc.NewMaskerStats(model.MaskerStats{Name: "masker", Frames: 3}))
			require.NoError(t, svc.NewInpainterStats(model.InpainterStats{Name: "windowedInpainter", Windows: 4}))
			require.NoError(t, svc.NewWatcherStats(model.WatcherStats{Name: "watcher"}))
		})
	}
}

func TestSQLiteRowsPersist(t *testing.T) {
	cfg := newConfig(t, "sqlite")

	svc, err := NewSQLite(cfg)
	require.NoError(t, err)
	rec, err := svc.NewClip(model.ClipRecord{Clip: "walk", Source: "s", Stage: "run", Status: model.ClipStatusDone})
	require.NoError(t, err)
	require.NoError(t, svc.NewInpainterStats(model.InpainterStats{Name: "x"}))
	require.NoError(t, svc.Finalize())

	reopened, err := NewSQLite(cfg)
	require.NoError(t, err)
	defer reopened.Finalize()

	got, err := reopened.RetrieveClip(rec.ID)
	require.NoError(t, err)
	require.Equal(t, "walk", got.Clip)

	conn := reopened.(*sqliteService).conn
	var n int
	require.NoError(t, conn.QueryRow(`SELECT COUNT(*) FROM stats WHERE kind = 'inpainter'`).Scan(&n))
	require.Equal(t, 1, n)
	require.NotErrorIs(t, conn.QueryRow(`SELECT id FROM clips`).Scan(new(string)), sql.ErrNoRows)
}
