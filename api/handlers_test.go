package api

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"

	"github.com/khaledhikmat/vs-erase/model"
	"github.com/khaledhikmat/vs-erase/service/config"
	"github.com/khaledhikmat/vs-erase/service/data"
	"github.com/khaledhikmat/vs-erase/service/imaging"
	"github.com/khaledhikmat/vs-erase/service/lgr"
	"github.com/khaledhikmat/vs-erase/service/queue"
	"github.com/khaledhikmat/vs-erase/service/storage"
)

type recordingQueue struct {
	mu     sync.Mutex
	full   bool
	queued []model.ClipRecord
}

func (q *recordingQueue) Publish(clips []model.ClipRecord) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.full {
		return xerrors.New("publish buffer is full")
	}
	for _, clip := range clips {
		for _, prev := range q.queued {
			if prev.Source == clip.Source {
				return xerrors.Errorf("%s: %w", clip.Source, queue.ErrAlreadyQueued)
			}
		}
	}
	q.queued = append(q.queued, clips...)
	return nil
}

func (q *recordingQueue) Subscribe() (<-chan []model.ClipRecord, error) {
	return nil, xerrors.New("not supported")
}

func (q *recordingQueue) Unsubscribe() error { return nil }
func (q *recordingQueue) Finalize()          {}

type testApp struct {
	app    *App
	queue  *recordingQueue
	input  string
	server *httptest.Server
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	lgr.Discard()

	input := t.TempDir()
	t.Setenv("VSE_INPUT_FOLDER", input)
	t.Setenv("VSE_LEDGER_PATH", t.TempDir())

	cfg, err := config.NewYAML("")
	require.NoError(t, err)

	q := &recordingQueue{}
	app := &App{
		CfgSvc:     cfg,
		DataSvc:    data.NewFilesDB(cfg),
		StorageSvc: storage.NewLocal(cfg, imaging.NewFake()),
		QueueSvc:   q,
	}

	srv := httptest.NewServer(NewRouter(app))
	t.Cleanup(srv.Close)

	return &testApp{app: app, queue: q, input: input, server: srv}
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHealth(t *testing.T) {
	ta := newTestApp(t)

	resp, err := http.Get(ta.server.URL + "/healthz")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", decode[map[string]string](t, resp)["status"])
}

func TestSubmitExistingSource(t *testing.T) {
	ta := newTestApp(t)
	require.NoError(t, os.MkdirAll(filepath.Join(ta.input, "walk"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(ta.input, "walk", "00000.jpg"), []byte("x"), 0644))

	resp, err := http.Post(ta.server.URL+"/clips", "application/json", strings.NewReader(`{"source":"walk"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	rec := decode[model.ClipRecord](t, resp)
	require.NotEmpty(t, rec.ID)
	require.Equal(t, "walk", rec.Clip)
	require.Equal(t, model.ClipStatusQueued, rec.Status)
	require.Equal(t, filepath.Join(ta.input, "walk"), rec.Source)

	require.Len(t, ta.queue.queued, 1)
	require.Equal(t, rec.ID, ta.queue.queued[0].ID)

	resp, err = http.Get(ta.server.URL + "/clips/" + rec.ID)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, rec.ID, decode[model.ClipRecord](t, resp).ID)

	resp, err = http.Get(ta.server.URL + "/clips?status=" + model.ClipStatusQueued)
	require.NoError(t, err)
	require.Len(t, decode[[]model.ClipRecord](t, resp), 1)

	resp, err = http.Get(ta.server.URL + "/clips?status=" + model.ClipStatusDone)
	require.NoError(t, err)
	require.Empty(t, decode[[]model.ClipRecord](t, resp))
}

func TestSubmitRejectsBadSources(t *testing.T) {
	ta := newTestApp(t)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{name: "malformed", body: `{`, status: http.StatusBadRequest},
		{name: "empty", body: `{}`, status: http.StatusBadRequest},
		{name: "escape", body: `{"source":"../etc"}`, status: http.StatusBadRequest},
		{name: "missing", body: `{"source":"nope.mp4"}`, status: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(ta.server.URL+"/clips", "application/json", strings.NewReader(tt.body))
			require.NoError(t, err)
			require.Equal(t, tt.status, resp.StatusCode)
			require.NotEmpty(t, decode[errorResponse](t, resp).Error)
		})
	}
	require.Empty(t, ta.queue.queued)
}

func TestSubmitUpload(t *testing.T) {
	ta := newTestApp(t)

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("video", "walk.mp4")
	require.NoError(t, err)
	_, err = part.Write([]byte("video bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(ta.server.URL+"/clips", mw.FormDataContentType(), body)
	require.NoError(t, err)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	rec := decode[model.ClipRecord](t, resp)
	require.Equal(t, ta.input, filepath.Dir(rec.Source))
	require.Equal(t, ".mp4", filepath.Ext(rec.Source))

	stored, err := os.ReadFile(rec.Source)
	require.NoError(t, err)
	require.Equal(t, "video bytes", string(stored))
}

func TestSubmitUploadRejectsNonMP4(t *testing.T) {
	ta := newTestApp(t)

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("video", "walk.avi")
	require.NoError(t, err)
	_, err = part.Write([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(ta.server.URL+"/clips", mw.FormDataContentType(), body)
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSubmitQueueFull(t *testing.T) {
	ta := newTestApp(t)
	ta.queue.full = true
	require.NoError(t, os.WriteFile(filepath.Join(ta.input, "walk.mp4"), []byte("x"), 0644))

	resp, err := http.Post(ta.server.URL+"/clips", "application/json", strings.NewReader(`{"source":"walk.mp4"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	clips, err := ta.app.DataSvc.RetrieveClipsByStatus(model.ClipStatusFailed)
	require.NoError(t, err)
	require.Len(t, clips, 1)
}

func TestSubmitSourceTwiceConflicts(t *testing.T) {
	ta := newTestApp(t)
	require.NoError(t, os.WriteFile(filepath.Join(ta.input, "walk.mp4"), []byte("x"), 0644))

	resp, err := http.Post(ta.server.URL+"/clips", "application/json", strings.NewReader(`{"source":"walk.mp4"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp, err = http.Post(ta.server.URL+"/clips", "application/json", strings.NewReader(`{"source":"walk.mp4"}`))
	require.NoError(t, err)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.Equal(t, "source already queued", decode[errorResponse](t, resp).Error)

	require.Len(t, ta.queue.queued, 1)
	failed, err := ta.app.DataSvc.RetrieveClipsByStatus(model.ClipStatusFailed)
	require.NoError(t, err)
	require.Len(t, failed, 1)
}

func TestGetMissingClip(t *testing.T) {
	ta := newTestApp(t)

	resp, err := http.Get(ta.server.URL + "/clips/missing")
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}
