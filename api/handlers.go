package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/xerrors"

	"github.com/khaledhikmat/vs-erase/model"
	"github.com/khaledhikmat/vs-erase/service/config"
	"github.com/khaledhikmat/vs-erase/service/data"
	"github.com/khaledhikmat/vs-erase/service/lgr"
	"github.com/khaledhikmat/vs-erase/service/queue"
	"github.com/khaledhikmat/vs-erase/service/storage"
)

const defaultMaxUploadSize = 512 << 20

type App struct {
	CfgSvc        config.IService
	DataSvc       data.IService
	StorageSvc    storage.IService
	QueueSvc      queue.IService
	MaxUploadSize int64
}

type submitRequest struct {
	// Source is relative to the input folder.
	Source string `json:"source"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (app *App) ListClipsHandler(w http.ResponseWriter, r *http.Request) {
	var (
		clips []model.ClipRecord
		err   error
	)

	if status := r.URL.Query().Get("status"); status != "" {
		clips, err = app.DataSvc.RetrieveClipsByStatus(status)
	} else {
		clips, err = app.DataSvc.RetrieveClips()
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load clips")
		return
	}

	writeJSON(w, http.StatusOK, clips)
}

func (app *App) GetClipHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	clip, err := app.DataSvc.RetrieveClip(id)
	if xerrors.Is(err, data.ErrNotFound) {
		writeError(w, http.StatusNotFound, "clip not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load clip")
		return
	}

	writeJSON(w, http.StatusOK, clip)
}

// SubmitClipHandler queues either an uploaded mp4 (multipart field "video")
// or a source already present in the input folder (JSON body).
func (app *App) SubmitClipHandler(w http.ResponseWriter, r *http.Request) {
	var (
		source string
		status int
		err    error
	)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		source, status, err = app.upload(w, r)
	} else {
		source, status, err = app.existing(r)
	}
	if err != nil {
		writeError(w, status, err.Error())
		return
	}

	name := filepath.Base(source)
	rec, err := app.DataSvc.NewClip(model.ClipRecord{
		Clip:      strings.TrimSuffix(name, filepath.Ext(name)),
		Source:    source,
		Stage:     "run",
		Status:    model.ClipStatusQueued,
		Backend:   app.CfgSvc.GetBackendName(),
		StartedAt: time.Now().Unix(),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to record clip")
		return
	}

	if err := app.QueueSvc.Publish([]model.ClipRecord{rec}); err != nil {
		rec.Status = model.ClipStatusFailed
		rec.Error = err.Error()
		_ = app.DataSvc.UpdateClip(rec)
		if xerrors.Is(err, queue.ErrAlreadyQueued) {
			writeError(w, http.StatusConflict, "source already queued")
			return
		}
		writeError(w, http.StatusServiceUnavailable, "queue is full")
		return
	}

	lgr.Logger.Info("clip submitted",
		slog.String("id", rec.ID),
		slog.String("source", rec.Source),
	)
	writeJSON(w, http.StatusAccepted, rec)
}

func (app *App) upload(w http.ResponseWriter, r *http.Request) (string, int, error) {
	limit := app.MaxUploadSize
	if limit <= 0 {
		limit = defaultMaxUploadSize
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	if err := r.ParseMultipartForm(limit); err != nil {
		return "", http.StatusRequestEntityTooLarge, xerrors.New("file too large")
	}

	file, header, err := r.FormFile("video")
	if err != nil {
		return "", http.StatusBadRequest, xerrors.New("failed to get file")
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".mp4") {
		return "", http.StatusBadRequest, xerrors.New("only mp4 video files are allowed")
	}

	name, err := app.StorageSvc.StoreFile(header.Filename, file)
	if err != nil {
		return "", http.StatusInternalServerError, xerrors.New("failed to save file")
	}

	return filepath.Join(app.CfgSvc.GetInputFolder(), name), http.StatusOK, nil
}

func (app *App) existing(r *http.Request) (string, int, error) {
	req := submitRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return "", http.StatusBadRequest, xerrors.New("invalid request body")
	}

	source, err := inputPath(app.CfgSvc.GetInputFolder(), req.Source)
	if err != nil {
		return "", http.StatusBadRequest, err
	}
	if !queue.IsSource(source) {
		return "", http.StatusNotFound, xerrors.New("source is not an mp4 file or a frame directory")
	}

	return source, http.StatusOK, nil
}

// inputPath resolves rel under root and rejects anything that escapes it.
func inputPath(root, rel string) (string, error) {
	if rel == "" {
		return "", xerrors.New("source is required")
	}

	root = filepath.Clean(root)
	full := filepath.Join(root, rel)
	if full != root && !strings.HasPrefix(full, root+string(filepath.Separator)) {
		return "", xerrors.New("invalid source path")
	}
	return full, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		lgr.Logger.Warn("error encoding response", lgr.Err(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
