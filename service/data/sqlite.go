package data

import (
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/xerrors"

	"github.com/khaledhikmat/vs-erase/model"
	"github.com/khaledhikmat/vs-erase/service/config"
)

type sqliteService struct {
	CfgSvc config.IService
	conn   *sql.DB
}

// NewSQLite opens (and creates) the ledger database at <ledger path>/ledger.db.
func NewSQLite(cfgsvc config.IService) (IService, error) {
	if err := os.MkdirAll(cfgsvc.GetLedgerPath(), 0755); err != nil {
		return nil, xerrors.Errorf("failed to create ledger directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", filepath.Join(cfgsvc.GetLedgerPath(), "ledger.db"))
	if err != nil {
		return nil, xerrors.Errorf("failed to open database: %w", err)
	}
	// One writer at a time; the modes write from several goroutines.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, xerrors.Errorf("failed to ping database: %w", err)
	}

	svc := &sqliteService{
		CfgSvc: cfgsvc,
		conn:   conn,
	}
	if err := svc.createTables(); err != nil {
		conn.Close()
		return nil, xerrors.Errorf("failed to create tables: %w", err)
	}

	return svc, nil
}

func (svc *sqliteService) createTables() error {
	query := `
	CREATE TABLE IF NOT EXISTS clips (
		id TEXT PRIMARY KEY,
		clip TEXT NOT NULL,
		source TEXT NOT NULL,
		stage TEXT NOT NULL,
		status TEXT NOT NULL,
		backend TEXT,
		frames INTEGER NOT NULL DEFAULT 0,
		result_dir TEXT,
		error TEXT,
		started_at INTEGER NOT NULL,
		ended_at INTEGER NOT NULL DEFAULT 0
	);
	CREATE TABLE IF NOT EXISTS errors (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp INTEGER NOT NULL,
		processor TEXT NOT NULL,
		clip TEXT,
		payload TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS stats (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		kind TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		payload TEXT NOT NULL
	);
	`

	_, err := svc.conn.Exec(query)
	return err
}

const clipColumns = `id, clip, source, stage, status, backend, frames, result_dir, error, started_at, ended_at`

func (svc *sqliteService) NewClip(rec model.ClipRecord) (model.ClipRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.StartedAt == 0 {
		rec.StartedAt = time.Now().Unix()
	}

	_, err := svc.conn.Exec(`INSERT INTO clips (`+clipColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Clip, rec.Source, rec.Stage, rec.Status, rec.Backend, rec.Frames, rec.ResultDir, rec.Error, rec.StartedAt, rec.EndedAt)
	if err != nil {
		return rec, xerrors.Errorf("failed to insert clip: %w", err)
	}
	return rec, nil
}

func (svc *sqliteService) UpdateClip(rec model.ClipRecord) error {
	res, err := svc.conn.Exec(`UPDATE clips SET clip = ?, source = ?, stage = ?, status = ?, backend = ?, frames = ?, result_dir = ?, error = ?, started_at = ?, ended_at = ? WHERE id = ?`,
		rec.Clip, rec.Source, rec.Stage, rec.Status, rec.Backend, rec.Frames, rec.ResultDir, rec.Error, rec.StartedAt, rec.EndedAt, rec.ID)
	if err != nil {
		return xerrors.Errorf("failed to update clip: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return xerrors.Errorf("failed to update clip: %w", err)
	}
	if n == 0 {
		return xerrors.Errorf("clip %s: %w", rec.ID, ErrNotFound)
	}
	return nil
}

func (svc *sqliteService) RetrieveClip(id string) (model.ClipRecord, error) {
	row := svc.conn.QueryRow(`SELECT `+clipColumns+` FROM clips WHERE id = ?`, id)

	rec, err := scanClip(row)
	if err == sql.ErrNoRows {
		return model.ClipRecord{}, xerrors.Errorf("clip %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return model.ClipRecord{}, xerrors.Errorf("failed to get clip: %w", err)
	}
	return rec, nil
}

func (svc *sqliteService) RetrieveClips() ([]model.ClipRecord, error) {
	return svc.queryClips(`SELECT ` + clipColumns + ` FROM clips ORDER BY started_at DESC`)
}

func (svc *sqliteService) RetrieveClipsByStatus(status string) ([]model.ClipRecord, error) {
	return svc.queryClips(`SELECT `+clipColumns+` FROM clips WHERE status = ? ORDER BY started_at DESC`, status)
}

func (svc *sqliteService) queryClips(query string, args ...interface{}) ([]model.ClipRecord, error) {
	rows, err := svc.conn.Query(query, args...)
	if err != nil {
		return nil, xerrors.Errorf("failed to list clips: %w", err)
	}
	defer rows.Close()

	clips := []model.ClipRecord{}
	for rows.Next() {
		rec, err := scanClip(rows)
		if err != nil {
			return nil, xerrors.Errorf("failed to scan clip: %w", err)
		}
		clips = append(clips, rec)
	}
	return clips, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanClip(s scanner) (model.ClipRecord, error) {
	var rec model.ClipRecord
	var backend, resultDir, errText sql.NullString
	err := s.Scan(&rec.ID, &rec.Clip, &rec.Source, &rec.Stage, &rec.Status, &backend, &rec.Frames, &resultDir, &errText, &rec.StartedAt, &rec.EndedAt)
	rec.Backend = backend.String
	rec.ResultDir = resultDir.String
	rec.Error = errText.String
	return rec, err
}

func (svc *sqliteService) NewError(err interface{}) error {
	rec, e := toErrorRecord(err)
	if e != nil {
		return e
	}

	payload, e := json.Marshal(rec)
	if e != nil {
		return e
	}

	_, e = svc.conn.Exec(`INSERT INTO errors (timestamp, processor, clip, payload) VALUES (?, ?, ?, ?)`,
		rec.Timestamp, rec.Processor, rec.Clip, string(payload))
	return e
}

func (svc *sqliteService) NewMaskerStats(stats model.MaskerStats) error {
	stats.Timestamp = time.Now().Unix()
	return svc.newStats("masker", stats.Timestamp, stats)
}

func (svc *sqliteService) NewInpainterStats(stats model.InpainterStats) error {
	stats.Timestamp = time.Now().Unix()
	return svc.newStats("inpainter", stats.Timestamp, stats)
}

func (svc *sqliteService) NewWatcherStats(stats model.WatcherStats) error {
	stats.Timestamp = time.Now().Unix()
	return svc.newStats("watcher", stats.Timestamp, stats)
}

func (svc *sqliteService) newStats(kind string, ts int64, stats interface{}) error {
	payload, err := json.Marshal(stats)
	if err != nil {
		return err
	}

	_, err = svc.conn.Exec(`INSERT INTO stats (kind, timestamp, payload) VALUES (?, ?, ?)`, kind, ts, string(payload))
	return err
}

func (svc *sqliteService) Finalize() error {
	return svc.conn.Close()
}
