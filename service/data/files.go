package data

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/xerrors"

	"github.com/khaledhikmat/vs-erase/model"
	"github.com/khaledhikmat/vs-erase/service/config"
)

// filesDBService keeps one JSON array per entity under the ledger path.
type filesDBService struct {
	CfgSvc config.IService
	mu     sync.Mutex
}

func NewFilesDB(cfgsvc config.IService) IService {
	return &filesDBService{
		CfgSvc: cfgsvc,
	}
}

func (svc *filesDBService) NewClip(rec model.ClipRecord) (model.ClipRecord, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.StartedAt == 0 {
		rec.StartedAt = time.Now().Unix()
	}
	return rec, newEntity(rec, "clips", svc.CfgSvc)
}

func (svc *filesDBService) UpdateClip(rec model.ClipRecord) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	clips, err := retrieveEntites[model.ClipRecord]("clips", svc.CfgSvc)
	if err != nil {
		return err
	}

	found := false
	for i, clip := range clips {
		if clip.ID == rec.ID {
			clips[i] = rec
			found = true
			break
		}
	}
	if !found {
		return xerrors.Errorf("clip %s: %w", rec.ID, ErrNotFound)
	}

	return writeEntities(clips, "clips", svc.CfgSvc)
}

func (svc *filesDBService) RetrieveClip(id string) (model.ClipRecord, error) {
	clips, err := svc.RetrieveClips()
	if err != nil {
		return model.ClipRecord{}, err
	}

	for _, clip := range clips {
		if clip.ID == id {
			return clip, nil
		}
	}

	return model.ClipRecord{}, xerrors.Errorf("clip %s: %w", id, ErrNotFound)
}

// RetrieveClips returns the most recent records first.
func (svc *filesDBService) RetrieveClips() ([]model.ClipRecord, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	clips, err := retrieveEntites[model.ClipRecord]("clips", svc.CfgSvc)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(clips, func(i, j int) bool {
		return clips[i].StartedAt > clips[j].StartedAt
	})
	return clips, nil
}

func (svc *filesDBService) RetrieveClipsByStatus(status string) ([]model.ClipRecord, error) {
	clips, err := svc.RetrieveClips()
	if err != nil {
		return nil, err
	}

	result := []model.ClipRecord{}
	for _, clip := range clips {
		if clip.Status == status {
			result = append(result, clip)
		}
	}
	return result, nil
}

func (svc *filesDBService) NewError(err interface{}) error {
	rec, e := toErrorRecord(err)
	if e != nil {
		return e
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()
	return newEntity(rec, "errors", svc.CfgSvc)
}

func (svc *filesDBService) NewMaskerStats(stats model.MaskerStats) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	stats.Timestamp = time.Now().Unix()
	return newEntity(stats, "masker-stats", svc.CfgSvc)
}

func (svc *filesDBService) NewInpainterStats(stats model.InpainterStats) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	stats.Timestamp = time.Now().Unix()
	return newEntity(stats, "inpainter-stats", svc.CfgSvc)
}

func (svc *filesDBService) NewWatcherStats(stats model.WatcherStats) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	stats.Timestamp = time.Now().Unix()
	return newEntity(stats, "watcher-stats", svc.CfgSvc)
}

func (svc *filesDBService) Finalize() error {
	return nil
}

func newEntity[T any](entity T, filename string, cfgsvc config.IService) error {
	entities, err := retrieveEntites[T](filename, cfgsvc)
	if err != nil {
		return err
	}

	entities = append(entities, entity)
	return writeEntities(entities, filename, cfgsvc)
}

func writeEntities[T any](entities []T, filename string, cfgsvc config.IService) error {
	data, err := json.MarshalIndent(entities, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cfgsvc.GetLedgerPath(), 0755); err != nil {
		return err
	}

	// Write the JSON data to the file (with truncation)
	return os.WriteFile(entityPath(filename, cfgsvc), data, 0644)
}

func retrieveEntites[T any](filename string, cfgsvc config.IService) ([]T, error) {
	entities := []T{}

	data, err := os.ReadFile(entityPath(filename, cfgsvc))
	if err != nil {
		// WARNING: File not found, return empty slice
		return entities, nil
	}

	if err := json.Unmarshal(data, &entities); err != nil {
		return nil, err
	}

	return entities, nil
}

func entityPath(filename string, cfgsvc config.IService) string {
	return fmt.Sprintf("%s/%s.json", cfgsvc.GetLedgerPath(), filename)
}
