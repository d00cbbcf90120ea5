package data

import (
	"golang.org/x/xerrors"

	"github.com/khaledhikmat/vs-erase/model"
)

var ErrNotFound = xerrors.New("record not found")

// IService is the ledger of processed clips, run statistics and errors.
type IService interface {
	// NewClip stores a record, assigning an ID when it has none.
	NewClip(rec model.ClipRecord) (model.ClipRecord, error)
	UpdateClip(rec model.ClipRecord) error
	RetrieveClip(id string) (model.ClipRecord, error)
	RetrieveClips() ([]model.ClipRecord, error)
	RetrieveClipsByStatus(status string) ([]model.ClipRecord, error)

	NewError(err interface{}) error
	NewMaskerStats(stats model.MaskerStats) error
	NewInpainterStats(stats model.InpainterStats) error
	NewWatcherStats(stats model.WatcherStats) error

	Finalize() error
}
