package queue

import (
	"golang.org/x/xerrors"

	"github.com/khaledhikmat/vs-erase/model"
)

// ErrAlreadyQueued is returned by Publish when every clip's source was
// already delivered, either by an earlier Publish or by a scan.
var ErrAlreadyQueued = xerrors.New("source already queued")

// IService delivers clips waiting to be processed. A record without an ID
// was discovered on disk and has no ledger entry yet.
// Each source is delivered at most once per process.
type IService interface {
	Publish(clips []model.ClipRecord) error
	Subscribe() (<-chan []model.ClipRecord, error)
	Unsubscribe() error
	Finalize()
}
