package queue

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/xerrors"

	"github.com/khaledhikmat/vs-erase/model"
	"github.com/khaledhikmat/vs-erase/service/data"
)

// IsSource reports whether path is something the pipeline can process: an
// .mp4 file or a directory holding .jpg/.png frames.
func IsSource(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}

	if !info.IsDir() {
		return strings.EqualFold(filepath.Ext(path), ".mp4")
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return false
	}
	for _, e := range entries {
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".jpg", ".png":
			if !e.IsDir() {
				return true
			}
		}
	}
	return false
}

// ScanSources lists the sources directly under root in lexicographic order.
func ScanSources(root string) []string {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil
	}

	sources := []string{}
	for _, e := range entries {
		path := filepath.Join(root, e.Name())
		if IsSource(path) {
			sources = append(sources, path)
		}
	}
	sort.Strings(sources)
	return sources
}

// seenSet remembers sources already in the ledger and sources delivered by
// this process. Scans skip both. Publish only skips delivered sources, so
// clips left queued in the ledger can be published again.
type seenSet struct {
	mu        sync.Mutex
	known     map[string]bool
	delivered map[string]bool
}

func newSeenSet(dataSvc data.IService) *seenSet {
	s := &seenSet{known: map[string]bool{}, delivered: map[string]bool{}}
	if dataSvc == nil {
		return s
	}

	clips, err := dataSvc.RetrieveClips()
	if err != nil {
		return s
	}
	for _, clip := range clips {
		s.known[filepath.Clean(clip.Source)] = true
	}
	return s
}

// fresh marks the given sources delivered and returns those that were
// neither known nor delivered.
func (s *seenSet) fresh(sources []string) []model.ClipRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs := []model.ClipRecord{}
	for _, src := range sources {
		src = filepath.Clean(src)
		if s.known[src] || s.delivered[src] {
			continue
		}
		s.delivered[src] = true
		recs = append(recs, model.ClipRecord{
			Clip:   strings.TrimSuffix(filepath.Base(src), filepath.Ext(src)),
			Source: src,
			Stage:  "run",
			Status: model.ClipStatusQueued,
		})
	}
	return recs
}

// claim marks the sources of published clips delivered and returns the clips
// whose source was not delivered before. Clips without a source pass.
func (s *seenSet) claim(clips []model.ClipRecord) []model.ClipRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	claimed := []model.ClipRecord{}
	for _, clip := range clips {
		if clip.Source == "" {
			claimed = append(claimed, clip)
			continue
		}
		src := filepath.Clean(clip.Source)
		if s.delivered[src] {
			continue
		}
		s.delivered[src] = true
		claimed = append(claimed, clip)
	}
	return claimed
}

// release forgets sources that were claimed but never delivered.
func (s *seenSet) release(clips []model.ClipRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, clip := range clips {
		if clip.Source != "" {
			delete(s.delivered, filepath.Clean(clip.Source))
		}
	}
}

// publish claims clips and queues them on ch without blocking.
func (s *seenSet) publish(ch chan []model.ClipRecord, clips []model.ClipRecord) error {
	claimed := s.claim(clips)
	if len(claimed) == 0 && len(clips) > 0 {
		return xerrors.Errorf("%s: %w", clips[0].Source, ErrAlreadyQueued)
	}

	select {
	case ch <- claimed:
		return nil
	default:
		s.release(claimed)
		return xerrors.New("publish buffer is full")
	}
}

// settled reports whether nothing in path changed during the last quiet period.
func settled(path string, quiet time.Duration, now time.Time) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}

	latest := info.ModTime()
	if info.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return false
		}
		for _, e := range entries {
			if ei, err := e.Info(); err == nil && ei.ModTime().After(latest) {
				latest = ei.ModTime()
			}
		}
	}
	return now.Sub(latest) >= quiet
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// topLevel returns the entry of root that contains path.
func topLevel(root, path string) string {
	root = filepath.Clean(root)
	rel, err := filepath.Rel(root, filepath.Clean(path))
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return filepath.Clean(path)
	}
	first := strings.SplitN(rel, string(filepath.Separator), 2)[0]
	return filepath.Join(root, first)
}
