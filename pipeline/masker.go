package pipeline

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/natefinch/lumberjack"
	"golang.org/x/xerrors"

	"github.com/khaledhikmat/vs-erase/model"
	"github.com/khaledhikmat/vs-erase/service/config"
	"github.com/khaledhikmat/vs-erase/service/inference"
	"github.com/khaledhikmat/vs-erase/service/lgr"
)

// MaskCounts summarizes what mask synthesis kept and dropped for one frame.
type MaskCounts struct {
	Primaries    int
	Rejected     int
	Dependents   int
	MaskedPixels int
}

func (c *MaskCounts) add(o MaskCounts) {
	c.Primaries += o.Primaries
	c.Rejected += o.Rejected
	c.Dependents += o.Dependents
	c.MaskedPixels += o.MaskedPixels
}

// Synthesizer turns detections into a binary removal mask and an object record.
type Synthesizer struct {
	params config.MaskerParameters
	merger *Merger
	audit  io.Writer
}

func NewSynthesizer(params config.MaskerParameters) *Synthesizer {
	s := &Synthesizer{
		params: params,
		merger: NewMerger(params),
	}

	if params.AuditLog != "" {
		s.audit = &lumberjack.Logger{
			Filename:   params.AuditLog,
			MaxSize:    10, // MB
			MaxBackups: 5,
			MaxAge:     7,    // days
			Compress:   true, // compress old logs
		}
	}

	return s
}

// Synthesize runs the detector on one frame and builds its FrameMask.
// The frame is never modified.
func (s *Synthesizer) Synthesize(ctx context.Context, frame model.Frame, detector inference.Detector) (model.FrameMask, MaskCounts, error) {
	set, err := detector.Detect(ctx, frame)
	if err != nil {
		return model.FrameMask{}, MaskCounts{}, xerrors.Errorf("detecting objects in %s: %w", frame.Name, err)
	}

	fm, counts := s.FromDetections(frame.Name, set, frame.H, frame.W)
	return fm, counts, nil
}

// FromDetections applies the score, area and merge rules to one frame's detections.
func (s *Synthesizer) FromDetections(name string, set model.DetectionSet, h, w int) (model.FrameMask, MaskCounts) {
	fm := model.FrameMask{
		Name: name,
		Mask: model.NewMask(h, w),
		Record: model.ObjectRecord{
			Boxes:  []model.Box{},
			Coords: [][]model.Coord{},
		},
	}
	counts := MaskCounts{}
	size := float64(h * w)

	candidates := set.Of(s.params.SubTargetClasses...)
	audit := []auditEntry{}

	for _, primary := range set[s.params.TargetClass] {
		if primary.Score < s.params.ScoreThreshold {
			counts.Rejected++
			audit = append(audit, auditEntry{Box: primary.Box, Score: primary.Score, Reason: "score"})
			continue
		}

		pixels := primary.Pixels(h, w)
		if size == 0 || float64(len(pixels))/size < s.params.AreaThreshold {
			counts.Rejected++
			audit = append(audit, auditEntry{Box: primary.Box, Score: primary.Score, Reason: "area"})
			continue
		}

		region := s.merger.Merge(primary, pixels, candidates, h, w)
		coords := SortedCoords(region.Coords)
		for _, c := range coords {
			fm.Mask.Pix[c.Row*w+c.Col] = model.MaskOn
		}

		fm.Record.Boxes = append(fm.Record.Boxes, region.Box)
		fm.Record.Coords = append(fm.Record.Coords, coords)

		counts.Primaries++
		counts.Dependents += region.Dependents
		audit = append(audit, auditEntry{Box: region.Box, Score: primary.Score, Dependents: region.Dependents, Pixels: len(coords)})
	}

	counts.MaskedPixels = fm.Mask.Count()
	s.logAudit(name, audit)

	return fm, counts
}

// SortedCoords returns the set in canonical row-major order.
func SortedCoords(set map[model.Coord]struct{}) []model.Coord {
	coords := make([]model.Coord, 0, len(set))
	for c := range set {
		coords = append(coords, c)
	}
	sort.Slice(coords, func(i, j int) bool {
		return coords[i].Less(coords[j])
	})
	return coords
}

// Rasterize draws coordinate sets into a fresh h x w mask. Out of frame
// coordinates are ignored.
func Rasterize(h, w int, sets ...[]model.Coord) model.Mask {
	mask := model.NewMask(h, w)
	for _, coords := range sets {
		for _, c := range coords {
			if c.Row < 0 || c.Row >= h || c.Col < 0 || c.Col >= w {
				continue
			}
			mask.Pix[c.Row*w+c.Col] = model.MaskOn
		}
	}
	return mask
}

// ExtractCoords lists the removal pixels of a mask in row-major order.
func ExtractCoords(mask model.Mask) []model.Coord {
	coords := []model.Coord{}
	for r := 0; r < mask.H; r++ {
		for c := 0; c < mask.W; c++ {
			if mask.On(r, c) {
				coords = append(coords, model.Coord{Row: r, Col: c})
			}
		}
	}
	return coords
}

type auditEntry struct {
	Box        model.Box `json:"box"`
	Score      float32   `json:"score"`
	Reason     string    `json:"rejected,omitempty"`
	Dependents int       `json:"dependents,omitempty"`
	Pixels     int       `json:"pixels,omitempty"`
}

func (s *Synthesizer) logAudit(frame string, entries []auditEntry) {
	if s.audit == nil || len(entries) == 0 {
		return
	}

	entry := map[string]interface{}{
		"time":       time.Now().Format(time.RFC3339),
		"frame":      frame,
		"detections": entries,
	}

	jsonData, err := json.Marshal(entry)
	if err != nil {
		lgr.Logger.Warn("error marshaling detections", lgr.Err(err))
		return
	}

	if _, err := s.audit.Write(append(jsonData, '\n')); err != nil {
		lgr.Logger.Warn("error writing to detection log file", slog.String("frame", frame), lgr.Err(err))
	}
}
