package pipeline

import (
	"github.com/khaledhikmat/vs-erase/model"
	"github.com/khaledhikmat/vs-erase/service/config"
)

// Merger unions a primary detection with the dependent detections that
// overlap it enough.
type Merger struct {
	dependents       map[int]bool
	scoreThreshold   float32
	overlapThreshold float64
}

func NewMerger(params config.MaskerParameters) *Merger {
	dependents := map[int]bool{}
	for _, class := range params.SubTargetClasses {
		dependents[class] = true
	}

	return &Merger{
		dependents:       dependents,
		scoreThreshold:   params.ScoreThreshold,
		overlapThreshold: params.OverlapThreshold,
	}
}

// OverlapRatio is the share of the candidate box covered by the primary box,
// in [0,1]. A zero-area candidate yields 0 and ok=false.
func OverlapRatio(primary, candidate model.Box) (ratio float64, ok bool) {
	area := candidate.Area()
	if area == 0 {
		return 0, false
	}
	return float64(primary.IntersectArea(candidate)) / float64(area), true
}

// Accepts reports whether a candidate is merged into the primary. Only the
// primary's own box is tested, never the growing union, so the accepted set
// does not depend on candidate order.
func (m *Merger) Accepts(primary model.Box, candidate model.Detection) bool {
	if !m.dependents[candidate.Class] {
		return false
	}
	if candidate.Score < m.scoreThreshold {
		return false
	}
	ratio, ok := OverlapRatio(primary, candidate.Box)
	if !ok {
		return false
	}
	return ratio > m.overlapThreshold
}

// Merge starts from the primary's pixels (already computed by the caller for
// the area check) and adds every accepted candidate's box and pixels.
// Pixels are restricted to an h x w frame.
func (m *Merger) Merge(primary model.Detection, pixels []model.Coord, candidates []model.Detection, h, w int) model.MergedRegion {
	region := model.MergedRegion{
		Box:    primary.Box,
		Coords: make(map[model.Coord]struct{}, len(pixels)),
	}
	for _, c := range pixels {
		region.Coords[c] = struct{}{}
	}

	for _, candidate := range candidates {
		if !m.Accepts(primary.Box, candidate) {
			continue
		}

		region.Box = region.Box.Union(candidate.Box)
		region.Dependents++
		for _, c := range candidate.Pixels(h, w) {
			region.Coords[c] = struct{}{}
		}
	}

	return region
}
