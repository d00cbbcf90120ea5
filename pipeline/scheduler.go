package pipeline

import (
	"iter"
	"slices"

	"golang.org/x/xerrors"

	"github.com/khaledhikmat/vs-erase/model"
	"github.com/khaledhikmat/vs-erase/service/config"
)

// TrimPolicy picks which reference to evict when a window is over budget.
// refs always has at least one element.
type TrimPolicy func(anchor int, refs []int) int

// NearerEnd compares the two extreme references: the last one is dropped when
// the first is strictly closer to the anchor, otherwise the first is dropped.
func NearerEnd(anchor int, refs []int) int {
	last := len(refs) - 1
	if absInt(anchor-refs[0]) < absInt(anchor-refs[last]) {
		return last
	}
	return 0
}

// Farthest drops the reference farthest from the anchor, the earliest on ties.
func Farthest(anchor int, refs []int) int {
	evict := 0
	for i, ref := range refs {
		if absInt(anchor-ref) > absInt(anchor-refs[evict]) {
			evict = i
		}
	}
	return evict
}

func TrimPolicyByName(name string) (TrimPolicy, error) {
	switch name {
	case config.TrimNearerEnd, "":
		return NearerEnd, nil
	case config.TrimFarthest:
		return Farthest, nil
	default:
		return nil, xerrors.Errorf("unknown trim policy %q", name)
	}
}

// Scheduler builds the windows of a clip. Membership depends only on the
// clip length and the parameters.
type Scheduler struct {
	radius    int
	stride    int
	refStride int
	refCount  int
	budget    int
	trim      TrimPolicy
}

func NewScheduler(params config.SchedulerParameters) (*Scheduler, error) {
	if params.NeighborRadius < 0 {
		return nil, xerrors.Errorf("neighbor radius must be >= 0, got %d", params.NeighborRadius)
	}
	// Anchors step by stride from 0; a larger stride leaves frames after the
	// last anchor's radius uncovered.
	if params.NeighborStride <= 0 || params.NeighborStride > params.NeighborRadius+1 {
		return nil, xerrors.Errorf("neighbor stride must be in [1,%d], got %d", params.NeighborRadius+1, params.NeighborStride)
	}
	if params.RefStride <= 0 {
		return nil, xerrors.Errorf("reference stride must be > 0, got %d", params.RefStride)
	}
	if params.Budget <= 0 {
		return nil, xerrors.Errorf("budget must be > 0, got %d", params.Budget)
	}

	trim, err := TrimPolicyByName(params.TrimPolicy)
	if err != nil {
		return nil, err
	}

	return &Scheduler{
		radius:    params.NeighborRadius,
		stride:    params.NeighborStride,
		refStride: params.RefStride,
		refCount:  params.RefCount,
		budget:    params.Budget,
		trim:      trim,
	}, nil
}

// Anchors lists the anchor frames in processing order.
func (s *Scheduler) Anchors(length int) []int {
	anchors := []int{}
	for f := 0; f < length; f += s.stride {
		anchors = append(anchors, f)
	}
	return anchors
}

// Windows yields one window per anchor in non-decreasing anchor order.
func (s *Scheduler) Windows(length int) iter.Seq[model.Window] {
	return func(yield func(model.Window) bool) {
		for f := 0; f < length; f += s.stride {
			if !yield(s.Window(f, length)) {
				return
			}
		}
	}
}

// Window builds the window anchored at f.
func (s *Scheduler) Window(f, length int) model.Window {
	lo := max(0, f-s.radius)
	hi := min(length-1, f+s.radius)

	neighbors := make([]int, 0, hi-lo+1)
	for i := lo; i <= hi; i++ {
		neighbors = append(neighbors, i)
	}

	refs := s.refIDs(f, length, lo, hi)
	refs, trimmed := s.trimRefs(f, refs, len(neighbors))

	return model.Window{
		Anchor:      f,
		NeighborIDs: neighbors,
		RefIDs:      refs,
		Trimmed:     trimmed,
		OverBudget:  len(neighbors)+len(refs) > s.budget,
	}
}

// refIDs samples references every refStride, skipping the neighbor range [lo,hi].
func (s *Scheduler) refIDs(f, length, lo, hi int) []int {
	refs := []int{}

	if s.refCount <= 0 {
		for i := 0; i < length; i += s.refStride {
			if i >= lo && i <= hi {
				continue
			}
			refs = append(refs, i)
		}
		return refs
	}

	half := s.refStride * (s.refCount / 2)
	start := max(0, f-half)
	end := min(length-1, f+half)
	for i := start; i <= end; i += s.refStride {
		if i >= lo && i <= hi {
			continue
		}
		if len(refs) >= s.refCount {
			break
		}
		refs = append(refs, i)
	}
	return refs
}

// trimRefs evicts references until the window fits the budget. With fewer
// than two references nothing is trimmed and the window may stay over budget.
func (s *Scheduler) trimRefs(f int, refs []int, neighbors int) ([]int, int) {
	if len(refs) < 2 {
		return refs, 0
	}

	trimmed := 0
	for len(refs) > 0 && neighbors+len(refs) > s.budget {
		evict := s.trim(f, refs)
		refs = slices.Delete(refs, evict, evict+1)
		trimmed++
	}
	return refs, trimmed
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
