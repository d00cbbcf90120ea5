package config

import (
	"os"
	"strconv"

	"golang.org/x/xerrors"
	"gopkg.in/yaml.v3"
)

type yamlService struct {
	hardcodedService
	path string
}

// NewYAML reads a YAML file over the reference defaults, applies environment
// overrides and validates the result. The returned service never changes.
func NewYAML(path string) (IService, error) {
	settings := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, xerrors.Errorf("failed to read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, &settings); err != nil {
			return nil, xerrors.Errorf("failed to parse config: %w", err)
		}
	}

	applyEnv(&settings)

	if err := Validate(&settings); err != nil {
		return nil, xerrors.Errorf("invalid configuration: %w", err)
	}

	return &yamlService{
		hardcodedService: hardcodedService{settings: settings},
		path:             path,
	}, nil
}

func applyEnv(s *Settings) {
	if v := os.Getenv("VSE_BACKEND"); v != "" {
		s.Backend = v
	}
	if v := os.Getenv("VSE_LOG_LEVEL"); v != "" {
		s.Log.Level = v
	}
	if v := os.Getenv("VSE_LOG_FILE"); v != "" {
		s.Log.File = v
	}
	if v := os.Getenv("VSE_INPUT_FOLDER"); v != "" {
		s.Folders.Input = v
	}
	if v := os.Getenv("VSE_OUTPUT_FOLDER"); v != "" {
		s.Folders.Output = v
	}
	if v := os.Getenv("VSE_RESULTS_FOLDER"); v != "" {
		s.Folders.Results = v
	}
	if v := os.Getenv("VSE_LEDGER_TYPE"); v != "" {
		s.Ledger.Type = v
	}
	if v := os.Getenv("VSE_LEDGER_PATH"); v != "" {
		s.Ledger.Path = v
	}
	if v := os.Getenv("VSE_NOTIFY_URL"); v != "" {
		s.Notify.URL = v
	}
	if v := os.Getenv("VSE_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			s.Compositor.Workers = n
		}
	}
}

// Validate rejects settings the pipeline cannot honor.
func Validate(s *Settings) error {
	switch s.Backend {
	case AOTGANBackendName, E2FGVIBackendName, E2FGVIHQBackendName, FakeBackendName:
	default:
		return xerrors.Errorf("unknown backend %q", s.Backend)
	}

	switch s.Ledger.Type {
	case "files", "sqlite":
	default:
		return xerrors.Errorf("unknown ledger type %q", s.Ledger.Type)
	}

	switch s.Queue.Type {
	case "timed", "fsnotify":
	default:
		return xerrors.Errorf("unknown queue type %q", s.Queue.Type)
	}
	if s.Queue.PeriodicTimeout <= 0 {
		s.Queue.PeriodicTimeout = 30
	}

	m := s.Masker
	if m.ScoreThreshold < 0 || m.ScoreThreshold > 1 {
		return xerrors.Errorf("masker.score_threshold must be in [0,1], got %v", m.ScoreThreshold)
	}
	if m.AreaThreshold < 0 || m.AreaThreshold > 1 {
		return xerrors.Errorf("masker.area_threshold must be in [0,1], got %v", m.AreaThreshold)
	}
	if m.OverlapThreshold < 0 || m.OverlapThreshold > 1 {
		return xerrors.Errorf("masker.overlap_threshold must be in [0,1], got %v", m.OverlapThreshold)
	}

	sc := s.Scheduler
	if sc.NeighborRadius < 0 {
		return xerrors.Errorf("scheduler.neighbor_radius must be >= 0")
	}
	if sc.NeighborStride <= 0 || sc.NeighborStride > sc.NeighborRadius+1 {
		return xerrors.Errorf("scheduler.neighbor_stride must be in [1,%d] to cover every frame", sc.NeighborRadius+1)
	}
	if sc.RefStride <= 0 {
		return xerrors.Errorf("scheduler.ref_stride must be > 0")
	}
	if sc.Budget <= 0 {
		return xerrors.Errorf("scheduler.budget must be > 0")
	}
	switch sc.TrimPolicy {
	case TrimNearerEnd, TrimFarthest:
	case "":
		s.Scheduler.TrimPolicy = TrimNearerEnd
	default:
		return xerrors.Errorf("unknown scheduler.trim_policy %q", sc.TrimPolicy)
	}

	c := s.Compositor
	if c.BlockHeight <= 0 || c.BlockWidth <= 0 {
		return xerrors.Errorf("compositor block sizes must be > 0")
	}
	if c.DilateIterations < 0 {
		return xerrors.Errorf("compositor.dilate_iterations must be >= 0")
	}
	if c.Workers <= 0 {
		s.Compositor.Workers = 1
	}

	return nil
}
