package config

import "slices"

// Settings is the immutable configuration value behind every IService.
type Settings struct {
	ModeMaxShutdownTime int `yaml:"mode_max_shutdown_time_s"`

	Log struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"log"`

	Folders struct {
		Input   string `yaml:"input"`
		Output  string `yaml:"output"`
		Results string `yaml:"results"`
	} `yaml:"folders"`

	Ledger struct {
		Type string `yaml:"type"` // files, sqlite
		Path string `yaml:"path"`
	} `yaml:"ledger"`

	Queue struct {
		Type            string `yaml:"type"` // timed, fsnotify
		PeriodicTimeout int    `yaml:"periodic_timeout_s"`
	} `yaml:"queue"`

	API struct {
		Address string `yaml:"address"`
	} `yaml:"api"`

	Notify struct {
		URL string `yaml:"url"`
	} `yaml:"notify"`

	Backend    string                       `yaml:"backend"`
	Backends   map[string]BackendParameters `yaml:"backends"`
	Masker     MaskerParameters             `yaml:"masker"`
	Scheduler  SchedulerParameters          `yaml:"scheduler"`
	Compositor CompositorParameters         `yaml:"compositor"`
	Detector   DetectorParameters           `yaml:"detector"`
}

type hardcodedService struct {
	settings Settings
}

func NewHardCoded() IService {
	return &hardcodedService{
		settings: Defaults(),
	}
}

// Defaults reproduces the reference configuration.
func Defaults() Settings {
	s := Settings{}
	s.ModeMaxShutdownTime = 5
	s.Log.Level = "info"
	s.Folders.Input = "./video"
	s.Folders.Output = "./data"
	s.Folders.Results = "./results"
	s.Ledger.Type = "files"
	s.Ledger.Path = "./settings"
	s.Queue.Type = "timed"
	s.Queue.PeriodicTimeout = 30
	s.API.Address = ":8080"
	s.Backend = E2FGVIHQBackendName
	s.Backends = map[string]BackendParameters{
		AOTGANBackendName: {
			ModelPath: "./models/aotgan.onnx",
			SwapRB:    true,
			Target:    "cpu",
		},
		E2FGVIBackendName: {
			ModelPath: "./models/e2fgvi.onnx",
			Width:     432,
			Height:    240,
			Target:    "cpu",
		},
		E2FGVIHQBackendName: {
			ModelPath: "./models/e2fgvi_hq.onnx",
			Target:    "cpu",
		},
	}
	s.Masker = MaskerParameters{
		TargetClass:      0,
		SubTargetClasses: []int{24, 26, 28, 67},
		ScoreThreshold:   0.5,
		AreaThreshold:    0.001,
		OverlapThreshold: 0.3,
	}
	s.Scheduler = SchedulerParameters{
		NeighborRadius: 5,
		NeighborStride: 5,
		RefStride:      10,
		RefCount:       -1,
		Budget:         17,
		TrimPolicy:     TrimNearerEnd,
	}
	s.Compositor = CompositorParameters{
		BlockHeight:      60,
		BlockWidth:       108,
		DilateIterations: 4,
		Workers:          1,
	}
	s.Detector = DetectorParameters{
		ModelPath:     "./models/mask2former.onnx",
		LabelsPath:    "./models/coco.names",
		InputWidth:    1024,
		InputHeight:   1024,
		MaskThreshold: 0.5,
		Target:        "cpu",
	}
	return s
}

func (svc *hardcodedService) GetModeMaxShutdownTime() int {
	return svc.settings.ModeMaxShutdownTime
}

func (svc *hardcodedService) GetLogLevel() string {
	return svc.settings.Log.Level
}

func (svc *hardcodedService) GetLogFile() string {
	return svc.settings.Log.File
}

func (svc *hardcodedService) GetInputFolder() string {
	return svc.settings.Folders.Input
}

func (svc *hardcodedService) GetOutputFolder() string {
	return svc.settings.Folders.Output
}

func (svc *hardcodedService) GetResultsFolder() string {
	return svc.settings.Folders.Results
}

func (svc *hardcodedService) GetLedgerType() string {
	return svc.settings.Ledger.Type
}

func (svc *hardcodedService) GetLedgerPath() string {
	return svc.settings.Ledger.Path
}

func (svc *hardcodedService) GetQueueType() string {
	return svc.settings.Queue.Type
}

func (svc *hardcodedService) GetQueuePeriodicTimeout() int {
	return svc.settings.Queue.PeriodicTimeout
}

func (svc *hardcodedService) GetAPIAddress() string {
	return svc.settings.API.Address
}

func (svc *hardcodedService) GetNotifyURL() string {
	return svc.settings.Notify.URL
}

func (svc *hardcodedService) GetBackendName() string {
	return svc.settings.Backend
}

// Getters hand out copies so callers cannot mutate the settings.
func (svc *hardcodedService) GetMaskerParameters() MaskerParameters {
	p := svc.settings.Masker
	p.SubTargetClasses = slices.Clone(p.SubTargetClasses)
	return p
}

func (svc *hardcodedService) GetSchedulerParameters() SchedulerParameters {
	return svc.settings.Scheduler
}

func (svc *hardcodedService) GetCompositorParameters() CompositorParameters {
	return svc.settings.Compositor
}

func (svc *hardcodedService) GetDetectorParameters() DetectorParameters {
	return svc.settings.Detector
}

func (svc *hardcodedService) GetBackendParameters(name string) BackendParameters {
	return svc.settings.Backends[name]
}
