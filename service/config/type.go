package config

const (
	AOTGANBackendName   = "aotgan"
	E2FGVIBackendName   = "e2fgvi"
	E2FGVIHQBackendName = "e2fgvi_hq"
	FakeBackendName     = "fake"
)

const (
	TrimNearerEnd = "nearer-end"
	TrimFarthest  = "farthest"
)

type MaskerParameters struct {
	TargetClass      int     `yaml:"target_class"`
	SubTargetClasses []int   `yaml:"subtarget_classes"`
	ScoreThreshold   float32 `yaml:"score_threshold"`
	AreaThreshold    float64 `yaml:"area_threshold"`    // fraction of H*W
	OverlapThreshold float64 `yaml:"overlap_threshold"` // intersection / candidate area
	AuditLog         string  `yaml:"audit_log"`         // rotating detection log, empty disables
}

type SchedulerParameters struct {
	NeighborRadius int    `yaml:"neighbor_radius"`
	NeighborStride int    `yaml:"neighbor_stride"`
	RefStride      int    `yaml:"ref_stride"`
	RefCount       int    `yaml:"ref_count"` // -1 samples the whole clip
	Budget         int    `yaml:"budget"`    // max neighbor+ref frames per window
	TrimPolicy     string `yaml:"trim_policy"`
}

type CompositorParameters struct {
	BlockHeight      int `yaml:"block_height"`
	BlockWidth       int `yaml:"block_width"`
	DilateIterations int `yaml:"dilate_iterations"`
	Workers          int `yaml:"workers"`
}

type DetectorParameters struct {
	ModelPath     string  `yaml:"model_path"`
	LabelsPath    string  `yaml:"labels_path"`
	InputWidth    int     `yaml:"input_width"`
	InputHeight   int     `yaml:"input_height"`
	MaskThreshold float32 `yaml:"mask_threshold"`
	Target        string  `yaml:"target"` // cpu, cuda
}

type BackendParameters struct {
	ModelPath string `yaml:"model_path"`
	Width     int    `yaml:"width"`  // 0 keeps the native frame size
	Height    int    `yaml:"height"` // 0 keeps the native frame size
	SwapRB    bool   `yaml:"swap_rb"`
	Target    string `yaml:"target"` // cpu, cuda
}

type IService interface {
	GetModeMaxShutdownTime() int
	GetLogLevel() string
	GetLogFile() string
	GetInputFolder() string
	GetOutputFolder() string
	GetResultsFolder() string
	GetLedgerType() string
	GetLedgerPath() string
	GetQueueType() string
	GetQueuePeriodicTimeout() int
	GetAPIAddress() string
	GetNotifyURL() string
	GetBackendName() string
	GetMaskerParameters() MaskerParameters
	GetSchedulerParameters() SchedulerParameters
	GetCompositorParameters() CompositorParameters
	GetDetectorParameters() DetectorParameters
	GetBackendParameters(name string) BackendParameters
}
