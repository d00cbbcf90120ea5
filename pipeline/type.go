package pipeline

import (
	"go.opentelemetry.io/otel"

	"github.com/khaledhikmat/vs-erase/service/config"
)

var tracer = otel.Tracer("github.com/khaledhikmat/vs-erase/pipeline")

// Pipeline processes one clip at a time: mask synthesis, then either windowed
// temporal inpainting or single-frame inpainting.
type Pipeline struct {
	synthesizer *Synthesizer
	scheduler   *Scheduler
	compositor  *Compositor
	workers     int
}

func New(cfgsvc config.IService) (*Pipeline, error) {
	scheduler, err := NewScheduler(cfgsvc.GetSchedulerParameters())
	if err != nil {
		return nil, err
	}

	cp := cfgsvc.GetCompositorParameters()
	workers := cp.Workers
	if workers <= 0 {
		workers = 1
	}

	return &Pipeline{
		synthesizer: NewSynthesizer(cfgsvc.GetMaskerParameters()),
		scheduler:   scheduler,
		compositor:  NewCompositor(cp),
		workers:     workers,
	}, nil
}

func (p *Pipeline) Scheduler() *Scheduler {
	return p.scheduler
}
