package dnn

import (
	"context"

	"golang.org/x/xerrors"

	"github.com/khaledhikmat/vs-erase/model"
	"github.com/khaledhikmat/vs-erase/service/config"
	"github.com/khaledhikmat/vs-erase/service/inference"
)

// Input and output names of the exported inpainting graphs.
const (
	frameInput     = "image"
	maskInput      = "mask"
	neighborsInput = "neighbors"
	outputName     = "output"
)

// NewBackend resolves the configured backend name to one of the known
// implementations. Temporal backends get one network per compositor worker.
func NewBackend(cfgsvc config.IService) (inference.Backend, error) {
	name := cfgsvc.GetBackendName()
	params := cfgsvc.GetBackendParameters(name)
	workers := cfgsvc.GetCompositorParameters().Workers

	switch name {
	case config.AOTGANBackendName:
		return newFrameBackend(name, params)
	case config.E2FGVIBackendName, config.E2FGVIHQBackendName:
		return newWindowBackend(name, params, workers)
	case config.FakeBackendName:
		return inference.NewFakeWindowBackend(0), nil
	default:
		return nil, xerrors.Errorf("unknown backend %q", name)
	}
}

type frameBackend struct {
	inference.Base
	pool   *netPool
	swapRB bool
}

func newFrameBackend(name string, params config.BackendParameters) (inference.FrameBackend, error) {
	pool, err := newNetPool(params.ModelPath, params.Target, 1)
	if err != nil {
		return nil, err
	}

	return &frameBackend{
		Base: inference.Base{
			BackendName: name,
			Kind:        inference.SingleFrame,
			Width:       params.Width,
			Height:      params.Height,
		},
		pool:   pool,
		swapRB: params.SwapRB,
	}, nil
}

func (b *frameBackend) InpaintFrame(ctx context.Context, masked model.Tensor, mask model.Tensor) (model.Tensor, error) {
	net, err := b.pool.acquire(ctx)
	if err != nil {
		return model.Tensor{}, err
	}
	defer b.pool.release(net)

	imgBlob, err := tensorToBlob(masked, b.swapRB)
	if err != nil {
		return model.Tensor{}, err
	}
	defer imgBlob.Close()

	maskBlob, err := tensorToBlob(mask, false)
	if err != nil {
		return model.Tensor{}, err
	}
	defer maskBlob.Close()

	net.SetInput(imgBlob, frameInput)
	net.SetInput(maskBlob, maskInput)

	out := net.Forward(outputName)
	defer out.Close()
	if out.Empty() {
		return model.Tensor{}, xerrors.Errorf("%s: empty output", b.Name())
	}

	return blobToTensor(out, masked.T, 3, masked.H, masked.W, b.swapRB)
}

func (b *frameBackend) Close() error {
	return b.pool.Close()
}

type windowBackend struct {
	inference.Base
	pool *netPool
}

func newWindowBackend(name string, params config.BackendParameters, workers int) (inference.WindowBackend, error) {
	pool, err := newNetPool(params.ModelPath, params.Target, workers)
	if err != nil {
		return nil, err
	}

	return &windowBackend{
		Base: inference.Base{
			BackendName: name,
			Kind:        inference.WindowedTemporal,
			Width:       params.Width,
			Height:      params.Height,
		},
		pool: pool,
	}, nil
}

// InpaintWindow feeds the batch with the time axis folded into the batch
// axis; the graph takes the neighbor count as a 1x1 input.
func (b *windowBackend) InpaintWindow(ctx context.Context, batch model.Tensor, masks model.Tensor, neighbors int) (model.Tensor, error) {
	net, err := b.pool.acquire(ctx)
	if err != nil {
		return model.Tensor{}, err
	}
	defer b.pool.release(net)

	imgBlob, err := tensorToBlob(batch, false)
	if err != nil {
		return model.Tensor{}, err
	}
	defer imgBlob.Close()

	maskBlob, err := tensorToBlob(masks, false)
	if err != nil {
		return model.Tensor{}, err
	}
	defer maskBlob.Close()

	count := scalarBlob(float32(neighbors))
	defer count.Close()

	net.SetInput(imgBlob, frameInput)
	net.SetInput(maskBlob, maskInput)
	net.SetInput(count, neighborsInput)

	out := net.Forward(outputName)
	defer out.Close()
	if out.Empty() {
		return model.Tensor{}, xerrors.Errorf("%s: empty output", b.Name())
	}

	return blobToTensor(out, batch.T, 3, batch.H, batch.W, false)
}

func (b *windowBackend) Close() error {
	return b.pool.Close()
}
