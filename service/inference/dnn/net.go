package dnn

import (
	"context"
	"log/slog"
	"os"

	"gocv.io/x/gocv"
	"golang.org/x/xerrors"

	"github.com/khaledhikmat/vs-erase/service/lgr"
)

// netPool hands out one gocv.Net per caller. A Net is not thread-safe, so
// concurrent windows each need their own.
type netPool struct {
	path string
	nets chan *gocv.Net
	all  []*gocv.Net
}

func newNetPool(path, target string, size int) (*netPool, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, xerrors.Errorf("model %s does not exist", path)
	}
	if size <= 0 {
		size = 1
	}

	lgr.Logger.Info("loading model",
		slog.String("model", path),
		slog.String("target", target),
		slog.Int("instances", size),
		slog.String("openCV", gocv.Version()),
	)

	pool := &netPool{
		path: path,
		nets: make(chan *gocv.Net, size),
	}

	for i := 0; i < size; i++ {
		net := gocv.ReadNet(path, "")
		if net.Empty() {
			pool.Close()
			return nil, xerrors.Errorf("instance %d: error reading model %s", i, path)
		}

		if err := configure(&net, target); err != nil {
			net.Close()
			pool.Close()
			return nil, err
		}

		pool.all = append(pool.all, &net)
		pool.nets <- &net
	}

	return pool, nil
}

func configure(net *gocv.Net, target string) error {
	backend, tgt := gocv.NetBackendDefault, gocv.NetTargetCPU
	if target == "cuda" {
		backend, tgt = gocv.NetBackendCUDA, gocv.NetTargetCUDA
	}

	if err := net.SetPreferableBackend(backend); err != nil {
		return xerrors.Errorf("error setting backend: %w", err)
	}
	if err := net.SetPreferableTarget(tgt); err != nil {
		return xerrors.Errorf("error setting target: %w", err)
	}
	return nil
}

func (p *netPool) acquire(ctx context.Context) (*gocv.Net, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case net := <-p.nets:
		return net, nil
	}
}

func (p *netPool) release(net *gocv.Net) {
	p.nets <- net
}

func (p *netPool) Close() error {
	for _, net := range p.all {
		net.Close()
	}
	p.all = nil
	return nil
}
