package pipeline

import (
	"context"

	"golang.org/x/xerrors"

	"github.com/khaledhikmat/vs-erase/model"
	"github.com/khaledhikmat/vs-erase/service/config"
	"github.com/khaledhikmat/vs-erase/service/inference"
)

// Compositor runs one window through a temporal model and folds the
// predictions for its neighbor frames into an Accumulator.
type Compositor struct {
	blockH int
	blockW int
}

func NewCompositor(params config.CompositorParameters) *Compositor {
	return &Compositor{
		blockH: params.BlockHeight,
		blockW: params.BlockWidth,
	}
}

// Prepare gathers the window's frames (neighbors first), blanks the masked
// pixels and mirror pads the batch and its masks to the block grid.
func (c *Compositor) Prepare(w model.Window, clip model.Clip) (model.Tensor, model.Tensor) {
	ids := w.IDs()
	frames := make([]model.Frame, len(ids))
	masks := make([]model.Mask, len(ids))
	for i, id := range ids {
		frames[i] = clip.Frames[id]
		masks[i] = clip.Masks[id]
	}

	h, wd := frames[0].H, frames[0].W
	ph, pw := PaddedSize(h, wd, c.blockH, c.blockW)

	batch := MirrorPad(FramesToTensor(frames, masks, 0), ph, pw)
	maskBatch := MirrorPad(MasksToTensor(masks), ph, pw)
	return batch, maskBatch
}

// Predict runs the model on one window and returns its predictions cropped
// back to the clip size, still in [-1,1].
func (c *Compositor) Predict(ctx context.Context, w model.Window, clip model.Clip, backend inference.WindowBackend) (model.Tensor, error) {
	batch, masks := c.Prepare(w, clip)

	pred, err := backend.InpaintWindow(ctx, batch, masks, len(w.NeighborIDs))
	if err != nil {
		return model.Tensor{}, xerrors.Errorf("window at frame %d: %w", w.Anchor, err)
	}
	if err := pred.Expect(batch.T, 3, batch.H, batch.W); err != nil {
		return model.Tensor{}, xerrors.Errorf("window at frame %d: %w", w.Anchor, err)
	}

	h, wd := clip.Frames[0].H, clip.Frames[0].W
	return Crop(pred, h, wd), nil
}

// Apply composes the prediction of every neighbor frame with its original
// and blends it into acc. Reference frames are never written.
func (c *Compositor) Apply(w model.Window, clip model.Clip, pred model.Tensor, acc *Accumulator) error {
	for i, idx := range w.NeighborIDs {
		result := compose(pred, i, clip.Frames[idx], clip.Masks[idx])
		if err := acc.Blend(idx, result); err != nil {
			return err
		}
	}
	return nil
}

// Composite is Predict followed by Apply.
func (c *Compositor) Composite(ctx context.Context, w model.Window, clip model.Clip, backend inference.WindowBackend, acc *Accumulator) error {
	pred, err := c.Predict(ctx, w, clip, backend)
	if err != nil {
		return err
	}
	return c.Apply(w, clip, pred, acc)
}
