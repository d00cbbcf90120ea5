package pipeline

import "github.com/khaledhikmat/vs-erase/model"

// FramesToTensor stacks frames into a [T,3,H,W] batch scaled to [-1,1].
// Pixels under the matching mask are zeroed and then set to fill.
func FramesToTensor(frames []model.Frame, masks []model.Mask, fill float32) model.Tensor {
	h, w := frames[0].H, frames[0].W
	t := model.NewTensor(len(frames), 3, h, w)
	for i, frame := range frames {
		mask := masks[i]
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				on := mask.On(y, x)
				for c := 0; c < 3; c++ {
					v := float32(frame.At(y, x, c))/255*2 - 1
					if on {
						v = fill
					}
					t.Set(i, c, y, x, v)
				}
			}
		}
	}
	return t
}

// MasksToTensor stacks masks into a [T,1,H,W] batch of 0 and 1.
func MasksToTensor(masks []model.Mask) model.Tensor {
	h, w := masks[0].H, masks[0].W
	t := model.NewTensor(len(masks), 1, h, w)
	for i, mask := range masks {
		base := t.Offset(i, 0, 0, 0)
		for p, v := range mask.Pix {
			if v != 0 {
				t.Data[base+p] = 1
			}
		}
	}
	return t
}

// toDisplay maps a model output value from [-1,1] to [0,255], clamped and truncated.
func toDisplay(v float32) uint8 {
	return clampByte((v + 1) / 2 * 255)
}

// compose writes prediction i of pred into the masked pixels of frame and
// keeps the original elsewhere. The result is an HWC buffer.
func compose(pred model.Tensor, i int, frame model.Frame, mask model.Mask) []float32 {
	out := make([]float32, frame.H*frame.W*3)
	for y := 0; y < frame.H; y++ {
		for x := 0; x < frame.W; x++ {
			on := mask.On(y, x)
			for c := 0; c < 3; c++ {
				p := (y*frame.W+x)*3 + c
				if on {
					out[p] = float32(toDisplay(pred.At(i, c, y, x)))
				} else {
					out[p] = float32(frame.Pix[p])
				}
			}
		}
	}
	return out
}
