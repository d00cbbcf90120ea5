package pipeline

import (
	"github.com/khaledhikmat/vs-erase/model"
	"github.com/khaledhikmat/vs-erase/service/config"
)

func solidDetection(class int, score float32, box model.Box) model.Detection {
	mask := make([]bool, box.Dx()*box.Dy())
	for i := range mask {
		mask[i] = true
	}
	return model.Detection{Class: class, Score: score, Box: box, Mask: mask}
}

func testMaskerParams() config.MaskerParameters {
	return config.MaskerParameters{
		TargetClass:      0,
		SubTargetClasses: []int{24, 26, 28, 67},
		ScoreThreshold:   0.5,
		AreaThreshold:    0.001,
		OverlapThreshold: 0.3,
	}
}

func testSchedulerParams() config.SchedulerParameters {
	return config.SchedulerParameters{
		NeighborRadius: 5,
		NeighborStride: 5,
		RefStride:      10,
		RefCount:       -1,
		Budget:         17,
		TrimPolicy:     config.TrimNearerEnd,
	}
}

// testClip builds a clip whose frames have a distinct gray level per index
// and whose masks cover the given rectangle.
func testClip(length, h, w int, masked model.Box) model.Clip {
	clip := model.Clip{Name: "test"}
	for i := 0; i < length; i++ {
		frame := model.NewFrame(i, "", h, w)
		for p := range frame.Pix {
			frame.Pix[p] = uint8(10 * (i + 1))
		}
		mask := model.NewMask(h, w)
		for r := masked.Y1; r < masked.Y2; r++ {
			for c := masked.X1; c < masked.X2; c++ {
				mask.Pix[r*w+c] = model.MaskOn
			}
		}
		clip.Frames = append(clip.Frames, frame)
		clip.Masks = append(clip.Masks, mask)
	}
	return clip
}
