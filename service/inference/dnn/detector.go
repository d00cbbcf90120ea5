package dnn

import (
	"context"
	"image"
	"log/slog"
	"os"
	"strings"

	"gocv.io/x/gocv"
	"golang.org/x/xerrors"

	"github.com/khaledhikmat/vs-erase/model"
	"github.com/khaledhikmat/vs-erase/service/config"
	"github.com/khaledhikmat/vs-erase/service/imaging"
	"github.com/khaledhikmat/vs-erase/service/inference"
	"github.com/khaledhikmat/vs-erase/service/lgr"
)

// Output layers of an instance segmentation graph exported the mmdeploy way.
var detectorOutputs = []string{"dets", "labels", "masks"}

type detector struct {
	params config.DetectorParameters
	labels []string
	pool   *netPool
}

// NewDetector loads an instance segmentation model. Its outputs are
// dets [1,N,5] (x1,y1,x2,y2,score in input pixels), labels [1,N] and
// masks [1,N,h,w] of per-instance probabilities over the input image.
func NewDetector(cfgsvc config.IService) (inference.Detector, error) {
	params := cfgsvc.GetDetectorParameters()

	labels, err := loadLabels(params.LabelsPath)
	if err != nil {
		return nil, err
	}

	pool, err := newNetPool(params.ModelPath, params.Target, 1)
	if err != nil {
		return nil, err
	}

	return &detector{
		params: params,
		labels: labels,
		pool:   pool,
	}, nil
}

func loadLabels(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, xerrors.Errorf("reading labels: %w", err)
	}
	return strings.Split(strings.TrimSpace(string(data)), "\n"), nil
}

func (d *detector) Detect(ctx context.Context, frame model.Frame) (model.DetectionSet, error) {
	net, err := d.pool.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer d.pool.release(net)

	mat, err := imaging.FrameToMat(frame)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	inW, inH := d.params.InputWidth, d.params.InputHeight
	// The Mat is BGR, the graph expects normalized RGB. The mean is given in RGB order.
	blob := gocv.BlobFromImage(mat, 1.0/57.6, image.Pt(inW, inH), gocv.NewScalar(123.675, 116.28, 103.53, 0), true, false)
	defer blob.Close()

	net.SetInput(blob, "")
	outputs := net.ForwardLayers(detectorOutputs)
	defer func() {
		for _, o := range outputs {
			o.Close()
		}
	}()
	if len(outputs) != len(detectorOutputs) {
		return nil, xerrors.Errorf("detector returned %d outputs, want %d", len(outputs), len(detectorOutputs))
	}

	return d.parse(frame, outputs[0], outputs[1], outputs[2])
}

func (d *detector) parse(frame model.Frame, dets, labels, masks gocv.Mat) (model.DetectionSet, error) {
	set := model.DetectionSet{}

	dims := dets.Size()
	if len(dims) != 3 || dims[2] != 5 {
		return nil, xerrors.Errorf("unexpected dets dims %v", dims)
	}
	n := dims[1]
	if n == 0 {
		return set, nil
	}

	mdims := masks.Size()
	if len(mdims) != 4 || mdims[1] != n {
		return nil, xerrors.Errorf("unexpected masks dims %v", mdims)
	}
	mh, mw := mdims[2], mdims[3]

	boxes := dets.Reshape(1, n)
	defer boxes.Close()
	boxData, err := boxes.DataPtrFloat32()
	if err != nil {
		return nil, xerrors.Errorf("reading dets: %w", err)
	}

	classes, err := readLabels(labels, n)
	if err != nil {
		return nil, err
	}

	probs := masks.Reshape(1, n)
	defer probs.Close()
	maskData, err := probs.DataPtrFloat32()
	if err != nil {
		return nil, xerrors.Errorf("reading masks: %w", err)
	}

	sx := float32(frame.W) / float32(d.params.InputWidth)
	sy := float32(frame.H) / float32(d.params.InputHeight)

	for i := 0; i < n; i++ {
		row := boxData[i*5 : i*5+5]
		box := model.Box{
			X1: int(row[0] * sx),
			Y1: int(row[1] * sy),
			X2: int(row[2] * sx),
			Y2: int(row[3] * sy),
		}.Clip(frame.H, frame.W)

		det := model.Detection{
			Class: classes[i],
			Label: d.label(classes[i]),
			Score: row[4],
			Box:   box,
			Mask:  make([]bool, max(box.Dx()*box.Dy(), 0)),
		}

		plane := maskData[i*mh*mw : (i+1)*mh*mw]
		for y := box.Y1; y < box.Y2; y++ {
			my := y * mh / frame.H
			for x := box.X1; x < box.X2; x++ {
				mx := x * mw / frame.W
				if plane[my*mw+mx] > d.params.MaskThreshold {
					det.Mask[(y-box.Y1)*box.Dx()+(x-box.X1)] = true
				}
			}
		}

		set.Add(det)
	}

	lgr.Logger.Debug("detections",
		slog.String("frame", frame.Name),
		slog.Int("count", n),
	)
	return set, nil
}

func readLabels(labels gocv.Mat, n int) ([]int, error) {
	flat := labels.Reshape(1, 1)
	defer flat.Close()

	classes := make([]int, n)
	if flat.Type() == gocv.MatTypeCV32S {
		data, err := flat.DataPtrInt32()
		if err != nil {
			return nil, xerrors.Errorf("reading labels: %w", err)
		}
		if len(data) < n {
			return nil, xerrors.Errorf("labels has %d values, want %d", len(data), n)
		}
		for i := range classes {
			classes[i] = int(data[i])
		}
		return classes, nil
	}

	data, err := flat.DataPtrFloat32()
	if err != nil {
		return nil, xerrors.Errorf("reading labels: %w", err)
	}
	if len(data) < n {
		return nil, xerrors.Errorf("labels has %d values, want %d", len(data), n)
	}
	for i := range classes {
		classes[i] = int(data[i])
	}
	return classes, nil
}

func (d *detector) label(class int) string {
	if class >= 0 && class < len(d.labels) {
		return d.labels[class]
	}
	return ""
}

func (d *detector) Close() error {
	return d.pool.Close()
}
