package infer

import (
	"context"
	"fmt"
	"image"
	"math"

	"gocv.io/x/gocv"

	"github.com/rtorresf4/vision-iot-pi5/internal/domain"
	"github.com/rtorresf4/vision-iot-pi5/internal/ports"
)

// ONNXConfig points at an exported detection model.
type ONNXConfig struct {
	ModelPath     string
	InputSize     int
	ConfThreshold float64
	Classes       []string
}

// ONNX runs the detection model through gocv's DNN module on the CPU. One
// call at a time; the coordinator guarantees single-flight.
type ONNX struct {
	cfg ONNXConfig
	net gocv.Net
}

func NewONNX(cfg ONNXConfig) (*ONNX, error) {
	if cfg.InputSize <= 0 {
		cfg.InputSize = 640
	}
	if cfg.ConfThreshold <= 0 {
		cfg.ConfThreshold = 0.5
	}

	net := gocv.ReadNetFromONNX(cfg.ModelPath)
	if net.Empty() {
		return nil, fmt.Errorf("load model %q: empty network", cfg.ModelPath)
	}
	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		return nil, fmt.Errorf("set dnn backend: %w", err)
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		return nil, fmt.Errorf("set dnn target: %w", err)
	}

	return &ONNX{cfg: cfg, net: net}, nil
}

func (o *ONNX) Infer(ctx context.Context, f *domain.Frame) ([]domain.Detection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mat, err := gocv.NewMatFromBytes(f.Height, f.Width, gocv.MatTypeCV8UC3, f.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: decode frame %d: %v", domain.ErrInference, f.Seq, err)
	}
	defer mat.Close()

	padded, scale := letterbox(mat, o.cfg.InputSize)
	defer padded.Close()

	blob := gocv.BlobFromImage(padded, 1.0/255.0, image.Pt(o.cfg.InputSize, o.cfg.InputSize),
		gocv.NewScalar(0, 0, 0, 0), false, false)
	defer blob.Close()

	o.net.SetInput(blob, "")
	out := o.net.Forward("")
	defer out.Close()

	dets, err := o.parse(out, scale)
	if err != nil {
		return nil, fmt.Errorf("%w: frame %d: %v", domain.ErrInference, f.Seq, err)
	}
	return dets, nil
}

func (o *ONNX) Close() error {
	return o.net.Close()
}

// letterbox scales the image to fit the square model input, padding the
// remainder, and returns the applied scale factor.
func letterbox(src gocv.Mat, size int) (gocv.Mat, float64) {
	h, w := src.Rows(), src.Cols()
	scale := float64(size) / math.Max(float64(h), float64(w))
	nw, nh := int(float64(w)*scale), int(float64(h)*scale)

	resized := gocv.NewMat()
	gocv.Resize(src, &resized, image.Pt(nw, nh), 0, 0, gocv.InterpolationLinear)
	defer resized.Close()

	padded := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(114, 114, 114, 0), size, size, gocv.MatTypeCV8UC3)
	roi := padded.Region(image.Rect(0, 0, nw, nh))
	resized.CopyTo(&roi)
	roi.Close()

	return padded, scale
}

// parse walks the flattened model output. Rows are [x1 y1 x2 y2 conf class],
// coordinates in model-input space.
func (o *ONNX) parse(out gocv.Mat, scale float64) ([]domain.Detection, error) {
	sz := out.Size()
	if len(sz) < 2 {
		return nil, fmt.Errorf("unexpected output dims %v", sz)
	}
	rows, cols := sz[len(sz)-2], sz[len(sz)-1]
	if cols < 5 {
		return nil, fmt.Errorf("unexpected output row width %d", cols)
	}

	flat := out.Reshape(1, rows)
	defer flat.Close()

	var dets []domain.Detection
	for r := 0; r < rows; r++ {
		conf := float64(flat.GetFloatAt(r, 4))
		if conf < o.cfg.ConfThreshold {
			continue
		}
		x1 := float64(flat.GetFloatAt(r, 0)) / scale
		y1 := float64(flat.GetFloatAt(r, 1)) / scale
		x2 := float64(flat.GetFloatAt(r, 2)) / scale
		y2 := float64(flat.GetFloatAt(r, 3)) / scale

		label := domain.LabelDefective
		if cols > 5 {
			if cls := int(flat.GetFloatAt(r, 5)); cls >= 0 && cls < len(o.cfg.Classes) {
				label = domain.LabelForClass(o.cfg.Classes[cls])
			}
		}

		dets = append(dets, domain.Detection{
			Label:      label,
			Confidence: conf,
			Box: domain.BBox{
				X: x1,
				Y: y1,
				W: x2 - x1,
				H: y2 - y1,
			},
		})
	}
	return dets, nil
}

var _ ports.Inference = (*ONNX)(nil)
