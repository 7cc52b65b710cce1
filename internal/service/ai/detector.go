package ai

import (
	"context"
	"fmt"
	"image"
	"os"

	"trackscan/internal/config"
	"trackscan/internal/dto"
	"trackscan/internal/logger"
	"trackscan/internal/service/ai/postprocess"

	"gocv.io/x/gocv"
)

// ssdInputSize is the input resolution of the MobileNet SSD graphs.
const ssdInputSize = 300

type modelKind int

const (
	modelYOLO modelKind = iota
	modelSSD
)

func (k modelKind) String() string {
	if k == modelSSD {
		return "ssd"
	}
	return "yolo"
}

// DetectorPool holds Workers copies of the detection network. A gocv.Net is
// not safe for concurrent Forward calls, so every Detect checks out one copy.
type DetectorPool struct {
	nets         chan *gocv.Net
	all          []*gocv.Net
	labels       postprocess.Labels
	kind         modelKind
	inputSize    int
	confidence   float32
	nmsThreshold float32
	modelPath    string
	configPath   string
	logger       *logger.Logger
}

// NewDetectorPool loads the networks. When loading fails the pool stays in
// fallback mode: Detect returns an error and the rest of the server keeps working.
func NewDetectorPool(cfg *config.Config, logger *logger.Logger) *DetectorPool {
	pool := &DetectorPool{
		inputSize:    cfg.InputSize,
		confidence:   float32(cfg.ConfidenceThreshold),
		nmsThreshold: float32(cfg.NMSThreshold),
		modelPath:    cfg.ModelPath,
		configPath:   cfg.ModelConfigPath,
		logger:       logger,
	}
	if cfg.ModelConfigPath != "" {
		pool.kind = modelSSD
	}

	pool.labels = loadLabels(cfg.LabelsPath, pool.kind, logger)

	if err := pool.initializeNets(cfg.DetectorWorkers); err != nil {
		logger.Warning("Could not initialize detection network: %v", err)
		return pool
	}

	logger.Info("Detection network initialized (%s, %d workers, %d classes)", pool.kind, len(pool.all), len(pool.labels))
	return pool
}

// loadLabels falls back to COCO names numbered the way the model kind emits them.
func loadLabels(path string, kind modelKind, logger *logger.Logger) postprocess.Labels {
	if path != "" {
		labels, err := postprocess.LoadLabels(path)
		if err == nil {
			return labels
		}
		logger.Warning("Could not load labels, using COCO names: %v", err)
	}
	if kind == modelSSD {
		return postprocess.DefaultSSDLabels()
	}
	return postprocess.DefaultLabels()
}

// initializeNets reads the model once per worker and sets backend/target preferences.
func (p *DetectorPool) initializeNets(workers int) error {
	if _, err := os.Stat(p.modelPath); os.IsNotExist(err) {
		return fmt.Errorf("model file not found: %s", p.modelPath)
	}
	if p.kind == modelSSD {
		if _, err := os.Stat(p.configPath); os.IsNotExist(err) {
			return fmt.Errorf("config file not found: %s", p.configPath)
		}
	}

	nets := make([]*gocv.Net, 0, workers)
	for i := 0; i < workers; i++ {
		net, err := p.readNet()
		if err != nil {
			for _, n := range nets {
				n.Close()
			}
			return err
		}
		nets = append(nets, net)
	}

	p.all = nets
	p.nets = make(chan *gocv.Net, len(nets))
	for _, net := range nets {
		p.nets <- net
	}
	return nil
}

func (p *DetectorPool) readNet() (*gocv.Net, error) {
	var net gocv.Net
	if p.kind == modelSSD {
		net = gocv.ReadNet(p.modelPath, p.configPath)
	} else {
		net = gocv.ReadNetFromONNX(p.modelPath)
	}

	if net.Empty() {
		return nil, fmt.Errorf("failed to load network from %s", p.modelPath)
	}

	errBackend := net.SetPreferableBackend(gocv.NetBackendDefault)
	errTarget := net.SetPreferableTarget(gocv.NetTargetCPU)
	if errBackend != nil || errTarget != nil {
		net.Close()
		return nil, fmt.Errorf("failed to set preferable backend or target")
	}
	return &net, nil
}

// Loaded reports whether the networks are available.
func (p *DetectorPool) Loaded() bool {
	return len(p.all) > 0
}

// Detect runs one network over img and returns detections in img coordinates.
func (p *DetectorPool) Detect(ctx context.Context, img image.Image) ([]dto.DetectionResult, error) {
	if !p.Loaded() {
		return nil, fmt.Errorf("detection network not initialized")
	}

	var net *gocv.Net
	select {
	case net = <-p.nets:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { p.nets <- net }()

	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("failed to convert image: %v", err)
	}
	defer mat.Close()

	if mat.Empty() {
		return nil, fmt.Errorf("converted image is empty")
	}

	if p.kind == modelSSD {
		return p.detectSSD(net, mat)
	}
	return p.detectYOLO(net, mat)
}

// detectYOLO pads the frame to a square so the network sees undistorted
// objects, then maps the boxes back with one scale factor.
func (p *DetectorPool) detectYOLO(net *gocv.Net, mat gocv.Mat) ([]dto.DetectionResult, error) {
	height, width := mat.Rows(), mat.Cols()
	maxDim := max(height, width)

	square := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), maxDim, maxDim, gocv.MatTypeCV8UC3)
	defer square.Close()
	roi := square.Region(image.Rect(0, 0, width, height))
	mat.CopyTo(&roi)
	roi.Close()

	blob := gocv.BlobFromImage(square, 1.0/255.0, image.Pt(p.inputSize, p.inputSize), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	net.SetInput(blob, "")
	output := net.Forward("")
	defer output.Close()

	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("failed to read network output: %v", err)
	}

	scale := float32(maxDim) / float32(p.inputSize)
	candidates, err := postprocess.DecodeYOLO(data, output.Size(), len(p.labels), p.confidence, scale, scale)
	if err != nil {
		return nil, err
	}

	kept := postprocess.SuppressPerClass(candidates, maxDim+1, func(boxes []image.Rectangle, scores []float32) []int {
		return gocv.NMSBoxes(boxes, scores, p.confidence, p.nmsThreshold)
	})
	return postprocess.ToDetections(kept, p.labels, width, height), nil
}

// detectSSD uses the mean/scale parameters of the Caffe/TF MobileNet SSD graphs.
// Those graphs run NMS internally.
func (p *DetectorPool) detectSSD(net *gocv.Net, mat gocv.Mat) ([]dto.DetectionResult, error) {
	blob := gocv.BlobFromImage(mat, 1.0/127.5, image.Pt(ssdInputSize, ssdInputSize), gocv.NewScalar(127.5, 127.5, 127.5, 0), true, false)
	defer blob.Close()

	net.SetInput(blob, "")
	output := net.Forward("")
	defer output.Close()

	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("failed to read network output: %v", err)
	}

	width, height := mat.Cols(), mat.Rows()
	candidates, err := postprocess.DecodeSSD(data, p.confidence, width, height)
	if err != nil {
		return nil, err
	}
	return postprocess.ToDetections(candidates, p.labels, width, height), nil
}

// Close releases every network. It must not race with Detect.
func (p *DetectorPool) Close() error {
	for _, net := range p.all {
		if err := net.Close(); err != nil {
			return err
		}
	}
	p.all = nil
	return nil
}
