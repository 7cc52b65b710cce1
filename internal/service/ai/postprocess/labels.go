package postprocess

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// cocoLabels are the 80 COCO class names in Ultralytics order.
var cocoLabels = []string{
	"person", "bicycle", "car", "motorcycle", "airplane", "bus", "train", "truck", "boat",
	"traffic light", "fire hydrant", "stop sign", "parking meter", "bench", "bird", "cat",
	"dog", "horse", "sheep", "cow", "elephant", "bear", "zebra", "giraffe", "backpack",
	"umbrella", "handbag", "tie", "suitcase", "frisbee", "skis", "snowboard", "sports ball",
	"kite", "baseball bat", "baseball glove", "skateboard", "surfboard", "tennis racket",
	"bottle", "wine glass", "cup", "fork", "knife", "spoon", "bowl", "banana", "apple",
	"sandwich", "orange", "broccoli", "carrot", "hot dog", "pizza", "donut", "cake", "chair",
	"couch", "potted plant", "bed", "dining table", "toilet", "tv", "laptop", "mouse",
	"remote", "keyboard", "cell phone", "microwave", "oven", "toaster", "sink",
	"refrigerator", "book", "clock", "vase", "scissors", "teddy bear", "hair drier",
	"toothbrush",
}

// cocoSSDGaps are the ids the 91-slot COCO numbering of the TensorFlow and
// Caffe SSD graphs leaves unused. Id 0 is the background class.
var cocoSSDGaps = map[int]bool{12: true, 26: true, 29: true, 30: true, 45: true, 66: true, 68: true, 69: true, 71: true, 83: true}

// Labels maps class ids to names.
type Labels []string

// DefaultLabels returns the COCO label set.
func DefaultLabels() Labels {
	return append(Labels(nil), cocoLabels...)
}

// DefaultSSDLabels returns the COCO label set indexed by the 91-slot ids SSD
// graphs emit, so 13 is "stop sign" and 18 is "dog".
func DefaultSSDLabels() Labels {
	labels := make(Labels, 91)
	labels[0] = "background"
	next := 0
	for id := 1; id < len(labels) && next < len(cocoLabels); id++ {
		if cocoSSDGaps[id] {
			continue
		}
		labels[id] = cocoLabels[next]
		next++
	}
	return labels
}

// Name returns the label of classID, or "class_<id>" when it is unknown.
func (l Labels) Name(classID int) string {
	if classID >= 0 && classID < len(l) && l[classID] != "" {
		return l[classID]
	}
	return fmt.Sprintf("class_%d", classID)
}

// LoadLabels reads class names from a plain text file (one per line) or from
// the `names:` key of a YOLO dataset YAML file. An empty path yields the COCO set.
func LoadLabels(path string) (Labels, error) {
	if path == "" {
		return DefaultLabels(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read labels file %s: %w", path, err)
	}

	var labels Labels
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		labels, err = parseYAMLLabels(data)
	default:
		labels = parseTextLabels(data)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse labels file %s: %w", path, err)
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("labels file %s has no class names", path)
	}
	return labels, nil
}

func parseTextLabels(data []byte) Labels {
	var labels Labels
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			labels = append(labels, line)
		}
	}
	return labels
}

// parseYAMLLabels accepts both `names: [a, b]` and `names: {0: a, 1: b}`.
func parseYAMLLabels(data []byte) (Labels, error) {
	var doc struct {
		Names yaml.Node `yaml:"names"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	switch doc.Names.Kind {
	case yaml.SequenceNode:
		var names []string
		if err := doc.Names.Decode(&names); err != nil {
			return nil, err
		}
		return names, nil
	case yaml.MappingNode:
		var byID map[int]string
		if err := doc.Names.Decode(&byID); err != nil {
			return nil, err
		}
		ids := make([]int, 0, len(byID))
		for id := range byID {
			if id < 0 {
				return nil, fmt.Errorf("negative class id %d", id)
			}
			ids = append(ids, id)
		}
		sort.Ints(ids)
		if len(ids) == 0 {
			return nil, nil
		}
		labels := make(Labels, ids[len(ids)-1]+1)
		for id, name := range byID {
			labels[id] = name
		}
		return labels, nil
	case 0:
		return nil, fmt.Errorf("missing names key")
	default:
		return nil, fmt.Errorf("names must be a list or a mapping")
	}
}
