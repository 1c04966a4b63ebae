package layout

import (
	"math"
	"sort"

	"pdf-layout-translator/internal/geometry"
	"pdf-layout-translator/internal/logger"
	"pdf-layout-translator/internal/paragraph"
)

// Detection is one raw model detection in model-input pixels.
type Detection struct {
	Box        geometry.Rectangle
	ClassID    int
	Confidence float64
}

// docStructBenchClasses maps DocLayout-YOLO DocStructBench class ids.
var docStructBenchClasses = []paragraph.Kind{
	paragraph.KindTitle,    // 0 title
	paragraph.KindText,     // 1 plain text
	paragraph.KindAbandon,  // 2 abandon (headers, footers, page numbers)
	paragraph.KindFigure,   // 3 figure
	paragraph.KindCaption,  // 4 figure_caption
	paragraph.KindTable,    // 5 table
	paragraph.KindCaption,  // 6 table_caption
	paragraph.KindFootnote, // 7 table_footnote
	paragraph.KindFormula,  // 8 isolate_formula
	paragraph.KindCaption,  // 9 formula_caption
}

// PostProcessor turns raw model output into page regions.
type PostProcessor struct {
	confThreshold float64
	nmsThreshold  float64
	classes       []paragraph.Kind
}

// NewPostProcessor creates a postprocessor with the given thresholds.
func NewPostProcessor(confThreshold, nmsThreshold float64) *PostProcessor {
	return &PostProcessor{
		confThreshold: confThreshold,
		nmsThreshold:  nmsThreshold,
		classes:       docStructBenchClasses,
	}
}

// Process decodes rows of (x1, y1, x2, y2, score, class), filters them,
// suppresses overlaps per class and maps the survivors into image space,
// clipped to the image bounds.
func (p *PostProcessor) Process(output []float32, lb Letterbox, imgW, imgH int) []paragraph.Region {
	detections := ParseDetections(output)
	filtered := p.filterByConfidence(detections)
	kept := p.applyNMSPerClass(filtered)

	bounds := geometry.Rectangle{X2: float64(imgW), Y2: float64(imgH)}
	regions := make([]paragraph.Region, 0, len(kept))
	for _, det := range kept {
		x1, y1 := lb.ToImage(det.Box.X1, det.Box.Y1)
		x2, y2 := lb.ToImage(det.Box.X2, det.Box.Y2)
		rect := geometry.Rectangle{X1: x1, Y1: y1, X2: x2, Y2: y2}.Intersection(bounds)
		if rect.Area() == 0 {
			continue
		}
		regions = append(regions, paragraph.Region{
			Rect:       rect,
			Kind:       p.kind(det.ClassID),
			Confidence: det.Confidence,
		})
	}
	sortReadingOrder(regions)

	logger.Debug("detections postprocessed",
		logger.Int("raw", len(detections)),
		logger.Int("confident", len(filtered)),
		logger.Int("regions", len(regions)))
	return regions
}

func (p *PostProcessor) kind(classID int) paragraph.Kind {
	if classID >= 0 && classID < len(p.classes) {
		return p.classes[classID]
	}
	return paragraph.KindAbandon
}

// ParseDetections reads consecutive six-value rows. A trailing partial row
// is ignored.
func ParseDetections(output []float32) []Detection {
	n := len(output) / 6
	detections := make([]Detection, 0, n)
	for i := 0; i < n; i++ {
		row := output[i*6 : i*6+6]
		detections = append(detections, Detection{
			Box: geometry.Rectangle{
				X1: float64(row[0]),
				Y1: float64(row[1]),
				X2: float64(row[2]),
				Y2: float64(row[3]),
			},
			Confidence: float64(row[4]),
			ClassID:    int(math.Round(float64(row[5]))),
		})
	}
	return detections
}

func (p *PostProcessor) filterByConfidence(detections []Detection) []Detection {
	var filtered []Detection
	for _, det := range detections {
		if det.Confidence >= p.confThreshold && det.Box.IsValid() {
			filtered = append(filtered, det)
		}
	}
	return filtered
}

// applyNMSPerClass runs NMS independently for each class, visiting classes
// in ascending id order.
func (p *PostProcessor) applyNMSPerClass(detections []Detection) []Detection {
	byClass := make(map[int][]Detection)
	var classIDs []int
	for _, det := range detections {
		if _, ok := byClass[det.ClassID]; !ok {
			classIDs = append(classIDs, det.ClassID)
		}
		byClass[det.ClassID] = append(byClass[det.ClassID], det)
	}
	sort.Ints(classIDs)

	var results []Detection
	for _, id := range classIDs {
		results = append(results, p.applyNMS(byClass[id])...)
	}
	return results
}

func (p *PostProcessor) applyNMS(detections []Detection) []Detection {
	if len(detections) == 0 {
		return nil
	}

	sort.SliceStable(detections, func(i, j int) bool {
		return detections[i].Confidence > detections[j].Confidence
	})

	var keep []Detection
	for len(detections) > 0 {
		best := detections[0]
		keep = append(keep, best)

		var remaining []Detection
		for _, det := range detections[1:] {
			if best.Box.IoU(det.Box) < p.nmsThreshold {
				remaining = append(remaining, det)
			}
		}
		detections = remaining
	}
	return keep
}
