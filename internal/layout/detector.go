// Package layout finds paragraph regions on rendered page images, either
// with the DocLayout-YOLO model through onnxruntime or with a projection
// profile heuristic.
package layout

import (
	"context"
	"image"
	"sort"

	"pdf-layout-translator/internal/paragraph"
)

// Detector finds layout regions on a page image. Rectangles are in the
// image's pixel space.
type Detector interface {
	Detect(ctx context.Context, img image.Image) ([]paragraph.Region, error)
}

// sortReadingOrder orders regions top to bottom, then left to right.
func sortReadingOrder(regions []paragraph.Region) {
	sort.SliceStable(regions, func(i, j int) bool {
		a, b := regions[i].Rect, regions[j].Rect
		if a.Y1 != b.Y1 {
			return a.Y1 < b.Y1
		}
		return a.X1 < b.X1
	})
}
