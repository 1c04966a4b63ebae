package layout

import (
	"context"
	"image"
	"image/color"
	"sort"

	"pdf-layout-translator/internal/geometry"
	"pdf-layout-translator/internal/logger"
	"pdf-layout-translator/internal/paragraph"
)

// ProjectionDetector finds text blocks from ink projection profiles. It
// needs no model and labels every block as text, which makes it a usable
// fallback for simple single- and multi-column pages.
type ProjectionDetector struct {
	// InkThreshold is the luminance below which a pixel counts as ink.
	InkThreshold uint8
	// LineGapFactor scales the median line height to the largest vertical
	// gap still joining two lines into one block.
	LineGapFactor float64
	// ColumnGapFactor scales the median line height to the smallest
	// horizontal gap that splits a block into columns.
	ColumnGapFactor float64
	// Padding grows every block on each side, in pixels.
	Padding float64
	// MinSize drops blocks narrower or shorter than this, in pixels.
	MinSize float64
}

// NewProjectionDetector returns a detector with defaults tuned for
// 72-150 dpi renders.
func NewProjectionDetector() *ProjectionDetector {
	return &ProjectionDetector{
		InkThreshold:    200,
		LineGapFactor:   0.8,
		ColumnGapFactor: 2,
		Padding:         2,
		MinSize:         4,
	}
}

type span struct{ start, end int }

func (s span) len() int { return s.end - s.start }

// Detect implements Detector.
func (p *ProjectionDetector) Detect(ctx context.Context, img image.Image) ([]paragraph.Region, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	ink := make([]bool, w*h)
	rowInk := make([]int, h)

	for y := 0; y < h; y++ {
		if y%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		for x := 0; x < w; x++ {
			g := color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray)
			if g.Y < p.InkThreshold {
				ink[y*w+x] = true
				rowInk[y]++
			}
		}
	}

	lines := runs(rowInk, 1)
	if len(lines) == 0 {
		return nil, nil
	}
	lineHeight := medianLength(lines)
	maxGap := int(float64(lineHeight)*p.LineGapFactor + 0.5)
	colGap := int(float64(lineHeight)*p.ColumnGapFactor + 0.5)
	if colGap < 1 {
		colGap = 1
	}

	bounds := geometry.Rectangle{X2: float64(w), Y2: float64(h)}
	var regions []paragraph.Region
	for _, block := range mergeSpans(lines, maxGap) {
		for _, rect := range p.splitColumns(ink, w, block, colGap) {
			rect = geometry.Rectangle{
				X1: rect.X1 - p.Padding,
				Y1: rect.Y1 - p.Padding,
				X2: rect.X2 + p.Padding,
				Y2: rect.Y2 + p.Padding,
			}.Intersection(bounds)
			if rect.Width() < p.MinSize || rect.Height() < p.MinSize {
				continue
			}
			regions = append(regions, paragraph.Region{
				Rect:       rect,
				Kind:       paragraph.KindText,
				Confidence: 0.5,
			})
		}
	}
	sortReadingOrder(regions)

	logger.Debug("projection layout detected",
		logger.Int("lines", len(lines)),
		logger.Int("regions", len(regions)))
	return regions, nil
}

// splitColumns cuts a horizontal band at wide vertical gaps and tightens
// each piece to its own ink rows.
func (p *ProjectionDetector) splitColumns(ink []bool, w int, band span, minGap int) []geometry.Rectangle {
	colInk := make([]int, w)
	for y := band.start; y < band.end; y++ {
		for x := 0; x < w; x++ {
			if ink[y*w+x] {
				colInk[x]++
			}
		}
	}

	var rects []geometry.Rectangle
	for _, col := range mergeSpans(runs(colInk, 1), minGap-1) {
		top, bottom := -1, -1
		for y := band.start; y < band.end; y++ {
			for x := col.start; x < col.end; x++ {
				if ink[y*w+x] {
					if top < 0 {
						top = y
					}
					bottom = y + 1
					break
				}
			}
		}
		if top < 0 {
			continue
		}
		rects = append(rects, geometry.Rectangle{
			X1: float64(col.start),
			Y1: float64(top),
			X2: float64(col.end),
			Y2: float64(bottom),
		})
	}
	return rects
}

// runs returns maximal index ranges whose values are at least threshold.
func runs(profile []int, threshold int) []span {
	var out []span
	start := -1
	for i, v := range profile {
		switch {
		case v >= threshold && start < 0:
			start = i
		case v < threshold && start >= 0:
			out = append(out, span{start, i})
			start = -1
		}
	}
	if start >= 0 {
		out = append(out, span{start, len(profile)})
	}
	return out
}

// mergeSpans joins neighbouring spans separated by at most maxGap.
func mergeSpans(spans []span, maxGap int) []span {
	if len(spans) == 0 {
		return nil
	}
	merged := []span{spans[0]}
	for _, s := range spans[1:] {
		last := &merged[len(merged)-1]
		if s.start-last.end <= maxGap {
			last.end = s.end
			continue
		}
		merged = append(merged, s)
	}
	return merged
}

func medianLength(spans []span) int {
	lengths := make([]int, len(spans))
	for i, s := range spans {
		lengths[i] = s.len()
	}
	sort.Ints(lengths)
	return lengths[len(lengths)/2]
}
