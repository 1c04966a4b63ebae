// Package geometry holds the rectangle type shared by image space and page
// space, and the mapping between the two.
//
// Image space has its origin at the top-left corner with Y growing downward,
// measured in raster pixels. Page space has its origin at the bottom-left
// corner with Y growing upward, measured in PDF points.
package geometry

import (
	"fmt"
	"math"
)

// Rectangle is an axis-aligned box given by two corners. X2 >= X1 and
// Y2 >= Y1 always hold for a valid rectangle; in page space Y1 is the
// bottom edge.
type Rectangle struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Rect builds a rectangle from an origin and a size.
func Rect(x, y, width, height float64) Rectangle {
	return Rectangle{X1: x, Y1: y, X2: x + width, Y2: y + height}
}

// Width returns X2 - X1.
func (r Rectangle) Width() float64 { return r.X2 - r.X1 }

// Height returns Y2 - Y1.
func (r Rectangle) Height() float64 { return r.Y2 - r.Y1 }

// Area returns the rectangle's area, zero for invalid rectangles.
func (r Rectangle) Area() float64 {
	if !r.IsValid() {
		return 0
	}
	return r.Width() * r.Height()
}

// IsValid reports whether the corners are ordered and finite.
func (r Rectangle) IsValid() bool {
	for _, v := range []float64{r.X1, r.Y1, r.X2, r.Y2} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return r.X2 >= r.X1 && r.Y2 >= r.Y1
}

// Union returns the smallest rectangle enclosing both.
func (r Rectangle) Union(o Rectangle) Rectangle {
	return Rectangle{
		X1: math.Min(r.X1, o.X1),
		Y1: math.Min(r.Y1, o.Y1),
		X2: math.Max(r.X2, o.X2),
		Y2: math.Max(r.Y2, o.Y2),
	}
}

// Intersection returns the overlap of both rectangles, or the zero
// rectangle when they do not overlap.
func (r Rectangle) Intersection(o Rectangle) Rectangle {
	i := Rectangle{
		X1: math.Max(r.X1, o.X1),
		Y1: math.Max(r.Y1, o.Y1),
		X2: math.Min(r.X2, o.X2),
		Y2: math.Min(r.Y2, o.Y2),
	}
	if i.X2 <= i.X1 || i.Y2 <= i.Y1 {
		return Rectangle{}
	}
	return i
}

// IoU returns the intersection-over-union ratio of two rectangles.
func (r Rectangle) IoU(o Rectangle) float64 {
	inter := r.Intersection(o).Area()
	union := r.Area() + o.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// Translate shifts the rectangle by (dx, dy).
func (r Rectangle) Translate(dx, dy float64) Rectangle {
	return Rectangle{X1: r.X1 + dx, Y1: r.Y1 + dy, X2: r.X2 + dx, Y2: r.Y2 + dy}
}

// Scale multiplies every coordinate by (sx, sy).
func (r Rectangle) Scale(sx, sy float64) Rectangle {
	return Rectangle{X1: r.X1 * sx, Y1: r.Y1 * sy, X2: r.X2 * sx, Y2: r.Y2 * sy}
}

func (r Rectangle) String() string {
	return fmt.Sprintf("(%.2f, %.2f, %.2f, %.2f)", r.X1, r.Y1, r.X2, r.Y2)
}

// Size is a width/height pair, used for image pixels and page points alike.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}
