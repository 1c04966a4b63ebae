// Package paragraph reconciles detected layout regions with extracted text
// fragments into translatable paragraph units.
package paragraph

import (
	"strings"

	"pdf-layout-translator/internal/geometry"
)

// Kind classifies a detected layout region.
type Kind string

const (
	KindText     Kind = "text"
	KindTitle    Kind = "title"
	KindList     Kind = "list"
	KindTable    Kind = "table"
	KindFigure   Kind = "figure"
	KindCaption  Kind = "caption"
	KindFormula  Kind = "formula"
	KindAbandon  Kind = "abandon"
	KindFootnote Kind = "footnote"
)

// Region is a detected area of the page image.
type Region struct {
	Rect       geometry.Rectangle `json:"rect"`
	Kind       Kind               `json:"kind"`
	Confidence float64            `json:"confidence"`
}

// Fragment is a piece of extracted text and its box in image space.
type Fragment struct {
	Rect geometry.Rectangle `json:"rect"`
	Text string             `json:"text"`
}

// Unit is a text region together with the fragments it contains.
type Unit struct {
	Region    Region     `json:"region"`
	Fragments []Fragment `json:"fragments"`
	// Text is the fragments' text joined with single spaces.
	Text string `json:"text"`
}

// LargeRegionWidth is the width above which a region gets the wider
// containment tolerance and an expanded cover.
const LargeRegionWidth = 300.0

const (
	smallTolerance = 3.0
	largeTolerance = 10.0
)

// Tolerance returns the containment slack for outer: 10 when it is wider
// than LargeRegionWidth, 3 otherwise.
func Tolerance(outer geometry.Rectangle) float64 {
	if outer.Width() > LargeRegionWidth {
		return largeTolerance
	}
	return smallTolerance
}

// Contains reports whether inner lies within outer widened by tol.
// Each edge is checked one-sided only: inner may not start before
// outer-tol nor end after outer+tol.
func Contains(outer, inner geometry.Rectangle, tol float64) bool {
	return inner.X1 >= outer.X1-tol &&
		inner.Y1 >= outer.Y1-tol &&
		inner.X2 <= outer.X2+tol &&
		inner.Y2 <= outer.Y2+tol
}

// Match groups fragments into text regions. Units come out in region order
// and keep their fragments in input order. Regions that are not KindText or
// that contain no fragment produce no unit. A fragment may belong to more
// than one unit when regions overlap.
func Match(regions []Region, fragments []Fragment) []Unit {
	var units []Unit
	for _, region := range regions {
		if region.Kind != KindText {
			continue
		}

		tol := Tolerance(region.Rect)
		var matched []Fragment
		for _, f := range fragments {
			if Contains(region.Rect, f.Rect, tol) {
				matched = append(matched, f)
			}
		}
		if len(matched) == 0 {
			continue
		}

		texts := make([]string, len(matched))
		for i, f := range matched {
			texts[i] = f.Text
		}
		units = append(units, Unit{
			Region:    region,
			Fragments: matched,
			Text:      strings.Join(texts, " "),
		})
	}
	return units
}
