// Package overlay draws the two layers that replace a page's original text:
// an opaque cover that hides it and a text layer carrying the translation.
package overlay

import (
	"bytes"
	"fmt"
	"sync"

	"codeberg.org/go-pdf/fpdf"

	"pdf-layout-translator/internal/fit"
	"pdf-layout-translator/internal/geometry"
)

// Layer names a surface.
type Layer string

const (
	LayerCover Layer = "cover"
	LayerText  Layer = "text"
)

// OpKind is the kind of a recorded drawing operation.
type OpKind string

const (
	OpFillRect OpKind = "fill_rect"
	OpText     OpKind = "text"
)

// Op records one drawing call on a surface, in page space.
type Op struct {
	Kind     OpKind             `json:"kind"`
	Rect     geometry.Rectangle `json:"rect"`
	FontSize float64            `json:"font_size,omitempty"`
	Lines    []string           `json:"lines,omitempty"`
}

// Surface is a single-page drawing target the size of the base page. The
// underlying PDF page is only created on the first draw, so an untouched
// surface produces no output. Draw calls are serialized.
type Surface struct {
	layer Layer
	size  geometry.Size
	font  Font

	mu  sync.Mutex
	doc *fpdf.Fpdf
	ops []Op
}

// NewSurface creates an empty surface for a page of the given size.
func NewSurface(layer Layer, size geometry.Size, font Font) *Surface {
	return &Surface{layer: layer, size: size, font: font}
}

// Layer returns the surface's layer name.
func (s *Surface) Layer() Layer { return s.layer }

func (s *Surface) begin() error {
	if s.doc != nil {
		return nil
	}
	doc := fpdf.New("P", "pt", "", "")
	doc.SetMargins(0, 0, 0)
	doc.SetAutoPageBreak(false, 0)
	doc.SetCompression(true)
	if !s.font.IsCore() {
		doc.AddUTF8FontFromBytes(s.font.Family, "", s.font.Data)
	}
	doc.AddPageFormat("P", fpdf.SizeType{Wd: s.size.Width, Ht: s.size.Height})
	if err := doc.Error(); err != nil {
		return fmt.Errorf("failed to start %s surface: %w", s.layer, err)
	}
	s.doc = doc
	return nil
}

// top converts a page-space Y (upward) to the surface's downward Y.
func (s *Surface) top(y float64) float64 {
	return s.size.Height - y
}

// FillRect paints r opaque white with no stroke.
func (s *Surface) FillRect(r geometry.Rectangle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.begin(); err != nil {
		return err
	}
	s.doc.SetFillColor(255, 255, 255)
	s.doc.Rect(r.X1, s.top(r.Y2), r.Width(), r.Height(), "F")
	s.ops = append(s.ops, Op{Kind: OpFillRect, Rect: r})
	return s.doc.Error()
}

// DrawBlock draws the lines of b top-aligned inside box, one leading apart.
func (s *Surface) DrawBlock(box geometry.Rectangle, b fit.Block) error {
	if len(b.Lines) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.begin(); err != nil {
		return err
	}
	s.doc.SetFont(s.font.Family, "", b.FontSize)
	s.doc.SetTextColor(0, 0, 0)

	baseline := s.top(box.Y2) + b.FontSize*s.font.ascent()
	for _, line := range b.Lines {
		if line != "" {
			s.doc.Text(box.X1, baseline, s.font.encode(line))
		}
		baseline += b.Leading
	}

	lines := make([]string, len(b.Lines))
	copy(lines, b.Lines)
	s.ops = append(s.ops, Op{Kind: OpText, Rect: box, FontSize: b.FontSize, Lines: lines})
	return s.doc.Error()
}

// Empty reports whether nothing has been drawn.
func (s *Surface) Empty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc == nil
}

// Ops returns a copy of the recorded drawing operations in call order.
func (s *Surface) Ops() []Op {
	s.mu.Lock()
	defer s.mu.Unlock()
	ops := make([]Op, len(s.ops))
	copy(ops, s.ops)
	return ops
}

// Bytes finalizes the surface into a one-page PDF. It returns nil for a
// surface that was never drawn on.
func (s *Surface) Bytes() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.doc == nil {
		return nil, nil
	}
	var buf bytes.Buffer
	if err := s.doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to finalize %s surface: %w", s.layer, err)
	}
	return buf.Bytes(), nil
}
