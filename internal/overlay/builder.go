package overlay

import (
	"pdf-layout-translator/internal/fit"
	"pdf-layout-translator/internal/geometry"
	"pdf-layout-translator/internal/paragraph"
)

// MinFontSize is the smallest size text is drawn at.
const MinFontSize = 1.0

const (
	coverMargin = 5.0
	coverGrowth = 10.0
)

// CoverRect returns the area painted over a paragraph at pos. Positions
// wider than paragraph.LargeRegionWidth are shifted 5pt left and grown by
// 10pt in width and height; others are covered as-is.
func CoverRect(pos geometry.Rectangle) geometry.Rectangle {
	if pos.Width() <= paragraph.LargeRegionWidth {
		return pos
	}
	return geometry.Rect(pos.X1-coverMargin, pos.Y1, pos.Width()+coverGrowth, pos.Height()+coverGrowth)
}

// Options configures a PageOverlay.
type Options struct {
	Font     Font
	Fitter   fit.Fitter
	Measurer fit.Measurer
}

// PageOverlay holds the cover and text surfaces of one page.
type PageOverlay struct {
	Cover *Surface
	Text  *Surface

	fitter   fit.Fitter
	measurer fit.Measurer
}

// NewPageOverlay creates empty surfaces for a page of the given size. A nil
// fitter or measurer selects fit.AreaFitter or fit.EstimateMeasurer.
func NewPageOverlay(page geometry.Size, opts Options) *PageOverlay {
	if opts.Fitter == nil {
		opts.Fitter = fit.AreaFitter{}
	}
	if opts.Measurer == nil {
		opts.Measurer = fit.EstimateMeasurer{}
	}
	return &PageOverlay{
		Cover:    NewSurface(LayerCover, page, opts.Font),
		Text:     NewSurface(LayerText, page, opts.Font),
		fitter:   opts.Fitter,
		measurer: opts.Measurer,
	}
}

// AddCover hides the original content at pos and returns the painted area.
func (o *PageOverlay) AddCover(pos geometry.Rectangle) (geometry.Rectangle, error) {
	r := CoverRect(pos)
	return r, o.Cover.FillRect(r)
}

// AddText fits text into pos and draws it on the text surface.
func (o *PageOverlay) AddText(pos geometry.Rectangle, text string) (fit.Block, error) {
	size := o.fitter.FontSize(pos, text)
	if size < MinFontSize {
		size = MinFontSize
	}
	block := fit.Reflow(text, size, pos, o.measurer)
	return block, o.Text.DrawBlock(pos, block)
}

// Finalize renders both surfaces. Either result is nil when its surface
// was never drawn on.
func (o *PageOverlay) Finalize() (cover, text []byte, err error) {
	if cover, err = o.Cover.Bytes(); err != nil {
		return nil, nil, err
	}
	if text, err = o.Text.Bytes(); err != nil {
		return nil, nil, err
	}
	return cover, text, nil
}
