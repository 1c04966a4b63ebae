// Package pipeline drives translation of a document page by page: render,
// detect paragraphs, extract their text, translate, draw the overlays and
// composite them onto the original page.
package pipeline

import (
	"context"
	"image"

	"pdf-layout-translator/internal/compose"
	"pdf-layout-translator/internal/geometry"
	"pdf-layout-translator/internal/paragraph"
)

// Rasterizer renders a page to an image at the given resolution.
type Rasterizer interface {
	Render(ctx context.Context, page compose.Page, dpi int) (image.Image, error)
}

// Detector finds layout regions in image space.
type Detector interface {
	Detect(ctx context.Context, img image.Image) ([]paragraph.Region, error)
}

// Extractor returns a page's text fragments in image space.
type Extractor interface {
	Extract(ctx context.Context, page compose.Page, m geometry.Mapper) ([]paragraph.Fragment, error)
}

// Translator translates one paragraph.
type Translator interface {
	Translate(ctx context.Context, text string) (string, error)
}

// PageStore splits source documents into pages and stamps layers onto them.
type PageStore interface {
	ReadPages(ctx context.Context, source string) ([]compose.Page, error)
	Composite(base compose.Page, layers ...[]byte) (compose.Page, error)
}
