package app

import (
	"context"
	"errors"
	"fmt"

	"pdf-layout-translator/internal/geometry"
	"pdf-layout-translator/internal/overlay"
	"pdf-layout-translator/internal/paragraph"
	"pdf-layout-translator/internal/translate"
	"pdf-layout-translator/internal/types"
)

// errNoTranslation backs the translator of inspection runs, which never
// reach the translation step.
var errNoTranslation = errors.New("inspection does not translate")

// InspectedParagraph is one matched paragraph with its placement.
type InspectedParagraph struct {
	Region   paragraph.Region   `json:"region"`
	Text     string             `json:"text"`
	Position geometry.Rectangle `json:"position"`
	Cover    geometry.Rectangle `json:"cover"`
	FontSize float64            `json:"font_size"`
}

// Inspection is the layout analysis of one page.
type Inspection struct {
	Page       int                  `json:"page"`
	PageSize   geometry.Size        `json:"page_size"`
	ImageSize  geometry.Size        `json:"image_size"`
	Regions    []paragraph.Region   `json:"regions"`
	Fragments  int                  `json:"fragments"`
	Paragraphs []InspectedParagraph `json:"paragraphs"`
}

// Inspect renders, detects, extracts and matches one 1-based page of source
// and reports where each paragraph would be drawn, using the source text to
// size the font. Nothing is translated.
func (a *App) Inspect(ctx context.Context, source string, page int, opts Options) (*Inspection, error) {
	if err := checkSource(source); err != nil {
		return nil, err
	}

	noop := translate.Func(func(context.Context, string) (string, error) {
		return "", errNoTranslation
	})
	r, err := a.newRun(opts, noop)
	if err != nil {
		return nil, err
	}
	defer a.removeScratchDir(r.dir)
	defer r.closeFont()

	pages, err := r.store.ReadPages(ctx, source)
	if err != nil {
		return nil, err
	}
	if page < 1 || page > len(pages) {
		return nil, types.NewAppErrorWithDetails(types.ErrInvalidInput, "page out of range",
			fmt.Sprintf("%d of %d", page, len(pages)), nil)
	}

	analysis, err := r.pages.Analyze(ctx, pages[page-1])
	if err != nil {
		return nil, err
	}

	result := &Inspection{
		Page:      page,
		PageSize:  analysis.Page.Size,
		ImageSize: analysis.Mapper.ImageSize(),
		Regions:   analysis.Regions,
		Fragments: len(analysis.Fragments),
	}
	for i, unit := range analysis.Units {
		pos := analysis.Position(i)
		result.Paragraphs = append(result.Paragraphs, InspectedParagraph{
			Region:   unit.Region,
			Text:     unit.Text,
			Position: pos,
			Cover:    overlay.CoverRect(pos),
			FontSize: r.fitter.FontSize(pos, unit.Text),
		})
	}
	return result, nil
}
