package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"

	"pdf-layout-translator/internal/compose"
	"pdf-layout-translator/internal/geometry"
	"pdf-layout-translator/internal/logger"
	"pdf-layout-translator/internal/overlay"
	"pdf-layout-translator/internal/paragraph"
)

// DefaultDPI is the render resolution used when none is configured.
const DefaultDPI = 72

// PageConfig configures a PagePipeline.
type PageConfig struct {
	DPI     int
	Overlay overlay.Options
	// ParagraphConcurrency bounds concurrent translations within a page.
	ParagraphConcurrency int
}

// PagePipeline translates single pages.
type PagePipeline struct {
	rasterizer Rasterizer
	detector   Detector
	extractor  Extractor
	translator Translator
	store      PageStore

	dpi         int
	overlayOpts overlay.Options
	paraWorkers int
}

// NewPagePipeline wires the collaborators of a page run. Every collaborator
// is required.
func NewPagePipeline(cfg PageConfig, r Rasterizer, d Detector, e Extractor, t Translator, s PageStore) (*PagePipeline, error) {
	switch {
	case r == nil:
		return nil, errors.New("pipeline: rasterizer is required")
	case d == nil:
		return nil, errors.New("pipeline: detector is required")
	case e == nil:
		return nil, errors.New("pipeline: extractor is required")
	case t == nil:
		return nil, errors.New("pipeline: translator is required")
	case s == nil:
		return nil, errors.New("pipeline: page store is required")
	}
	if cfg.DPI <= 0 {
		cfg.DPI = DefaultDPI
	}
	if cfg.ParagraphConcurrency <= 0 {
		cfg.ParagraphConcurrency = 1
	}
	return &PagePipeline{
		rasterizer:  r,
		detector:    d,
		extractor:   e,
		translator:  t,
		store:       s,
		dpi:         cfg.DPI,
		overlayOpts: cfg.Overlay,
		paraWorkers: cfg.ParagraphConcurrency,
	}, nil
}

// Analysis is the layout of one page before translation.
type Analysis struct {
	Page      compose.Page
	Mapper    geometry.Mapper
	Regions   []paragraph.Region
	Fragments []paragraph.Fragment
	Units     []paragraph.Unit
}

// Position returns the page-space position of unit i.
func (a *Analysis) Position(i int) geometry.Rectangle {
	return a.Mapper.ToPage(a.Units[i].Region.Rect)
}

// Analyze renders page, detects its regions and extracts and matches its
// text into paragraph units.
func (p *PagePipeline) Analyze(ctx context.Context, page compose.Page) (*Analysis, error) {
	img, err := p.rasterizer.Render(ctx, page, p.dpi)
	if err != nil {
		return nil, NewPageError(ErrPageFailed, "render failed", page.Number, err)
	}

	b := img.Bounds()
	mapper, err := geometry.NewMapper(
		geometry.Size{Width: float64(b.Dx()), Height: float64(b.Dy())}, page.Size)
	if err != nil {
		return nil, NewPageError(ErrPageFailed, "invalid page geometry", page.Number, err)
	}

	regions, err := p.detector.Detect(ctx, img)
	if err != nil {
		return nil, NewPageError(ErrPageFailed, "layout detection failed", page.Number, err)
	}

	fragments, err := p.extractor.Extract(ctx, page, mapper)
	if err != nil {
		return nil, NewPageError(ErrPageFailed, "text extraction failed", page.Number, err)
	}

	return &Analysis{
		Page:      page,
		Mapper:    mapper,
		Regions:   regions,
		Fragments: fragments,
		Units:     paragraph.Match(regions, fragments),
	}, nil
}

// PageResult is the outcome of one page.
type PageResult struct {
	// Page is the composited page, or the source page when nothing was
	// drawn or the page fell back.
	Page       compose.Page
	Paragraphs int
	Translated int
	Failures   int
	Fallback   bool
	// CoverOps and TextOps record what was drawn, in draw order.
	CoverOps []overlay.Op
	TextOps  []overlay.Op
}

// Process translates one page. Paragraph translation failures are counted
// in the result; any other failure is returned and leaves the page to the
// caller's fallback.
func (p *PagePipeline) Process(ctx context.Context, page compose.Page) (PageResult, error) {
	log := logger.With(logger.Int("page", page.Number))

	a, err := p.Analyze(ctx, page)
	if err != nil {
		return PageResult{}, err
	}

	log.Debug("page analyzed",
		logger.Int("regions", len(a.Regions)),
		logger.Int("fragments", len(a.Fragments)),
		logger.Int("paragraphs", len(a.Units)))

	result := PageResult{Page: page, Paragraphs: len(a.Units)}
	if len(a.Units) == 0 {
		return result, nil
	}

	translations, errs := p.translateUnits(ctx, a.Units)
	if err := ctx.Err(); err != nil {
		return PageResult{}, err
	}

	ov := overlay.NewPageOverlay(page.Size, p.overlayOpts)
	for i, unit := range a.Units {
		pos := a.Position(i)
		if _, err := ov.AddCover(pos); err != nil {
			return PageResult{}, NewPageError(ErrPageFailed, "drawing cover failed", page.Number, err)
		}

		if errs[i] != nil {
			result.Failures++
			log.Warn("paragraph left untranslated",
				logger.Int("paragraph", i),
				logger.String("code", string(ErrTranslationFailed)),
				logger.Err(errs[i]))
			continue
		}

		block, err := ov.AddText(pos, translations[i])
		if err != nil {
			return PageResult{}, NewPageError(ErrPageFailed, "drawing text failed", page.Number, err)
		}
		result.Translated++
		log.Debug("paragraph translated",
			logger.Int("paragraph", i),
			logger.String("source", unit.Text),
			logger.String("translation", translations[i]),
			logger.Float64("fontSize", block.FontSize),
			logger.Bool("shrunk", block.Shrunk))
	}

	cover, text, err := ov.Finalize()
	if err != nil {
		return PageResult{}, NewPageError(ErrCompositeFailed, "finalizing overlay failed", page.Number, err)
	}
	composed, err := p.store.Composite(page, cover, text)
	if err != nil {
		return PageResult{}, NewPageError(ErrCompositeFailed, "compositing failed", page.Number, err)
	}

	result.Page = composed
	result.CoverOps = ov.Cover.Ops()
	result.TextOps = ov.Text.Ops()
	return result, nil
}

// translateUnits translates all units with bounded concurrency. Results are
// indexed like units. Empty translations count as failures.
func (p *PagePipeline) translateUnits(ctx context.Context, units []paragraph.Unit) ([]string, []error) {
	translations := make([]string, len(units))
	errs := make([]error, len(units))

	sem := make(chan struct{}, p.paraWorkers)
	var wg sync.WaitGroup
	for i, unit := range units {
		wg.Add(1)
		go func(idx int, text string) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			if err := ctx.Err(); err != nil {
				errs[idx] = err
				return
			}
			out, err := p.translator.Translate(ctx, text)
			switch {
			case err != nil:
				errs[idx] = NewError(ErrTranslationFailed, "translation failed", err)
			case strings.TrimSpace(out) == "":
				errs[idx] = NewError(ErrTranslationFailed, "translation is empty", nil)
			default:
				translations[idx] = out
			}
		}(i, unit.Text)
	}
	wg.Wait()
	return translations, errs
}
