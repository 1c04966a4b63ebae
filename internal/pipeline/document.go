package pipeline

import (
	"context"
	"errors"
	"sync"

	"pdf-layout-translator/internal/compose"
	"pdf-layout-translator/internal/logger"
)

// DocumentOptions configures a DocumentPipeline.
type DocumentOptions struct {
	// Spread places each untouched source page before its translation.
	Spread bool
	// Concurrency bounds how many pages are processed at once.
	Concurrency int
	// Progress, when set, is called after every finished page with the
	// number of finished pages and the total. Calls are serialized.
	Progress func(done, total int)
}

// Report summarizes a document run.
type Report struct {
	Pages               int   `json:"pages"`
	Paragraphs          int   `json:"paragraphs"`
	Translated          int   `json:"translated"`
	TranslationFailures int   `json:"translation_failures"`
	FallbackPages       []int `json:"fallback_pages,omitempty"`
}

// DocumentPipeline translates whole documents page by page.
type DocumentPipeline struct {
	store PageStore
	page  *PagePipeline
	opts  DocumentOptions
}

// NewDocumentPipeline creates a document pipeline over a page pipeline.
func NewDocumentPipeline(store PageStore, page *PagePipeline, opts DocumentOptions) (*DocumentPipeline, error) {
	if store == nil {
		return nil, errors.New("pipeline: page store is required")
	}
	if page == nil {
		return nil, errors.New("pipeline: page pipeline is required")
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	return &DocumentPipeline{store: store, page: page, opts: opts}, nil
}

type pageSlot struct {
	result PageResult
	err    error
}

// Run translates every page of source. The output holds one page per source
// page, or two in spread mode, in source order. A page that fails falls back
// to its original. Run fails only for an unreadable or empty source or a
// cancelled context.
func (d *DocumentPipeline) Run(ctx context.Context, source string) (*compose.Document, *Report, error) {
	pages, err := d.store.ReadPages(ctx, source)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		return nil, nil, NewError(ErrReadFailed, "failed to read source pages", err)
	}
	if len(pages) == 0 {
		return nil, nil, NewError(ErrEmptyDocument, "document has no pages", nil)
	}

	logger.Info("translating document",
		logger.Int("pages", len(pages)),
		logger.Int("concurrency", d.opts.Concurrency),
		logger.Bool("spread", d.opts.Spread))

	slots := make([]pageSlot, len(pages))
	sem := make(chan struct{}, d.opts.Concurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	done := 0

	for i, page := range pages {
		if ctx.Err() != nil {
			break
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(idx int, page compose.Page) {
			defer wg.Done()
			defer func() { <-sem }()

			res, err := d.page.Process(ctx, page)
			slots[idx] = pageSlot{result: res, err: err}

			mu.Lock()
			done++
			if d.opts.Progress != nil {
				d.opts.Progress(done, len(pages))
			}
			mu.Unlock()
		}(i, page)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	doc := compose.NewDocument()
	report := &Report{Pages: len(pages)}
	for i, slot := range slots {
		src := pages[i]
		res := slot.result
		if slot.err != nil {
			logger.Warn("page falls back to original",
				logger.Int("page", src.Number),
				logger.Err(slot.err))
			res = PageResult{Page: src, Fallback: true}
			report.FallbackPages = append(report.FallbackPages, src.Number)
		}

		if d.opts.Spread {
			doc.Append(src)
		}
		doc.Append(res.Page)

		report.Paragraphs += res.Paragraphs
		report.Translated += res.Translated
		report.TranslationFailures += res.Failures
	}

	logger.Info("document translated",
		logger.Int("pages", report.Pages),
		logger.Int("outputPages", doc.Len()),
		logger.Int("paragraphs", report.Paragraphs),
		logger.Int("translated", report.Translated),
		logger.Int("failures", report.TranslationFailures),
		logger.Int("fallbackPages", len(report.FallbackPages)))
	return doc, report, nil
}
