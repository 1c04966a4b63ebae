package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"pdf-layout-translator/internal/compose"
	"pdf-layout-translator/internal/fit"
	"pdf-layout-translator/internal/journal"
	"pdf-layout-translator/internal/logger"
	"pdf-layout-translator/internal/overlay"
	"pdf-layout-translator/internal/pipeline"
	"pdf-layout-translator/internal/results"
	"pdf-layout-translator/internal/types"
)

// run holds the per-document state of one translation.
type run struct {
	dir       string
	store     *compose.Compositor
	pages     *pipeline.PagePipeline
	fitter    fit.Fitter
	closeFont func()
}

func (a *App) newRun(opts Options, tr pipeline.Translator) (*run, error) {
	dir, err := a.newScratchDir()
	if err != nil {
		return nil, err
	}
	store, err := compose.NewCompositor(dir)
	if err != nil {
		a.removeScratchDir(dir)
		return nil, err
	}

	font, fitter, measurer := a.font, a.fitter, a.measurer
	closeFont := func() {}
	if opts.Font != nil {
		font = *opts.Font
		fitter, measurer = fit.AreaFitter{}, fit.EstimateMeasurer{}
		if !font.IsCore() {
			fm, err := fit.NewFaceMeasurer(font.Data)
			if err != nil {
				a.removeScratchDir(dir)
				return nil, types.NewAppError(types.ErrInvalidInput, "failed to parse font", err)
			}
			measurer = fm
			closeFont = func() { fm.Close() }
		}
		if _, ok := a.fitter.(fit.MeasuredFitter); ok {
			fitter = fit.MeasuredFitter{Measurer: measurer}
		}
	}

	dpi := opts.DPI
	if dpi <= 0 {
		dpi = a.cfg.DPI
	}

	pages, err := pipeline.NewPagePipeline(pipeline.PageConfig{
		DPI:                  dpi,
		Overlay:              overlay.Options{Font: font, Fitter: fitter, Measurer: measurer},
		ParagraphConcurrency: a.cfg.ParagraphConcurrency,
	}, a.rasterizer, a.detector, a.extractor, tr, store)
	if err != nil {
		closeFont()
		a.removeScratchDir(dir)
		return nil, err
	}
	return &run{dir: dir, store: store, pages: pages, fitter: fitter, closeFont: closeFont}, nil
}

func checkSource(source string) error {
	info, err := os.Stat(source)
	if err != nil {
		return types.NewAppErrorWithDetails(types.ErrFileNotFound, "source PDF not found", source, err)
	}
	if info.IsDir() {
		return types.NewAppErrorWithDetails(types.ErrInvalidInput, "source is a directory", source, nil)
	}
	return nil
}

// TranslateDocument translates every page of the PDF at source. The
// returned document's pages live in the App's work directory until Close.
func (a *App) TranslateDocument(ctx context.Context, source string, opts Options) (*compose.Document, *pipeline.Report, error) {
	doc, report, _, err := a.translateDocument(ctx, source, opts)
	a.note(source, report, err)
	return doc, report, err
}

func (a *App) translateDocument(ctx context.Context, source string, opts Options) (*compose.Document, *pipeline.Report, *run, error) {
	if err := checkSource(source); err != nil {
		return nil, nil, nil, err
	}
	tr, err := a.ensureTranslator()
	if err != nil {
		return nil, nil, nil, err
	}

	r, err := a.newRun(opts, tr)
	if err != nil {
		return nil, nil, nil, err
	}
	defer r.closeFont()

	docs, err := pipeline.NewDocumentPipeline(r.store, r.pages, pipeline.DocumentOptions{
		Spread:      opts.Spread,
		Concurrency: a.config.GetConcurrency(),
		Progress:    opts.Progress,
	})
	if err != nil {
		a.removeScratchDir(r.dir)
		return nil, nil, nil, err
	}

	logger.Info("translation started",
		logger.String("source", filepath.Base(source)),
		logger.String("from", a.cfg.SourceLanguage),
		logger.String("to", a.cfg.TargetLanguage))

	doc, report, err := docs.Run(ctx, source)
	if a.cache != nil {
		if serr := a.cache.Save(); serr != nil {
			logger.Warn("failed to save translation cache", logger.Err(serr))
		}
	}
	if err != nil {
		a.removeScratchDir(r.dir)
		return nil, nil, nil, err
	}
	return doc, report, r, nil
}

// TranslateFile translates input and writes the result to output, or to
// OutputPath(input) when output is empty. It returns the written path.
func (a *App) TranslateFile(ctx context.Context, input, output string, opts Options) (string, *pipeline.Report, error) {
	if output == "" {
		output = OutputPath(input)
	}

	doc, report, r, err := a.translateDocument(ctx, input, opts)
	if err != nil {
		a.note(input, nil, err)
		return "", nil, err
	}
	defer a.removeScratchDir(r.dir)

	if err := doc.Write(output); err != nil {
		a.noteStage(input, journal.StageWrite, err.Error(), nil)
		return "", nil, fmt.Errorf("failed to write output: %w", err)
	}
	a.note(input, report, nil)
	a.remember(input, output, opts, report)
	return output, report, nil
}

// TranslateReader spools src into the work directory under name and
// translates it like TranslateDocument. The spooled copy is removed once the
// document has been split into pages.
func (a *App) TranslateReader(ctx context.Context, src io.Reader, name string, opts Options) (*compose.Document, *pipeline.Report, error) {
	dir, err := a.newScratchDir()
	if err != nil {
		return nil, nil, err
	}
	defer a.removeScratchDir(dir)

	if name == "" {
		name = "document.pdf"
	}
	path := filepath.Join(dir, filepath.Base(name))

	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to spool input: %w", err)
	}
	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("failed to spool input: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, nil, fmt.Errorf("failed to spool input: %w", err)
	}

	doc, report, _, err := a.translateDocument(ctx, path, opts)
	return doc, report, err
}

// note journals an incomplete run of source, or clears the entry after a
// complete one.
func (a *App) note(source string, report *pipeline.Report, err error) {
	if a.journal == nil {
		return
	}
	switch {
	case err != nil:
		stage := journal.StageAborted
		var perr *pipeline.Error
		if errors.As(err, &perr) && (perr.Code == pipeline.ErrReadFailed || perr.Code == pipeline.ErrEmptyDocument) {
			stage = journal.StageRead
		}
		a.noteStage(source, stage, err.Error(), nil)
	case len(report.FallbackPages) > 0:
		a.noteStage(source, journal.StageFallback,
			fmt.Sprintf("%d of %d pages left untranslated", len(report.FallbackPages), report.Pages),
			report.FallbackPages)
	case report.TranslationFailures > 0:
		a.noteStage(source, journal.StageTranslation,
			fmt.Sprintf("%d of %d paragraphs left untranslated", report.TranslationFailures, report.Paragraphs),
			nil)
	default:
		if rerr := a.journal.Remove(source); rerr != nil {
			logger.Warn("failed to update failure journal", logger.Err(rerr))
		}
	}
}

func (a *App) noteStage(source string, stage journal.Stage, message string, pages []int) {
	if a.journal == nil {
		return
	}
	if err := a.journal.Record(source, stage, message, pages); err != nil {
		logger.Warn("failed to update failure journal", logger.Err(err))
	}
}

// Failures lists documents whose last run was incomplete.
func (a *App) Failures() []*journal.Record {
	if a.journal == nil {
		return nil
	}
	return a.journal.List()
}

// ClearFailures empties the failure journal.
func (a *App) ClearFailures() error {
	if a.journal == nil {
		return nil
	}
	return a.journal.Clear()
}

// ExportFailures writes the sources of incomplete runs to path, one per line.
func (a *App) ExportFailures(path string) error {
	if a.journal == nil {
		return fmt.Errorf("failure journal unavailable")
	}
	return a.journal.ExportSources(path)
}

// remember records a written translation in the result history.
func (a *App) remember(input, output string, opts Options, report *pipeline.Report) {
	if a.results == nil {
		return
	}
	sum, err := results.CalculateFileMD5(input)
	if err != nil {
		logger.Warn("failed to hash source", logger.Err(err))
		return
	}
	entry := &results.Entry{
		SourceMD5:           sum,
		SourceFileName:      filepath.Base(input),
		Source:              journal.Key(input),
		Output:              journal.Key(output),
		TargetLanguage:      a.cfg.TargetLanguage,
		Spread:              opts.Spread,
		TranslatedAt:        time.Now(),
		Pages:               report.Pages,
		Paragraphs:          report.Paragraphs,
		Translated:          report.Translated,
		TranslationFailures: report.TranslationFailures,
		FallbackPages:       report.FallbackPages,
	}
	if err := a.results.Save(entry); err != nil {
		logger.Warn("failed to record result", logger.Err(err))
	}
}

// ExistingTranslation returns an earlier complete translation of input with
// the current target language and opts.Spread whose output still exists.
func (a *App) ExistingTranslation(input string, opts Options) (*results.Entry, error) {
	if a.results == nil {
		return nil, nil
	}
	if err := checkSource(input); err != nil {
		return nil, err
	}
	return a.results.FindExisting(input, a.cfg.TargetLanguage, opts.Spread)
}

// History lists recorded translations, newest first.
func (a *App) History() ([]*results.Entry, error) {
	if a.results == nil {
		return nil, nil
	}
	return a.results.List()
}
