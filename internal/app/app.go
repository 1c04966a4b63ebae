// Package app wires configuration into the translation pipeline and exposes
// the document-level operations used by the command line.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"pdf-layout-translator/internal/config"
	"pdf-layout-translator/internal/extract"
	"pdf-layout-translator/internal/fit"
	"pdf-layout-translator/internal/journal"
	"pdf-layout-translator/internal/layout"
	"pdf-layout-translator/internal/logger"
	"pdf-layout-translator/internal/overlay"
	"pdf-layout-translator/internal/pipeline"
	"pdf-layout-translator/internal/render"
	"pdf-layout-translator/internal/results"
	"pdf-layout-translator/internal/translate"
	"pdf-layout-translator/internal/types"
)

// OutputPrefix is prepended to the input file name for the default output.
const OutputPrefix = "translated_"

// Options tunes a single document run.
type Options struct {
	// DPI of the rendered page images; zero uses the configured value.
	DPI    int
	Spread bool
	// Font overrides the configured font when set.
	Font *overlay.Font
	// Progress receives (done, total) page counts.
	Progress func(done, total int)
}

// Option customizes an App at construction.
type Option func(*App)

// WithTranslator replaces the configured LLM translator.
func WithTranslator(t pipeline.Translator) Option {
	return func(a *App) { a.translator = t }
}

// WithDetector replaces the configured layout detector.
func WithDetector(d pipeline.Detector) Option {
	return func(a *App) { a.detector = d }
}

// WithRasterizer replaces the pdftoppm rasterizer.
func WithRasterizer(r pipeline.Rasterizer) Option {
	return func(a *App) { a.rasterizer = r }
}

// App owns the long-lived collaborators of a translation session.
type App struct {
	config  *config.ConfigManager
	cfg     *types.Config
	workDir string

	rasterizer pipeline.Rasterizer
	detector   pipeline.Detector
	extractor  pipeline.Extractor
	translator pipeline.Translator

	font     overlay.Font
	fitter   fit.Fitter
	measurer fit.Measurer

	cache   translate.Cache
	journal *journal.Journal
	results *results.ResultManager
	closers []io.Closer

	mu      sync.Mutex
	scratch []string
}

// New validates the configuration and builds every collaborator except the
// translator, which is built on first use. Any construction failure is
// returned before a document is touched.
func New(cm *config.ConfigManager, opts ...Option) (*App, error) {
	cfg := cm.GetConfig()
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	a := &App{
		config:    cm,
		cfg:       cfg,
		workDir:   cm.GetWorkDirectory(),
		extractor: extract.NewExtractor(),
	}
	for _, opt := range opts {
		opt(a)
	}

	if err := os.MkdirAll(a.workDir, 0755); err != nil {
		return nil, types.NewAppError(types.ErrConfig, "failed to create work directory", err)
	}

	if j, err := journal.Open(filepath.Join(a.workDir, "journal")); err != nil {
		logger.Warn("failure journal unavailable", logger.Err(err))
	} else {
		a.journal = j
	}
	if rm, err := results.NewResultManager(filepath.Join(a.workDir, "results")); err != nil {
		logger.Warn("result history unavailable", logger.Err(err))
	} else {
		a.results = rm
	}

	font, err := overlay.LoadFont(cfg.FontName, cfg.FontPath)
	if err != nil {
		return nil, types.NewAppError(types.ErrConfig, "failed to load font", err)
	}
	a.font = font

	a.fitter, a.measurer, err = a.fitting(font)
	if err != nil {
		a.Close()
		return nil, err
	}

	if a.rasterizer == nil {
		r, err := render.NewPopplerRasterizer(filepath.Join(a.workDir, "render"))
		if err != nil {
			a.Close()
			return nil, types.NewAppError(types.ErrConfig, "rasterizer unavailable", err)
		}
		a.rasterizer = r
	}

	if a.detector == nil {
		d, err := a.buildDetector()
		if err != nil {
			a.Close()
			return nil, types.NewAppError(types.ErrConfig, "layout detector unavailable", err)
		}
		a.detector = d
	}

	logger.Info("translator ready",
		logger.String("detector", cfg.Detector.Kind),
		logger.String("fitter", cfg.Fitter),
		logger.String("font", font.Family),
		logger.String("workDir", a.workDir))
	return a, nil
}

// fitting returns the fitter and measurer for font. Embedded fonts are
// measured from their glyphs.
func (a *App) fitting(font overlay.Font) (fit.Fitter, fit.Measurer, error) {
	var m fit.Measurer = fit.EstimateMeasurer{}
	if !font.IsCore() {
		fm, err := fit.NewFaceMeasurer(font.Data)
		if err != nil {
			return nil, nil, types.NewAppError(types.ErrConfig, "failed to parse font", err)
		}
		a.closers = append(a.closers, fm)
		m = fm
	}

	if a.cfg.Fitter == types.FitterMeasured {
		return fit.MeasuredFitter{Measurer: m}, m, nil
	}
	return fit.AreaFitter{}, m, nil
}

func (a *App) buildDetector() (pipeline.Detector, error) {
	dc := a.cfg.Detector
	switch dc.Kind {
	case types.DetectorProjection:
		return layout.NewProjectionDetector(), nil
	default:
		d, err := layout.NewONNXDetector(layout.ONNXConfig{
			ModelPath:     dc.ModelPath,
			LibraryPath:   dc.LibraryPath,
			CacheDir:      filepath.Join(a.workDir, "models"),
			InputSize:     dc.InputSize,
			ConfThreshold: dc.ConfThreshold,
			NMSThreshold:  dc.NMSThreshold,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, d)
		return d, nil
	}
}

// ensureTranslator builds the LLM translator chain on first use: chunking
// outside, cache and retrying client inside.
func (a *App) ensureTranslator() (pipeline.Translator, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.translator != nil {
		return a.translator, nil
	}

	cfg := a.cfg
	llm, err := translate.NewLLMTranslator(context.Background(), translate.LLMConfig{
		APIKey:         a.config.GetAPIKey(),
		BaseURL:        a.config.GetBaseURL(),
		Model:          a.config.GetModel(),
		SourceLanguage: cfg.SourceLanguage,
		TargetLanguage: cfg.TargetLanguage,
		MaxRetries:     cfg.MaxRetries,
	})
	if err != nil {
		return nil, types.NewAppError(types.ErrConfig, "translator unavailable", err)
	}

	var inner translate.Translator = llm
	cache, err := a.openCache()
	if err != nil {
		return nil, err
	}
	if cache != nil {
		a.cache = cache
		a.closers = append(a.closers, cache)
		inner = &translate.CachingTranslator{
			Inner:     llm,
			Cache:     cache,
			Namespace: fmt.Sprintf("%s>%s|%s", cfg.SourceLanguage, cfg.TargetLanguage, a.config.GetModel()),
		}
	}

	a.translator = &translate.ChunkingTranslator{
		Inner:          inner,
		MaxChars:       cfg.MaxChunkChars,
		TargetLanguage: cfg.TargetLanguage,
	}
	return a.translator, nil
}

func (a *App) openCache() (translate.Cache, error) {
	path := a.config.GetCachePath()
	switch a.cfg.CacheBackend {
	case types.CacheNone:
		return nil, nil
	case types.CacheSQLite:
		c, err := translate.OpenSQLiteCache(path)
		if err != nil {
			return nil, types.NewAppError(types.ErrConfig, "failed to open translation cache", err)
		}
		return c, nil
	default:
		c, err := translate.NewJSONCache(path)
		if err != nil {
			logger.Warn("translation cache unreadable, starting empty",
				logger.String("path", path), logger.Err(err))
			c, _ = translate.NewJSONCache("")
		}
		return c, nil
	}
}

// DefaultOptions returns run options taken from the configuration.
func (a *App) DefaultOptions() Options {
	return Options{DPI: a.cfg.DPI, Spread: a.cfg.Spread}
}

// newScratchDir creates a uniquely named directory below the work directory
// that is removed by Close.
func (a *App) newScratchDir() (string, error) {
	dir := filepath.Join(a.workDir, "runs", uuid.NewString())
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create run directory: %w", err)
	}
	a.mu.Lock()
	a.scratch = append(a.scratch, dir)
	a.mu.Unlock()
	return dir, nil
}

func (a *App) removeScratchDir(dir string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i, d := range a.scratch {
		if d == dir {
			a.scratch = append(a.scratch[:i], a.scratch[i+1:]...)
			break
		}
	}
	if err := os.RemoveAll(dir); err != nil {
		logger.Warn("failed to remove run directory", logger.String("dir", dir), logger.Err(err))
	}
}

// Close releases the detector, measurer and cache and removes run
// directories. Documents returned by TranslateDocument are unusable after
// Close.
func (a *App) Close() error {
	a.mu.Lock()
	closers := a.closers
	scratch := a.scratch
	a.closers, a.scratch = nil, nil
	a.mu.Unlock()

	var firstErr error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, dir := range scratch {
		os.RemoveAll(dir)
	}
	return firstErr
}

// OutputPath returns the default output path for input:
// translated_<name> in the same directory.
func OutputPath(input string) string {
	return filepath.Join(filepath.Dir(input), OutputPrefix+filepath.Base(input))
}
