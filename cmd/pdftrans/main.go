// Command pdftrans translates PDF documents while keeping their layout.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/dustin/go-humanize"

	"pdf-layout-translator/internal/app"
	"pdf-layout-translator/internal/config"
	"pdf-layout-translator/internal/logger"
	"pdf-layout-translator/internal/types"
)

const version = "0.1.0"

// Globals are flags shared by every command.
type Globals struct {
	Config  string `help:"Config file path (default ~/.config/pdf-layout-translator/config.json)" type:"path"`
	Verbose bool   `short:"v" help:"Log debug output to stderr"`
}

// CLI defines the command-line interface.
var CLI struct {
	Globals

	Translate TranslateCmd `cmd:"" help:"Translate a PDF"`
	Inspect   InspectCmd   `cmd:"" help:"Show detected paragraphs of one page without translating"`
	Failures  FailuresCmd  `cmd:"" help:"List documents whose last translation was incomplete"`
	History   HistoryCmd   `cmd:"" help:"List finished translations"`
	Version   VersionCmd   `cmd:"" help:"Print version information"`
}

// LayoutFlags override layout settings from the config file.
type LayoutFlags struct {
	DPI      int    `help:"Render resolution for layout detection"`
	FontName string `name:"font-name" help:"Font family for translated text"`
	FontPath string `name:"font-path" help:"TrueType font file for translated text" type:"path"`
	Fitter   string `help:"Font size fitter (area or measured)"`
	Detector string `help:"Layout detector (onnx or projection)"`
}

func (f LayoutFlags) apply(cfg *types.Config) {
	if f.DPI > 0 {
		cfg.DPI = f.DPI
	}
	if f.Fitter != "" {
		cfg.Fitter = f.Fitter
	}
	if f.Detector != "" {
		cfg.Detector.Kind = f.Detector
	}
	if f.FontName != "" {
		cfg.FontName = f.FontName
		cfg.FontPath = f.FontPath
	} else if f.FontPath != "" {
		cfg.FontPath = f.FontPath
	}
}

// TranslateCmd translates a whole document.
type TranslateCmd struct {
	Input  string `arg:"" help:"Source PDF" type:"existingfile"`
	Output string `short:"o" help:"Output PDF (default translated_<input> next to the input)" type:"path"`
	Spread bool   `help:"Place each original page before its translation"`
	Target string `help:"Target language code"`
	Force  bool   `help:"Translate even if an identical translation exists"`
	LayoutFlags
}

func (c *TranslateCmd) Run(g *Globals) error {
	a, cleanup, err := setup(g, func(cfg *types.Config) {
		c.LayoutFlags.apply(cfg)
		if c.Spread {
			cfg.Spread = true
		}
		if c.Target != "" {
			cfg.TargetLanguage = c.Target
		}
	})
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	opts := a.DefaultOptions()
	if !c.Force {
		existing, err := a.ExistingTranslation(c.Input, opts)
		if err != nil {
			return err
		}
		if existing != nil {
			fmt.Printf("Already translated %s: %s\n", humanize.Time(existing.TranslatedAt), existing.Output)
			fmt.Println("Use --force to translate again.")
			return nil
		}
	}
	opts.Progress = func(done, total int) {
		fmt.Fprintf(os.Stderr, "\rtranslated %d/%d pages", done, total)
		if done == total {
			fmt.Fprintln(os.Stderr)
		}
	}

	out, report, err := a.TranslateFile(ctx, c.Input, c.Output, opts)
	if err != nil {
		return err
	}

	size := ""
	if info, err := os.Stat(out); err == nil {
		size = humanize.Bytes(uint64(info.Size()))
	}
	fmt.Printf("Output: %s (%s)\n", out, size)
	fmt.Printf("Paragraphs: %d translated, %d failed\n", report.Translated, report.TranslationFailures)
	if len(report.FallbackPages) > 0 {
		pages := make([]string, len(report.FallbackPages))
		for i, p := range report.FallbackPages {
			pages[i] = fmt.Sprint(p)
		}
		fmt.Printf("Pages kept untranslated: %s\n", strings.Join(pages, ", "))
	}
	return nil
}

// InspectCmd prints the layout analysis of one page.
type InspectCmd struct {
	Input string `arg:"" help:"Source PDF" type:"existingfile"`
	Page  int    `help:"1-based page number" default:"1"`
	LayoutFlags
}

func (c *InspectCmd) Run(g *Globals) error {
	a, cleanup, err := setup(g, c.LayoutFlags.apply)
	if err != nil {
		return err
	}
	defer cleanup()

	in, err := a.Inspect(context.Background(), c.Input, c.Page, a.DefaultOptions())
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(in)
}

// FailuresCmd lists, exports or clears the failure journal.
type FailuresCmd struct {
	Clear  bool   `help:"Remove every entry"`
	Export string `help:"Write the failed source paths to this file, one per line" type:"path"`
}

func (c *FailuresCmd) Run(g *Globals) error {
	a, cleanup, err := setup(g, func(*types.Config) {})
	if err != nil {
		return err
	}
	defer cleanup()

	if c.Export != "" {
		if err := a.ExportFailures(c.Export); err != nil {
			return err
		}
		fmt.Printf("Exported %d sources to %s\n", len(a.Failures()), c.Export)
	}
	if c.Clear {
		return a.ClearFailures()
	}
	if c.Export != "" {
		return nil
	}

	failures := a.Failures()
	if len(failures) == 0 {
		fmt.Println("No incomplete translations.")
		return nil
	}
	for _, f := range failures {
		fmt.Printf("%s\n  stage: %s\n  %s (%s", f.Source, f.Stage, f.Message, humanize.Time(f.Timestamp))
		if f.RetryCount > 0 {
			fmt.Printf(", %d retries", f.RetryCount)
		}
		fmt.Println(")")
	}
	return nil
}

// HistoryCmd lists the result history.
type HistoryCmd struct {
	JSON bool `help:"Print entries as JSON"`
}

func (c *HistoryCmd) Run(g *Globals) error {
	a, cleanup, err := setup(g, func(*types.Config) {})
	if err != nil {
		return err
	}
	defer cleanup()

	entries, err := a.History()
	if err != nil {
		return err
	}
	if c.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}
	for _, e := range entries {
		status := "complete"
		if !e.Complete() {
			status = fmt.Sprintf("%d paragraphs failed, %d pages untranslated", e.TranslationFailures, len(e.FallbackPages))
		}
		fmt.Printf("%s -> %s [%s] %s, %s\n", e.SourceFileName, e.Output, e.TargetLanguage,
			humanize.Time(e.TranslatedAt), status)
	}
	return nil
}

// VersionCmd prints the version.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Printf("pdftrans %s\n", version)
	return nil
}

// setup loads the configuration, applies flag overrides, starts logging and
// builds the App.
func setup(g *Globals, override func(*types.Config)) (*app.App, func(), error) {
	cm, err := config.NewConfigManager(g.Config)
	if err != nil {
		return nil, nil, err
	}
	if err := cm.Load(); err != nil {
		return nil, nil, err
	}
	cfg := cm.GetConfig()
	override(cfg)

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, types.NewAppError(types.ErrConfig, "invalid log level", err)
	}
	if g.Verbose {
		level = logger.LevelDebug
	}
	logCfg := logger.DefaultConfig()
	logCfg.LogFilePath = cfg.LogFile
	logCfg.Level = level
	logCfg.EnableConsole = g.Verbose
	if err := logger.Init(logCfg); err != nil {
		return nil, nil, err
	}

	a, err := app.New(cm)
	if err != nil {
		logger.Close()
		return nil, nil, err
	}
	return a, func() {
		if err := a.Close(); err != nil {
			logger.Warn("cleanup failed", logger.Err(err))
		}
		logger.Close()
	}, nil
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("pdftrans"),
		kong.Description("Translate PDF documents while preserving their layout."),
		kong.UsageOnError(),
	)
	err := ctx.Run(&CLI.Globals)
	ctx.FatalIfErrorf(err)
}
