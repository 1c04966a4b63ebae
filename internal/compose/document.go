package compose

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"pdf-layout-translator/internal/logger"
)

// Document is the ordered sequence of output pages.
type Document struct {
	pages []Page
	conf  *model.Configuration
}

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{conf: model.NewDefaultConfiguration()}
}

// Append adds p at the end of the document.
func (d *Document) Append(p Page) {
	d.pages = append(d.pages, p)
}

// Pages returns the pages in output order.
func (d *Document) Pages() []Page {
	out := make([]Page, len(d.pages))
	copy(out, d.pages)
	return out
}

// Len returns the number of pages.
func (d *Document) Len() int { return len(d.pages) }

// Write merges all pages into one PDF at path and validates the result.
func (d *Document) Write(path string) error {
	if len(d.pages) == 0 {
		return fmt.Errorf("document has no pages")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	if len(d.pages) == 1 {
		if err := copyFile(d.pages[0].Path, path); err != nil {
			return err
		}
	} else {
		inputs := make([]string, len(d.pages))
		for i, p := range d.pages {
			inputs[i] = p.Path
		}
		if err := api.MergeCreateFile(inputs, path, false, d.conf); err != nil {
			return fmt.Errorf("failed to merge pages: %w", err)
		}
	}

	if err := api.ValidateFile(path, d.conf); err != nil {
		return fmt.Errorf("output validation failed: %w", err)
	}

	if info, err := os.Stat(path); err == nil {
		logger.Info("document written",
			logger.String("output", filepath.Base(path)),
			logger.Int("pages", len(d.pages)),
			logger.String("size", humanize.Bytes(uint64(info.Size()))))
	}
	return nil
}

// WriteTo writes the merged PDF to w.
func (d *Document) WriteTo(w io.Writer) (int64, error) {
	tmp, err := os.CreateTemp("", "translated-*.pdf")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	if err := d.Write(tmpPath); err != nil {
		return 0, err
	}

	f, err := os.Open(tmpPath)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return io.Copy(w, f)
}
