// Package compose splits a source PDF into pages, stamps overlay layers onto
// them and assembles the output document, using pdfcpu.
package compose

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"pdf-layout-translator/internal/geometry"
	"pdf-layout-translator/internal/logger"
)

// stampDescription places a layer unscaled at the page's bottom-left corner,
// so a layer of the page's own size lines up exactly.
const stampDescription = "scalefactor:1 abs, pos:bl, rot:0, op:1"

// Page is one page of a document stored as its own single-page PDF.
type Page struct {
	// Number is the 1-based page number in the source document.
	Number int
	Path   string
	Size   geometry.Size
}

// Compositor owns a work directory holding split and composited pages.
type Compositor struct {
	workDir string
	conf    *model.Configuration
}

// NewCompositor creates workDir if needed.
func NewCompositor(workDir string) (*Compositor, error) {
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create work directory: %w", err)
	}
	return &Compositor{workDir: workDir, conf: model.NewDefaultConfiguration()}, nil
}

// WorkDir returns the compositor's work directory.
func (c *Compositor) WorkDir() string { return c.workDir }

// ReadPages splits source into single-page PDFs in source order and reads
// each page's media box size.
func (c *Compositor) ReadPages(ctx context.Context, source string) ([]Page, error) {
	pdfCtx, err := api.ReadContextFile(source)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF: %w", err)
	}
	if pdfCtx.PageCount == 0 {
		return nil, nil
	}

	dims, err := pdfCtx.PageDims()
	if err != nil {
		return nil, fmt.Errorf("failed to read page sizes: %w", err)
	}
	if len(dims) != pdfCtx.PageCount {
		return nil, fmt.Errorf("page size count %d does not match page count %d", len(dims), pdfCtx.PageCount)
	}

	logger.Info("splitting PDF",
		logger.String("input", filepath.Base(source)),
		logger.Int("pages", pdfCtx.PageCount))

	pages := make([]Page, 0, pdfCtx.PageCount)
	for i, dim := range dims {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n := i + 1
		out := c.pagePath(n, "source")
		if err := api.TrimFile(source, out, []string{strconv.Itoa(n)}, c.config()); err != nil {
			return nil, fmt.Errorf("failed to extract page %d: %w", n, err)
		}
		pages = append(pages, Page{Number: n, Path: out, Size: sizeOf(dim)})
	}
	return pages, nil
}

func sizeOf(d types.Dim) geometry.Size {
	return geometry.Size{Width: d.Width, Height: d.Height}
}

// Composite stamps each non-nil layer onto a copy of base, in argument
// order, and returns the new page. With no layers base is returned as-is.
func (c *Compositor) Composite(base Page, layers ...[]byte) (Page, error) {
	var present [][]byte
	for _, l := range layers {
		if len(l) > 0 {
			present = append(present, l)
		}
	}
	if len(present) == 0 {
		return base, nil
	}

	out := c.pagePath(base.Number, "translated")
	if err := copyFile(base.Path, out); err != nil {
		return Page{}, err
	}

	for i, layer := range present {
		layerPath := c.pagePath(base.Number, "layer-"+strconv.Itoa(i))
		if err := os.WriteFile(layerPath, layer, 0644); err != nil {
			return Page{}, fmt.Errorf("failed to write layer: %w", err)
		}
		wm, err := api.PDFWatermark(layerPath+":1", stampDescription, true, false, types.POINTS)
		if err != nil {
			return Page{}, fmt.Errorf("failed to prepare layer %d: %w", i, err)
		}
		if err := api.AddWatermarksFile(out, "", nil, wm, c.config()); err != nil {
			return Page{}, fmt.Errorf("failed to stamp layer %d: %w", i, err)
		}
	}

	return Page{Number: base.Number, Path: out, Size: base.Size}, nil
}

// config returns a copy of the configuration; pdfcpu records the running
// command in it and pages are composited concurrently.
func (c *Compositor) config() *model.Configuration {
	conf := *c.conf
	return &conf
}

func (c *Compositor) pagePath(n int, suffix string) string {
	return filepath.Join(c.workDir, fmt.Sprintf("page-%04d-%s.pdf", n, suffix))
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", filepath.Base(src), err)
	}
	if err := os.WriteFile(dst, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(dst), err)
	}
	return nil
}
