package extract

import (
	"context"
	"path/filepath"
	"testing"

	"codeberg.org/go-pdf/fpdf"
	"github.com/ledongthuc/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdf-layout-translator/internal/compose"
	"pdf-layout-translator/internal/geometry"
)

// glyphs lays s out the way the content stream reports a font with widths:
// one entry per rune, each advancing the cursor by its own width.
func glyphs(s string, x, y, size float64) []pdf.Text {
	var out []pdf.Text
	for _, r := range s {
		out = append(out, pdf.Text{Font: "Helvetica", FontSize: size, X: x, Y: y, W: size / 2, S: string(r)})
		x += size / 2
	}
	return out
}

// stuckGlyphs is s shown in a font without /Widths: every rune reports the
// run's start position and no width.
func stuckGlyphs(s string, x, y, size float64) []pdf.Text {
	var out []pdf.Text
	for _, r := range s {
		out = append(out, pdf.Text{Font: "Helvetica", FontSize: size, X: x, Y: y, S: string(r)})
	}
	return out
}

func fixedWidth(w float64) WidthFunc {
	return func(font, s string, size float64) float64 { return w }
}

func TestGroupWordsSplitsOnSpaces(t *testing.T) {
	words := GroupWords(glyphs("Hello world", 100, 500, 10))
	require.Len(t, words, 2)

	assert.Equal(t, "Hello", words[0].Text)
	assert.Equal(t, "world", words[1].Text)

	assert.InDelta(t, 100, words[0].Rect.X1, 1e-9)
	assert.InDelta(t, 125, words[0].Rect.X2, 1e-9)
	assert.InDelta(t, 498, words[0].Rect.Y1, 1e-9)
	assert.InDelta(t, 508, words[0].Rect.Y2, 1e-9)
	assert.InDelta(t, 130, words[1].Rect.X1, 1e-9)
}

func TestGroupWordsSplitsOnGaps(t *testing.T) {
	texts := append(glyphs("foo", 0, 0, 10), glyphs("bar", 40, 0, 10)...)
	words := GroupWords(texts)
	require.Len(t, words, 2)
	assert.Equal(t, "foo", words[0].Text)
	assert.Equal(t, "bar", words[1].Text)
}

func TestGroupWordsKeepsTightGlyphsTogether(t *testing.T) {
	texts := append(glyphs("foo", 0, 0, 10), glyphs("bar", 16, 0, 10)...)
	words := GroupWords(texts)
	require.Len(t, words, 1)
	assert.Equal(t, "foobar", words[0].Text)
}

func TestGroupWordsEmpty(t *testing.T) {
	assert.Empty(t, GroupWords(nil))
	assert.Empty(t, GroupWords(glyphs("   ", 0, 0, 10)))
}

func TestFillWidthsLaysOutRunWithoutWidths(t *testing.T) {
	filled := FillWidths(stuckGlyphs("Hello world", 100, 692, 12), fixedWidth(6))
	require.Len(t, filled, 11)
	for i, g := range filled {
		assert.InDelta(t, 100+6*float64(i), g.X, 1e-9, "glyph %d", i)
		assert.InDelta(t, 6, g.W, 1e-9)
	}

	words := GroupWords(filled)
	require.Len(t, words, 2)
	assert.InDelta(t, 100, words[0].Rect.X1, 1e-9)
	assert.InDelta(t, 130, words[0].Rect.X2, 1e-9)
	assert.InDelta(t, 689.6, words[0].Rect.Y1, 1e-9)
	assert.InDelta(t, 701.6, words[0].Rect.Y2, 1e-9)
	assert.InDelta(t, 136, words[1].Rect.X1, 1e-9)
	assert.InDelta(t, 166, words[1].Rect.X2, 1e-9)
}

func TestFillWidthsStartsEachRunAtItsOwnPosition(t *testing.T) {
	texts := append(stuckGlyphs("ab", 100, 700, 10), stuckGlyphs("cd", 300, 700, 10)...)
	filled := FillWidths(texts, fixedWidth(5))
	xs := []float64{filled[0].X, filled[1].X, filled[2].X, filled[3].X}
	assert.Equal(t, []float64{100, 105, 300, 305}, xs)
}

func TestFillWidthsKeepsReportedWidths(t *testing.T) {
	in := glyphs("abc", 10, 10, 10)
	filled := FillWidths(in, fixedWidth(99))
	assert.Equal(t, in, filled)
}

func TestFillWidthsDefaultsFontSize(t *testing.T) {
	var gotSize float64
	measure := func(font, s string, size float64) float64 {
		gotSize = size
		return 1
	}
	FillWidths([]pdf.Text{{X: 10, Y: 10, S: "x"}}, measure)
	assert.Equal(t, defaultFontSize, gotSize)
}

func TestRowsGroupsByBaseline(t *testing.T) {
	texts := []pdf.Text{
		{FontSize: 10, X: 50, Y: 680, S: "c"},
		{FontSize: 10, X: 60, Y: 700, S: "b"},
		{FontSize: 10, X: 10, Y: 700.5, S: "a"},
		{FontSize: 10, X: 10, Y: 680, S: "d"},
	}
	rows := Rows(texts)
	require.Len(t, rows, 2)

	var got [][]string
	for _, row := range rows {
		var line []string
		for _, g := range row {
			line = append(line, g.S)
		}
		got = append(got, line)
	}
	assert.Equal(t, [][]string{{"a", "b"}, {"d", "c"}}, got)
	assert.Empty(t, Rows(nil))
}

func TestCoreFamily(t *testing.T) {
	tests := []struct {
		base   string
		family string
		style  string
		ok     bool
	}{
		{"Helvetica", "Helvetica", "", true},
		{"Helvetica-BoldOblique", "Helvetica", "BI", true},
		{"Arial,Bold", "Helvetica", "B", true},
		{"Times-Italic", "Times", "I", true},
		{"Courier", "Courier", "", true},
		{"NotoSansCJK-Regular", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.base, func(t *testing.T) {
			family, style, ok := coreFamily(tt.base)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.family, family)
			assert.Equal(t, tt.style, style)
		})
	}
}

func TestCoreMetricsWidth(t *testing.T) {
	m := newCoreMetrics()
	// Helvetica: H=722 e=556 l=222 l=222 o=556
	assert.InDelta(t, 2278*12/1000.0, m.Width("Helvetica", "Hello", 12), 1e-9)
	assert.Greater(t, m.Width("Helvetica-Bold", "Hello", 12), m.Width("Helvetica", "Hello", 12))
	assert.Greater(t, m.Width("UnknownFont", "Hello", 12), 0.0)
}

func writePDF(t *testing.T, lines map[float64]string) string {
	t.Helper()
	doc := fpdf.New("P", "pt", "", "")
	doc.AddPageFormat("P", fpdf.SizeType{Wd: 612, Ht: 792})
	doc.SetFont("Helvetica", "", 12)
	for y, s := range lines {
		doc.Text(100, y, s)
	}
	path := filepath.Join(t.TempDir(), "page.pdf")
	require.NoError(t, doc.OutputFileAndClose(path))
	return path
}

func TestExtractFromGeneratedPDF(t *testing.T) {
	path := writePDF(t, map[float64]string{100: "Hello world", 200: "Second line"})

	size := geometry.Size{Width: 612, Height: 792}
	m, err := geometry.NewMapper(size, size)
	require.NoError(t, err)

	frags, err := NewExtractor().Extract(context.Background(), compose.Page{Number: 1, Path: path, Size: size}, m)
	require.NoError(t, err)
	require.Len(t, frags, 4)

	texts := []string{frags[0].Text, frags[1].Text, frags[2].Text, frags[3].Text}
	assert.Equal(t, []string{"Hello", "world", "Second", "line"}, texts)

	hello, world := frags[0].Rect, frags[1].Rect
	// baseline 100pt from the top; the box reaches 0.2em below it
	assert.InDelta(t, 102.4, hello.Y2, 0.01)
	assert.InDelta(t, 100-9.6, hello.Y1, 0.01)
	assert.InDelta(t, 100, hello.X1, 0.01)
	assert.InDelta(t, 100+27.336, hello.X2, 0.01)
	// "Hello " is 2556 units wide in Helvetica
	assert.InDelta(t, 100+30.672, world.X1, 0.01)
	assert.Greater(t, world.X2, world.X1)

	assert.InDelta(t, 202.4, frags[2].Rect.Y2, 0.01)
}

func TestExtractMissingFile(t *testing.T) {
	size := geometry.Size{Width: 612, Height: 792}
	m, _ := geometry.NewMapper(size, size)
	_, err := NewExtractor().Extract(context.Background(), compose.Page{Number: 1, Path: "/does/not/exist.pdf"}, m)
	assert.Error(t, err)
}
