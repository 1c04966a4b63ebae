package overlay

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/gofont/goregular"

	"pdf-layout-translator/internal/fit"
	"pdf-layout-translator/internal/geometry"
)

var letter = geometry.Size{Width: 612, Height: 792}

func helvetica(t *testing.T) Font {
	t.Helper()
	f, err := LoadFont("Helvetica", "")
	require.NoError(t, err)
	return f
}

func TestCoverRect(t *testing.T) {
	t.Run("wide position is expanded", func(t *testing.T) {
		got := CoverRect(geometry.Rect(100, 492, 400, 100))
		assert.Equal(t, geometry.Rect(95, 492, 410, 110), got)
	})

	t.Run("width 301 is expanded", func(t *testing.T) {
		got := CoverRect(geometry.Rect(10, 10, 301, 20))
		assert.Equal(t, geometry.Rect(5, 10, 311, 30), got)
	})

	t.Run("width 300 is unchanged", func(t *testing.T) {
		pos := geometry.Rect(10, 10, 300, 20)
		assert.Equal(t, pos, CoverRect(pos))
	})
}

func TestLoadFont(t *testing.T) {
	_, err := LoadFont("NotoSansJP", "")
	assert.Error(t, err, "non-core family without a file must fail")

	_, err = LoadFont("Custom", "/does/not/exist.ttf")
	assert.Error(t, err)

	f := helvetica(t)
	assert.True(t, f.IsCore())
	assert.Equal(t, "caf\xe9", f.encode("café"))
}

func TestCoreFontEncodingIsWindows1252(t *testing.T) {
	f := helvetica(t)
	tests := []struct {
		in, want string
	}{
		{"\u201cquoted\u201d", "\x93quoted\x94"},
		{"1\u20132", "1\x962"},
		{"5 \u20ac", "5 \x80"},
		{"\u65e5", "\x1a"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, f.encode(tt.in), tt.in)
	}
}

func TestSurfaceEmptyProducesNothing(t *testing.T) {
	s := NewSurface(LayerCover, letter, helvetica(t))
	assert.True(t, s.Empty())

	data, err := s.Bytes()
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestSurfaceFillRect(t *testing.T) {
	s := NewSurface(LayerCover, letter, helvetica(t))
	require.NoError(t, s.FillRect(geometry.Rect(95, 492, 410, 110)))

	assert.False(t, s.Empty())
	ops := s.Ops()
	require.Len(t, ops, 1)
	assert.Equal(t, OpFillRect, ops[0].Kind)

	data, err := s.Bytes()
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
}

func TestPageOverlayScenario(t *testing.T) {
	o := NewPageOverlay(letter, Options{Font: helvetica(t)})
	pos := geometry.Rect(100, 492, 400, 100)

	cover, err := o.AddCover(pos)
	require.NoError(t, err)
	assert.Equal(t, geometry.Rect(95, 492, 410, 110), cover)

	block, err := o.AddText(pos, "こんにちは世界")
	require.NoError(t, err)
	assert.Equal(t, 75.0, block.FontSize)
	assert.Equal(t, 75.0, block.Leading)

	textOps := o.Text.Ops()
	require.Len(t, textOps, 1)
	assert.Equal(t, pos, textOps[0].Rect)
	assert.Equal(t, 75.0, textOps[0].FontSize)

	coverPDF, textPDF, err := o.Finalize()
	require.NoError(t, err)
	assert.NotEmpty(t, coverPDF)
	assert.NotEmpty(t, textPDF)
}

func TestPageOverlayCoverOnly(t *testing.T) {
	o := NewPageOverlay(letter, Options{Font: helvetica(t)})
	_, err := o.AddCover(geometry.Rect(10, 10, 100, 20))
	require.NoError(t, err)

	coverPDF, textPDF, err := o.Finalize()
	require.NoError(t, err)
	assert.NotNil(t, coverPDF)
	assert.Nil(t, textPDF)
}

func TestPageOverlayClampsTinyFontSize(t *testing.T) {
	o := NewPageOverlay(letter, Options{Font: helvetica(t)})
	block, err := o.AddText(geometry.Rect(0, 0, 2, 2), "a rather long sentence for a tiny box")
	require.NoError(t, err)
	assert.Greater(t, block.FontSize, 0.0)
}

func TestPageOverlayWithEmbeddedFont(t *testing.T) {
	font := Font{Family: "GoRegular", Data: goregular.TTF}
	fm, err := fit.NewFaceMeasurer(goregular.TTF)
	require.NoError(t, err)

	o := NewPageOverlay(letter, Options{Font: font, Measurer: fm})
	_, err = o.AddText(geometry.Rect(72, 600, 300, 60), "Unicode text: naïve café")
	require.NoError(t, err)

	_, textPDF, err := o.Finalize()
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(textPDF, []byte("%PDF-")))
}

func TestSurfaceConcurrentDraws(t *testing.T) {
	s := NewSurface(LayerCover, letter, helvetica(t))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.FillRect(geometry.Rect(float64(i*10), 10, 5, 5))
		}(i)
	}
	wg.Wait()

	assert.Len(t, s.Ops(), 20)
}
