package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdf-layout-translator/internal/compose"
	"pdf-layout-translator/internal/geometry"
	"pdf-layout-translator/internal/overlay"
	"pdf-layout-translator/internal/paragraph"
)

var letter = geometry.Size{Width: 612, Height: 792}

type fakeRasterizer struct {
	fail  map[int]bool
	delay func(page int) time.Duration
}

func (f *fakeRasterizer) Render(ctx context.Context, page compose.Page, dpi int) (image.Image, error) {
	if f.fail[page.Number] {
		return nil, errors.New("render exploded")
	}
	if f.delay != nil {
		time.Sleep(f.delay(page.Number))
	}
	w := int(page.Size.Width * float64(dpi) / 72)
	h := int(page.Size.Height * float64(dpi) / 72)
	return image.NewGray(image.Rect(0, 0, w, h)), nil
}

type fakeDetector struct{ regions []paragraph.Region }

func (f *fakeDetector) Detect(ctx context.Context, img image.Image) ([]paragraph.Region, error) {
	return f.regions, nil
}

type fakeExtractor struct{ fragments []paragraph.Fragment }

func (f *fakeExtractor) Extract(ctx context.Context, page compose.Page, m geometry.Mapper) ([]paragraph.Fragment, error) {
	return f.fragments, nil
}

type mapTranslator struct {
	mu       sync.Mutex
	table    map[string]string
	err      error
	active   int32
	peak     int32
	holdFor  time.Duration
	requests []string
}

func (m *mapTranslator) Translate(ctx context.Context, text string) (string, error) {
	n := atomic.AddInt32(&m.active, 1)
	defer atomic.AddInt32(&m.active, -1)
	for {
		p := atomic.LoadInt32(&m.peak)
		if n <= p || atomic.CompareAndSwapInt32(&m.peak, p, n) {
			break
		}
	}
	if m.holdFor > 0 {
		time.Sleep(m.holdFor)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, text)
	if m.err != nil {
		return "", m.err
	}
	return m.table[text], nil
}

type compositeCall struct {
	page  int
	cover bool
	text  bool
}

type fakeStore struct {
	pages []compose.Page
	fail  map[int]bool

	mu    sync.Mutex
	calls []compositeCall
}

func newFakeStore(n int) *fakeStore {
	s := &fakeStore{}
	for i := 1; i <= n; i++ {
		s.pages = append(s.pages, compose.Page{Number: i, Path: fmt.Sprintf("src-%d.pdf", i), Size: letter})
	}
	return s
}

func (s *fakeStore) ReadPages(ctx context.Context, source string) ([]compose.Page, error) {
	return s.pages, nil
}

func (s *fakeStore) Composite(base compose.Page, layers ...[]byte) (compose.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, compositeCall{
		page:  base.Number,
		cover: len(layers) > 0 && layers[0] != nil,
		text:  len(layers) > 1 && layers[1] != nil,
	})
	if s.fail[base.Number] {
		return compose.Page{}, errors.New("merge failed")
	}
	return compose.Page{Number: base.Number, Path: fmt.Sprintf("out-%d.pdf", base.Number), Size: base.Size}, nil
}

type fixture struct {
	raster *fakeRasterizer
	detect *fakeDetector
	extr   *fakeExtractor
	trans  *mapTranslator
	store  *fakeStore
}

// newFixture describes the reference page: one 400x100 paragraph at
// (100, 200) in a 612x792 image reading "Hello world".
func newFixture(pages int) *fixture {
	return &fixture{
		raster: &fakeRasterizer{},
		detect: &fakeDetector{regions: []paragraph.Region{
			{Rect: geometry.Rectangle{X1: 100, Y1: 200, X2: 500, Y2: 300}, Kind: paragraph.KindText},
			{Rect: geometry.Rectangle{X1: 100, Y1: 400, X2: 500, Y2: 600}, Kind: paragraph.KindFigure},
		}},
		extr: &fakeExtractor{fragments: []paragraph.Fragment{
			{Rect: geometry.Rectangle{X1: 110, Y1: 210, X2: 200, Y2: 230}, Text: "Hello"},
			{Rect: geometry.Rectangle{X1: 210, Y1: 210, X2: 300, Y2: 230}, Text: "world"},
			{Rect: geometry.Rectangle{X1: 10, Y1: 10, X2: 50, Y2: 20}, Text: "Header"},
		}},
		trans: &mapTranslator{table: map[string]string{"Hello world": "Bonjour"}},
		store: newFakeStore(pages),
	}
}

func (f *fixture) pagePipeline(t *testing.T, paraWorkers int) *PagePipeline {
	t.Helper()
	font, err := overlay.LoadFont("Helvetica", "")
	require.NoError(t, err)
	p, err := NewPagePipeline(PageConfig{
		DPI:                  72,
		Overlay:              overlay.Options{Font: font},
		ParagraphConcurrency: paraWorkers,
	}, f.raster, f.detect, f.extr, f.trans, f.store)
	require.NoError(t, err)
	return p
}

func (f *fixture) documentPipeline(t *testing.T, opts DocumentOptions) *DocumentPipeline {
	t.Helper()
	d, err := NewDocumentPipeline(f.store, f.pagePipeline(t, 1), opts)
	require.NoError(t, err)
	return d
}

func TestPageScenario(t *testing.T) {
	f := newFixture(1)
	p := f.pagePipeline(t, 1)

	res, err := p.Process(context.Background(), f.store.pages[0])
	require.NoError(t, err)

	assert.Equal(t, 1, res.Paragraphs)
	assert.Equal(t, 1, res.Translated)
	assert.Equal(t, 0, res.Failures)
	assert.Equal(t, "out-1.pdf", res.Page.Path)
	assert.Equal(t, []string{"Hello world"}, f.trans.requests)

	require.Len(t, res.CoverOps, 1)
	assert.Equal(t, overlay.OpFillRect, res.CoverOps[0].Kind)
	assert.Equal(t, geometry.Rect(95, 492, 410, 110), res.CoverOps[0].Rect)

	require.Len(t, res.TextOps, 1)
	assert.Equal(t, geometry.Rect(100, 492, 400, 100), res.TextOps[0].Rect)
	assert.Equal(t, 75.0, res.TextOps[0].FontSize)
	assert.Equal(t, []string{"Bonjour"}, res.TextOps[0].Lines)

	require.Len(t, f.store.calls, 1)
	assert.Equal(t, compositeCall{page: 1, cover: true, text: true}, f.store.calls[0])
}

func TestPageAnalyze(t *testing.T) {
	f := newFixture(1)
	a, err := f.pagePipeline(t, 1).Analyze(context.Background(), f.store.pages[0])
	require.NoError(t, err)

	assert.Len(t, a.Regions, 2)
	assert.Len(t, a.Fragments, 3)
	require.Len(t, a.Units, 1)
	assert.Equal(t, "Hello world", a.Units[0].Text)
	assert.Equal(t, geometry.Rect(100, 492, 400, 100), a.Position(0))
}

func TestPageWithoutParagraphsPassesThrough(t *testing.T) {
	f := newFixture(1)
	f.extr.fragments = nil

	res, err := f.pagePipeline(t, 1).Process(context.Background(), f.store.pages[0])
	require.NoError(t, err)
	assert.Equal(t, f.store.pages[0], res.Page)
	assert.Zero(t, res.Paragraphs)
	assert.Empty(t, f.store.calls, "nothing to composite")
	assert.Empty(t, f.trans.requests)
}

func TestTranslationFailureKeepsCover(t *testing.T) {
	tests := []struct {
		name  string
		setup func(m *mapTranslator)
	}{
		{"error", func(m *mapTranslator) { m.err = errors.New("api down") }},
		{"empty output", func(m *mapTranslator) { m.table = map[string]string{"Hello world": "  "} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(1)
			tt.setup(f.trans)

			res, err := f.pagePipeline(t, 1).Process(context.Background(), f.store.pages[0])
			require.NoError(t, err)
			assert.Equal(t, 1, res.Failures)
			assert.Zero(t, res.Translated)
			assert.Len(t, res.CoverOps, 1)
			assert.Empty(t, res.TextOps)

			require.Len(t, f.store.calls, 1)
			assert.True(t, f.store.calls[0].cover)
			assert.False(t, f.store.calls[0].text)
		})
	}
}

func TestParagraphConcurrencyIsBounded(t *testing.T) {
	f := newFixture(1)
	var regions []paragraph.Region
	var fragments []paragraph.Fragment
	for i := 0; i < 6; i++ {
		y := float64(20 + i*100)
		regions = append(regions, paragraph.Region{Rect: geometry.Rectangle{X1: 50, Y1: y, X2: 250, Y2: y + 80}, Kind: paragraph.KindText})
		text := fmt.Sprintf("para %d", i)
		fragments = append(fragments, paragraph.Fragment{Rect: geometry.Rectangle{X1: 60, Y1: y + 10, X2: 200, Y2: y + 30}, Text: text})
		f.trans.table[text] = fmt.Sprintf("t%d", i)
	}
	f.detect.regions = regions
	f.extr.fragments = fragments
	f.trans.holdFor = 20 * time.Millisecond

	res, err := f.pagePipeline(t, 2).Process(context.Background(), f.store.pages[0])
	require.NoError(t, err)
	assert.Equal(t, 6, res.Translated)
	assert.LessOrEqual(t, atomic.LoadInt32(&f.trans.peak), int32(2))

	require.Len(t, res.TextOps, 6)
	for i, op := range res.TextOps {
		assert.Equal(t, []string{fmt.Sprintf("t%d", i)}, op.Lines, "drawn in unit order")
	}
}

func TestDocumentPageCount(t *testing.T) {
	for _, spread := range []bool{false, true} {
		t.Run(fmt.Sprintf("spread=%v", spread), func(t *testing.T) {
			f := newFixture(3)
			doc, report, err := f.documentPipeline(t, DocumentOptions{Spread: spread}).Run(context.Background(), "in.pdf")
			require.NoError(t, err)

			want := 3
			if spread {
				want = 6
			}
			assert.Equal(t, want, doc.Len())
			assert.Equal(t, 3, report.Pages)
			assert.Equal(t, 3, report.Paragraphs)
			assert.Equal(t, 3, report.Translated)
			assert.Empty(t, report.FallbackPages)

			var paths []string
			for _, p := range doc.Pages() {
				paths = append(paths, p.Path)
			}
			if spread {
				assert.Equal(t, []string{"src-1.pdf", "out-1.pdf", "src-2.pdf", "out-2.pdf", "src-3.pdf", "out-3.pdf"}, paths)
			} else {
				assert.Equal(t, []string{"out-1.pdf", "out-2.pdf", "out-3.pdf"}, paths)
			}
		})
	}
}

func TestDocumentFallbacks(t *testing.T) {
	f := newFixture(3)
	f.store.fail = map[int]bool{2: true}
	f.raster.fail = map[int]bool{3: true}

	doc, report, err := f.documentPipeline(t, DocumentOptions{Spread: true}).Run(context.Background(), "in.pdf")
	require.NoError(t, err)

	assert.Equal(t, 6, doc.Len(), "page count holds with fallbacks")
	assert.Equal(t, []int{2, 3}, report.FallbackPages)
	assert.Equal(t, 1, report.Translated)

	pages := doc.Pages()
	assert.Equal(t, "src-2.pdf", pages[3].Path)
	assert.Equal(t, "src-3.pdf", pages[5].Path)
}

func TestDocumentEmpty(t *testing.T) {
	f := newFixture(0)
	_, _, err := f.documentPipeline(t, DocumentOptions{}).Run(context.Background(), "in.pdf")
	require.Error(t, err)

	var perr *Error
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, ErrEmptyDocument, perr.Code)
}

func TestDocumentOrderUnderConcurrency(t *testing.T) {
	f := newFixture(5)
	f.raster.delay = func(page int) time.Duration {
		return time.Duration(6-page) * 5 * time.Millisecond
	}

	var progress []int
	d := f.documentPipeline(t, DocumentOptions{
		Concurrency: 4,
		Progress:    func(done, total int) { progress = append(progress, done*10+total) },
	})
	doc, _, err := d.Run(context.Background(), "in.pdf")
	require.NoError(t, err)

	for i, p := range doc.Pages() {
		assert.Equal(t, i+1, p.Number)
	}
	assert.Equal(t, []int{15, 25, 35, 45, 55}, progress)
}

func TestDocumentIdempotent(t *testing.T) {
	run := func() ([]overlay.Op, []overlay.Op) {
		f := newFixture(1)
		res, err := f.pagePipeline(t, 1).Process(context.Background(), f.store.pages[0])
		require.NoError(t, err)
		return res.CoverOps, res.TextOps
	}
	c1, t1 := run()
	c2, t2 := run()
	assert.Equal(t, c1, c2)
	assert.Equal(t, t1, t2)
}

func TestDocumentCancelled(t *testing.T) {
	f := newFixture(2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := f.documentPipeline(t, DocumentOptions{}).Run(ctx, "in.pdf")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConstructorsRequireCollaborators(t *testing.T) {
	f := newFixture(1)
	_, err := NewPagePipeline(PageConfig{}, nil, f.detect, f.extr, f.trans, f.store)
	assert.Error(t, err)
	_, err = NewPagePipeline(PageConfig{}, f.raster, f.detect, f.extr, nil, f.store)
	assert.Error(t, err)

	_, err = NewDocumentPipeline(f.store, nil, DocumentOptions{})
	assert.Error(t, err)
}

func TestErrorFormatting(t *testing.T) {
	cause := errors.New("boom")
	err := NewPageError(ErrCompositeFailed, "compositing failed", 4, cause)
	assert.Equal(t, "page 4: compositing failed: boom", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "document has no pages", NewError(ErrEmptyDocument, "document has no pages", nil).Error())
}
