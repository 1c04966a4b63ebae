package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapperToPage(t *testing.T) {
	tests := []struct {
		name  string
		image Size
		page  Size
		in    Rectangle
		want  Rectangle
	}{
		{
			name:  "72 dpi letter page is identity scale with flipped Y",
			image: Size{612, 792},
			page:  Size{612, 792},
			in:    Rectangle{100, 200, 500, 300},
			want:  Rect(100, 492, 400, 100),
		},
		{
			name:  "144 dpi halves coordinates",
			image: Size{1224, 1584},
			page:  Size{612, 792},
			in:    Rectangle{200, 400, 1000, 600},
			want:  Rect(100, 492, 400, 100),
		},
		{
			name:  "anisotropic scale",
			image: Size{100, 200},
			page:  Size{300, 100},
			in:    Rectangle{10, 20, 30, 60},
			want:  Rect(30, 70, 60, 20),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewMapper(tt.image, tt.page)
			require.NoError(t, err)

			got := m.ToPage(tt.in)
			assert.InDelta(t, tt.want.X1, got.X1, 1e-9)
			assert.InDelta(t, tt.want.Y1, got.Y1, 1e-9)
			assert.InDelta(t, tt.want.Width(), got.Width(), 1e-9)
			assert.InDelta(t, tt.want.Height(), got.Height(), 1e-9)
		})
	}
}

func TestMapperRoundTrip(t *testing.T) {
	m, err := NewMapper(Size{1700, 2200}, Size{612, 792})
	require.NoError(t, err)

	rects := []Rectangle{
		{0, 0, 1700, 2200},
		{12.5, 33.25, 400.75, 90},
		{1000, 2100, 1650, 2199.5},
	}
	for _, r := range rects {
		back := m.ToImage(m.ToPage(r))
		assert.InDelta(t, r.X1, back.X1, 1e-6)
		assert.InDelta(t, r.Y1, back.Y1, 1e-6)
		assert.InDelta(t, r.X2, back.X2, 1e-6)
		assert.InDelta(t, r.Y2, back.Y2, 1e-6)
	}
}

func TestNewMapperRejectsZeroSizes(t *testing.T) {
	_, err := NewMapper(Size{0, 100}, Size{612, 792})
	assert.Error(t, err)

	_, err = NewMapper(Size{100, 100}, Size{612, 0})
	assert.Error(t, err)
}

func TestRectangleOperations(t *testing.T) {
	a := Rectangle{0, 0, 10, 10}
	b := Rectangle{5, 5, 15, 15}

	assert.Equal(t, 10.0, a.Width())
	assert.Equal(t, 100.0, a.Area())
	assert.Equal(t, Rectangle{0, 0, 15, 15}, a.Union(b))
	assert.Equal(t, Rectangle{5, 5, 10, 10}, a.Intersection(b))
	assert.InDelta(t, 25.0/175.0, a.IoU(b), 1e-9)
	assert.Equal(t, Rectangle{}, a.Intersection(Rectangle{20, 20, 30, 30}))
	assert.Equal(t, 0.0, a.IoU(Rectangle{20, 20, 30, 30}))

	assert.True(t, a.IsValid())
	assert.False(t, Rectangle{10, 0, 0, 10}.IsValid())
	assert.Equal(t, Rectangle{2, 3, 12, 13}, a.Translate(2, 3))
	assert.Equal(t, Rectangle{0, 0, 20, 5}, a.Scale(2, 0.5))
}
