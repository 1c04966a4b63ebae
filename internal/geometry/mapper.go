package geometry

import "fmt"

// Mapper converts rectangles between the raster image of a page and the
// page's own coordinate system. It scales independently on each axis and
// flips the vertical axis.
type Mapper struct {
	image Size
	page  Size
	sx    float64
	sy    float64
}

// NewMapper returns a mapper for an image of the given pixel size rendered
// from a page of the given point size.
func NewMapper(image, page Size) (Mapper, error) {
	if image.Width <= 0 || image.Height <= 0 {
		return Mapper{}, fmt.Errorf("invalid image size %vx%v", image.Width, image.Height)
	}
	if page.Width <= 0 || page.Height <= 0 {
		return Mapper{}, fmt.Errorf("invalid page size %vx%v", page.Width, page.Height)
	}
	return Mapper{
		image: image,
		page:  page,
		sx:    page.Width / image.Width,
		sy:    page.Height / image.Height,
	}, nil
}

// ImageSize returns the raster size the mapper was built for.
func (m Mapper) ImageSize() Size { return m.image }

// PageSize returns the page size the mapper was built for.
func (m Mapper) PageSize() Size { return m.page }

// Scale returns the horizontal and vertical image-to-page factors.
func (m Mapper) Scale() (sx, sy float64) { return m.sx, m.sy }

// ToPage maps an image-space rectangle to page space. The result's Y1 is the
// bottom edge: pageHeight - r.Y2*sy. Width and height are scaled directly.
func (m Mapper) ToPage(r Rectangle) Rectangle {
	x := r.X1 * m.sx
	y := m.page.Height - r.Y2*m.sy
	return Rect(x, y, r.Width()*m.sx, r.Height()*m.sy)
}

// ToImage is the inverse of ToPage.
func (m Mapper) ToImage(r Rectangle) Rectangle {
	x := r.X1 / m.sx
	bottom := (m.page.Height - r.Y1) / m.sy
	height := r.Height() / m.sy
	return Rectangle{X1: x, Y1: bottom - height, X2: x + r.Width()/m.sx, Y2: bottom}
}
