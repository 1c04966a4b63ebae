package layout

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"

	"pdf-layout-translator/internal/logger"
)

// letterboxFill is the padding gray used by YOLO letterboxing.
var letterboxFill = color.RGBA{R: 114, G: 114, B: 114, A: 255}

// Letterbox records how an image was fitted into the square model input.
type Letterbox struct {
	Scale float64
	PadX  float64
	PadY  float64
}

// ToImage maps a model-input coordinate back to the source image.
func (l Letterbox) ToImage(x, y float64) (float64, float64) {
	return (x - l.PadX) / l.Scale, (y - l.PadY) / l.Scale
}

// Preprocessor converts page images into the model's input tensor.
type Preprocessor struct {
	targetSize int
	mean       [3]float32
	std        [3]float32
}

// NewPreprocessor returns a preprocessor producing [1, 3, size, size]
// tensors with pixel values scaled to [0, 1].
func NewPreprocessor(size int) *Preprocessor {
	return &Preprocessor{
		targetSize: size,
		mean:       [3]float32{0, 0, 0},
		std:        [3]float32{1, 1, 1},
	}
}

// Shape returns the tensor shape produced by Preprocess.
func (p *Preprocessor) Shape() []int64 {
	return []int64{1, 3, int64(p.targetSize), int64(p.targetSize)}
}

// Preprocess letterboxes img into the square input and returns the CHW
// float tensor data with the transform needed to map detections back.
func (p *Preprocessor) Preprocess(img image.Image) ([]float32, Letterbox) {
	boxed, lb := p.letterbox(img)

	logger.Debug("image preprocessed",
		logger.Int("originalWidth", img.Bounds().Dx()),
		logger.Int("originalHeight", img.Bounds().Dy()),
		logger.Int("targetSize", p.targetSize),
		logger.Float64("scale", lb.Scale))

	return p.toTensor(boxed), lb
}

func (p *Preprocessor) letterbox(img image.Image) (*image.RGBA, Letterbox) {
	size := p.targetSize
	b := img.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())

	scale := float64(size) / w
	if s := float64(size) / h; s < scale {
		scale = s
	}
	newW := int(w*scale + 0.5)
	newH := int(h*scale + 0.5)
	padX := (size - newW) / 2
	padY := (size - newH) / 2

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: letterboxFill}, image.Point{}, draw.Src)
	target := image.Rect(padX, padY, padX+newW, padY+newH)
	draw.BiLinear.Scale(dst, target, img, b, draw.Src, nil)

	return dst, Letterbox{Scale: scale, PadX: float64(padX), PadY: float64(padY)}
}

// toTensor lays out RGB planes one after another (CHW).
func (p *Preprocessor) toTensor(img *image.RGBA) []float32 {
	size := p.targetSize
	plane := size * size
	data := make([]float32, 3*plane)

	for y := 0; y < size; y++ {
		row := img.Pix[y*img.Stride:]
		for x := 0; x < size; x++ {
			px := row[x*4:]
			i := y*size + x
			data[i] = (float32(px[0])/255 - p.mean[0]) / p.std[0]
			data[plane+i] = (float32(px[1])/255 - p.mean[1]) / p.std[1]
			data[2*plane+i] = (float32(px[2])/255 - p.mean[2]) / p.std[2]
		}
	}
	return data
}
