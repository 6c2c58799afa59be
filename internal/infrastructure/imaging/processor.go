// Package imaging implements the image pipeline of the media library.
package imaging

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"math"

	mediaapp "github.com/backoffice/saas/internal/application/media"
	"github.com/backoffice/saas/internal/domain/media"
	"github.com/backoffice/saas/internal/domain/shared"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // registers the webp decoder
)

var _ mediaapp.ImageProcessor = (*Processor)(nil)

const jpegQuality = 88

// Processor edits images with disintegration/imaging
type Processor struct {
	maxPixels int
}

// NewProcessor creates a processor. Images above maxPixels (width*height)
// are refused before decoding; 0 selects 64 megapixels.
func NewProcessor(maxPixels int) *Processor {
	if maxPixels <= 0 {
		maxPixels = 64 << 20
	}
	return &Processor{maxPixels: maxPixels}
}

// Dimensions implements media.ImageProcessor
func (p *Processor) Dimensions(data []byte) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, shared.InvalidInput("cannot read image: %v", err)
	}
	return cfg.Width, cfg.Height, nil
}

func (p *Processor) decode(data []byte) (image.Image, error) {
	w, h, err := p.Dimensions(data)
	if err != nil {
		return nil, err
	}
	if w*h > p.maxPixels {
		return nil, shared.InvalidInput("image of %dx%d pixels is too large to process", w, h)
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, shared.InvalidInput("cannot decode image: %v", err)
	}
	return img, nil
}

// Transform implements media.ImageProcessor
func (p *Processor) Transform(data []byte, mimeType string, ops []media.Operation) (*mediaapp.Image, error) {
	if !media.IsImageType(mimeType) {
		return nil, shared.InvalidInput("only images can be transformed")
	}
	if err := media.ValidateOperations(ops); err != nil {
		return nil, err
	}
	img, err := p.decode(data)
	if err != nil {
		return nil, err
	}
	opaque := media.NormalizeMimeType(mimeType) == media.MimeJPEG
	for i, op := range ops {
		img, err = p.apply(img, op, opaque)
		if err != nil {
			if de, ok := err.(*shared.DomainError); ok {
				return nil, de.WithDetail("operation", i)
			}
			return nil, err
		}
	}
	return encode(img, mimeType)
}

// Thumbnail implements media.ImageProcessor
func (p *Processor) Thumbnail(data []byte, size int) (*mediaapp.Image, error) {
	if size <= 0 {
		return nil, fmt.Errorf("thumbnail size must be positive")
	}
	img, err := p.decode(data)
	if err != nil {
		return nil, err
	}
	thumb := imaging.Fit(img, size, size, imaging.Lanczos)
	b := thumb.Bounds()
	// jpeg has no alpha channel
	flat := imaging.Overlay(imaging.New(b.Dx(), b.Dy(), color.White), thumb, image.Pt(0, 0), 1)
	return encode(flat, media.MimeJPEG)
}

func (p *Processor) apply(img image.Image, op media.Operation, opaque bool) (image.Image, error) {
	switch op.Type {
	case media.OpCrop:
		b := img.Bounds()
		rect := image.Rect(op.X, op.Y, op.X+op.Width, op.Y+op.Height).Add(b.Min).Intersect(b)
		if rect.Empty() {
			return nil, shared.InvalidInput("crop area lies outside the image")
		}
		return imaging.Crop(img, rect), nil
	case media.OpResize:
		w, h := resizeTarget(img.Bounds(), op)
		if err := p.checkOutput(w, h); err != nil {
			return nil, err
		}
		if op.Mode == media.ResizeFill {
			return imaging.Fill(img, w, h, imaging.Center, imaging.Lanczos), nil
		}
		return imaging.Resize(img, w, h, imaging.Lanczos), nil
	case media.OpRotate:
		w, h := rotatedBounds(img.Bounds(), op.Degrees)
		if err := p.checkOutput(w, h); err != nil {
			return nil, err
		}
		return rotate(img, op.Degrees, opaque), nil
	case media.OpFlip:
		if op.Direction == "vertical" {
			return imaging.FlipV(img), nil
		}
		return imaging.FlipH(img), nil
	case media.OpFilter:
		return filter(img, op), nil
	}
	return nil, shared.InvalidInput("unknown operation %q", op.Type)
}

// checkOutput refuses results above MaxDimension per side or maxPixels in total
func (p *Processor) checkOutput(w, h int) error {
	if w > media.MaxDimension || h > media.MaxDimension {
		return shared.InvalidInput("result of %dx%d pixels exceeds %d pixels per side", w, h, media.MaxDimension).
			WithDetail("width", w).
			WithDetail("height", h)
	}
	if w*h > p.maxPixels {
		return shared.InvalidInput("result of %dx%d pixels is too large to process", w, h)
	}
	return nil
}

// resizeTarget returns the size the resize produces. A zero side keeps the
// aspect ratio; fit scales up as well as down.
func resizeTarget(b image.Rectangle, op media.Operation) (int, int) {
	sw, sh := float64(b.Dx()), float64(b.Dy())
	switch {
	case op.Mode == media.ResizeFill, op.Mode == media.ResizeExact && op.Width > 0 && op.Height > 0:
		return op.Width, op.Height
	case op.Width == 0:
		return scaled(sw * float64(op.Height) / sh), op.Height
	case op.Height == 0:
		return op.Width, scaled(sh * float64(op.Width) / sw)
	}
	scale := math.Min(float64(op.Width)/sw, float64(op.Height)/sh)
	return scaled(sw * scale), scaled(sh * scale)
}

func scaled(v float64) int {
	return int(math.Max(1, math.Round(v)))
}

// rotatedBounds is the canvas size after rotating by degrees
func rotatedBounds(b image.Rectangle, degrees float64) (int, int) {
	rad := degrees * math.Pi / 180
	c, s := math.Abs(math.Cos(rad)), math.Abs(math.Sin(rad))
	w, h := float64(b.Dx()), float64(b.Dy())
	// sin and cos of right angles are not exact zeros
	const eps = 1e-9
	return int(math.Ceil(w*c+h*s-eps)), int(math.Ceil(w*s+h*c-eps))
}

// rotate turns clockwise by degrees
func rotate(img image.Image, degrees float64, opaque bool) image.Image {
	d := math.Mod(degrees, 360)
	if d < 0 {
		d += 360
	}
	switch d {
	case 0:
		return img
	case 90:
		return imaging.Rotate270(img)
	case 180:
		return imaging.Rotate180(img)
	case 270:
		return imaging.Rotate90(img)
	}
	bg := color.Color(color.Transparent)
	if opaque {
		bg = color.White
	}
	// imaging rotates counter-clockwise
	return imaging.Rotate(img, -d, bg)
}

func filter(img image.Image, op media.Operation) image.Image {
	switch op.Filter {
	case media.FilterGrayscale:
		return imaging.Grayscale(img)
	case media.FilterSepia:
		return imaging.AdjustFunc(img, sepia)
	case media.FilterInvert:
		return imaging.Invert(img)
	case media.FilterBlur:
		return imaging.Blur(img, op.Amount)
	case media.FilterSharpen:
		return imaging.Sharpen(img, op.Amount)
	case media.FilterBrightness:
		return imaging.AdjustBrightness(img, op.Amount)
	case media.FilterContrast:
		return imaging.AdjustContrast(img, op.Amount)
	case media.FilterSaturation:
		return imaging.AdjustSaturation(img, op.Amount)
	}
	return img
}

func sepia(c color.NRGBA) color.NRGBA {
	r, g, b := float64(c.R), float64(c.G), float64(c.B)
	return color.NRGBA{
		R: clamp(0.393*r + 0.769*g + 0.189*b),
		G: clamp(0.349*r + 0.686*g + 0.168*b),
		B: clamp(0.272*r + 0.534*g + 0.131*b),
		A: c.A,
	}
}

func clamp(v float64) uint8 {
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}

// encode keeps the source format; webp has no encoder and becomes png
func encode(img image.Image, mimeType string) (*mediaapp.Image, error) {
	var (
		format imaging.Format
		opts   []imaging.EncodeOption
		out    string
	)
	switch media.NormalizeMimeType(mimeType) {
	case media.MimeJPEG:
		format, out = imaging.JPEG, media.MimeJPEG
		opts = append(opts, imaging.JPEGQuality(jpegQuality))
	case media.MimeGIF:
		format, out = imaging.GIF, media.MimeGIF
	default:
		format, out = imaging.PNG, media.MimePNG
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format, opts...); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	b := img.Bounds()
	return &mediaapp.Image{Data: buf.Bytes(), MimeType: out, Width: b.Dx(), Height: b.Dy()}, nil
}
