package imaging

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/backoffice/saas/internal/domain/media"
	"github.com/backoffice/saas/internal/domain/shared"
	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testImage(t *testing.T, w, h int, format imaging.Format) []byte {
	t.Helper()
	img := imaging.New(w, h, color.NRGBA{R: 200, G: 40, B: 40, A: 255})
	// mark the top-left corner so flips and rotations are observable
	img = imaging.Paste(img, imaging.New(10, 10, color.NRGBA{B: 255, A: 255}), image.Pt(0, 0))
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, format))
	return buf.Bytes()
}

func decoded(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := imaging.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img
}

func TestProcessor_Dimensions(t *testing.T) {
	p := NewProcessor(0)
	w, h, err := p.Dimensions(testImage(t, 120, 80, imaging.PNG))
	require.NoError(t, err)
	assert.Equal(t, 120, w)
	assert.Equal(t, 80, h)

	_, _, err = p.Dimensions([]byte("not an image"))
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestProcessor_Transform(t *testing.T) {
	p := NewProcessor(0)
	src := testImage(t, 200, 100, imaging.PNG)

	tests := []struct {
		name   string
		ops    []media.Operation
		width  int
		height int
	}{
		{"crop", []media.Operation{{Type: media.OpCrop, X: 10, Y: 10, Width: 50, Height: 40}}, 50, 40},
		{"crop clipped to bounds", []media.Operation{{Type: media.OpCrop, X: 150, Y: 50, Width: 500, Height: 500}}, 50, 50},
		{"resize width keeps ratio", []media.Operation{{Type: media.OpResize, Width: 100}}, 100, 50},
		{"resize fit", []media.Operation{{Type: media.OpResize, Width: 50, Height: 50, Mode: media.ResizeFit}}, 50, 25},
		{"resize fit enlarges", []media.Operation{{Type: media.OpResize, Width: 400, Height: 400}}, 400, 200},
		{"resize fill", []media.Operation{{Type: media.OpResize, Width: 60, Height: 60, Mode: media.ResizeFill}}, 60, 60},
		{"resize exact", []media.Operation{{Type: media.OpResize, Width: 30, Height: 90, Mode: media.ResizeExact}}, 30, 90},
		{"rotate 90", []media.Operation{{Type: media.OpRotate, Degrees: 90}}, 100, 200},
		{"rotate -90", []media.Operation{{Type: media.OpRotate, Degrees: -90}}, 100, 200},
		{"rotate 180", []media.Operation{{Type: media.OpRotate, Degrees: 180}}, 200, 100},
		{"filters keep size", []media.Operation{
			{Type: media.OpFilter, Filter: media.FilterGrayscale},
			{Type: media.OpFilter, Filter: media.FilterSepia},
			{Type: media.OpFilter, Filter: media.FilterBlur, Amount: 1.5},
			{Type: media.OpFilter, Filter: media.FilterContrast, Amount: 20},
		}, 200, 100},
		{"pipeline in order", []media.Operation{
			{Type: media.OpCrop, X: 0, Y: 0, Width: 100, Height: 100},
			{Type: media.OpResize, Width: 40},
		}, 40, 40},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := p.Transform(src, media.MimePNG, tt.ops)
			require.NoError(t, err)
			assert.Equal(t, media.MimePNG, out.MimeType)
			assert.Equal(t, tt.width, out.Width)
			assert.Equal(t, tt.height, out.Height)
			b := decoded(t, out.Data).Bounds()
			assert.Equal(t, tt.width, b.Dx())
			assert.Equal(t, tt.height, b.Dy())
		})
	}
}

func TestProcessor_RotateIsClockwise(t *testing.T) {
	p := NewProcessor(0)
	out, err := p.Transform(testImage(t, 40, 20, imaging.PNG), media.MimePNG,
		[]media.Operation{{Type: media.OpRotate, Degrees: 90}})
	require.NoError(t, err)
	img := decoded(t, out.Data)
	// the blue top-left marker ends up top-right
	r, g, b, _ := img.At(img.Bounds().Dx()-2, 1).RGBA()
	assert.Equal(t, uint32(0), r>>8)
	assert.Equal(t, uint32(0), g>>8)
	assert.Equal(t, uint32(255), b>>8)
}

func TestProcessor_FlipHorizontal(t *testing.T) {
	p := NewProcessor(0)
	out, err := p.Transform(testImage(t, 40, 20, imaging.PNG), media.MimePNG,
		[]media.Operation{{Type: media.OpFlip, Direction: "horizontal"}})
	require.NoError(t, err)
	img := decoded(t, out.Data)
	_, _, b, _ := img.At(38, 1).RGBA()
	assert.Equal(t, uint32(255), b>>8)
}

func TestProcessor_KeepsJPEG(t *testing.T) {
	p := NewProcessor(0)
	out, err := p.Transform(testImage(t, 64, 64, imaging.JPEG), media.MimeJPEG,
		[]media.Operation{{Type: media.OpRotate, Degrees: 30}})
	require.NoError(t, err)
	assert.Equal(t, media.MimeJPEG, out.MimeType)
	assert.Equal(t, []byte{0xFF, 0xD8}, out.Data[:2])
}

func TestProcessor_Errors(t *testing.T) {
	p := NewProcessor(0)
	src := testImage(t, 50, 50, imaging.PNG)

	t.Run("crop outside the image", func(t *testing.T) {
		_, err := p.Transform(src, media.MimePNG, []media.Operation{{Type: media.OpCrop, X: 60, Y: 60, Width: 10, Height: 10}})
		require.Error(t, err)
		assert.Equal(t, shared.CodeInvalidInput, shared.ErrorCode(err))
	})

	t.Run("non-image types", func(t *testing.T) {
		_, err := p.Transform([]byte("%PDF-1.4"), media.MimePDF, []media.Operation{{Type: media.OpFlip, Direction: "vertical"}})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("too many pixels", func(t *testing.T) {
		small := NewProcessor(100)
		_, err := small.Transform(src, media.MimePNG, []media.Operation{{Type: media.OpFlip, Direction: "vertical"}})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("invalid operation", func(t *testing.T) {
		_, err := p.Transform(src, media.MimePNG, []media.Operation{{Type: "explode"}})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})
}

func TestProcessor_RefusesOversizedResults(t *testing.T) {
	p := NewProcessor(0)
	tall := testImage(t, 20, 400, imaging.PNG)

	tests := []struct {
		name string
		op   media.Operation
	}{
		{"width keeps ratio past the limit", media.Operation{Type: media.OpResize, Width: 1000}},
		{"fit enlarges past the limit", media.Operation{Type: media.OpResize, Width: 8000, Height: 8000}},
		{"exact with one side keeps ratio", media.Operation{Type: media.OpResize, Width: 500, Mode: media.ResizeExact}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Transform(tall, media.MimePNG, []media.Operation{tt.op})
			require.Error(t, err)
			assert.Equal(t, shared.CodeInvalidInput, shared.ErrorCode(err))
			var de *shared.DomainError
			require.ErrorAs(t, err, &de)
			assert.Equal(t, 0, de.Details["operation"])
		})
	}

	t.Run("pixel budget", func(t *testing.T) {
		small := NewProcessor(20 * 400)
		_, err := small.Transform(tall, media.MimePNG, []media.Operation{{Type: media.OpResize, Width: 40}})
		assert.Equal(t, shared.CodeInvalidInput, shared.ErrorCode(err))
	})

	t.Run("rotation grows the canvas", func(t *testing.T) {
		small := NewProcessor(64 * 64)
		src := testImage(t, 64, 64, imaging.PNG)
		_, err := small.Transform(src, media.MimePNG, []media.Operation{{Type: media.OpRotate, Degrees: 90}})
		require.NoError(t, err, "right angles keep the pixel count")
		_, err = small.Transform(src, media.MimePNG, []media.Operation{{Type: media.OpRotate, Degrees: 45}})
		assert.Equal(t, shared.CodeInvalidInput, shared.ErrorCode(err))
	})

	t.Run("within the limit", func(t *testing.T) {
		out, err := p.Transform(tall, media.MimePNG, []media.Operation{{Type: media.OpResize, Height: 8000}})
		require.NoError(t, err)
		assert.Equal(t, 400, out.Width)
		assert.Equal(t, 8000, out.Height)
	})
}

func TestProcessor_Thumbnail(t *testing.T) {
	p := NewProcessor(0)
	out, err := p.Thumbnail(testImage(t, 600, 300, imaging.PNG), 300)
	require.NoError(t, err)
	assert.Equal(t, media.MimeJPEG, out.MimeType)
	assert.Equal(t, 300, out.Width)
	assert.Equal(t, 150, out.Height)

	_, err = p.Thumbnail(testImage(t, 10, 10, imaging.PNG), 0)
	require.Error(t, err)
}
