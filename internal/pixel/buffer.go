package pixel

import (
	"errors"
	"fmt"
	"image"
)

// Buffer is an owned rectangular grid of RGB triples, one byte per channel.
// A Buffer belongs to exactly one pipeline run at a time; stages mutate it in
// place and must never share it across goroutines.
type Buffer struct {
	Width  int
	Height int
	Pix    []uint8 // interleaved R, G, B; len == 3*Width*Height
}

// BufferError reports an invalid buffer operation.
type BufferError struct {
	Operation string
	Err       error
}

func (e *BufferError) Error() string {
	return fmt.Sprintf("pixel buffer error in %s: %v", e.Operation, e.Err)
}

func (e *BufferError) Unwrap() error { return e.Err }

// New allocates a zeroed buffer of the given dimensions.
func New(width, height int) (*Buffer, error) {
	if width <= 0 || height <= 0 {
		return nil, &BufferError{
			Operation: "new",
			Err:       fmt.Errorf("invalid dimensions: %dx%d", width, height),
		}
	}
	return &Buffer{
		Width:  width,
		Height: height,
		Pix:    make([]uint8, 3*width*height),
	}, nil
}

// Pixels returns the total pixel count.
func (b *Buffer) Pixels() int { return b.Width * b.Height }

// At returns the RGB triple at (x, y). Bounds are not checked.
func (b *Buffer) At(x, y int) (r, g, bl uint8) {
	i := 3 * (y*b.Width + x)
	return b.Pix[i], b.Pix[i+1], b.Pix[i+2]
}

// Set stores the RGB triple at (x, y). Bounds are not checked.
func (b *Buffer) Set(x, y int, r, g, bl uint8) {
	i := 3 * (y*b.Width + x)
	b.Pix[i] = r
	b.Pix[i+1] = g
	b.Pix[i+2] = bl
}

// Clone returns a deep copy with its own pixel storage.
func (b *Buffer) Clone() *Buffer {
	pix := make([]uint8, len(b.Pix))
	copy(pix, b.Pix)
	return &Buffer{Width: b.Width, Height: b.Height, Pix: pix}
}

// Fill sets every pixel to the given RGB triple.
func (b *Buffer) Fill(r, g, bl uint8) {
	for i := 0; i < len(b.Pix); i += 3 {
		b.Pix[i] = r
		b.Pix[i+1] = g
		b.Pix[i+2] = bl
	}
}

// FromImage copies an image.Image into a new Buffer, dropping alpha.
func FromImage(img image.Image) (*Buffer, error) {
	if img == nil {
		return nil, &BufferError{Operation: "from_image", Err: errors.New("input image is nil")}
	}
	bounds := img.Bounds()
	buf, err := New(bounds.Dx(), bounds.Dy())
	if err != nil {
		return nil, err
	}
	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			buf.Pix[i] = uint8(r >> 8)
			buf.Pix[i+1] = uint8(g >> 8)
			buf.Pix[i+2] = uint8(bl >> 8)
			i += 3
		}
	}
	return buf, nil
}

// Image materializes the buffer as an *image.NRGBA with opaque alpha.
func (b *Buffer) Image() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, b.Width, b.Height))
	src := 0
	for y := 0; y < b.Height; y++ {
		dst := y * img.Stride
		for x := 0; x < b.Width; x++ {
			img.Pix[dst] = b.Pix[src]
			img.Pix[dst+1] = b.Pix[src+1]
			img.Pix[dst+2] = b.Pix[src+2]
			img.Pix[dst+3] = 255
			src += 3
			dst += 4
		}
	}
	return img
}
