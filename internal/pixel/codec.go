package pixel

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	// Register decoders for the formats the upload collaborator accepts.
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"github.com/disintegration/imaging"
)

// Decode parses raw image bytes (JPEG, PNG or WebP) into a Buffer.
func Decode(data []byte) (*Buffer, string, error) {
	if len(data) == 0 {
		return nil, "", &BufferError{Operation: "decode", Err: errors.New("empty input")}
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", &BufferError{Operation: "decode", Err: fmt.Errorf("unsupported or corrupt image: %w", err)}
	}
	buf, err := FromImage(img)
	if err != nil {
		return nil, "", err
	}
	return buf, format, nil
}

// EncodeJPEG serializes the buffer as JPEG with the given quality (1-100).
func EncodeJPEG(b *Buffer, quality int) ([]byte, error) {
	if b == nil || b.Pixels() == 0 {
		return nil, &BufferError{Operation: "encode", Err: errors.New("empty buffer")}
	}
	if quality < 1 || quality > 100 {
		return nil, &BufferError{Operation: "encode", Err: fmt.Errorf("invalid JPEG quality: %d", quality)}
	}
	var out bytes.Buffer
	if err := imaging.Encode(&out, b.Image(), imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, &BufferError{Operation: "encode", Err: err}
	}
	return out.Bytes(), nil
}

// ResizeToFit scales the buffer down (never up) so it fits within
// maxWidth x maxHeight, preserving aspect ratio. Lanczos resampling keeps
// architectural edges crisp.
func ResizeToFit(b *Buffer, maxWidth, maxHeight int) (*Buffer, error) {
	if b == nil {
		return nil, &BufferError{Operation: "resize", Err: errors.New("input buffer is nil")}
	}
	if maxWidth <= 0 || maxHeight <= 0 {
		return nil, &BufferError{
			Operation: "resize",
			Err:       fmt.Errorf("invalid target dimensions: %dx%d", maxWidth, maxHeight),
		}
	}
	if b.Width <= maxWidth && b.Height <= maxHeight {
		return b, nil
	}
	resized := imaging.Fit(b.Image(), maxWidth, maxHeight, imaging.Lanczos)
	return FromImage(resized)
}
