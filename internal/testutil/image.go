// Package testutil provides synthetic image generators for tests.
package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/propfoto/propfoto/internal/pixel"
)

// UniformBuffer returns a width x height buffer filled with one color.
func UniformBuffer(t *testing.T, width, height int, r, g, b uint8) *pixel.Buffer {
	t.Helper()
	buf, err := pixel.New(width, height)
	require.NoError(t, err)
	buf.Fill(r, g, b)
	return buf
}

// GradientBuffer returns a buffer sweeping from black on the left edge to
// white on the right, useful for exercising the full histogram range.
func GradientBuffer(t *testing.T, width, height int) *pixel.Buffer {
	t.Helper()
	buf, err := pixel.New(width, height)
	require.NoError(t, err)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := uint8(x * 255 / max(width-1, 1))
			buf.Set(x, y, v, v, v)
		}
	}
	return buf
}

// InteriorScene returns a plausible room exposure: mid gray walls, a dark
// floor band and a bright window block, so histogram statistics land in
// realistic ranges.
func InteriorScene(t *testing.T, width, height int) *pixel.Buffer {
	t.Helper()
	buf, err := pixel.New(width, height)
	require.NoError(t, err)
	buf.Fill(120, 115, 110)
	// Floor
	for y := height * 3 / 4; y < height; y++ {
		for x := 0; x < width; x++ {
			buf.Set(x, y, 70, 60, 50)
		}
	}
	// Window
	for y := height / 8; y < height/3; y++ {
		for x := width / 8; x < width/3; x++ {
			buf.Set(x, y, 245, 245, 240)
		}
	}
	return buf
}

// JPEGBytes encodes an image as JPEG for pipeline intake tests.
func JPEGBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var out bytes.Buffer
	require.NoError(t, jpeg.Encode(&out, img, &jpeg.Options{Quality: 90}))
	return out.Bytes()
}

// UniformJPEG encodes a width x height single-color JPEG.
func UniformJPEG(t *testing.T, width, height int, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return JPEGBytes(t, img)
}

// SceneJPEG encodes an interior-like scene as JPEG.
func SceneJPEG(t *testing.T, width, height int) []byte {
	t.Helper()
	buf := InteriorScene(t, width, height)
	return JPEGBytes(t, buf.Image())
}
