package testsupport

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

// TinyPNG returns a small valid PNG image for submission tests.
func TinyPNG(t testing.TB) []byte {
	t.Helper()
	return encodeTestImage(t, "png")
}

// TinyJPEG returns a small valid JPEG image for submission tests.
func TinyJPEG(t testing.TB) []byte {
	t.Helper()
	return encodeTestImage(t, "jpeg")
}

func encodeTestImage(t testing.TB, format string) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			img.Set(x, y, color.RGBA{R: uint8(40 * x), G: uint8(40 * y), B: 128, A: 255})
		}
	}

	var buf bytes.Buffer
	var err error
	switch format {
	case "jpeg":
		err = jpeg.Encode(&buf, img, nil)
	default:
		err = png.Encode(&buf, img)
	}
	if err != nil {
		t.Fatalf("encode %s test image: %v", format, err)
	}
	return buf.Bytes()
}
