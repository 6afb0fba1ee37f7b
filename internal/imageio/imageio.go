// Package imageio decodes fundus photographs and annotation masks into
// float32 planes and writes probability maps back out as PNG.
//
// DRIVE ships TIFF photographs and GIF masks; registering the decoders via
// blank imports lets image.Decode dispatch on the file contents.
package imageio

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/tiff"
)

// DecodeRGB reads an image and returns its pixels as CHW float32 planes
// scaled to [0,1], plus height and width.
func DecodeRGB(path string) ([]float32, int, int, error) {
	img, err := decode(path)
	if err != nil {
		return nil, 0, 0, err
	}
	bounds := img.Bounds()
	h, w := bounds.Dy(), bounds.Dx()

	data := make([]float32, 3*h*w)
	plane := h * w
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			i := y*w + x
			data[i] = float32(r>>8) / 255.0
			data[plane+i] = float32(g>>8) / 255.0
			data[2*plane+i] = float32(b>>8) / 255.0
		}
	}
	return data, h, w, nil
}

// DecodeGray reads an image and returns its luminance as a single HW
// float32 plane scaled to [0,1], plus height and width.
func DecodeGray(path string) ([]float32, int, int, error) {
	img, err := decode(path)
	if err != nil {
		return nil, 0, 0, err
	}
	bounds := img.Bounds()
	h, w := bounds.Dy(), bounds.Dx()

	data := make([]float32, h*w)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			g := color.GrayModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray)
			data[y*w+x] = float32(g.Y) / 255.0
		}
	}
	return data, h, w, nil
}

// DecodeBinary reads an annotation mask and returns it as a 0/1 float32
// plane. Any pixel above half intensity counts as foreground.
func DecodeBinary(path string) ([]float32, int, int, error) {
	data, h, w, err := DecodeGray(path)
	if err != nil {
		return nil, 0, 0, err
	}
	for i, v := range data {
		if v > 0.5 {
			data[i] = 1
		} else {
			data[i] = 0
		}
	}
	return data, h, w, nil
}

func decode(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// EncodeGrayPNG writes an HW float32 plane as an 8-bit grayscale PNG,
// clamping values to [0,1].
func EncodeGrayPNG(path string, data []float32, h, w int) error {
	if len(data) != h*w {
		return fmt.Errorf("plane size %d does not match %dx%d", len(data), h, w)
	}
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := data[y*w+x]
			if v < 0 {
				v = 0
			} else if v > 1 {
				v = 1
			}
			img.SetGray(x, y, color.Gray{Y: uint8(v*255 + 0.5)})
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create image: %w", err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return nil
}
