// Package imageio decodes image files into grayscale intensity arrays.
package imageio

import (
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"emsegment/internal/models"
)

// Decoder turns an image file into a grayscale intensity array
type Decoder interface {
	Decode(path string) (*models.Image, error)
}

// FileDecoder reads images from the local filesystem. PNG, JPEG, GIF, TIFF
// and BMP are supported.
type FileDecoder struct{}

// Decode implements Decoder
func (FileDecoder) Decode(path string) (*models.Image, error) {
	return Load(path)
}

// Load reads and decodes the image at path
func Load(path string) (*models.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	img, _, err := Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return img, nil
}

// Decode decodes an image stream and returns its intensities together with the
// detected format name
func Decode(r io.Reader) (*models.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", err
	}
	return FromImage(img), format, nil
}

// FromImage converts an image to intensities. 16-bit grayscale images keep
// their full 0-65535 range; everything else is reduced to 8-bit luminance.
func FromImage(img image.Image) *models.Image {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	pixels := make([]float64, width*height)

	switch src := img.(type) {
	case *image.Gray:
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				pixels[y*width+x] = float64(src.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y)
			}
		}
	case *image.Gray16:
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				pixels[y*width+x] = float64(src.Gray16At(bounds.Min.X+x, bounds.Min.Y+y).Y)
			}
		}
	default:
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				g := color.GrayModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.Gray)
				pixels[y*width+x] = float64(g.Y)
			}
		}
	}

	return &models.Image{Pixels: pixels, Width: width, Height: height}
}
