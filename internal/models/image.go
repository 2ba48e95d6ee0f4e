package models

import (
	"fmt"

	"golang.org/x/exp/constraints"
)

// Image is a grayscale image held as real-valued intensities
type Image struct {
	// Pixels holds the intensities in row-major order
	Pixels []float64

	// Width is the number of columns
	Width int

	// Height is the number of rows
	Height int
}

// NewImage wraps row-major pixel data, checking it matches the dimensions
func NewImage(pixels []float64, width, height int) (*Image, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("image dimensions must be positive, got %dx%d", width, height)
	}
	if len(pixels) != width*height {
		return nil, fmt.Errorf("pixel count %d does not match %dx%d", len(pixels), width, height)
	}
	return &Image{Pixels: pixels, Width: width, Height: height}, nil
}

// FromMatrix builds an Image from a 2D array of integer or floating point
// intensities. Every row must have the same length.
func FromMatrix[T constraints.Integer | constraints.Float](rows [][]T) (*Image, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("image matrix is empty")
	}

	height := len(rows)
	width := len(rows[0])
	pixels := make([]float64, 0, width*height)

	for y, row := range rows {
		if len(row) != width {
			return nil, fmt.Errorf("row %d has %d columns, expected %d", y, len(row), width)
		}
		for _, v := range row {
			pixels = append(pixels, float64(v))
		}
	}

	return &Image{Pixels: pixels, Width: width, Height: height}, nil
}

// Vector returns the flattened pixel view used during fitting. The caller must
// not modify it.
func (img *Image) Vector() []float64 {
	return img.Pixels
}

// At returns the intensity at column x, row y
func (img *Image) At(x, y int) float64 {
	return img.Pixels[y*img.Width+x]
}
