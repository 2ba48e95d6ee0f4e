package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"

	"emsegment/internal/models"
)

// LabelMap renders a pixel classification as a grayscale image
type LabelMap struct {
	// assignment holds one class index per pixel in row-major order
	assignment models.Assignment

	// dimensions of the source image
	width  int
	height int

	// numClasses is the number of classes K
	numClasses int
}

// NewLabelMap creates a label map for an assignment over a width x height image
func NewLabelMap(assignment models.Assignment, width, height, numClasses int) (*LabelMap, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("dimensions must be positive, got %dx%d", width, height)
	}
	if len(assignment) != width*height {
		return nil, fmt.Errorf("assignment has %d entries, expected %d", len(assignment), width*height)
	}
	if numClasses <= 0 {
		return nil, fmt.Errorf("number of classes must be positive")
	}

	return &LabelMap{
		assignment: assignment,
		width:      width,
		height:     height,
		numClasses: numClasses,
	}, nil
}

// Level returns the gray level used for class k. Classes are spread evenly
// over 0-255; a single class renders white.
func (m *LabelMap) Level(k int) uint8 {
	if m.numClasses == 1 {
		return 255
	}
	return uint8(math.Round(float64(k) * 255 / float64(m.numClasses-1)))
}

// Image renders the label map. Unassigned pixels are black.
func (m *LabelMap) Image() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, m.width, m.height))
	for y := 0; y < m.height; y++ {
		for x := 0; x < m.width; x++ {
			class := m.assignment[y*m.width+x]
			if class == models.Unassigned || class < 0 || class >= m.numClasses {
				continue
			}
			img.SetGray(x, y, color.Gray{Y: m.Level(class)})
		}
	}
	return img
}

// Save writes the label map as a PNG image
func (m *LabelMap) Save(filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return err
	}

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return png.Encode(file, m.Image())
}
