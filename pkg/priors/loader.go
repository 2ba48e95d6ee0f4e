// Package priors supplies initial class parameters for a fitting run.
package priors

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/stat"

	"emsegment/internal/models"
	"emsegment/pkg/imageio"
)

// ErrPriorsNotImplemented is returned by the NotImplemented loader
var ErrPriorsNotImplemented = errors.New("prior loading is not implemented")

// Loader produces initial class parameters from a list of files
type Loader interface {
	Load(paths []string) (models.ClassParameters, error)
}

// NotImplemented is a placeholder loader that always fails
type NotImplemented struct{}

// Load always returns ErrPriorsNotImplemented
func (NotImplemented) Load(paths []string) (models.ClassParameters, error) {
	return models.ClassParameters{}, fmt.Errorf("%w (%d paths given)", ErrPriorsNotImplemented, len(paths))
}

// SampleLoader estimates priors from sample images, one per class. Each image
// holds pixels known to belong to that class; its population mean and
// standard deviation become the class's initial parameters.
type SampleLoader struct {
	Decoder imageio.Decoder
}

// NewSampleLoader creates a SampleLoader reading from the filesystem
func NewSampleLoader() *SampleLoader {
	return &SampleLoader{Decoder: imageio.FileDecoder{}}
}

// Load implements Loader
func (l *SampleLoader) Load(paths []string) (models.ClassParameters, error) {
	if len(paths) == 0 {
		return models.ClassParameters{}, errors.New("no prior sample paths given")
	}

	means := make([]float64, len(paths))
	stds := make([]float64, len(paths))
	for i, path := range paths {
		img, err := l.Decoder.Decode(path)
		if err != nil {
			return models.ClassParameters{}, fmt.Errorf("failed to load prior sample %s: %w", path, err)
		}
		samples := img.Vector()
		if len(samples) == 0 {
			return models.ClassParameters{}, fmt.Errorf("prior sample %s is empty", path)
		}
		means[i] = stat.Mean(samples, nil)
		if len(samples) > 1 {
			stds[i] = stat.PopStdDev(samples, nil)
		}
	}

	return models.ClassParameters{Means: means, Stds: stds}, nil
}

// New returns the loader registered under name. "none" and "" yield a nil
// loader, meaning the configured initial parameters are used.
func New(name string) (Loader, error) {
	switch name {
	case "", "none":
		return nil, nil
	case "stub":
		return NotImplemented{}, nil
	case "samples":
		return NewSampleLoader(), nil
	default:
		return nil, fmt.Errorf("unknown prior loader %q", name)
	}
}
