package models

import "fmt"

// Unassigned marks a pixel for which no class produced a positive density
const Unassigned = -1

// Assignment holds, for each pixel, the index of the class it belongs to or
// Unassigned
type Assignment []int

// Count returns how many pixels are assigned to class k
func (a Assignment) Count(k int) int {
	n := 0
	for _, c := range a {
		if c == k {
			n++
		}
	}
	return n
}

// ClassParameters holds one Gaussian (mean, standard deviation) pair per class.
// Means and Stds always have the same length K.
type ClassParameters struct {
	Means []float64
	Stds  []float64
}

// NewClassParameters copies means and stds into a new parameter set
func NewClassParameters(means, stds []float64) (ClassParameters, error) {
	if len(means) != len(stds) {
		return ClassParameters{}, fmt.Errorf("got %d means but %d standard deviations", len(means), len(stds))
	}
	return ClassParameters{
		Means: append([]float64(nil), means...),
		Stds:  append([]float64(nil), stds...),
	}, nil
}

// K returns the number of classes
func (p ClassParameters) K() int {
	return len(p.Means)
}

// Clone returns a deep copy
func (p ClassParameters) Clone() ClassParameters {
	return ClassParameters{
		Means: append([]float64(nil), p.Means...),
		Stds:  append([]float64(nil), p.Stds...),
	}
}

// ClassStats is the maximization result for one class. A class with
// Count == 0 received no pixels and carries no estimate.
type ClassStats struct {
	Mean  float64
	Std   float64
	Count int
}

// Empty reports whether the class received no pixels
func (s ClassStats) Empty() bool {
	return s.Count == 0
}
