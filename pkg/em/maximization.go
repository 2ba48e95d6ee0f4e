package em

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"emsegment/internal/models"
)

// Maximization re-estimates each class from the pixels currently assigned to
// it. The result always holds k entries indexed by class; a class with no
// pixels is reported with Count 0. Unassigned pixels take no part.
//
// The standard deviation is the population standard deviation of the group,
// so a class whose pixels share one value gets exactly zero.
func Maximization(pixels []float64, assignment models.Assignment, k int) ([]models.ClassStats, error) {
	if len(pixels) != len(assignment) {
		return nil, fmt.Errorf("%w: %d pixels but %d assignments", ErrInvalidParams, len(pixels), len(assignment))
	}
	if k <= 0 {
		return nil, fmt.Errorf("%w: number of classes must be positive, got %d", ErrInvalidParams, k)
	}

	groups := make([][]float64, k)
	for i, class := range assignment {
		if class == models.Unassigned {
			continue
		}
		if class < 0 || class >= k {
			return nil, fmt.Errorf("%w: pixel %d assigned to class %d outside 0..%d", ErrInvalidParams, i, class, k-1)
		}
		groups[class] = append(groups[class], pixels[i])
	}

	result := make([]models.ClassStats, k)
	for c, group := range groups {
		switch len(group) {
		case 0:
			continue
		case 1:
			result[c] = models.ClassStats{Mean: group[0], Count: 1}
			continue
		}
		mean, variance := stat.PopMeanVariance(group, nil)
		// Rounding can leave a tiny negative variance for near-constant groups
		result[c] = models.ClassStats{
			Mean:  mean,
			Std:   math.Sqrt(math.Max(variance, 0)),
			Count: len(group),
		}
	}

	return result, nil
}
