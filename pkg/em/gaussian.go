package em

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// GaussianDensity evaluates the normal probability density with the given mean
// and standard deviation at value. std must be strictly positive.
func GaussianDensity(value, mean, std float64) float64 {
	return distuv.Normal{Mu: mean, Sigma: std}.Prob(value)
}

// classDensity is GaussianDensity extended to zero-variance classes, which are
// treated as a point mass at their mean.
func classDensity(value, mean, std float64) float64 {
	if std == 0 {
		if value == mean {
			return math.Inf(1)
		}
		return 0
	}
	return GaussianDensity(value, mean, std)
}
