package em

import (
	"fmt"
	"math"

	"emsegment/internal/models"
)

// DegeneratePolicy selects how a class with zero standard deviation is handled
// when pixels are classified against it
type DegeneratePolicy int

const (
	// DegenerateFail aborts the run with ErrDegenerateClass
	DegenerateFail DegeneratePolicy = iota

	// DegeneratePointMass treats the class as a point mass: infinite density
	// exactly at its mean and zero everywhere else
	DegeneratePointMass
)

func (p DegeneratePolicy) String() string {
	switch p {
	case DegenerateFail:
		return "fail"
	case DegeneratePointMass:
		return "pointmass"
	default:
		return fmt.Sprintf("DegeneratePolicy(%d)", int(p))
	}
}

// ParseDegeneratePolicy maps a configuration name to a policy
func ParseDegeneratePolicy(name string) (DegeneratePolicy, error) {
	switch name {
	case "", "fail":
		return DegenerateFail, nil
	case "pointmass":
		return DegeneratePointMass, nil
	default:
		return DegenerateFail, fmt.Errorf("%w: unknown degenerate policy %q", ErrInvalidParams, name)
	}
}

// Expectation assigns every pixel to the class of highest density among the
// first k classes of params.
//
// Classes are tried in ascending index order and a later class replaces the
// current best only when its density is strictly greater, so ties go to the
// lowest index. The running best starts at zero: a pixel for which every class
// yields zero density is left Unassigned.
func Expectation(pixels []float64, k int, params models.ClassParameters, policy DegeneratePolicy) (models.Assignment, error) {
	if err := checkClasses(k, params, policy); err != nil {
		return nil, err
	}

	assignment := make(models.Assignment, len(pixels))
	for i, pixel := range pixels {
		best := 0.0
		class := models.Unassigned
		for c := 0; c < k; c++ {
			if p := classDensity(pixel, params.Means[c], params.Stds[c]); p > best {
				best = p
				class = c
			}
		}
		assignment[i] = class
	}

	return assignment, nil
}

func checkClasses(k int, params models.ClassParameters, policy DegeneratePolicy) error {
	if k <= 0 {
		return fmt.Errorf("%w: number of classes must be positive, got %d", ErrInvalidParams, k)
	}
	if len(params.Means) < k || len(params.Stds) < k {
		return fmt.Errorf("%w: %d classes requested but parameters hold %d means and %d standard deviations",
			ErrInvalidParams, k, len(params.Means), len(params.Stds))
	}

	for c := 0; c < k; c++ {
		std := params.Stds[c]
		switch {
		case math.IsNaN(std) || math.IsInf(std, 0) || std < 0:
			return &ClassError{Kind: ErrInvalidParams, Class: c}
		case math.IsNaN(params.Means[c]) || math.IsInf(params.Means[c], 0):
			return &ClassError{Kind: ErrInvalidParams, Class: c}
		case std == 0 && policy != DegeneratePointMass:
			return &ClassError{Kind: ErrDegenerateClass, Class: c}
		}
	}
	return nil
}
