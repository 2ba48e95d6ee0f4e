package em

import (
	"context"
	"errors"
	"fmt"
	"math"

	"emsegment/internal/logger"
	"emsegment/internal/models"
	"emsegment/pkg/imageio"
	"emsegment/pkg/priors"
)

const component = "Engine"

// Params holds the fitting configuration.
type Params struct {
	// NumClasses is the number of Gaussian classes K, fixed for the whole run.
	NumClasses int

	// InitialMeans and InitialStds seed the first iteration when no prior
	// loader is configured. Both must have NumClasses entries.
	InitialMeans []float64
	InitialStds  []float64

	// ConvergenceRatio is the threshold on the fractional change of each class
	// mean between two iterations. Must be positive.
	ConvergenceRatio float64

	// MaxIterations bounds the number of expectation/maximization rounds.
	// Reaching it yields ErrNotConverged.
	MaxIterations int

	// DegeneratePolicy selects how zero-variance classes are handled.
	DegeneratePolicy DegeneratePolicy

	// ReturnRefined makes a converged run return the parameters produced by
	// the final maximization step instead of the ones that passed the
	// convergence test.
	ReturnRefined bool

	// Priors, when set, replaces InitialMeans/InitialStds with the parameters
	// it loads from PriorPaths.
	Priors     priors.Loader
	PriorPaths []string

	// Decoder reads the input image for FitFile. Defaults to imageio.FileDecoder.
	Decoder imageio.Decoder
}

// DefaultParams returns four classes seeded at 50, 100, 150 and 200 with a
// standard deviation of 10 each.
func DefaultParams() *Params {
	return &Params{
		NumClasses:       4,
		InitialMeans:     []float64{50, 100, 150, 200},
		InitialStds:      []float64{10, 10, 10, 10},
		ConvergenceRatio: 0.001,
		MaxIterations:    100,
		DegeneratePolicy: DegenerateFail,
		Decoder:          imageio.FileDecoder{},
	}
}

// Iteration describes one completed expectation/maximization round
type Iteration struct {
	// Number counts rounds from 1
	Number int

	// Previous are the parameters the round classified against
	Previous models.ClassParameters

	// Current are the parameters re-estimated by the round
	Current models.ClassParameters

	// Counts holds the number of pixels assigned to each class
	Counts []int

	// Unassigned is the number of pixels no class claimed
	Unassigned int
}

// Observer is invoked after every round. It has no influence on the run.
type Observer func(it Iteration)

// Result is the outcome of a converged run
type Result struct {
	// Params are the fitted class parameters
	Params models.ClassParameters

	// Iterations is the number of rounds performed
	Iterations int

	// Assignment is the pixel classification of the final round
	Assignment models.Assignment

	// Width and Height of the fitted image, for laying out Assignment
	Width  int
	Height int
}

// Engine fits a Gaussian mixture to the intensities of a grayscale image
// using hard-assignment expectation-maximization.
//
// Each round classifies every pixel against the current parameters
// (Expectation), re-estimates the parameters from that classification
// (Maximization) and stops once every class mean changed by less than
// ConvergenceRatio.
type Engine struct {
	params   *Params
	logger   logger.Logger
	observer Observer
}

// NewEngine creates an engine. A nil logger discards all output.
func NewEngine(params *Params, log logger.Logger) *Engine {
	if log == nil {
		log = logger.Nop()
	}
	return &Engine{
		params: params,
		logger: log,
	}
}

// SetObserver registers a callback receiving every completed round
func (e *Engine) SetObserver(observer Observer) {
	e.observer = observer
}

// FitFile decodes the image at path and fits it.
func (e *Engine) FitFile(ctx context.Context, path string) (*Result, error) {
	decoder := e.params.Decoder
	if decoder == nil {
		decoder = imageio.FileDecoder{}
	}

	img, err := decoder.Decode(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrImageRead, err)
	}

	e.logger.Info(component, "image loaded", map[string]interface{}{
		"path":   path,
		"width":  img.Width,
		"height": img.Height,
	})

	return e.Fit(ctx, img)
}

// Fit runs expectation-maximization over the pixels of img until the class
// means converge.
//
// The run fails with ErrClassVanished as soon as a class receives no pixels,
// with ErrDegenerateClass when a zero-variance class meets DegenerateFail,
// and with ErrNotConverged once MaxIterations rounds have passed. ctx is
// checked between rounds.
func (e *Engine) Fit(ctx context.Context, img *models.Image) (*Result, error) {
	if img == nil || len(img.Pixels) == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrInvalidParams)
	}

	current, err := e.initialParameters()
	if err != nil {
		return nil, err
	}
	if err := e.validate(current); err != nil {
		return nil, err
	}

	k := e.params.NumClasses
	pixels := img.Vector()

	e.logger.Info(component, "fit started", map[string]interface{}{
		"classes":          k,
		"pixels":           len(pixels),
		"convergenceRatio": e.params.ConvergenceRatio,
		"maxIterations":    e.params.MaxIterations,
		"means":            current.Means,
		"stds":             current.Stds,
	})

	for iteration := 1; ; iteration++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("fit cancelled after %d iterations: %w", iteration-1, err)
		}
		if iteration > e.params.MaxIterations {
			err := fmt.Errorf("%w within %d iterations", ErrNotConverged, e.params.MaxIterations)
			e.logger.Error(component, err, map[string]interface{}{"means": current.Means})
			return nil, err
		}

		assignment, err := Expectation(pixels, k, current, e.params.DegeneratePolicy)
		if err != nil {
			return nil, e.fail(iteration, err)
		}

		stats, err := Maximization(pixels, assignment, k)
		if err != nil {
			return nil, e.fail(iteration, err)
		}

		next, err := parametersFromStats(stats)
		if err != nil {
			return nil, e.fail(iteration, err)
		}

		e.report(iteration, current, next, stats, assignment)

		if converged(current.Means, next.Means, e.params.ConvergenceRatio) {
			final := current
			if e.params.ReturnRefined {
				final = next
			}

			e.logger.Info(component, "fit converged", map[string]interface{}{
				"iterations": iteration,
				"means":      final.Means,
				"stds":       final.Stds,
			})

			return &Result{
				Params:     final.Clone(),
				Iterations: iteration,
				Assignment: assignment,
				Width:      img.Width,
				Height:     img.Height,
			}, nil
		}

		current = next
	}
}

func (e *Engine) initialParameters() (models.ClassParameters, error) {
	if e.params.Priors != nil {
		params, err := e.params.Priors.Load(e.params.PriorPaths)
		if err != nil {
			return models.ClassParameters{}, fmt.Errorf("failed to load priors: %w", err)
		}
		return params, nil
	}
	return models.NewClassParameters(e.params.InitialMeans, e.params.InitialStds)
}

func (e *Engine) validate(initial models.ClassParameters) error {
	p := e.params
	if p.NumClasses <= 0 {
		return fmt.Errorf("%w: number of classes must be positive, got %d", ErrInvalidParams, p.NumClasses)
	}
	if initial.K() != p.NumClasses || len(initial.Stds) != p.NumClasses {
		return fmt.Errorf("%w: %d classes requested but %d means and %d standard deviations supplied",
			ErrInvalidParams, p.NumClasses, len(initial.Means), len(initial.Stds))
	}
	if !(p.ConvergenceRatio > 0) || math.IsInf(p.ConvergenceRatio, 0) {
		return fmt.Errorf("%w: convergence ratio must be positive, got %v", ErrInvalidParams, p.ConvergenceRatio)
	}
	if p.MaxIterations <= 0 {
		return fmt.Errorf("%w: maximum iterations must be positive, got %d", ErrInvalidParams, p.MaxIterations)
	}
	return nil
}

func (e *Engine) fail(iteration int, err error) error {
	err = fmt.Errorf("iteration %d: %w", iteration, err)
	e.logger.Error(component, err, nil)
	return err
}

func (e *Engine) report(iteration int, previous, current models.ClassParameters, stats []models.ClassStats, assignment models.Assignment) {
	counts := make([]int, len(stats))
	assigned := 0
	for c, s := range stats {
		counts[c] = s.Count
		assigned += s.Count
	}

	e.logger.Debug(component, "iteration complete", map[string]interface{}{
		"iteration": iteration,
		"means":     current.Means,
		"stds":      current.Stds,
		"counts":    counts,
	})

	if e.observer != nil {
		e.observer(Iteration{
			Number:     iteration,
			Previous:   previous.Clone(),
			Current:    current.Clone(),
			Counts:     counts,
			Unassigned: len(assignment) - assigned,
		})
	}
}

// parametersFromStats turns per-class statistics into the next parameter set,
// failing if any class received no pixels.
func parametersFromStats(stats []models.ClassStats) (models.ClassParameters, error) {
	next := models.ClassParameters{
		Means: make([]float64, len(stats)),
		Stds:  make([]float64, len(stats)),
	}
	for c, s := range stats {
		if s.Empty() {
			return models.ClassParameters{}, &ClassError{Kind: ErrClassVanished, Class: c}
		}
		next.Means[c] = s.Mean
		next.Stds[c] = s.Std
	}
	return next, nil
}

// converged reports whether |old/new - 1| < ratio holds for every class. A
// class whose new mean is zero has converged only if its old mean was zero too.
func converged(old, next []float64, ratio float64) bool {
	if len(old) != len(next) {
		return false
	}
	for i := range next {
		if next[i] == 0 {
			if old[i] != 0 {
				return false
			}
			continue
		}
		if !(math.Abs(old[i]/next[i]-1) < ratio) {
			return false
		}
	}
	return true
}

// IsClassError reports whether err is a ClassError of the given kind and, if
// so, returns the class index
func IsClassError(err error, kind error) (int, bool) {
	var ce *ClassError
	if errors.As(err, &ce) && errors.Is(ce.Kind, kind) {
		return ce.Class, true
	}
	return 0, false
}
