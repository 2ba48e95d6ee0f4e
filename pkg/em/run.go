package em

import (
	"context"

	"emsegment/pkg/priors"
)

// Run fits the image at path and returns the fitted class means and standard
// deviations. loader may be nil, in which case initialMeans and initialStds
// seed the run; nil initial slices fall back to the DefaultParams values.
func Run(ctx context.Context, path string, convergenceRatio float64, numClasses int, loader priors.Loader, initialMeans, initialStds []float64) ([]float64, []float64, error) {
	params := DefaultParams()
	params.ConvergenceRatio = convergenceRatio
	params.NumClasses = numClasses
	params.Priors = loader
	if initialMeans != nil {
		params.InitialMeans = initialMeans
	}
	if initialStds != nil {
		params.InitialStds = initialStds
	}

	result, err := NewEngine(params, nil).FitFile(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	return result.Params.Means, result.Params.Stds, nil
}
