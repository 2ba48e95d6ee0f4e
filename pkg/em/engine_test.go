package em

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"emsegment/internal/models"
	"emsegment/pkg/priors"
)

// twoClusterImage is a 4x4 image with eight pixels at 10 and eight at 200
func twoClusterImage(t *testing.T) *models.Image {
	t.Helper()
	img, err := models.FromMatrix([][]uint8{
		{10, 10, 200, 200},
		{10, 10, 200, 200},
		{10, 10, 200, 200},
		{10, 10, 200, 200},
	})
	require.NoError(t, err)
	return img
}

// spreadClusterImage has a dark cluster {8, 12} and a bright cluster {198, 202}
func spreadClusterImage(t *testing.T) *models.Image {
	t.Helper()
	img, err := models.FromMatrix([][]int{
		{8, 12, 198, 202},
		{12, 8, 202, 198},
	})
	require.NoError(t, err)
	return img
}

func twoClassParams(means, stds []float64) *Params {
	p := DefaultParams()
	p.NumClasses = 2
	p.InitialMeans = means
	p.InitialStds = stds
	p.ConvergenceRatio = 0.01
	return p
}

type decoderFunc func(path string) (*models.Image, error)

func (f decoderFunc) Decode(path string) (*models.Image, error) {
	return f(path)
}

type staticLoader models.ClassParameters

func (l staticLoader) Load(paths []string) (models.ClassParameters, error) {
	return models.ClassParameters(l), nil
}

func TestFitTwoClusters(t *testing.T) {
	p := twoClassParams([]float64{0, 255}, []float64{50, 50})
	p.DegeneratePolicy = DegeneratePointMass

	result, err := NewEngine(p, nil).Fit(context.Background(), twoClusterImage(t))
	require.NoError(t, err)
	require.LessOrEqual(t, result.Iterations, 5)
	require.InDeltaSlice(t, []float64{10, 200}, result.Params.Means, 1e-9)
	require.InDeltaSlice(t, []float64{0, 0}, result.Params.Stds, 1e-9)
	require.Equal(t, 8, result.Assignment.Count(0))
	require.Equal(t, 8, result.Assignment.Count(1))
}

func TestFitTwoClustersFailsOnDegenerateClass(t *testing.T) {
	p := twoClassParams([]float64{0, 255}, []float64{50, 50})

	_, err := NewEngine(p, nil).Fit(context.Background(), twoClusterImage(t))
	require.ErrorIs(t, err, ErrDegenerateClass)
	require.Contains(t, err.Error(), "iteration 2")
}

func TestFitFixedPointConverges(t *testing.T) {
	for _, ratio := range []float64{1e-12, 1e-3, 0.5} {
		p := twoClassParams([]float64{10, 200}, []float64{2, 2})
		p.ConvergenceRatio = ratio

		result, err := NewEngine(p, nil).Fit(context.Background(), spreadClusterImage(t))
		require.NoError(t, err)
		require.Equal(t, 1, result.Iterations)
		require.InDeltaSlice(t, []float64{10, 200}, result.Params.Means, 1e-12)
		require.InDeltaSlice(t, []float64{2, 2}, result.Params.Stds, 1e-12)
	}
}

func TestFitClassVanished(t *testing.T) {
	p := DefaultParams()
	p.NumClasses = 3
	p.InitialMeans = []float64{10, 100, 200}
	p.InitialStds = []float64{10, 10, 10}
	p.ConvergenceRatio = 0.01

	_, err := NewEngine(p, nil).Fit(context.Background(), twoClusterImage(t))
	require.ErrorIs(t, err, ErrClassVanished)
	class, ok := IsClassError(err, ErrClassVanished)
	require.True(t, ok)
	require.Equal(t, 1, class)
}

func TestFitNotConverged(t *testing.T) {
	p := twoClassParams([]float64{0, 255}, []float64{50, 50})
	p.DegeneratePolicy = DegeneratePointMass
	p.MaxIterations = 1

	_, err := NewEngine(p, nil).Fit(context.Background(), twoClusterImage(t))
	require.ErrorIs(t, err, ErrNotConverged)
}

func TestFitReturnRefined(t *testing.T) {
	stale := twoClassParams([]float64{10.001, 200}, []float64{2, 2})
	result, err := NewEngine(stale, nil).Fit(context.Background(), spreadClusterImage(t))
	require.NoError(t, err)
	require.Equal(t, []float64{10.001, 200}, result.Params.Means)

	refined := twoClassParams([]float64{10.001, 200}, []float64{2, 2})
	refined.ReturnRefined = true
	result, err = NewEngine(refined, nil).Fit(context.Background(), spreadClusterImage(t))
	require.NoError(t, err)
	require.InDeltaSlice(t, []float64{10, 200}, result.Params.Means, 1e-12)
}

func TestFitDeterministic(t *testing.T) {
	run := func() *Result {
		p := DefaultParams()
		img, err := models.FromMatrix([][]float64{
			{12, 48, 55, 101, 99},
			{143, 151, 160, 205, 198},
			{52, 47, 103, 149, 201},
		})
		require.NoError(t, err)
		result, err := NewEngine(p, nil).Fit(context.Background(), img)
		require.NoError(t, err)
		return result
	}

	first := run()
	second := run()
	require.Equal(t, first.Params, second.Params)
	require.Equal(t, first.Iterations, second.Iterations)
}

func TestFitObserver(t *testing.T) {
	p := twoClassParams([]float64{0, 255}, []float64{50, 50})
	p.DegeneratePolicy = DegeneratePointMass

	var seen []Iteration
	engine := NewEngine(p, nil)
	engine.SetObserver(func(it Iteration) {
		seen = append(seen, it)
	})

	result, err := engine.Fit(context.Background(), twoClusterImage(t))
	require.NoError(t, err)
	require.Len(t, seen, result.Iterations)

	require.Equal(t, 1, seen[0].Number)
	require.Equal(t, []float64{0, 255}, seen[0].Previous.Means)
	require.Equal(t, []float64{10, 200}, seen[0].Current.Means)
	require.Equal(t, []int{8, 8}, seen[0].Counts)
	require.Equal(t, 0, seen[0].Unassigned)
}

func TestFitCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewEngine(DefaultParams(), nil).Fit(ctx, twoClusterImage(t))
	require.ErrorIs(t, err, context.Canceled)
}

func TestFitInvalidParams(t *testing.T) {
	tests := []struct {
		name   string
		modify func(p *Params)
	}{
		{"zero classes", func(p *Params) { p.NumClasses = 0 }},
		{"means length", func(p *Params) { p.InitialMeans = []float64{1, 2} }},
		{"stds length", func(p *Params) { p.InitialStds = []float64{1} }},
		{"zero ratio", func(p *Params) { p.ConvergenceRatio = 0 }},
		{"negative ratio", func(p *Params) { p.ConvergenceRatio = -0.1 }},
		{"zero iterations", func(p *Params) { p.MaxIterations = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.modify(p)
			_, err := NewEngine(p, nil).Fit(context.Background(), twoClusterImage(t))
			require.ErrorIs(t, err, ErrInvalidParams)
		})
	}

	_, err := NewEngine(DefaultParams(), nil).Fit(context.Background(), &models.Image{})
	require.ErrorIs(t, err, ErrInvalidParams)
}

func TestFitWithPriors(t *testing.T) {
	p := DefaultParams()
	p.NumClasses = 2
	p.Priors = staticLoader{Means: []float64{10, 200}, Stds: []float64{2, 2}}

	result, err := NewEngine(p, nil).Fit(context.Background(), spreadClusterImage(t))
	require.NoError(t, err)
	require.Equal(t, []float64{10, 200}, result.Params.Means)

	p.Priors = priors.NotImplemented{}
	_, err = NewEngine(p, nil).Fit(context.Background(), spreadClusterImage(t))
	require.ErrorIs(t, err, priors.ErrPriorsNotImplemented)
}

func TestFitFileReadError(t *testing.T) {
	p := DefaultParams()
	p.Decoder = decoderFunc(func(path string) (*models.Image, error) {
		return nil, errors.New("truncated file")
	})

	_, err := NewEngine(p, nil).FitFile(context.Background(), "brain.png")
	require.ErrorIs(t, err, ErrImageRead)
	require.Contains(t, err.Error(), "truncated file")
}

func TestRunFromFile(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			v := uint8(8)
			if x >= 2 {
				v = 198
			}
			if y%2 == 1 {
				v += 4
			}
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}

	path := filepath.Join(t.TempDir(), "clusters.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	means, stds, err := Run(context.Background(), path, 0.01, 2, nil, []float64{0, 255}, []float64{50, 50})
	require.NoError(t, err)
	require.InDeltaSlice(t, []float64{10, 200}, means, 1e-9)
	require.InDeltaSlice(t, []float64{2, 2}, stds, 1e-9)

	_, _, err = Run(context.Background(), filepath.Join(t.TempDir(), "missing.png"), 0.01, 2, nil, nil, nil)
	require.ErrorIs(t, err, ErrImageRead)
}
