package visualization

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/wcharczuk/go-chart/v2"
	"gonum.org/v1/gonum/floats"

	"emsegment/pkg/em"
)

// ConvergenceTrace records the class means of every iteration of a fitting
// run and draws them as a chart. Register Observe as the engine observer.
type ConvergenceTrace struct {
	iterations []float64
	means      [][]float64
}

// NewConvergenceTrace creates an empty trace
func NewConvergenceTrace() *ConvergenceTrace {
	return &ConvergenceTrace{}
}

// Observe records one iteration. The first call also records the starting
// parameters as iteration 0.
func (t *ConvergenceTrace) Observe(it em.Iteration) {
	if len(t.iterations) == 0 {
		t.means = make([][]float64, it.Previous.K())
		t.record(float64(it.Number-1), it.Previous.Means)
	}
	t.record(float64(it.Number), it.Current.Means)
}

func (t *ConvergenceTrace) record(iteration float64, means []float64) {
	t.iterations = append(t.iterations, iteration)
	for c := range t.means {
		t.means[c] = append(t.means[c], means[c])
	}
}

// Len returns the number of recorded points
func (t *ConvergenceTrace) Len() int {
	return len(t.iterations)
}

// Means returns the recorded means of class c
func (t *ConvergenceTrace) Means(c int) []float64 {
	return t.means[c]
}

// Render draws the trace as a PNG chart, one line per class
func (t *ConvergenceTrace) Render(w io.Writer) error {
	if len(t.iterations) < 2 {
		return errors.New("not enough iterations to chart")
	}

	var series []chart.Series
	minMean, maxMean := t.means[0][0], t.means[0][0]
	for c, means := range t.means {
		minMean = min(minMean, floats.Min(means))
		maxMean = max(maxMean, floats.Max(means))
		series = append(series, chart.ContinuousSeries{
			Name:    fmt.Sprintf("class %d", c),
			XValues: t.iterations,
			YValues: means,
		})
	}
	if maxMean == minMean {
		maxMean = minMean + 1
	}

	graph := chart.Chart{
		Title:  "Class means per iteration",
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			Name: "Iteration",
			Range: &chart.ContinuousRange{
				Min: t.iterations[0],
				Max: t.iterations[len(t.iterations)-1],
			},
		},
		YAxis: chart.YAxis{
			Name: "Mean intensity",
			Range: &chart.ContinuousRange{
				Min: minMean,
				Max: maxMean,
			},
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	return graph.Render(chart.PNG, w)
}

// Save writes the chart to filename
func (t *ConvergenceTrace) Save(filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return err
	}

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return t.Render(file)
}
