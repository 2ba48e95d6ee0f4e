package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"emsegment/internal/logger"
	"emsegment/pkg/config"
	"emsegment/pkg/em"
	"emsegment/pkg/visualization"
)

func main() {
	// Parse command line arguments
	inputFile := flag.String("input", "", "Grayscale image to segment")
	configPath := flag.String("config", "", "YAML configuration file (optional)")
	writeConfig := flag.String("write-config", "", "Write a default configuration file to this path and exit")
	ratio := flag.Float64("ratio", 0, "Convergence ratio (overrides config)")
	classes := flag.Int("classes", 0, "Number of classes (overrides config)")
	means := flag.String("means", "", "Comma separated initial means (overrides config)")
	stds := flag.String("stds", "", "Comma separated initial standard deviations (overrides config)")
	maxIter := flag.Int("max-iter", 0, "Maximum number of iterations (overrides config)")
	labels := flag.String("labels", "", "Write the segmentation label map to this PNG file")
	chartFile := flag.String("chart", "", "Write a chart of the class means per iteration to this PNG file")
	timeout := flag.Duration("timeout", 0, "Abort fitting after this long (0 for no limit)")
	flag.Parse()

	if *writeConfig != "" {
		if err := config.CreateDefaultConfigFile(*writeConfig); err != nil {
			log.Fatalf("Failed to write config: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *writeConfig)
		return
	}

	if *inputFile == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg := config.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadConfig(*configPath); err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}

	// Command line flags win over the config file
	if *ratio > 0 {
		cfg.Fitting.ConvergenceRatio = *ratio
	}
	if *classes > 0 {
		cfg.Fitting.NumClasses = *classes
	}
	if *maxIter > 0 {
		cfg.Fitting.MaxIterations = *maxIter
	}
	if *means != "" {
		values, err := parseFloats(*means)
		if err != nil {
			log.Fatalf("Invalid -means: %v", err)
		}
		cfg.Fitting.InitialMeans = values
	}
	if *stds != "" {
		values, err := parseFloats(*stds)
		if err != nil {
			log.Fatalf("Invalid -stds: %v", err)
		}
		cfg.Fitting.InitialStds = values
	}
	if *labels != "" {
		cfg.Output.LabelMap = *labels
	}
	if *chartFile != "" {
		cfg.Output.ConvergenceChart = *chartFile
	}

	level := cfg.Logging.Level
	if cfg.Output.Verbose {
		level = "debug"
	}
	appLogger := logger.NewConsoleLogger(logger.ParseLevel(level))

	params, err := cfg.Params()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if *timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	engine := em.NewEngine(params, appLogger)
	trace := visualization.NewConvergenceTrace()
	if cfg.Output.ConvergenceChart != "" {
		engine.SetObserver(trace.Observe)
	}

	startTime := time.Now()
	result, err := engine.FitFile(ctx, *inputFile)
	if err != nil {
		log.Fatalf("Fitting failed: %v", err)
	}
	processingTime := time.Since(startTime)

	fmt.Printf("Converged after %d iterations in %.3f seconds\n\n", result.Iterations, processingTime.Seconds())
	fmt.Printf("%-6s %12s %12s %10s\n", "Class", "Mean", "Std", "Pixels")
	for k := 0; k < result.Params.K(); k++ {
		fmt.Printf("%-6d %12.4f %12.4f %10d\n", k, result.Params.Means[k], result.Params.Stds[k], result.Assignment.Count(k))
	}

	if cfg.Output.LabelMap != "" {
		labelMap, err := visualization.NewLabelMap(result.Assignment, result.Width, result.Height, params.NumClasses)
		if err != nil {
			log.Fatalf("Failed to build label map: %v", err)
		}
		if err := labelMap.Save(cfg.Output.LabelMap); err != nil {
			log.Printf("Warning: Failed to save label map: %v", err)
		} else {
			fmt.Printf("\nLabel map saved to: %s\n", cfg.Output.LabelMap)
		}
	}

	if cfg.Output.ConvergenceChart != "" {
		if err := trace.Save(cfg.Output.ConvergenceChart); err != nil {
			log.Printf("Warning: Failed to save convergence chart: %v", err)
		} else {
			fmt.Printf("Convergence chart saved to: %s\n", cfg.Output.ConvergenceChart)
		}
	}
}

// parseFloats parses a comma separated list of numbers
func parseFloats(list string) ([]float64, error) {
	parts := strings.Split(list, ",")
	values := make([]float64, 0, len(parts))
	for _, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}
