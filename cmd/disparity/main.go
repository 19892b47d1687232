// Stereo disparity command line tool
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	"stereo-disparity/internal/algorithms"
	"stereo-disparity/internal/core"
	"stereo-disparity/internal/pipeline"
)

const (
	AppName    = "disparity"
	AppVersion = "1.0.0"
)

var errUsage = errors.New("usage")

type options struct {
	left, right, out string
	truth            string
	truthScale       float64

	algorithm    string
	maxDisparity int
	radiusX      int
	radiusY      int
	maxError     float64
	rtol         int
	texture      float64
	float        bool
	prefilters   []string
	workers      int
	debug        bool
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(2)
	}

	// Initialize logger
	logger := initLogger(opts.debug)
	logger.WithFields(logrus.Fields{
		"version":    AppVersion,
		"debug_mode": opts.debug,
	}).Info("Starting stereo disparity")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, logger); err != nil {
		logger.WithError(err).Error("Disparity computation failed")
		stop()
		os.Exit(1)
	}
}

func parseFlags(args []string) (options, error) {
	def := algorithms.NewRegionWTA().GetDefaultParams()
	var opts options
	var prefilter string

	fs := flag.NewFlagSet(AppName, flag.ContinueOnError)
	fs.StringVar(&opts.left, "left", "", "Left rectified image")
	fs.StringVar(&opts.right, "right", "", "Right rectified image")
	fs.StringVar(&opts.out, "out", "", "Output disparity visualisation (PNG)")
	fs.StringVar(&opts.truth, "truth", "", "Optional ground truth disparity image")
	fs.Float64Var(&opts.truthScale, "truth-scale", 1, "Ground truth value per pixel of disparity")
	fs.StringVar(&opts.algorithm, "algorithm", "region_wta", "Matcher: region_wta or region_subpixel_wta")
	fs.IntVar(&opts.maxDisparity, "max-disparity", int(def["max_disparity"].(float64)), "Largest disparity searched")
	fs.IntVar(&opts.radiusX, "radius-x", int(def["radius_x"].(float64)), "Horizontal region radius")
	fs.IntVar(&opts.radiusY, "radius-y", int(def["radius_y"].(float64)), "Vertical region radius")
	fs.Float64Var(&opts.maxError, "max-error", def["max_error"].(float64), "Largest average per pixel error, negative disables")
	fs.IntVar(&opts.rtol, "rtol", int(def["rtol"].(float64)), "Right to left tolerance in pixels, 0 disables")
	fs.Float64Var(&opts.texture, "texture", def["texture"].(float64), "Texture threshold, 0 disables")
	fs.BoolVar(&opts.float, "float", false, "Match in 32-bit floating point")
	fs.StringVar(&prefilter, "prefilter", "none", "Comma separated prefilters: gaussian, median, bilateral, sobel_x, box or none")
	fs.IntVar(&opts.workers, "workers", 0, "Concurrent row bands, 0 for one per CPU")
	fs.BoolVar(&opts.debug, "debug", false, "Enable debug mode with verbose logging")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if opts.left == "" || opts.right == "" || opts.out == "" {
		return options{}, fmt.Errorf("%w: -left, -right and -out are required", errUsage)
	}
	if !algorithms.IsValidAlgorithm(opts.algorithm) {
		return options{}, fmt.Errorf("%w: %s", algorithms.ErrUnknownAlgorithm, opts.algorithm)
	}

	for _, name := range strings.Split(prefilter, ",") {
		name = strings.TrimSpace(name)
		if name == "" || name == "none" {
			continue
		}
		if _, ok := algorithms.GetFilter(name); !ok {
			return options{}, fmt.Errorf("%w: prefilter %s", algorithms.ErrUnknownAlgorithm, name)
		}
		opts.prefilters = append(opts.prefilters, name)
	}
	return opts, nil
}

func (o options) matcherParams() map[string]interface{} {
	return map[string]interface{}{
		"max_disparity": float64(o.maxDisparity),
		"radius_x":      float64(o.radiusX),
		"radius_y":      float64(o.radiusY),
		"max_error":     o.maxError,
		"rtol":          float64(o.rtol),
		"texture":       o.texture,
	}
}

func run(ctx context.Context, opts options, logger *logrus.Logger) error {
	sp := pipeline.NewStereoPipeline(logger)
	for _, name := range opts.prefilters {
		filter, _ := algorithms.GetFilter(name)
		if err := sp.AddStep(name, filter.GetDefaultParams()); err != nil {
			return err
		}
	}
	if err := sp.SetMatcher(opts.algorithm, opts.matcherParams()); err != nil {
		return err
	}
	if opts.float {
		sp.SetSampleKind(core.KindF32)
	}
	sp.SetWorkers(opts.workers)

	out, err := sp.ProcessFiles(ctx, opts.left, opts.right, opts.truth, opts.truthScale)
	if err != nil {
		return err
	}

	if err := sp.Loader().SaveDisparity(opts.out, out.Disparity); err != nil {
		return err
	}

	fields := logrus.Fields{
		"output":  opts.out,
		"invalid": out.Disparity.InvalidCount(),
		"elapsed": out.Elapsed,
	}
	for name, value := range out.Metrics {
		fields[name] = value
	}
	logger.WithFields(fields).Info("Disparity written")
	return nil
}

// initLogger initializes the logger with appropriate level
func initLogger(debugMode bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)

	if debugMode {
		logger.SetLevel(logrus.DebugLevel)
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
			ForceColors:   true,
		})
		logger.Debug("Debug logging enabled")
	} else {
		logger.SetLevel(logrus.InfoLevel)
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	return logger
}
