// Package main provides the tapegrad demonstration driver.
package main

import (
	"flag"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/pbnjay/memory"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const version = "v0.1.0-dev"

var (
	scenario    = flag.String("scenario", "all", "Scenario to run: replay, grad, train, layers or all.")
	dtype       = flag.String("dtype", "float32", "Element type of the graph: float32 or float64.")
	steps       = flag.Int("steps", 5, "Optimizer steps for the train scenario.")
	lr          = flag.Float64("lr", 0.01, "Learning rate for the train scenario.")
	momentum    = flag.Float64("momentum", 0, "Momentum for the train scenario.")
	optimizer   = flag.String("optimizer", "sgd", "Optimizer for the train and layers scenarios: sgd or adam.")
	seed        = flag.Int64("seed", 1, "Seed for layer weight initialization.")
	memoryLimit = flag.Uint64("memory-limit", memory.TotalMemory()/4, "Maximum bytes a tape may allocate (0 for unlimited).")
	logFile     = flag.String("log-file", "", "If filled, logs are written to this file.")
	logDebug    = flag.Bool("debug", false, "Enable debug logs, including tape tracing.")
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Printf("tapegrad %s\n", version)
		return
	}
	flag.Parse()

	if err := setupLogging(); err != nil {
		log.Fatalf("Unable to set up logging: %v", err)
	}

	limit, err := memoryLimitBytes(*memoryLimit)
	if err != nil {
		log.Fatalf("%v", err)
	}

	cfg := config{
		Scenario:    *scenario,
		Steps:       *steps,
		LR:          *lr,
		Momentum:    *momentum,
		Optimizer:   *optimizer,
		MemoryLimit: limit,
		Seed:        *seed,
		Logger:      log.StandardLogger(),
	}

	log.WithFields(log.Fields{
		"dtype":        *dtype,
		"scenario":     cfg.Scenario,
		"memory_limit": humanize.Bytes(*memoryLimit),
	}).Info("tapegrad " + version)

	switch *dtype {
	case "float32":
		err = run[float32](cfg, os.Stdout)
	case "float64":
		err = run[float64](cfg, os.Stdout)
	default:
		err = errors.Errorf("unsupported dtype %q", *dtype)
	}
	if err != nil {
		log.Fatalf("%v", err)
	}
}

// memoryLimitBytes converts the -memory-limit flag to an arena limit.
func memoryLimitBytes(n uint64) (int, error) {
	if n > math.MaxInt {
		return 0, errors.Errorf("memory limit %s exceeds the maximum of %s", humanize.Bytes(n), humanize.Bytes(math.MaxInt))
	}
	return int(n), nil
}

func setupLogging() error {
	if *logDebug {
		log.SetLevel(log.DebugLevel)
	}
	if *logFile == "" {
		return nil
	}
	f, err := os.OpenFile(*logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	log.SetOutput(io.MultiWriter(os.Stderr, f))
	return nil
}
