package main

import (
	"fmt"
	"io"
	"math/rand"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/born-ml/tapegrad/autodiff"
	"github.com/born-ml/tapegrad/nn"
	"github.com/born-ml/tapegrad/optim"
	"github.com/born-ml/tapegrad/tensor"
)

// config holds the settings of one driver run.
type config struct {
	Scenario    string
	Steps       int
	LR          float64
	Momentum    float64
	Optimizer   string
	MemoryLimit int
	Seed        int64
	Logger      logrus.FieldLogger
}

type scenarioFunc[T tensor.Float] func(cfg config, tape *autodiff.Tape[T], w io.Writer) error

func scenarios[T tensor.Float]() map[string]scenarioFunc[T] {
	return map[string]scenarioFunc[T]{
		"replay": replayScenario[T],
		"grad":   gradScenario[T],
		"train":  trainScenario[T],
		"layers": layersScenario[T],
	}
}

var scenarioOrder = []string{"replay", "grad", "train", "layers"}

// run executes the configured scenario, or all of them, each on a fresh tape.
func run[T tensor.Float](cfg config, w io.Writer) error {
	all := scenarios[T]()
	names := scenarioOrder
	if cfg.Scenario != "all" {
		if _, ok := all[cfg.Scenario]; !ok {
			return errors.Errorf("unknown scenario %q", cfg.Scenario)
		}
		names = []string{cfg.Scenario}
	}

	for _, name := range names {
		tape := autodiff.NewTape[T](
			autodiff.WithLogger(cfg.Logger),
			autodiff.WithMemoryLimit(cfg.MemoryLimit),
		)
		if _, err := fmt.Fprintf(w, "== %s\n", name); err != nil {
			return err
		}
		if err := all[name](cfg, tape, w); err != nil {
			return errors.Wrapf(err, "scenario %s", name)
		}
		if err := tape.Validate(); err != nil {
			return errors.Wrapf(err, "scenario %s left an invalid tape", name)
		}
		cfg.Logger.WithFields(logrus.Fields{
			"scenario": name,
			"nodes":    tape.Len(),
			"memory":   humanize.Bytes(uint64(tape.Bytes())),
		}).Info("scenario done")
	}
	return nil
}

// replayScenario computes y = A·x, zeroes x in place and replays the tape.
func replayScenario[T tensor.Float](_ config, tape *autodiff.Tape[T], w io.Writer) error {
	a, err := tape.FromElem(tensor.Shape{3, 3}, 5)
	if err != nil {
		return err
	}
	x, err := tape.FromElem(tensor.Shape{3}, 2)
	if err != nil {
		return err
	}
	y, err := a.MatVec(x)
	if err != nil {
		return err
	}

	if err := tape.Forward(); err != nil {
		return err
	}
	if err := printValue(w, "y", y); err != nil {
		return err
	}

	if err := x.Update(func(v *tensor.Dense[T]) error {
		v.Fill(0)
		return nil
	}); err != nil {
		return err
	}
	if err := tape.Forward(); err != nil {
		return err
	}
	return printValue(w, "y", y)
}

// gradScenario computes y = A·x + b and its gradients for a ones seed.
func gradScenario[T tensor.Float](_ config, tape *autodiff.Tape[T], w io.Writer) error {
	a, x, b, y, err := affine(tape)
	if err != nil {
		return err
	}
	if err := printValue(w, "y", y); err != nil {
		return err
	}

	seed, err := tensor.Full[T](y.Shape(), 1)
	if err != nil {
		return err
	}
	if err := y.Backward(seed); err != nil {
		return err
	}
	for _, p := range []struct {
		name string
		e    *autodiff.Expression[T]
	}{{"grad(b)", b}, {"grad(x)", x}, {"grad(A)", a}} {
		if err := printGrad(w, p.name, p.e); err != nil {
			return err
		}
	}
	return nil
}

// newOptimizer builds the optimizer named by cfg.Optimizer over params.
func newOptimizer[T tensor.Float](cfg config, params []*autodiff.Expression[T]) (optim.Optimizer, error) {
	switch cfg.Optimizer {
	case "", "sgd":
		return optim.NewSGD(params, optim.SGDConfig{LR: cfg.LR, Momentum: cfg.Momentum}), nil
	case "adam":
		return optim.NewAdam(params, optim.AdamConfig{LR: cfg.LR}), nil
	default:
		return nil, errors.Errorf("unknown optimizer %q", cfg.Optimizer)
	}
}

// trainScenario runs the configured optimizer on x for y = A·x + b, replaying the tape after each
// step.
func trainScenario[T tensor.Float](cfg config, tape *autodiff.Tape[T], w io.Writer) error {
	_, x, _, y, err := affine(tape)
	if err != nil {
		return err
	}
	seed, err := tensor.Full[T](y.Shape(), 1)
	if err != nil {
		return err
	}

	opt, err := newOptimizer(cfg, []*autodiff.Expression[T]{x})
	if err != nil {
		return err
	}
	for step := 0; step < cfg.Steps; step++ {
		if err := y.Backward(seed); err != nil {
			return err
		}
		if err := opt.Step(); err != nil {
			return err
		}
		if err := tape.Forward(); err != nil {
			return err
		}
		if err := printValue(w, fmt.Sprintf("step %d y", step+1), y); err != nil {
			return err
		}
	}
	return printValue(w, "x", x)
}

// layersScenario runs the configured optimizer on a two-layer linear model, pushing the sum of
// its outputs down.
func layersScenario[T tensor.Float](cfg config, tape *autodiff.Tape[T], w io.Writer) error {
	rng := rand.New(rand.NewSource(cfg.Seed))
	l1, err := nn.NewLinear(tape, 4, 8, rng)
	if err != nil {
		return err
	}
	l2, err := nn.NewLinear(tape, 8, 2, rng)
	if err != nil {
		return err
	}
	model := nn.NewSequential[T](l1, l2)

	x, err := tape.FromElem(tensor.Shape{4}, 1)
	if err != nil {
		return err
	}
	y, err := model.Forward(x)
	if err != nil {
		return err
	}
	params := model.Parameters()
	if _, err := fmt.Fprintf(w, "params = %d, nodes = %d\n", len(params), tape.Len()); err != nil {
		return err
	}

	seed, err := tensor.Full[T](y.Shape(), 1)
	if err != nil {
		return err
	}
	opt, err := newOptimizer(cfg, params)
	if err != nil {
		return err
	}
	for step := 0; step < cfg.Steps; step++ {
		if err := y.Backward(seed); err != nil {
			return err
		}
		if err := opt.Step(); err != nil {
			return err
		}
		if err := tape.Forward(); err != nil {
			return err
		}
		if err := printValue(w, fmt.Sprintf("step %d y", step+1), y); err != nil {
			return err
		}
	}
	return nil
}

// affine builds y = A·x + b with A (3,4) = 5, x (4,) = 3 and b (3,) = -1,
// all tracked.
func affine[T tensor.Float](tape *autodiff.Tape[T]) (a, x, b, y *autodiff.Expression[T], err error) {
	if a, err = tape.FromElemGrad(tensor.Shape{3, 4}, 5); err != nil {
		return
	}
	if x, err = tape.FromElemGrad(tensor.Shape{4}, 3); err != nil {
		return
	}
	if b, err = tape.FromElemGrad(tensor.Shape{3}, -1); err != nil {
		return
	}
	ax, err := a.MatVec(x)
	if err != nil {
		return
	}
	y, err = ax.Add(b)
	return
}

func printValue[T tensor.Float](w io.Writer, name string, e *autodiff.Expression[T]) error {
	v, err := e.Value()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s = %v\n", name, v)
	return err
}

func printGrad[T tensor.Float](w io.Writer, name string, e *autodiff.Expression[T]) error {
	g, err := e.Grad()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s = %v\n", name, g)
	return err
}
