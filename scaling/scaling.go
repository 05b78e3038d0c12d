// Package scaling computes per-partition hyper-parameters from a
// partition's image count. The scale function is pure: the orchestrator's
// resumption check relies on recomputing the same budget for the same
// inputs.
package scaling

import (
	"math"
	"sort"
	"strconv"

	"github.com/pkg/errors"
)

type Mode string

const (
	ModeLinear Mode = "linear"
	ModeSqrt   Mode = "sqrt"
	ModeNone   Mode = "none"
)

const (
	// baseSteps is the step budget of a partition with baseImages images.
	baseSteps  = 30000
	baseImages = 300
)

// Scale returns the absolute step budget and the scaled parameter set for a
// partition with imageCount images. Parameters named in extraEpochScalable
// are step-valued and additionally receive the extra-epoch steps, so their
// schedules keep pace with the extended budget.
func Scale(imageCount, extraEpochs int, scalable map[string]int, extraEpochScalable []string, mode Mode) (maxSteps int, scaled map[string]int, factor float64, err error) {
	switch mode {
	case ModeLinear:
		factor = math.Max(float64(imageCount)/float64(baseImages), 1.)
	case ModeSqrt:
		factor = math.Max(math.Sqrt(float64(imageCount)/float64(baseImages)), 1.)
	case ModeNone:
		factor = 1.
	default:
		return 0, nil, 0, errors.Errorf("unknown scale mode %q", mode)
	}

	extraSteps := extraEpochs * imageCount
	maxSteps = int(math.Round(float64(baseSteps)*factor)) + extraSteps

	scaled = make(map[string]int, len(scalable))
	for name, value := range scalable {
		scaled[name] = int(math.Round(float64(value) * factor))
	}
	for _, name := range extraEpochScalable {
		if _, ok := scaled[name]; ok {
			scaled[name] += extraSteps
		}
	}
	return maxSteps, scaled, factor, nil
}

// ToArgs serializes the budget and scaled parameters as flag/value pairs.
// Parameter order is sorted by name so repeated runs build identical command
// vectors.
func ToArgs(maxSteps int, scaled map[string]int) []string {
	args := []string{"--max_steps", strconv.Itoa(maxSteps)}
	names := make([]string, 0, len(scaled))
	for name := range scaled {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		args = append(args, "--"+name, strconv.Itoa(scaled[name]))
	}
	return args
}
