package scaling

import (
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Built-in scalable parameter defaults. These are copied into every merge,
// never handed out directly, so one invocation's overrides cannot leak into
// the next.
var defaultScalableParams = map[string]int{
	"model.density.densification_interval":              100,
	"model.density.opacity_reset_interval":              3000,
	"model.density.densify_from_iter":                   500,
	"model.density.densify_until_iter":                  15000,
	"model.gaussian.optimization.position_lr_max_steps": 30000,
}

var defaultExtraEpochScalableParams = []string{
	"model.gaussian.optimization.position_lr_max_steps",
	"model.density.densify_until_iter",
}

// ParamOptions select the sources merged into the final scalable set.
type ParamOptions struct {
	// NoDefault starts the merge from an empty base instead of the built-in
	// defaults.
	NoDefault bool

	// ConfigFile optionally names a yaml file with "scalable",
	// "extra_epoch_scalable" and "no_default" keys.
	ConfigFile string

	// Overrides are inline "name=value" tokens, applied last.
	Overrides []string

	// ExtraEpochOverrides are parameter names appended to the extra-epoch
	// scalable list.
	ExtraEpochOverrides []string
}

type scalableConfig struct {
	Scalable           map[string]int `yaml:"scalable"`
	ExtraEpochScalable []string       `yaml:"extra_epoch_scalable"`
	NoDefault          bool           `yaml:"no_default"`
}

// ParseParams runs the merge pipeline: built-in base, then file overrides,
// then inline overrides. Each stage is a value transformation on the copy;
// any malformed input is a fatal configuration error.
func ParseParams(opts ParamOptions) (map[string]int, []string, error) {
	scalable := map[string]int{}
	extraEpochScalable := []string{}
	if !opts.NoDefault {
		for name, value := range defaultScalableParams {
			scalable[name] = value
		}
		extraEpochScalable = append(extraEpochScalable, defaultExtraEpochScalableParams...)
	}

	if opts.ConfigFile != "" {
		fileConfig, err := loadScalableConfig(opts.ConfigFile)
		if err != nil {
			return nil, nil, err
		}
		if fileConfig.NoDefault {
			scalable = map[string]int{}
			extraEpochScalable = []string{}
		}
		for name, value := range fileConfig.Scalable {
			scalable[name] = value
		}
		extraEpochScalable = append(extraEpochScalable, fileConfig.ExtraEpochScalable...)
	}

	for _, token := range opts.Overrides {
		name, value, ok := strings.Cut(token, "=")
		if !ok || name == "" {
			return nil, nil, errors.Errorf("malformed scalable param %q, want name=value", token)
		}
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "malformed scalable param value in %q", token)
		}
		if parsed < 0 {
			return nil, nil, errors.Errorf("scalable param %q must be non-negative", token)
		}
		scalable[name] = parsed
	}
	extraEpochScalable = append(extraEpochScalable, opts.ExtraEpochOverrides...)

	return scalable, extraEpochScalable, nil
}

func loadScalableConfig(path string) (*scalableConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading scalable config %q", path)
	}

	// Surface typos: only the three known keys are allowed.
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrapf(err, "parsing scalable config %q", path)
	}
	for key := range raw {
		switch key {
		case "scalable", "extra_epoch_scalable", "no_default":
		default:
			return nil, errors.Errorf("unexpected key %q in scalable config %q", key, path)
		}
	}

	var config scalableConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, errors.Wrapf(err, "parsing scalable config %q", path)
	}
	return &config, nil
}
