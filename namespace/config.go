package namespace

import (
	"errors"
	"fmt"

	"github.com/hupe1980/vecspace/distance"
	"github.com/hupe1980/vecspace/scorer"
)

// ErrInvalidConfig is returned for invalid namespace configurations.
var ErrInvalidConfig = errors.New("invalid namespace config")

// Config holds the per-namespace scoring configuration.
type Config struct {
	// Dimension fixes the dense dimension up front. Zero lets the first dense
	// insert establish it.
	Dimension int `json:"dimension" yaml:"dimension"`
	// Metric is the dense similarity metric.
	Metric distance.Metric `json:"metric" yaml:"metric"`
	// Alpha is the dense weight of hybrid scores.
	Alpha float64 `json:"alpha" yaml:"alpha"`
}

// DefaultConfig returns a cosine configuration with alpha 0.5 and no fixed dimension.
func DefaultConfig() Config {
	return Config{
		Metric: distance.MetricCosine,
		Alpha:  scorer.DefaultAlpha,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Dimension < 0 {
		return fmt.Errorf("%w: negative dimension %d", ErrInvalidConfig, c.Dimension)
	}
	if !c.Metric.Valid() {
		return fmt.Errorf("%w: unknown metric %v", ErrInvalidConfig, c.Metric)
	}
	if c.Alpha < 0 || c.Alpha > 1 || c.Alpha != c.Alpha {
		return fmt.Errorf("%w: alpha %v outside [0, 1]", ErrInvalidConfig, c.Alpha)
	}
	return nil
}
