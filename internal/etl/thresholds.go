package etl

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Thresholds holds the numeric cut-offs used by the plausibility rules. The
// rule order and reason strings are fixed; only the cut-offs are tunable.
type Thresholds struct {
	FareOutlierTotal    float64 `yaml:"fare_outlier_total"`
	FareOutlierDistance float64 `yaml:"fare_outlier_distance"`
	ShortTripDistance   float64 `yaml:"short_trip_distance"`
	ShortTripSpeed      float64 `yaml:"short_trip_speed"`
	ZeroDistanceMax     float64 `yaml:"zero_distance_max"`
	ZeroDistanceTotal   float64 `yaml:"zero_distance_total"`
	MaxSpeedMPH         float64 `yaml:"max_speed_mph"`
	MaxDurationSeconds  int64   `yaml:"max_duration_seconds"`
}

// DefaultThresholds returns the standard cut-offs.
func DefaultThresholds() Thresholds {
	return Thresholds{
		FareOutlierTotal:    50,
		FareOutlierDistance: 0.5,
		ShortTripDistance:   1.0,
		ShortTripSpeed:      30,
		ZeroDistanceMax:     0.1,
		ZeroDistanceTotal:   10.0,
		MaxSpeedMPH:         100,
		MaxDurationSeconds:  43200, // 12 hours
	}
}

// LoadThresholds reads threshold overrides from a YAML file. Keys absent from
// the file keep their default values.
func LoadThresholds(path string) (Thresholds, error) {
	t := DefaultThresholds()

	data, err := os.ReadFile(path)
	if err != nil {
		return t, eris.Wrapf(err, "etl: read rules file %s", path)
	}

	var wrapper struct {
		Rules Thresholds `yaml:"rules"`
	}
	wrapper.Rules = t
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return t, eris.Wrap(err, "etl: parse rules file")
	}

	return wrapper.Rules, nil
}
