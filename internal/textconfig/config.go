// Package textconfig loads the core's small set of tunables the way the
// log-capture pipeline loads its YAML config: defaults, then an optional
// file, then environment-variable overrides.
package textconfig

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v2"
)

// Config holds the ambient tunables for the arena/tracker/rope core.
type Config struct {
	// CounterOffset reserves counter space for synthetic inserts used by
	// a document's initial content, so they never collide with real
	// operation counters. Defaults to math.MaxInt32/2.
	CounterOffset int32 `yaml:"counter_offset"`

	// GCLiveRatioThreshold is the ratio of live codepoints to all
	// codepoints ever inserted below which the plain-text rope recomputes
	// slice aliveness on export.
	GCLiveRatioThreshold float64 `yaml:"gc_live_ratio_threshold"`

	// DebugAssertions is loaded like the other fields, but no component
	// reads it: the tracker checks neither for an already-covered apply
	// nor for an out-of-range checkout, whatever its value.
	DebugAssertions bool `yaml:"debug_assertions"`

	// AssertHeadEqualsFrontier resolves the open question in spec.md §9(a):
	// when true, CheckHeadAgainstFrontier on TextContainer and
	// RichtextContainer, called by the caller after applying, verifies the
	// head matches the log store's frontier and aborts via apperrors if
	// not. TrackApply itself does not check it.
	AssertHeadEqualsFrontier bool `yaml:"assert_head_equals_frontier"`
}

// Defaults returns the configuration used when nothing else is supplied.
func Defaults() Config {
	return Config{
		CounterOffset:            (1<<31 - 1) / 2,
		GCLiveRatioThreshold:     0.5,
		DebugAssertions:          false,
		AssertHeadEqualsFrontier: false,
	}
}

// Load builds a Config from defaults, an optional YAML file, and
// environment-variable overrides, in that order — each later source wins.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if uerr := yaml.Unmarshal(data, &cfg); uerr != nil {
				return cfg, uerr
			}
		} else if !os.IsNotExist(err) {
			return cfg, err
		}
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v, ok := os.LookupEnv("CRDT_COUNTER_OFFSET"); ok {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			cfg.CounterOffset = int32(n)
		}
	}
	if v, ok := os.LookupEnv("CRDT_GC_LIVE_RATIO_THRESHOLD"); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.GCLiveRatioThreshold = f
		}
	}
	if v, ok := os.LookupEnv("CRDT_DEBUG_ASSERTIONS"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.DebugAssertions = b
		}
	}
	if v, ok := os.LookupEnv("CRDT_ASSERT_HEAD_EQUALS_FRONTIER"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.AssertHeadEqualsFrontier = b
		}
	}
}
