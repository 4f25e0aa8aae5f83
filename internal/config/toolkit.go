package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/banshee-data/trajectory.report/internal/counting"
	"github.com/banshee-data/trajectory.report/internal/monitoring"
	"github.com/banshee-data/trajectory.report/internal/report"
	"github.com/banshee-data/trajectory.report/internal/trajectory"
	"github.com/banshee-data/trajectory.report/internal/units"
)

// DefaultConfigPath is the path to the canonical toolkit defaults file.
const DefaultConfigPath = "config/toolkit.defaults.json"

const maxFileSize = 1 * 1024 * 1024 // 1MB

// ToolkitConfig is the JSON configuration for trajectory construction,
// counting and reporting. Unset fields fall back to the Get* defaults.
type ToolkitConfig struct {
	// Layer fields
	IDField        *string `json:"id_field,omitempty"`
	TimestampField *string `json:"timestamp_field,omitempty"`
	WidthField     *string `json:"width_field,omitempty"`
	LengthField    *string `json:"length_field,omitempty"`
	HeightField    *string `json:"height_field,omitempty"`
	TimestampUnit  *string `json:"timestamp_unit,omitempty"` // "", "s" or "ms"

	Workers *int `json:"workers,omitempty"`

	// Counting window and bucketing
	WindowStart    *string `json:"window_start,omitempty"` // RFC3339
	WindowEnd      *string `json:"window_end,omitempty"`   // RFC3339
	Interval       *string `json:"interval,omitempty"`     // duration string like "15m"
	IndexThreshold *int    `json:"index_threshold,omitempty"`

	// Reporting
	SpeedUnits    *string `json:"speed_units,omitempty"`
	HistogramBins *int    `json:"histogram_bins,omitempty"`
	Timezone      *string `json:"timezone,omitempty"`
}

func ptrString(v string) *string { return &v }
func ptrInt(v int) *int          { return &v }

// EmptyToolkitConfig returns a ToolkitConfig with all fields unset.
func EmptyToolkitConfig() *ToolkitConfig {
	return &ToolkitConfig{}
}

// LoadToolkitConfig loads a ToolkitConfig from a .json file of at most
// 1MB. Fields omitted from the file keep their defaults.
func LoadToolkitConfig(path string) (*ToolkitConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyToolkitConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	monitoring.Logf("config: loaded %s", cleanPath)
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath from the current directory
// or one of its ancestors. It panics when the file cannot be loaded and is
// intended for tests.
func MustLoadDefaultConfig() *ToolkitConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadToolkitConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

func parseTime(name string, v *string) (time.Time, error) {
	if v == nil || *v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, *v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s '%s': %w", name, *v, err)
	}
	return t, nil
}

// Validate checks that the configured values are usable.
func (c *ToolkitConfig) Validate() error {
	if _, err := trajectory.ParseTemporalUnit(c.GetTimestampUnitString()); err != nil {
		return fmt.Errorf("timestamp_unit: %w", err)
	}
	if c.Workers != nil && *c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", *c.Workers)
	}

	start, err := parseTime("window_start", c.WindowStart)
	if err != nil {
		return err
	}
	end, err := parseTime("window_end", c.WindowEnd)
	if err != nil {
		return err
	}
	if !start.IsZero() && !end.IsZero() && !end.After(start) {
		return fmt.Errorf("window_end %s must be after window_start %s", *c.WindowEnd, *c.WindowStart)
	}

	if c.Interval != nil && *c.Interval != "" {
		d, err := time.ParseDuration(*c.Interval)
		if err != nil {
			return fmt.Errorf("invalid interval '%s': %w", *c.Interval, err)
		}
		if d < 0 {
			return fmt.Errorf("interval must be non-negative, got %s", d)
		}
		if d > 0 && !start.IsZero() && !end.IsZero() && end.Sub(start)/d > counting.MaxBuckets {
			return fmt.Errorf("interval %s is too fine for the window: more than %d buckets", d, counting.MaxBuckets)
		}
	}

	if _, err := units.ParseSpeedUnit(c.GetSpeedUnits()); err != nil {
		return err
	}
	if c.HistogramBins != nil && *c.HistogramBins <= 0 {
		return fmt.Errorf("histogram_bins must be positive, got %d", *c.HistogramBins)
	}
	if c.Timezone != nil && !units.IsTimezoneValid(*c.Timezone) {
		return fmt.Errorf("invalid timezone '%s'", *c.Timezone)
	}
	return nil
}

func stringOr(v *string, def string) string {
	if v == nil || *v == "" {
		return def
	}
	return *v
}

// GetIDField returns the id_field value or the default.
func (c *ToolkitConfig) GetIDField() string { return stringOr(c.IDField, "id") }

// GetTimestampField returns the timestamp_field value or the default.
func (c *ToolkitConfig) GetTimestampField() string { return stringOr(c.TimestampField, "timestamp") }

// GetWidthField returns the width_field value or the default.
func (c *ToolkitConfig) GetWidthField() string { return stringOr(c.WidthField, "width") }

// GetLengthField returns the length_field value or the default.
func (c *ToolkitConfig) GetLengthField() string { return stringOr(c.LengthField, "length") }

// GetHeightField returns the height_field value or the default.
func (c *ToolkitConfig) GetHeightField() string { return stringOr(c.HeightField, "height") }

// GetTimestampUnitString returns the raw timestamp_unit value; empty
// requests inference.
func (c *ToolkitConfig) GetTimestampUnitString() string { return stringOr(c.TimestampUnit, "") }

// GetTimestampUnit returns the parsed timestamp unit, UnitUnknown when it
// should be inferred.
func (c *ToolkitConfig) GetTimestampUnit() trajectory.TemporalUnit {
	u, err := trajectory.ParseTemporalUnit(c.GetTimestampUnitString())
	if err != nil {
		return trajectory.UnitUnknown
	}
	return u
}

// GetWorkers returns the workers value, defaulting to GOMAXPROCS.
func (c *ToolkitConfig) GetWorkers() int {
	if c.Workers == nil || *c.Workers == 0 {
		return runtime.GOMAXPROCS(0)
	}
	return *c.Workers
}

// GetWindowStart returns the window start, zero when unbounded.
func (c *ToolkitConfig) GetWindowStart() time.Time {
	t, _ := parseTime("window_start", c.WindowStart)
	return t
}

// GetWindowEnd returns the window end, zero when unbounded.
func (c *ToolkitConfig) GetWindowEnd() time.Time {
	t, _ := parseTime("window_end", c.WindowEnd)
	return t
}

// GetInterval returns the bucket interval; zero disables bucketing.
func (c *ToolkitConfig) GetInterval() time.Duration {
	if c.Interval == nil || *c.Interval == "" {
		return 0
	}
	d, err := time.ParseDuration(*c.Interval)
	if err != nil {
		return 0
	}
	return d
}

// GetIndexThreshold returns the index_threshold value or the default.
func (c *ToolkitConfig) GetIndexThreshold() int {
	if c.IndexThreshold == nil {
		return counting.DefaultIndexThreshold
	}
	return *c.IndexThreshold
}

// GetSpeedUnits returns the speed_units value or the default.
func (c *ToolkitConfig) GetSpeedUnits() string { return stringOr(c.SpeedUnits, units.MPS) }

// GetHistogramBins returns the histogram_bins value or the default.
func (c *ToolkitConfig) GetHistogramBins() int {
	if c.HistogramBins == nil {
		return report.DefaultHistogramBins
	}
	return *c.HistogramBins
}

// GetTimezone returns the timezone value or the default.
func (c *ToolkitConfig) GetTimezone() string { return stringOr(c.Timezone, "UTC") }

// LayerOptions maps the configuration onto trajectory construction options.
func (c *ToolkitConfig) LayerOptions() trajectory.LayerOptions {
	return trajectory.LayerOptions{
		IDField:        c.GetIDField(),
		TimestampField: c.GetTimestampField(),
		WidthField:     c.GetWidthField(),
		LengthField:    c.GetLengthField(),
		HeightField:    c.GetHeightField(),
		TimestampUnit:  c.GetTimestampUnit(),
		Workers:        c.GetWorkers(),
	}
}

// EvaluatorOptions maps the configuration onto counting options.
func (c *ToolkitConfig) EvaluatorOptions(metrics *monitoring.Collector) counting.Options {
	return counting.Options{
		Workers:        c.GetWorkers(),
		Start:          c.GetWindowStart(),
		End:            c.GetWindowEnd(),
		Interval:       c.GetInterval(),
		IndexThreshold: c.GetIndexThreshold(),
		Metrics:        metrics,
	}
}
