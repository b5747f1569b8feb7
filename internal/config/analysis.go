package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Threshold selection criteria.
const (
	CriterionEER  = "eer"
	CriterionHTER = "hter"
)

// AnalysisConfig holds the options shared by the scoring and analysis
// commands. Nil fields fall back to the defaults returned by the Get*
// methods, so partial files are safe.
type AnalysisConfig struct {
	Protocol *string `json:"protocol,omitempty"`
	Support  *string `json:"support,omitempty"` // "hand", "fixed" or "hand+fixed"

	Criterion      *string `json:"criterion,omitempty"`
	RunningAverage *bool   `json:"running_average,omitempty"`

	// Scores summarise sliding windows of this many frames when set.
	WindowSize *int `json:"window_size,omitempty"`
	Overlap    *int `json:"overlap,omitempty"`

	MisclassifiedAt *int `json:"misclassified_at,omitempty"`
	// Number of leading scores averaged per file for five-column output.
	Average *int `json:"average,omitempty"`
	Workers *int `json:"workers,omitempty"`
}

func ptrString(v string) *string { return &v }
func ptrBool(v bool) *bool       { return &v }
func ptrInt(v int) *int          { return &v }

// EmptyAnalysisConfig returns a config with every field unset.
func EmptyAnalysisConfig() *AnalysisConfig {
	return &AnalysisConfig{}
}

// DefaultAnalysisConfig returns a config with every field set to its
// default.
func DefaultAnalysisConfig() *AnalysisConfig {
	e := EmptyAnalysisConfig()
	return &AnalysisConfig{
		Protocol:        ptrString(e.GetProtocol()),
		Support:         ptrString(e.GetSupport()),
		Criterion:       ptrString(e.GetCriterion()),
		RunningAverage:  ptrBool(e.GetRunningAverage()),
		WindowSize:      ptrInt(e.GetWindowSize()),
		Overlap:         ptrInt(e.GetOverlap()),
		MisclassifiedAt: ptrInt(e.GetMisclassifiedAt()),
		Average:         ptrInt(e.GetAverage()),
		Workers:         ptrInt(e.GetWorkers()),
	}
}

// LoadAnalysisConfig loads an AnalysisConfig from a JSON file.
func LoadAnalysisConfig(path string) (*AnalysisConfig, error) {
	cfg := EmptyAnalysisConfig()
	if err := readJSON(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Merge returns a copy of c with the fields set in o taking precedence.
func (c *AnalysisConfig) Merge(o *AnalysisConfig) *AnalysisConfig {
	out := *c
	if o == nil {
		return &out
	}
	if o.Protocol != nil {
		out.Protocol = o.Protocol
	}
	if o.Support != nil {
		out.Support = o.Support
	}
	if o.Criterion != nil {
		out.Criterion = o.Criterion
	}
	if o.RunningAverage != nil {
		out.RunningAverage = o.RunningAverage
	}
	if o.WindowSize != nil {
		out.WindowSize = o.WindowSize
	}
	if o.Overlap != nil {
		out.Overlap = o.Overlap
	}
	if o.MisclassifiedAt != nil {
		out.MisclassifiedAt = o.MisclassifiedAt
	}
	if o.Average != nil {
		out.Average = o.Average
	}
	if o.Workers != nil {
		out.Workers = o.Workers
	}
	return &out
}

// Validate checks that the configuration values are valid.
func (c *AnalysisConfig) Validate() error {
	if c.Criterion != nil {
		switch *c.Criterion {
		case CriterionEER, CriterionHTER:
		default:
			return fmt.Errorf("criterion must be %q or %q, got %q", CriterionEER, CriterionHTER, *c.Criterion)
		}
	}
	if c.Support != nil {
		switch *c.Support {
		case "hand", "fixed", "hand+fixed":
		default:
			return fmt.Errorf("support must be hand, fixed or hand+fixed, got %q", *c.Support)
		}
	}

	size, overlap := c.GetWindowSize(), c.GetOverlap()
	if size < 0 {
		return fmt.Errorf("window_size must be non-negative, got %d", size)
	}
	if size == 0 && overlap != 0 {
		return fmt.Errorf("overlap requires window_size, got overlap %d", overlap)
	}
	if size > 0 && (overlap < 0 || overlap >= size) {
		return fmt.Errorf("overlap must be in [0, %d), got %d", size, overlap)
	}

	if c.Average != nil && *c.Average < 0 {
		return fmt.Errorf("average must be non-negative, got %d", *c.Average)
	}
	if c.MisclassifiedAt != nil && *c.MisclassifiedAt < -1 {
		return fmt.Errorf("misclassified_at must be a frame or -1 for the last one, got %d", *c.MisclassifiedAt)
	}
	return nil
}

// GetProtocol returns the protocol or the default.
func (c *AnalysisConfig) GetProtocol() string {
	if c.Protocol == nil {
		return "grandtest"
	}
	return *c.Protocol
}

// GetSupport returns the support or the default.
func (c *AnalysisConfig) GetSupport() string {
	if c.Support == nil {
		return "hand+fixed"
	}
	return *c.Support
}

// GetCriterion returns the threshold criterion or the default.
func (c *AnalysisConfig) GetCriterion() string {
	if c.Criterion == nil {
		return CriterionEER
	}
	return *c.Criterion
}

// GetRunningAverage returns the cumulative fusion mode or the default.
func (c *AnalysisConfig) GetRunningAverage() bool {
	if c.RunningAverage == nil {
		return true
	}
	return *c.RunningAverage
}

// GetWindowSize returns the window size, 0 meaning per-frame scores.
func (c *AnalysisConfig) GetWindowSize() int {
	if c.WindowSize == nil {
		return 0
	}
	return *c.WindowSize
}

// GetOverlap returns the window overlap.
func (c *AnalysisConfig) GetOverlap() int {
	if c.Overlap == nil {
		return 0
	}
	return *c.Overlap
}

// GetMisclassifiedAt returns the frame for the misclassification listing.
func (c *AnalysisConfig) GetMisclassifiedAt() int {
	if c.MisclassifiedAt == nil {
		return 220
	}
	return *c.MisclassifiedAt
}

// GetAverage returns the number of scores merged per file.
func (c *AnalysisConfig) GetAverage() int {
	if c.Average == nil {
		return 11
	}
	return *c.Average
}

// GetWorkers returns the number of decision workers, 0 meaning GOMAXPROCS.
func (c *AnalysisConfig) GetWorkers() int {
	if c.Workers == nil {
		return 0
	}
	return *c.Workers
}

// readJSON decodes a .json file of at most 1MB into v.
func readJSON(path string, v any) error {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse config JSON: %w", err)
	}
	return nil
}
