package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds runtime configuration for the capture and decode pipeline.
// Fields may be loaded from a JSON or YAML file and overridden by command-line flags.
// Durations are stored in milliseconds so files stay human-editable.
type Config struct {
	Debug    bool   `json:"debug" yaml:"debug"`
	LogLevel string `json:"log_level" yaml:"log_level"`

	// Camera acquisition
	Device          string `json:"device" yaml:"device"`
	OwnerTag        string `json:"owner_tag" yaml:"owner_tag"`
	Facing          string `json:"facing" yaml:"facing"`
	PreferredWidth  int    `json:"preferred_width" yaml:"preferred_width"`
	PreferredHeight int    `json:"preferred_height" yaml:"preferred_height"`

	// Decode budgets
	QuickBudgetMS  int `json:"quick_budget_ms" yaml:"quick_budget_ms"`
	QuickMaxPasses int `json:"quick_max_passes" yaml:"quick_max_passes"`
	BurstAttempts  int `json:"burst_attempts" yaml:"burst_attempts"`
	BurstStaggerMS int `json:"burst_stagger_ms" yaml:"burst_stagger_ms"`
	FullBudgetMS   int `json:"full_budget_ms" yaml:"full_budget_ms"`
	FullMaxPasses  int `json:"full_max_passes" yaml:"full_max_passes"`

	// Region of interest, as fractions of the still's width and height.
	ROIWidth  float64 `json:"roi_width" yaml:"roi_width"`
	ROIHeight float64 `json:"roi_height" yaml:"roi_height"`

	// Quick-path transforms
	QuickScales []float64 `json:"quick_scales" yaml:"quick_scales"`
	Rotations   []int     `json:"rotations" yaml:"rotations"`
	TryInvert   bool      `json:"try_invert" yaml:"try_invert"`

	// Remote collaborators
	LookupURL        string `json:"lookup_url" yaml:"lookup_url"`
	AnalyzeURL       string `json:"analyze_url" yaml:"analyze_url"`
	LookupTimeoutMS  int    `json:"lookup_timeout_ms" yaml:"lookup_timeout_ms"`
	AnalyzeTimeoutMS int    `json:"analyze_timeout_ms" yaml:"analyze_timeout_ms"`
	LookupCacheSize  int    `json:"lookup_cache_size" yaml:"lookup_cache_size"`

	// Upload shaping for image analysis
	UploadMaxDim  int `json:"upload_max_dim" yaml:"upload_max_dim"`
	UploadQuality int `json:"upload_quality" yaml:"upload_quality"`

	// Presentation
	OverlayOffDelayMS int `json:"overlay_off_delay_ms" yaml:"overlay_off_delay_ms"`
}

// DefaultConfig returns a Config populated with standard defaults.
func DefaultConfig() *Config {
	return &Config{
		Debug:             false,
		LogLevel:          "info",
		Device:            "screen",
		OwnerTag:          "scan-surface",
		Facing:            "environment",
		PreferredWidth:    1920,
		PreferredHeight:   1080,
		QuickBudgetMS:     900,
		QuickMaxPasses:    7,
		BurstAttempts:     2,
		BurstStaggerMS:    120,
		FullBudgetMS:      2500,
		FullMaxPasses:     40,
		ROIWidth:          0.70,
		ROIHeight:         0.38,
		QuickScales:       []float64{0.75, 1.5},
		Rotations:         []int{90, 180, 270},
		TryInvert:         true,
		LookupTimeoutMS:   4000,
		AnalyzeTimeoutMS:  15000,
		LookupCacheSize:   256,
		UploadMaxDim:      1280,
		UploadQuality:     80,
		OverlayOffDelayMS: 150,
	}
}

// Validate clamps/normalizes values to safe ranges.
func (c *Config) Validate() error {
	d := DefaultConfig()
	if c.LogLevel == "" {
		c.LogLevel = d.LogLevel
	}
	if c.Device == "" {
		c.Device = d.Device
	}
	if strings.TrimSpace(c.OwnerTag) == "" {
		c.OwnerTag = d.OwnerTag
	}
	switch c.Facing {
	case "environment", "user", "any":
	default:
		c.Facing = d.Facing
	}
	if c.PreferredWidth <= 0 || c.PreferredHeight <= 0 {
		c.PreferredWidth, c.PreferredHeight = d.PreferredWidth, d.PreferredHeight
	}
	// Scanning must stay bounded: hundreds of milliseconds to low seconds.
	c.QuickBudgetMS = clampInt(c.QuickBudgetMS, 100, 5000, d.QuickBudgetMS)
	c.QuickMaxPasses = clampInt(c.QuickMaxPasses, 1, 64, d.QuickMaxPasses)
	c.BurstAttempts = clampInt(c.BurstAttempts, 1, 8, d.BurstAttempts)
	if c.BurstStaggerMS < 0 || c.BurstStaggerMS > 2000 {
		c.BurstStaggerMS = d.BurstStaggerMS
	}
	c.FullBudgetMS = clampInt(c.FullBudgetMS, 200, 5000, d.FullBudgetMS)
	c.FullMaxPasses = clampInt(c.FullMaxPasses, 1, 64, d.FullMaxPasses)
	if c.ROIWidth <= 0 || c.ROIWidth > 1 {
		c.ROIWidth = d.ROIWidth
	}
	if c.ROIHeight <= 0 || c.ROIHeight > 1 {
		c.ROIHeight = d.ROIHeight
	}
	scales := c.QuickScales[:0]
	for _, s := range c.QuickScales {
		if s > 0 && s != 1 && s <= 4 {
			scales = append(scales, s)
		}
	}
	c.QuickScales = scales
	rotations := c.Rotations[:0]
	for _, r := range c.Rotations {
		if r == 90 || r == 180 || r == 270 {
			rotations = append(rotations, r)
		}
	}
	c.Rotations = rotations
	c.LookupTimeoutMS = clampInt(c.LookupTimeoutMS, 100, 30000, d.LookupTimeoutMS)
	c.AnalyzeTimeoutMS = clampInt(c.AnalyzeTimeoutMS, 100, 60000, d.AnalyzeTimeoutMS)
	if c.LookupCacheSize < 0 {
		c.LookupCacheSize = 0
	}
	c.UploadMaxDim = clampInt(c.UploadMaxDim, 64, 4096, d.UploadMaxDim)
	c.UploadQuality = clampInt(c.UploadQuality, 1, 100, d.UploadQuality)
	if c.OverlayOffDelayMS < 0 || c.OverlayOffDelayMS > 1000 {
		c.OverlayOffDelayMS = d.OverlayOffDelayMS
	}
	return nil
}

func clampInt(v, lo, hi, def int) int {
	if v <= 0 {
		return def
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }

// QuickBudget is the deadline for one quick decode attempt.
func (c *Config) QuickBudget() time.Duration { return ms(c.QuickBudgetMS) }

// BurstStagger is the delay between the starts of consecutive burst attempts.
func (c *Config) BurstStagger() time.Duration { return ms(c.BurstStaggerMS) }

// FullBudget caps the last-resort decode.
func (c *Config) FullBudget() time.Duration { return ms(c.FullBudgetMS) }

func (c *Config) LookupTimeout() time.Duration  { return ms(c.LookupTimeoutMS) }
func (c *Config) AnalyzeTimeout() time.Duration { return ms(c.AnalyzeTimeoutMS) }

// OverlayOffDelay is how long the non-scanning overlay lingers before hiding.
func (c *Config) OverlayOffDelay() time.Duration { return ms(c.OverlayOffDelayMS) }

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// Load attempts to read configuration from the given path. Files ending in
// .yaml or .yml are parsed as YAML, anything else as JSON. If the file does not
// exist it returns DefaultConfig(). On decode error it returns defaults with the error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	if isYAML(path) {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return DefaultConfig(), err
	}
	_ = cfg.Validate()
	return cfg, nil
}

// Save writes the configuration to the given path, as YAML or JSON depending on the extension.
func (c *Config) Save(path string) error {
	_ = c.Validate()
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if isYAML(path) {
		enc := yaml.NewEncoder(f)
		enc.SetIndent(2)
		if err := enc.Encode(c); err != nil {
			return err
		}
		return enc.Close()
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(c)
}
