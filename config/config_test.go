package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	before := *cfg
	require.NoError(t, cfg.Validate())
	assert.Equal(t, before.QuickBudgetMS, cfg.QuickBudgetMS)
	assert.Equal(t, 900*time.Millisecond, cfg.QuickBudget())
	assert.Equal(t, 150*time.Millisecond, cfg.OverlayOffDelay())
	assert.Equal(t, []float64{0.75, 1.5}, cfg.QuickScales)
	assert.Equal(t, []int{90, 180, 270}, cfg.Rotations)
}

func TestValidate_ClampsBudgets(t *testing.T) {
	cfg := DefaultConfig()
	cfg.QuickBudgetMS = 60000
	cfg.FullBudgetMS = -1
	cfg.BurstAttempts = 100
	cfg.ROIWidth = 1.5
	cfg.Rotations = []int{45, 90}
	cfg.QuickScales = []float64{1, 0.5, -2}
	cfg.OwnerTag = "  "
	cfg.Facing = "sideways"
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 5000, cfg.QuickBudgetMS, "unbounded scanning must be clamped")
	assert.Equal(t, DefaultConfig().FullBudgetMS, cfg.FullBudgetMS)
	assert.Equal(t, 8, cfg.BurstAttempts)
	assert.Equal(t, 0.70, cfg.ROIWidth)
	assert.Equal(t, []int{90}, cfg.Rotations)
	assert.Equal(t, []float64{0.5}, cfg.QuickScales)
	assert.Equal(t, "scan-surface", cfg.OwnerTag)
	assert.Equal(t, "environment", cfg.Facing)
}

func TestValidate_ZeroStaggerAllowed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BurstStaggerMS = 0
	require.NoError(t, cfg.Validate())
	assert.Equal(t, time.Duration(0), cfg.BurstStagger())
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoad_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan.yaml")
	body := "quick_budget_ms: 600\nburst_attempts: 3\ndevice: dir:/tmp/frames\nlookup_url: http://localhost:9000/products\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 600*time.Millisecond, cfg.QuickBudget())
	assert.Equal(t, 3, cfg.BurstAttempts)
	assert.Equal(t, "dir:/tmp/frames", cfg.Device)
	assert.Equal(t, "http://localhost:9000/products", cfg.LookupURL)
	assert.Equal(t, DefaultConfig().FullBudgetMS, cfg.FullBudgetMS)
}

func TestLoad_BadJSONReturnsDefaultsAndError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
	cfg, err := Load(path)
	assert.Error(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestSaveLoad_JSONAndYAML(t *testing.T) {
	for _, name := range []string{"cfg.json", "cfg.yml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			cfg := DefaultConfig()
			cfg.QuickBudgetMS = 750
			cfg.AnalyzeURL = "http://analysis.local/v1/photo"
			require.NoError(t, cfg.Save(path))

			loaded, err := Load(path)
			require.NoError(t, err)
			assert.Equal(t, cfg, loaded)
		})
	}
}
