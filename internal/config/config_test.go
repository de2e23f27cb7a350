package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/product-detector/internal/config"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFile_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := config.LoadFile(filepath.Join(t.TempDir(), "absent.yml"))
	require.NoError(t, err)

	assert.Equal(t, config.DefaultPort, cfg.Service.Port)
	assert.Equal(t, config.DefaultMaxFeatures, cfg.Vectorizer.MaxFeatures)
	assert.InDelta(t, config.DefaultTestSize, cfg.Training.TestSize, 1e-9)
	assert.Equal(t, int64(config.DefaultSeed), cfg.Training.Seed)
	assert.Equal(t, config.DefaultModels, cfg.Training.Models)
	assert.Equal(t, "5432", cfg.Database.Port)
	assert.Equal(t, "http", cfg.Fetcher.Mode)
}

func TestLoadFile_YAMLAndEnvOverrides(t *testing.T) {
	path := writeFile(t, `
service:
  port: 9000
fetcher:
  mode: browser
  timeout: 10s
database:
  driver: mysql
detector:
  text_selectors: ["h1", "p"]
`)
	t.Setenv("VECTORIZER_MAX_FEATURES", "250")
	t.Setenv("TRAINING_MODELS", "adaboost, naive_bayes")

	cfg, err := config.LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Service.Port)
	assert.Equal(t, "browser", cfg.Fetcher.Mode)
	assert.Equal(t, 10*time.Second, cfg.Fetcher.Timeout)
	assert.Equal(t, "3306", cfg.Database.Port)
	assert.Equal(t, []string{"h1", "p"}, cfg.Detector.TextSelectors)
	assert.Equal(t, 250, cfg.Vectorizer.MaxFeatures)
	assert.Equal(t, []string{"adaboost", "naive_bayes"}, cfg.Training.Models)
}

func TestLoad_MissingFileRejectedWhenRequired(t *testing.T) {
	_, err := config.Load[config.Config](filepath.Join(t.TempDir(), "absent.yml"), false)
	require.Error(t, err)
}

func TestValidate_ReportsEveryField(t *testing.T) {
	cfg := &config.Config{}
	config.SetDefaults(cfg)
	cfg.Fetcher.Mode = "carrier-pigeon"
	cfg.Training.TestSize = 1.5
	cfg.Training.Models = []string{"xgboost"}

	err := cfg.Validate()
	require.Error(t, err)

	var ve *config.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Contains(t, err.Error(), "fetcher.mode")
	assert.Contains(t, err.Error(), "training.test_size")
	assert.Contains(t, err.Error(), `unknown model "xgboost"`)
}

func TestGetConfigPath(t *testing.T) {
	assert.Equal(t, "config.yml", config.GetConfigPath("config.yml"))
	t.Setenv(config.EnvConfigPath, "/etc/pd.yml")
	assert.Equal(t, "/etc/pd.yml", config.GetConfigPath("config.yml"))
}
