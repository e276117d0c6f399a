package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Name  string `yaml:"name"`
	Limit int    `yaml:"limit"`
}

type validatedConfig struct {
	Name string `yaml:"name"`
}

var errNameRequired = errors.New("name is required")

func (c *validatedConfig) Validate() error {
	if c.Name == "" {
		return errNameRequired
	}
	return nil
}

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeFile(t, "name: test\nlimit: 42\n")

	var cfg testConfig
	require.NoError(t, Load(path, &cfg))

	assert.Equal(t, "test", cfg.Name)
	assert.Equal(t, 42, cfg.Limit)
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_CONFIG_NAME", "from-env")
	path := writeFile(t, "name: ${TEST_CONFIG_NAME}\n")

	var cfg testConfig
	require.NoError(t, Load(path, &cfg))

	assert.Equal(t, "from-env", cfg.Name)
}

func TestLoad_MissingFile(t *testing.T) {
	var cfg testConfig
	err := Load(filepath.Join(t.TempDir(), "nope.yaml"), &cfg)

	assert.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeFile(t, "name: [unclosed\n")

	var cfg testConfig
	assert.Error(t, Load(path, &cfg))
}

func TestLoad_RunsValidation(t *testing.T) {
	path := writeFile(t, "name: \"\"\n")

	var cfg validatedConfig
	err := Load(path, &cfg)

	assert.ErrorIs(t, err, errNameRequired)
}

func TestLoadIfExists_MissingFileLeavesDefaults(t *testing.T) {
	cfg := testConfig{Name: "default", Limit: 7}

	require.NoError(t, LoadIfExists(filepath.Join(t.TempDir(), "nope.yaml"), &cfg))

	assert.Equal(t, "default", cfg.Name)
	assert.Equal(t, 7, cfg.Limit)
}

func TestLoadIfExists_SkipsValidation(t *testing.T) {
	path := writeFile(t, "name: \"\"\n")

	var cfg validatedConfig
	assert.NoError(t, LoadIfExists(path, &cfg))
}

func TestLoadIfExists_PartialOverride(t *testing.T) {
	cfg := testConfig{Name: "default", Limit: 7}
	path := writeFile(t, "limit: 99\n")

	require.NoError(t, LoadIfExists(path, &cfg))

	assert.Equal(t, "default", cfg.Name)
	assert.Equal(t, 99, cfg.Limit)
}
