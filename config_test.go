package lambert

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChristopherRabotin/lambert/rootfind"
)

func viperFrom(t *testing.T, toml string) *viper.Viper {
	t.Helper()
	v := viper.New()
	v.SetConfigType("toml")
	require.NoError(t, v.ReadConfig(strings.NewReader(toml)))
	return v
}

func TestConfigDefaults(t *testing.T) {
	conf, err := ConfigFrom(viper.New())
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), conf)
	assert.IsType(t, rootfind.LevenbergMarquardt{}, conf.Solver.NewSolver())
}

func TestConfigOverrides(t *testing.T) {
	conf, err := ConfigFrom(viperFrom(t, `
[general]
output_path = "/tmp/out"
log_level = "debug"

[solver]
method = "Minimize"
tolerance = 1e-9
max_iterations = 500
retries = 2
concurrent = false
`))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/out", conf.OutputDir)
	assert.Equal(t, "debug", conf.LogLevel)
	assert.Equal(t, "minimize", conf.Solver.Method)
	assert.Equal(t, 1e-9, conf.Solver.Tolerance)
	assert.Equal(t, 500, conf.Solver.MaxIterations)
	assert.Equal(t, 2, conf.Solver.Retries)
	assert.False(t, conf.Solver.Concurrent)
	// Unset keys keep their defaults.
	assert.Equal(t, DefaultPerturbation, conf.Solver.Perturbation)
	assert.Equal(t, ClosureTolerance, conf.Solver.Closure)

	solver, ok := conf.Solver.NewSolver().(rootfind.Minimizer)
	require.True(t, ok)
	assert.Equal(t, 500, solver.Settings.MaxIterations)

	sw := conf.Solver.NewSweeper(nil, nil)
	assert.Equal(t, 2, sw.retries)
	assert.False(t, sw.concurrent)
}

func TestConfigValidation(t *testing.T) {
	for _, toml := range []string{
		"[solver]\nmethod = \"newton\"",
		"[solver]\ntolerance = -1.0",
		"[solver]\nclosure = 1e-10",
		"[solver]\nmax_iterations = 0",
		"[solver]\nretries = -1",
		"[solver]\nperturbation = 1.5",
	} {
		_, err := ConfigFrom(viperFrom(t, toml))
		assert.Error(t, err, toml)
	}
}

func TestLoadConfig(t *testing.T) {
	t.Setenv(ConfigEnv, "")
	conf, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), conf)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "conf.toml"), []byte("[solver]\nretries = 9\n"), 0o644))
	t.Setenv(ConfigEnv, dir)
	conf, err = LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, 9, conf.Solver.Retries)

	t.Setenv(ConfigEnv, t.TempDir())
	_, err = LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfigFrom(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "conf.toml"), []byte("[solver]\nmethod = \"minimize\"\n"), 0o644))
	t.Setenv(ConfigEnv, t.TempDir())
	conf, err := LoadConfigFrom(dir)
	require.NoError(t, err)
	assert.Equal(t, "minimize", conf.Solver.Method)
	// The environment is left untouched.
	assert.NotEqual(t, dir, os.Getenv(ConfigEnv))

	conf, err = LoadConfigFrom("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), conf)
}
