package service_test

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/volt-test/volt/internal/jobspec"
	"github.com/volt-test/volt/internal/process"
	"github.com/volt-test/volt/internal/service"
)

const engineConfig = `
engine:
  binary: /opt/volt/volt-test
  args:
    - --quiet
  env:
    volt_region: $VOLT_TEST_REGION
    GODEBUG: "http2client=0"
  input: file
  file_flag: --config
  format: yaml
  timeout: 10m
`

func readConfig(t *testing.T, yml string) *viper.Viper {
	t.Helper()
	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(yml)))
	service.SetDefaults(v, "engine")
	return v
}

func TestParseConfig(t *testing.T) {
	// can't be parallel as it sets environment variables
	t.Setenv("VOLT_TEST_REGION", "eu")
	t.Setenv("VOLT_ENGINE_TIMEOUT", "90s")

	cfg, err := service.ParseConfigFrom(readConfig(t, engineConfig), "engine")
	require.NoError(t, err)
	t.Logf("got: %+v", cfg)

	require.Equal(t, "/opt/volt/volt-test", cfg.Binary)
	require.Equal(t, []string{"--quiet"}, cfg.Args)
	require.Equal(t, 90*time.Second, cfg.Timeout)
	require.Equal(t, process.DefaultGracePeriod, cfg.GracePeriod)
	require.True(t, cfg.Mirror)

	t.Run("command", func(t *testing.T) {
		cmd := cfg.Command()
		require.Equal(t, cfg.Binary, cmd.Path)
		require.Equal(t, process.InputFile, cmd.Input)
		require.Equal(t, "--config", cmd.FileFlag)
		require.Equal(t, jobspec.YAML, cmd.Format)
		require.Subset(t, cmd.Env, os.Environ())
		require.Contains(t, cmd.Env, "VOLT_REGION=eu")
		require.Contains(t, cmd.Env, "GODEBUG=http2client=0")
	})

	t.Run("policy", func(t *testing.T) {
		p := cfg.Policy()
		require.Equal(t, 90*time.Second, p.MaxDuration)
		require.Equal(t, process.DefaultGracePeriod, p.GracePeriod)
	})
}

func TestParseConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := service.ParseConfigFrom(readConfig(t, "service:\n  mode: manual\n"), "engine")
	require.NoError(t, err)
	require.Empty(t, cfg.Binary)
	require.Equal(t, "stdin", cfg.Input)
	require.Equal(t, "json", cfg.Format)
	require.Zero(t, cfg.Timeout)
	require.Equal(t, 5*time.Second, cfg.GracePeriod)

	cmd := cfg.Command()
	require.Nil(t, cmd.Env)
	require.Equal(t, process.InputStdin, cmd.Input)
	require.Equal(t, jobspec.JSON, cmd.Format)
}

func TestParseConfigInvalid(t *testing.T) {
	t.Parallel()

	_, err := service.ParseConfigFrom(readConfig(t, "engine:\n  input: pipe\n"), "engine")
	require.EqualError(t, err, `engine.input: unsupported value "pipe"`)

	_, err = service.ParseConfigFrom(readConfig(t, "engine:\n  format: toml\n"), "engine")
	require.EqualError(t, err, `engine.format: unsupported value "toml"`)

	_, err = service.ParseConfigFrom(readConfig(t, "engine:\n  timeout: soon\n"), "engine")
	require.Error(t, err)
}
