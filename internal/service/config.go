package service

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/volt-test/volt/internal/jobspec"
	"github.com/volt-test/volt/internal/process"
)

// EngineConfig is the engine section of the configuration file. Every key
// can be overridden by a VOLT_ prefixed environment variable, e.g.
// VOLT_ENGINE_BINARY or VOLT_ENGINE_TIMEOUT.
type EngineConfig struct {
	Binary      string            `mapstructure:"binary"`
	Args        []string          `mapstructure:"args"`
	Env         map[string]string `mapstructure:"env"`
	Dir         string            `mapstructure:"dir"`
	Input       string            `mapstructure:"input"`
	FileFlag    string            `mapstructure:"file_flag"`
	Format      string            `mapstructure:"format"`
	Timeout     time.Duration     `mapstructure:"timeout"`
	GracePeriod time.Duration     `mapstructure:"grace_period"`
	Mirror      bool              `mapstructure:"mirror"`
}

// SetDefaults registers the defaults of the engine section stored under key,
// which also makes viper resolve their environment overrides.
func SetDefaults(v *viper.Viper, key string) {
	v.SetEnvPrefix("VOLT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault(key+".binary", "")
	v.SetDefault(key+".args", []string{})
	v.SetDefault(key+".dir", "")
	v.SetDefault(key+".input", "stdin")
	v.SetDefault(key+".file_flag", "")
	v.SetDefault(key+".format", string(jobspec.JSON))
	v.SetDefault(key+".timeout", "0s")
	v.SetDefault(key+".grace_period", process.DefaultGracePeriod.String())
	v.SetDefault(key+".mirror", true)
}

// ParseConfig reads the engine section stored under key from the global viper.
func ParseConfig(key string) (EngineConfig, error) {
	return ParseConfigFrom(viper.GetViper(), key)
}

// ParseConfigFrom reads the engine section stored under key from v. Values
// are resolved key by key, so environment overrides apply to nested keys too.
func ParseConfigFrom(v *viper.Viper, key string) (EngineConfig, error) {
	sub := viper.New()
	prefix := key + "."
	for _, k := range v.AllKeys() {
		if rest, ok := strings.CutPrefix(k, prefix); ok {
			sub.Set(rest, v.Get(k))
		}
	}

	var cfg EngineConfig
	if err := sub.Unmarshal(&cfg); err != nil {
		return EngineConfig{}, err
	}
	switch cfg.Input {
	case "", "stdin", "file":
	default:
		return EngineConfig{}, fmt.Errorf("%s.input: unsupported value %q", key, cfg.Input)
	}
	switch jobspec.Format(cfg.Format) {
	case "", jobspec.JSON, jobspec.YAML:
	default:
		return EngineConfig{}, fmt.Errorf("%s.format: unsupported value %q", key, cfg.Format)
	}
	if cfg.Timeout < 0 || cfg.GracePeriod < 0 {
		return EngineConfig{}, fmt.Errorf("%s: durations must not be negative", key)
	}
	return cfg, nil
}

// Command returns the engine invocation. Env entries are added to the current
// environment, values starting with $ are expanded.
func (c EngineConfig) Command() process.Command {
	var env []string
	if len(c.Env) > 0 {
		keys := make([]string, 0, len(c.Env))
		for k := range c.Env {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		env = os.Environ()
		for _, k := range keys {
			v := c.Env[k]
			if strings.HasPrefix(v, "$") {
				v = os.ExpandEnv(v)
			}
			env = append(env, strings.ToUpper(k)+"="+v)
		}
	}

	input := process.InputStdin
	if c.Input == "file" {
		input = process.InputFile
	}
	return process.Command{
		Path:     c.Binary,
		Args:     c.Args,
		Env:      env,
		Dir:      c.Dir,
		Input:    input,
		FileFlag: c.FileFlag,
		Format:   jobspec.Format(c.Format),
	}
}

func (c EngineConfig) Policy() process.Policy {
	return process.Policy{
		MaxDuration: c.Timeout,
		GracePeriod: c.GracePeriod,
	}
}
