package model

import (
	"context"
	"io"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/encoding/yaml"

	_ "embed"
)

// Enum helpers (optional).
const (
	AuthTypeNone        = "none"
	AuthTypeStaticToken = "static_token"

	ServiceModeManual = "manual"
	ServiceModeTimer  = "timer"

	InputStdin = "stdin"
	InputFile  = "file"

	LogStderr  = "stderr"
	LogStdout  = "stdout"
	LogDiscard = "discard"
)

//go:embed config.cue
var cueSource []byte

var (
	cueCtx *cue.Context
	schema cue.Value
)

func init() {
	if len(cueSource) == 0 {
		panic("variable cueSource is empty")
	}
	cueCtx = cuecontext.New()
	compiled := cueCtx.CompileBytes(cueSource)
	if compiled.Err() != nil {
		panic(compiled.Err())
	}

	schema = compiled.LookupPath(cue.ParsePath("#Config"))
	if schema.Err() != nil {
		panic(schema.Err())
	}
}

type Config struct {
	Version int     `json:"version" yaml:"version"` // fixed 0 for now
	Engine  *Engine `json:"engine,omitempty" yaml:"engine,omitempty"`
	Service Service `json:"service" yaml:"service"`
}

// Engine describes how the volt-test binary is launched. Durations use Go
// syntax (90s, 2m30s).
type Engine struct {
	Binary      *string           `json:"binary,omitempty" yaml:"binary,omitempty"` // path or name, PATH and VOLT_TEST_BINARY otherwise
	Args        []string          `json:"args,omitempty" yaml:"args,omitempty"`
	Env         map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
	Dir         *string           `json:"dir,omitempty" yaml:"dir,omitempty"`
	Input       *string           `json:"input,omitempty" yaml:"input,omitempty"` // "stdin" | "file"
	FileFlag    *string           `json:"file_flag,omitempty" yaml:"file_flag,omitempty"`
	Format      *string           `json:"format,omitempty" yaml:"format,omitempty"` // "json" | "yaml"
	Timeout     *string           `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	GracePeriod *string           `json:"grace_period,omitempty" yaml:"grace_period,omitempty"`
	Mirror      *bool             `json:"mirror,omitempty" yaml:"mirror,omitempty"`
}

// Service configures how job specifications are run and where reports go.
type Service struct {
	Mode       string         `json:"mode" yaml:"mode"` // "manual" | "timer"
	Verbose    *bool          `json:"verbose,omitempty" yaml:"verbose,omitempty"`
	Log        *string        `json:"log,omitempty" yaml:"log,omitempty"`         // "stderr"|"stdout"|"discard"|path
	Dir        *string        `json:"dir,omitempty" yaml:"dir,omitempty"`         // report directory
	History    *string        `json:"history,omitempty" yaml:"history,omitempty"` // sqlite database path
	Specs      []string       `json:"specs,omitempty" yaml:"specs,omitempty"`     // job specification files
	Repository *Repository    `json:"repository,omitempty" yaml:"repository,omitempty"`
	Schedule   *TimerSchedule `json:"schedule,omitempty" yaml:"schedule,omitempty"` // required in timer mode
}

// TimerSchedule holds exactly one of a cron expression or an ISO-8601 duration.
type TimerSchedule struct {
	Cron     string `json:"cron,omitempty" yaml:"cron,omitempty"`
	Duration string `json:"duration,omitempty" yaml:"duration,omitempty"`
}

// Repository publication settings.
type Repository struct {
	Enabled *bool  `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	URL     string `json:"url" yaml:"url"`
	Auth    Auth   `json:"auth" yaml:"auth"` // discriminated union by Auth.Type
}

// Auth is a tagged union: Type "none" or "static_token".
type Auth struct {
	Type  string `json:"type" yaml:"type"`                       // "none" | "static_token"
	Token string `json:"token,omitempty" yaml:"token,omitempty"` // required when Type == "static_token"
}

// LoadConfig validates YAML from r against CUE schema and decodes to Config.
func LoadConfig(r io.Reader) (*Config, error) {
	yamlFile, err := yaml.Extract("config.yaml", r)
	if err != nil {
		return nil, err
	}
	yamlValue := cueCtx.BuildFile(yamlFile)

	unified := schema.Unify(yamlValue)
	if err := unified.Validate(
		cue.All(),          // all constraints
		cue.Concrete(true), // no incomplete values
	); err != nil {
		return nil, err
	}

	var out Config
	if err := unified.Decode(&out); err != nil {
		return nil, err
	}

	return &out, nil
}

// DefaultConfig is written when no configuration file exists.
func DefaultConfig(_ context.Context) Config {
	return Config{
		Version: 0,
		Engine: &Engine{
			Input:       ptr(InputStdin),
			Format:      ptr("json"),
			GracePeriod: ptr("5s"),
			Mirror:      ptr(true),
		},
		Service: Service{
			Mode:    ServiceModeManual,
			Verbose: ptr(false),
			Log:     ptr(LogStderr),
		},
	}
}

func ptr[T any](v T) *T {
	return &v
}
