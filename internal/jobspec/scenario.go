package jobspec

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
)

type ScenarioSpec struct {
	Name              string      `json:"name" yaml:"name"`
	Description       string      `json:"description" yaml:"description"`
	Weight            int         `json:"weight" yaml:"weight"`
	Steps             []StepSpec  `json:"steps" yaml:"steps"`
	AutoHandleCookies bool        `json:"auto_handle_cookies" yaml:"auto_handle_cookies"`
	ThinkTime         string      `json:"think_time,omitempty" yaml:"think_time,omitempty"`
	DataConfig        *DataConfig `json:"data_config,omitempty" yaml:"data_config,omitempty"`
}

const DefaultWeight = 100

type Scenario struct {
	name              string
	description       string
	weight            int
	thinkTime         string
	autoHandleCookies bool
	steps             []*Step
	dataSource        *DataSource
	errs              []error
}

func newScenario(name, description string) *Scenario {
	return &Scenario{name: name, description: description, weight: DefaultWeight}
}

// Step adds a new step, an empty name is reported by Build.
func (s *Scenario) Step(name string) *Step {
	st := newStep(name)
	s.steps = append(s.steps, st)
	return st
}

func (s *Scenario) SetWeight(w int) *Scenario {
	s.weight = w
	return s
}

func (s *Scenario) Weight() int {
	return s.weight
}

func (s *Scenario) SetThinkTime(d string) *Scenario {
	if err := checkDuration("think time", d); err != nil {
		s.errs = append(s.errs, err)
		return s
	}
	s.thinkTime = d
	return s
}

func (s *Scenario) AutoHandleCookies() *Scenario {
	s.autoHandleCookies = true
	return s
}

// SetDataSource attaches a CSV data source. It can be set only once.
func (s *Scenario) SetDataSource(ds DataSource) *Scenario {
	if s.dataSource != nil {
		s.errs = append(s.errs, invalidf("data source configuration already set"))
		return s
	}
	if err := ds.Validate(); err != nil {
		s.errs = append(s.errs, err)
		return s
	}
	s.dataSource = &ds
	return s
}

func (s *Scenario) build() (ScenarioSpec, error) {
	errs := append([]error(nil), s.errs...)
	ss := ScenarioSpec{
		Name:              s.name,
		Description:       s.description,
		Weight:            s.weight,
		Steps:             make([]StepSpec, 0, len(s.steps)),
		AutoHandleCookies: s.autoHandleCookies,
		ThinkTime:         s.thinkTime,
	}
	for i, st := range s.steps {
		sp, err := st.build()
		if err != nil {
			errs = append(errs, fmt.Errorf("step #%d %q: %w", i, st.name, err))
			continue
		}
		ss.Steps = append(ss.Steps, sp)
	}
	if s.dataSource != nil {
		dc, err := s.dataSource.config()
		if err != nil {
			errs = append(errs, err)
		} else {
			ss.DataConfig = &dc
		}
	}
	if err := errors.Join(errs...); err != nil {
		return ScenarioSpec{}, err
	}
	return ss, nil
}

// Data source modes.
const (
	ModeSequential = "sequential"
	ModeRandom     = "random"
	ModeUnique     = "unique"
)

var dataSourceModes = []string{ModeSequential, ModeRandom, ModeUnique}

// DataSource is a CSV file feeding values into a scenario.
type DataSource struct {
	Path      string
	Mode      string
	HasHeader bool
}

type DataConfig struct {
	DataSource string `json:"data_source" yaml:"data_source"`
	DataFormat string `json:"data_format" yaml:"data_format"`
	HasHeader  bool   `json:"has_header" yaml:"has_header"`
	Mode       string `json:"mode" yaml:"mode"`
}

func (ds DataSource) Validate() error {
	info, err := os.Stat(ds.Path)
	if err != nil || info.IsDir() {
		return invalidf("data source file %q does not exist", ds.Path)
	}
	if !slices.Contains(dataSourceModes, ds.Mode) {
		return invalidf("invalid data source mode %q: use sequential, random or unique", ds.Mode)
	}
	return nil
}

func (ds DataSource) config() (DataConfig, error) {
	if err := ds.Validate(); err != nil {
		return DataConfig{}, err
	}
	abs, err := filepath.Abs(ds.Path)
	if err != nil {
		return DataConfig{}, fmt.Errorf("resolving data source path: %w", err)
	}
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		abs = real
	}
	return DataConfig{
		DataSource: abs,
		DataFormat: "csv",
		HasHeader:  ds.HasHeader,
		Mode:       ds.Mode,
	}, nil
}
