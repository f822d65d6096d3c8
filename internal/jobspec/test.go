package jobspec

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// ErrInvalid is wrapped by every builder validation error.
var ErrInvalid = errors.New("invalid job specification")

var durationRx = regexp.MustCompile(`^\d+[smh]$`)

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

func checkDuration(what, d string) error {
	if !durationRx.MatchString(d) {
		return invalidf("invalid %s format %q: use <number>[s|m|h]", what, d)
	}
	return nil
}

func checkURL(raw string) error {
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		return invalidf("url %q should start with http:// or https://", raw)
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return invalidf("invalid url %q", raw)
	}
	return nil
}

// Spec is the wire document understood by the engine.
type Spec struct {
	Name         string         `json:"name" yaml:"name"`
	Description  string         `json:"description" yaml:"description"`
	VirtualUsers int            `json:"virtual_users" yaml:"virtual_users"`
	Target       Target         `json:"target" yaml:"target"`
	HTTPDebug    bool           `json:"http_debug" yaml:"http_debug"`
	RampUp       string         `json:"ramp_up,omitempty" yaml:"ramp_up,omitempty"`
	Duration     string         `json:"duration,omitempty" yaml:"duration,omitempty"`
	Scenarios    []ScenarioSpec `json:"scenarios" yaml:"scenarios"`
	Weights      []int          `json:"weights" yaml:"weights"`
}

type Target struct {
	URL         string `json:"url" yaml:"url"`
	IdleTimeout string `json:"idle_timeout" yaml:"idle_timeout"`
}

const (
	DefaultTargetURL   = "https://example.com"
	DefaultIdleTimeout = "30s"
)

// Test assembles a Spec. Setters never fail; the first invalid value of every
// setter is recorded and reported by Build.
type Test struct {
	name         string
	description  string
	virtualUsers int
	duration     string
	rampUp       string
	target       Target
	httpDebug    bool
	scenarios    []*Scenario
	errs         []error
}

func New(name, description string) *Test {
	return &Test{
		name:         name,
		description:  description,
		virtualUsers: 1,
		target:       Target{URL: DefaultTargetURL, IdleTimeout: DefaultIdleTimeout},
	}
}

func (t *Test) SetVirtualUsers(n int) *Test {
	if n < 1 {
		t.errs = append(t.errs, invalidf("virtual users count must be at least 1, got %d", n))
		return t
	}
	t.virtualUsers = n
	return t
}

func (t *Test) SetDuration(d string) *Test {
	if err := checkDuration("duration", d); err != nil {
		t.errs = append(t.errs, err)
		return t
	}
	t.duration = d
	return t
}

func (t *Test) SetRampUp(d string) *Test {
	if err := checkDuration("ramp-up", d); err != nil {
		t.errs = append(t.errs, err)
		return t
	}
	t.rampUp = d
	return t
}

func (t *Test) SetHTTPDebug(debug bool) *Test {
	t.httpDebug = debug
	return t
}

// SetTarget sets the target url; an empty idleTimeout means DefaultIdleTimeout.
func (t *Test) SetTarget(rawURL, idleTimeout string) *Test {
	if idleTimeout == "" {
		idleTimeout = DefaultIdleTimeout
	}
	var errs []error
	if err := checkURL(rawURL); err != nil {
		errs = append(errs, err)
	}
	if err := checkDuration("idle timeout", idleTimeout); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		t.errs = append(t.errs, errs...)
		return t
	}
	t.target = Target{URL: rawURL, IdleTimeout: idleTimeout}
	return t
}

// Scenario adds a new scenario and returns it for further configuration.
func (t *Test) Scenario(name, description string) *Scenario {
	s := newScenario(name, description)
	t.scenarios = append(t.scenarios, s)
	return s
}

func (t *Test) Name() string {
	return t.name
}

// Build validates the whole tree and returns the wire document.
func (t *Test) Build() (Spec, error) {
	errs := append([]error(nil), t.errs...)
	spec := Spec{
		Name:         t.name,
		Description:  t.description,
		VirtualUsers: t.virtualUsers,
		Target:       t.target,
		HTTPDebug:    t.httpDebug,
		RampUp:       t.rampUp,
		Duration:     t.duration,
		Scenarios:    make([]ScenarioSpec, 0, len(t.scenarios)),
		Weights:      make([]int, 0, len(t.scenarios)),
	}
	for _, s := range t.scenarios {
		ss, err := s.build()
		if err != nil {
			errs = append(errs, fmt.Errorf("scenario %q: %w", s.name, err))
			continue
		}
		spec.Scenarios = append(spec.Scenarios, ss)
		spec.Weights = append(spec.Weights, ss.Weight)
	}
	if err := errors.Join(errs...); err != nil {
		return Spec{}, err
	}
	return spec, nil
}
