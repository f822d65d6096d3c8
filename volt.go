// Package volt runs load tests with the volt-test engine.
//
// A test is described with the builder returned by New and handed to a
// Client, which launches the engine, feeds it the job specification and
// parses the summary it prints:
//
//	test := volt.New("checkout", "checkout flow").SetVirtualUsers(10).SetDuration("1m")
//	test.Scenario("buy", "").Step("home").Get("https://shop.example.com/")
//	res, err := volt.Client{Timeout: 5 * time.Minute, Mirror: true}.Run(ctx, test)
package volt

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/volt-test/volt/internal/jobspec"
	"github.com/volt-test/volt/internal/parallel"
	"github.com/volt-test/volt/internal/process"
	"github.com/volt-test/volt/internal/report"
)

type (
	Test       = jobspec.Test
	Scenario   = jobspec.Scenario
	Step       = jobspec.Step
	DataSource = jobspec.DataSource
	Spec       = jobspec.Spec
	Format     = jobspec.Format

	Outcome        = process.Outcome
	Classification = process.Classification
	InputMode      = process.InputMode
	Registry       = process.Registry

	Report       = report.Report
	ResponseTime = report.ResponseTime
)

const (
	FailedToStart = process.FailedToStart
	Succeeded     = process.Succeeded
	Failed        = process.Failed
	TimedOut      = process.TimedOut
	Killed        = process.Killed

	InputStdin = process.InputStdin
	InputFile  = process.InputFile

	JSON = jobspec.JSON
	YAML = jobspec.YAML
)

// New starts the description of a load test.
func New(name, description string) *Test {
	return jobspec.New(name, description)
}

// DefaultRegistry returns the process wide signal registry. Call Register on
// it once, in main, to stop running engines on Ctrl+C.
func DefaultRegistry() *Registry {
	return process.DefaultRegistry()
}

// Client launches the volt-test engine. The zero value finds volt-test via
// VOLT_TEST_BINARY or PATH, streams the specification on stdin and runs
// without a time budget.
type Client struct {
	// Binary is the engine path, empty means VOLT_TEST_BINARY or PATH.
	Binary string
	Args   []string
	// Timeout bounds a run, zero means no limit.
	Timeout time.Duration
	// GracePeriod between the graceful stop request and the kill, zero means
	// 5s.
	GracePeriod time.Duration
	Input       InputMode
	FileFlag    string
	Format      Format
	// Mirror copies the engine output to Stdout and Stderr (os.Stdout and
	// os.Stderr when nil) as it arrives.
	Mirror bool
	Stdout io.Writer
	Stderr io.Writer
	// Registry routes process signals to running engines.
	Registry *Registry
	// Limit bounds the number of engines RunAll runs at once, zero means no
	// limit.
	Limit int
}

// Result of a run. Report is parsed from the engine output when the run
// succeeded.
type Result struct {
	Outcome Outcome
	Report  Report
}

func (c Client) orchestrator() process.Orchestrator {
	o := process.Orchestrator{
		Command: process.Command{
			Path:     c.Binary,
			Args:     c.Args,
			Input:    c.Input,
			FileFlag: c.FileFlag,
			Format:   c.Format,
		},
		Policy: process.Policy{
			MaxDuration: c.Timeout,
			GracePeriod: c.GracePeriod,
		},
		Registry: c.Registry,
	}
	if c.Mirror {
		o.Mirror = process.Mirror{Stdout: c.Stdout, Stderr: c.Stderr}
		if o.Mirror.Stdout == nil {
			o.Mirror.Stdout = os.Stdout
		}
		if o.Mirror.Stderr == nil {
			o.Mirror.Stderr = os.Stderr
		}
	}
	return o
}

// Run builds test and executes it. The error reports an invalid test only,
// engine failures are described by Result.Outcome.
func (c Client) Run(ctx context.Context, test *Test) (Result, error) {
	spec, err := test.Build()
	if err != nil {
		return Result{}, err
	}
	return c.Execute(ctx, spec), nil
}

// Execute runs an already built or loaded specification.
func (c Client) Execute(ctx context.Context, spec any) Result {
	out := c.orchestrator().Execute(ctx, spec)
	res := Result{Outcome: out}
	if out.Succeeded() {
		res.Report = report.Parse(out.Stdout)
	}
	return res
}

// RunAll runs every test as an independent engine, at most Limit at once.
// Results and errors keep the order of tests.
func (c Client) RunAll(ctx context.Context, tests ...*Test) ([]Result, []error) {
	return parallel.Map(ctx, c.Limit, tests, c.Run)
}
