package service

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/volt-test/volt/internal/jobspec"
)

// Job is a named job specification. Spec is anything jobspec.Encode accepts:
// a built jobspec.Spec, a loaded *jobspec.Document or a plain map.
type Job struct {
	Name string
	Spec any
}

// LoadJob reads a YAML or JSON job specification file. The job is named after
// the specification name and, without one, after the file.
func LoadJob(path string) (Job, error) {
	f, err := os.Open(path)
	if err != nil {
		return Job{}, err
	}
	defer func() {
		_ = f.Close()
	}()

	doc, err := jobspec.Load(f)
	if err != nil {
		return Job{}, fmt.Errorf("loading %s: %w", path, err)
	}
	name := doc.Name()
	if name == "" {
		base := filepath.Base(path)
		name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return Job{Name: name, Spec: doc}, nil
}

// LoadJobs loads every path with LoadJob and fails on the first error.
func LoadJobs(paths ...string) ([]Job, error) {
	jobs := make([]Job, 0, len(paths))
	for _, p := range paths {
		j, err := LoadJob(p)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}
