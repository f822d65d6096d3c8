package process

import (
	"fmt"
	"os"
	"os/exec"
)

const (
	// BinaryEnv overrides the engine location when no explicit path is set.
	BinaryEnv = "VOLT_TEST_BINARY"
	// BinaryName is looked up in PATH as the last resort.
	BinaryName = "volt-test"
)

// Locate resolves the engine executable. An explicit path wins, then
// $VOLT_TEST_BINARY, then volt-test in PATH.
func Locate(path string) (string, error) {
	source := "path"
	if path == "" {
		if env := os.Getenv(BinaryEnv); env != "" {
			path, source = env, BinaryEnv
		} else {
			path, source = BinaryName, "PATH"
		}
	}
	resolved, err := exec.LookPath(path)
	if err != nil {
		return "", &LaunchError{
			Path: path,
			Err:  fmt.Errorf("engine binary not found (from %s): %w", source, err),
		}
	}
	return resolved, nil
}
