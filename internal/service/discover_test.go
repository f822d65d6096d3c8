package service_test

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"

	"github.com/volt-test/volt/internal/service"
)

func TestSpecs(t *testing.T) {
	t.Parallel()

	root := fstest.MapFS{
		"checkout.yaml":      {Data: []byte("name: checkout\n")},
		"api/login.JSON":     {Data: []byte("{}")},
		"api/notes.txt":      {Data: []byte("notes")},
		"api/v2/search.yml":  {Data: []byte("name: search\n")},
		".git/config.yaml":   {Data: []byte("ignored")},
		"fixtures/users.csv": {Data: []byte("id\n1\n")},
	}

	var got []string
	for path, err := range service.Specs(t.Context(), root, "specs") {
		require.NoError(t, err)
		got = append(got, path)
	}
	require.Equal(t, []string{
		filepath.Join("specs", "api", "login.JSON"),
		filepath.Join("specs", "api", "v2", "search.yml"),
		filepath.Join("specs", "checkout.yaml"),
	}, got)
}

func TestExpandPaths(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "suite"), 0o755))
	single := filepath.Join(dir, "single.yaml")
	require.NoError(t, os.WriteFile(single, []byte("name: single\n"), 0o644))
	for _, name := range []string{"b.yaml", "a.json", "readme.md"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "suite", name), []byte("{}"), 0o644))
	}

	paths, err := service.ExpandPaths(t.Context(), single, filepath.Join(dir, "suite"))
	require.NoError(t, err)
	require.Equal(t, []string{
		single,
		filepath.Join(dir, "suite", "a.json"),
		filepath.Join(dir, "suite", "b.yaml"),
	}, paths)

	_, err = service.ExpandPaths(t.Context(), filepath.Join(dir, "missing"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
