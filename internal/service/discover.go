package service

import (
	"context"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

var specExts = []string{".yaml", ".yml", ".json"}

// Specs recursively walks root and yields the path of every regular file
// with a job specification extension, prefixed by name. Hidden directories
// are skipped and symlinks are not followed.
func Specs(ctx context.Context, root fs.FS, name string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		fn := func(path string, d fs.DirEntry, err error) error {
			if ctx.Err() != nil {
				return fs.SkipAll
			}
			if err != nil {
				if !yield(filepath.Join(name, path), err) {
					return fs.SkipAll
				}
				return nil
			}
			if d.IsDir() {
				if path != "." && strings.HasPrefix(d.Name(), ".") {
					return fs.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() || !slices.Contains(specExts, strings.ToLower(filepath.Ext(path))) {
				return nil
			}
			if !yield(filepath.Join(name, path), nil) {
				return fs.SkipAll
			}
			return nil
		}
		_ = fs.WalkDir(root, ".", fn)
	}
}

// ExpandPaths replaces every directory in paths by the job specifications
// found inside, in lexical order. Files are kept as given.
func ExpandPaths(ctx context.Context, paths ...string) ([]string, error) {
	var ret []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			ret = append(ret, p)
			continue
		}
		for path, err := range Specs(ctx, os.DirFS(p), p) {
			if err != nil {
				return nil, err
			}
			ret = append(ret, path)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ret, nil
}
