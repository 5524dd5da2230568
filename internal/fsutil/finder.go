// Package fsutil provides file system utility functions.
package fsutil

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// FindFilesByExtension recursively searches the given root path for all files ending
// with the specified extension. It returns a slice of their full paths, sorted
// lexicographically so callers observe a stable order regardless of the
// underlying file system's enumeration order.
func FindFilesByExtension(rootPath string, extension string) ([]string, error) {
	if extension == "" {
		panic("extension must not be empty")
	}

	var files []string
	err := filepath.WalkDir(rootPath, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), extension) {
			files = append(files, p)
		}
		return nil
	})

	if err != nil {
		return nil, err
	}

	sort.Strings(files)
	return files, nil
}

// ListMatching enumerates the regular files directly under dir whose names
// match the given glob pattern, returning bare file names in lexicographic
// order. An empty pattern matches every file. Subdirectories are ignored.
func ListMatching(dir string, pattern string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if pattern != "" {
			ok, err := path.Match(pattern, e.Name())
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		names = append(names, e.Name())
	}

	sort.Strings(names)
	return names, nil
}

// Stem returns the file name without its extension.
func Stem(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}
