// Package scanner discovers templates below the configured scan paths.
//
// Discovery honors the build section of the configuration: only files with
// a template extension are returned, exclude patterns are applied to the
// base name and the slash separated path, hidden directories are skipped and
// so is the output directory, so annotated output is never fed back in.
package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/conneroisu/templine/internal/config"
)

// TemplateScanner walks scan paths for templates. All paths it returns lie
// inside its root directory.
type TemplateScanner struct {
	build config.BuildConfig
	root  string
	skip  string
}

// New creates a scanner rooted at root, usually the working directory.
func New(build config.BuildConfig, root string) (*TemplateScanner, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("getting absolute path: %w", err)
	}

	s := &TemplateScanner{build: build, root: absRoot}
	if build.OutputDir != "" {
		s.skip = filepath.Join(absRoot, filepath.Clean(build.OutputDir))
	}
	return s, nil
}

// Root returns the absolute root directory.
func (s *TemplateScanner) Root() string {
	return s.root
}

// Scan walks every configured scan path and returns the templates found,
// sorted and without duplicates.
func (s *TemplateScanner) Scan(ctx context.Context) ([]string, error) {
	seen := make(map[string]bool)
	var files []string

	for _, dir := range s.build.ScanPaths {
		found, err := s.ScanDirectory(ctx, dir)
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", dir, err)
		}
		for _, f := range found {
			if !seen[f] {
				seen[f] = true
				files = append(files, f)
			}
		}
	}

	sort.Strings(files)
	return files, nil
}

// ScanDirectory returns the templates below dir.
func (s *TemplateScanner) ScanDirectory(ctx context.Context, dir string) ([]string, error) {
	start, err := s.validatePath(dir)
	if err != nil {
		return nil, fmt.Errorf("invalid directory path: %w", err)
	}

	var files []string
	err = filepath.WalkDir(start, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if d.IsDir() {
			if path != start && (strings.HasPrefix(d.Name(), ".") || path == s.skip) {
				return filepath.SkipDir
			}
			return nil
		}

		if s.Matches(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// Matches reports whether a single file should be treated as a template.
func (s *TemplateScanner) Matches(path string) bool {
	if !s.build.IsTemplate(path) {
		return false
	}
	if rel, err := filepath.Rel(s.root, path); err == nil {
		path = rel
	}
	return !s.build.IsExcluded(path)
}

// Rel returns path relative to the scanner root.
func (s *TemplateScanner) Rel(path string) (string, error) {
	abs, err := s.validatePath(path)
	if err != nil {
		return "", err
	}
	return filepath.Rel(s.root, abs)
}

// validatePath resolves path against the root and rejects anything that
// escapes it.
func (s *TemplateScanner) validatePath(path string) (string, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.root, path)
	}
	abs := filepath.Clean(path)

	if abs != s.root && !strings.HasPrefix(abs, s.root+string(os.PathSeparator)) {
		return "", fmt.Errorf("path %s is outside %s", path, s.root)
	}
	return abs, nil
}
