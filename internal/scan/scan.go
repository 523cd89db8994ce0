// Package scan walks directories and collects candidate image files.
package scan

import (
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/gobwas/glob"
	"github.com/pkg/errors"

	"photodup/internal/finder"
	"photodup/internal/imageprocessing"
)

// ErrInvalidPattern is returned for exclude patterns that do not compile.
var ErrInvalidPattern = errors.New("invalid exclude pattern")

// Options controls which files are collected.
type Options struct {
	// Exclude holds glob patterns matched against slash separated paths.
	// A matching directory is not descended into.
	Exclude []string
	// Extensions overrides imageprocessing.SupportedImageFormats when set.
	Extensions []string
	// MinSize skips files smaller than this many bytes.
	MinSize int64
	// Recursive descends into subdirectories.
	Recursive bool
}

// Scanner collects files from one or more roots.
type Scanner struct {
	opts     Options
	excludes []glob.Glob
	exts     map[string]bool
}

func New(opts Options) (*Scanner, error) {
	excludes := make([]glob.Glob, 0, len(opts.Exclude))
	for _, pattern := range opts.Exclude {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, errors.Wrapf(ErrInvalidPattern, "%q: %v", pattern, err)
		}
		excludes = append(excludes, g)
	}

	s := &Scanner{opts: opts, excludes: excludes}
	if len(opts.Extensions) > 0 {
		s.exts = make(map[string]bool, len(opts.Extensions))
		for _, ext := range opts.Extensions {
			s.exts[strings.ToLower(strings.TrimPrefix(ext, "."))] = true
		}
	}
	return s, nil
}

// Scan walks every root and returns the matching files. Unreadable entries
// are logged and skipped; a root that does not exist is an error. Setting
// stop ends the walk early with the files found so far.
func (s *Scanner) Scan(roots []string, stop *atomic.Bool) ([]finder.FileEntry, error) {
	var files []finder.FileEntry
	for _, root := range roots {
		info, err := os.Stat(root)
		if err != nil {
			return files, errors.Wrapf(err, "cannot scan %s", root)
		}
		if !info.IsDir() {
			if s.accept(root, info) {
				files = append(files, entry(root, info))
			}
			continue
		}

		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if stop != nil && stop.Load() {
				return fs.SkipAll
			}
			if walkErr != nil {
				log.Printf("Skipping %s: %v", path, walkErr)
				if d != nil && d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				if path == root {
					return nil
				}
				if !s.opts.Recursive || s.excluded(path) {
					return fs.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				log.Printf("Skipping %s: %v", path, err)
				return nil
			}
			if s.accept(path, info) {
				files = append(files, entry(path, info))
			}
			return nil
		})
		if err != nil {
			return files, errors.Wrapf(err, "walk %s", root)
		}
	}
	return files, nil
}

func (s *Scanner) accept(path string, info fs.FileInfo) bool {
	if info.Size() < s.opts.MinSize || s.excluded(path) {
		return false
	}
	if s.exts != nil {
		return s.exts[strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))]
	}
	return imageprocessing.IsImageFile(path)
}

func (s *Scanner) excluded(path string) bool {
	slashed := filepath.ToSlash(path)
	for _, g := range s.excludes {
		if g.Match(slashed) {
			return true
		}
	}
	return false
}

func entry(path string, info fs.FileInfo) finder.FileEntry {
	return finder.FileEntry{Path: path, Size: info.Size(), ModTime: info.ModTime()}
}
