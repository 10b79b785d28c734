// Package collect lists the files waiting in an input folder.
package collect

import (
	"os"
	"path/filepath"
	"strings"

	"shiwake/internal/errors"
	"shiwake/internal/log"
	"shiwake/pkg/types"

	"github.com/gobwas/glob"
)

// Options controls a collection pass.
type Options struct {
	Input     string
	Recursive bool
	// Files below <output>/<category> for any of these output folders and
	// category names are already organized and are skipped.
	OutputFolders []string
	CategoryNames []string
	// Exclude holds glob patterns matched against base names.
	Exclude []string
}

// Collect returns the files in opts.Input, in lexical order per folder.
func Collect(opts Options) ([]types.FileInfo, error) {
	if strings.TrimSpace(opts.Input) == "" {
		return nil, errors.NewConfigError("input folder is not set", "input_folder", errors.ConfigNotSet, nil)
	}
	input, err := filepath.Abs(opts.Input)
	if err != nil {
		return nil, errors.NewFileError("cannot resolve input folder", opts.Input, errors.InvalidPath, err)
	}
	info, err := os.Stat(input)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewFileError("input folder does not exist", input, errors.FileNotFound, err)
		}
		return nil, errors.NewFileError("cannot access input folder", input, errors.FileAccessDenied, err)
	}
	if !info.IsDir() {
		return nil, errors.NewFileError("input is not a folder", input, errors.InvalidPath, nil)
	}

	matchers := make([]glob.Glob, 0, len(opts.Exclude)+1)
	// Temp files of an interrupted cross-device copy.
	matchers = append(matchers, glob.MustCompile(".shiwake-*.part"))
	for _, pattern := range opts.Exclude {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, errors.NewConfigError("invalid exclude pattern", pattern, errors.InvalidConfig, err)
		}
		matchers = append(matchers, g)
	}

	c := &collector{
		recursive: opts.Recursive,
		excluded:  matchers,
		buckets:   bucketDirs(opts.OutputFolders, opts.CategoryNames),
	}
	if err := c.walk(input); err != nil {
		return nil, err
	}
	log.Debugf("Collected %d files from %s", len(c.files), input)
	return c.files, nil
}

type collector struct {
	recursive bool
	excluded  []glob.Glob
	buckets   map[string]bool
	files     []types.FileInfo
}

func (c *collector) walk(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return errors.NewFileError("cannot read folder", dir, errors.FileOperationFailed, err)
	}
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if c.buckets[path] {
			continue
		}
		if entry.IsDir() {
			if c.recursive {
				if err := c.walk(path); err != nil {
					return err
				}
			}
			continue
		}
		if c.isExcluded(entry.Name()) {
			continue
		}
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			// Broken links, sockets and the like are not organizable.
			continue
		}
		c.files = append(c.files, types.FileInfo{
			Path:    path,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	return nil
}

func (c *collector) isExcluded(name string) bool {
	for _, g := range c.excluded {
		if g.Match(name) {
			return true
		}
	}
	return false
}

// bucketDirs returns every <output>/<category> folder.
func bucketDirs(outputs, categories []string) map[string]bool {
	dirs := make(map[string]bool, len(outputs)*len(categories))
	for _, out := range outputs {
		abs, err := filepath.Abs(out)
		if err != nil {
			continue
		}
		for _, name := range categories {
			dirs[filepath.Join(abs, name)] = true
		}
	}
	return dirs
}
