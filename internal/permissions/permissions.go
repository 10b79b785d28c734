// Package permissions answers whether files can be moved by this process
// and reports access status for the permissions command.
package permissions

import (
	"os"
	"path/filepath"
)

// Checker answers whether the process may read and modify path.
type Checker interface {
	HasAccess(path string) bool
}

// Status is the access status of one path.
type Status struct {
	Path           string `json:"path"`
	Exists         bool   `json:"exists"`
	IsDir          bool   `json:"is_dir"`
	Readable       bool   `json:"readable"`
	Writable       bool   `json:"writable"`
	ParentWritable bool   `json:"parent_writable"`
}

// Granted reports whether the path can be moved out of its folder.
func (s Status) Granted() bool {
	return s.Exists && s.Readable && s.Writable && s.ParentWritable
}

// OS checks access with the operating system's own rules.
type OS struct {
	probe func(path string, read, write bool) bool
}

// NewOS returns a checker backed by the running system.
func NewOS() *OS {
	return &OS{probe: probe}
}

// HasAccess reports whether path can be read, written and moved.
func (c *OS) HasAccess(path string) bool {
	return c.Stat(path).Granted()
}

// Stat returns the access status of path.
func (c *OS) Stat(path string) Status {
	s := Status{Path: path}
	info, err := os.Stat(path)
	if err != nil {
		return s
	}
	s.Exists = true
	s.IsDir = info.IsDir()
	s.Readable = c.probe(path, true, false)
	s.Writable = c.probe(path, false, true)
	s.ParentWritable = c.probe(filepath.Dir(path), false, true)
	return s
}

// Report returns the status of every path, in order.
func (c *OS) Report(paths []string) []Status {
	out := make([]Status, 0, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			abs = p
		}
		out = append(out, c.Stat(abs))
	}
	return out
}

var _ Checker = (*OS)(nil)
