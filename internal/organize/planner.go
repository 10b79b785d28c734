package organize

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"shiwake/internal/errors"
)

// MaxCollisionAttempts bounds the "name (N).ext" search.
const MaxCollisionAttempts = 10000

// Planner computes collision-free destinations below a root folder. Names
// handed out by Plan stay reserved until Release so that no two in-flight
// transfers target the same path.
type Planner struct {
	root   string
	dryRun bool

	mu       sync.Mutex
	reserved map[string]struct{}

	exists   func(path string) bool
	mkdirAll func(path string, perm os.FileMode) error
}

// NewPlanner returns a planner for root. A dry-run planner never creates
// folders and keeps every reservation until the run ends.
func NewPlanner(root string, dryRun bool) *Planner {
	return &Planner{
		root:     filepath.Clean(root),
		dryRun:   dryRun,
		reserved: make(map[string]struct{}),
		exists:   pathExists,
		mkdirAll: os.MkdirAll,
	}
}

// Root returns the destination root.
func (p *Planner) Root() string {
	return p.root
}

// Plan returns root/category/basename(src), renamed to "name (N).ext" when
// that path exists or is reserved, and reserves it.
func (p *Planner) Plan(src, category string) (string, error) {
	name := filepath.Base(src)
	if name == "." || name == string(filepath.Separator) || name == "" {
		return "", errors.NewKind(errors.PlanningFailed, "invalid file name",
			errors.NewFileError("no base name", src, errors.InvalidPath, nil))
	}

	dir := filepath.Join(p.root, category)
	if !p.dryRun {
		if err := p.mkdirAll(dir, 0755); err != nil {
			return "", errors.NewKind(errors.PlanningFailed, "folder creation failed",
				errors.NewFileError("cannot create folder", dir, errors.FileCreateFailed, err))
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	stem, ext := splitName(name)
	candidate := filepath.Join(dir, name)
	for n := 1; p.taken(candidate); n++ {
		if n > MaxCollisionAttempts {
			return "", errors.NewKind(errors.PlanningFailed,
				fmt.Sprintf("no free name after %d attempts", MaxCollisionAttempts),
				errors.NewFileError("destination exists", filepath.Join(dir, name), errors.InvalidOperation, nil))
		}
		candidate = filepath.Join(dir, fmt.Sprintf("%s (%d)%s", stem, n, ext))
	}

	p.reserved[candidate] = struct{}{}
	return candidate, nil
}

// Release drops the reservation for dest. Dry-run planners ignore it.
func (p *Planner) Release(dest string) {
	if p.dryRun {
		return
	}
	p.mu.Lock()
	delete(p.reserved, dest)
	p.mu.Unlock()
}

// Reserved reports how many destinations are currently reserved.
func (p *Planner) Reserved() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.reserved)
}

func (p *Planner) taken(path string) bool {
	if _, ok := p.reserved[path]; ok {
		return true
	}
	return p.exists(path)
}

// splitName splits "photo.jpg" into "photo" and ".jpg". Dotfiles such as
// ".env" have no extension.
func splitName(name string) (string, string) {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	if stem == "" {
		return name, ""
	}
	return stem, ext
}

func pathExists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil || !os.IsNotExist(err)
}
