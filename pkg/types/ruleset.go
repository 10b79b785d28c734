package types

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Policies for files no category claims.
const (
	UnclassifiedOther = "other"
	UnclassifiedSkip  = "skip"
)

// DefaultOtherCategory is the bucket used for files no category claims.
const DefaultOtherCategory = "Others"

// Category is a named bucket of file extensions. Files whose extension is
// listed are moved into a folder of the same name under the destination root.
type Category struct {
	Name       string   `yaml:"name" json:"name"`             // Destination subfolder name (e.g., "Images").
	Extensions []string `yaml:"extensions" json:"extensions"` // Extensions with a leading dot (e.g., ".jpg").
}

// Has reports whether ext (in any case, with or without a leading dot) is
// listed in the category.
func (c Category) Has(ext string) bool {
	want := NormalizeExtension(ext)
	if want == "" {
		return false
	}
	for _, e := range c.Extensions {
		if NormalizeExtension(e) == want {
			return true
		}
	}
	return false
}

// Ruleset is an ordered list of categories. Order matters: when two
// categories claim the same extension the earlier one wins.
type Ruleset []Category

// NormalizeExtension trims whitespace, collapses leading dots to exactly one
// and lower-cases the result. Empty input yields "".
func NormalizeExtension(ext string) string {
	ext = strings.TrimSpace(ext)
	ext = strings.TrimLeft(ext, ".")
	if ext == "" {
		return ""
	}
	return "." + strings.ToLower(ext)
}

// Normalized returns a deep copy with every extension normalized and
// duplicates within a category removed. Empty extensions are dropped.
func (r Ruleset) Normalized() Ruleset {
	out := make(Ruleset, 0, len(r))
	for _, c := range r {
		seen := make(map[string]bool, len(c.Extensions))
		exts := make([]string, 0, len(c.Extensions))
		for _, e := range c.Extensions {
			n := NormalizeExtension(e)
			if n == "" || seen[n] {
				continue
			}
			seen[n] = true
			exts = append(exts, n)
		}
		out = append(out, Category{Name: strings.TrimSpace(c.Name), Extensions: exts})
	}
	return out
}

// Names returns the category names in ruleset order.
func (r Ruleset) Names() []string {
	names := make([]string, 0, len(r))
	for _, c := range r {
		names = append(names, c.Name)
	}
	return names
}

// Find returns the index of the category with the given name, or -1.
func (r Ruleset) Find(name string) int {
	for i, c := range r {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Set replaces the extensions of an existing category or appends a new one.
func (r Ruleset) Set(name string, exts ...string) Ruleset {
	out := r.Normalized()
	cat := Ruleset{{Name: name, Extensions: exts}}.Normalized()[0]
	if i := out.Find(cat.Name); i >= 0 {
		out[i] = cat
		return out
	}
	return append(out, cat)
}

// Remove drops the named category. The second return is false when no
// category had that name.
func (r Ruleset) Remove(name string) (Ruleset, bool) {
	i := r.Find(name)
	if i < 0 {
		return r, false
	}
	out := make(Ruleset, 0, len(r)-1)
	out = append(out, r[:i]...)
	out = append(out, r[i+1:]...)
	return out, true
}

// Validate checks that every category has a usable, unique folder name.
func (r Ruleset) Validate() error {
	seen := make(map[string]bool, len(r))
	for i, c := range r {
		name := strings.TrimSpace(c.Name)
		if err := ValidateCategoryName(name); err != nil {
			return fmt.Errorf("category %d: %w", i, err)
		}
		if seen[name] {
			return fmt.Errorf("category %d: duplicate name %q", i, name)
		}
		seen[name] = true
		for _, e := range c.Extensions {
			if err := validateExtension(e); err != nil {
				return fmt.Errorf("category %q: %w", name, err)
			}
		}
	}
	return nil
}

// validateExtension rejects extensions a file name can never end in. Only
// the part after the last dot of a name is compared, so "tar.gz" is refused.
func validateExtension(ext string) error {
	n := NormalizeExtension(ext)
	switch {
	case n == "":
		return nil
	case strings.Contains(n[1:], "."):
		return fmt.Errorf("extension %q has more than one dot; use %q", ext, n[strings.LastIndex(n, "."):])
	case strings.ContainsAny(n, `/\ `):
		return fmt.Errorf("extension %q must not contain separators or spaces", ext)
	}
	return nil
}

// ValidateCategoryName rejects names that cannot be used as a single folder
// directly below the destination root.
func ValidateCategoryName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("name is required")
	case name == "." || name == "..":
		return fmt.Errorf("name %q is not a folder name", name)
	case strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, filepath.Separator):
		return fmt.Errorf("name %q must not contain path separators", name)
	}
	return nil
}

// DefaultRuleset returns the built-in categories used when no configuration
// exists yet.
func DefaultRuleset() Ruleset {
	return Ruleset{
		{Name: "Images", Extensions: []string{".jpg", ".jpeg", ".png", ".gif", ".bmp"}},
		{Name: "Documents", Extensions: []string{".pdf", ".doc", ".docx", ".txt", ".xlsx", ".pptx"}},
		{Name: "Videos", Extensions: []string{".mp4", ".avi", ".mov", ".wmv", ".mkv"}},
		{Name: "Audio", Extensions: []string{".mp3", ".wav", ".ogg", ".flac", ".aac"}},
		{Name: "Archives", Extensions: []string{".zip", ".rar", ".7z", ".tar", ".gz"}},
	}
}
