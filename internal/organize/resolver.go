package organize

import (
	"path/filepath"
	"strings"

	"shiwake/internal/errors"
	"shiwake/pkg/types"
)

// Resolve returns the first category in rs whose extension list contains
// the extension of filePath. Matching is case-insensitive; a file without an
// extension never matches.
func Resolve(filePath string, rs types.Ruleset) (string, bool) {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filePath)))
	if ext == "" || ext == "." {
		return "", false
	}
	for _, c := range rs {
		if c.Has(ext) {
			return c.Name, true
		}
	}
	return "", false
}

// Classification decides what happens to files Resolve cannot place.
type Classification struct {
	Unclassified  string // types.UnclassifiedOther or types.UnclassifiedSkip
	OtherCategory string
}

func (c Classification) withDefaults() Classification {
	if c.Unclassified == "" {
		c.Unclassified = types.UnclassifiedOther
	}
	if c.OtherCategory == "" {
		c.OtherCategory = types.DefaultOtherCategory
	}
	return c
}

func (c Classification) validate() error {
	switch c.Unclassified {
	case types.UnclassifiedOther:
		return types.ValidateCategoryName(c.OtherCategory)
	case types.UnclassifiedSkip:
		return nil
	default:
		return errors.Newf("unknown policy %q", c.Unclassified)
	}
}

// Classify resolves filePath and applies the unclassified policy. Under
// the skip policy a miss returns errors.ErrUnclassified.
func Classify(filePath string, rs types.Ruleset, c Classification) (string, error) {
	if name, ok := Resolve(filePath, rs); ok {
		return name, nil
	}
	c = c.withDefaults()
	if c.Unclassified == types.UnclassifiedSkip {
		return "", errors.ErrUnclassified
	}
	return c.OtherCategory, nil
}
