package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeExtension(t *testing.T) {
	cases := map[string]string{
		"jpg":     ".jpg",
		".JPG":    ".jpg",
		"..tar":   ".tar",
		"  .Png ": ".png",
		"":        "",
		".":       "",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeExtension(in), "input %q", in)
	}
}

func TestCategoryHas(t *testing.T) {
	c := Category{Name: "Images", Extensions: []string{".JPG", "png"}}
	assert.True(t, c.Has(".jpg"))
	assert.True(t, c.Has("PNG"))
	assert.False(t, c.Has(".gif"))
	assert.False(t, c.Has(""))
}

func TestRulesetNormalized(t *testing.T) {
	rs := Ruleset{{Name: " Images ", Extensions: []string{"JPG", ".jpg", "", ".Png"}}}
	n := rs.Normalized()

	require.Len(t, n, 1)
	assert.Equal(t, "Images", n[0].Name)
	assert.Equal(t, []string{".jpg", ".png"}, n[0].Extensions)

	// The original is left untouched.
	assert.Equal(t, "JPG", rs[0].Extensions[0])
}

func TestRulesetSetAndRemove(t *testing.T) {
	rs := DefaultRuleset()

	rs = rs.Set("Images", "webp")
	i := rs.Find("Images")
	require.GreaterOrEqual(t, i, 0)
	assert.Equal(t, []string{".webp"}, rs[i].Extensions)

	rs = rs.Set("Fonts", ".TTF", "otf")
	assert.Equal(t, "Fonts", rs[len(rs)-1].Name)
	assert.Equal(t, []string{".ttf", ".otf"}, rs[len(rs)-1].Extensions)

	rs, ok := rs.Remove("Fonts")
	assert.True(t, ok)
	assert.Equal(t, -1, rs.Find("Fonts"))

	_, ok = rs.Remove("Nope")
	assert.False(t, ok)
}

func TestRulesetValidate(t *testing.T) {
	assert.NoError(t, DefaultRuleset().Validate())

	tests := []struct {
		name string
		rs   Ruleset
	}{
		{"empty name", Ruleset{{Name: ""}}},
		{"dot name", Ruleset{{Name: ".."}}},
		{"separator", Ruleset{{Name: "a/b"}}},
		{"backslash", Ruleset{{Name: `a\b`}}},
		{"duplicate", Ruleset{{Name: "A"}, {Name: "A"}}},
		{"compound extension", Ruleset{{Name: "Archives", Extensions: []string{".zip", "tar.gz"}}}},
		{"separator in extension", Ruleset{{Name: "Archives", Extensions: []string{".a/b"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.rs.Validate())
		})
	}
}

func TestRulesetValidateNamesLastSuffix(t *testing.T) {
	err := Ruleset{{Name: "Archives", Extensions: []string{".TAR.GZ"}}}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"Archives"`)
	assert.Contains(t, err.Error(), `use ".gz"`)

	assert.NoError(t, Ruleset{{Name: "Archives", Extensions: []string{"..gz", " .TGZ "}}}.Validate())
}

func TestRunSummaryDuration(t *testing.T) {
	var s RunSummary
	assert.Zero(t, s.Duration())
}
