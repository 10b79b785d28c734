package permissions

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOSStatExisting(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	c := NewOS()
	s := c.Stat(file)
	assert.True(t, s.Exists)
	assert.False(t, s.IsDir)
	assert.True(t, s.Readable)
	assert.True(t, s.Writable)
	assert.True(t, s.ParentWritable)
	assert.True(t, c.HasAccess(file))
}

func TestOSStatMissing(t *testing.T) {
	c := NewOS()
	s := c.Stat(filepath.Join(t.TempDir(), "missing"))
	assert.False(t, s.Exists)
	assert.False(t, s.Granted())
}

func TestHasAccessUsesProbe(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "locked.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0644))

	// Root ignores mode bits, so the denial is simulated.
	c := &OS{probe: func(path string, _, write bool) bool {
		return !(write && path == file)
	}}
	assert.False(t, c.HasAccess(file))

	s := c.Stat(file)
	assert.True(t, s.Readable)
	assert.False(t, s.Writable)
	assert.True(t, s.ParentWritable)
}

func TestReport(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(file, nil, 0644))

	report := NewOS().Report([]string{file, dir, filepath.Join(dir, "nope")})
	require.Len(t, report, 3)
	assert.True(t, report[0].Granted())
	assert.True(t, report[1].IsDir)
	assert.False(t, report[2].Exists)
}
