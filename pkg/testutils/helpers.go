package testutils

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
)

// CreateTestFilesWithContent creates test files with specific content.
// Names may contain slashes; parent folders are created as needed.
func CreateTestFilesWithContent(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
}

// CreateTestFilesWithDefault creates a small mixed batch: two documents,
// one image and one file with an unknown extension.
func CreateTestFilesWithDefault(t *testing.T, dir string) {
	t.Helper()
	CreateTestFilesWithContent(t, dir, map[string]string{
		"test1.txt": "test content 1",
		"test2.pdf": "test content 2",
		"test3.jpg": "image content",
		"test4.xyz": "mystery content",
	})
}

var ansi = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]`)

// StripANSI removes ANSI escape sequences from a string
func StripANSI(str string) string {
	return ansi.ReplaceAllString(str, "")
}
