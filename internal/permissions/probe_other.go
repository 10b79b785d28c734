//go:build !unix && !windows

package permissions

import "os"

func probe(path string, _, _ bool) bool {
	_, err := os.Stat(path)
	return err == nil
}
