//go:build windows

package permissions

import (
	"os"

	"golang.org/x/sys/windows"
)

// probe opens the path with the requested access. Folders are probed for
// writability by checking the read-only attribute.
func probe(path string, read, write bool) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	if info.IsDir() {
		if !write {
			return true
		}
		p, err := windows.UTF16PtrFromString(path)
		if err != nil {
			return false
		}
		attrs, err := windows.GetFileAttributes(p)
		return err == nil && attrs&windows.FILE_ATTRIBUTE_READONLY == 0
	}
	flag := os.O_RDONLY
	if write {
		flag = os.O_WRONLY
	}
	f, err := os.OpenFile(path, flag, 0)
	if err != nil {
		return false
	}
	f.Close()
	return true
}
