//go:build unix

package permissions

import "golang.org/x/sys/unix"

func probe(path string, read, write bool) bool {
	var mode uint32
	if read {
		mode |= unix.R_OK
	}
	if write {
		mode |= unix.W_OK
	}
	return unix.Access(path, mode) == nil
}
