//go:build linux

package las

import (
	"os"

	"golang.org/x/sys/unix"
)

// fadviseSequential hints the kernel that the file will be scanned
// start-to-finish, enlarging readahead. Errors are ignored; this is only a
// hint.
func fadviseSequential(f *os.File) {
	_ = unix.Fadvise(int(f.Fd()), 0, 0, unix.FADV_SEQUENTIAL)
}
