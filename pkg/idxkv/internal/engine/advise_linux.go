//go:build linux

package engine

import (
	"os"

	"golang.org/x/sys/unix"
)

// AdviseSequential hints to the kernel that path is about to be read
// mostly sequentially (Verify calls it before its full scan), so readahead can be more aggressive than the random-access default
// bbolt's own mmap usage implies. Best-effort: a failure to advise never
// fails the caller's operation.
func AdviseSequential(path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	_ = unix.Fadvise(int(f.Fd()), 0, 0, unix.FADV_SEQUENTIAL)
}
