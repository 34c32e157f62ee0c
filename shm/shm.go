// Package shm provides helpers for dealing with shared memory, and a
// host window whose buffer lives in it.
package shm

import (
	"os"

	"golang.org/x/sys/unix"
)

// Create creates an unlinked file suitable for sharing memory with
// another process through its file descriptor.
func Create() (*os.File, error) {
	dir := "/dev/shm"
	if _, err := os.Stat(dir); err != nil {
		dir = os.TempDir()
	}

	file, err := os.CreateTemp(dir, "swpresent-")
	if err != nil {
		return nil, err
	}

	err = os.Remove(file.Name())
	if err != nil {
		file.Close()
		return nil, err
	}
	return file, nil
}

type Mmap []byte

// MapShared maps size bytes of file into memory with MAP_SHARED.
func MapShared(file *os.File, size int, prot int) (mmap Mmap, err error) {
	sc, err := file.SyscallConn()
	if err != nil {
		return nil, err
	}

	cerr := sc.Control(func(fd uintptr) {
		m, merr := unix.Mmap(int(fd), 0, size, prot, unix.MAP_SHARED)
		mmap, err = Mmap(m), merr
	})
	if cerr != nil {
		return nil, cerr
	}

	return mmap, err
}

// Unmap unmaps the whole mapping, including any part of it that has
// been sliced off.
func (mmap Mmap) Unmap() error {
	return unix.Munmap(mmap[:cap(mmap)])
}
