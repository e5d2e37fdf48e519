//go:build linux

package taillog

import "golang.org/x/sys/unix"

// allocLog reserves the log as an anonymous private mapping. MAP_NORESERVE
// keeps a multi-gigabyte capacity from committing memory up front; pages
// materialize as the write tail advances into them.
func allocLog(size int64) ([]byte, bool, error) {
	buf, err := unix.Mmap(-1, 0, int(size),
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS|unix.MAP_NORESERVE)
	if err != nil {
		return nil, false, err
	}
	_ = unix.Madvise(buf, unix.MADV_RANDOM)
	return buf, true, nil
}

func freeLog(buf []byte) error {
	return unix.Munmap(buf)
}
