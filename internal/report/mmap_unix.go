//go:build unix

package report

import (
	"fmt"
	"math"
	"os"

	"golang.org/x/sys/unix"
)

func mapFile(f *os.File, size int64) (Source, error) {
	if size > math.MaxInt {
		return nil, fmt.Errorf("report too large to map: %d bytes", size)
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap failed: %w", err)
	}
	// The scan is a single forward pass.
	_ = unix.Madvise(data, unix.MADV_SEQUENTIAL)

	return &mappedSource{
		data: data,
		unmap: func() error {
			err := unix.Munmap(data)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			return err
		},
	}, nil
}
