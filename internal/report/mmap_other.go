//go:build !unix

package report

import (
	"errors"
	"os"
)

func mapFile(f *os.File, size int64) (Source, error) {
	return nil, errors.New("memory mapping not supported on this platform")
}
