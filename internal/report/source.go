package report

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
)

// readBufferSize is the chunk size for sources that are read rather than mapped.
const readBufferSize = 1 << 20

// Source yields the lines of a report without their trailing '\n'.
// The returned slice is only valid until the next call to Next.
// Next returns io.EOF after the last line.
type Source interface {
	Next() ([]byte, error)
	Close() error
}

// Open opens the report at path. On unix the file is memory-mapped; if
// mapping is unavailable the file is read in chunks instead. The returned
// error wraps the os error so callers can test for fs.ErrNotExist.
func Open(path string) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open report: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat report: %w", err)
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("report %s is a directory", path)
	}
	if info.Size() == 0 {
		f.Close()
		return &mappedSource{}, nil
	}

	if src, err := mapFile(f, info.Size()); err == nil {
		return src, nil
	}

	return &readerSource{r: bufio.NewReaderSize(f, readBufferSize), closer: f}, nil
}

// NewReaderSource reads lines from r in chunks.
func NewReaderSource(r io.Reader) Source {
	src := &readerSource{r: bufio.NewReaderSize(r, readBufferSize)}
	if c, ok := r.(io.Closer); ok {
		src.closer = c
	}
	return src
}

// mappedSource walks a byte slice that holds the whole report.
type mappedSource struct {
	data   []byte
	off    int
	unmap  func() error
	closed bool
}

func (s *mappedSource) Next() ([]byte, error) {
	if s.off >= len(s.data) {
		return nil, io.EOF
	}
	rest := s.data[s.off:]
	i := bytes.IndexByte(rest, '\n')
	if i < 0 {
		s.off = len(s.data)
		return rest, nil
	}
	s.off += i + 1
	return rest[:i], nil
}

func (s *mappedSource) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.data = nil
	if s.unmap != nil {
		return s.unmap()
	}
	return nil
}

// readerSource reads through a bufio.Reader, stitching together lines longer
// than the buffer.
type readerSource struct {
	r      *bufio.Reader
	closer io.Closer
	long   []byte
	done   bool
}

func (s *readerSource) Next() ([]byte, error) {
	if s.done {
		return nil, io.EOF
	}
	s.long = s.long[:0]
	for {
		chunk, err := s.r.ReadSlice('\n')
		switch err {
		case nil:
			chunk = chunk[:len(chunk)-1]
			if len(s.long) > 0 {
				s.long = append(s.long, chunk...)
				return s.long, nil
			}
			return chunk, nil
		case bufio.ErrBufferFull:
			s.long = append(s.long, chunk...)
		case io.EOF:
			s.done = true
			if len(s.long) > 0 {
				s.long = append(s.long, chunk...)
				return s.long, nil
			}
			if len(chunk) > 0 {
				return chunk, nil
			}
			return nil, io.EOF
		default:
			return nil, fmt.Errorf("failed to read report: %w", err)
		}
	}
}

func (s *readerSource) Close() error {
	if s.closer == nil {
		return nil
	}
	err := s.closer.Close()
	s.closer = nil
	return err
}
