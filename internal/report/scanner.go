// Package report reads disk-usage reports: a linear listing where each
// directory line ("<path> [<size>]") is followed by its file lines
// ("  [<size>] <name>").
package report

import (
	"bytes"
	"io"

	"github.com/Micos01/dir-analysis/internal/entry"
	"github.com/Micos01/dir-analysis/internal/pathutil"
	"github.com/Micos01/dir-analysis/internal/size"
)

var (
	fileMarker = []byte("  [")
	dirMarker  = []byte(" [")
)

type lineKind int

const (
	lineBlank lineKind = iota
	lineDir
	lineFile
	lineMalformed
)

// classify splits a raw line into its kind, its path or name, and its size
// token. It never fails: lines it cannot read are lineMalformed.
func classify(line []byte) (lineKind, []byte, []byte) {
	line = bytes.TrimSuffix(line, []byte{'\r'})
	if len(bytes.TrimSpace(line)) == 0 {
		return lineBlank, nil, nil
	}

	if bytes.HasPrefix(line, fileMarker) {
		rest := line[len(fileMarker):]
		end := bytes.IndexByte(rest, ']')
		if end < 0 {
			return lineMalformed, nil, nil
		}
		name := bytes.TrimSpace(rest[end+1:])
		if len(name) == 0 {
			return lineMalformed, nil, nil
		}
		return lineFile, name, bytes.TrimSpace(rest[:end])
	}

	open := bytes.LastIndex(line, dirMarker)
	if open < 0 {
		return lineMalformed, nil, nil
	}
	path := bytes.TrimSpace(line[:open])
	if len(path) == 0 {
		return lineMalformed, nil, nil
	}
	token := line[open+len(dirMarker):]
	if end := bytes.IndexByte(token, ']'); end >= 0 {
		token = token[:end]
	}
	return lineDir, path, bytes.TrimSpace(token)
}

// Scanner turns report lines into records. File lines are attached to the
// most recent directory line; file lines before any directory are dropped.
// Blank and malformed lines do not reset the current directory, so a file
// line after a garbage line still belongs to the directory above it.
type Scanner struct {
	src    Source
	sep    byte
	parent string
	rec    entry.Record
	stats  entry.Stats
	err    error
}

// NewScanner creates a scanner over src. sep is the report's path separator.
func NewScanner(src Source, sep byte) *Scanner {
	if sep == 0 {
		sep = pathutil.DefaultSeparator
	}
	return &Scanner{src: src, sep: sep}
}

// Next advances to the next record. It returns false at the end of the
// input or on a read error; check Err afterwards.
func (s *Scanner) Next() bool {
	if s.err != nil {
		return false
	}
	for {
		line, err := s.src.Next()
		if err == io.EOF {
			return false
		}
		if err != nil {
			s.err = err
			return false
		}
		s.stats.Lines++

		kind, text, token := classify(line)
		switch kind {
		case lineBlank:
			continue
		case lineMalformed:
			s.stats.Malformed++
			continue
		case lineDir:
			path := pathutil.Normalize(string(text), s.sep)
			s.parent = path
			s.stats.Dirs++
			s.rec = s.record(entry.KindDir, token)
			s.rec.Path = path
			return true
		case lineFile:
			if s.parent == "" {
				s.stats.Orphans++
				continue
			}
			s.stats.Files++
			s.rec = s.record(entry.KindFile, token)
			s.rec.Name = string(text)
			s.rec.Parent = s.parent
			return true
		}
	}
}

func (s *Scanner) record(kind entry.Kind, token []byte) entry.Record {
	sizeStr := string(token)
	return entry.Record{
		Kind:      kind,
		SizeBytes: size.Parse(sizeStr),
		SizeStr:   sizeStr,
		Line:      s.stats.Lines,
	}
}

// Record returns the record produced by the last call to Next.
func (s *Scanner) Record() entry.Record {
	return s.rec
}

// Err returns the first read error, if any.
func (s *Scanner) Err() error {
	return s.err
}

// Stats returns line counters so far.
func (s *Scanner) Stats() entry.Stats {
	return s.stats
}
