package journal

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/cockroachdb/errors"
)

const segmentGlob = "segment-*.jnl"

func segmentPath(dir string, index int) string {
	return filepath.Join(dir, fmt.Sprintf("segment-%06d.jnl", index))
}

// segments lists a journal's segment files in write order.
func segments(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, segmentGlob))
	if err != nil {
		return nil, errors.Wrapf(err, "list segments in %s", dir)
	}
	sort.Strings(files)
	return files, nil
}

type segment struct {
	file   *os.File
	w      *bufio.Writer
	offset int64
}

func createSegment(dir string, index int) (*segment, error) {
	f, err := os.OpenFile(segmentPath(dir, index), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, errors.Wrap(err, "create segment")
	}
	return &segment{file: f, w: bufio.NewWriterSize(f, 64<<10)}, nil
}

func (s *segment) append(b []byte) error {
	n, err := s.w.Write(b)
	s.offset += int64(n)
	return err
}

func (s *segment) sync() error {
	if err := s.w.Flush(); err != nil {
		return err
	}
	return s.file.Sync()
}

func (s *segment) close() error {
	if err := s.sync(); err != nil {
		_ = s.file.Close()
		return err
	}
	return s.file.Close()
}
