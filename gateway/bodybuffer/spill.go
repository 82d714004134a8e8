package bodybuffer

import (
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// SpillBuffer is the on-disk alternative to Buffer described in the
// design notes: for bodies too large to comfortably hold in memory, the
// replay copy lives in a temp file keyed by a per-request UUID instead
// of a growing []byte. The Read/Reset contract is identical to Buffer.
type SpillBuffer struct {
	stream   io.Reader
	softCap  int64
	file     *os.File
	written  int64
	cursor   int64
	eof      bool
	overflow bool
	path     string
}

// NewSpill creates a SpillBuffer rooted at dir, naming its temp file
// with a fresh request UUID so concurrent requests never collide.
func NewSpill(stream io.Reader, softCap int64, dir string) (*SpillBuffer, error) {
	name := filepath.Join(dir, "bob-body-"+uuid.NewString()+".spill")
	f, err := os.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, err
	}
	return &SpillBuffer{stream: stream, softCap: softCap, file: f, path: name}, nil
}

// Close removes the backing temp file. Safe to call once the request
// owning this buffer has finished.
func (s *SpillBuffer) Close() error {
	s.file.Close()
	return os.Remove(s.path)
}

func (s *SpillBuffer) Read(p []byte) (int, error) {
	if s.overflow {
		return 0, ErrOverflow
	}

	if s.cursor < s.written {
		n, err := s.file.ReadAt(p, s.cursor)
		s.cursor += int64(n)
		if err == io.EOF && n > 0 {
			err = nil
		}
		return n, err
	}

	if s.eof {
		return 0, io.EOF
	}

	n, err := s.stream.Read(p)
	if n > 0 {
		if s.softCap > 0 && s.written+int64(n) > s.softCap {
			s.overflow = true
			return 0, ErrOverflow
		}
		if _, werr := s.file.WriteAt(p[:n], s.written); werr != nil {
			return 0, werr
		}
		s.written += int64(n)
		s.cursor += int64(n)
	}
	if err == io.EOF {
		s.eof = true
	} else if err != nil {
		return n, err
	}
	return n, err
}

// Reset rewinds the replay cursor to the start of the spilled bytes.
func (s *SpillBuffer) Reset() error {
	if s.overflow {
		return ErrOverflow
	}
	s.cursor = 0
	return nil
}

// Overflowed reports whether the soft cap has been exceeded.
func (s *SpillBuffer) Overflowed() bool { return s.overflow }

var errSpillNotImplemented = errors.New("bodybuffer: spill reader does not support concurrent independent readers")

// NewReader is unsupported on SpillBuffer: unlike the in-memory Buffer,
// concurrent independent readers over the same file would need their
// own *os.File handles, which a request-scoped SpillBuffer does not
// hand out. Callers needing a second reader should use Buffer instead.
func (s *SpillBuffer) NewReader() (io.Reader, error) {
	return nil, errSpillNotImplemented
}
