package datalog

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	logger "github.com/sirupsen/logrus"
)

// IndexPlaceholder in a file name pattern is replaced by a two digit index.
const IndexPlaceholder = "XX"

const maxFileIndex = 99

// FileSink appends lines to numbered files in a directory. A new file is
// started with a header after linesPerFile lines, the header counting as one.
// With linesPerFile 0 a single file is used.
type FileSink struct {
	dir          string
	pattern      string
	linesPerFile int
	mandatory    bool

	name       string
	f          *os.File
	haveHeader bool
	lines      int
	header     *Header
}

func NewFileSink(dir, pattern string, linesPerFile int, mandatory bool) *FileSink {
	if !strings.Contains(pattern, IndexPlaceholder) {
		ext := filepath.Ext(pattern)
		pattern = strings.TrimSuffix(pattern, ext) + "_" + IndexPlaceholder + ext
	}
	return &FileSink{dir: dir, pattern: pattern, linesPerFile: linesPerFile, mandatory: mandatory}
}

func (s *FileSink) Name() string {
	return "file"
}

func (s *FileSink) Mandatory() bool {
	return s.mandatory
}

// Path is the file currently being written, empty before the first sync.
func (s *FileSink) Path() string {
	if s.name == "" {
		return ""
	}
	return filepath.Join(s.dir, s.name)
}

func (s *FileSink) Open(_ context.Context, h *Header) error {
	s.header = h
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		s.haveHeader = false
		return fmt.Errorf("log dir: %w", err)
	}
	if !s.haveHeader {
		if s.linesPerFile > 0 {
			s.name = s.newName()
		} else {
			s.name = strings.Replace(s.pattern, IndexPlaceholder, "00", 1)
			if st, err := os.Stat(s.Path()); err == nil && st.Size() > 0 {
				s.haveHeader = true
			}
		}
	}
	logger.Debugf("Logging to [%v]", s.Path())
	if err := s.openFile(); err != nil {
		s.haveHeader = false
		return err
	}
	if !s.haveHeader {
		if err := s.writeHeader(); err != nil {
			_ = s.closeFile()
			return err
		}
	}
	return nil
}

func (s *FileSink) openFile() error {
	f, err := os.OpenFile(s.Path(), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	s.f = f
	return nil
}

func (s *FileSink) writeHeader() error {
	logger.Infof("Writing log header to [%v]", s.Path())
	s.lines = 0
	var b strings.Builder
	for _, l := range s.header.Lines() {
		b.WriteString(l)
		b.WriteString("\r\n")
	}
	if _, err := s.f.WriteString(b.String()); err != nil {
		return fmt.Errorf("write log header: %w", err)
	}
	s.lines = 1
	s.haveHeader = true
	return nil
}

// newName returns the first unused file name, or the pattern itself once
// every index is taken.
func (s *FileSink) newName() string {
	for i := 0; i <= maxFileIndex; i++ {
		name := strings.Replace(s.pattern, IndexPlaceholder, fmt.Sprintf("%02d", i), 1)
		if _, err := os.Stat(filepath.Join(s.dir, name)); errors.Is(err, fs.ErrNotExist) {
			return name
		}
	}
	logger.Warnf("All log file names taken, using [%v]", s.pattern)
	return s.pattern
}

func (s *FileSink) WriteLine(_ context.Context, _ *Snapshot, line string) error {
	if s.f == nil {
		return errors.New("log file not open")
	}
	if s.linesPerFile > 0 && s.lines >= s.linesPerFile {
		if err := s.rotate(); err != nil {
			return err
		}
	}
	if _, err := s.f.WriteString(line); err != nil {
		return fmt.Errorf("write log line: %w", err)
	}
	s.lines++
	return nil
}

func (s *FileSink) rotate() error {
	if err := s.closeFile(); err != nil {
		logger.Warnf("Failed to close [%v] [%v]", s.Path(), err)
	}
	s.name = s.newName()
	logger.Infof("Rotating log to [%v]", s.Path())
	if err := s.openFile(); err != nil {
		s.haveHeader = false
		return err
	}
	return s.writeHeader()
}

func (s *FileSink) Close() error {
	return s.closeFile()
}

func (s *FileSink) closeFile() error {
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}
