package presence

import (
	"errors"
	"fmt"
	"os"
	"time"
	"unicode/utf8"
)

// Source is the watched "now playing" file.
type Source interface {
	// ModTime returns the file's last modification time.
	ModTime() (time.Time, error)
	// Read returns the full file content.
	Read() (string, error)
}

// FileAccessError reports a stat, read or decode failure on the watched file.
// The updater treats it as transient and retries on the next tick.
type FileAccessError struct {
	Path string
	Op   string
	Err  error
}

func (e *FileAccessError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FileAccessError) Unwrap() error {
	return e.Err
}

// errInvalidUTF8 is wrapped in a FileAccessError when content cannot be decoded.
var errInvalidUTF8 = errors.New("content is not valid UTF-8")

// FileSource reads a file on the local file system.
type FileSource struct {
	Path string
}

// NewFileSource returns a FileSource for path.
func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

// ModTime returns the file's modification time.
func (s *FileSource) ModTime() (time.Time, error) {
	info, err := os.Stat(s.Path)
	if err != nil {
		return time.Time{}, &FileAccessError{Path: s.Path, Op: "stat", Err: err}
	}
	return info.ModTime(), nil
}

// Read returns the file content as UTF-8 text.
func (s *FileSource) Read() (string, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return "", &FileAccessError{Path: s.Path, Op: "read", Err: err}
	}
	if !utf8.Valid(data) {
		return "", &FileAccessError{Path: s.Path, Op: "decode", Err: errInvalidUTF8}
	}
	return string(data), nil
}
