package credentials

import (
	"errors"
	"fmt"
	"io/fs"
)

var (
	// ErrIO is matched by a LoadError whose users file could not be read.
	ErrIO = errors.New("users file unreadable")

	// ErrParse is matched by a LoadError whose users file content does not
	// have the expected shape.
	ErrParse = errors.New("users file malformed")
)

// ErrorKind classifies a LoadError.
type ErrorKind int

const (
	// KindIO means the file could not be read (missing, permission denied, ...).
	KindIO ErrorKind = iota + 1

	// KindParse means the document is malformed or a record is invalid.
	KindParse
)

func (k ErrorKind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindParse:
		return "parse"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// LoadError is the single error type surfaced by Load and Parse.
//
// The wrapped cause stays reachable through errors.Is / errors.As, so a
// missing file still matches fs.ErrNotExist:
//
//	_, err := credentials.Load("/etc/mosquitto/users.yaml")
//	errors.Is(err, credentials.ErrIO)  // true
//	errors.Is(err, fs.ErrNotExist)     // true
type LoadError struct {
	// Kind tells whether reading or parsing failed.
	Kind ErrorKind

	// Path is the file that was being loaded. Empty when Parse is called directly.
	Path string

	// Err is the underlying cause.
	Err error
}

func (e *LoadError) Error() string {
	verb := "parse"
	if e.Kind == KindIO {
		verb = "read"
	}
	if e.Path == "" {
		return fmt.Sprintf("%s users file: %v", verb, e.Err)
	}
	// os errors already name the file.
	var pe *fs.PathError
	if errors.As(e.Err, &pe) && pe.Path == e.Path {
		return fmt.Sprintf("%s users file %s: %s: %v", verb, e.Path, pe.Op, pe.Err)
	}
	return fmt.Sprintf("%s users file %s: %v", verb, e.Path, e.Err)
}

// Unwrap returns the underlying cause.
func (e *LoadError) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel matching this error's kind.
func (e *LoadError) Is(target error) bool {
	switch target {
	case ErrIO:
		return e.Kind == KindIO
	case ErrParse:
		return e.Kind == KindParse
	}
	return false
}

func parseErrorf(format string, args ...any) *LoadError {
	return &LoadError{Kind: KindParse, Err: fmt.Errorf(format, args...)}
}
