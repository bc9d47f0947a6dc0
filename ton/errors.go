package ton

import (
	"errors"
	"fmt"
)

// ErrVerificationMismatch means the downloaded object's digest differs from
// the local source file's. It is a reportable outcome, not a crash.
var ErrVerificationMismatch = errors.New("downloaded content does not match the original file")

// ConfigError is raised before any network activity: missing or invalid
// arguments and credentials.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return e.Reason
}

// FileError means the local file could not be read, or shrank while it was
// being read.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("file %s: %s", e.Path, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}
