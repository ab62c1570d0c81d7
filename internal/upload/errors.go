package upload

import (
	"errors"
	"fmt"
)

// ErrNoFiles is returned when a request carries no file parts.
var ErrNoFiles = errors.New("no files uploaded")

// TooManyFilesError is returned when a request carries more file parts than allowed.
type TooManyFilesError struct {
	Limit int
}

func (e *TooManyFilesError) Error() string {
	return fmt.Sprintf("too many files: at most %d allowed", e.Limit)
}

// MalformedRequestError wraps a multipart framing error.
type MalformedRequestError struct {
	Err error
}

func (e *MalformedRequestError) Error() string {
	return fmt.Sprintf("malformed multipart request: %v", e.Err)
}

func (e *MalformedRequestError) Unwrap() error {
	return e.Err
}

// InvalidFileNameError is returned for file names that cannot be carried in a
// multipart header, i.e. names containing control characters such as CR or LF.
type InvalidFileNameError struct {
	Name string
}

func (e *InvalidFileNameError) Error() string {
	return fmt.Sprintf("invalid file name %q: control characters are not allowed", e.Name)
}
