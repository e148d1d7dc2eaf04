package loaders

import (
	"errors"
	"fmt"
)

// ErrUnsupportedFormat is returned for files whose format no loader handles
var ErrUnsupportedFormat = errors.New("unsupported format")

// LoadError reports a file that could not be read or decoded
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

func loadError(path string, err error) error {
	return &LoadError{Path: path, Err: err}
}
