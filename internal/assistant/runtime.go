package assistant

import (
	"context"
	"errors"
	"fmt"
)

var errEmptyModelPath = errors.New("model path is empty")

// Runtime is the model execution capability consumed by the worker: given a
// rendered prompt it produces a finite sequence of text fragments via
// onToken. Implementations must return promptly once ctx is canceled or
// onToken reports an error. A Runtime is not safe for concurrent Generate
// calls; the worker is its only user.
type Runtime interface {
	Generate(ctx context.Context, prompt string, onToken func(string) error) error
	Close() error
}

// LoadError reports a model that could not be loaded. It is fatal at
// startup: the process must not serve traffic without a loaded model.
type LoadError struct {
	Path string
	Err  error
}

func (e LoadError) Error() string {
	return fmt.Sprintf("load model %s: %v", e.Path, e.Err)
}

func (e LoadError) Unwrap() error { return e.Err }

// IsLoadError reports whether err indicates a failed model load.
func IsLoadError(err error) bool {
	_, ok := err.(LoadError)
	return ok
}
