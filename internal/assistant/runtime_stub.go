//go:build !llama

package assistant

// Compiled when the 'llama' build tag is NOT set, keeping default builds and
// CI CGO-free. A binary built without the tag cannot load a model and
// therefore refuses to start serving; tests inject fake Runtimes directly.

import "errors"

var errNoLlamaSupport = errors.New("llama support not built (missing 'llama' build tag)")

// LoadRuntime fails fast in no-CGO builds.
func LoadRuntime(path string, ctxSize, threads int) (Runtime, error) {
	return nil, LoadError{Path: path, Err: errNoLlamaSupport}
}
