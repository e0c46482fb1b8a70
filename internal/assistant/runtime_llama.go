//go:build llama

package assistant

import (
	"context"
	"strings"

	llama "github.com/go-skynet/go-llama.cpp"
)

// llamaRuntime wraps an in-process llama.cpp model. The model and its KV
// cache live for the whole process; Generate mutates that state, which is why
// only the worker may call it.
type llamaRuntime struct {
	model     *llama.LLama
	maxTokens int
	threads   int
}

// LoadRuntime loads the GGUF model at path with the given context window.
func LoadRuntime(path string, ctxSize, threads int) (Runtime, error) {
	if strings.TrimSpace(path) == "" {
		return nil, LoadError{Path: path, Err: errEmptyModelPath}
	}
	m, err := llama.New(path, llama.SetContext(ctxSize))
	if err != nil {
		return nil, LoadError{Path: path, Err: err}
	}
	return &llamaRuntime{model: m, maxTokens: ctxSize, threads: threads}, nil
}

func (r *llamaRuntime) Generate(ctx context.Context, prompt string, onToken func(string) error) error {
	r.model.SetTokenCallback(func(tok string) bool {
		select {
		case <-ctx.Done():
			return false
		default:
		}
		return onToken(tok) == nil
	})
	po := []llama.PredictOption{
		llama.SetTokens(r.maxTokens),
		llama.SetThreads(maxInt(1, r.threads)),
	}
	_, err := r.model.Predict(prompt, po...)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return ctx.Err()
}

func (r *llamaRuntime) Close() error {
	if r.model != nil {
		r.model.Free()
		r.model = nil
	}
	return nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
