package assistant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"chatd/internal/prompt"
)

// Renderer produces the exact model prompt for a message sequence.
// *prompt.Engine is the production implementation.
type Renderer interface {
	Render([]prompt.ChatMessage) (string, error)
}

// Worker is the single long-lived owner of the model runtime. Exactly one
// Worker runs per process; because it alone dequeues tasks and it alone calls
// Generate, at most one generation is ever in flight.
type Worker struct {
	queue    *Queue
	renderer Renderer
	runtime  Runtime
	log      zerolog.Logger
}

// NewWorker wires the worker to its queue, template engine and runtime.
func NewWorker(q *Queue, r Renderer, rt Runtime, log zerolog.Logger) *Worker {
	return &Worker{queue: q, renderer: r, runtime: rt, log: log.With().Str("component", "worker").Logger()}
}

// Run serves tasks until the queue is closed, then drains tasks admitted
// before closure and returns. Run never returns because of a task failure;
// failures are scoped to the task's stream.
func (w *Worker) Run() {
	w.log.Info().Msg("inference worker started")
	for {
		select {
		case t := <-w.queue.ch:
			queueDepth.Set(float64(len(w.queue.ch)))
			w.serve(t)
		case <-w.queue.done:
			for {
				select {
				case t := <-w.queue.ch:
					w.serve(t)
				default:
					w.log.Info().Msg("inference worker stopped")
					return
				}
			}
		}
	}
}

// serve handles one task from render to stream termination. Every path out
// of serve closes the task's stream exactly once.
func (w *Worker) serve(t *Task) {
	defer t.finish()

	promptStr, err := w.renderer.Render(t.messages)
	if err != nil {
		tasksTotal.WithLabelValues("template_error").Inc()
		w.log.Error().Err(err).Msg("prompt render failed")
		_ = t.send(Chunk{Err: err})
		return
	}

	start := time.Now()
	tokens := 0
	err = w.runtime.Generate(t.ctx, promptStr, func(tok string) error {
		if err := t.send(Chunk{Text: tok}); err != nil {
			return err
		}
		tokens++
		tokensGenerated.Inc()
		return nil
	})
	generationSeconds.Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		tasksTotal.WithLabelValues("ok").Inc()
		w.log.Debug().Int("tokens", tokens).Dur("dur", time.Since(start)).Msg("generation complete")
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || t.ctx.Err() != nil:
		// Caller went away; discard the rest silently and move on.
		tasksTotal.WithLabelValues("disconnected").Inc()
		w.log.Debug().Int("tokens", tokens).Msg("caller disconnected, generation aborted")
	default:
		tasksTotal.WithLabelValues("generation_error").Inc()
		w.log.Error().Err(err).Int("tokens", tokens).Msg("generation failed")
		_ = t.send(Chunk{Err: fmt.Errorf("generation: %w", err)})
	}
}
