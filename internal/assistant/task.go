package assistant

import (
	"context"
	"errors"

	"chatd/internal/prompt"
)

// streamBuffer is the per-task token channel capacity. Generation is slow
// relative to consumption, so this mostly absorbs bursts of short tokens.
const streamBuffer = 1000

// Chunk is one element of a task's response stream: a text fragment, or a
// failure report for the generation it belongs to. The stream channel is
// closed after the last chunk; closure is the end-of-stream marker, so
// consumers range over the channel and nothing can follow the terminal.
type Chunk struct {
	Text string
	Err  error
}

// Task is one unit of inference work. It is created per user turn, submitted
// to the queue, and consumed exactly once by the worker.
type Task struct {
	messages []prompt.ChatMessage
	out      chan Chunk
	ctx      context.Context
}

// NewTask builds a task for the given context window and returns the
// receive side of its response stream. The task context stands in for the
// caller's liveness: canceling it is how a disconnected caller is detected.
//
// The message sequence must be non-empty and end with a user message.
func NewTask(ctx context.Context, messages []prompt.ChatMessage) (*Task, <-chan Chunk, error) {
	if len(messages) == 0 {
		return nil, nil, errors.New("task requires at least one message")
	}
	if messages[len(messages)-1].Role != prompt.RoleUser {
		return nil, nil, errors.New("task must end with a user message")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	out := make(chan Chunk, streamBuffer)
	return &Task{messages: messages, out: out, ctx: ctx}, out, nil
}

// send delivers one chunk, or reports the caller gone.
func (t *Task) send(c Chunk) error {
	select {
	case t.out <- c:
		return nil
	case <-t.ctx.Done():
		return t.ctx.Err()
	}
}

// finish terminates the stream. Exactly one call per task.
func (t *Task) finish() {
	close(t.out)
}
