// Package assistant implements the inference task pipeline: a bounded FIFO
// queue of chat tasks, a single worker goroutine that owns the model runtime,
// and per-task token streams back to the submitting caller.
//
// Files by concern:
//
//   - task.go: Task and Chunk types, stream construction and termination.
//   - queue.go: bounded admission queue (Submit blocks when full, never drops).
//   - worker.go: the single-flight worker loop; render, generate, stream.
//   - runtime.go: the Runtime capability interface and load errors.
//   - runtime_llama.go / runtime_stub.go: go-llama.cpp backend behind the
//     'llama' build tag, with a fail-fast no-CGO stub otherwise.
//   - metrics.go: Prometheus instrumentation for queue and generation.
//
// The model runtime is never locked; correctness rests on the structural
// invariant that only the worker goroutine ever touches it.
package assistant
