package server

import (
	"fmt"

	"github.com/chazu/reckon/interp"
	"github.com/chazu/reckon/pkg/bytecode"
)

// evalRequest is one document evaluation queued on the worker goroutine.
type evalRequest struct {
	source string
	done   chan evalResult
}

// evalResult is what a hover needs from one evaluation. chunk is nil when
// the source did not compile.
type evalResult struct {
	chunk  *bytecode.Chunk
	value  bytecode.Value
	result bytecode.InterpretResult
	err    error
}

// EvalWorker runs evaluations one at a time on a dedicated goroutine.
// The chunk cache behind the interpreter is a single SQLite handle, so
// editor requests arriving together are queued rather than run in parallel.
type EvalWorker struct {
	in       *interp.Interpreter
	requests chan evalRequest
	quit     chan struct{}
}

// NewEvalWorker creates an EvalWorker and starts its goroutine.
func NewEvalWorker(in *interp.Interpreter) *EvalWorker {
	w := &EvalWorker{
		in:       in,
		requests: make(chan evalRequest, 16),
		quit:     make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *EvalWorker) loop() {
	for {
		select {
		case req := <-w.requests:
			req.done <- w.evaluate(req.source)
		case <-w.quit:
			return
		}
	}
}

// evaluate compiles and runs source, turning a panic into an error result.
func (w *EvalWorker) evaluate(source string) (res evalResult) {
	defer func() {
		if r := recover(); r != nil {
			res = evalResult{result: bytecode.InterpretRuntimeError, err: fmt.Errorf("%v", r)}
		}
	}()

	chunk, err := w.in.Compile(source)
	if err != nil {
		return evalResult{result: bytecode.InterpretCompileError, err: err}
	}
	v, result, err := w.in.RunChunk(chunk)
	return evalResult{chunk: chunk, value: v, result: result, err: err}
}

// Evaluate queues source and blocks until it has been evaluated.
func (w *EvalWorker) Evaluate(source string) evalResult {
	req := evalRequest{source: source, done: make(chan evalResult, 1)}
	w.requests <- req
	return <-req.done
}

// Stop shuts down the worker goroutine.
func (w *EvalWorker) Stop() {
	close(w.quit)
}
