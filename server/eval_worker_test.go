package server

import (
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/tliron/commonlog"

	"github.com/chazu/reckon/interp"
	"github.com/chazu/reckon/pkg/bytecode"
)

func newTestWorker(t *testing.T) *EvalWorker {
	t.Helper()
	w := NewEvalWorker(interp.New(interp.Options{
		Out:    io.Discard,
		ErrOut: io.Discard,
		Logger: commonlog.MockLogger{},
	}))
	t.Cleanup(w.Stop)
	return w
}

func TestEvalWorker_Results(t *testing.T) {
	w := newTestWorker(t)

	res := w.Evaluate("2 * 21")
	if res.result != bytecode.InterpretOK || res.value != 42 || res.chunk == nil {
		t.Errorf("Evaluate(2 * 21) = %+v", res)
	}

	res = w.Evaluate("2 *")
	if res.result != bytecode.InterpretCompileError || res.chunk != nil || res.err == nil {
		t.Errorf("Evaluate(2 *) = %+v, want compile error without chunk", res)
	}

	res = w.Evaluate("2 / 0")
	if res.result != bytecode.InterpretRuntimeError || res.chunk == nil {
		t.Errorf("Evaluate(2 / 0) = %+v, want runtime error with chunk", res)
	}
}

func TestEvalWorker_Concurrent(t *testing.T) {
	w := newTestWorker(t)

	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			res := w.Evaluate(fmt.Sprintf("%d + 1", n))
			if res.value != bytecode.Value(n+1) {
				errs <- fmt.Errorf("%d + 1 = %v", n, res.value)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}
