// Package interp ties the compiler and the bytecode VM together behind the
// single entry point used by the CLI, the REPL and the language server.
package interp

import (
	"errors"
	"io"
	"os"

	"github.com/tliron/commonlog"

	"github.com/chazu/reckon/chunkcache"
	"github.com/chazu/reckon/compiler"
	"github.com/chazu/reckon/pkg/bytecode"
)

// Options configures an Interpreter. Zero values select the defaults.
type Options struct {
	PrintCode      bool
	Trace          bool
	StackMax       int
	DivisionByZero bytecode.DivisionPolicy

	Out    io.Writer // Printed results, disassembly and traces (os.Stdout if nil)
	ErrOut io.Writer // Compile and runtime diagnostics (os.Stderr if nil)

	// Cache, when set, is consulted before compiling and filled after a
	// successful compile.
	Cache *chunkcache.Store

	Logger commonlog.Logger
}

// Interpreter runs source text. It holds configuration only; every call
// gets its own chunk and VM.
type Interpreter struct {
	opts Options
	log  commonlog.Logger
}

// New creates an Interpreter.
func New(opts Options) *Interpreter {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.ErrOut == nil {
		opts.ErrOut = os.Stderr
	}
	log := opts.Logger
	if log == nil {
		log = commonlog.GetLogger("reckon.interp")
	}
	return &Interpreter{opts: opts, log: log}
}

// Interpret compiles and runs source, returning the three-way result.
func (in *Interpreter) Interpret(source string) bytecode.InterpretResult {
	_, result, _ := in.Evaluate(source)
	return result
}

// Evaluate is Interpret that also returns the value printed by RETURN and
// the error behind a failed result.
func (in *Interpreter) Evaluate(source string) (bytecode.Value, bytecode.InterpretResult, error) {
	chunk, err := in.Compile(source)
	if err != nil {
		return 0, bytecode.InterpretCompileError, err
	}
	return in.RunChunk(chunk)
}

// Compile compiles source into a new chunk, going through the cache when
// one is configured. A failed compile returns a *compiler.CompileError.
func (in *Interpreter) Compile(source string) (*bytecode.Chunk, error) {
	if in.opts.Cache != nil {
		chunk, ok, err := in.opts.Cache.Get(source)
		if err != nil {
			in.log.Warningf("chunk cache lookup failed: %v", err)
		} else if ok {
			in.log.Debug("chunk cache hit")
			if in.opts.PrintCode {
				io.WriteString(in.opts.Out, chunk.DisassembleWithName("code"))
			}
			return chunk, nil
		}
	}

	chunk, err := compiler.CompileSource(source, compilerOptions(in.opts))
	if err != nil {
		return nil, err
	}

	if in.opts.Cache != nil {
		if err := in.opts.Cache.Put(source, chunk); err != nil {
			in.log.Warningf("chunk cache store failed: %v", err)
		}
	}
	return chunk, nil
}

// RunChunk executes an already compiled chunk on a fresh VM.
func (in *Interpreter) RunChunk(chunk *bytecode.Chunk) (bytecode.Value, bytecode.InterpretResult, error) {
	vm := bytecode.NewVM(bytecode.Options{
		StackMax:       in.opts.StackMax,
		DivisionByZero: in.opts.DivisionByZero,
		Trace:          in.opts.Trace,
		Out:            in.opts.Out,
		Diagnostics:    in.opts.ErrOut,
		Logger:         in.opts.Logger,
	})

	v, err := vm.Execute(chunk)
	switch {
	case err == nil:
		return v, bytecode.InterpretOK, nil
	case errors.Is(err, bytecode.ErrMissingReturn):
		in.log.Errorf("chunk has no RETURN: %v", err)
		return 0, bytecode.InterpretCompileError, err
	default:
		io.WriteString(in.opts.ErrOut, err.Error()+"\n")
		return 0, bytecode.InterpretRuntimeError, err
	}
}

func compilerOptions(opts Options) compiler.Options {
	return compiler.Options{
		Diagnostics: opts.ErrOut,
		PrintCode:   opts.PrintCode,
		CodeOut:     opts.Out,
		Logger:      opts.Logger,
	}
}
