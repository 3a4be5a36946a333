// Reckon CLI - compiles and runs arithmetic expressions on the bytecode VM
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/tliron/commonlog"

	"github.com/chazu/reckon/chunkcache"
	"github.com/chazu/reckon/compiler"
	"github.com/chazu/reckon/interp"
	"github.com/chazu/reckon/manifest"
	"github.com/chazu/reckon/pkg/bytecode"
	"github.com/chazu/reckon/server"

	_ "github.com/tliron/commonlog/simple"
)

// Process exit codes (sysexits.h).
const (
	exitOK           = 0
	exitUsage        = 64
	exitCompileError = 65
	exitRuntimeError = 70
	exitIOError      = 74
)

// chunkExt marks files holding a serialized chunk image rather than source.
const chunkExt = ".rkc"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type cliFlags struct {
	interactive bool
	expr        string
	printCode   bool
	trace       bool
	tokens      bool
	emit        string
	configDir   string
	useCache    bool
	lsp         bool
	verbose     bool
}

func run(args []string, stdout, stderr io.Writer) int {
	var f cliFlags
	fs := flag.NewFlagSet("reckon", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.BoolVar(&f.interactive, "i", false, "Start the REPL after running -e or a file")
	fs.StringVar(&f.expr, "e", "", "Evaluate the given expression")
	fs.BoolVar(&f.printCode, "c", false, "Disassemble each chunk after compiling")
	fs.BoolVar(&f.trace, "trace", false, "Trace the VM stack before every instruction")
	fs.BoolVar(&f.tokens, "tokens", false, "Print the token stream instead of running")
	fs.StringVar(&f.emit, "emit", "", "Write the compiled chunk image to this file instead of running")
	fs.StringVar(&f.configDir, "config", "", "Directory holding reckon.toml (default: search upward from cwd)")
	fs.BoolVar(&f.useCache, "cache", false, "Use the compiled chunk cache even if reckon.toml disables it")
	fs.BoolVar(&f.lsp, "lsp", false, "Start the language server on stdio")
	fs.BoolVar(&f.verbose, "v", false, "Verbose logging")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: reckon [options] [file]\n\n")
		fmt.Fprintf(stderr, "Compiles and runs an arithmetic expression. Without a file or -e, starts the REPL.\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  reckon -e '1 + 2 * 3'         # Prints 7\n")
		fmt.Fprintf(stderr, "  reckon -c calc.rk              # Disassemble, then run\n")
		fmt.Fprintf(stderr, "  reckon -emit calc.rkc calc.rk  # Compile to a chunk image\n")
		fmt.Fprintf(stderr, "  reckon calc.rkc                # Run a chunk image\n")
		fmt.Fprintf(stderr, "  reckon -lsp                    # Language server\n")
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if fs.NArg() > 1 || (fs.NArg() == 1 && f.expr != "") {
		fs.Usage()
		return exitUsage
	}

	m, err := loadManifest(f.configDir)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitIOError
	}
	configureLogging(m, f.verbose)
	log := commonlog.GetLogger("reckon.cli")

	opts := interp.Options{
		PrintCode:      f.printCode || m.Compiler.PrintCode,
		Trace:          f.trace || m.VM.Trace,
		StackMax:       m.VM.StackMax,
		DivisionByZero: m.DivisionPolicy(),
		Out:            stdout,
		ErrOut:         stderr,
	}

	if (f.useCache || m.Cache.Enabled) && !f.tokens && f.emit == "" {
		store, err := chunkcache.Open(m.CachePath())
		if err != nil {
			log.Warningf("chunk cache disabled: %v", err)
		} else {
			defer store.Close()
			opts.Cache = store
		}
	}

	if f.lsp {
		if err := server.NewLSP(opts).Run(); err != nil {
			fmt.Fprintf(stderr, "Server error: %v\n", err)
			return exitIOError
		}
		return exitOK
	}

	in := interp.New(opts)

	var code int
	switch {
	case f.expr != "":
		code = runSource(in, f, f.expr, stdout, stderr)
	case fs.NArg() == 1:
		path := fs.Arg(0)
		if filepath.Ext(path) == chunkExt {
			code = runImage(in, path, stderr)
			break
		}
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitIOError
		}
		code = runSource(in, f, string(data), stdout, stderr)
	default:
		return startREPL(in, m, stdout, stderr)
	}

	// -i continues interactively after the expression, file or image.
	if f.interactive {
		return startREPL(in, m, stdout, stderr)
	}
	return code
}

func loadManifest(dir string) (*manifest.Manifest, error) {
	if dir != "" {
		return manifest.Load(dir)
	}
	m, err := manifest.FindAndLoad(".")
	if err != nil {
		return nil, err
	}
	if m == nil {
		return manifest.Default(), nil
	}
	return m, nil
}

func configureLogging(m *manifest.Manifest, verbose bool) {
	verbosity := m.Log.Verbosity
	if verbose && verbosity < 1 {
		verbosity = 1
	}
	var path *string
	if m.Log.File != "" {
		p := m.Log.File
		path = &p
	}
	commonlog.Configure(verbosity, path)
}

// runSource handles one program given as text: dump tokens, emit an image
// or interpret it.
func runSource(in *interp.Interpreter, f cliFlags, source string, stdout, stderr io.Writer) int {
	if f.tokens {
		printTokens(stdout, source)
		return exitOK
	}

	if f.emit != "" {
		chunk, err := in.Compile(source)
		if err != nil {
			return exitCompileError
		}
		data, err := chunk.Serialize()
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitIOError
		}
		if err := os.WriteFile(f.emit, data, 0o644); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitIOError
		}
		return exitOK
	}

	return exitCode(in.Interpret(source))
}

// runImage executes a serialized chunk image.
func runImage(in *interp.Interpreter, path string, stderr io.Writer) int {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitIOError
	}
	chunk, err := bytecode.Deserialize(data)
	if err == nil {
		err = chunk.Validate()
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error loading %s: %v\n", path, err)
		return exitIOError
	}
	_, result, _ := in.RunChunk(chunk)
	return exitCode(result)
}

func exitCode(result bytecode.InterpretResult) int {
	switch result {
	case bytecode.InterpretCompileError:
		return exitCompileError
	case bytecode.InterpretRuntimeError:
		return exitRuntimeError
	default:
		return exitOK
	}
}

func printTokens(w io.Writer, source string) {
	line := -1
	for _, tok := range compiler.Tokens(source) {
		if tok.Line != line {
			fmt.Fprintf(w, "%4d ", tok.Line)
			line = tok.Line
		} else {
			fmt.Fprint(w, "   | ")
		}
		lexeme := tok.Lexeme(source)
		if tok.Type == compiler.TokenError {
			lexeme = tok.Message
		}
		fmt.Fprintf(w, "%-12s '%s'\n", tok.Type, lexeme)
	}
}

// startREPL is replaced in tests, which have no terminal.
var startREPL = runREPL

// runREPL reads one expression per line until EOF or "exit".
func runREPL(in *interp.Interpreter, m *manifest.Manifest, stdout, stderr io.Writer) int {
	fmt.Fprintln(stdout, "Reckon REPL (type 'exit' to quit, ':help' for commands)")

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	histPath := m.HistoryPath()
	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	for {
		line, err := ln.Prompt(m.REPL.Prompt)
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(stdout)
				return exitOK
			}
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitIOError
		}

		input := strings.TrimSpace(line)
		switch {
		case input == "":
			continue
		case input == "exit":
			return exitOK
		case strings.HasPrefix(input, ":"):
			handleREPLCommand(in, stdout, input)
		default:
			in.Interpret(input)
		}
		ln.AppendHistory(line)
	}
}

// handleREPLCommand handles REPL meta-commands
func handleREPLCommand(in *interp.Interpreter, w io.Writer, cmd string) {
	fields := strings.Fields(cmd)
	switch fields[0] {
	case ":help", ":h", ":?":
		fmt.Fprintln(w, "REPL Commands:")
		fmt.Fprintln(w, "  :help, :h, :?     Show this help")
		fmt.Fprintln(w, "  :code EXPR        Disassemble EXPR without running it")
		fmt.Fprintln(w, "  :tokens EXPR      Show the token stream of EXPR")
		fmt.Fprintln(w, "  exit              Exit REPL")
	case ":code":
		chunk, err := in.Compile(strings.TrimSpace(strings.TrimPrefix(cmd, fields[0])))
		if err == nil {
			fmt.Fprint(w, chunk.DisassembleWithName("code"))
		}
	case ":tokens":
		printTokens(w, strings.TrimSpace(strings.TrimPrefix(cmd, fields[0])))
	default:
		fmt.Fprintf(w, "Unknown command: %s (type :help for commands)\n", cmd)
	}
}
