// Package manifest handles reckon.toml configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/chazu/reckon/pkg/bytecode"
)

// FileName is the configuration file looked up by Load and FindAndLoad.
const FileName = "reckon.toml"

// Manifest represents a reckon.toml configuration.
type Manifest struct {
	Compiler CompilerConfig `toml:"compiler"`
	VM       VMConfig       `toml:"vm"`
	Cache    CacheConfig    `toml:"cache"`
	Log      LogConfig      `toml:"log"`
	REPL     REPLConfig     `toml:"repl"`

	// Dir is the directory containing the reckon.toml file (set at load time).
	Dir string `toml:"-"`
}

// CompilerConfig controls compile-time output.
type CompilerConfig struct {
	PrintCode bool `toml:"print-code"`
}

// VMConfig controls execution.
type VMConfig struct {
	StackMax       int    `toml:"stack-max"`
	Trace          bool   `toml:"trace"`
	DivisionByZero string `toml:"division-by-zero"`
}

// CacheConfig configures the compiled chunk cache.
type CacheConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// LogConfig configures commonlog.
type LogConfig struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// REPLConfig configures the interactive loop.
type REPLConfig struct {
	Prompt  string `toml:"prompt"`
	History string `toml:"history"`
}

// Default returns the configuration used when no reckon.toml exists.
func Default() *Manifest {
	m := &Manifest{}
	m.applyDefaults()
	return m
}

// Load parses a reckon.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	return m, nil
}

// Parse decodes TOML configuration text, applies defaults and validates it.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	m.applyDefaults()
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// FindAndLoad walks up from startDir to find a reckon.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

func (m *Manifest) applyDefaults() {
	if m.VM.StackMax == 0 {
		m.VM.StackMax = bytecode.DefaultStackMax
	}
	if m.VM.DivisionByZero == "" {
		m.VM.DivisionByZero = bytecode.DivZeroHalt.String()
	}
	if m.Cache.Path == "" {
		m.Cache.Path = filepath.Join(".reckon", "cache.db")
	}
	if m.REPL.Prompt == "" {
		m.REPL.Prompt = ">>> "
	}
	if m.REPL.History == "" {
		m.REPL.History = ".reckon_history"
	}
}

// Validate rejects settings the VM cannot honor.
func (m *Manifest) Validate() error {
	if m.VM.StackMax < 0 {
		return fmt.Errorf("vm.stack-max must be positive, got %d", m.VM.StackMax)
	}
	if _, err := bytecode.ParseDivisionPolicy(m.VM.DivisionByZero); err != nil {
		return fmt.Errorf("vm.division-by-zero: %w", err)
	}
	if m.Log.Verbosity < -4 || m.Log.Verbosity > 5 {
		return fmt.Errorf("log.verbosity must be between -4 and 5, got %d", m.Log.Verbosity)
	}
	return nil
}

// DivisionPolicy returns the parsed vm.division-by-zero setting.
func (m *Manifest) DivisionPolicy() bytecode.DivisionPolicy {
	p, _ := bytecode.ParseDivisionPolicy(m.VM.DivisionByZero)
	return p
}

// CachePath returns the cache database path, resolved against Dir when relative.
func (m *Manifest) CachePath() string {
	return m.resolve(m.Cache.Path)
}

// HistoryPath returns the REPL history path. Relative paths resolve against
// the user's home directory.
func (m *Manifest) HistoryPath() string {
	if filepath.IsAbs(m.REPL.History) {
		return m.REPL.History
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return m.REPL.History
	}
	return filepath.Join(home, m.REPL.History)
}

func (m *Manifest) resolve(p string) string {
	if filepath.IsAbs(p) || m.Dir == "" {
		return p
	}
	return filepath.Join(m.Dir, p)
}
