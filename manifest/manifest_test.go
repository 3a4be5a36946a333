package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/reckon/pkg/bytecode"
)

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[compiler]
print-code = true

[vm]
stack-max = 64
trace = true
division-by-zero = "restore"

[cache]
enabled = true
path = "build/chunks.db"

[log]
verbosity = 2
file = "reckon.log"

[repl]
prompt = "> "
history = "/tmp/reckon_history"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if !m.Compiler.PrintCode {
		t.Error("compiler.print-code should be true")
	}
	if m.VM.StackMax != 64 {
		t.Errorf("vm.stack-max = %d, want 64", m.VM.StackMax)
	}
	if !m.VM.Trace {
		t.Error("vm.trace should be true")
	}
	if m.DivisionPolicy() != bytecode.DivZeroRestore {
		t.Errorf("DivisionPolicy() = %v, want restore", m.DivisionPolicy())
	}
	if !m.Cache.Enabled {
		t.Error("cache.enabled should be true")
	}
	if got, want := m.CachePath(), filepath.Join(m.Dir, "build", "chunks.db"); got != want {
		t.Errorf("CachePath() = %q, want %q", got, want)
	}
	if m.Log.Verbosity != 2 || m.Log.File != "reckon.log" {
		t.Errorf("log = %+v", m.Log)
	}
	if m.REPL.Prompt != "> " {
		t.Errorf("repl.prompt = %q, want %q", m.REPL.Prompt, "> ")
	}
	if m.HistoryPath() != "/tmp/reckon_history" {
		t.Errorf("HistoryPath() = %q", m.HistoryPath())
	}
	if !filepath.IsAbs(m.Dir) {
		t.Errorf("Dir = %q, want absolute", m.Dir)
	}
}

func TestLoadManifestDefaults(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "")

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Compiler.PrintCode || m.VM.Trace || m.Cache.Enabled {
		t.Errorf("flags should default to false: %+v", m)
	}
	if m.VM.StackMax != bytecode.DefaultStackMax {
		t.Errorf("vm.stack-max = %d, want %d", m.VM.StackMax, bytecode.DefaultStackMax)
	}
	if m.DivisionPolicy() != bytecode.DivZeroHalt {
		t.Errorf("DivisionPolicy() = %v, want halt", m.DivisionPolicy())
	}
	if m.REPL.Prompt != ">>> " {
		t.Errorf("repl.prompt = %q, want %q", m.REPL.Prompt, ">>> ")
	}
	if !strings.HasSuffix(m.CachePath(), filepath.Join(".reckon", "cache.db")) {
		t.Errorf("CachePath() = %q", m.CachePath())
	}
}

func TestDefault(t *testing.T) {
	m := Default()
	if m.Dir != "" {
		t.Errorf("Dir = %q, want empty", m.Dir)
	}
	if m.CachePath() != filepath.Join(".reckon", "cache.db") {
		t.Errorf("CachePath() = %q, want relative default", m.CachePath())
	}
	if err := m.Validate(); err != nil {
		t.Errorf("Default() does not validate: %v", err)
	}
	if !strings.HasSuffix(m.HistoryPath(), ".reckon_history") {
		t.Errorf("HistoryPath() = %q", m.HistoryPath())
	}
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"bad toml", "[vm\nstack-max = 1", ""},
		{"negative stack", "[vm]\nstack-max = -1", "stack-max"},
		{"unknown policy", "[vm]\ndivision-by-zero = \"wrap\"", "division-by-zero"},
		{"verbosity range", "[log]\nverbosity = 9", "verbosity"},
		{"wrong type", "[vm]\ntrace = \"yes\"", ""},
	}
	for _, tt := range tests {
		_, err := Parse([]byte(tt.content))
		if err == nil {
			t.Errorf("%s: Parse succeeded", tt.name)
			continue
		}
		if tt.want != "" && !strings.Contains(err.Error(), tt.want) {
			t.Errorf("%s: error %q does not mention %q", tt.name, err, tt.want)
		}
	}
}

func TestLoadMissing(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Error("Load succeeded without a reckon.toml")
	}
}

func TestFindAndLoad(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "[vm]\nstack-max = 32\n")

	nested := filepath.Join(root, "a", "b", "c")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}

	m, err := FindAndLoad(nested)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m == nil {
		t.Fatal("FindAndLoad returned nil")
	}
	if m.VM.StackMax != 32 {
		t.Errorf("vm.stack-max = %d, want 32", m.VM.StackMax)
	}
	want, _ := filepath.Abs(root)
	if m.Dir != want {
		t.Errorf("Dir = %q, want %q", m.Dir, want)
	}
}

func TestFindAndLoadNotFound(t *testing.T) {
	// Temp dirs live under the system temp root, which has no reckon.toml.
	m, err := FindAndLoad(t.TempDir())
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m != nil {
		t.Errorf("expected nil manifest, got one from %s", m.Dir)
	}
}
