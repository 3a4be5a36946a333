package server

import (
	"strings"
	"testing"

	"github.com/tliron/commonlog"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/chazu/reckon/interp"
)

// ---------------------------------------------------------------------------
// Diagnostics
// ---------------------------------------------------------------------------

func TestDiagnosticsFor_Clean(t *testing.T) {
	diags := diagnosticsFor("1 + 2 * 3")
	if diags == nil {
		t.Fatal("diagnosticsFor returned nil; clients need an empty array to clear markers")
	}
	if len(diags) != 0 {
		t.Errorf("got %d diagnostics, want 0: %+v", len(diags), diags)
	}
}

func TestDiagnosticsFor_UnclosedGroup(t *testing.T) {
	diags := diagnosticsFor("(1 + 2")
	if len(diags) != 1 {
		t.Fatalf("got %d diagnostics, want 1", len(diags))
	}
	d := diags[0]
	if d.Message != "at end: Expect ')' after expression." {
		t.Errorf("Message = %q", d.Message)
	}
	if d.Range.Start.Line != 0 || d.Range.End.Character != 6 {
		t.Errorf("Range = %+v, want line 0 spanning 6 characters", d.Range)
	}
	if d.Severity == nil || *d.Severity != protocol.DiagnosticSeverityError {
		t.Errorf("Severity = %v, want Error", d.Severity)
	}
	if d.Source == nil || *d.Source != lspName {
		t.Errorf("Source = %v, want %q", d.Source, lspName)
	}
}

func TestDiagnosticsFor_LaterLine(t *testing.T) {
	diags := diagnosticsFor("1 +\n\n  *")
	if len(diags) != 1 {
		t.Fatalf("got %d diagnostics, want 1", len(diags))
	}
	if got := diags[0].Range.Start.Line; got != 2 {
		t.Errorf("Start.Line = %d, want 2 (zero-based)", got)
	}
	if !strings.HasPrefix(diags[0].Message, "at '*'") {
		t.Errorf("Message = %q, want it to name the token", diags[0].Message)
	}
}

func TestDiagnosticsFor_LexicalError(t *testing.T) {
	diags := diagnosticsFor("1 + @")
	if len(diags) != 1 {
		t.Fatalf("got %d diagnostics, want 1", len(diags))
	}
	if diags[0].Message != "Unexpected character." {
		t.Errorf("Message = %q", diags[0].Message)
	}
}

func TestDiagnosticsFor_OnlyFirstErrorReported(t *testing.T) {
	diags := diagnosticsFor(") ) )")
	if len(diags) != 1 {
		t.Errorf("got %d diagnostics, want 1", len(diags))
	}
}

// ---------------------------------------------------------------------------
// Hover
// ---------------------------------------------------------------------------

func hoverText(t *testing.T, h *protocol.Hover) string {
	t.Helper()
	if h == nil {
		t.Fatal("hover is nil")
	}
	mc, ok := h.Contents.(protocol.MarkupContent)
	if !ok {
		t.Fatalf("Contents is %T, want MarkupContent", h.Contents)
	}
	if mc.Kind != protocol.MarkupKindMarkdown {
		t.Errorf("Kind = %q, want markdown", mc.Kind)
	}
	return mc.Value
}

func newTestLSP(t *testing.T) *LspServer {
	t.Helper()
	s := NewLSP(interp.Options{Logger: commonlog.MockLogger{}})
	t.Cleanup(s.worker.Stop)
	return s
}

func TestHover_Value(t *testing.T) {
	s := newTestLSP(t)
	text := hoverText(t, s.hover("(4 + 3) * 2"))
	for _, want := range []string{"**= 14**", "CONSTANT", "MULTIPLY", "RETURN"} {
		if !strings.Contains(text, want) {
			t.Errorf("hover missing %q:\n%s", want, text)
		}
	}
}

func TestHover_RuntimeError(t *testing.T) {
	s := newTestLSP(t)
	text := hoverText(t, s.hover("1 / 0"))
	if !strings.Contains(text, "runtime error") {
		t.Errorf("hover = %q, want a runtime error", text)
	}
	if !strings.Contains(text, "DIVIDE") {
		t.Errorf("hover should still show the bytecode:\n%s", text)
	}
}

func TestHover_CompileErrorHasNoHover(t *testing.T) {
	s := newTestLSP(t)
	if h := s.hover("1 +"); h != nil {
		t.Errorf("hover = %+v, want nil", h)
	}
}

func TestHover_UnknownDocument(t *testing.T) {
	s := newTestLSP(t)
	h, err := s.textDocumentHover(nil, &protocol.HoverParams{
		TextDocumentPositionParams: protocol.TextDocumentPositionParams{
			TextDocument: protocol.TextDocumentIdentifier{URI: "file:///missing.rk"},
		},
	})
	if err != nil || h != nil {
		t.Errorf("got (%v, %v), want (nil, nil)", h, err)
	}
}
