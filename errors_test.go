package cssplay

import (
	"errors"
	"strings"
	"testing"
)

func TestParseErrorFormatting(t *testing.T) {
	src := "var a = 1;\nvar s = <style>\n  body { color: red;\n</style>;\nvar b = 2;"
	err := NewParseError(3, "unterminated rule block").
		WithColumn(8).
		WithSource(src).
		WithHint("Add a closing } before </style>").
		WithRelated("Style block opened at line 2")

	msg := err.Format()
	t.Logf("Error message:\n%s", msg)

	if !strings.Contains(msg, "❌ Line 3: unterminated rule block") {
		t.Errorf("Format should lead with the line and message")
	}
	if !strings.Contains(msg, "   3 |   body { color: red;") {
		t.Errorf("Format should show the offending line, got:\n%s", msg)
	}
	if !strings.Contains(msg, "   1 | var a = 1;") || !strings.Contains(msg, "   5 | var b = 2;") {
		t.Errorf("Format should show two lines of context on each side")
	}
	if !strings.Contains(msg, "💡 Tip: Add a closing }") {
		t.Errorf("Format should include hint")
	}
	if !strings.Contains(msg, "🔗 Style block opened at line 2") {
		t.Errorf("Format should include related info")
	}
}

func TestParseErrorPointer(t *testing.T) {
	err := NewParseError(1, "unexpected }").WithColumn(3).WithSource("ab}")
	lines := strings.Split(err.Format(), "\n")

	var pointer string
	for i, l := range lines {
		if strings.HasPrefix(l, "   1 | ") && i+1 < len(lines) {
			pointer = lines[i+1]
		}
	}
	if want := strings.Repeat(" ", len("   1 | ")+2) + "^"; pointer != want {
		t.Errorf("pointer = %q, want %q", pointer, want)
	}
}

func TestParseErrorError(t *testing.T) {
	if got := NewParseError(4, "boom").Error(); got != "line 4: boom" {
		t.Errorf("Error() = %q", got)
	}
	if got := NewParseError(4, "boom").WithColumn(2).Error(); got != "line 4, column 2: boom" {
		t.Errorf("Error() = %q", got)
	}
}

func TestStageError(t *testing.T) {
	cause := errors.New("x is not defined")
	err := NewStageError(StageExecute, cause)

	if !errors.Is(err, cause) {
		t.Fatal("StageError should unwrap to its cause")
	}
	if got := err.Banner(); got != "[execute] Error while running the transpiled code:\nx is not defined" {
		t.Errorf("Banner() = %q", got)
	}

	if NewStageError(StageAST, nil) != nil {
		t.Error("NewStageError(nil) should be nil")
	}
}

func TestStageErrorBannerHint(t *testing.T) {
	pe := NewParseError(3, "unexpected </style>").WithColumn(1).WithHint("add a closing } before </style>")
	err := NewStageError(StageAST, pe)

	want := "[ast] Error while generating the AST:\nline 3, column 1: unexpected </style>\nHint: add a closing } before </style>"
	if got := err.Banner(); got != want {
		t.Errorf("Banner() = %q, want %q", got, want)
	}

	plain := NewStageError(StageAST, NewParseError(1, "unclosed '('"))
	if got := plain.Banner(); strings.Contains(got, "Hint:") {
		t.Errorf("Banner() without a hint = %q", got)
	}
}

func TestParseViewMode(t *testing.T) {
	tests := []struct {
		in   string
		want ViewMode
		ok   bool
	}{
		{"", ViewCompiled, true},
		{"css", ViewCompiled, true},
		{"compiled", ViewCompiled, true},
		{"ast", ViewAST, true},
		{"js", ViewJS, true},
		{"javascript", ViewJS, true},
		{"html", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseViewMode(tt.in)
			if got != tt.want || ok != tt.ok {
				t.Errorf("ParseViewMode(%q) = %q, %v", tt.in, got, ok)
			}
		})
	}
}
