package cssplay

import (
	"errors"
	"fmt"
	"strings"
)

// ParseError represents a detailed source error with position and context.
type ParseError struct {
	Line    int    // Line number (1-indexed)
	Column  int    // Column number (1-indexed, optional)
	Message string // Error message
	Source  string // Full source text, used to print surrounding lines
	Hint    string // Helpful suggestion
	Related string // Related information (e.g., "block opened at line 3")
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Column > 0 {
		return fmt.Sprintf("line %d, column %d: %s", e.Line, e.Column, e.Message)
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

// Format returns a nicely formatted error message with context.
func (e *ParseError) Format() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("❌ Line %d: %s\n", e.Line, e.Message))

	if context := e.codeContext(); context != "" {
		b.WriteString(context)
	}

	if e.Hint != "" {
		b.WriteString(fmt.Sprintf("\n💡 Tip: %s\n", e.Hint))
	}

	if e.Related != "" {
		b.WriteString(fmt.Sprintf("\n🔗 %s\n", e.Related))
	}

	return b.String()
}

// codeContext extracts the lines around the error from the source text.
func (e *ParseError) codeContext() string {
	if e.Source == "" {
		return ""
	}
	lines := strings.Split(e.Source, "\n")
	if e.Line < 1 || e.Line > len(lines) {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n")

	// Show 2 lines before, the error line, and 2 lines after
	start := max(1, e.Line-2)
	end := min(len(lines), e.Line+2)

	for i := start; i <= end; i++ {
		prefix := fmt.Sprintf("  %2d | ", i)
		b.WriteString(prefix + lines[i-1] + "\n")

		if i == e.Line && e.Column > 0 {
			b.WriteString(strings.Repeat(" ", len(prefix)+e.Column-1) + "^\n")
		}
	}

	return b.String()
}

// NewParseError creates a new ParseError.
func NewParseError(line int, message string) *ParseError {
	return &ParseError{
		Line:    line,
		Message: message,
	}
}

// WithColumn adds column information to the error.
func (e *ParseError) WithColumn(col int) *ParseError {
	e.Column = col
	return e
}

// WithSource attaches the source text used for the code excerpt.
func (e *ParseError) WithSource(src string) *ParseError {
	e.Source = src
	return e
}

// WithHint adds a helpful hint to the error.
func (e *ParseError) WithHint(hint string) *ParseError {
	e.Hint = hint
	return e
}

// WithRelated adds related information to the error.
func (e *ParseError) WithRelated(related string) *ParseError {
	e.Related = related
	return e
}

// StageError is a failure caught at a pipeline stage boundary.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Message returns the underlying error text without the stage prefix.
func (e *StageError) Message() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

// Banner renders the text shown in the message banner for this failure.
// Parse errors add their hint on a line of its own.
func (e *StageError) Banner() string {
	banner := fmt.Sprintf("[%s] %s:\n%s", e.Stage, e.Stage.Describe(), e.Message())
	var pe *ParseError
	if errors.As(e.Err, &pe) && pe.Hint != "" {
		banner += "\nHint: " + pe.Hint
	}
	return banner
}

// NewStageError wraps err as a failure of stage. A nil err yields nil.
func NewStageError(stage Stage, err error) *StageError {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}
