// Package errors defines the diagnostic model shared by the resolution
// pipeline: stable machine-readable codes, severities, and an accumulating
// list type that doubles as an error value.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Code identifies a diagnostic category produced by the pipeline.
type Code string

const (
	// CodeMalformedXML indicates a source file could not be parsed; the file
	// is skipped and the run continues.
	CodeMalformedXML Code = "malformed-xml"
	// CodeDuplicateDefinitionName indicates two non-abstract definitions share
	// a name. Fatal to the run.
	CodeDuplicateDefinitionName Code = "duplicate-definition-name"
	// CodeMissingParent indicates a definition names a parent that does not
	// exist; the definition is excluded from the graph.
	CodeMissingParent Code = "missing-parent"
	// CodeCyclicInheritance indicates a parent chain revisits itself; every
	// definition on the cycle is excluded from the graph.
	CodeCyclicInheritance Code = "cyclic-inheritance"
	// CodeDanglingReference indicates a field value names a definition that
	// was excluded from the graph; no edge is created.
	CodeDanglingReference Code = "dangling-reference"
	// CodeNoDefinitions indicates the input set produced zero definitions.
	// Fatal to the run.
	CodeNoDefinitions Code = "no-definitions"
	// CodeUnrecognizedRoot indicates a document whose root element is not the
	// configured container tag; it contributes no definitions.
	CodeUnrecognizedRoot Code = "unrecognized-root"
	// CodeAbstractOverride indicates a later abstract definition replaced an
	// earlier one with the same name under the abstract-override option.
	CodeAbstractOverride Code = "abstract-override"
)

// Severity classifies how a diagnostic affects the run.
type Severity uint8

const (
	// SeverityInfo marks diagnostics that require no action.
	SeverityInfo Severity = iota
	// SeverityWarning marks per-unit failures that excluded data from the run.
	SeverityWarning
	// SeverityError marks failures that abort the run.
	SeverityError
)

// String returns the lowercase severity name.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return fmt.Sprintf("severity(%d)", uint8(s))
	}
}

// Diagnostic describes one recorded condition with its source context.
type Diagnostic struct {
	Code     Code
	Severity Severity
	Message  string
	// Source is the path of the file the condition was found in, when known.
	Source string
	// Subjects lists the definition names involved, in report order (e.g. the
	// full chain of a cycle, or both halves of a duplicate).
	Subjects []string
}

// Error formats the diagnostic with code, severity, and context.
func (d *Diagnostic) Error() string {
	if d == nil {
		return "diagnostic <nil>"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s: %s", d.Code, d.Severity, d.Message)
	if d.Source != "" {
		fmt.Fprintf(&b, " (%s)", d.Source)
	}
	return b.String()
}

// DiagnosticList is an error that wraps zero or more diagnostics.
type DiagnosticList []Diagnostic //nolint:errname // list type is the public accumulation API.

// Error returns a compact summary of the list.
func (l DiagnosticList) Error() string {
	switch len(l) {
	case 0:
		return "no diagnostics"
	case 1:
		return l[0].Error()
	default:
		return fmt.Sprintf("%s (and %d more)", l[0].Error(), len(l)-1)
	}
}

// Add appends a diagnostic and returns the extended list.
func (l DiagnosticList) Add(d Diagnostic) DiagnosticList {
	return append(l, d)
}

// HasErrors reports whether any diagnostic carries SeverityError.
func (l DiagnosticList) HasErrors() bool {
	for i := range l {
		if l[i].Severity == SeverityError {
			return true
		}
	}
	return false
}

// Filter returns the diagnostics matching code, preserving order.
func (l DiagnosticList) Filter(code Code) []Diagnostic {
	var out []Diagnostic
	for i := range l {
		if l[i].Code == code {
			out = append(out, l[i])
		}
	}
	return out
}

// Newf builds a diagnostic with a formatted message.
func Newf(code Code, severity Severity, format string, args ...any) Diagnostic {
	return Diagnostic{Code: code, Severity: severity, Message: fmt.Sprintf(format, args...)}
}

// AsDiagnostics extracts a diagnostic list from an error returned by the
// pipeline, if one is present.
func AsDiagnostics(err error) (DiagnosticList, bool) {
	if err == nil {
		return nil, false
	}
	var list DiagnosticList
	if errors.As(err, &list) {
		return list, true
	}
	var single *Diagnostic
	if errors.As(err, &single) && single != nil {
		return DiagnosticList{*single}, true
	}
	return nil, false
}
