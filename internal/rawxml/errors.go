package rawxml

import (
	"errors"
	"fmt"
)

var (
	errUnexpectedEOF      = errors.New("unexpected EOF")
	errInvalidName        = errors.New("invalid XML name")
	errInvalidEntity      = errors.New("invalid entity reference")
	errInvalidCharRef     = errors.New("invalid character reference")
	errInvalidToken       = errors.New("invalid XML token")
	errInvalidComment     = errors.New("invalid XML comment")
	errUnterminatedTag    = errors.New("unterminated tag")
	errMismatchedEndTag   = errors.New("mismatched end element")
	errMultipleRoots      = errors.New("multiple root elements")
	errContentOutsideRoot = errors.New("content outside root element")
	errMissingRoot        = errors.New("missing root element")
	errDepthLimit         = errors.New("element depth exceeds limit")
	errDuplicateAttr      = errors.New("duplicate attribute name")
)

// SyntaxError reports a well-formedness error with location context.
type SyntaxError struct {
	Source string
	Offset int64
	Line   int
	Column int
	Err    error
}

// Error formats the syntax error with location and cause.
func (e *SyntaxError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Line > 0 {
		return fmt.Sprintf("xml syntax error at line %d, column %d (offset %d): %v", e.Line, e.Column, e.Offset, e.Err)
	}
	return fmt.Sprintf("xml syntax error at offset %d: %v", e.Offset, e.Err)
}

// Unwrap exposes the underlying cause.
func (e *SyntaxError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
