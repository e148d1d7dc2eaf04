package model

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Sentinel causes carried by SchemaError, for use with errors.Is
var (
	ErrMissingVariant   = errors.New("missing variant")
	ErrAmbiguousVariant = errors.New("ambiguous variant")
	ErrUnknownVariant   = errors.New("unknown variant")
	ErrUnknownField     = errors.New("unknown field")
	ErrMissingField     = errors.New("missing field")
	ErrOutOfRange       = errors.New("value out of range")
	ErrInvalidValue     = errors.New("invalid value")
	ErrSyntax           = errors.New("invalid YAML")
)

// SchemaError reports a scene description that does not match the node schema
type SchemaError struct {
	Line   int
	Column int
	Node   string // node kind, e.g. "material" or "sphere"
	Err    error  // one of the sentinel errors above
	Msg    string
}

func (e *SchemaError) Error() string {
	var b strings.Builder
	if e.Line > 0 {
		fmt.Fprintf(&b, "line %d column %d: ", e.Line, e.Column)
	}
	if e.Node != "" {
		fmt.Fprintf(&b, "%s: ", e.Node)
	}
	b.WriteString(e.Err.Error())
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	return b.String()
}

func (e *SchemaError) Unwrap() error { return e.Err }

func schemaErrorAt(node *yaml.Node, kind string, cause error, format string, args ...any) *SchemaError {
	e := &SchemaError{Node: kind, Err: cause, Msg: fmt.Sprintf(format, args...)}
	if node != nil {
		e.Line, e.Column = node.Line, node.Column
	}
	return e
}

// rangeError is returned by node validators and positioned by the decoder
type rangeError struct {
	field string
	msg   string
}

func (e *rangeError) Error() string { return fmt.Sprintf("%s %s", e.field, e.msg) }

func outOfRange(field, format string, args ...any) error {
	return &rangeError{field: field, msg: fmt.Sprintf(format, args...)}
}

var typeErrorLine = regexp.MustCompile(`^line (\d+): (.*)$`)

// fromDecodeError turns yaml decoder failures into SchemaErrors
func fromDecodeError(err error, node *yaml.Node) error {
	var se *SchemaError
	if errors.As(err, &se) {
		return se
	}
	var te *yaml.TypeError
	if errors.As(err, &te) && len(te.Errors) > 0 {
		first := te.Errors[0]
		e := &SchemaError{Err: ErrInvalidValue, Msg: first}
		if m := typeErrorLine.FindStringSubmatch(first); m != nil {
			e.Line, _ = strconv.Atoi(m[1])
			e.Msg = m[2]
		} else if node != nil {
			e.Line, e.Column = node.Line, node.Column
		}
		return e
	}
	return &SchemaError{Err: ErrInvalidValue, Msg: err.Error()}
}
