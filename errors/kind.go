package errors

import (
	"errors"
	"strings"
)

// Kind classifies a failure by how the caller is expected to react to it.
type Kind uint8

const (
	// KindUnknown is a failure that has not been classified.
	KindUnknown Kind = iota
	// KindTransient is an I/O failure that may succeed when the whole read
	// is retried, such as a file that is still being written.
	KindTransient
	// KindSchema is a mismatch between data and the type schema: unknown
	// class, unexpected field count, unknown format version. Never retried.
	KindSchema
	// KindReference is a reference that could not be resolved. Imports
	// absorb it at node granularity; exports treat it as fatal.
	KindReference
	// KindWrite is a failure to produce an output file.
	KindWrite
)

var kindStrings = [...]string{
	KindUnknown:   "unknown",
	KindTransient: "transient",
	KindSchema:    "schema mismatch",
	KindReference: "reference",
	KindWrite:     "write",
}

func (k Kind) String() string {
	if int(k) < len(kindStrings) {
		return kindStrings[k]
	}
	return "invalid"
}

// Error is a classified failure, carrying the operation that was in progress
// and the path or class it concerned.
type Error struct {
	Kind Kind
	// Op names the operation in progress, such as "decode" or "flatten".
	Op string
	// Path is the file or in-engine path concerned, if any.
	Path string
	// Class is the class name concerned, if any.
	Class string

	Cause error
}

func (err *Error) Error() string {
	var s strings.Builder
	if err.Op != "" {
		s.WriteString(err.Op)
		s.WriteString(": ")
	}
	s.WriteString(err.Kind.String())
	if err.Path != "" {
		s.WriteString(" ")
		s.WriteString(err.Path)
	}
	if err.Class != "" {
		s.WriteString(" (class ")
		s.WriteString(err.Class)
		s.WriteString(")")
	}
	if err.Cause != nil {
		s.WriteString(": ")
		s.WriteString(err.Cause.Error())
	}
	return s.String()
}

func (err *Error) Unwrap() error {
	return err.Cause
}

// E returns a classified error. Returns nil if cause is nil.
func E(kind Kind, op, path string, cause error) error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Path: path, Cause: cause}
}

// Transient classifies cause as a retryable I/O failure.
func Transient(op, path string, cause error) error {
	return E(KindTransient, op, path, cause)
}

// Schema classifies cause as a schema mismatch.
func Schema(op, class string, cause error) error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: KindSchema, Op: op, Class: class, Cause: cause}
}

// Reference classifies cause as an unresolved reference.
func Reference(op, path string, cause error) error {
	return E(KindReference, op, path, cause)
}

// ClassReference classifies cause as an unresolved reference held by data of
// the given class.
func ClassReference(op, class string, cause error) error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: KindReference, Op: op, Class: class, Cause: cause}
}

// Write classifies cause as an output failure.
func Write(op, path string, cause error) error {
	return E(KindWrite, op, path, cause)
}

// KindOf returns the kind of the outermost classified error in the chain of
// err, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsTransient returns whether err may succeed when retried.
func IsTransient(err error) bool {
	return KindOf(err) == KindTransient
}
