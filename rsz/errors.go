package rsz

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// Indicates an unexpected block signature.
	ErrInvalidSig = errors.New("invalid signature")
	// Indicates that header offsets or counts are inconsistent.
	ErrCorruptHeader = errors.New("the block header is corrupted")
	// Indicates non-zero bytes following the last instance.
	ErrTrailingData = errors.New("unexpected data after last instance")
	// Indicates a reference to an instance outside of the table.
	ErrRefRange = errors.New("reference out of range")
	// Indicates that a key was constructed while already under construction.
	ErrCycle = errors.New("object refers to itself")
	// Indicates that the first instance of a table is not the null instance.
	ErrNullInstance = errors.New("first instance is not null")
	// Indicates two userdata records for one instance.
	ErrDuplicateUserData = errors.New("instance has several userdata records")
)

// ErrVersion indicates an RSZ version other than the one expected for the
// game.
type ErrVersion struct {
	Got, Want uint32
}

func (err ErrVersion) Error() string {
	return fmt.Sprintf("unexpected rsz version %d (want %d)", err.Got, err.Want)
}

// ErrUnknownType indicates a type id that is not known by the schema.
type ErrUnknownType uint32

func (err ErrUnknownType) Error() string {
	return fmt.Sprintf("unknown type id 0x%08X", uint32(err))
}

// ErrCRC indicates a type whose layout fingerprint does not match the
// schema.
type ErrCRC struct {
	Class     string
	Got, Want uint32
}

func (err ErrCRC) Error() string {
	return fmt.Sprintf("crc mismatch for %s: 0x%08X (want 0x%08X)", err.Class, err.Got, err.Want)
}

// ErrValue is an error produced by a value of a certain field type.
type ErrValue struct {
	Field string
	Cause error
}

func (err ErrValue) Error() string {
	return fmt.Sprintf("field %s: %s", err.Field, err.Cause.Error())
}

func (err ErrValue) Unwrap() error {
	return err.Cause
}

// CodecError wraps an error that occurred while converting between a table
// and objects.
type CodecError struct {
	Cause error
}

func (err CodecError) Error() string {
	if err.Cause == nil {
		return "codec error"
	}
	return "codec error: " + err.Cause.Error()
}

func (err CodecError) Unwrap() error {
	return err.Cause
}

// DataError wraps an error that occurred while encoding or decoding byte data.
type DataError struct {
	// Offset is the byte offset, relative to the start of the block, where
	// the error occurred.
	Offset int64

	Cause error
}

func (err DataError) Error() string {
	var s strings.Builder
	s.WriteString("data error")
	if err.Offset >= 0 {
		s.WriteString(" at ")
		s.Write(strconv.AppendInt(nil, err.Offset, 10))
	}
	if err.Cause != nil {
		s.WriteString(": ")
		s.WriteString(err.Cause.Error())
	}
	return s.String()
}

func (err DataError) Unwrap() error {
	return err.Cause
}

// InstanceError indicates an error that occurred within an instance.
type InstanceError struct {
	// Index is the position of the instance within the table.
	Index int
	// Class is the class of the instance, if known.
	Class string

	Cause error
}

func (err InstanceError) Error() string {
	if err.Class == "" {
		return fmt.Sprintf("instance #%d: %s", err.Index, err.Cause.Error())
	}
	return fmt.Sprintf("instance #%d (%s): %s", err.Index, err.Class, err.Cause.Error())
}

func (err InstanceError) Unwrap() error {
	return err.Cause
}
