package container

import (
	"errors"
	"fmt"
)

var (
	// Indicates an unexpected file signature.
	ErrInvalidSig = errors.New("invalid signature")
	// Indicates that header offsets or counts are inconsistent.
	ErrCorruptHeader = errors.New("the file header is corrupted")
	// Indicates an object id outside of the object table.
	ErrObjectRange = errors.New("object id out of range")
	// Indicates a kind that has no file format.
	ErrUnknownKind = errors.New("unknown container kind")
)

// ErrVersion indicates a file version that is not known for the game.
type ErrVersion struct {
	Kind      string
	Got, Want int
}

func (err ErrVersion) Error() string {
	return fmt.Sprintf("unsupported %s version %d (want %d)", err.Kind, err.Got, err.Want)
}

// TableError indicates an error within an entry of an info table.
type TableError struct {
	// Table names the info table.
	Table string
	// Index is the entry within the table.
	Index int

	Cause error
}

func (err TableError) Error() string {
	return fmt.Sprintf("%s #%d: %s", err.Table, err.Index, err.Cause.Error())
}

func (err TableError) Unwrap() error {
	return err.Cause
}
