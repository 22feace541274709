package cellar

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by reads on a location with no filesystem entry.
	ErrNotFound = errors.New("cellar: not found")

	// ErrAlreadyExists is returned by writes to a location whose file already
	// exists. The store never overwrites implicitly; remove the location
	// first.
	ErrAlreadyExists = errors.New("cellar: already exists")

	// ErrInvalidFileName is returned on a shape or decode mismatch: retrieving
	// a folder as a single item, appending to content that does not decode
	// under the expected element type, or a strict sequence retrieval hitting
	// an undecodable member.
	ErrInvalidFileName = errors.New("cellar: invalid file name")
)

// OpError carries the failing operation and absolute path alongside the
// underlying error. The taxonomy sentinels (or the raw filesystem error for
// I/O failures - those are surfaced unchanged, never reinterpreted) are
// reachable through errors.Is/As via Unwrap.
type OpError struct {
	Op   string
	Path string
	Err  error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("cellar: %s %q: %v", e.Op, e.Path, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

func opErr(op, path string, err error) error {
	return &OpError{Op: op, Path: path, Err: err}
}
