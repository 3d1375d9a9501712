package ledger

import (
	"errors"
	"fmt"
)

// ErrMalformedRecord marks a ledger line that cannot be used: invalid JSON,
// an empty date or a negative id. Such lines are skipped on read.
var ErrMalformedRecord = errors.New("malformed ledger record")

// StorageError is an I/O failure reading or writing a ledger file.
type StorageError struct {
	Op   string // open, read, write, mkdir, stat
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("ledger %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func storageErr(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Path: path, Err: err}
}
