package subset

import (
	"errors"
	"fmt"
)

// Sentinel errors for the rewrite engine, matching the error kinds of
// spec §7. Callers should use errors.Is against these rather than
// comparing error strings.
var (
	ErrNilCommit        = errors.New("nil commit")
	ErrEmptyFilter      = errors.New("empty filter")
	ErrNilObjectStore   = errors.New("nil object store")
	ErrObjectNotFound   = errors.New("object not found")
	ErrCorruptObject    = errors.New("corrupt object")
	ErrCorruptMemo      = errors.New("corrupt memo")
	ErrBranchExists     = errors.New("branch already exists")
	ErrEmptyHistory     = errors.New("no commits reachable from revision")
	ErrBadFilterSyntax  = errors.New("invalid filter pattern")
	ErrIO               = errors.New("io failure")
	ErrCancelled        = errors.New("rewrite cancelled")
	ErrHexStringTooShort = errors.New("hex encoded byte slice is too short for hash")
)

// errorf wraps err with a formatted message, returning nil if err is nil.
// format should reference err with %w somewhere in args, mirroring the
// fmt.Errorf("...: %w", err) idiom used throughout this package.
func errorf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format, args...)
}
