package userdb

import "errors"

var (
	// ErrNotFound is returned when a username, uid, groupname or gid
	// does not exist in the database.
	ErrNotFound = errors.New("not found")
	// ErrFilesRequired is returned when an operation needing backing
	// files is invoked on an in-memory-only database.
	ErrFilesRequired = errors.New("operation requires backing files")
	// ErrPartialWrite signals that a removal expected to match exactly
	// one line did not, so the in-memory and on-disk states may now
	// disagree.
	ErrPartialWrite = errors.New("line removal did not match exactly one line")
	// ErrMalformedRecord is returned when a table line does not match
	// its field count or a field fails validation; the whole load is
	// aborted.
	ErrMalformedRecord = errors.New("malformed record")
)
