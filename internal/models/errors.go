package models

import "errors"

// Storage-level errors returned by repositories. Services translate them into
// caller-facing errors.
var (
	// ErrNotFound means the requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate means a uniqueness constraint rejected the write.
	ErrDuplicate = errors.New("duplicate record")
	// ErrStaleVersion means a version-checked bank write lost a race.
	ErrStaleVersion = errors.New("stale bank version")
)
