package domain

import "fmt"

// NotFoundError represents a missing resource.
type NotFoundError struct {
	Resource string
}

func (e NotFoundError) Error() string {
	if e.Resource == "" {
		return "not found"
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

// Is enables errors.Is matching on NotFoundError.
func (e NotFoundError) Is(target error) bool {
	_, ok := target.(NotFoundError)
	if ok {
		return true
	}
	_, ok = target.(*NotFoundError)
	return ok
}

// ErrNotFound is the sentinel error for missing resources.
var ErrNotFound = NotFoundError{}

// StorageUnavailableError means neither the cache nor the mirror could serve
// an operation that requires strong ordering. Fatal to the request; callers
// must not fall back to defaults once any stroke has been issued.
type StorageUnavailableError struct {
	Op string
}

func (e StorageUnavailableError) Error() string {
	if e.Op == "" {
		return "storage unavailable"
	}
	return fmt.Sprintf("storage unavailable for %s", e.Op)
}

// Is enables errors.Is matching on StorageUnavailableError.
func (e StorageUnavailableError) Is(target error) bool {
	_, ok := target.(StorageUnavailableError)
	if ok {
		return true
	}
	_, ok = target.(*StorageUnavailableError)
	return ok
}

// ErrStorageUnavailable is the sentinel error for double-tier failures.
var ErrStorageUnavailable = StorageUnavailableError{}
