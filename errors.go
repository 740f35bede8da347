package hoard

import (
	"errors"
	"fmt"
	"reflect"
)

// ErrClosed is returned by operations on a closed Cache or Manager.
var ErrClosed = errors.New("cache is closed")

// WrongTypeError reports a key or value that is not an instance of the
// declared runtime type. It is returned before any table mutation for
// the offending key, including for keys and values produced by mapping
// functions.
type WrongTypeError struct {
	Kind     string // "key", "value", or "cache" for manager lookups
	Expected reflect.Type
	Actual   reflect.Type // nil when the offending value was nil
}

func (e *WrongTypeError) Error() string {
	if e.Actual == nil {
		return fmt.Sprintf("invalid %s type, expected %s but was nil", e.Kind, e.Expected)
	}
	return fmt.Sprintf("invalid %s type, expected %s but was %s", e.Kind, e.Expected, e.Actual)
}

// MappingError wraps an error returned by a caller-supplied mapping
// function. The table is left unchanged for the key(s) involved in the
// failed invocation, and the function is never retried.
type MappingError struct {
	Key any
	Err error
}

func (e *MappingError) Error() string {
	if e.Key == nil {
		return fmt.Sprintf("bulk mapping function failed: %v", e.Err)
	}
	return fmt.Sprintf("mapping function failed for key %v: %v", e.Key, e.Err)
}

func (e *MappingError) Unwrap() error {
	return e.Err
}

// AccessError reports a fault in a collaborator behind the cache, such
// as a loader or writer. It lets callers distinguish infrastructure
// failures from ordinary misses; a miss is never an AccessError.
type AccessError struct {
	Op  string
	Err error
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("%s: access failed: %v", e.Op, e.Err)
}

func (e *AccessError) Unwrap() error {
	return e.Err
}
