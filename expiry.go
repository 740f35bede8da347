package hoard

import "time"

// ExpiryPolicy computes entry lifetimes. ForCreation runs when an entry
// is created, ForAccess on every read of an existing entry, and
// ForUpdate when an existing entry's value is replaced. A zero duration
// means the entry never expires. ForAccess and ForUpdate report ok
// false to leave the current deadline unchanged.
//
// Policies must be side-effect free and safe for concurrent use.
type ExpiryPolicy interface {
	ForCreation() time.Duration
	ForAccess() (ttl time.Duration, ok bool)
	ForUpdate() (ttl time.Duration, ok bool)
}

// Compile-time interface assertions.
var (
	_ ExpiryPolicy = noExpiry{}
	_ ExpiryPolicy = writeExpiry{}
	_ ExpiryPolicy = accessExpiry{}
)

// NoExpiry returns the default policy: entries never expire.
func NoExpiry() ExpiryPolicy {
	return noExpiry{}
}

type noExpiry struct{}

func (noExpiry) ForCreation() time.Duration       { return 0 }
func (noExpiry) ForAccess() (time.Duration, bool) { return 0, false }
func (noExpiry) ForUpdate() (time.Duration, bool) { return 0, false }

// ExpireAfterWrite expires entries a fixed duration after they were
// created or last updated. Reads do not extend the deadline.
func ExpireAfterWrite(ttl time.Duration) ExpiryPolicy {
	return writeExpiry{ttl: ttl}
}

type writeExpiry struct {
	ttl time.Duration
}

func (p writeExpiry) ForCreation() time.Duration       { return p.ttl }
func (p writeExpiry) ForAccess() (time.Duration, bool) { return 0, false }
func (p writeExpiry) ForUpdate() (time.Duration, bool) { return p.ttl, true }

// ExpireAfterAccess expires entries a fixed duration after their last
// access. Every read or write of the entry pushes the deadline out
// (time-to-idle semantics).
func ExpireAfterAccess(ttl time.Duration) ExpiryPolicy {
	return accessExpiry{ttl: ttl}
}

type accessExpiry struct {
	ttl time.Duration
}

func (p accessExpiry) ForCreation() time.Duration       { return p.ttl }
func (p accessExpiry) ForAccess() (time.Duration, bool) { return p.ttl, true }
func (p accessExpiry) ForUpdate() (time.Duration, bool) { return p.ttl, true }
