// Package uid assigns stable identifiers to extensions at discovery time,
// the same way the teacher's sid package hashed a canonical path plus
// positional data into a short stable identifier for AST nodes.
package uid

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// UniqueId is an opaque stable identifier for an extension. Equality and
// hashing (it's a comparable struct of two strings) are used throughout the
// dependency graphs.
type UniqueId struct {
	hash    string
	display string
}

// New derives a UniqueId from an extension's location and declared name.
// The hash keeps identifiers stable across discovery-order changes; the
// display name is carried for diagnostics.
func New(location, name string) UniqueId {
	input := location + "|" + name
	sum := sha256.Sum256([]byte(input))
	return UniqueId{
		hash:    hex.EncodeToString(sum[:])[:16],
		display: name,
	}
}

// String renders the id as "name#hash" for logs and error messages.
func (id UniqueId) String() string {
	if id.hash == "" {
		return id.display
	}
	return fmt.Sprintf("%s#%s", id.display, id.hash)
}

// Name returns the short display name used when the id was created.
func (id UniqueId) Name() string { return id.display }

// Key returns a value suitable for use as a map key with stable equality.
func (id UniqueId) Key() string { return id.hash + "|" + id.display }

// IsZero reports whether this is the zero value (no extension assigned).
func (id UniqueId) IsZero() bool { return id.hash == "" && id.display == "" }
