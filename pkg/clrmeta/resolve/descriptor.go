// Package resolve implements the pluggable, cached assembly resolver
// (§4.H): mapping an AssemblyDescriptor to a loaded AssemblyDefinition
// via directory probing, with a cache that guarantees a single resolved
// definition per descriptor even under concurrent resolution.
package resolve

import (
	"bytes"
	"strings"

	"github.com/opcode9/clrmeta/pkg/clrmeta/metadata"
)

// descriptorKey is the cache key derived from an AssemblyDescriptor
// under §4.H's equality rule: name case-sensitive, version exact,
// culture case-insensitive (nil ≡ ""), public-key-token byte-equal.
type descriptorKey struct {
	name    string
	version metadata.Version
	culture string
	token   string
}

// keyOf normalizes a descriptor into its cache key.
func keyOf(d metadata.AssemblyDescriptor) descriptorKey {
	return descriptorKey{
		name:    d.Name,
		version: d.Version,
		culture: strings.ToLower(d.Culture),
		token:   string(d.PublicKeyToken),
	}
}

// Equal reports whether two descriptors are equal under §4.H's rule,
// independent of caching.
func Equal(a, b metadata.AssemblyDescriptor) bool {
	return a.Name == b.Name &&
		a.Version == b.Version &&
		strings.EqualFold(a.Culture, b.Culture) &&
		bytes.Equal(a.PublicKeyToken, b.PublicKeyToken)
}
