// Package metadata implements the lazy, token-addressable object model
// over CLI metadata: assemblies, modules, types, methods, generic
// parameters, and assembly references (§3).
package metadata

import (
	"github.com/pkg/errors"

	"github.com/opcode9/clrmeta/pkg/clrmeta/token"
)

// ErrNotSerialized is returned by LookupMember when called on a module
// that was not constructed from a loaded image — it has no backing
// tables stream to look the token up in (§6, §7) — and also for a token
// whose table LookupMember builds no member type for.
var ErrNotSerialized = errors.New("metadata: member lookup on a non-loaded module")

// MetadataMember is the capability every metadata member exposes: a
// stable token identity (§3). Concrete member types implement this via
// the embedded memberBase.
type MetadataMember interface {
	Token() token.Token
}

// memberBase carries the one field every member has regardless of how
// it was constructed: its metadata token. User-constructed members get
// token.Null.
type memberBase struct {
	tok token.Token
}

// Token returns the member's metadata token identity (§3).
func (m *memberBase) Token() token.Token { return m.tok }
