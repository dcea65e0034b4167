// Package access declares the caller privilege required by each remote
// operation and checks a context-carried credential against that
// declaration. It is decoupled from the transport so that enforcement is
// opt-in: callers that do not embed a Credential in their context keep
// the permissive default and rely on an external enforcement point
// instead.
package access

import (
	"context"
	"fmt"
)

// Level is the privilege a caller must hold to invoke an operation.
type Level int

const (
	// Unrestricted operations carry no side effect and may be invoked by
	// anyone, including infrastructure-level health checks.
	Unrestricted Level = iota

	// Owner operations touch the owning user's job sandbox and are limited
	// to the credential that deployed the server.
	Owner

	// OwnerOrUser operations are open to the owner and to users the owner
	// designated.
	OwnerOrUser
)

// String returns the declaration-file spelling of the level.
func (l Level) String() string {
	switch l {
	case Unrestricted:
		return "unrestricted"
	case Owner:
		return "owner"
	case OwnerOrUser:
		return "owner-or-user"
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// Table maps operation name to the privilege required to invoke it. Each
// component keeps its table next to the operation declarations so the
// whole policy is auditable in one place.
type Table map[string]Level

// Credential identifies a caller.
type Credential struct {
	// User is the caller identity, e.g. "jsmith".
	User string

	// DesignatedBy lists owners that granted this user access to their
	// owner-or-user operations.
	DesignatedBy []string
}

// designated returns true if owner granted access to this credential.
func (c *Credential) designated(owner string) bool {
	for _, candidate := range c.DesignatedBy {
		if candidate == owner {
			return true
		}
	}
	return false
}

// DeniedError reports a credential failing an operation's declared level.
type DeniedError struct {
	Op    string
	Level Level
	User  string
}

// Error implements error.
func (e *DeniedError) Error() string {
	return fmt.Sprintf("access denied: operation %q requires %s, caller %q", e.Op, e.Level, e.User)
}

// Authorizer checks a context credential against a declaration table on
// behalf of one resource owner.
type Authorizer struct {
	owner string
	table Table
}

// NewAuthorizer returns an authorizer for the given owner and table.
func NewAuthorizer(owner string, table Table) *Authorizer {
	return &Authorizer{owner: owner, table: table}
}

// Authorize returns nil when the context credential may invoke op. A nil
// receiver or an absent credential is permissive; enforcement is opt-in.
// Operations missing from the table default to Owner, the conservative
// choice for anything that can touch the job sandbox.
func (a *Authorizer) Authorize(ctx context.Context, op string) error {
	if a == nil {
		return nil
	}
	cred := FromContext(ctx)
	if cred == nil {
		return nil
	}
	level, ok := a.table[op]
	if !ok {
		level = Owner
	}
	switch level {
	case Unrestricted:
		return nil
	case Owner:
		if cred.User == a.owner {
			return nil
		}
	case OwnerOrUser:
		if cred.User == a.owner || cred.designated(a.owner) {
			return nil
		}
	}
	return &DeniedError{Op: op, Level: level, User: cred.User}
}

type ctxKeyT struct{}

var ctxKey ctxKeyT

// WithCredential embeds cred in ctx.
func WithCredential(ctx context.Context, cred *Credential) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxKey, cred)
}

// FromContext extracts the caller credential, or nil.
func FromContext(ctx context.Context) *Credential {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxKey).(*Credential); ok {
		return v
	}
	return nil
}
