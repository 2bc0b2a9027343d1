package server

import (
	"context"

	"github.com/giantswarm/oauth-engine/storage"
)

// Decision is the resource owner's answer to an authorization request
type Decision struct {
	allowed bool
	ownerID string
}

// Allow approves the request on behalf of ownerID
func Allow(ownerID string) Decision {
	return Decision{allowed: true, ownerID: ownerID}
}

// Deny rejects the request
func Deny() Decision {
	return Decision{}
}

// Allowed reports whether the request was approved
func (d Decision) Allowed() bool { return d.allowed }

// OwnerID returns the approving resource owner
func (d Decision) OwnerID() string { return d.ownerID }

// Solicitor obtains the resource owner's consent.
// candidate is the grant that would be issued, without its owner; it is a
// copy that the solicitor may inspect but not change.
type Solicitor interface {
	Solicit(ctx context.Context, req *Request, candidate storage.Grant) Decision
}

// SolicitorFunc adapts a function to the Solicitor interface
type SolicitorFunc func(ctx context.Context, req *Request, candidate storage.Grant) Decision

// Solicit calls f(ctx, req, candidate)
func (f SolicitorFunc) Solicit(ctx context.Context, req *Request, candidate storage.Grant) Decision {
	return f(ctx, req, candidate)
}

// AutoApprove returns a Solicitor that approves every request for ownerID.
// Intended for tests and machine-to-machine setups.
func AutoApprove(ownerID string) Solicitor {
	return SolicitorFunc(func(context.Context, *Request, storage.Grant) Decision {
		return Allow(ownerID)
	})
}
