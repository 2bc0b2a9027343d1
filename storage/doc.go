// Package storage defines the primitives an OAuth endpoint is built from and
// the records they operate on.
//
// The storage package defines three primitive interfaces used throughout the
// engine:
//   - Registrar: client lookup, redirect URI binding and scope negotiation
//   - Authorizer: minting and single-use consumption of authorization codes
//   - Issuer: minting, refreshing and recovering access tokens
//
// It also provides the shared data model (Grant, Scope, Client, IssuedToken)
// and the token generators injected into Authorizer and Issuer
// implementations.
//
// Implementations are provided in subpackages:
//   - storage/memory: in-memory reference primitives for development and testing
//   - storage/actor: a mailbox bridge hosting any primitive in its own goroutine
package storage
