// Package memory provides in-memory reference implementations of the primitives.
//
//   - Registry implements storage.Registrar over a fixed set of clients
//   - AuthMap implements storage.Authorizer with single-use codes
//   - TokenMap implements storage.Issuer with refresh token rotation
//
// All types are safe for concurrent use. They are suitable for development,
// testing, and single-instance deployments where persistence is not required.
// Each can be hosted directly or behind the actor bridge in storage/actor.
//
// Example usage:
//
//	registry := memory.NewRegistry()
//	_ = registry.Register(storage.NewPublicClient("app", "https://app.example/cb", scope))
//
//	codes := memory.NewAuthMap(nil)
//	codes.StartCleanup(time.Minute)
//	defer codes.Stop()
//
//	tokens := memory.NewTokenMap(nil, &memory.TokenMapConfig{AccessTokenTTL: 900})
package memory
