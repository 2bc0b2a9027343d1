// Package oauth is the root of an OAuth 2.0 authorization-code engine.
//
// The engine is transport agnostic. A host wires three primitives and a
// consent callback into a server.Endpoint and drives requests through the
// flow orchestrators of the server package:
//
//   - storage.Registrar: client lookup, redirect and scope binding
//   - storage.Authorizer: single-use authorization codes
//   - storage.Issuer: access and refresh tokens
//
// Reference in-memory primitives live in storage/memory. Any primitive can be
// hosted behind a single-consumer mailbox with storage/actor.
//
// This package holds the protocol error taxonomy and the JSON wire types
// shared by all flows.
//
// Example usage:
//
//	registry := memory.NewRegistry()
//	registry.Register(storage.NewPublicClient("app", "https://app.example.com/cb", scope))
//
//	authorizer := actor.NewAuthorizer(memory.NewAuthMap(storage.RandomGenerator{}))
//	defer authorizer.Stop()
//
//	addons, err := server.NewAddonList(server.RequiredPKCE())
//	if err != nil {
//	    return err
//	}
//
//	ep := &server.Endpoint{
//	    Registrar:  registry,
//	    Authorizer: authorizer,
//	    Issuer:     memory.NewTokenMap(storage.RandomGenerator{}, nil),
//	    Solicitor:  consent,
//	    Addons:     addons,
//	}
//	flow, err := server.PrepareAuthorization(ep)
package oauth
