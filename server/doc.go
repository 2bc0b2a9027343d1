// Package server implements the OAuth 2.0 authorization code flows on top of
// the primitives in package storage.
//
// A flow is prepared once from an Endpoint, which names the Registrar,
// Authorizer, Issuer and Solicitor it operates on, and then executed per
// request:
//
//	flow, err := server.PrepareAccessToken(&server.Endpoint{
//		Registrar:  registry,
//		Authorizer: codes,
//		Issuer:     tokens,
//		Addons:     addons,
//	})
//	resp, err := flow.Execute(ctx, &server.Request{Body: form, Authorization: header})
//
// Requests and responses are frontend agnostic. Protocol failures are
// returned as a Response carrying the OAuth error, never as a Go error.
//
// Addons hook into code issuance and token exchange. The PKCE addon
// (RFC 7636) binds a code_challenge to the code and verifies the
// code_verifier when the code is exchanged.
package server
