// Package testutil provides deterministic generators, a mock clock, PKCE helpers
// and fixtures for the oauth-engine tests.
package testutil
