package security

// Event type constants for security audit logging.
const (
	// EventAuthorizationCodeIssued is logged when an authorization code is issued
	EventAuthorizationCodeIssued = "authorization_code_issued"

	// EventTokenIssued is logged when a code is exchanged for an access token
	EventTokenIssued = "token_issued"

	// EventTokenRefreshed is logged when a refresh token is redeemed
	EventTokenRefreshed = "token_refreshed"

	// EventAuthFailure is logged when client authentication fails
	EventAuthFailure = "auth_failure"

	// EventInvalidRedirect is logged when a redirect_uri does not match the registration
	EventInvalidRedirect = "invalid_redirect"

	// EventPKCEValidationFailed is logged when PKCE code_verifier validation fails
	EventPKCEValidationFailed = "pkce_validation_failed"

	// EventInvalidGrant is logged when a code is unknown, expired, reused or bound elsewhere
	EventInvalidGrant = "invalid_grant"

	// EventAccessDenied is logged when the resource owner denies the request
	EventAccessDenied = "access_denied"
)
