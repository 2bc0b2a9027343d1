package oauth

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestOAuthError_Error(t *testing.T) {
	tests := []struct {
		name        string
		code        string
		description string
		want        string
	}{
		{
			name:        "simple error",
			code:        "invalid_request",
			description: "Missing required parameter",
			want:        "invalid_request: Missing required parameter",
		},
		{
			name:        "error with empty description",
			code:        "server_error",
			description: "",
			want:        "server_error: ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &OAuthError{
				Code:        tt.code,
				Description: tt.description,
			}
			if got := e.Error(); got != tt.want {
				t.Errorf("OAuthError.Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewOAuthError(t *testing.T) {
	tests := []struct {
		name        string
		code        string
		description string
		status      int
	}{
		{
			name:        "bad request",
			code:        ErrorCodeInvalidRequest,
			description: "Test error",
			status:      http.StatusBadRequest,
		},
		{
			name:        "unauthorized",
			code:        ErrorCodeInvalidClient,
			description: "Client authentication failed",
			status:      http.StatusUnauthorized,
		},
		{
			name:        "internal server error",
			code:        ErrorCodeServerError,
			description: "Something went wrong",
			status:      http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewOAuthError(tt.code, tt.description, tt.status)
			if err.Code != tt.code {
				t.Errorf("Code = %q, want %q", err.Code, tt.code)
			}
			if err.Description != tt.description {
				t.Errorf("Description = %q, want %q", err.Description, tt.description)
			}
			if err.Status != tt.status {
				t.Errorf("Status = %d, want %d", err.Status, tt.status)
			}
		})
	}
}

func TestErrorConstants(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		expected string
	}{
		{"invalid_request", ErrorCodeInvalidRequest, "invalid_request"},
		{"invalid_grant", ErrorCodeInvalidGrant, "invalid_grant"},
		{"invalid_client", ErrorCodeInvalidClient, "invalid_client"},
		{"invalid_scope", ErrorCodeInvalidScope, "invalid_scope"},
		{"invalid_token", ErrorCodeInvalidToken, "invalid_token"},
		{"insufficient_scope", ErrorCodeInsufficientScope, "insufficient_scope"},
		{"unauthorized_client", ErrorCodeUnauthorizedClient, "unauthorized_client"},
		{"unsupported_grant_type", ErrorCodeUnsupportedGrantType, "unsupported_grant_type"},
		{"unsupported_response_type", ErrorCodeUnsupportedResponseType, "unsupported_response_type"},
		{"server_error", ErrorCodeServerError, "server_error"},
		{"access_denied", ErrorCodeAccessDenied, "access_denied"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.code != tt.expected {
				t.Errorf("constant %s = %q, want %q", tt.name, tt.code, tt.expected)
			}
		})
	}
}

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		name           string
		constructor    func(string) *OAuthError
		expectedCode   string
		expectedStatus int
	}{
		{"ErrInvalidRequest", ErrInvalidRequest, ErrorCodeInvalidRequest, http.StatusBadRequest},
		{"ErrInvalidGrant", ErrInvalidGrant, ErrorCodeInvalidGrant, http.StatusBadRequest},
		{"ErrInvalidClient", ErrInvalidClient, ErrorCodeInvalidClient, http.StatusUnauthorized},
		{"ErrInvalidScope", ErrInvalidScope, ErrorCodeInvalidScope, http.StatusBadRequest},
		{"ErrInvalidToken", ErrInvalidToken, ErrorCodeInvalidToken, http.StatusUnauthorized},
		{"ErrInsufficientScope", ErrInsufficientScope, ErrorCodeInsufficientScope, http.StatusForbidden},
		{"ErrUnauthorizedClient", ErrUnauthorizedClient, ErrorCodeUnauthorizedClient, http.StatusBadRequest},
		{"ErrUnsupportedGrantType", ErrUnsupportedGrantType, ErrorCodeUnsupportedGrantType, http.StatusBadRequest},
		{"ErrUnsupportedResponseType", ErrUnsupportedResponseType, ErrorCodeUnsupportedResponseType, http.StatusBadRequest},
		{"ErrAccessDenied", ErrAccessDenied, ErrorCodeAccessDenied, http.StatusForbidden},
		{"ErrServerError", ErrServerError, ErrorCodeServerError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			desc := "test description"
			err := tt.constructor(desc)
			if err.Code != tt.expectedCode {
				t.Errorf("Code = %q, want %q", err.Code, tt.expectedCode)
			}
			if err.Description != desc {
				t.Errorf("Description = %q, want %q", err.Description, desc)
			}
			if err.Status != tt.expectedStatus {
				t.Errorf("Status = %d, want %d", err.Status, tt.expectedStatus)
			}
		})
	}
}

func TestAsOAuthError(t *testing.T) {
	if AsOAuthError(nil) != nil {
		t.Error("AsOAuthError(nil) should be nil")
	}

	grant := ErrInvalidGrant("code already used")
	wrapped := fmt.Errorf("exchange: %w", grant)
	if got := AsOAuthError(wrapped); got != grant {
		t.Errorf("AsOAuthError(wrapped) = %v, want the wrapped error", got)
	}

	got := AsOAuthError(errors.New("disk on fire"))
	if got.Code != ErrorCodeServerError || got.Status != http.StatusInternalServerError {
		t.Errorf("AsOAuthError(plain) = %+v, want server_error/500", got)
	}
	if got.Description == "disk on fire" {
		t.Error("internal error text leaked into the protocol description")
	}
}
