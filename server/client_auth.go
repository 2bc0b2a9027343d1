package server

import (
	"encoding/base64"
	"net/url"
	"strings"

	oauth "github.com/giantswarm/oauth-engine"
)

// clientCredentials are the credentials a token request presented
type clientCredentials struct {
	clientID string
	secret   []byte
	viaBasic bool
}

// parseBasicAuth decodes an "Authorization: Basic" header per RFC 6749
// Section 2.3.1, where id and secret are form-urlencoded before encoding.
func parseBasicAuth(header string) (id, secret string, ok bool) {
	const prefix = "Basic "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", "", false
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(header[len(prefix):]))
	if err != nil {
		return "", "", false
	}
	rawID, rawSecret, found := strings.Cut(string(decoded), ":")
	if !found {
		return "", "", false
	}
	id, err = url.QueryUnescape(rawID)
	if err != nil {
		return "", "", false
	}
	secret, err = url.QueryUnescape(rawSecret)
	if err != nil {
		return "", "", false
	}
	return id, secret, id != ""
}

// BasicAuthorization builds an Authorization header value for id and secret
func BasicAuthorization(id, secret string) string {
	raw := url.QueryEscape(id) + ":" + url.QueryEscape(secret)
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(raw))
}

// extractClientCredentials collects client credentials from the Basic header
// and, when allowed, from the body. A public client identifies itself with
// a bare client_id body parameter.
func extractClientCredentials(req *Request, allowBody bool) (clientCredentials, *oauth.OAuthError) {
	bodyID := req.Body.Get("client_id")
	bodySecret := req.Body.Get("client_secret")

	if req.Authorization != "" {
		id, secret, ok := parseBasicAuth(req.Authorization)
		if !ok {
			return clientCredentials{}, oauth.ErrInvalidClient("malformed Authorization header")
		}
		if bodySecret != "" {
			return clientCredentials{}, oauth.ErrInvalidRequest("multiple client authentication methods")
		}
		if bodyID != "" && bodyID != id {
			return clientCredentials{}, oauth.ErrInvalidRequest("client_id does not match Authorization header")
		}
		return clientCredentials{clientID: id, secret: []byte(secret), viaBasic: true}, nil
	}

	if bodyID == "" {
		return clientCredentials{}, oauth.ErrInvalidRequest("client_id is required")
	}
	if bodySecret != "" {
		if !allowBody {
			return clientCredentials{}, oauth.ErrInvalidClient("client_secret in request body is not accepted")
		}
		return clientCredentials{clientID: bodyID, secret: []byte(bodySecret)}, nil
	}
	return clientCredentials{clientID: bodyID}, nil
}
