package server

import (
	"encoding/json"
	"net/http"
	"net/url"

	oauth "github.com/giantswarm/oauth-engine"
	"github.com/giantswarm/oauth-engine/storage"
)

// Request is the frontend-agnostic view of an incoming request.
// The authorization flow reads Query; the token flows read Body.
type Request struct {
	Query         url.Values
	Body          url.Values
	Authorization string // raw Authorization header, if any
}

// Status is the response status. Values equal the HTTP status codes a
// frontend should send.
type Status int

// Response statuses
const (
	StatusOK                  Status = http.StatusOK
	StatusRedirect            Status = http.StatusFound
	StatusBadRequest          Status = http.StatusBadRequest
	StatusUnauthorized        Status = http.StatusUnauthorized
	StatusForbidden           Status = http.StatusForbidden
	StatusInternalServerError Status = http.StatusInternalServerError
)

// BodyKind distinguishes plain text from JSON bodies
type BodyKind int

// Body kinds
const (
	BodyText BodyKind = iota
	BodyJSON
)

// Body is a response body
type Body struct {
	Kind    BodyKind
	Content string
}

// ContentType returns the media type matching Kind
func (b *Body) ContentType() string {
	if b.Kind == BodyJSON {
		return "application/json"
	}
	return "text/plain; charset=utf-8"
}

// Response is the frontend-agnostic result of a flow execution
type Response struct {
	Status          Status
	Body            *Body
	Location        *url.URL // set for redirects
	WWWAuthenticate string   // set for 401 and 403 challenges

	// Grant is the grant a bearer token was recovered for. Only set by a
	// successful resource flow.
	Grant *storage.Grant
}

// ErrorCode returns the OAuth error carried by the response, either in the
// JSON body or in the redirect query. Empty on success.
func (r *Response) ErrorCode() string {
	if r == nil {
		return ""
	}
	if r.Location != nil {
		return r.Location.Query().Get("error")
	}
	if r.Body != nil && r.Body.Kind == BodyJSON {
		var e oauth.ErrorResponse
		if json.Unmarshal([]byte(r.Body.Content), &e) == nil {
			return e.Error
		}
	}
	return ""
}

func jsonResponse(status Status, v any) *Response {
	data, err := json.Marshal(v)
	if err != nil {
		// Only wire types are marshalled; this cannot realistically fail.
		return &Response{
			Status: StatusInternalServerError,
			Body:   &Body{Kind: BodyJSON, Content: `{"error":"server_error"}`},
		}
	}
	return &Response{
		Status: status,
		Body:   &Body{Kind: BodyJSON, Content: string(data)},
	}
}

// errorResponse renders oe as a JSON error body carrying only the error
// code. Descriptions stay in the logs.
func errorResponse(oe *oauth.OAuthError) *Response {
	return jsonResponse(Status(oe.Status), oauth.ErrorResponse{Error: oe.Code})
}

// redirectResponse redirects to base with params merged into its query
func redirectResponse(base string, params url.Values) *Response {
	u, err := url.Parse(base)
	if err != nil {
		// base was bound by the Registrar; an unparsable value is not redirectable.
		return errorResponse(oauth.ErrInvalidRequest("redirect_uri is not a valid URL"))
	}
	q := u.Query()
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return &Response{Status: StatusRedirect, Location: u}
}

// errorRedirect delivers an authorization-phase protocol error to the client
func errorRedirect(base string, oe *oauth.OAuthError, state string) *Response {
	params := url.Values{"error": {oe.Code}}
	if state != "" {
		params.Set("state", state)
	}
	return redirectResponse(base, params)
}
