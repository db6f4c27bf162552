package interceptor

import (
	"context"
	"fmt"

	"github.com/gaborage/go-restclient/restclient"
)

const authorizationHeader = "Authorization"

// TokenSource supplies a bearer token per call, letting callers plug in
// refreshing credentials. Implementations must be safe for concurrent use.
type TokenSource func(ctx context.Context) (string, error)

// Auth injects credentials into outbound requests. Credentials already set
// on the request (per-request options or an earlier stage) are left as-is.
type Auth struct {
	source TokenSource
	basic  *restclient.BasicAuth
}

// NewBearerAuth returns a stage injecting a fixed bearer token.
func NewBearerAuth(token string) *Auth {
	return NewBearerAuthSource(func(context.Context) (string, error) {
		return token, nil
	})
}

// NewBearerAuthSource returns a stage that asks source for a token on every
// call. A source failure aborts the call before it reaches the transport.
func NewBearerAuthSource(source TokenSource) *Auth {
	return &Auth{source: source}
}

// NewBasicAuth returns a stage injecting basic-auth credentials.
func NewBasicAuth(username, password string) *Auth {
	return &Auth{basic: &restclient.BasicAuth{Username: username, Password: password}}
}

// Name implements restclient.Stage.
func (a *Auth) Name() string { return "auth" }

// HandleRequest implements restclient.RequestHandler.
func (a *Auth) HandleRequest(ctx context.Context, ex *restclient.Exchange) error {
	req := ex.Request()

	if a.basic != nil {
		if req.Auth == nil {
			req.Auth = a.basic
		}
		return nil
	}

	dst := headers(req)
	if _, ok := dst[authorizationHeader]; ok {
		return nil
	}
	token, err := a.source(ctx)
	if err != nil {
		return fmt.Errorf("token source: %w", err)
	}
	dst[authorizationHeader] = "Bearer " + token
	return nil
}
