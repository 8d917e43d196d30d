package splunk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
)

// AuthMode selects how authenticated requests carry the session.
type AuthMode string

const (
	// ModeAPIToken sends the session key in the Authorization header.
	ModeAPIToken AuthMode = "api_token"
	// ModeWebCookie relies on the client's cookie jar.
	ModeWebCookie AuthMode = "web_cookie"
)

// Session is an established login. Token is empty for web sessions.
type Session struct {
	Mode     AuthMode
	Token    string
	Strategy string
}

// Strategy is one way of obtaining a session.
type Strategy interface {
	Name() string
	Login(ctx context.Context, c *Client, cred Credential) (*Session, error)
}

// DefaultStrategies returns token login followed by web cookie login.
func DefaultStrategies() []Strategy {
	return []Strategy{TokenLogin{}, WebLogin{}}
}

// Authenticate tries each strategy in order and returns the first session
// obtained. Each attempt runs under the auth timeout. When all fail, the
// returned *AuthError lists every attempt.
func (c *Client) Authenticate(ctx context.Context, cred Credential) (*Session, error) {
	authErr := &AuthError{}

	for _, s := range c.strategies {
		log.Info().Str("strategy", s.Name()).Msg("Attempting authentication")

		sess, err := s.Login(ctx, c, cred)
		if err == nil {
			sess.Strategy = s.Name()
			log.Info().Str("strategy", s.Name()).Str("mode", string(sess.Mode)).Msg("Authentication successful")
			return sess, nil
		}

		log.Warn().Err(err).Str("strategy", s.Name()).Msg("Authentication attempt failed")
		authErr.Attempts = append(authErr.Attempts, AuthAttempt{Strategy: s.Name(), Err: err})

		if ctxErr := ctx.Err(); ctxErr != nil {
			break
		}
	}

	log.Error().Int("attempts", len(authErr.Attempts)).Msg("All authentication methods failed")
	return nil, authErr
}

// TokenLogin posts the credential to the REST login endpoint and expects a
// session key in the response.
type TokenLogin struct{}

func (TokenLogin) Name() string { return "token-login" }

func (TokenLogin) Login(ctx context.Context, c *Client, cred Credential) (*Session, error) {
	form := url.Values{}
	form.Set("username", cred.Username)
	form.Set("password", cred.Password)
	form.Set("output_mode", "json")

	status, body, err := c.do(ctx, c.cfg.AuthTimeout, http.MethodPost, c.serviceURL("/services/auth/login", nil), form, nil)
	if err != nil {
		return nil, err
	}

	if status != http.StatusOK {
		var resp LoginResponse
		if json.Unmarshal(body, &resp) == nil && len(resp.Messages) > 0 {
			return nil, fmt.Errorf("login returned status %d: %s", status, joinMessages(resp.Messages))
		}
		return nil, fmt.Errorf("login returned status %d", status)
	}

	var resp LoginResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode login response: %w", err)
	}
	if resp.SessionKey == "" {
		return nil, errors.New("login response carried no session key")
	}

	return &Session{Mode: ModeAPIToken, Token: resp.SessionKey}, nil
}

// WebLogin posts the credential to the web UI login form and accepts the
// session cookie it sets.
type WebLogin struct{}

func (WebLogin) Name() string { return "web-login" }

func (WebLogin) Login(ctx context.Context, c *Client, cred Credential) (*Session, error) {
	webBase := c.cfg.WebBaseURL()
	loginURL := webBase + "/en-US/account/login"

	form := url.Values{}
	form.Set("username", cred.Username)
	form.Set("password", cred.Password)
	form.Set("cval", "")

	status, _, err := c.do(ctx, c.cfg.AuthTimeout, http.MethodPost, loginURL, form, nil)
	if err != nil {
		return nil, err
	}

	u, err := url.Parse(webBase)
	if err != nil {
		return nil, fmt.Errorf("invalid web URL %q: %w", webBase, err)
	}
	for _, ck := range c.httpClient.Jar.Cookies(u) {
		if isSessionCookie(ck.Name) {
			log.Debug().Str("cookie", ck.Name).Msg("Web session cookie received")
			return &Session{Mode: ModeWebCookie}, nil
		}
	}

	return nil, fmt.Errorf("web login returned status %d without a session cookie", status)
}

func isSessionCookie(name string) bool {
	return name == "session_id" ||
		strings.HasPrefix(name, "session_id_") ||
		strings.HasPrefix(name, "splunkd_")
}
