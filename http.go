package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// Cookie defaults
const (
	DefaultSessionCookie  = "lms_session"
	DefaultRedirectCookie = "lms_redirect"
)

// CookieConfig controls the session and redirect cookies
type CookieConfig struct {
	SessionName  string
	RedirectName string
	Domain       string
	Secure       bool
	SameSite     string
}

func (c CookieConfig) withDefaults() CookieConfig {
	if c.SessionName == "" {
		c.SessionName = DefaultSessionCookie
	}
	if c.RedirectName == "" {
		c.RedirectName = DefaultRedirectCookie
	}
	if c.SameSite == "" {
		c.SameSite = "Lax"
	}
	return c
}

// RouteAuthenticator binds sessions to router requests
type RouteAuthenticator struct {
	sessions     *SessionManager
	cookie       CookieConfig
	Logger       Logger
	ErrorHandler func(c router.Context, err error) error
}

// NewRouteAuthenticator creates the HTTP side of the session manager
func NewRouteAuthenticator(sessions *SessionManager, cookie CookieConfig) *RouteAuthenticator {
	a := &RouteAuthenticator{
		sessions: sessions,
		cookie:   cookie.withDefaults(),
		Logger:   defLogger{},
	}
	a.ErrorHandler = a.defaultErrHandler
	return a
}

// SessionMiddleware resolves the session cookie into the request
// principal. Requests without a valid session continue anonymously.
func (a *RouteAuthenticator) SessionMiddleware() router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			token := c.Cookies(a.cookie.SessionName)
			if token == "" {
				return next(c)
			}

			session, user, err := a.sessions.Resolve(c.Context(), token)
			if err != nil {
				if HasTextCode(err, TextCodeSessionNotFound) {
					a.cookieDel(c, a.cookie.SessionName)
					return next(c)
				}
				return a.ErrorHandler(c, err)
			}

			setPrincipal(c, session, user)
			return next(c)
		}
	}
}

// SignIn issues a new session for user, replacing the request session
func (a *RouteAuthenticator) SignIn(c router.Context, user *User, remember bool) (*IssuedSession, error) {
	issued, err := a.sessions.Issue(c.Context(), user, remember, c.Cookies(a.cookie.SessionName))
	if err != nil {
		a.Logger.Error("failed to issue session", "user_id", user.ID.String(), "error", err)
		return nil, err
	}

	a.setSessionCookie(c, issued)
	setPrincipal(c, issued.Session, user)
	return issued, nil
}

// SignOut revokes the request session and clears the cookie
func (a *RouteAuthenticator) SignOut(c router.Context) {
	if token := c.Cookies(a.cookie.SessionName); token != "" {
		if err := a.sessions.Revoke(c.Context(), token); err != nil {
			a.Logger.Debug("sign out with an invalid session", "error", err)
		}
	}
	a.cookieDel(c, a.cookie.SessionName)
	c.Locals(UserLocalsKey, nil)
	c.Locals(SessionLocalsKey, nil)
}

// GetRedirectOrDefault returns the path stored by a guard, or def
func (a *RouteAuthenticator) GetRedirectOrDefault(c router.Context, def string) string {
	r := c.Cookies(a.cookie.RedirectName)
	if r == "" {
		return def
	}
	a.cookieDel(c, a.cookie.RedirectName)

	if !isLocalPath(r) {
		return def
	}
	return r
}

// SetRedirect remembers the rejected path so login can return to it
func (a *RouteAuthenticator) SetRedirect(c router.Context) {
	a.Logger.Debug("setting redirect cookie", "key", a.cookie.RedirectName, "path", c.OriginalURL())

	c.Cookie(&router.Cookie{
		Name:     a.cookie.RedirectName,
		Value:    c.OriginalURL(),
		Path:     "/",
		Domain:   a.cookie.Domain,
		Expires:  time.Now().Add(time.Minute * 5),
		HTTPOnly: true,
		Secure:   a.cookie.Secure,
		SameSite: a.cookie.SameSite,
	})
}

// Sessions returns the underlying session manager
func (a *RouteAuthenticator) Sessions() *SessionManager {
	return a.sessions
}

func (a *RouteAuthenticator) setSessionCookie(c router.Context, issued *IssuedSession) {
	cookie := &router.Cookie{
		Name:     a.cookie.SessionName,
		Value:    issued.Token,
		Path:     "/",
		Domain:   a.cookie.Domain,
		HTTPOnly: true,
		Secure:   a.cookie.Secure,
		SameSite: a.cookie.SameSite,
	}

	// no expiry ends the cookie with the browser
	if issued.Persistent() {
		cookie.Expires = issued.Session.ExpiresAt
	}

	c.Cookie(cookie)
}

func (a *RouteAuthenticator) cookieDel(c router.Context, name string) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   a.cookie.Domain,
		Expires:  time.Now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   a.cookie.Secure,
		SameSite: a.cookie.SameSite,
	})
}

func (a *RouteAuthenticator) defaultErrHandler(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
			WithCode(errors.CodeInternal)
	}

	a.Logger.Error(
		"middleware error handler",
		"error", richErr.Message,
		"category", richErr.Category,
		"details", print.MaybePrettyJSON(richErr.Metadata),
	)

	return c.Status(http.StatusInternalServerError).Render("errors/500", router.ViewContext{
		"error": "Something went wrong, please try again later.",
	})
}

func isLocalPath(p string) bool {
	return strings.HasPrefix(p, "/") && !strings.HasPrefix(p, "//") && !strings.Contains(p, "\\")
}
