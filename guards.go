package auth

import (
	"net/http"

	"github.com/goliatone/go-router"
)

// Default guard redirects
const (
	DefaultAdminRedirect       = "/"
	DefaultLecturerRedirect    = "/"
	DefaultParticipantRedirect = "/accounts/student/login/"
)

// Predicate is a test on the request principal
type Predicate func(user *User) bool

// IsActive passes for active accounts
func IsActive(user *User) bool { return user != nil && user.IsActive }

// IsSuperuser passes for administrators
func IsSuperuser(user *User) bool { return user.IsSuperuser() }

// IsLecturerOrAdmin passes for lecturers and administrators
func IsLecturerOrAdmin(user *User) bool { return user.IsLecturer() || user.IsSuperuser() }

// IsParticipantOrAdmin passes for participants and administrators
func IsParticipantOrAdmin(user *User) bool { return user.IsStudent() || user.IsSuperuser() }

// HasRole passes when the principal holds any of roles
func HasRole(roles ...Role) Predicate {
	return func(user *User) bool {
		return user != nil && ExpectedRole(roles).Allows(user.Role)
	}
}

// Allowed reports whether user passes every predicate
func Allowed(user *User, predicates ...Predicate) bool {
	if user == nil {
		return false
	}
	for _, p := range predicates {
		if p != nil && !p(user) {
			return false
		}
	}
	return true
}

// Require builds a guard passing only when the principal satisfies all
// predicates. Anything else is redirected to redirectTo.
func (a *RouteAuthenticator) Require(redirectTo string, predicates ...Predicate) router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			user, _ := CurrentUser(c)
			if Allowed(user, predicates...) {
				return next(c)
			}

			a.Logger.Info(
				"access denied, redirecting",
				"path", c.OriginalURL(),
				"redirect", redirectTo,
				"authenticated", user != nil,
			)

			a.SetRedirect(c)
			return c.Redirect(redirectTo, guardRedirectStatus(c))
		}
	}
}

// RequiresAdmin only lets active administrators through
func (a *RouteAuthenticator) RequiresAdmin(redirectTo ...string) router.MiddlewareFunc {
	return a.Require(redirectOr(redirectTo, DefaultAdminRedirect), IsActive, IsSuperuser)
}

// RequiresLecturer lets active lecturers and administrators through
func (a *RouteAuthenticator) RequiresLecturer(redirectTo ...string) router.MiddlewareFunc {
	return a.Require(redirectOr(redirectTo, DefaultLecturerRedirect), IsActive, IsLecturerOrAdmin)
}

// RequiresParticipant lets active participants and administrators through
func (a *RouteAuthenticator) RequiresParticipant(redirectTo ...string) router.MiddlewareFunc {
	return a.Require(redirectOr(redirectTo, DefaultParticipantRedirect), IsActive, IsParticipantOrAdmin)
}

// RequiresLogin lets any active principal through
func (a *RouteAuthenticator) RequiresLogin(redirectTo ...string) router.MiddlewareFunc {
	return a.Require(redirectOr(redirectTo, DefaultParticipantRedirect), IsActive)
}

func redirectOr(redirectTo []string, def string) string {
	if len(redirectTo) > 0 && redirectTo[0] != "" {
		return redirectTo[0]
	}
	return def
}

func guardRedirectStatus(c router.Context) int {
	if c.Method() == string(router.GET) || c.Method() == http.MethodHead {
		return http.StatusFound
	}
	return http.StatusSeeOther
}
