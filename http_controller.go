package auth

import (
	"net/http"
	"net/url"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// CSRFLocalsKey is where the csrf middleware leaves the request token
const CSRFLocalsKey = "csrf"

// Login notices shown for each rejected sign in
const (
	NoticeInvalidCredentials  = "Please enter a correct email or phone number and password. Note that the password is case-sensitive."
	NoticeIdentifierNotFound  = "No account was found with that email or phone number."
	NoticeAccountInactive     = "This account is inactive."
	NoticeAmbiguousIdentifier = "This phone number is linked to more than one account. Please sign in with your email address."
	NoticeTooManyAttempts     = "Too many failed sign in attempts. Please try again later."
	NoticePasswordReset       = "You need to reset your password before you can sign in."
	NoticeProfileMissing      = "Your student profile could not be found. Please contact support."
	NoticeLoginBlocked        = "This account can not sign in at the moment."
	NoticeGenericFailure      = "Something went wrong, please try again later."
)

// RegisterAuthRoutes mounts every account route on app
func RegisterAuthRoutes[T any](app router.Router[T], opts ...AuthControllerOption) *AuthController {
	controller := NewAuthController(opts...)

	app.Get(controller.Routes.Register, controller.RegistrationShow).SetName("register.get")
	app.Post(controller.Routes.Register, controller.RegistrationCreate).SetName("register.post")

	app.Get(controller.Routes.StudentLogin, controller.StudentLoginShow).SetName("student-login.get")
	app.Post(controller.Routes.StudentLogin, controller.StudentLoginPost).SetName("student-login.post")

	app.Get(controller.Routes.LecturerLogin, controller.LecturerLoginShow).SetName("lecturer-login.get")
	app.Post(controller.Routes.LecturerLogin, controller.LecturerLoginPost).SetName("lecturer-login.post")

	app.Get(controller.Routes.AdminLogin, controller.AdminLoginShow).SetName("admin-login.get")
	app.Post(controller.Routes.AdminLogin, controller.AdminLoginPost).SetName("admin-login.post")

	app.Get(controller.Routes.Logout, controller.LogoutShow).SetName("logout.get")
	app.Post(controller.Routes.Logout, controller.LogoutPost).SetName("logout.post")

	app.Get(controller.Routes.PasswordReset, controller.PasswordResetShow).SetName("pwd-reset.get")
	app.Post(controller.Routes.PasswordReset, controller.PasswordResetPost).SetName("pwd-reset.post")
	app.Get(controller.Routes.PasswordResetDone, controller.PasswordResetDone).SetName("pwd-reset-done.get")

	app.Get(controller.Routes.PasswordResetConfirm, controller.PasswordResetConfirmShow).SetName("pwd-reset-confirm.get")
	app.Post(controller.Routes.PasswordResetConfirm, controller.PasswordResetConfirmPost).SetName("pwd-reset-confirm.post")
	app.Get(controller.Routes.PasswordResetComplete, controller.PasswordResetComplete).SetName("pwd-reset-complete.get")

	guard := controller.Auther.RequiresLogin(controller.Routes.StudentLogin)
	app.Get(controller.Routes.ChangePassword, controller.ChangePasswordShow, guard).SetName("change-password.get")
	app.Post(controller.Routes.ChangePassword, controller.ChangePasswordPost, guard).SetName("change-password.post")

	return controller
}

type AuthControllerRoutes struct {
	Register              string
	StudentLogin          string
	LecturerLogin         string
	AdminLogin            string
	Logout                string
	PasswordReset         string
	PasswordResetDone     string
	PasswordResetConfirm  string
	PasswordResetComplete string
	ChangePassword        string
}

// AuthControllerRedirects are the landing pages after each flow
type AuthControllerRedirects struct {
	AfterRegister       string
	StudentHome         string
	LecturerHome        string
	AdminHome           string
	AfterLogout         string
	AfterPasswordChange string
}

type AuthControllerViews struct {
	Login                 string
	Logout                string
	Register              string
	PasswordReset         string
	PasswordResetDone     string
	PasswordResetConfirm  string
	PasswordResetComplete string
	ChangePassword        string
}

type AuthController struct {
	Debug            bool
	CollapseNotFound bool
	SiteURL          string
	Logger           Logger
	Repo             RepositoryManager
	Routes           *AuthControllerRoutes
	Redirects        *AuthControllerRedirects
	Views            *AuthControllerViews
	Auther           *RouteAuthenticator
	Authenticator    *Authenticator
	Registration     *RegisterParticipantHandler
	ResetInitialize  *InitializePasswordResetHandler
	ResetFinalize    *FinalizePasswordResetHandler
	PasswordChange   *ChangePasswordHandler
	ErrorHandler     func(router.Context, error) error
}

type AuthControllerOption func(*AuthController) *AuthController

func WithControllerLogger(logger Logger) AuthControllerOption {
	return func(ac *AuthController) *AuthController {
		ac.Logger = normalizeLogger(logger)
		return ac
	}
}

func WithControllerDebug(debug bool) AuthControllerOption {
	return func(ac *AuthController) *AuthController {
		ac.Debug = debug
		return ac
	}
}

// WithCollapseNotFound shows unknown identifiers with the generic
// invalid credentials notice
func WithCollapseNotFound(collapse bool) AuthControllerOption {
	return func(ac *AuthController) *AuthController {
		ac.CollapseNotFound = collapse
		return ac
	}
}

// WithSiteURL sets the public origin used in emailed links
func WithSiteURL(siteURL string) AuthControllerOption {
	return func(ac *AuthController) *AuthController {
		ac.SiteURL = strings.TrimRight(strings.TrimSpace(siteURL), "/")
		return ac
	}
}

func WithRepository(repo RepositoryManager) AuthControllerOption {
	return func(ac *AuthController) *AuthController {
		ac.Repo = repo
		return ac
	}
}

func WithRouteAuthenticator(auther *RouteAuthenticator) AuthControllerOption {
	return func(ac *AuthController) *AuthController {
		ac.Auther = auther
		if ac.ErrorHandler == nil && auther != nil {
			ac.ErrorHandler = auther.ErrorHandler
		}
		return ac
	}
}

func WithAuthenticator(authenticator *Authenticator) AuthControllerOption {
	return func(ac *AuthController) *AuthController {
		ac.Authenticator = authenticator
		return ac
	}
}

func WithRegistrationHandler(h *RegisterParticipantHandler) AuthControllerOption {
	return func(ac *AuthController) *AuthController {
		ac.Registration = h
		return ac
	}
}

func WithPasswordResetHandlers(initialize *InitializePasswordResetHandler, finalize *FinalizePasswordResetHandler) AuthControllerOption {
	return func(ac *AuthController) *AuthController {
		ac.ResetInitialize = initialize
		ac.ResetFinalize = finalize
		return ac
	}
}

func WithChangePasswordHandler(h *ChangePasswordHandler) AuthControllerOption {
	return func(ac *AuthController) *AuthController {
		ac.PasswordChange = h
		return ac
	}
}

func WithControllerErrorHandler(handler func(router.Context, error) error) AuthControllerOption {
	return func(ac *AuthController) *AuthController {
		ac.ErrorHandler = handler
		return ac
	}
}

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger: defLogger{},
		Routes: &AuthControllerRoutes{
			Register:              "/accounts/student/register/",
			StudentLogin:          "/accounts/student/login/",
			LecturerLogin:         "/accounts/lecturer/login/",
			AdminLogin:            "/admin/login/",
			Logout:                "/accounts/student/logout/",
			PasswordReset:         "/accounts/password_reset/",
			PasswordResetDone:     "/accounts/password_reset/done/",
			PasswordResetConfirm:  "/reset/:uid/:token/",
			PasswordResetComplete: "/reset/done/",
			ChangePassword:        "/accounts/change_password/",
		},
		Redirects: &AuthControllerRedirects{
			AfterRegister:       "/accounts/student/login/?registered=1",
			StudentHome:         "/courses/",
			LecturerHome:        "/dashboard/",
			AdminHome:           "/accounts/admin_panel/",
			AfterLogout:         "/",
			AfterPasswordChange: "/accounts/profile/",
		},
		Views: &AuthControllerViews{
			Login:                 "login",
			Logout:                "logout",
			Register:              "register",
			PasswordReset:         "password_reset",
			PasswordResetDone:     "password_reset_done",
			PasswordResetConfirm:  "password_reset_confirm",
			PasswordResetComplete: "password_reset_complete",
			ChangePassword:        "change_password",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Repo == nil {
		panic("Missing RepositoryManager in auth controller...")
	}

	if c.Auther == nil {
		panic("Missing RouteAuthenticator in auth controller...")
	}

	if c.Authenticator == nil || c.Registration == nil || c.PasswordChange == nil {
		panic("Missing command handlers in auth controller...")
	}

	if c.ResetInitialize == nil || c.ResetFinalize == nil {
		panic("Missing password reset handlers in auth controller...")
	}

	if u, err := url.Parse(c.SiteURL); err != nil || u.Scheme == "" || u.Host == "" {
		panic("Missing site URL in auth controller...")
	}

	if c.ErrorHandler == nil {
		c.ErrorHandler = c.Auther.ErrorHandler
	}

	return c
}

// loginSurface is one of the role specific login pages
type loginSurface struct {
	title           string
	action          string
	expected        ExpectedRole
	home            string
	wrongRoleNotice string
}

func (a *AuthController) studentSurface() loginSurface {
	return loginSurface{
		title:           "Student login",
		action:          a.Routes.StudentLogin,
		expected:        ParticipantLogin,
		home:            a.Redirects.StudentHome,
		wrongRoleNotice: "This login page is for students only.",
	}
}

func (a *AuthController) lecturerSurface() loginSurface {
	return loginSurface{
		title:           "Lecturer login",
		action:          a.Routes.LecturerLogin,
		expected:        LecturerLogin,
		home:            a.Redirects.LecturerHome,
		wrongRoleNotice: "This login page is for lecturers only.",
	}
}

func (a *AuthController) adminSurface() loginSurface {
	return loginSurface{
		title:           "Administration login",
		action:          a.Routes.AdminLogin,
		expected:        AdministratorLogin,
		home:            a.Redirects.AdminHome,
		wrongRoleNotice: "This login page is for administrators only.",
	}
}

func (a *AuthController) StudentLoginShow(c router.Context) error {
	return a.loginShow(c, a.studentSurface())
}

func (a *AuthController) StudentLoginPost(c router.Context) error {
	return a.loginPost(c, a.studentSurface())
}

func (a *AuthController) LecturerLoginShow(c router.Context) error {
	return a.loginShow(c, a.lecturerSurface())
}

func (a *AuthController) LecturerLoginPost(c router.Context) error {
	return a.loginPost(c, a.lecturerSurface())
}

func (a *AuthController) AdminLoginShow(c router.Context) error {
	return a.loginShow(c, a.adminSurface())
}

func (a *AuthController) AdminLoginPost(c router.Context) error {
	return a.loginPost(c, a.adminSurface())
}

// LoginRequest payload
type LoginRequest struct {
	Username   string `form:"username" json:"username"`
	Password   string `form:"password" json:"password"`
	RememberMe string `form:"remember_me" json:"remember_me"`
}

// Remember reports whether the remember me box was ticked
func (r LoginRequest) Remember() bool {
	return isChecked(r.RememberMe)
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required, validation.Length(1, 254)),
		validation.Field(&r.Password, validation.Required),
	)
}

func (a *AuthController) loginShow(c router.Context, surface loginSurface) error {
	return c.Render(a.Views.Login, a.viewContext(c, router.ViewContext{
		"title":      surface.title,
		"action":     surface.action,
		"registered": c.Query("registered", "") != "",
		"form":       map[string]string{},
		"errors":     map[string]string{},
	}))
}

func (a *AuthController) loginPost(c router.Context, surface loginSurface) error {
	payload := new(LoginRequest)
	if err := c.Bind(payload); err != nil {
		a.Logger.Error("login parse payload", "error", err)
		return a.renderLogin(c, http.StatusBadRequest, surface, payload, map[string]string{
			"form": "Failed to parse form",
		}, "")
	}

	if err := payload.Validate(); err != nil {
		return a.renderLogin(c, http.StatusBadRequest, surface, payload, FormatValidationErrorToMap(err), "")
	}

	if a.Debug {
		a.Logger.Debug("login attempt", "surface", surface.action, "payload", print.MaybePrettyJSON(map[string]any{
			"username":    payload.Username,
			"remember_me": payload.Remember(),
		}))
	}

	user, err := a.Authenticator.Authenticate(c.Context(), payload.Username, payload.Password, surface.expected)
	if err != nil {
		switch TextCodeOf(err) {
		case TextCodeStorageUnavailable, TextCodeInternal:
			return a.ErrorHandler(c, err)
		case TextCodeValidation:
			return a.renderLogin(c, http.StatusBadRequest, surface, payload, ValidationFields(err), "")
		}
		return a.renderLogin(c, http.StatusUnauthorized, surface, payload, nil, a.loginNotice(err, surface))
	}

	if _, err := a.Auther.SignIn(c, user, payload.Remember()); err != nil {
		return a.ErrorHandler(c, err)
	}

	return c.Redirect(a.Auther.GetRedirectOrDefault(c, surface.home), http.StatusSeeOther)
}

func (a *AuthController) renderLogin(c router.Context, status int, surface loginSurface, payload *LoginRequest, errs map[string]string, notice string) error {
	form := map[string]string{"username": payload.Username}
	if payload.Remember() {
		form["remember_me"] = "on"
	}

	return c.Status(status).Render(a.Views.Login, a.viewContext(c, router.ViewContext{
		"title":  surface.title,
		"action": surface.action,
		"form":   form,
		"errors": errs,
		"notice": notice,
	}))
}

func (a *AuthController) loginNotice(err error, surface loginSurface) string {
	switch TextCodeOf(err) {
	case TextCodeIdentifierNotFound:
		if a.CollapseNotFound {
			return NoticeInvalidCredentials
		}
		return NoticeIdentifierNotFound
	case TextCodeWrongRole:
		return surface.wrongRoleNotice
	case TextCodeAccountInactive:
		return NoticeAccountInactive
	case TextCodeAmbiguousIdentifier:
		return NoticeAmbiguousIdentifier
	case TextCodeLoginBlocked:
		switch BlockedReason(err) {
		case BlockedReasonTooManyAttempts:
			return NoticeTooManyAttempts
		case BlockedReasonPasswordReset:
			return NoticePasswordReset
		case BlockedReasonProfileMissing:
			return NoticeProfileMissing
		}
		return NoticeLoginBlocked
	default:
		return NoticeInvalidCredentials
	}
}

func (a *AuthController) LogoutShow(c router.Context) error {
	return c.Render(a.Views.Logout, a.viewContext(c, router.ViewContext{}))
}

func (a *AuthController) LogoutPost(c router.Context) error {
	a.Auther.SignOut(c)
	return c.Redirect(a.Redirects.AfterLogout, http.StatusSeeOther)
}

// RegistrationPayload is the participant sign up form
type RegistrationPayload struct {
	FirstName     string `form:"first_name" json:"first_name"`
	LastName      string `form:"last_name" json:"last_name"`
	Email         string `form:"email" json:"email"`
	Phone         string `form:"phone" json:"phone"`
	City          string `form:"city" json:"city"`
	Level         string `form:"level" json:"level"`
	Program       string `form:"program" json:"program"`
	Password1     string `form:"password1" json:"password1"`
	Password2     string `form:"password2" json:"password2"`
	TermsAccepted string `form:"terms_accepted" json:"terms_accepted"`
}

func (r RegistrationPayload) form() map[string]string {
	form := map[string]string{
		"first_name": r.FirstName,
		"last_name":  r.LastName,
		"email":      r.Email,
		"phone":      r.Phone,
		"city":       r.City,
		"level":      r.Level,
		"program":    r.Program,
	}
	if isChecked(r.TermsAccepted) {
		form["terms_accepted"] = "on"
	}
	return form
}

func (a *AuthController) RegistrationShow(c router.Context) error {
	return a.renderRegistration(c, http.StatusOK, map[string]string{}, map[string]string{}, "")
}

func (a *AuthController) RegistrationCreate(c router.Context) error {
	payload := new(RegistrationPayload)

	if err := c.Bind(payload); err != nil {
		a.Logger.Error("register user parse payload", "error", err)
		return a.renderRegistration(c, http.StatusBadRequest, payload.form(), map[string]string{
			"form": "Failed to parse form",
		}, "")
	}

	req := RegisterParticipantMessage{
		FirstName:     payload.FirstName,
		LastName:      payload.LastName,
		Email:         payload.Email,
		Phone:         payload.Phone,
		City:          payload.City,
		Level:         Level(payload.Level),
		Program:       payload.Program,
		Password1:     payload.Password1,
		Password2:     payload.Password2,
		TermsAccepted: isChecked(payload.TermsAccepted),
	}

	if err := a.Registration.Execute(c.Context(), req); err != nil {
		switch TextCodeOf(err) {
		case TextCodeValidation, TextCodeEmailTaken:
			return a.renderRegistration(c, http.StatusBadRequest, payload.form(), ValidationFields(err), "")
		}
		a.Logger.Error("register user", "error", err)
		return a.renderRegistration(c, http.StatusInternalServerError, payload.form(), map[string]string{}, NoticeGenericFailure)
	}

	return c.Redirect(a.Redirects.AfterRegister, http.StatusSeeOther)
}

func (a *AuthController) renderRegistration(c router.Context, status int, form, errs map[string]string, notice string) error {
	programs, err := a.Repo.Programs().ListByTitle(c.Context())
	if err != nil {
		return a.ErrorHandler(c, errStorage(err, "failed to list programs"))
	}

	options := make([]map[string]any, 0, len(programs))
	for _, p := range programs {
		options = append(options, map[string]any{"id": p.ID.String(), "title": p.Title})
	}

	levels := make([]map[string]any, 0, len(Levels))
	for _, l := range []Level{LevelBeginner, LevelIntermediate, LevelAdvanced, LevelExpert} {
		levels = append(levels, map[string]any{"value": l, "label": Levels[l]})
	}

	return c.Status(status).Render(a.Views.Register, a.viewContext(c, router.ViewContext{
		"title":    "Student registration",
		"form":     form,
		"errors":   errs,
		"notice":   notice,
		"programs": options,
		"levels":   levels,
	}))
}

func (a *AuthController) PasswordResetShow(c router.Context) error {
	return c.Render(a.Views.PasswordReset, a.viewContext(c, router.ViewContext{
		"form":   map[string]string{},
		"errors": map[string]string{},
	}))
}

// PasswordResetRequestPayload holds values for password reset
type PasswordResetRequestPayload struct {
	Email string `form:"email" json:"email"`
}

func (a *AuthController) PasswordResetPost(c router.Context) error {
	payload := new(PasswordResetRequestPayload)
	if err := c.Bind(payload); err != nil {
		a.Logger.Error("password reset parse payload", "error", err)
		return a.ErrorHandler(c, err)
	}

	err := a.ResetInitialize.Execute(c.Context(), InitializePasswordResetMessage{
		Email:    payload.Email,
		ResetURL: a.resetURL(),
	})

	if err != nil {
		if HasTextCode(err, TextCodeValidation) {
			return c.Status(http.StatusBadRequest).Render(a.Views.PasswordReset, a.viewContext(c, router.ViewContext{
				"form":   map[string]string{"email": payload.Email},
				"errors": ValidationFields(err),
			}))
		}
		return a.ErrorHandler(c, err)
	}

	return c.Redirect(a.Routes.PasswordResetDone, http.StatusSeeOther)
}

// resetURL builds links on the configured site URL, request headers
// never choose the host
func (a *AuthController) resetURL() func(uid, token string) string {
	return func(uid, token string) string {
		path := strings.NewReplacer(":uid", uid, ":token", token).Replace(a.Routes.PasswordResetConfirm)
		return a.SiteURL + path
	}
}

func (a *AuthController) PasswordResetDone(c router.Context) error {
	return c.Render(a.Views.PasswordResetDone, a.viewContext(c, router.ViewContext{}))
}

func (a *AuthController) PasswordResetConfirmShow(c router.Context) error {
	_, err := a.ResetFinalize.CheckToken(c.Context(), c.Param("uid"), c.Param("token"))
	if err != nil && !isInvalidResetLink(err) {
		return a.ErrorHandler(c, err)
	}

	return c.Render(a.Views.PasswordResetConfirm, a.viewContext(c, router.ViewContext{
		"action":     c.Path(),
		"valid_link": err == nil,
		"errors":     map[string]string{},
	}))
}

// PasswordResetConfirmPayload holds the new password pair
type PasswordResetConfirmPayload struct {
	Password1 string `form:"new_password1" json:"new_password1"`
	Password2 string `form:"new_password2" json:"new_password2"`
}

func (a *AuthController) PasswordResetConfirmPost(c router.Context) error {
	payload := new(PasswordResetConfirmPayload)
	if err := c.Bind(payload); err != nil {
		a.Logger.Error("password reset confirm parse payload", "error", err)
		return a.ErrorHandler(c, err)
	}

	err := a.ResetFinalize.Execute(c.Context(), FinalizePasswordResetMessage{
		UID:       c.Param("uid"),
		Token:     c.Param("token"),
		Password1: payload.Password1,
		Password2: payload.Password2,
	})

	switch {
	case err == nil:
		return c.Redirect(a.Routes.PasswordResetComplete, http.StatusSeeOther)
	case isInvalidResetLink(err):
		return c.Status(http.StatusBadRequest).Render(a.Views.PasswordResetConfirm, a.viewContext(c, router.ViewContext{
			"valid_link": false,
		}))
	case HasTextCode(err, TextCodeValidation):
		return c.Status(http.StatusBadRequest).Render(a.Views.PasswordResetConfirm, a.viewContext(c, router.ViewContext{
			"action":     c.Path(),
			"valid_link": true,
			"errors":     ValidationFields(err),
		}))
	default:
		return a.ErrorHandler(c, err)
	}
}

func (a *AuthController) PasswordResetComplete(c router.Context) error {
	return c.Render(a.Views.PasswordResetComplete, a.viewContext(c, router.ViewContext{}))
}

func (a *AuthController) ChangePasswordShow(c router.Context) error {
	return c.Render(a.Views.ChangePassword, a.viewContext(c, router.ViewContext{
		"errors": map[string]string{},
	}))
}

// ChangePasswordPayload is the signed in password change form
type ChangePasswordPayload struct {
	OldPassword  string `form:"old_password" json:"old_password"`
	NewPassword1 string `form:"new_password1" json:"new_password1"`
	NewPassword2 string `form:"new_password2" json:"new_password2"`
}

func (a *AuthController) ChangePasswordPost(c router.Context) error {
	user, ok := CurrentUser(c)
	if !ok {
		return c.Redirect(a.Routes.StudentLogin, http.StatusSeeOther)
	}

	payload := new(ChangePasswordPayload)
	if err := c.Bind(payload); err != nil {
		a.Logger.Error("change password parse payload", "error", err)
		return a.ErrorHandler(c, err)
	}

	var updated *User
	err := a.PasswordChange.Execute(c.Context(), ChangePasswordMessage{
		UserID:       user.ID,
		OldPassword:  payload.OldPassword,
		NewPassword1: payload.NewPassword1,
		NewPassword2: payload.NewPassword2,
		OnResponse:   func(u *User) { updated = u },
	})

	if err != nil {
		if HasTextCode(err, TextCodeValidation) {
			return c.Status(http.StatusBadRequest).Render(a.Views.ChangePassword, a.viewContext(c, router.ViewContext{
				"errors": ValidationFields(err),
			}))
		}
		return a.ErrorHandler(c, err)
	}

	// every session was revoked, keep this one signed in
	remember := false
	if session, ok := CurrentSession(c); ok {
		remember = session.Remember
	}
	if _, err := a.Auther.SignIn(c, updated, remember); err != nil {
		return a.ErrorHandler(c, err)
	}

	return c.Redirect(a.Redirects.AfterPasswordChange, http.StatusSeeOther)
}

func (a *AuthController) viewContext(c router.Context, data router.ViewContext) router.ViewContext {
	if token, ok := c.Locals(CSRFLocalsKey).(string); ok {
		data["csrf"] = token
	}
	if user, ok := CurrentUser(c); ok {
		data["user"] = user
	}
	return data
}

func isInvalidResetLink(err error) bool {
	return HasTextCode(err, TextCodeTokenMismatch) || HasTextCode(err, TextCodeTokenExpired)
}

func isChecked(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "on", "true", "1", "yes":
		return true
	}
	return false
}
