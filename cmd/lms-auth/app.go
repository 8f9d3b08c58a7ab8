package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/csrf"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/goliatone/go-router"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
	"go.uber.org/zap"

	auth "github.com/savvyindians/go-lms-auth"
	"github.com/savvyindians/go-lms-auth/activitymap"
	"github.com/savvyindians/go-lms-auth/config"
	"github.com/savvyindians/go-lms-auth/logging"
	"github.com/savvyindians/go-lms-auth/mailer"
	"github.com/savvyindians/go-lms-auth/views"
)

const appName = "LMS"

// App holds the wired services shared by every command
type App struct {
	config *config.Config
	zap    *zap.Logger
	bunDB  *bun.DB
	redis  *redis.Client

	repo     auth.RepositoryManager
	hasher   *auth.BcryptHasher
	store    auth.SessionStore
	sessions *auth.SessionManager
	auther   *auth.RouteAuthenticator
	avatars  *auth.AvatarHandler
	mailer   auth.Mailer
	activity auth.ActivitySink
	srv      router.Server[*fiber.App]
	fiberApp *fiber.App
}

func (a *App) GetLogger(name string) auth.Logger {
	return logging.NewLogger(a.zap, name)
}

func (a *App) Close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.bunDB != nil {
		_ = a.bunDB.Close()
	}
	if a.zap != nil {
		_ = a.zap.Sync()
	}
}

// NewApp wires persistence and the auth services. The HTTP server is
// only built by WithHTTPServer.
func NewApp(ctx context.Context, cfg *config.Config, zlog *zap.Logger) (*App, error) {
	app := &App{config: cfg, zap: zlog}

	auth.MaxLoginAttempts = cfg.Auth.MaxLoginAttempts
	auth.CoolDownPeriod = cfg.Auth.LoginCoolDown
	auth.MaxUsernameRetries = cfg.Auth.MaxUsernameRetries

	if err := WithPersistence(ctx, app); err != nil {
		app.Close()
		return nil, err
	}

	if err := WithSessions(ctx, app); err != nil {
		app.Close()
		return nil, err
	}

	if err := WithServices(app); err != nil {
		app.Close()
		return nil, err
	}

	return app, nil
}

func WithPersistence(ctx context.Context, app *App) error {
	db, err := auth.OpenDB(app.config.Database.URL)
	if err != nil {
		return err
	}
	app.bunDB = db

	if err := auth.Migrate(ctx, db); err != nil {
		return err
	}

	app.repo = auth.NewRepositoryManager(db)
	return app.repo.Validate()
}

func WithSessions(ctx context.Context, app *App) error {
	switch app.config.Session.Store {
	case config.SessionStoreRedis:
		opts, err := redis.ParseURL(app.config.Redis.URL)
		if err != nil {
			return fmt.Errorf("invalid redis url: %w", err)
		}
		app.redis = redis.NewClient(opts)
		if err := app.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		app.store = auth.NewRedisSessionStore(app.redis)
	default:
		app.store = auth.NewSQLSessionStore(app.bunDB)
	}

	signer := auth.NewSessionTokenSigner([]byte(app.config.SecretKey), appName, app.GetLogger("session_token"))
	activityLogger := app.GetLogger("activity")
	app.activity = activitymap.Sink(func(_ context.Context, n activitymap.Normalized) error {
		activityLogger.Info(n.Verb, "actor_id", n.ActorID, "object_id", n.ObjectID, "metadata", n.Metadata)
		return nil
	})

	app.sessions = auth.NewSessionManager(app.store, app.repo.Users(), signer).
		WithLifetimes(app.config.Session.TTL, app.config.Session.RememberTTL).
		WithLogger(app.GetLogger("sessions")).
		WithActivitySink(app.activity)

	app.auther = auth.NewRouteAuthenticator(app.sessions, auth.CookieConfig{
		SessionName: app.config.Session.CookieName,
		Domain:      app.config.Session.Domain,
		Secure:      app.config.Session.Secure,
		SameSite:    app.config.Session.SameSite,
	})
	app.auther.Logger = app.GetLogger("http")

	return nil
}

func WithServices(app *App) error {
	hasher, err := auth.NewPasswordHasher(app.config.Auth.BcryptCost)
	if err != nil {
		return err
	}
	app.hasher = hasher

	storage := auth.NewLocalStorage(app.config.Media.Root, app.config.Media.URL)
	app.avatars = auth.NewAvatarHandler(storage, app.config.Media.StaticURL).
		WithLogger(app.GetLogger("avatars"))

	if app.config.Mail.SendgridAPIKey != "" {
		app.mailer = mailer.NewSendGrid(app.config.Mail.SendgridAPIKey, appName, app.config.Mail.From, app.GetLogger("mailer"))
	} else {
		app.mailer = mailer.NewConsole(appName, app.config.Mail.From, app.GetLogger("mailer"))
	}

	return nil
}

func WithHTTPServer(app *App) error {
	cfg := app.config
	httpLogger := app.GetLogger("http")

	srv := router.NewFiberAdapter(func(_ *fiber.App) *fiber.App {
		fa := fiber.New(fiber.Config{
			AppName:           appName,
			Views:             views.Engine(),
			PassLocalsToViews: false,
			StrictRouting:     false,
			ErrorHandler: func(c *fiber.Ctx, err error) error {
				var e *fiber.Error
				if errors.As(err, &e) && e.Code < fiber.StatusInternalServerError {
					return c.Status(e.Code).SendString(e.Message)
				}
				httpLogger.Error("unhandled request error", "path", c.OriginalURL(), "error", err)
				return c.Status(fiber.StatusInternalServerError).Render("errors/500", fiber.Map{
					"error": auth.NoticeGenericFailure,
				})
			},
		})

		fa.Use(recover.New())
		fa.Use(logger.New(logger.Config{
			Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
		}))
		fa.Use(csrf.New(csrf.Config{
			KeyLookup:      "form:csrf_token",
			CookieName:     "csrftoken",
			CookieSameSite: "Lax",
			CookieSecure:   cfg.Session.Secure,
			ContextKey:     auth.CSRFLocalsKey,
		}))

		if cfg.Media.URL != "" && cfg.Media.Root != "" {
			fa.Static(strings.TrimRight(cfg.Media.URL, "/"), cfg.Media.Root)
		}

		app.fiberApp = fa
		return fa
	})

	srv.Router().Use(app.auther.SessionMiddleware())

	tokens := auth.NewResetTokenGenerator(cfg.SecretKey, cfg.Auth.ResetTimeout)

	registration := auth.NewRegisterParticipantHandler(app.repo, app.hasher).
		WithLogger(app.GetLogger("registration")).
		WithActivitySink(app.activity).
		WithPhoneRegion(cfg.Auth.PhoneRegion)

	authenticator := auth.NewAuthenticator(app.repo, app.hasher).
		WithLogger(app.GetLogger("authenticator")).
		WithActivitySink(app.activity)

	resetInit := auth.NewInitializePasswordResetHandler(app.repo, tokens, app.mailer).
		WithLogger(app.GetLogger("password_reset")).
		WithActivitySink(app.activity)

	resetFinalize := auth.NewFinalizePasswordResetHandler(app.repo, tokens, app.hasher).
		WithSessionRevoker(app.sessions).
		WithLogger(app.GetLogger("password_reset")).
		WithActivitySink(app.activity)

	changePassword := auth.NewChangePasswordHandler(app.repo, app.hasher, app.sessions).
		WithLogger(app.GetLogger("change_password")).
		WithActivitySink(app.activity)

	auth.RegisterAuthRoutes(srv.Router(),
		auth.WithControllerLogger(httpLogger),
		auth.WithControllerDebug(cfg.Debug),
		auth.WithSiteURL(cfg.Site.URL),
		auth.WithCollapseNotFound(cfg.Auth.CollapseNotFound),
		auth.WithRepository(app.repo),
		auth.WithRouteAuthenticator(app.auther),
		auth.WithAuthenticator(authenticator),
		auth.WithRegistrationHandler(registration),
		auth.WithPasswordResetHandlers(resetInit, resetFinalize),
		auth.WithChangePasswordHandler(changePassword),
	)

	app.srv = srv
	return nil
}
