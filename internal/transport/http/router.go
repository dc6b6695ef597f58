package http

import (
	"net/http"

	"github.com/citymate-api/internal/application/notification"
	"github.com/citymate-api/internal/application/otp"
	"github.com/citymate-api/internal/application/session"
	"github.com/citymate-api/internal/application/user"
	"github.com/citymate-api/internal/application/verification"
	"github.com/citymate-api/internal/config"
	"github.com/citymate-api/internal/transport/http/handler"
	appmiddleware "github.com/citymate-api/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"
)

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true, // verification cookie
		MaxAge:           300,
	}))

	authMw := appmiddleware.Auth(deps.JWT, deps.Sessions)
	optionalAuthMw := appmiddleware.OptionalAuth(deps.JWT, deps.Sessions)
	verificationMw := appmiddleware.VerificationSession(appmiddleware.CookieOptions{
		Name:   cfg.VerificationCookieName,
		Secure: cfg.Secure(),
		MaxAge: cfg.VerificationSessionTTL,
	})

	// 5 requests/second, burst of 10, on endpoints that send codes or check secrets.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10)

	dispatcher := notification.NewDispatcher(deps.Mailer, deps.SMS, cfg.SMSDefaultCountryCode)
	otpSvc := otp.NewService(deps.OTPs, dispatcher, cfg.OTPTTL, cfg.DispatchTimeout)
	sessionSvc := session.NewService(session.ServiceDeps{
		UserRepo:    deps.Users,
		SessionRepo: deps.Sessions,
		JWTProvider: deps.JWT,
	})
	userSvc := user.NewService(user.ServiceDeps{
		UserRepo:    deps.Users,
		SessionRepo: deps.Sessions,
		Photos:      deps.Photos,
	})
	flow := verification.NewWorkflow(verification.ServiceDeps{
		OTP:         otpSvc,
		States:      deps.Verifications,
		Users:       deps.Users,
		Sessions:    deps.Sessions,
		Photos:      deps.Photos,
		MaxAttempts: cfg.OTPMaxAttempts,
	})

	healthH := handler.NewHealthHandler()
	sessionH := handler.NewSessionHandler(sessionSvc, flow)
	userH := handler.NewUserHandler(userSvc, flow)
	verificationH := handler.NewVerificationHandler(flow, sessionSvc)

	r.Route("/v1", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.Get("/health-check/{action}", healthH.Ping)
		r.Post("/health-check/{action}", healthH.Ping)
		r.With(sensitiveRL.Limit).Post("/sessions/login", sessionH.Login)

		// ── Verification session routes ──────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(verificationMw)

			r.With(sensitiveRL.Limit).Post("/signup", verificationH.Signup)
			r.With(sensitiveRL.Limit).Post("/password-reset", verificationH.PasswordReset)
			r.Get("/verification", verificationH.Current)
			r.Delete("/verification", verificationH.Abandon)
			r.With(sensitiveRL.Limit).Post("/verification/code", verificationH.SubmitCode)
			r.With(optionalAuthMw).Post("/verification/complete", verificationH.Complete)

			r.With(authMw).Post("/sessions/logout", sessionH.Logout)
			r.With(authMw, sensitiveRL.Limit).Put("/users/me", userH.UpdateMe)
		})

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(authMw)

			r.Get("/sessions", sessionH.GetCurrent)
			r.Get("/users/me", userH.GetMe)
			r.Delete("/users/me", userH.DeleteMe)
		})
	})

	return r
}
