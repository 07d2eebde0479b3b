package server

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/sudo-init-do/mardikor/internal/admin"
	"github.com/sudo-init-do/mardikor/internal/alerts"
	"github.com/sudo-init-do/mardikor/internal/auth"
	"github.com/sudo-init-do/mardikor/internal/config"
	"github.com/sudo-init-do/mardikor/internal/events"
	"github.com/sudo-init-do/mardikor/internal/httpx"
	"github.com/sudo-init-do/mardikor/internal/marketplace"
	"github.com/sudo-init-do/mardikor/internal/messaging"
	"github.com/sudo-init-do/mardikor/internal/metrics"
	mware "github.com/sudo-init-do/mardikor/internal/middleware"
	"github.com/sudo-init-do/mardikor/internal/store"
	"github.com/sudo-init-do/mardikor/internal/user"
	"github.com/sudo-init-do/mardikor/internal/wallet"
)

// Deps are the long-lived resources the API is built on.
type Deps struct {
	Store store.Store
	Bus   events.Bus
	// Backend names the store in readiness reports: "postgres" or "memory".
	Backend string
	// Degraded is set when a configured database could not be reached and
	// the in-memory store took its place.
	Degraded bool
	// Transport names the bus actually in use. Empty means the configured one.
	Transport string
	// EventsDegraded is set when the configured Redis bus could not be
	// reached and an in-process bus took its place.
	EventsDegraded bool
}

// Server is the assembled HTTP API.
type Server struct {
	Echo *echo.Echo
	Auth *auth.Service
}

// New wires services, handlers and routes.
func New(cfg config.Config, deps Deps) (*Server, error) {
	tokens := auth.NewTokens(cfg.JWTSecret, cfg.JWTTTL)
	authSvc := auth.NewService(deps.Store, tokens)
	authSvc.EnableBootstrap(cfg.AdminBootstrapSecret)
	alertSvc := alerts.NewService(deps.Store, deps.Bus)
	marketSvc := marketplace.NewService(deps.Store, deps.Store, alertSvc, deps.Bus)
	chatSvc := messaging.NewService(deps.Store, deps.Store, alertSvc, deps.Bus)
	userSvc := user.NewService(deps.Store)
	walletSvc := wallet.NewService(deps.Store, deps.Store)
	adminSvc := admin.NewService(deps.Store)

	// The poller has no publishers of its own and reads what services stored.
	if p, ok := deps.Bus.(*events.Poller); ok {
		p.Handle("user", alertSvc.PollUser)
		p.Handle("chat", chatSvc.PollChat)
		p.Handle("order", marketSvc.PollOrder)
	}

	avatars, err := user.NewAvatarStore(cfg.UploadDir, "/uploads")
	if err != nil {
		return nil, fmt.Errorf("prepare upload dir: %w", err)
	}

	relay := messaging.NewRelay(deps.Bus, chatSvc, cfg.CORSOrigins)
	authH := auth.NewHandler(authSvc)
	userH := user.NewHandler(userSvc, avatars)
	orderH := marketplace.NewHandler(marketSvc, relay)
	chatH := messaging.NewHandler(chatSvc, relay)
	alertH := alerts.NewHandler(alertSvc)
	walletH := wallet.NewHandler(walletSvc)
	adminH := admin.NewHandler(adminSvc)
	transport := deps.Transport
	if transport == "" {
		transport = cfg.EventsTransport
	}
	health := &healthHandler{
		store:          deps.Store,
		bus:            deps.Bus,
		backend:        deps.Backend,
		transport:      transport,
		storeDegraded:  deps.Degraded,
		eventsDegraded: deps.EventsDegraded,
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = httpx.HTTPErrorHandler
	e.Validator = httpx.NewAppValidator()

	e.Use(middleware.RequestID())
	e.Use(mware.RequestLogger())
	e.Use(metrics.Middleware())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
	}))

	requireAuth := mware.RequireAuth(authSvc)
	optionalAuth := mware.OptionalAuth(authSvc)

	// Health and ops routes
	e.GET("/health", health.Health)
	e.GET("/ready", health.Ready)
	e.GET("/metrics", metrics.Handler())
	e.Static("/uploads", avatars.Dir())

	// Auth routes with per-IP rate limiting to protect signup/login from abuse
	authGroup := e.Group("/auth")
	authGroup.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(cfg.AuthRateLimit))))
	authGroup.POST("/register", authH.Register)
	authGroup.POST("/login", authH.Login)
	authGroup.POST("/bootstrap-admin", authH.BootstrapAdmin)
	authGroup.GET("/me", authH.Me, requireAuth)
	authGroup.PUT("/password", authH.ChangePassword, requireAuth)

	// Public profiles; the owner and admins see private fields
	e.GET("/users", userH.List, optionalAuth)
	e.GET("/users/:id", userH.Get, optionalAuth)
	e.GET("/users/:id/reviews", orderH.GetWorkerReviews)

	// Protected routes
	api := e.Group("")
	api.Use(requireAuth)

	api.PUT("/users/:id", userH.Update)
	api.PUT("/users/:id/online", userH.ToggleOnline)

	api.GET("/orders", orderH.ListOrders)
	api.POST("/orders", orderH.CreateOrder)
	api.GET("/orders/:id", orderH.GetOrder)
	api.PUT("/orders/:id", orderH.UpdateOrder)
	api.POST("/orders/:id/accept", orderH.AcceptOrder)
	api.POST("/orders/:id/start", orderH.StartOrder)
	api.POST("/orders/:id/complete", orderH.CompleteOrder)
	api.POST("/orders/:id/cancel", orderH.CancelOrder)
	api.POST("/orders/:id/review", orderH.CreateReview)

	api.GET("/chats", chatH.ListChats)
	api.POST("/chats", chatH.OpenChat)
	api.GET("/chats/:id", chatH.GetChat)
	api.PUT("/chats/:id/read", chatH.MarkChatRead)
	api.GET("/messages/:chatId", chatH.ListMessages)
	api.POST("/messages", chatH.SendMessage)

	api.GET("/notifications", alertH.ListNotifications)
	api.POST("/notifications", alertH.CreateNotification, mware.RequireAdmin)
	api.PUT("/notifications/read-all", alertH.MarkAllRead)
	api.PUT("/notifications/:id/read", alertH.MarkNotificationRead)
	api.DELETE("/notifications/:id", alertH.DeleteNotification)

	api.GET("/wallet/balance", walletH.Balance)
	api.GET("/wallet/transactions", walletH.Transactions)

	// Websocket streams authenticate with ?token= since browsers can't set headers
	api.GET("/ws/chats/:id", chatH.ChatStream)
	api.GET("/ws/orders/:id", orderH.OrderStream)
	api.GET("/ws/notifications", chatH.NotificationStream)

	// Admin routes
	adminGroup := e.Group("/admin")
	adminGroup.Use(requireAuth)
	adminGroup.Use(mware.RequireAdmin)

	adminGroup.GET("/users", adminH.ListUsers)
	adminGroup.POST("/users/:id/ban", adminH.BanUser)
	adminGroup.POST("/users/:id/unban", adminH.UnbanUser)
	adminGroup.PUT("/users/:id/role", adminH.SetRole)
	adminGroup.GET("/stats", adminH.Stats)
	adminGroup.GET("/ledger", walletH.AdminCommission)
	adminGroup.GET("/ledger/:id", walletH.AdminUserTransactions)

	return &Server{Echo: e, Auth: authSvc}, nil
}
