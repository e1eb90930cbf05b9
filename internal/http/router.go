// Package httpapi assembles the Gin engine: services over the store, the
// middleware chain and the /api/v1 routes. Idempotency keys are scoped per
// user, so the validator runs after authentication.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/choukwa/choukwa-backend/internal/auth"
	"github.com/choukwa/choukwa-backend/internal/cache"
	"github.com/choukwa/choukwa-backend/internal/config"
	"github.com/choukwa/choukwa-backend/internal/domain"
	"github.com/choukwa/choukwa-backend/internal/events"
	"github.com/choukwa/choukwa-backend/internal/http/handlers"
	"github.com/choukwa/choukwa-backend/internal/http/middleware"
	"github.com/choukwa/choukwa-backend/internal/repo"
	"github.com/choukwa/choukwa-backend/internal/services"
)

// Deps are the infrastructure handles the API is built on.
type Deps struct {
	DB     *gorm.DB
	Store  cache.Store
	Tokens *auth.Manager
	// Broker feeds the SSE stream. Nil disables /events.
	Broker *events.Broker
	// Publisher receives domain events. Nil publishes to Broker only.
	Publisher events.Publisher
}

// NewServices builds the application services over deps.
func NewServices(d Deps, cfg config.Config) handlers.Services {
	pub := d.Publisher
	if pub == nil {
		if d.Broker != nil {
			pub = d.Broker
		} else {
			pub = events.Nop{}
		}
	}

	geo := &services.GeoService{DB: d.DB, Cache: d.Store, TTL: cfg.Redis.CacheTTL}
	complaints := &services.ComplaintService{
		DB:              d.DB,
		Assigner:        services.Assigner{Officials: services.RepoOfficials{DB: d.DB}},
		Geo:             geo,
		Limiter:         d.Store,
		DailyLimit:      cfg.ComplaintDailyLimit,
		OverdueAfter:    cfg.OverdueAfter,
		MaxContentRunes: cfg.MaxContentRunes,
		Events:          pub,
	}
	return handlers.Services{
		Sessions:      &services.SessionService{DB: d.DB, Tokens: d.Tokens, Verifier: auth.NewPhoneVerifier(cfg.Auth), AdminPhones: cfg.Auth.AdminPhones},
		Geo:           geo,
		Officials:     &services.OfficialService{DB: d.DB, Geo: geo},
		Registrations: &services.RegistrationService{DB: d.DB, Geo: geo, Events: pub},
		Complaints:    complaints,
		Templates:     &services.TemplateService{DB: d.DB, Complaints: complaints},
		Coordination:  &services.CoordinationService{DB: d.DB, Complaints: complaints},
		Reports: &services.ReportService{
			DB:           d.DB,
			Geo:          geo,
			Complaints:   complaints,
			OverdueAfter: cfg.OverdueAfter,
		},
		Broker:         d.Broker,
		IdempotencyTTL: cfg.IdempotencyTTL,
	}
}

// RegisterRoutes installs the middleware chain, the infrastructure endpoints
// (/health, /metrics, /swagger) and the API under cfg.APIBasePath.
//
// Engine order: tracing, request ID, access log, recovery, body cap, metrics,
// CORS, security headers, compression. API group order: session,
// idempotency, rate limits, so a replayed write is recognised before it is
// counted against the caller.
func RegisterRoutes(r *gin.Engine, d Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	apiBase := cfg.APIBasePath
	if apiBase == "" {
		apiBase = "/api/v1"
	}

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"X-API-Key"},
	}))
	r.Use(middleware.Recovery())
	r.Use(limitBody(1 << 20))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.Use(corsHandlers(cfg.CORS)...)

	// HSTS is sent only over HTTPS.
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		PrivateCache: true,
		EnablePolicy: true,
	}))

	// Compression; the event stream must flush unbuffered.
	r.Use(gzip.Gzip(gzip.DefaultCompression,
		gzip.WithExcludedPaths([]string{apiBase + "/events", "/metrics"})))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	h := handlers.New(NewServices(d, cfg))

	api := groupWithPrefix(r, apiBase)

	// Anonymous requests pass through; routes decide.
	api.Use(middleware.Authenticate(d.Tokens))

	api.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{MaxLen: 200},
		func(ctx context.Context, userID, scope, key string, now time.Time) (bool, error) {
			_, err := repo.GetIdempotency(ctx, d.DB, userID, scope, key, now)
			if errors.Is(err, repo.ErrNotFound) {
				return false, nil
			}
			return err == nil, err
		},
	))

	// Local token bucket plus the shared per-minute window when a counter
	// store is available.
	rl := middleware.NewRateLimiter(middleware.RateLimitOptions{
		RPS:       cfg.RateRPS,
		Burst:     cfg.RateBurst,
		Shared:    d.Store,
		PerWindow: cfg.RatePerMinute,
		Window:    time.Minute,
	}, middleware.KeyBySessionOrIP())
	api.Use(rl.Handler())

	registerAPI(api, h)
}

// registerAPI mounts the versioned endpoints on api.
func registerAPI(api *gin.RouterGroup, h *handlers.Handlers) {
	officials := []domain.Role{domain.RoleMP, domain.RoleLocalDeputy}
	staff := append([]domain.Role{domain.RoleAdmin}, officials...)

	// Auth
	api.POST("/auth/login", h.Login)
	{
		a := api.Group("/auth", middleware.RequireSession())
		a.POST("/refresh", h.Refresh)
		a.POST("/logout", h.Logout)
		a.GET("/me", h.Me)
	}

	// Public directory
	api.GET("/wilayas", h.ListWilayas)
	api.GET("/wilayas/:id/dairas", h.ListDairas)
	api.GET("/dairas/:id/mutamadiyat", h.ListMutamadiyat)
	api.GET("/mps", h.ListMPs)
	api.GET("/mps/:id", h.GetMP)
	api.GET("/categories", h.ListCategories)
	api.POST("/registrations", h.SubmitRegistration)

	// Live events
	api.GET("/events", middleware.RequireSession(), h.Events)

	// Citizens
	{
		g := api.Group("", middleware.RequireRole(domain.RoleCitizen))
		g.POST("/complaints", h.SubmitComplaint)
		g.GET("/complaints/mine", h.ListMyComplaints)
	}

	// Officials
	{
		g := api.Group("", middleware.RequireRole(officials...))
		g.GET("/complaints/assigned", h.ListAssignedComplaints)
		g.GET("/officials/me/report", h.OfficialReport)
	}

	// Any session; the services enforce per-complaint visibility.
	api.GET("/complaints/:id", middleware.RequireSession(), h.GetComplaint)

	// Officials and admins acting on a complaint
	{
		g := api.Group("", middleware.RequireRole(staff...))
		g.POST("/complaints/:id/view", h.ViewComplaint)
		g.POST("/complaints/:id/reply", h.ReplyComplaint)
		g.POST("/complaints/:id/status", h.ChangeComplaintStatus)
		g.POST("/complaints/:id/priority", h.SetComplaintPriority)
		g.POST("/complaints/:id/notes", h.AddComplaintNote)
		g.POST("/complaints/:id/forward", h.ForwardComplaint)
		g.POST("/complaints/:id/forward-ministry", h.ForwardComplaintToMinistry)
		g.GET("/complaints/:id/letter", h.ComplaintLetter)
		g.GET("/complaints/:id/audit", h.ComplaintAudit)
		g.GET("/complaints/:id/template-suggestions", h.TemplateSuggestions)

		g.GET("/complaints/:id/coordination", h.ListCoordination)
		g.POST("/complaints/:id/coordination", h.CreateCoordination)
		g.PATCH("/complaints/:id/coordination/:entry_id", h.UpdateCoordination)
		g.DELETE("/complaints/:id/coordination/:entry_id", h.DeleteCoordination)

		g.GET("/templates", h.ListTemplates)
		g.POST("/templates", h.CreateTemplate)
		g.PATCH("/templates/:id", h.UpdateTemplate)
		g.DELETE("/templates/:id", h.DeleteTemplate)

		g.GET("/local-deputies", h.ListLocalDeputies)
	}

	// Admin
	{
		g := api.Group("/admin", middleware.RequireRole(domain.RoleAdmin))
		g.GET("/complaints", h.AdminListComplaints)
		g.PATCH("/complaints/:id", h.AdminUpdateComplaint)
		g.DELETE("/complaints/:id", h.AdminDeleteComplaint)

		g.GET("/mps", h.AdminListMPs)
		g.POST("/mps", h.CreateMP)
		g.PATCH("/mps/:id", h.UpdateMP)
		g.DELETE("/mps/:id", h.DeleteMP)

		g.POST("/local-deputies", h.CreateLocalDeputy)
		g.PATCH("/local-deputies/:id", h.UpdateLocalDeputy)
		g.DELETE("/local-deputies/:id", h.DeleteLocalDeputy)

		g.POST("/wilayas", h.CreateWilaya)
		g.PATCH("/wilayas/:id", h.UpdateWilaya)
		g.DELETE("/wilayas/:id", h.DeleteWilaya)
		g.POST("/dairas", h.CreateDaira)
		g.PATCH("/dairas/:id", h.UpdateDaira)
		g.DELETE("/dairas/:id", h.DeleteDaira)
		g.POST("/mutamadiyat", h.CreateMutamadiya)
		g.PATCH("/mutamadiyat/:id", h.UpdateMutamadiya)
		g.DELETE("/mutamadiyat/:id", h.DeleteMutamadiya)

		g.GET("/registrations", h.ListRegistrations)
		g.POST("/registrations/:id/approve", h.ApproveRegistration)
		g.POST("/registrations/:id/reject", h.RejectRegistration)

		g.GET("/reports", h.AdminReport)
	}
}

var (
	corsMethods       = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsAllowHeaders  = []string{"Origin", "Content-Type", "Accept", "Authorization", "If-None-Match", middleware.HeaderIdempotencyKey}
	corsExposeHeaders = []string{"X-Request-ID", "Content-Length", "ETag", "Idempotency-Replayed", "Retry-After"}
)

// corsHandlers opens the API to any origin when no allowlist is configured,
// without credentials. The wildcard is also set on requests that carry no
// Origin so that health probes see the same headers as browsers.
func corsHandlers(cfg config.CORSConfig) []gin.HandlerFunc {
	base := cors.Config{
		AllowMethods:  corsMethods,
		AllowHeaders:  corsAllowHeaders,
		ExposeHeaders: corsExposeHeaders,
		MaxAge:        12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) > 0 {
		base.AllowOrigins = cfg.AllowedOrigins
		return []gin.HandlerFunc{cors.New(base)}
	}
	base.AllowAllOrigins = true
	wildcard := func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Next()
	}
	return []gin.HandlerFunc{wildcard, cors.New(base)}
}

// limitBody caps request bodies at maxBytes; reads past it fail.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
