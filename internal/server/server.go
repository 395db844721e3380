package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	authdomain "github.com/smallbiznis/fotoyou/internal/auth/domain"
	"github.com/smallbiznis/fotoyou/internal/authorization"
	catalogdomain "github.com/smallbiznis/fotoyou/internal/catalog/domain"
	"github.com/smallbiznis/fotoyou/internal/clock"
	"github.com/smallbiznis/fotoyou/internal/config"
	entitlementdomain "github.com/smallbiznis/fotoyou/internal/entitlement/domain"
	"github.com/smallbiznis/fotoyou/internal/observability"
	obsmiddleware "github.com/smallbiznis/fotoyou/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/fotoyou/internal/observability/metrics"
	obstracing "github.com/smallbiznis/fotoyou/internal/observability/tracing"
	"github.com/smallbiznis/fotoyou/internal/providers/pdf"
	purchasedomain "github.com/smallbiznis/fotoyou/internal/purchase/domain"
	"github.com/smallbiznis/fotoyou/internal/ratelimit"
	"github.com/smallbiznis/fotoyou/internal/reconcile"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(RunHTTP),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func RunHTTP(lc fx.Lifecycle, cfg config.Config, s *Server, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           s.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine          *gin.Engine
	cfg             config.Config
	log             *zap.Logger
	clock           clock.Clock
	verifier        authdomain.Verifier
	authzSvc        authorization.Service
	catalogSvc      catalogdomain.Service
	purchaseSvc     purchasedomain.Service
	store           entitlementdomain.Store
	reconciler      *reconcile.Reconciler
	receipts        pdf.Provider
	purchaseLimiter *ratelimit.PurchaseLimiter
	obsMetrics      *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	Log             *zap.Logger
	Clock           clock.Clock
	Verifier        authdomain.Verifier
	AuthzSvc        authorization.Service `optional:"true"`
	CatalogSvc      catalogdomain.Service
	PurchaseSvc     purchasedomain.Service
	Store           entitlementdomain.Store
	Reconciler      *reconcile.Reconciler      `optional:"true"`
	Receipts        pdf.Provider               `optional:"true"`
	PurchaseLimiter *ratelimit.PurchaseLimiter `optional:"true"`
	ObsMetrics      *obsmetrics.Metrics        `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		log:             p.Log.Named("http.server"),
		clock:           p.Clock,
		verifier:        p.Verifier,
		authzSvc:        p.AuthzSvc,
		catalogSvc:      p.CatalogSvc,
		purchaseSvc:     p.PurchaseSvc,
		store:           p.Store,
		reconciler:      p.Reconciler,
		receipts:        p.Receipts,
		purchaseLimiter: p.PurchaseLimiter,
		obsMetrics:      p.ObsMetrics,
	}

	svc.registerPaymentRoutes()
	svc.registerAPIRoutes()
	svc.registerAdminRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// registerPaymentRoutes wires the gateway callbacks. They carry no bearer
// token; the adapter authenticates the payload itself.
func (s *Server) registerPaymentRoutes() {
	payment := s.engine.Group("/api/payment")
	payment.POST("/notification", s.HandlePaymentNotification)

	s.engine.POST("/api/payments/webhooks/:provider", s.HandlePaymentWebhook)
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", s.BearerAuthRequired())

	// -------- Stories --------
	api.GET("/stories", s.ListStories)
	api.GET("/stories/:id", s.GetStory)

	// -------- Purchases --------
	api.POST("/payment/initiate", s.PurchaseRateLimit(), s.InitiatePurchase)
	api.GET("/purchases", s.ListPurchases)
	api.GET("/purchases/:orderId", s.GetPurchase)
	api.GET("/purchases/:orderId/receipt", s.DownloadReceipt)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/api/admin", s.BearerAuthRequired())

	admin.GET("/purchases", s.authorizeAction(authorization.ObjectPurchase, authorization.ActionPurchaseView), s.AdminListPurchases)
	admin.POST("/purchases/:orderId/reconcile", s.authorizeAction(authorization.ObjectPurchase, authorization.ActionPurchaseReconcile), s.AdminReconcilePurchase)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
