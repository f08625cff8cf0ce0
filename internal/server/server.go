package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/backoffice/internal/analytics"
	analyticsdomain "github.com/smallbiznis/backoffice/internal/analytics/domain"
	"github.com/smallbiznis/backoffice/internal/auth"
	authdomain "github.com/smallbiznis/backoffice/internal/auth/domain"
	"github.com/smallbiznis/backoffice/internal/auth/session"
	"github.com/smallbiznis/backoffice/internal/authorization"
	"github.com/smallbiznis/backoffice/internal/config"
	"github.com/smallbiznis/backoffice/internal/events"
	"github.com/smallbiznis/backoffice/internal/observability"
	obslogger "github.com/smallbiznis/backoffice/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/backoffice/internal/observability/metrics"
	obstracing "github.com/smallbiznis/backoffice/internal/observability/tracing"
	"github.com/smallbiznis/backoffice/internal/order"
	orderdomain "github.com/smallbiznis/backoffice/internal/order/domain"
	"github.com/smallbiznis/backoffice/internal/product"
	productdomain "github.com/smallbiznis/backoffice/internal/product/domain"
	"github.com/smallbiznis/backoffice/internal/ratelimit"
	"github.com/smallbiznis/backoffice/internal/user"
	userdomain "github.com/smallbiznis/backoffice/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	authorization.Module,
	events.Module,
	auth.Module,
	user.Module,
	product.Module,
	order.Module,
	analytics.Module,
	ratelimit.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.RequestLog(obslogger.RequestLogOptions{
		Verbose:  obsCfg.Debug(),
		Classify: classifyErrorForLog,
	}))
	r.Use(obstracing.ServerSpans())
	if httpMetrics != nil {
		r.Use(httpMetrics.GinMiddleware())
	}
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, r *gin.Engine) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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
	engine       *gin.Engine
	cfg          config.Config
	log          *zap.Logger
	authsvc      authdomain.Service
	sessions     *session.Manager
	authzSvc     authorization.Service
	productSvc   productdomain.Service
	orderSvc     orderdomain.Service
	userSvc      userdomain.Service
	analyticsSvc analyticsdomain.Service
	hub          *events.Hub
	emitter      events.Emitter
	orderLimiter *ratelimit.OrderLimiter
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	Log          *zap.Logger
	Authsvc      authdomain.Service
	Sessions     *session.Manager
	AuthzSvc     authorization.Service
	ProductSvc   productdomain.Service
	OrderSvc     orderdomain.Service
	UserSvc      userdomain.Service
	AnalyticsSvc analyticsdomain.Service
	Hub          *events.Hub
	Emitter      events.Emitter
	OrderLimiter *ratelimit.OrderLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		log:          p.Log.Named("http.server"),
		authsvc:      p.Authsvc,
		sessions:     p.Sessions,
		authzSvc:     p.AuthzSvc,
		productSvc:   p.ProductSvc,
		orderSvc:     p.OrderSvc,
		userSvc:      p.UserSvc,
		analyticsSvc: p.AnalyticsSvc,
		hub:          p.Hub,
		emitter:      p.Emitter,
		orderLimiter: p.OrderLimiter,
	}

	svc.registerRoutes()
	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerRoutes() {
	s.registerAuthRoutes()
	s.registerProductRoutes()
	s.registerOrderRoutes()
	s.registerUserRoutes()
	s.registerAdminRoutes()
	s.registerNotificationRoutes()
	s.registerFallback()
}

func (s *Server) registerAuthRoutes() {
	auth := s.engine.Group("/api/auth")

	auth.POST("/register", s.OptionalAuth(), s.Register)
	auth.POST("/login", s.Login)
	auth.POST("/logout", s.Logout)
	auth.GET("/me", s.AuthRequired(), s.Me)
	auth.PUT("/profile", s.AuthRequired(), s.authorize(authorization.ObjectProfile, authorization.ActionProfileUpdate), s.UpdateProfile)
}

func (s *Server) registerProductRoutes() {
	products := s.engine.Group("/api/products")

	// -------- Public catalog --------
	products.GET("", s.ListProducts)
	products.GET("/featured/list", s.ListFeaturedProducts)
	products.GET("/sale/list", s.ListSaleProducts)
	products.GET("/:id", s.GetProduct)

	// -------- Catalog management --------
	products.POST("", s.AuthRequired(), s.authorize(authorization.ObjectProduct, authorization.ActionProductCreate), s.CreateProduct)
	products.PUT("/:id", s.AuthRequired(), s.authorize(authorization.ObjectProduct, authorization.ActionProductUpdate), s.UpdateProduct)
	products.DELETE("/:id", s.AuthRequired(), s.authorize(authorization.ObjectProduct, authorization.ActionProductDelete), s.DeleteProduct)
}

func (s *Server) registerOrderRoutes() {
	orders := s.engine.Group("/api/orders", s.AuthRequired())

	orders.POST("", s.authorize(authorization.ObjectOrder, authorization.ActionOrderCreate), s.OrderPlacementRateLimit(), s.PlaceOrder)
	orders.GET("", s.authorize(authorization.ObjectOrder, authorization.ActionOrderViewOwn), s.ListMyOrders)
	orders.GET("/admin/all", s.authorize(authorization.ObjectOrder, authorization.ActionOrderViewAll), s.ListAllOrders)
	orders.GET("/:id", s.authorize(authorization.ObjectOrder, authorization.ActionOrderViewOwn), s.GetOrder)
	orders.PUT("/:id/status", s.authorize(authorization.ObjectOrder, authorization.ActionOrderUpdateStatus), s.UpdateOrderStatus)
}

func (s *Server) registerUserRoutes() {
	users := s.engine.Group("/api/users", s.AuthRequired())

	users.GET("", s.authorize(authorization.ObjectUser, authorization.ActionUserView), s.ListUsers)
	users.GET("/:id", s.authorize(authorization.ObjectUser, authorization.ActionUserView), s.GetUser)
	users.PUT("/:id", s.authorize(authorization.ObjectUser, authorization.ActionUserUpdate), s.UpdateUser)
	users.DELETE("/:id", s.authorize(authorization.ObjectUser, authorization.ActionUserDelete), s.DeactivateUser)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/api/admin")

	admin.Use(s.AuthRequired())
	admin.Use(s.RequireRole(roleAdmin))

	admin.GET("/me", s.Me)

	// -------- Dashboard --------
	admin.GET("/stats", s.authorize(authorization.ObjectAnalytics, authorization.ActionAnalyticsView), s.GetStats)
	admin.GET("/analytics", s.authorize(authorization.ObjectAnalytics, authorization.ActionAnalyticsView), s.GetAnalytics)

	// -------- Users --------
	admin.GET("/users", s.authorize(authorization.ObjectUser, authorization.ActionUserView), s.ListUsers)
	admin.PUT("/users/:id/role", s.authorize(authorization.ObjectUser, authorization.ActionUserUpdate), s.UpdateUserRole)
	admin.DELETE("/users/:id", s.authorize(authorization.ObjectUser, authorization.ActionUserDelete), s.DeactivateUser)

	// -------- Orders --------
	admin.GET("/orders", s.authorize(authorization.ObjectOrder, authorization.ActionOrderViewAll), s.ListAllOrders)
	admin.GET("/orders/:id", s.authorize(authorization.ObjectOrder, authorization.ActionOrderViewAll), s.GetOrder)
	admin.PUT("/orders/:id/status", s.authorize(authorization.ObjectOrder, authorization.ActionOrderUpdateStatus), s.UpdateOrderStatus)

	// -------- Products --------
	admin.GET("/products", s.authorize(authorization.ObjectProduct, authorization.ActionProductView), s.ListAdminProducts)
	admin.GET("/products/low-stock", s.authorize(authorization.ObjectProduct, authorization.ActionProductView), s.ListLowStockProducts)
	admin.GET("/products/:id", s.authorize(authorization.ObjectProduct, authorization.ActionProductView), s.GetAdminProduct)
	admin.POST("/products", s.authorize(authorization.ObjectProduct, authorization.ActionProductCreate), s.CreateProduct)
	admin.PUT("/products/:id", s.authorize(authorization.ObjectProduct, authorization.ActionProductUpdate), s.UpdateProduct)
	admin.DELETE("/products/:id", s.authorize(authorization.ObjectProduct, authorization.ActionProductDelete), s.DeleteProduct)
}

func (s *Server) registerNotificationRoutes() {
	notifications := s.engine.Group("/api/notifications", s.AuthRequired())

	notifications.GET("/stream", s.authorize(authorization.ObjectNotification, authorization.ActionNotificationListen), s.StreamNotifications)
	notifications.GET("/ws", s.authorize(authorization.ObjectNotification, authorization.ActionNotificationListen), s.NotificationsWebsocket)
	notifications.POST("", s.authorize(authorization.ObjectNotification, authorization.ActionNotificationSend), s.SendNotification)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
