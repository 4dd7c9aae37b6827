// Package router assembles the HTTP surface: public auth routes, the gated back office,
// and the operational endpoints.
package router

import (
	"net/http"

	"workshopdesk/internal/auth"
	"workshopdesk/internal/handler"
	"workshopdesk/internal/metrics"
	"workshopdesk/internal/middleware"
	"workshopdesk/internal/routes"
	"workshopdesk/internal/service"
	"workshopdesk/pkg/response"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

const APIPrefix = "/api/v1"

// Services are the use cases exposed over HTTP
type Services struct {
	Auth         service.AuthService
	Users        service.UserService
	Roles        service.RoleService
	Workshops    service.WorkshopService
	TicketTypes  service.TicketTypeService
	Participants service.ParticipantService
	CheckIn      service.CheckInService
	Statistics   service.StatisticsService
	Audit        service.AuditService
}

type Config struct {
	AllowOrigins  []string
	Cookies       middleware.CookieConfig
	LoginPath     string
	MaxUploadSize int64
	EnableSwagger bool
}

// Deps is everything Setup needs. Metrics and Live may be nil.
type Deps struct {
	Config      Config
	Logger      *zap.Logger
	Metrics     *metrics.Metrics
	Tokens      *auth.TokenManager
	Users       middleware.UserLoader
	Permissions middleware.PermissionProvider
	Services    Services
	Live        gin.HandlerFunc
}

// Setup builds the engine and the route registry the gate resolves names from
func Setup(d Deps) (*gin.Engine, *routes.Registry) {
	r := gin.New()
	r.Use(middleware.Recovery(d.Logger))
	r.Use(middleware.RequestLogger(d.Logger))
	if d.Metrics != nil {
		r.Use(middleware.Metrics(d.Metrics))
	}

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = d.Config.AllowOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.ExposeHeaders = []string{"Content-Disposition"}
	if len(corsConfig.AllowOrigins) > 0 {
		r.Use(cors.New(corsConfig))
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}
	if d.Config.EnableSwagger {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, "Route not found"))
	})

	reg := routes.NewRegistry()
	s := d.Services

	api := r.Group(APIPrefix)
	api.Use(middleware.Authenticate(d.Tokens, d.Users, d.Logger))

	authHandler := handler.NewAuthHandler(s.Auth, d.Config.Cookies)
	authHandler.RegisterPublicRoutes(api.Group(""), reg)

	gated := api.Group("")
	gated.Use(middleware.Gate(middleware.GateConfig{
		Registry:    reg,
		Permissions: d.Permissions,
		Sessions:    s.Auth,
		Cookies:     d.Config.Cookies,
		LoginPath:   d.Config.LoginPath,
		Logger:      d.Logger,
		Metrics:     d.Metrics,
	}))

	authHandler.RegisterRoutes(gated, reg)
	handler.NewStatisticsHandler(s.Statistics).RegisterRoutes(gated, reg)
	handler.NewWorkshopHandler(s.Workshops, s.TicketTypes, s.Statistics).RegisterRoutes(gated, reg)
	handler.NewParticipantHandler(s.Participants, d.Config.MaxUploadSize).RegisterRoutes(gated, reg)
	handler.NewCheckInHandler(s.CheckIn, d.Live).RegisterRoutes(gated, reg)
	handler.NewRoleHandler(s.Roles).RegisterRoutes(gated, reg)
	handler.NewUserHandler(s.Users).RegisterRoutes(gated, reg)
	handler.NewAuditHandler(s.Audit).RegisterRoutes(gated, reg)

	return r, reg
}
