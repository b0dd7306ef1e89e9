package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/openshelf/openshelf-backend/internal/handlers"
	"github.com/openshelf/openshelf-backend/internal/middleware"
)

type RouterConfig struct {
	AuthHandler        *handlers.AuthHandler
	AuthMiddleware     *middleware.AuthMiddleware
	BookHandler        *handlers.BookHandler
	MemberHandler      *handlers.MemberHandler
	CirculationHandler *handlers.CirculationHandler
	ReservationHandler *handlers.ReservationHandler
	FineHandler        *handlers.FineHandler
	StatsHandler       *handlers.StatsHandler
	StreamHandler      *handlers.StreamHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	// Cors
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{
			"http://localhost:80",
			"http://localhost:3000",
			"http://localhost:5173",
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	// ===============
	// || Public    ||
	// ===============
	router.GET("/healthcheck", handlers.HealthCheck)
	api := router.Group("/api")
	{
		api.POST("/login", cfg.AuthHandler.Login)
		api.POST("/members/register", cfg.MemberHandler.Register)
	}

	// ===============
	// || Protected ||
	// ===============
	protected := api.Group("/")
	protected.Use(cfg.AuthMiddleware.RequireAuth())
	// SSE
	protected.GET("/stream", cfg.StreamHandler.Stream)
	// Books
	protected.GET("/books", cfg.BookHandler.List)
	protected.GET("/books/:id", cfg.BookHandler.Get)
	// Circulation (member callers are scoped to their own account; privileged
	// callers pass member_id to act on behalf of any member)
	protected.POST("/circulation/checkout", cfg.CirculationHandler.Checkout)
	protected.POST("/circulation/return", cfg.CirculationHandler.Return)
	protected.POST("/circulation/renew", cfg.CirculationHandler.Renew)
	protected.GET("/circulation/mine", cfg.CirculationHandler.ListMine)
	// Reservations
	protected.POST("/reservations", cfg.ReservationHandler.PlaceHold)
	protected.POST("/reservations/:id/cancel", cfg.ReservationHandler.CancelHold)
	protected.GET("/reservations/mine", cfg.ReservationHandler.ListMine)
	// Fines
	protected.GET("/fines/preview", cfg.FineHandler.Preview)
	protected.GET("/fines/mine", cfg.FineHandler.ListMine)
	// Stats
	protected.GET("/stats", cfg.StatsHandler.GetStats)
	protected.GET("/stats/activity", cfg.StatsHandler.RecentActivity)

	// ===============
	// || Staff     ||
	// ===============
	staff := protected.Group("/")
	staff.Use(cfg.AuthMiddleware.RequirePrivileged())
	staff.POST("/books", cfg.BookHandler.Create)
	staff.DELETE("/books/:id", cfg.BookHandler.Delete)
	staff.GET("/circulation/overdue", cfg.CirculationHandler.Overdue)
	staff.GET("/members", cfg.MemberHandler.Lookup)
	staff.GET("/members/:id", cfg.MemberHandler.Get)
	staff.POST("/members/:id/suspend", cfg.MemberHandler.Suspend)
	staff.POST("/members/:id/reactivate", cfg.MemberHandler.Reactivate)
	staff.POST("/fines", cfg.FineHandler.Assess)
	staff.POST("/fines/:id/settle", cfg.FineHandler.Settle)
	staff.POST("/transactions/:id/fine", cfg.FineHandler.CorrectTransaction)

	return router
}
