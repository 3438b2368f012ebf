package routes

import (
	"net/http"

	"Gin_postgres_redis_equipment_tool/app"
	"Gin_postgres_redis_equipment_tool/controllers"
	"Gin_postgres_redis_equipment_tool/models"

	"github.com/gin-gonic/gin"
)

// Middleware is the shared chain: Auth resolves the caller, Seen records
// activity and may be nil.
type Middleware struct {
	Auth gin.HandlerFunc
	Seen gin.HandlerFunc
}

func RegisterRoutes(r *gin.Engine, s *controllers.Srv, mw Middleware) {
	eq := controllers.NewEquipmentController(s)
	rq := controllers.NewRequestController(s)
	al := controllers.NewAlertsController(s)
	rp := controllers.NewReportController(s)
	au := controllers.NewAuthController(s)

	adminOnly := app.RequireRole(models.RoleAdmin)
	managerUp := app.RequireRole(models.RoleManager, models.RoleAdmin)

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, app.H{"ok": true}) })

	chain := []gin.HandlerFunc{mw.Auth}
	if mw.Seen != nil {
		chain = append(chain, mw.Seen)
	}
	authed := r.Group("", chain...)

	auth := authed.Group("/auth")
	{
		auth.GET("/whoami", au.WhoAmI)
		auth.POST("/session", au.CreateSession)
		auth.POST("/logout", au.Logout)
	}

	equipment := authed.Group("/equipment")
	{
		equipment.GET("", eq.ListEquipment)
		equipment.GET("/groups", al.Groups)
		equipment.GET("/low-stock", al.LowStock)
		equipment.GET("/:id", eq.GetEquipment)

		equipment.POST("", adminOnly, eq.CreateEquipment)
		equipment.PUT("/repair", managerUp, eq.StartRepair)
		equipment.PUT("/repair-complete", managerUp, eq.CompleteRepair)
		equipment.PUT("/retire-fleet", adminOnly, eq.RetireFleet)
		equipment.PUT("/:id", adminOnly, eq.UpdateEquipment)
		equipment.PUT("/:id/status", adminOnly, eq.SetStatus)
		equipment.DELETE("/:id", adminOnly, eq.DeleteEquipment)
	}

	requests := authed.Group("/request")
	{
		requests.POST("", rq.CreateRequest)
		requests.GET("", rq.ListRequests)
		requests.GET("/:id", rq.GetRequest)
		requests.PUT("/:id/approve", managerUp, rq.Approve)
		requests.PUT("/:id/reject", managerUp, rq.Reject)
		requests.PUT("/:id/return", managerUp, rq.Return)
		requests.PUT("/:id/early-return", rq.EarlyReturn)
	}

	authed.PUT("/alerts/threshold/:groupKey", adminOnly, al.UpdateThreshold)
	authed.GET("/dashboard/stats", managerUp, rp.DashboardStats)
	authed.GET("/reports/usage", managerUp, rp.Usage)
}
