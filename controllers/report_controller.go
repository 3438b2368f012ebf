package controllers

import (
	"net/http"

	"Gin_postgres_redis_equipment_tool/app"

	"github.com/gin-gonic/gin"
)

type ReportController struct{ *Srv }

func NewReportController(s *Srv) *ReportController { return &ReportController{Srv: s} }

func (rc *ReportController) DashboardStats(c *gin.Context) {
	stats, err := rc.Reports.DashboardStats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (rc *ReportController) Usage(c *gin.Context) {
	rows, err := rc.Reports.Usage(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"items": rows})
}
