package controllers

import (
	"net/http"
	"strings"

	"Gin_postgres_redis_equipment_tool/app"

	"github.com/gin-gonic/gin"
)

// AlertsController serves the grouped stock views and threshold changes.
type AlertsController struct{ *Srv }

func NewAlertsController(s *Srv) *AlertsController { return &AlertsController{Srv: s} }

func (ac *AlertsController) Groups(c *gin.Context) {
	groups, err := ac.Stock.Groups(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"items": groups})
}

func (ac *AlertsController) LowStock(c *gin.Context) {
	low, err := ac.Stock.LowStock(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"items": low})
}

func (ac *AlertsController) UpdateThreshold(c *gin.Context) {
	var in struct {
		Threshold *int `json:"threshold" binding:"required"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request: "+err.Error())
		return
	}
	groupKey := strings.TrimSpace(c.Param("groupKey"))
	n, err := ac.Stock.UpdateThreshold(c.Request.Context(), groupKey, *in.Threshold)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"groupKey": groupKey, "threshold": *in.Threshold, "updated": n})
}
