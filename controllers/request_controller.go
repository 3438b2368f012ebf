package controllers

import (
	"net/http"
	"strings"
	"time"

	"Gin_postgres_redis_equipment_tool/app"
	"Gin_postgres_redis_equipment_tool/models"
	"Gin_postgres_redis_equipment_tool/services"

	"github.com/gin-gonic/gin"
)

type RequestController struct{ *Srv }

func NewRequestController(s *Srv) *RequestController { return &RequestController{Srv: s} }

// parseDate accepts RFC 3339 timestamps and plain YYYY-MM-DD dates.
func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), true
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

func (rc *RequestController) CreateRequest(c *gin.Context) {
	var in struct {
		EquipmentID string `json:"equipmentId" binding:"required"`
		StartDate   string `json:"startDate" binding:"required"`
		EndDate     string `json:"endDate" binding:"required"`
		Notes       string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request: "+err.Error())
		return
	}
	start, ok1 := parseDate(in.StartDate)
	end, ok2 := parseDate(in.EndDate)
	if !ok1 || !ok2 {
		badRequest(c, "dates must be YYYY-MM-DD or RFC 3339")
		return
	}
	req, err := rc.Requests.Create(c.Request.Context(), app.ActorFrom(c), services.CreateRequestInput{
		EquipmentID: in.EquipmentID,
		StartDate:   start,
		EndDate:     end,
		Notes:       in.Notes,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, req)
}

// ListRequests supports ?status=&userId=; plain users only get their own.
func (rc *RequestController) ListRequests(c *gin.Context) {
	f := models.RequestFilter{
		UserID: c.Query("userId"),
		Status: models.RequestStatus(c.Query("status")),
	}
	items, err := rc.Requests.List(c.Request.Context(), app.ActorFrom(c), f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"items": items})
}

func (rc *RequestController) GetRequest(c *gin.Context) {
	req, err := rc.Requests.Get(c.Request.Context(), app.ActorFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

func (rc *RequestController) Approve(c *gin.Context) {
	res, err := rc.Requests.Approve(c.Request.Context(), app.ActorFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (rc *RequestController) Reject(c *gin.Context) {
	req, err := rc.Requests.Reject(c.Request.Context(), app.ActorFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

func (rc *RequestController) Return(c *gin.Context)      { rc.doReturn(c, false) }
func (rc *RequestController) EarlyReturn(c *gin.Context) { rc.doReturn(c, true) }

func (rc *RequestController) doReturn(c *gin.Context, early bool) {
	var in struct {
		Condition models.Condition `json:"condition" binding:"required"`
		Notes     string           `json:"notes"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request: "+err.Error())
		return
	}
	req, err := rc.Requests.Return(c.Request.Context(), app.ActorFrom(c), c.Param("id"), services.ReturnInput{
		Condition: in.Condition,
		Notes:     in.Notes,
		Early:     early,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}
