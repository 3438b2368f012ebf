package controllers

import (
	"log"
	"net/http"

	"Gin_postgres_redis_equipment_tool/app"
	"Gin_postgres_redis_equipment_tool/models"

	"github.com/gin-gonic/gin"
)

func statusFor(kind models.ErrorKind) int {
	switch kind {
	case models.KindValidation:
		return http.StatusBadRequest
	case models.KindAuth:
		return http.StatusForbidden
	case models.KindNotFound:
		return http.StatusNotFound
	case models.KindConflict, models.KindDuplicate:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondError maps a service error to a status code. Internal errors are
// logged and answered with a generic message.
func respondError(c *gin.Context, err error) {
	status := statusFor(models.KindOf(err))
	if status == http.StatusInternalServerError {
		log.Printf("controllers: %s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(status, app.H{"error": "internal error"})
		return
	}
	c.JSON(status, app.H{"error": err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, app.H{"error": msg})
}
