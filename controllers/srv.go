package controllers

import (
	"context"
	"net/http"
	"time"

	"Gin_postgres_redis_equipment_tool/app"
	"Gin_postgres_redis_equipment_tool/models"
	"Gin_postgres_redis_equipment_tool/services"

	"github.com/gin-gonic/gin"
)

type EquipmentService interface {
	CreateBatch(ctx context.Context, in services.CreateBatchInput) ([]models.Equipment, error)
	Get(ctx context.Context, id string) (*models.Equipment, error)
	List(ctx context.Context, f models.EquipmentFilter) ([]models.Equipment, error)
	UpdateFields(ctx context.Context, id string, f models.EquipmentFields) (*models.Equipment, error)
	SetStatus(ctx context.Context, id string, status models.EquipmentStatus) error
	BulkStartRepair(ctx context.Context, ids []string) (int64, error)
	BulkCompleteRepair(ctx context.Context, ids []string, cond models.Condition) (int64, error)
	BulkRetire(ctx context.Context, ids []string) (int64, error)
	Delete(ctx context.Context, id string) error
}

type StockService interface {
	Groups(ctx context.Context) ([]services.GroupStats, error)
	LowStock(ctx context.Context) ([]services.GroupStats, error)
	UpdateThreshold(ctx context.Context, groupKey string, n int) (int64, error)
}

type RequestService interface {
	Create(ctx context.Context, actor models.Actor, in services.CreateRequestInput) (*models.Request, error)
	Approve(ctx context.Context, actor models.Actor, id string) (services.ApprovalResult, error)
	Reject(ctx context.Context, actor models.Actor, id string) (*models.Request, error)
	Return(ctx context.Context, actor models.Actor, id string, in services.ReturnInput) (*models.Request, error)
	Get(ctx context.Context, actor models.Actor, id string) (*models.Request, error)
	List(ctx context.Context, actor models.Actor, f models.RequestFilter) ([]models.Request, error)
}

type ReportService interface {
	DashboardStats(ctx context.Context) (models.DashboardStats, error)
	Usage(ctx context.Context) ([]models.UsageRow, error)
}

type SessionService interface {
	Issue(ctx context.Context, userID string) (string, error)
	Delete(ctx context.Context, id string) error
	RevokeAllForUser(ctx context.Context, userID string) error
	TTL() time.Duration
}

// Srv bundles what the controllers share.
type Srv struct {
	Equipment EquipmentService
	Stock     StockService
	Requests  RequestService
	Reports   ReportService
	Sessions  SessionService

	SecureCookies bool
}

// setAppCookie writes the session cookie; a negative maxAge deletes it.
func (s *Srv) setAppCookie(w http.ResponseWriter, sessionID string, maxAge time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     app.AppSessionCookie,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   s.SecureCookies,
		MaxAge:   int(maxAge / time.Second),
	})
}

// bindIDs reads {"ids": [...]} from the body.
func bindIDs(c *gin.Context) ([]string, bool) {
	var in struct {
		IDs []string `json:"ids"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid JSON body")
		return nil, false
	}
	return in.IDs, true
}
