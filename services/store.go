// Package services holds the equipment registry, the stock threshold
// monitor, the borrow request workflow and the overdue scanner.
package services

import (
	"context"
	"time"

	"Gin_postgres_redis_equipment_tool/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Store is the persistence collaborator. Every method returning int64
// reports rows affected by a conditional update.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error

	FindUserByID(ctx context.Context, id string) (*models.User, error)
	ListAdminEmails(ctx context.Context) ([]string, error)

	SerialExists(ctx context.Context, serial string) (bool, error)
	CreateEquipment(ctx context.Context, e *models.Equipment) error
	FindEquipmentByID(ctx context.Context, id string) (*models.Equipment, error)
	ListEquipment(ctx context.Context, f models.EquipmentFilter) ([]models.Equipment, error)
	ListEquipmentBySerialPrefix(ctx context.Context, prefix string) ([]models.Equipment, error)
	ListSerializedEquipment(ctx context.Context) ([]models.Equipment, error)
	ReplaceEquipmentFields(ctx context.Context, id string, expect models.EquipmentStatus, f models.EquipmentFields) (int64, error)
	UpdateEquipmentStatus(ctx context.Context, ids []string, from []models.EquipmentStatus, to models.EquipmentStatus, cond *models.Condition) (int64, error)
	SetStockThreshold(ctx context.Context, ids []string, n int) (int64, error)
	CountOpenRequestsForEquipment(ctx context.Context, id string) (int64, error)
	DeleteEquipment(ctx context.Context, id string) (int64, error)

	CreateRequest(ctx context.Context, req *models.Request) error
	FindRequestByID(ctx context.Context, id string) (*models.Request, error)
	ListRequests(ctx context.Context, f models.RequestFilter) ([]models.Request, error)
	RecordManagerApproval(ctx context.Context, id, actorID string, at time.Time) (int64, error)
	MarkApproved(ctx context.Context, id, actorID string, at, due time.Time) (int64, error)
	MarkRejected(ctx context.Context, id, actorID string, at time.Time) (int64, error)
	MarkReturned(ctx context.Context, id string, status models.RequestStatus, at time.Time, cond models.Condition, notes string) (int64, error)
	AppendConditionLog(ctx context.Context, l *models.ConditionLog) error
	ListOverdueRequests(ctx context.Context, now time.Time) ([]models.OverdueRequest, error)
	ClaimReminder(ctx context.Context, id string, now, notBefore time.Time) (int64, error)

	DashboardStats(ctx context.Context, now time.Time) (models.DashboardStats, error)
	UsageReport(ctx context.Context) ([]models.UsageRow, error)
}

// Cache is the derived-view cache. Mutations call InvalidateAggregates.
type Cache interface {
	Get(ctx context.Context, key string, dst any) bool
	Set(ctx context.Context, key string, value any, ttl time.Duration)
	InvalidateAggregates(ctx context.Context)
}

// Notifier delivers outbound messages. Failures never undo a state change.
type Notifier interface {
	ApprovalGranted(ctx context.Context, toEmail, equipmentName, approverName string) error
	OverdueReminder(ctx context.Context, toEmail, equipmentName string, due time.Time) error
	LowStockAlert(ctx context.Context, to []string, groupKey, name string, available, threshold int) error
}

const defaultViewTTL = 5 * time.Minute

var tracer = otel.Tracer("Gin_postgres_redis_equipment_tool/services")

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
