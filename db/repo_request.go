package db

import (
	"Gin_postgres_redis_equipment_tool/models"
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

func (r *Repo) CreateRequest(ctx context.Context, req *models.Request) error {
	if err := r.conn(ctx).Create(req).Error; err != nil {
		return fmt.Errorf("insert request: %w", err)
	}
	return nil
}

func (r *Repo) FindRequestByID(ctx context.Context, id string) (*models.Request, error) {
	var req models.Request
	if err := r.conn(ctx).First(&req, "id = ?", id).Error; err != nil {
		return nil, notFound(err, models.ErrRequestNotFound)
	}
	return &req, nil
}

func (r *Repo) ListRequests(ctx context.Context, f models.RequestFilter) ([]models.Request, error) {
	q := r.conn(ctx).Model(&models.Request{}).Order("requested_at DESC")
	if f.UserID != "" {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	var out []models.Request
	if err := q.Limit(500).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// The transitions below are compare-and-set: the state check lives in the
// WHERE clause and RowsAffected == 0 means another caller got there first.

func (r *Repo) RecordManagerApproval(ctx context.Context, id, actorID string, at time.Time) (int64, error) {
	return transition(
		r.conn(ctx).Model(&models.Request{}).
			Where("id = ? AND status = ? AND manager_approved_by IS NULL", id, models.RequestPending),
		map[string]any{
			"manager_approved_by": actorID,
			"manager_approved_at": at,
			"updated_at":          at,
		})
}

func (r *Repo) MarkApproved(ctx context.Context, id, actorID string, at, due time.Time) (int64, error) {
	return transition(
		r.conn(ctx).Model(&models.Request{}).
			Where("id = ? AND status = ?", id, models.RequestPending),
		map[string]any{
			"status":      models.RequestApproved,
			"approved_by": actorID,
			"approved_at": at,
			"due_date":    due,
			"updated_at":  at,
		})
}

func (r *Repo) MarkRejected(ctx context.Context, id, actorID string, at time.Time) (int64, error) {
	return transition(
		r.conn(ctx).Model(&models.Request{}).
			Where("id = ? AND status = ?", id, models.RequestPending),
		map[string]any{
			"status":      models.RequestRejected,
			"approved_by": actorID,
			"approved_at": at,
			"updated_at":  at,
		})
}

func (r *Repo) MarkReturned(ctx context.Context, id string, status models.RequestStatus, at time.Time, cond models.Condition, notes string) (int64, error) {
	update := map[string]any{
		"status":           status,
		"returned_at":      at,
		"return_condition": cond,
		"updated_at":       at,
	}
	if notes != "" {
		update["notes"] = notes
	}
	return transition(
		r.conn(ctx).Model(&models.Request{}).
			Where("id = ? AND status = ? AND returned_at IS NULL", id, models.RequestApproved),
		update)
}

func transition(q *gorm.DB, update map[string]any) (int64, error) {
	res := q.Updates(update)
	if res.Error != nil {
		if isInvalidUUID(res.Error) {
			return 0, nil
		}
		if isUniqueViolation(res.Error) {
			// one_open_per_equipment: the unit already has an open loan.
			return 0, models.ErrEquipmentUnavailable
		}
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *Repo) AppendConditionLog(ctx context.Context, l *models.ConditionLog) error {
	if err := r.conn(ctx).Create(l).Error; err != nil {
		return fmt.Errorf("insert condition log: %w", err)
	}
	return nil
}

func (r *Repo) ListOverdueRequests(ctx context.Context, now time.Time) ([]models.OverdueRequest, error) {
	var rows []models.OverdueRequest
	err := r.conn(ctx).
		Table(models.RequestTable+" q").
		Select(`
			q.id AS request_id, q.user_id, u.email,
			e.name AS equipment_name, q.due_date, q.last_reminder_at
		`).
		Joins("JOIN "+models.EquipmentTable+" e ON e.id = q.equipment_id").
		Joins("JOIN eq_users u ON u.id = q.user_id").
		Where("q.status = ? AND q.returned_at IS NULL AND q.due_date < ?", models.RequestApproved, now).
		Order("q.due_date").
		Scan(&rows).Error
	return rows, err
}

// ClaimReminder stamps last_reminder_at unless a reminder went out after
// notBefore. Only the caller that gets 1 back should send.
func (r *Repo) ClaimReminder(ctx context.Context, id string, now, notBefore time.Time) (int64, error) {
	res := r.conn(ctx).Model(&models.Request{}).
		Where("id = ? AND (last_reminder_at IS NULL OR last_reminder_at < ?)", id, notBefore).
		Update("last_reminder_at", now)
	return res.RowsAffected, res.Error
}
