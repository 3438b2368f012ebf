// db/repo_equipment.go
package db

import (
	"Gin_postgres_redis_equipment_tool/models"
	"context"
	"fmt"
	"strings"
	"time"
)

func (r *Repo) SerialExists(ctx context.Context, serial string) (bool, error) {
	var n int64
	err := r.conn(ctx).Model(&models.Equipment{}).
		Where("serial = ?", serial).
		Count(&n).Error
	return n > 0, err
}

func (r *Repo) CreateEquipment(ctx context.Context, e *models.Equipment) error {
	if err := r.conn(ctx).Create(e).Error; err != nil {
		if isUniqueViolation(err) {
			return models.ErrDuplicateSerial
		}
		return fmt.Errorf("insert equipment: %w", err)
	}
	return nil
}

func (r *Repo) FindEquipmentByID(ctx context.Context, id string) (*models.Equipment, error) {
	var e models.Equipment
	if err := r.conn(ctx).First(&e, "id = ?", id).Error; err != nil {
		return nil, notFound(err, models.ErrEquipmentNotFound)
	}
	return &e, nil
}

func (r *Repo) ListEquipment(ctx context.Context, f models.EquipmentFilter) ([]models.Equipment, error) {
	q := r.conn(ctx).Model(&models.Equipment{}).Omit("qr_code").Order("created_at DESC")
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Type != "" {
		q = q.Where("type = ?", f.Type)
	}
	if s := strings.TrimSpace(f.Q); s != "" {
		pat := "%" + escapeLike(strings.ToLower(s)) + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(serial) LIKE ?", pat, pat)
	}
	var items []models.Equipment
	if err := q.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// ListEquipmentBySerialPrefix returns candidate members of a group. Callers
// must still filter with serial.GroupKey.
func (r *Repo) ListEquipmentBySerialPrefix(ctx context.Context, prefix string) ([]models.Equipment, error) {
	var items []models.Equipment
	err := r.conn(ctx).Omit("qr_code").
		Where("serial LIKE ?", escapeLike(prefix)+"%").
		Order("serial").
		Find(&items).Error
	return items, err
}

func (r *Repo) ListSerializedEquipment(ctx context.Context) ([]models.Equipment, error) {
	var items []models.Equipment
	err := r.conn(ctx).Omit("qr_code").
		Where("serial IS NOT NULL").
		Order("serial").
		Find(&items).Error
	return items, err
}

// ReplaceEquipmentFields overwrites all mutable fields of a unit that is still
// in status expect.
func (r *Repo) ReplaceEquipmentFields(ctx context.Context, id string, expect models.EquipmentStatus, f models.EquipmentFields) (int64, error) {
	res := r.conn(ctx).Model(&models.Equipment{}).
		Where("id = ? AND status = ?", id, expect).
		Updates(map[string]any{
			"name":              f.Name,
			"type":              f.Type,
			"serial":            f.Serial,
			"condition":         f.Condition,
			"status":            f.Status,
			"location":          f.Location,
			"stock_threshold":   f.StockThreshold,
			"requires_approval": f.RequiresApproval,
			"updated_at":        time.Now(),
		})
	if res.Error != nil {
		if isUniqueViolation(res.Error) {
			return 0, models.ErrDuplicateSerial
		}
		if isInvalidUUID(res.Error) {
			return 0, nil
		}
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// UpdateEquipmentStatus moves the listed units to `to`. With a non-empty
// from, only units currently in one of those statuses move; the status check
// and the write are one statement.
func (r *Repo) UpdateEquipmentStatus(ctx context.Context, ids []string, from []models.EquipmentStatus, to models.EquipmentStatus, cond *models.Condition) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	update := map[string]any{
		"status":     to,
		"updated_at": time.Now(),
	}
	if cond != nil {
		update["condition"] = *cond
	}
	q := r.conn(ctx).Model(&models.Equipment{}).Where("id IN ?", ids)
	if len(from) > 0 {
		q = q.Where("status IN ?", from)
	}
	res := q.Updates(update)
	if res.Error != nil {
		if isInvalidUUID(res.Error) {
			return 0, nil
		}
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *Repo) SetStockThreshold(ctx context.Context, ids []string, n int) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := r.conn(ctx).Model(&models.Equipment{}).
		Where("id IN ?", ids).
		Updates(map[string]any{"stock_threshold": n, "updated_at": time.Now()})
	return res.RowsAffected, res.Error
}

// CountOpenRequestsForEquipment counts pending or approved requests on a unit.
func (r *Repo) CountOpenRequestsForEquipment(ctx context.Context, id string) (int64, error) {
	var n int64
	err := r.conn(ctx).Model(&models.Request{}).
		Where("equipment_id = ? AND status IN ?", id, []models.RequestStatus{models.RequestPending, models.RequestApproved}).
		Count(&n).Error
	if isInvalidUUID(err) {
		return 0, nil
	}
	return n, err
}

func (r *Repo) DeleteEquipment(ctx context.Context, id string) (int64, error) {
	res := r.conn(ctx).Where("id = ?", id).Delete(&models.Equipment{})
	if res.Error != nil {
		if isInvalidUUID(res.Error) {
			return 0, nil
		}
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *Repo) DashboardStats(ctx context.Context, now time.Time) (models.DashboardStats, error) {
	var out models.DashboardStats
	var rows []struct {
		Status models.EquipmentStatus
		N      int64
	}
	if err := r.conn(ctx).Model(&models.Equipment{}).
		Select("status, COUNT(*) AS n").
		Group("status").
		Scan(&rows).Error; err != nil {
		return out, err
	}
	for _, row := range rows {
		out.TotalEquipment += row.N
		switch row.Status {
		case models.StatusAvailable:
			out.Available = row.N
		case models.StatusCheckedOut:
			out.CheckedOut = row.N
		case models.StatusUnderRepair:
			out.UnderRepair = row.N
		case models.StatusRetired:
			out.Retired = row.N
		}
	}
	if err := r.conn(ctx).Model(&models.Request{}).
		Where("status = ?", models.RequestPending).
		Count(&out.PendingRequests).Error; err != nil {
		return out, err
	}
	if err := r.conn(ctx).Model(&models.Request{}).
		Where("status = ? AND returned_at IS NULL AND due_date < ?", models.RequestApproved, now).
		Count(&out.OverdueRequests).Error; err != nil {
		return out, err
	}
	return out, nil
}

func (r *Repo) UsageReport(ctx context.Context) ([]models.UsageRow, error) {
	var rows []models.UsageRow
	err := r.conn(ctx).
		Table(models.EquipmentTable+" e").
		Select(`
			e.id AS equipment_id, e.name, e.type, e.serial,
			COUNT(q.id) AS times_borrowed
		`).
		Joins("LEFT JOIN "+models.RequestTable+" q ON q.equipment_id = e.id AND q.approved_at IS NOT NULL AND q.status <> ?", models.RequestRejected).
		Group("e.id, e.name, e.type, e.serial").
		Order("times_borrowed DESC, e.name").
		Limit(200).
		Scan(&rows).Error
	return rows, err
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
