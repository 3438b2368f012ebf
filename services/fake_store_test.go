package services

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"Gin_postgres_redis_equipment_tool/models"
)

type fakeTxKey struct{}

// fakeStore mirrors the conditional-update semantics of the Postgres repo.
// WithTx serializes transactions and restores a snapshot on error.
type fakeStore struct {
	mu   sync.Mutex
	txMu sync.Mutex

	users     map[string]models.User
	equipment map[string]models.Equipment
	requests  map[string]models.Request
	logs      []models.ConditionLog

	// next error returned by CreateEquipment after createLimit successful calls
	createLimit int
	createErr   error
	creates     int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:       make(map[string]models.User),
		equipment:   make(map[string]models.Equipment),
		requests:    make(map[string]models.Request),
		createLimit: -1,
	}
}

func (f *fakeStore) addUser(id string, role models.Role) models.Actor {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[id] = models.User{ID: id, Email: id + "@example.com", DisplayName: strings.ToUpper(id), Role: role}
	return models.Actor{ID: id, Role: role}
}

func (f *fakeStore) addEquipment(e models.Equipment) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if e.StockThreshold == 0 {
		e.StockThreshold = models.DefaultStockThreshold
	}
	if e.Condition == "" {
		e.Condition = models.ConditionGood
	}
	f.equipment[e.ID] = e
}

func (f *fakeStore) equipmentByID(id string) models.Equipment {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.equipment[id]
}

func (f *fakeStore) requestByID(id string) models.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[id]
}

func (f *fakeStore) conditionLogs() []models.ConditionLog {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.ConditionLog(nil), f.logs...)
}

func (f *fakeStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(fakeTxKey{}) != nil {
		return fn(ctx)
	}
	f.txMu.Lock()
	defer f.txMu.Unlock()

	f.mu.Lock()
	eq := make(map[string]models.Equipment, len(f.equipment))
	for k, v := range f.equipment {
		eq[k] = v
	}
	rq := make(map[string]models.Request, len(f.requests))
	for k, v := range f.requests {
		rq[k] = v
	}
	logs := append([]models.ConditionLog(nil), f.logs...)
	f.mu.Unlock()

	if err := fn(context.WithValue(ctx, fakeTxKey{}, true)); err != nil {
		f.mu.Lock()
		f.equipment, f.requests, f.logs = eq, rq, logs
		f.mu.Unlock()
		return err
	}
	return nil
}

func (f *fakeStore) FindUserByID(_ context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	return &u, nil
}

func (f *fakeStore) ListAdminEmails(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, u := range f.users {
		if u.Role == models.RoleAdmin {
			out = append(out, u.Email)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (f *fakeStore) SerialExists(_ context.Context, serial string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.serialTaken(serial, ""), nil
}

func (f *fakeStore) serialTaken(serial, exceptID string) bool {
	for _, e := range f.equipment {
		if e.ID != exceptID && e.Serial != nil && *e.Serial == serial {
			return true
		}
	}
	return false
}

func (f *fakeStore) CreateEquipment(_ context.Context, e *models.Equipment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createLimit >= 0 && f.creates >= f.createLimit {
		return f.createErr
	}
	f.creates++
	if e.Serial != nil && f.serialTaken(*e.Serial, "") {
		return models.ErrDuplicateSerial
	}
	f.equipment[e.ID] = *e
	return nil
}

func (f *fakeStore) FindEquipmentByID(_ context.Context, id string) (*models.Equipment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.equipment[id]
	if !ok {
		return nil, models.ErrEquipmentNotFound
	}
	return &e, nil
}

func (f *fakeStore) ListEquipment(_ context.Context, filter models.EquipmentFilter) ([]models.Equipment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q := strings.ToLower(strings.TrimSpace(filter.Q))
	var out []models.Equipment
	for _, e := range f.equipment {
		if filter.Status != "" && e.Status != filter.Status {
			continue
		}
		if filter.Type != "" && e.Type != filter.Type {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(e.Name), q) && !strings.Contains(strings.ToLower(e.SerialValue()), q) {
			continue
		}
		e.QRCode = ""
		out = append(out, e)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].SerialValue() < out[b].SerialValue() })
	return out, nil
}

func (f *fakeStore) ListEquipmentBySerialPrefix(_ context.Context, prefix string) ([]models.Equipment, error) {
	return f.selectEquipment(func(e models.Equipment) bool {
		return e.Serial != nil && strings.HasPrefix(*e.Serial, prefix)
	}), nil
}

func (f *fakeStore) ListSerializedEquipment(_ context.Context) ([]models.Equipment, error) {
	return f.selectEquipment(func(e models.Equipment) bool { return e.Serial != nil }), nil
}

func (f *fakeStore) selectEquipment(keep func(models.Equipment) bool) []models.Equipment {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Equipment
	for _, e := range f.equipment {
		if keep(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].SerialValue() < out[b].SerialValue() })
	return out
}

func (f *fakeStore) ReplaceEquipmentFields(_ context.Context, id string, expect models.EquipmentStatus, in models.EquipmentFields) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.equipment[id]
	if !ok || e.Status != expect {
		return 0, nil
	}
	if in.Serial != nil && f.serialTaken(*in.Serial, id) {
		return 0, models.ErrDuplicateSerial
	}
	e.Name, e.Type, e.Serial = in.Name, in.Type, in.Serial
	e.Condition, e.Status, e.Location = in.Condition, in.Status, in.Location
	e.StockThreshold, e.RequiresApproval = in.StockThreshold, in.RequiresApproval
	f.equipment[id] = e
	return 1, nil
}

func (f *fakeStore) UpdateEquipmentStatus(_ context.Context, ids []string, from []models.EquipmentStatus, to models.EquipmentStatus, cond *models.Condition) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, id := range ids {
		e, ok := f.equipment[id]
		if !ok || (len(from) > 0 && !containsStatus(from, e.Status)) {
			continue
		}
		e.Status = to
		if cond != nil {
			e.Condition = *cond
		}
		f.equipment[id] = e
		n++
	}
	return n, nil
}

func containsStatus(list []models.EquipmentStatus, s models.EquipmentStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (f *fakeStore) SetStockThreshold(_ context.Context, ids []string, n int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var changed int64
	for _, id := range ids {
		if e, ok := f.equipment[id]; ok {
			e.StockThreshold = n
			f.equipment[id] = e
			changed++
		}
	}
	return changed, nil
}

func (f *fakeStore) CountOpenRequestsForEquipment(_ context.Context, id string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, r := range f.requests {
		if r.EquipmentID == id && (r.Status == models.RequestPending || r.Status == models.RequestApproved) {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) DeleteEquipment(_ context.Context, id string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.equipment[id]; !ok {
		return 0, nil
	}
	delete(f.equipment, id)
	return 1, nil
}

func (f *fakeStore) CreateRequest(_ context.Context, req *models.Request) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests[req.ID] = *req
	return nil
}

func (f *fakeStore) FindRequestByID(_ context.Context, id string) (*models.Request, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.requests[id]
	if !ok {
		return nil, models.ErrRequestNotFound
	}
	return &r, nil
}

func (f *fakeStore) ListRequests(_ context.Context, filter models.RequestFilter) ([]models.Request, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Request
	for _, r := range f.requests {
		if filter.UserID != "" && r.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out, nil
}

// update applies fn to request id when match holds and reports rows affected.
func (f *fakeStore) update(id string, match func(models.Request) bool, fn func(*models.Request) error) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.requests[id]
	if !ok || !match(r) {
		return 0, nil
	}
	if err := fn(&r); err != nil {
		return 0, err
	}
	f.requests[id] = r
	return 1, nil
}

func isPending(r models.Request) bool { return r.Status == models.RequestPending }

func (f *fakeStore) RecordManagerApproval(_ context.Context, id, actorID string, at time.Time) (int64, error) {
	return f.update(id, func(r models.Request) bool {
		return isPending(r) && r.ManagerApprovedBy == nil
	}, func(r *models.Request) error {
		r.ManagerApprovedBy, r.ManagerApprovedAt, r.UpdatedAt = &actorID, &at, at
		return nil
	})
}

func (f *fakeStore) MarkApproved(_ context.Context, id, actorID string, at, due time.Time) (int64, error) {
	return f.update(id, isPending, func(r *models.Request) error {
		for _, other := range f.requests {
			if other.ID != r.ID && other.EquipmentID == r.EquipmentID && other.Status == models.RequestApproved && other.ReturnedAt == nil {
				return models.ErrEquipmentUnavailable
			}
		}
		r.Status = models.RequestApproved
		r.ApprovedBy, r.ApprovedAt, r.DueDate, r.UpdatedAt = &actorID, &at, &due, at
		return nil
	})
}

func (f *fakeStore) MarkRejected(_ context.Context, id, actorID string, at time.Time) (int64, error) {
	return f.update(id, isPending, func(r *models.Request) error {
		r.Status = models.RequestRejected
		r.ApprovedBy, r.ApprovedAt, r.UpdatedAt = &actorID, &at, at
		return nil
	})
}

func (f *fakeStore) MarkReturned(_ context.Context, id string, status models.RequestStatus, at time.Time, cond models.Condition, notes string) (int64, error) {
	return f.update(id, func(r models.Request) bool {
		return r.Status == models.RequestApproved && r.ReturnedAt == nil
	}, func(r *models.Request) error {
		r.Status = status
		r.ReturnedAt, r.ReturnCondition, r.UpdatedAt = &at, &cond, at
		if notes != "" {
			r.Notes = notes
		}
		return nil
	})
}

func (f *fakeStore) AppendConditionLog(_ context.Context, l *models.ConditionLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, *l)
	return nil
}

func (f *fakeStore) ListOverdueRequests(_ context.Context, now time.Time) ([]models.OverdueRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.OverdueRequest
	for _, r := range f.requests {
		if r.Status != models.RequestApproved || r.ReturnedAt != nil || r.DueDate == nil || !r.DueDate.Before(now) {
			continue
		}
		out = append(out, models.OverdueRequest{
			RequestID:      r.ID,
			UserID:         r.UserID,
			Email:          f.users[r.UserID].Email,
			EquipmentName:  f.equipment[r.EquipmentID].Name,
			DueDate:        *r.DueDate,
			LastReminderAt: r.LastReminderAt,
		})
	}
	sort.Slice(out, func(a, b int) bool { return out[a].DueDate.Before(out[b].DueDate) })
	return out, nil
}

func (f *fakeStore) ClaimReminder(_ context.Context, id string, now, notBefore time.Time) (int64, error) {
	return f.update(id, func(r models.Request) bool {
		return r.LastReminderAt == nil || r.LastReminderAt.Before(notBefore)
	}, func(r *models.Request) error {
		r.LastReminderAt = &now
		return nil
	})
}

func (f *fakeStore) DashboardStats(_ context.Context, now time.Time) (models.DashboardStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var s models.DashboardStats
	for _, e := range f.equipment {
		s.TotalEquipment++
		switch e.Status {
		case models.StatusAvailable:
			s.Available++
		case models.StatusCheckedOut:
			s.CheckedOut++
		case models.StatusUnderRepair:
			s.UnderRepair++
		case models.StatusRetired:
			s.Retired++
		}
	}
	for _, r := range f.requests {
		switch {
		case r.Status == models.RequestPending:
			s.PendingRequests++
		case r.Status == models.RequestApproved && r.ReturnedAt == nil && r.DueDate != nil && r.DueDate.Before(now):
			s.OverdueRequests++
		}
	}
	return s, nil
}

func (f *fakeStore) UsageReport(_ context.Context) ([]models.UsageRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.UsageRow, 0, len(f.equipment))
	for _, e := range f.equipment {
		row := models.UsageRow{EquipmentID: e.ID, Name: e.Name, Type: e.Type, Serial: e.Serial}
		for _, r := range f.requests {
			if r.EquipmentID == e.ID && r.ApprovedAt != nil && r.Status != models.RequestRejected {
				row.TimesBorrowed++
			}
		}
		out = append(out, row)
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].TimesBorrowed != out[b].TimesBorrowed {
			return out[a].TimesBorrowed > out[b].TimesBorrowed
		}
		return out[a].Name < out[b].Name
	})
	return out, nil
}

type sentMessage struct {
	kind string
	to   []string
	text string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (n *fakeNotifier) record(kind string, to []string, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, sentMessage{kind: kind, to: to, text: text})
	return nil
}

func (n *fakeNotifier) messages(kind string) []sentMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []sentMessage
	for _, m := range n.sent {
		if m.kind == kind {
			out = append(out, m)
		}
	}
	return out
}

func (n *fakeNotifier) ApprovalGranted(_ context.Context, toEmail, equipmentName, approverName string) error {
	return n.record("approval", []string{toEmail}, equipmentName+" by "+approverName)
}

func (n *fakeNotifier) OverdueReminder(_ context.Context, toEmail, equipmentName string, due time.Time) error {
	return n.record("overdue", []string{toEmail}, equipmentName+" due "+due.Format(time.DateOnly))
}

func (n *fakeNotifier) LowStockAlert(_ context.Context, to []string, groupKey, name string, available, threshold int) error {
	return n.record("low_stock", to, groupKey+" "+name)
}
