package services

import (
	"context"
	"log"
	"time"

	"Gin_postgres_redis_equipment_tool/clock"
	"Gin_postgres_redis_equipment_tool/models"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

type ApprovalOutcome string

const (
	OutcomeApproved            ApprovalOutcome = "approved"
	OutcomeManagerStepRecorded ApprovalOutcome = "manager_step_recorded"
)

type ApprovalResult struct {
	Outcome ApprovalOutcome `json:"outcome"`
	Request *models.Request `json:"request"`
}

// Workflow is the borrow request state machine:
//
//	pending{managerApproved} -> approved -> returned | early_returned
//	pending{managerApproved} -> rejected
type Workflow struct {
	store    Store
	monitor  *StockMonitor
	cache    Cache
	notifier Notifier
	clock    clock.Clock
}

func NewWorkflow(store Store, monitor *StockMonitor, c Cache, n Notifier, clk clock.Clock) *Workflow {
	return &Workflow{store: store, monitor: monitor, cache: c, notifier: n, clock: clk}
}

type CreateRequestInput struct {
	EquipmentID string
	StartDate   time.Time
	EndDate     time.Time
	Notes       string
}

func (w *Workflow) Create(ctx context.Context, actor models.Actor, in CreateRequestInput) (*models.Request, error) {
	if in.StartDate.IsZero() || in.EndDate.IsZero() || in.EndDate.Before(in.StartDate) {
		return nil, models.ErrInvalidDates
	}
	e, err := w.store.FindEquipmentByID(ctx, in.EquipmentID)
	if err != nil {
		return nil, err
	}
	if e.Status != models.StatusAvailable {
		return nil, models.ErrEquipmentUnavailable
	}

	now := w.clock.Now()
	req := &models.Request{
		ID:          uuid.NewString(),
		UserID:      actor.ID,
		EquipmentID: e.ID,
		RequestedAt: now,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		Status:      models.RequestPending,
		Notes:       in.Notes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := w.store.CreateRequest(ctx, req); err != nil {
		return nil, err
	}
	w.cache.InvalidateAggregates(ctx)
	return req, nil
}

// Approve applies the approval policy for actor. It either records the
// manager step (request stays pending) or finalizes the approval and checks
// the unit out. Of two concurrent final approvals exactly one succeeds.
// A manager who recorded the manager step cannot also finalize the request
// (ErrForbidden); another manager or an admin has to.
func (w *Workflow) Approve(ctx context.Context, actor models.Actor, id string) (res ApprovalResult, err error) {
	ctx, span := tracer.Start(ctx, "Workflow.Approve")
	span.SetAttributes(attribute.String("request.id", id), attribute.String("actor.role", string(actor.Role)))
	defer func() { endSpan(span, err) }()

	if !actor.IsAdmin() && !actor.IsManager() {
		return res, models.ErrForbidden
	}
	req, err := w.store.FindRequestByID(ctx, id)
	if err != nil {
		return res, err
	}
	pending, ok := req.PendingState()
	if !ok {
		return res, models.ErrAlreadyProcessed
	}
	e, err := w.store.FindEquipmentByID(ctx, req.EquipmentID)
	if err != nil {
		return res, err
	}
	if e.Status != models.StatusAvailable {
		return res, models.ErrEquipmentUnavailable
	}

	group, err := w.monitor.GroupFor(ctx, e)
	if err != nil {
		return res, err
	}
	if group.LowStock() && !actor.IsAdmin() {
		return res, models.ErrAdminApprovalRequired
	}

	if e.RequiresApproval && !actor.IsAdmin() && !pending.ManagerApproved {
		if !actor.IsManager() {
			return res, models.ErrManagerApprovalRequiredFirst
		}
		now := w.clock.Now()
		n, err := w.store.RecordManagerApproval(ctx, req.ID, actor.ID, now)
		if err != nil {
			return res, err
		}
		if n == 0 {
			return res, models.ErrAlreadyProcessed
		}
		w.cache.InvalidateAggregates(ctx)

		req.ManagerApprovedBy = &actor.ID
		req.ManagerApprovedAt = &now
		req.UpdatedAt = now
		return ApprovalResult{Outcome: OutcomeManagerStepRecorded, Request: req}, nil
	}
	// The second signature must come from someone else.
	if e.RequiresApproval && !actor.IsAdmin() && pending.ManagerApproved && *req.ManagerApprovedBy == actor.ID {
		return res, models.ErrForbidden
	}

	now := w.clock.Now()
	due := req.EndDate
	err = w.store.WithTx(ctx, func(ctx context.Context) error {
		n, err := w.store.MarkApproved(ctx, req.ID, actor.ID, now, due)
		if err != nil {
			return err
		}
		if n == 0 {
			return models.ErrAlreadyProcessed
		}
		n, err = w.store.UpdateEquipmentStatus(ctx, []string{e.ID},
			[]models.EquipmentStatus{models.StatusAvailable}, models.StatusCheckedOut, nil)
		if err != nil {
			return err
		}
		if n == 0 {
			return models.ErrEquipmentUnavailable
		}
		return nil
	})
	if err != nil {
		return res, err
	}
	w.cache.InvalidateAggregates(ctx)

	req.Status = models.RequestApproved
	req.ApprovedBy = &actor.ID
	req.ApprovedAt = &now
	req.DueDate = &due
	req.UpdatedAt = now

	w.notifyApproval(ctx, req.UserID, actor.ID, e.Name)
	return ApprovalResult{Outcome: OutcomeApproved, Request: req}, nil
}

func (w *Workflow) notifyApproval(ctx context.Context, requesterID, approverID, equipmentName string) {
	requester, err := w.store.FindUserByID(ctx, requesterID)
	if err != nil {
		log.Printf("workflow: approval notice: requester %s: %v", requesterID, err)
		return
	}
	approverName := approverID
	if approver, err := w.store.FindUserByID(ctx, approverID); err == nil {
		approverName = approver.DisplayName
	}
	if err := w.notifier.ApprovalGranted(ctx, requester.Email, equipmentName, approverName); err != nil {
		log.Printf("workflow: approval notice to %s: %v", requester.Email, err)
	}
}

func (w *Workflow) Reject(ctx context.Context, actor models.Actor, id string) (*models.Request, error) {
	if !actor.IsAdmin() && !actor.IsManager() {
		return nil, models.ErrForbidden
	}
	req, err := w.store.FindRequestByID(ctx, id)
	if err != nil {
		return nil, err
	}
	now := w.clock.Now()
	n, err := w.store.MarkRejected(ctx, id, actor.ID, now)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, models.ErrAlreadyProcessed
	}
	w.cache.InvalidateAggregates(ctx)

	req.Status = models.RequestRejected
	req.ApprovedBy = &actor.ID
	req.ApprovedAt = &now
	req.UpdatedAt = now
	return req, nil
}

type ReturnInput struct {
	Condition models.Condition
	Notes     string
	Early     bool
}

// Return closes an approved request, puts the unit back into service with
// the returned condition and appends one condition log entry.
func (w *Workflow) Return(ctx context.Context, actor models.Actor, id string, in ReturnInput) (req *models.Request, err error) {
	ctx, span := tracer.Start(ctx, "Workflow.Return")
	span.SetAttributes(attribute.String("request.id", id), attribute.Bool("request.early", in.Early))
	defer func() { endSpan(span, err) }()

	if !in.Condition.Valid() {
		return nil, models.ErrInvalidCondition
	}
	req, err = w.store.FindRequestByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !actor.IsManager() && req.UserID != actor.ID {
		return nil, models.ErrForbidden
	}
	if req.Status != models.RequestApproved || req.ReturnedAt != nil {
		return nil, models.ErrNotApproved
	}

	status := models.RequestReturned
	if in.Early {
		status = models.RequestEarlyReturned
	}
	now := w.clock.Now()
	cond := in.Condition
	err = w.store.WithTx(ctx, func(ctx context.Context) error {
		n, err := w.store.MarkReturned(ctx, req.ID, status, now, cond, in.Notes)
		if err != nil {
			return err
		}
		if n == 0 {
			return models.ErrNotApproved
		}
		n, err = w.store.UpdateEquipmentStatus(ctx, []string{req.EquipmentID},
			[]models.EquipmentStatus{models.StatusCheckedOut}, models.StatusAvailable, &cond)
		if err != nil {
			return err
		}
		if n == 0 {
			// Retired or sent to repair while out: record the condition only.
			e, err := w.store.FindEquipmentByID(ctx, req.EquipmentID)
			if err != nil {
				return err
			}
			if _, err := w.store.UpdateEquipmentStatus(ctx, []string{e.ID},
				[]models.EquipmentStatus{e.Status}, e.Status, &cond); err != nil {
				return err
			}
		}
		return w.store.AppendConditionLog(ctx, &models.ConditionLog{
			ID:          uuid.NewString(),
			EquipmentID: req.EquipmentID,
			ActorID:     actor.ID,
			Condition:   cond,
			Notes:       in.Notes,
			CreatedAt:   now,
		})
	})
	if err != nil {
		return nil, err
	}
	w.cache.InvalidateAggregates(ctx)

	req.Status = status
	req.ReturnedAt = &now
	req.ReturnCondition = &cond
	if in.Notes != "" {
		req.Notes = in.Notes
	}
	req.UpdatedAt = now
	return req, nil
}

// Get returns a request. Plain users only see their own.
func (w *Workflow) Get(ctx context.Context, actor models.Actor, id string) (*models.Request, error) {
	req, err := w.store.FindRequestByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && !actor.IsManager() && req.UserID != actor.ID {
		return nil, models.ErrRequestNotFound
	}
	return req, nil
}

func (w *Workflow) List(ctx context.Context, actor models.Actor, f models.RequestFilter) ([]models.Request, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, models.ErrInvalidStatus
	}
	if !actor.IsAdmin() && !actor.IsManager() {
		f.UserID = actor.ID
	}
	out, err := w.store.ListRequests(ctx, f)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []models.Request{}
	}
	return out, nil
}
