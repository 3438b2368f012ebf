// models/request.go
package models

import "time"

const RequestTable = "eq_requests"

type RequestStatus string

const (
	RequestPending       RequestStatus = "pending"
	RequestApproved      RequestStatus = "approved"
	RequestRejected      RequestStatus = "rejected"
	RequestReturned      RequestStatus = "returned"
	RequestEarlyReturned RequestStatus = "early_returned"
)

func (s RequestStatus) Valid() bool {
	switch s {
	case RequestPending, RequestApproved, RequestRejected, RequestReturned, RequestEarlyReturned:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s RequestStatus) Terminal() bool {
	return s == RequestRejected || s == RequestReturned || s == RequestEarlyReturned
}

// Request is a borrow transaction for a single equipment unit.
type Request struct {
	ID          string     `gorm:"type:uuid;primaryKey" json:"id"`
	UserID      string     `gorm:"type:uuid;index;not null" json:"userId"`
	EquipmentID string     `gorm:"type:uuid;index;not null" json:"equipmentId"`
	RequestedAt time.Time  `gorm:"not null" json:"requestedAt"`
	StartDate   time.Time  `gorm:"not null" json:"startDate"`
	EndDate     time.Time  `gorm:"not null" json:"endDate"`
	DueDate     *time.Time `gorm:"index" json:"dueDate,omitempty"`

	Status RequestStatus `gorm:"size:20;not null;default:'pending';index" json:"status"`

	// A non-null manager approval on a pending request is the
	// "manager step recorded" sub-state; see PendingState.
	ManagerApprovedBy *string    `gorm:"type:uuid" json:"managerApprovedBy,omitempty"`
	ManagerApprovedAt *time.Time `json:"managerApprovedAt,omitempty"`

	ApprovedBy *string    `gorm:"type:uuid" json:"approvedBy,omitempty"`
	ApprovedAt *time.Time `json:"approvedAt,omitempty"`

	ReturnedAt      *time.Time `gorm:"index" json:"returnedAt,omitempty"`
	ReturnCondition *Condition `gorm:"size:20" json:"returnCondition,omitempty"`
	Notes           string     `gorm:"type:text" json:"notes,omitempty"`

	LastReminderAt *time.Time `json:"-"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Request) TableName() string { return RequestTable }

// PendingState is the explicit form of the pending sub-state.
type PendingState struct {
	ManagerApproved bool
}

// PendingState returns the sub-state and true while the request is pending.
func (r *Request) PendingState() (PendingState, bool) {
	if r.Status != RequestPending {
		return PendingState{}, false
	}
	return PendingState{ManagerApproved: r.ManagerApprovedBy != nil}, true
}
