package models

import "time"

type EquipmentFilter struct {
	Status EquipmentStatus
	Type   string
	Q      string // substring of name or serial
}

// EquipmentFields is the full set of mutable equipment fields.
type EquipmentFields struct {
	Name             string          `json:"name"`
	Type             string          `json:"type"`
	Serial           *string         `json:"serial"`
	Condition        Condition       `json:"condition"`
	Status           EquipmentStatus `json:"status"`
	Location         string          `json:"location"`
	StockThreshold   int             `json:"stockThreshold"`
	RequiresApproval bool            `json:"requiresApproval"`
}

type RequestFilter struct {
	UserID string
	Status RequestStatus
}

// OverdueRequest is an approved, unreturned request past its due date,
// joined with what a reminder needs.
type OverdueRequest struct {
	RequestID      string     `json:"requestId"`
	UserID         string     `json:"userId"`
	Email          string     `json:"email"`
	EquipmentName  string     `json:"equipmentName"`
	DueDate        time.Time  `json:"dueDate"`
	LastReminderAt *time.Time `json:"lastReminderAt,omitempty"`
}

type DashboardStats struct {
	TotalEquipment  int64 `json:"totalEquipment"`
	Available       int64 `json:"available"`
	CheckedOut      int64 `json:"checkedOut"`
	UnderRepair     int64 `json:"underRepair"`
	Retired         int64 `json:"retired"`
	PendingRequests int64 `json:"pendingRequests"`
	OverdueRequests int64 `json:"overdueRequests"`
}

type UsageRow struct {
	EquipmentID   string  `json:"equipmentId"`
	Name          string  `json:"name"`
	Type          string  `json:"type"`
	Serial        *string `json:"serial,omitempty"`
	TimesBorrowed int64   `json:"timesBorrowed"`
}
