package models

import "time"

// ConditionLog is an append-only record of a condition change, written once
// per return.
type ConditionLog struct {
	ID          string    `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	EquipmentID string    `gorm:"type:uuid;index;not null" json:"equipmentId"`
	ActorID     string    `gorm:"type:uuid" json:"actorId"`
	Condition   Condition `gorm:"size:20;not null" json:"condition"`
	Notes       string    `gorm:"type:text" json:"notes,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

func (ConditionLog) TableName() string { return "eq_condition_logs" }
