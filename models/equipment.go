// models/equipment.go
package models

import "time"

const EquipmentTable = "eq_equipment"

type EquipmentStatus string

const (
	StatusAvailable   EquipmentStatus = "available"
	StatusCheckedOut  EquipmentStatus = "checked_out"
	StatusUnderRepair EquipmentStatus = "under_repair"
	StatusRetired     EquipmentStatus = "retired"
)

func (s EquipmentStatus) Valid() bool {
	switch s {
	case StatusAvailable, StatusCheckedOut, StatusUnderRepair, StatusRetired:
		return true
	}
	return false
}

type Condition string

const (
	ConditionExcellent Condition = "excellent"
	ConditionGood      Condition = "good"
	ConditionFair      Condition = "fair"
	ConditionPoor      Condition = "poor"
)

func (c Condition) Valid() bool {
	switch c {
	case ConditionExcellent, ConditionGood, ConditionFair, ConditionPoor:
		return true
	}
	return false
}

// DefaultStockThreshold applies to units created without an explicit threshold
// and to groups whose members carry none.
const DefaultStockThreshold = 2

// Equipment is one physical unit. A batch of N is stored as N rows.
type Equipment struct {
	ID               string          `gorm:"type:uuid;primaryKey" json:"id"`
	Name             string          `gorm:"size:200;not null;index:idx_eq_name_type" json:"name"`
	Type             string          `gorm:"size:100;not null;index:idx_eq_name_type" json:"type"`
	Serial           *string         `gorm:"size:120;uniqueIndex" json:"serial,omitempty"`
	Condition        Condition       `gorm:"size:20;not null;default:'good'" json:"condition"`
	Status           EquipmentStatus `gorm:"size:20;not null;default:'available';index" json:"status"`
	Location         string          `gorm:"size:200" json:"location"`
	StockThreshold   int             `gorm:"not null" json:"stockThreshold"`
	RequiresApproval bool            `gorm:"not null;default:false" json:"requiresApproval"`
	QRCode           string          `gorm:"type:text" json:"qrCode,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

func (Equipment) TableName() string { return EquipmentTable }

// SerialValue returns the serial or "" when the unit has none.
func (e *Equipment) SerialValue() string {
	if e.Serial == nil {
		return ""
	}
	return *e.Serial
}
