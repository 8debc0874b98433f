package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type FaultAction string

const (
	FaultActionReported   FaultAction = "REPORTED"
	FaultActionAssigned   FaultAction = "ASSIGNED"
	FaultActionUnassigned FaultAction = "UNASSIGNED"
	FaultActionDone       FaultAction = "DONE"
	FaultActionRevisit    FaultAction = "NEEDS_REVISIT"
	FaultActionDeleted    FaultAction = "DELETED"
)

type FaultStatusLog struct {
	ID          uuid.UUID    `gorm:"type:varchar(36);primaryKey" json:"id"`
	FaultID     uuid.UUID    `gorm:"type:varchar(36);not null" json:"fault_id"`
	StationName string       `gorm:"type:text;not null" json:"station"`
	Description string       `gorm:"type:text;not null" json:"description"`
	Action      FaultAction  `gorm:"type:varchar(32);not null" json:"action"`
	OldStatus   *FaultStatus `gorm:"type:varchar(32)" json:"old_status"`
	NewStatus   FaultStatus  `gorm:"type:varchar(32);not null" json:"new_status"`
	Technician  string       `gorm:"type:text" json:"technician,omitempty"`
	Note        string       `gorm:"type:text" json:"note,omitempty"`
	ChangedBy   *uuid.UUID   `gorm:"type:varchar(36)" json:"changed_by"`
	CreatedAt   time.Time    `gorm:"autoCreateTime" json:"created_at"`
}

func (FaultStatusLog) TableName() string {
	return "fault_status_log"
}

func (l *FaultStatusLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
