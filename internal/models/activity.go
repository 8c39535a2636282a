package models

import (
	"time"

	"gorm.io/datatypes"
)

// Batch audit actions.
const (
	ActivityBatchCreated       = "batch.created"
	ActivityBatchMembers       = "batch.members_updated"
	ActivityBatchSection       = "batch.section_toggled"
	ActivityBatchSectionFailed = "batch.section_toggle_failed"
)

// ActivityLog is one entry of the staff audit trail. ActorID is zero for
// changes made by the system (scheduled sync, for instance).
type ActivityLog struct {
	ID         uint              `gorm:"primaryKey" json:"id"`
	ActorID    uint              `gorm:"index" json:"actorId"`
	ActorRole  string            `gorm:"size:32;not null" json:"actorRole"`
	Action     string            `gorm:"size:64;not null;index" json:"action"`
	EntityType string            `gorm:"size:32;not null;index:idx_activity_entity" json:"entityType"`
	EntityID   uint              `gorm:"index:idx_activity_entity" json:"entityId"`
	Metadata   datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	CreatedAt  time.Time         `json:"createdAt"`
}
