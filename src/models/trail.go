package models

import (
	"lms/src/types"

	"github.com/google/uuid"
)

// TrailLog is the append-only audit trail. Payment reconciliation fans out a
// message for every transaction status change it observes, and the queue
// consumer lands each one here.
type TrailLog struct {
	ID        uuid.UUID `gorm:"primarykey;type:uuid;default:gen_random_uuid()" json:"id"`
	Type      string
	Initiator string
	Group     string
	Payload   types.JSONB `gorm:"type:jsonb"`

	types.Timestamps
}
