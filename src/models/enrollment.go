package models

import (
	"lms/src/types"
	"time"

	"github.com/google/uuid"
)

type Enrollment struct {
	ID            uint                   `gorm:"primarykey" json:"id"`
	UserID        uint                   `json:"user_id,omitempty"`
	CourseID      uint                   `json:"course_id,omitempty"`
	TransactionID *uuid.UUID             `json:"transaction_id,omitempty"`
	Status        types.EnrollmentStatus `gorm:"default:'pending'" json:"status,omitempty"`
	ExpiresAt     *time.Time             `json:"expires_at,omitempty"`

	User        User        `gorm:"foreignKey:user_id" json:"-"`
	Course      Course      `gorm:"foreignKey:course_id" json:"course,omitempty"`
	Transaction Transaction `gorm:"foreignKey:transaction_id" json:"-"`

	types.Timestamps
}
