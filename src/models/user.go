package models

import (
	"lms/src/types"
	"time"
)

type User struct {
	ID            uint            `gorm:"primarykey" json:"id"`
	Name          string          `json:"name,omitempty"`
	Email         string          `gorm:"uniqueIndex" json:"email,omitempty"`
	Role          string          `gorm:"default:'student'" json:"role,omitempty"`
	UID           string          `json:"uid,omitempty"`
	EmailVerified bool            `json:"email_verified,omitempty"`
	LastActive    *time.Time      `json:"last_active,omitempty"`
	Metadata      *types.Metadata `gorm:"type:jsonb"`

	StripeCustomerId *string `json:"-"`
	PayPalPayerId    *string `json:"-"`

	Enrollments []Enrollment `gorm:"foreignKey:user_id" json:"enrollments,omitempty"`

	types.Timestamps
}
