package models

import (
	"lms/src/types"

	"github.com/shopspring/decimal"
)

type Course struct {
	ID          uint            `gorm:"primarykey" json:"id"`
	Title       string          `json:"title,omitempty"`
	Slug        string          `gorm:"uniqueIndex" json:"slug,omitempty"`
	Description *string         `json:"description,omitempty"`
	Currency    string          `json:"currency,omitempty"`
	Price       decimal.Decimal `gorm:"type:numeric(12,2)" json:"price"`
	Recurring   bool            `json:"recurring,omitempty"`
	Interval    string          `json:"interval,omitempty"`
	Published   bool            `gorm:"default:false" json:"published,omitempty"`
	CreatedBy   uint            `json:"created_by,omitempty"`

	StripeProductId *string `json:"-"`
	StripePriceId   *string `json:"-"`
	PayPalPlanId    *string `json:"-"`

	Creator     User         `gorm:"foreignKey:created_by" json:"-"`
	Enrollments []Enrollment `gorm:"foreignKey:course_id" json:"-"`

	types.Timestamps
}
