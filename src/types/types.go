package types

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Timestamps struct {
	CreatedAt time.Time      `gorm:"autoCreateTime:nano" json:"created_at,omitempty"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime:nano" json:"updated_at,omitempty"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty,omitnil"`
}

type JSONB map[string]any
type Metadata map[string]any

func (a JSONB) Value() (driver.Value, error) {
	valueString, err := json.Marshal(a)
	return string(valueString), err
}
func (a *JSONB) Scan(value any) error {
	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	return nil
}

func (a Metadata) Value() (driver.Value, error) {
	valueString, err := json.Marshal(a)
	return string(valueString), err
}
func (a *Metadata) Scan(value any) error {
	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	return nil
}

type Handler func(body string)

type TransactionStatus string

const (
	TRANSACTION_CREATED         TransactionStatus = "created"
	TRANSACTION_PENDING_CONFIRM TransactionStatus = "pending_confirmation"
	TRANSACTION_COMPLETED       TransactionStatus = "completed"
	TRANSACTION_AMOUNT_MISMATCH TransactionStatus = "amount_mismatch"
	TRANSACTION_FAILED          TransactionStatus = "failed"
)

type PaymentKind string

const (
	PAYMENT_ONE_TIME     PaymentKind = "one_time"
	PAYMENT_SUBSCRIPTION PaymentKind = "subscription"
)

type PaymentProvider string

const (
	PROVIDER_STRIPE PaymentProvider = "stripe"
	PROVIDER_PAYPAL PaymentProvider = "paypal"
)

type EnrollmentStatus string

const (
	ENROLLMENT_PENDING  EnrollmentStatus = "pending"
	ENROLLMENT_ACTIVE   EnrollmentStatus = "active"
	ENROLLMENT_CANCELED EnrollmentStatus = "canceled"
)

type APIEnv string

const (
	Local      APIEnv = "local"
	Test       APIEnv = "test"
	Production APIEnv = "production"
)

type InitiatePaymentRequestBody struct {
	Amount   decimal.Decimal `json:"amount" binding:"required,positiveamount"`
	Currency string          `json:"currency" binding:"required,len=3"`
	Kind     PaymentKind     `json:"kind" binding:"required,oneof=one_time subscription"`
	Provider PaymentProvider `json:"provider" binding:"required,oneof=stripe paypal"`
	PlanID   *string         `json:"plan_id,omitempty"`
	CourseID *uint           `json:"course_id,omitempty"`
}

type ConfirmPaymentRequestBody struct {
	Provider  PaymentProvider `json:"provider" binding:"required,oneof=stripe paypal"`
	Reference string          `json:"reference" binding:"required"`
	Amount    decimal.Decimal `json:"amount" binding:"required"`
}

type CreateCourseRequestBody struct {
	Title       string          `json:"title" binding:"required"`
	Description string          `json:"description,omitempty"`
	Currency    string          `json:"currency" binding:"required,len=3"`
	Price       decimal.Decimal `json:"price" binding:"required,positiveamount"`
	Recurring   bool            `json:"recurring,omitempty"`
	Interval    string          `json:"interval,omitempty" binding:"omitempty,oneof=month year"`
}

type RegisterUserRequestBody struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email" binding:"required,email"`
}
