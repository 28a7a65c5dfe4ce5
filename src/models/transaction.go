package models

import (
	"lms/src/types"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transaction is the local ledger entry for a payment attempt. Rows are
// append-and-transition only: completed and amount_mismatch are terminal and
// nothing is ever deleted.
type Transaction struct {
	ID uuid.UUID `gorm:"primarykey;type:uuid;default:gen_random_uuid()" json:"id"`

	UserID            uint                    `json:"user_id,omitempty"`
	CourseID          *uint                   `json:"course_id,omitempty"`
	Provider          types.PaymentProvider   `json:"provider,omitempty"`
	Kind              types.PaymentKind       `json:"kind,omitempty"`
	Currency          string                  `json:"currency,omitempty"`
	Amount            decimal.Decimal         `gorm:"type:numeric(12,2)" json:"amount"`
	ProviderReference string                  `gorm:"uniqueIndex" json:"provider_reference,omitempty"`
	ClientSecret      *string                 `json:"-"`
	SubscriptionID    *string                 `json:"subscription_id,omitempty"`
	Status            types.TransactionStatus `gorm:"default:'created'" json:"status,omitempty"`
	Payer             types.Metadata          `gorm:"type:jsonb" json:"payer,omitempty"`

	User User `gorm:"foreignKey:user_id" json:"-"`

	types.Timestamps
}

// transitionPredecessors lists which statuses a transaction may move FROM for
// each target status. Terminal statuses have no outgoing edges.
var transitionPredecessors = map[types.TransactionStatus][]types.TransactionStatus{
	// pending_confirmation re-entry keeps confirmation retryable after a
	// transient provider outage; terminal states stay unreachable from it.
	types.TRANSACTION_PENDING_CONFIRM: {types.TRANSACTION_CREATED, types.TRANSACTION_PENDING_CONFIRM},
	types.TRANSACTION_COMPLETED:       {types.TRANSACTION_PENDING_CONFIRM},
	types.TRANSACTION_AMOUNT_MISMATCH: {types.TRANSACTION_PENDING_CONFIRM},
	types.TRANSACTION_FAILED:          {types.TRANSACTION_CREATED, types.TRANSACTION_PENDING_CONFIRM},
}

// TransitionPredecessors returns the statuses from which newStatus is
// reachable. An empty slice means the transition is never legal.
func TransitionPredecessors(newStatus types.TransactionStatus) []types.TransactionStatus {
	return transitionPredecessors[newStatus]
}
