package payments

import (
	"context"
	"errors"
	"fmt"
	"lms/src/types"

	"github.com/shopspring/decimal"
)

// Principal is the authenticated caller. It is produced by the auth
// middlewares and never persisted here.
type Principal struct {
	ID    uint
	Email string
	UID   string
}

// ProviderReference carries the opaque identifiers a provider hands back when
// a payment object is created. Reference is the id used for all later lookups.
type ProviderReference struct {
	Reference      string
	ClientSecret   string
	SubscriptionID string
}

// RemoteStatus is what FetchStatus re-derives from the provider. Confirmation
// never trusts client-supplied amounts or statuses, only this.
type RemoteStatus struct {
	Status    string
	Completed bool
	Amount    decimal.Decimal
	Currency  string
	Payer     types.Metadata
}

// Gateway is the capability contract each payment provider adapter implements.
// Amounts cross this boundary in decimal currency units; conversion to the
// provider's minor unit happens inside the adapter only.
type Gateway interface {
	CreateIntent(ctx context.Context, amount decimal.Decimal, currency string, metadata map[string]string) (*ProviderReference, error)
	FindOrCreateCustomer(ctx context.Context, principal Principal) (string, error)
	CreateSubscription(ctx context.Context, customerRef string, planRef string, metadata map[string]string) (*ProviderReference, error)
	FetchStatus(ctx context.Context, reference string) (*RemoteStatus, error)
}

type GatewayErrorKind string

const (
	GatewayNotConfigured     GatewayErrorKind = "NotConfigured"
	GatewayRemoteRejected    GatewayErrorKind = "RemoteRejected"
	GatewayRemoteUnavailable GatewayErrorKind = "RemoteUnavailable"
)

// GatewayError is the only error shape adapters let escape. Raw transport
// errors are reclassified before they reach the engine.
type GatewayError struct {
	Kind GatewayErrorKind
	Err  error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Err.Error())
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Msg)
}

var (
	ErrNotFound          = errors.New("no transaction recorded for this reference")
	ErrInvalidTransition = errors.New("transaction status does not allow this transition")
	ErrAmountMismatch    = errors.New("remote amount does not match the recorded amount")
	ErrRemoteIncomplete  = errors.New("remote payment is not completed")
)
