package payments

import (
	"context"
	"lms/src/models"
	"lms/src/types"
	"log"
	"strconv"
)

// Engine orchestrates verifier, gateway and ledger. It is provider-agnostic:
// the provider named in the request selects the adapter.
type Engine struct {
	Gateways map[types.PaymentProvider]Gateway
	Ledger   Ledger
}

var engine *Engine

func GetEngine() *Engine {
	if engine != nil {
		return engine
	}
	engine = &Engine{
		Gateways: map[types.PaymentProvider]Gateway{
			types.PROVIDER_STRIPE: NewStripeGateway(),
			types.PROVIDER_PAYPAL: NewPayPalGateway(),
		},
		Ledger: NewGormLedger(),
	}
	return engine
}

func NewEngine(e *Engine) {
	engine = e
}

type InitiateResult struct {
	TransactionID  string              `json:"transaction_id"`
	Reference      string              `json:"reference"`
	ClientSecret   string              `json:"client_secret,omitempty"`
	SubscriptionID string              `json:"subscription_id,omitempty"`
	Transaction    *models.Transaction `json:"-"`
}

type ConfirmResult struct {
	TransactionID string         `json:"transaction_id"`
	Payer         types.Metadata `json:"payer,omitempty"`
}

// Initiate creates the provider-side object first and persists the ledger row
// only once the remote call is known to have completed, so a failed remote
// call leaves no orphaned ledger entry.
func (e *Engine) Initiate(ctx context.Context, principal Principal, req *types.InitiatePaymentRequestBody) (*InitiateResult, error) {
	if err := validateInitiate(req); err != nil {
		return nil, err
	}
	gw, ok := e.Gateways[req.Provider]
	if !ok {
		return nil, &ValidationError{Field: "provider", Msg: "unknown payment provider"}
	}

	metadata := map[string]string{
		"userId": uintString(principal.ID),
	}
	if req.CourseID != nil {
		metadata["courseId"] = uintString(*req.CourseID)
	}

	var ref *ProviderReference
	var err error
	switch req.Kind {
	case types.PAYMENT_ONE_TIME:
		ref, err = gw.CreateIntent(ctx, req.Amount, req.Currency, metadata)
	case types.PAYMENT_SUBSCRIPTION:
		var customer string
		customer, err = gw.FindOrCreateCustomer(ctx, principal)
		if err != nil {
			return nil, err
		}
		ref, err = gw.CreateSubscription(ctx, customer, *req.PlanID, metadata)
	}
	if err != nil {
		return nil, err
	}

	txn := &models.Transaction{
		UserID:            principal.ID,
		CourseID:          req.CourseID,
		Provider:          req.Provider,
		Kind:              req.Kind,
		Currency:          req.Currency,
		Amount:            req.Amount,
		ProviderReference: ref.Reference,
		Status:            types.TRANSACTION_CREATED,
	}
	if ref.ClientSecret != "" {
		txn.ClientSecret = &ref.ClientSecret
	}
	if ref.SubscriptionID != "" {
		txn.SubscriptionID = &ref.SubscriptionID
	}
	if err := e.Ledger.Create(txn); err != nil {
		return nil, err
	}
	log.Printf("[Reconcile] Transaction %s created for reference %s\n", txn.ID.String(), ref.Reference)
	return &InitiateResult{
		TransactionID:  txn.ID.String(),
		Reference:      ref.Reference,
		ClientSecret:   ref.ClientSecret,
		SubscriptionID: ref.SubscriptionID,
		Transaction:    txn,
	}, nil
}

// Confirm is the trust boundary: the outcome is always re-derived from the
// provider, never taken from the caller. Duplicate confirmations serialize on
// the ledger's conditional transition.
func (e *Engine) Confirm(ctx context.Context, provider types.PaymentProvider, reference string) (*ConfirmResult, error) {
	gw, ok := e.Gateways[provider]
	if !ok {
		return nil, &ValidationError{Field: "provider", Msg: "unknown payment provider"}
	}
	txn, err := e.Ledger.FindByProviderReference(reference)
	if err != nil {
		return nil, err
	}
	if _, err := e.Ledger.Transition(reference, types.TRANSACTION_PENDING_CONFIRM, nil); err != nil {
		return nil, err
	}

	remote, err := gw.FetchStatus(ctx, reference)
	if err != nil {
		return nil, err
	}
	if !remote.Completed {
		log.Printf("[Reconcile] reference %s rejected: remote status is %q\n", reference, remote.Status)
		if _, err := e.Ledger.Transition(reference, types.TRANSACTION_FAILED, nil); err != nil {
			return nil, err
		}
		return nil, ErrRemoteIncomplete
	}
	if !txn.Amount.Equal(remote.Amount) {
		// Distinct audit signal: a mismatch means tampering or a provider
		// discrepancy and must never be silently accepted.
		log.Printf("[Reconcile][AUDIT] amount mismatch on %s: recorded=%s remote=%s\n", reference, txn.Amount.String(), remote.Amount.String())
		if _, err := e.Ledger.Transition(reference, types.TRANSACTION_AMOUNT_MISMATCH, &models.Transaction{Payer: remote.Payer}); err != nil {
			return nil, err
		}
		return nil, ErrAmountMismatch
	}

	updated, err := e.Ledger.Transition(reference, types.TRANSACTION_COMPLETED, &models.Transaction{Payer: remote.Payer})
	if err != nil {
		return nil, err
	}
	log.Printf("[Reconcile] Transaction %s completed\n", updated.ID.String())
	return &ConfirmResult{
		TransactionID: updated.ID.String(),
		Payer:         remote.Payer,
	}, nil
}

func validateInitiate(req *types.InitiatePaymentRequestBody) error {
	if !req.Amount.IsPositive() {
		return &ValidationError{Field: "amount", Msg: "must be greater than zero"}
	}
	if !req.Amount.Equal(req.Amount.Round(2)) {
		return &ValidationError{Field: "amount", Msg: "must not exceed minor-unit precision"}
	}
	switch req.Kind {
	case types.PAYMENT_ONE_TIME:
	case types.PAYMENT_SUBSCRIPTION:
		if req.PlanID == nil || *req.PlanID == "" {
			return &ValidationError{Field: "plan_id", Msg: "required for subscriptions"}
		}
	default:
		return &ValidationError{Field: "kind", Msg: "unknown payment kind"}
	}
	return nil
}

func uintString(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}
