package payments

import (
	"context"
	"errors"
	"lms/src/lib"
	"log"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v82"
)

type stripeGateway struct{}

func NewStripeGateway() Gateway {
	return &stripeGateway{}
}

func (g *stripeGateway) CreateIntent(ctx context.Context, amount decimal.Decimal, currency string, metadata map[string]string) (*ProviderReference, error) {
	sc := lib.GetStripeClient()
	params := &stripe.PaymentIntentCreateParams{
		Amount:   stripe.Int64(minorUnits(amount)),
		Currency: stripe.String(strings.ToLower(currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentCreateAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}
	pi, err := sc.V1PaymentIntents.Create(ctx, params)
	if err != nil {
		log.Printf("[Stripe] Error creating PaymentIntent: %s\n", err.Error())
		return nil, classifyStripeError(err)
	}
	return &ProviderReference{
		Reference:    pi.ID,
		ClientSecret: pi.ClientSecret,
	}, nil
}

func (g *stripeGateway) FindOrCreateCustomer(ctx context.Context, principal Principal) (string, error) {
	sc := lib.GetStripeClient()
	list := sc.V1Customers.List(ctx, &stripe.CustomerListParams{
		Email: stripe.String(principal.Email),
	})
	for cus, err := range list {
		if err != nil {
			log.Printf("[Stripe] Expected a list but got error: %s\n", err.Error())
			break
		}
		return cus.ID, nil
	}
	params := &stripe.CustomerCreateParams{
		Email: stripe.String(principal.Email),
	}
	params.AddMetadata("id", uintString(principal.ID))
	cus, err := sc.V1Customers.Create(ctx, params)
	if err != nil {
		log.Printf("[Stripe] Error creating Customer: %s\n", err.Error())
		return "", classifyStripeError(err)
	}
	return cus.ID, nil
}

func (g *stripeGateway) CreateSubscription(ctx context.Context, customerRef string, planRef string, metadata map[string]string) (*ProviderReference, error) {
	sc := lib.GetStripeClient()
	params := &stripe.SubscriptionCreateParams{
		Customer: stripe.String(customerRef),
		Items: []*stripe.SubscriptionCreateItemParams{
			{Price: stripe.String(planRef)},
		},
		PaymentBehavior: stripe.String("default_incomplete"),
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}
	sub, err := sc.V1Subscriptions.Create(ctx, params)
	if err != nil {
		log.Printf("[Stripe] Error creating Subscription: %s\n", err.Error())
		return nil, classifyStripeError(err)
	}
	return &ProviderReference{
		Reference:      sub.ID,
		SubscriptionID: sub.ID,
	}, nil
}

func (g *stripeGateway) FetchStatus(ctx context.Context, reference string) (*RemoteStatus, error) {
	sc := lib.GetStripeClient()
	if strings.HasPrefix(reference, "sub_") {
		sub, err := sc.V1Subscriptions.Retrieve(ctx, reference, nil)
		if err != nil {
			log.Printf("[Stripe] Unable to retrieve Subscription %s: %s\n", reference, err.Error())
			return nil, classifyStripeError(err)
		}
		amount := decimal.Zero
		if len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
			item := sub.Items.Data[0]
			amount = fromMinorUnits(item.Price.UnitAmount * item.Quantity)
		}
		return &RemoteStatus{
			Status:    string(sub.Status),
			Completed: sub.Status == stripe.SubscriptionStatusActive || sub.Status == stripe.SubscriptionStatusTrialing,
			Amount:    amount,
			Currency:  strings.ToUpper(string(sub.Currency)),
			Payer:     map[string]any{"customer_id": sub.Customer.ID},
		}, nil
	}
	pi, err := sc.V1PaymentIntents.Retrieve(ctx, reference, nil)
	if err != nil {
		log.Printf("[Stripe] Unable to retrieve PaymentIntent %s: %s\n", reference, err.Error())
		return nil, classifyStripeError(err)
	}
	payer := map[string]any{}
	if pi.Customer != nil {
		payer["customer_id"] = pi.Customer.ID
	}
	if pi.ReceiptEmail != "" {
		payer["email"] = pi.ReceiptEmail
	}
	return &RemoteStatus{
		Status:    string(pi.Status),
		Completed: pi.Status == stripe.PaymentIntentStatusSucceeded,
		Amount:    fromMinorUnits(pi.Amount),
		Currency:  strings.ToUpper(string(pi.Currency)),
		Payer:     payer,
	}, nil
}

func classifyStripeError(err error) error {
	var serr *stripe.Error
	if errors.As(err, &serr) {
		if serr.HTTPStatusCode >= 500 {
			return &GatewayError{Kind: GatewayRemoteUnavailable, Err: err}
		}
		return &GatewayError{Kind: GatewayRemoteRejected, Err: err}
	}
	return &GatewayError{Kind: GatewayRemoteUnavailable, Err: err}
}

// Minor-unit conversion happens here and nowhere else; the engine and the
// ledger always see decimal currency units.
func minorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).IntPart()
}

func fromMinorUnits(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}
