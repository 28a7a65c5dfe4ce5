package payments

import (
	"context"
	"fmt"
	"lms/src/lib"
	"log"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

type paypalGateway struct{}

func NewPayPalGateway() Gateway {
	return &paypalGateway{}
}

func (g *paypalGateway) CreateIntent(ctx context.Context, amount decimal.Decimal, currency string, metadata map[string]string) (*ProviderReference, error) {
	pc := lib.GetPayPalClient()
	payload := map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []map[string]any{
			{
				"amount": map[string]any{
					"currency_code": strings.ToUpper(currency),
					"value":         amount.StringFixed(2),
				},
				"custom_id": metadata["userId"],
			},
		},
	}
	status, body, err := pc.Do(ctx, http.MethodPost, "/v2/checkout/orders", payload)
	if err != nil {
		log.Printf("[PayPal] Error creating Order: %s\n", err.Error())
		return nil, &GatewayError{Kind: GatewayRemoteUnavailable, Err: err}
	}
	if status != http.StatusCreated && status != http.StatusOK {
		return nil, classifyPayPalStatus(status, body)
	}
	return &ProviderReference{
		Reference:    gjson.GetBytes(body, "id").String(),
		ClientSecret: gjson.GetBytes(body, `links.#(rel=="approve").href`).String(),
	}, nil
}

// PayPal has no standalone customer resource for the Orders API; the
// subscriber is attached to the subscription itself, so the principal's email
// stands in as the customer reference.
func (g *paypalGateway) FindOrCreateCustomer(ctx context.Context, principal Principal) (string, error) {
	return principal.Email, nil
}

func (g *paypalGateway) CreateSubscription(ctx context.Context, customerRef string, planRef string, metadata map[string]string) (*ProviderReference, error) {
	pc := lib.GetPayPalClient()
	payload := map[string]any{
		"plan_id": planRef,
		"subscriber": map[string]any{
			"email_address": customerRef,
		},
		"custom_id": metadata["userId"],
	}
	status, body, err := pc.Do(ctx, http.MethodPost, "/v1/billing/subscriptions", payload)
	if err != nil {
		log.Printf("[PayPal] Error creating Subscription: %s\n", err.Error())
		return nil, &GatewayError{Kind: GatewayRemoteUnavailable, Err: err}
	}
	if status != http.StatusCreated && status != http.StatusOK {
		return nil, classifyPayPalStatus(status, body)
	}
	id := gjson.GetBytes(body, "id").String()
	return &ProviderReference{
		Reference:      id,
		SubscriptionID: id,
		ClientSecret:   gjson.GetBytes(body, `links.#(rel=="approve").href`).String(),
	}, nil
}

func (g *paypalGateway) FetchStatus(ctx context.Context, reference string) (*RemoteStatus, error) {
	pc := lib.GetPayPalClient()
	path := "/v2/checkout/orders/" + reference
	if strings.HasPrefix(reference, "I-") {
		path = "/v1/billing/subscriptions/" + reference
	}
	status, body, err := pc.Do(ctx, http.MethodGet, path, nil)
	if err != nil {
		log.Printf("[PayPal] Unable to retrieve %s: %s\n", reference, err.Error())
		return nil, &GatewayError{Kind: GatewayRemoteUnavailable, Err: err}
	}
	if status != http.StatusOK {
		return nil, classifyPayPalStatus(status, body)
	}

	if strings.HasPrefix(reference, "I-") {
		remoteStatus := gjson.GetBytes(body, "status").String()
		return &RemoteStatus{
			Status:    remoteStatus,
			Completed: remoteStatus == "ACTIVE",
			Amount:    parsePayPalAmount(gjson.GetBytes(body, "billing_info.last_payment.amount.value").String()),
			Currency:  gjson.GetBytes(body, "billing_info.last_payment.amount.currency_code").String(),
			Payer: map[string]any{
				"email": gjson.GetBytes(body, "subscriber.email_address").String(),
			},
		}, nil
	}

	remoteStatus := gjson.GetBytes(body, "status").String()
	amountValue := gjson.GetBytes(body, "purchase_units.0.payments.captures.0.amount.value").String()
	currencyCode := gjson.GetBytes(body, "purchase_units.0.payments.captures.0.amount.currency_code").String()
	if amountValue == "" {
		amountValue = gjson.GetBytes(body, "purchase_units.0.amount.value").String()
		currencyCode = gjson.GetBytes(body, "purchase_units.0.amount.currency_code").String()
	}
	return &RemoteStatus{
		Status:    remoteStatus,
		Completed: remoteStatus == "COMPLETED" || remoteStatus == "APPROVED",
		Amount:    parsePayPalAmount(amountValue),
		Currency:  currencyCode,
		Payer: map[string]any{
			"payer_id": gjson.GetBytes(body, "payer.payer_id").String(),
			"email":    gjson.GetBytes(body, "payer.email_address").String(),
		},
	}, nil
}

func classifyPayPalStatus(status int, body []byte) error {
	err := fmt.Errorf("paypal responded with status %d: %s", status, gjson.GetBytes(body, "message").String())
	if status >= 500 || status == 0 {
		return &GatewayError{Kind: GatewayRemoteUnavailable, Err: err}
	}
	return &GatewayError{Kind: GatewayRemoteRejected, Err: err}
}

func parsePayPalAmount(value string) decimal.Decimal {
	if value == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		log.Printf("[PayPal] Could not parse amount %q: %s\n", value, err.Error())
		return decimal.Zero
	}
	return d
}
