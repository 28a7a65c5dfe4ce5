package lib

import (
	"log"
	"os"

	"github.com/stripe/stripe-go/v82"
)

var stripeClient *stripe.Client

func GetStripeClient() *stripe.Client {
	if stripeClient != nil {
		return stripeClient
	}
	apiKey := os.Getenv("STRIPE_SECRET_KEY")
	sc := stripe.NewClient(apiKey)
	stripeClient = sc

	return sc
}

func NewStripeClient(c *stripe.Client) {
	stripeClient = c
}

// StripeInitialize fails the process when credentials are absent. Missing
// provider configuration is a startup error, never a per-request one.
func StripeInitialize() {
	if os.Getenv("STRIPE_SECRET_KEY") == "" {
		log.Fatalln("[Stripe] STRIPE_SECRET_KEY is not configured")
	}
	GetStripeClient()
	log.Println("[Stripe] client initialized")
}
