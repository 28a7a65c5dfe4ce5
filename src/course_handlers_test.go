package main

import (
	"encoding/json"
	"lms/src/lib"
	"lms/src/models"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/tidwall/gjson"
)

func TestProvisionPayPalPlanCreatesProductAndPlan(t *testing.T) {
	var planBody []byte
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"A21AATest","token_type":"Bearer","expires_in":32400}`))
	})
	mux.HandleFunc("/v1/catalogs/products", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"PROD-8RH76478UA","name":"Go for Backend Engineers"}`))
	})
	mux.HandleFunc("/v1/billing/plans", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		planBody, _ = json.Marshal(body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"P-5ML4271244454362WXNWU5NQ","status":"ACTIVE"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	lib.NewPayPalClient(&lib.PayPalClient{
		BaseURL:  srv.URL,
		ClientID: "client-id",
		Secret:   "client-secret",
		HTTP:     &http.Client{Timeout: 5 * time.Second},
	})

	course := models.Course{
		Title:     "Go for Backend Engineers",
		Currency:  "USD",
		Price:     decimal.RequireFromString("9.99"),
		Recurring: true,
		Interval:  "month",
	}
	planId, err := provisionPayPalPlan(&course)
	assert.NoError(t, err)
	assert.Equal(t, "P-5ML4271244454362WXNWU5NQ", *planId)

	assert.Equal(t, "PROD-8RH76478UA", gjson.GetBytes(planBody, "product_id").String())
	assert.Equal(t, "MONTH", gjson.GetBytes(planBody, "billing_cycles.0.frequency.interval_unit").String())
	assert.Equal(t, "9.99", gjson.GetBytes(planBody, "billing_cycles.0.pricing_scheme.fixed_price.value").String())
}
