package lib

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// PayPalClient is a thin REST client over the Orders v2 and Billing APIs.
// There is no official Go SDK, so requests are built by hand and responses
// are parsed with gjson at the gateway boundary.
type PayPalClient struct {
	BaseURL  string
	ClientID string
	Secret   string
	HTTP     *http.Client

	token       string
	tokenExpiry time.Time
}

var paypalClient *PayPalClient

func GetPayPalClient() *PayPalClient {
	if paypalClient != nil {
		return paypalClient
	}
	base := os.Getenv("PAYPAL_API_BASE")
	if base == "" {
		base = "https://api-m.sandbox.paypal.com"
	}
	c := &PayPalClient{
		BaseURL:  base,
		ClientID: os.Getenv("PAYPAL_CLIENT_ID"),
		Secret:   os.Getenv("PAYPAL_CLIENT_SECRET"),
		HTTP:     &http.Client{Timeout: 30 * time.Second},
	}
	paypalClient = c
	return c
}

func NewPayPalClient(c *PayPalClient) {
	paypalClient = c
}

func PayPalInitialize() {
	if os.Getenv("PAYPAL_CLIENT_ID") == "" || os.Getenv("PAYPAL_CLIENT_SECRET") == "" {
		log.Fatalln("[PayPal] PAYPAL_CLIENT_ID/PAYPAL_CLIENT_SECRET are not configured")
	}
	GetPayPalClient()
	log.Println("[PayPal] client initialized")
}

// AccessToken exchanges client credentials for a bearer token. The token is
// kept on the client until shortly before expiry.
func (c *PayPalClient) AccessToken(ctx context.Context) (string, error) {
	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		return c.token, nil
	}
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.ClientID, c.Secret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	res, err := c.HTTP.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return "", err
	}
	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token exchange failed with status %d: %s", res.StatusCode, string(body))
	}
	c.token = gjson.GetBytes(body, "access_token").String()
	expiresIn := gjson.GetBytes(body, "expires_in").Int()
	c.tokenExpiry = time.Now().Add(time.Duration(expiresIn-60) * time.Second)
	return c.token, nil
}

// Do issues an authenticated JSON request and returns the raw status and body.
// Classification of failures into gateway error kinds happens in the caller.
func (c *PayPalClient) Do(ctx context.Context, method string, path string, payload any) (int, []byte, error) {
	token, err := c.AccessToken(ctx)
	if err != nil {
		return 0, nil, err
	}
	var reqBody io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		reqBody = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reqBody)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	res, err := c.HTTP.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return res.StatusCode, nil, err
	}
	return res.StatusCode, body, nil
}
