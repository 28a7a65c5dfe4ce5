package main

import (
	"bytes"
	"context"
	"lms/src/db"
	"lms/src/middlewares"
	"lms/src/models"
	"lms/src/payments"
	"lms/src/types"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"github.com/tidwall/gjson"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type stubGateway struct {
	mu                sync.Mutex
	createIntentCalls int

	remoteCompleted bool
	remoteAmount    decimal.Decimal
}

func (g *stubGateway) CreateIntent(ctx context.Context, amount decimal.Decimal, currency string, metadata map[string]string) (*payments.ProviderReference, error) {
	g.mu.Lock()
	g.createIntentCalls++
	g.mu.Unlock()
	return &payments.ProviderReference{Reference: "pi_handler_123", ClientSecret: "pi_handler_123_secret"}, nil
}

func (g *stubGateway) FindOrCreateCustomer(ctx context.Context, principal payments.Principal) (string, error) {
	return "cus_handler_123", nil
}

func (g *stubGateway) CreateSubscription(ctx context.Context, customerRef string, planRef string, metadata map[string]string) (*payments.ProviderReference, error) {
	return &payments.ProviderReference{Reference: "sub_handler_123", SubscriptionID: "sub_handler_123"}, nil
}

func (g *stubGateway) FetchStatus(ctx context.Context, reference string) (*payments.RemoteStatus, error) {
	return &payments.RemoteStatus{
		Status:    "succeeded",
		Completed: g.remoteCompleted,
		Amount:    g.remoteAmount,
		Currency:  "USD",
		Payer:     map[string]any{"email": "payer@example.com"},
	}, nil
}

type stubLedger struct {
	mu   sync.Mutex
	rows map[string]*models.Transaction
}

func newStubLedger() *stubLedger {
	return &stubLedger{rows: map[string]*models.Transaction{}}
}

func (l *stubLedger) Create(txn *models.Transaction) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	txn.ID = uuid.New()
	cp := *txn
	l.rows[txn.ProviderReference] = &cp
	return nil
}

func (l *stubLedger) FindByProviderReference(ref string) (*models.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	txn, ok := l.rows[ref]
	if !ok {
		return nil, payments.ErrNotFound
	}
	cp := *txn
	return &cp, nil
}

func (l *stubLedger) Transition(ref string, newStatus types.TransactionStatus, updates *models.Transaction) (*models.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	txn, ok := l.rows[ref]
	if !ok {
		return nil, payments.ErrInvalidTransition
	}
	allowed := false
	for _, p := range models.TransitionPredecessors(newStatus) {
		if txn.Status == p {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, payments.ErrInvalidTransition
	}
	txn.Status = newStatus
	cp := *txn
	return &cp, nil
}

type PaymentHandlersTestSuite struct {
	suite.Suite
	Mock    sqlmock.Sqlmock
	Router  *gin.Engine
	Gateway *stubGateway
	Ledger  *stubLedger
}

func (s *PaymentHandlersTestSuite) SetupTest() {
	sqldb, mock, err := sqlmock.New()
	if err != nil {
		log.Fatalf("An error '%s' was not expected when opening a stub database connection", err)
	}
	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 sqldb,
		PreferSimpleProtocol: true,
	}), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		log.Fatalf("An error '%s' was not expected when opening gorm database", err)
	}
	db.NewDB(gormDB)
	s.Mock = mock

	s.Gateway = &stubGateway{}
	s.Ledger = newStubLedger()
	payments.NewEngine(&payments.Engine{
		Gateways: map[types.PaymentProvider]payments.Gateway{
			types.PROVIDER_STRIPE: s.Gateway,
		},
		Ledger: s.Ledger,
	})

	gin.SetMode(gin.TestMode)
	registerValidations()
	router := gin.New()
	authorized := router.Group(apiPrefix)
	authorized.Use(middlewares.AuthMiddleware)
	paymentHandlers(authorized)
	s.Router = router
}

func (s *PaymentHandlersTestSuite) sessionToken() string {
	claims := types.Claims{
		Email: "student@example.com",
		UID:   "uid-7",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "7",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims)
	signed, err := token.SignedString([]byte(os.Getenv("JWT_SECRET")))
	assert.NoError(s.T(), err)
	return signed
}

func (s *PaymentHandlersTestSuite) expectUserLookup() {
	rows := sqlmock.NewRows([]string{"id", "email", "uid", "role"}).
		AddRow(7, "student@example.com", "uid-7", "student")
	s.Mock.ExpectQuery(`SELECT (.+) FROM "users"`).WillReturnRows(rows)
}

func (s *PaymentHandlersTestSuite) TestInitiateWithoutTokenNeverReachesGateway() {
	body := []byte(`{"amount":49.99,"currency":"USD","kind":"one_time","provider":"stripe"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/initiate", bytes.NewReader(body))
	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, req)

	assert.Equal(s.T(), http.StatusUnauthorized, w.Code)
	assert.Equal(s.T(), 0, s.Gateway.createIntentCalls)
	assert.Empty(s.T(), s.Ledger.rows)
}

func (s *PaymentHandlersTestSuite) TestMalformedBearerHeaderIsRejected() {
	body := []byte(`{"amount":49.99,"currency":"USD","kind":"one_time","provider":"stripe"}`)
	for _, header := range []string{"Bearer", "Bearer ", "Token abc"} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/initiate", bytes.NewReader(body))
		req.Header.Set("Authorization", header)
		w := httptest.NewRecorder()
		s.Router.ServeHTTP(w, req)

		assert.Equal(s.T(), http.StatusUnauthorized, w.Code, "header %q", header)
	}
	assert.Equal(s.T(), 0, s.Gateway.createIntentCalls)
}

func (s *PaymentHandlersTestSuite) TestRecordPayPalPayerUpdatesUser() {
	s.Mock.ExpectBegin()
	s.Mock.ExpectExec(`UPDATE "users"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	s.Mock.ExpectCommit()

	recordPayPalPayer(7, types.Metadata{"payer_id": "QYR5Z8XDVJNXQ", "email": "payer@example.com"})
	assert.NoError(s.T(), s.Mock.ExpectationsWereMet())

	// Without a payer id nothing is written.
	recordPayPalPayer(7, types.Metadata{"email": "payer@example.com"})
	assert.NoError(s.T(), s.Mock.ExpectationsWereMet())
}

func (s *PaymentHandlersTestSuite) TestInitiateReturnsClientSecret() {
	s.expectUserLookup()

	body := []byte(`{"amount":49.99,"currency":"USD","kind":"one_time","provider":"stripe"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/initiate", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+s.sessionToken())
	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, req)

	assert.Equal(s.T(), http.StatusOK, w.Code)
	res := w.Body.String()
	assert.Equal(s.T(), "pi_handler_123_secret", gjson.Get(res, "client_secret").String())
	assert.NotEmpty(s.T(), gjson.Get(res, "transaction_id").String())

	txn, err := s.Ledger.FindByProviderReference("pi_handler_123")
	assert.NoError(s.T(), err)
	assert.Equal(s.T(), types.TRANSACTION_CREATED, txn.Status)
	assert.True(s.T(), txn.Amount.Equal(decimal.RequireFromString("49.99")))
	assert.Equal(s.T(), uint(7), txn.UserID)
}

func (s *PaymentHandlersTestSuite) TestInitiateRejectsNonPositiveAmount() {
	s.expectUserLookup()

	body := []byte(`{"amount":-1,"currency":"USD","kind":"one_time","provider":"stripe"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/initiate", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+s.sessionToken())
	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, req)

	assert.Equal(s.T(), http.StatusBadRequest, w.Code)
	assert.Equal(s.T(), 0, s.Gateway.createIntentCalls)
}

func (s *PaymentHandlersTestSuite) TestConfirmAmountMismatchIsReported() {
	s.Gateway.remoteCompleted = true
	s.Gateway.remoteAmount = decimal.RequireFromString("39.99")
	s.Ledger.rows["pi_handler_123"] = &models.Transaction{
		ID:                uuid.New(),
		UserID:            7,
		Provider:          types.PROVIDER_STRIPE,
		Kind:              types.PAYMENT_ONE_TIME,
		Currency:          "USD",
		Amount:            decimal.RequireFromString("49.99"),
		ProviderReference: "pi_handler_123",
		Status:            types.TRANSACTION_CREATED,
	}
	s.expectUserLookup()

	body := []byte(`{"provider":"stripe","reference":"pi_handler_123","amount":49.99}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/confirm", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+s.sessionToken())
	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, req)

	assert.Equal(s.T(), http.StatusUnprocessableEntity, w.Code)
	res := w.Body.String()
	assert.False(s.T(), gjson.Get(res, "success").Bool())
	assert.Equal(s.T(), "AmountMismatch", gjson.Get(res, "error").String())
	assert.Equal(s.T(), types.TRANSACTION_AMOUNT_MISMATCH, s.Ledger.rows["pi_handler_123"].Status)
}

func (s *PaymentHandlersTestSuite) TestConfirmUnknownReferenceIs404() {
	s.expectUserLookup()

	body := []byte(`{"provider":"stripe","reference":"pi_unknown","amount":49.99}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/confirm", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+s.sessionToken())
	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, req)

	assert.Equal(s.T(), http.StatusNotFound, w.Code)
}

func TestPaymentHandlersTestSuite(t *testing.T) {
	suite.Run(t, new(PaymentHandlersTestSuite))
}
