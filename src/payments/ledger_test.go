package payments

import (
	"lms/src/db"
	"lms/src/types"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newLedgerMockDB(t *testing.T) sqlmock.Sqlmock {
	sqldb, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("An error '%s' was not expected when opening a stub database connection", err)
	}
	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 sqldb,
		PreferSimpleProtocol: true,
	}), &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("An error '%s' was not expected when opening gorm database", err)
	}
	db.NewDB(gormDB)
	return mock
}

func TestTransitionLostRaceReturnsInvalidTransition(t *testing.T) {
	mock := newLedgerMockDB(t)
	ledger := NewGormLedger()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "transactions"`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := ledger.Transition("pi_test_123", types.TRANSACTION_COMPLETED, nil)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionToTerminalStateHasNoSuccessors(t *testing.T) {
	newLedgerMockDB(t)
	ledger := NewGormLedger()

	// created is never a transition target, so no SQL runs at all.
	_, err := ledger.Transition("pi_test_123", types.TRANSACTION_CREATED, nil)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestFindByProviderReferenceNotFound(t *testing.T) {
	mock := newLedgerMockDB(t)
	ledger := NewGormLedger()

	mock.ExpectQuery(`SELECT (.+) FROM "transactions"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := ledger.FindByProviderReference("pi_missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
