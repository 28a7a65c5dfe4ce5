package payments

import (
	"errors"
	"lms/src/db"
	"lms/src/models"
	"lms/src/types"
	"log"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Ledger is the local source of truth for payment attempts. Transition is the
// single point of mutual exclusion between racing confirmations.
type Ledger interface {
	Create(txn *models.Transaction) error
	FindByProviderReference(ref string) (*models.Transaction, error)
	Transition(ref string, newStatus types.TransactionStatus, updates *models.Transaction) (*models.Transaction, error)
}

type gormLedger struct{}

func NewGormLedger() Ledger {
	return &gormLedger{}
}

func (l *gormLedger) Create(txn *models.Transaction) error {
	db := db.GetDb()
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(txn).Error; err != nil {
			log.Printf("[Ledger] Error creating Transaction: %s\n", err.Error())
			return err
		}
		return nil
	})
}

func (l *gormLedger) FindByProviderReference(ref string) (*models.Transaction, error) {
	db := db.GetDb()
	var txn models.Transaction
	err := db.
		Model(&models.Transaction{}).
		Where("provider_reference = ?", ref).
		First(&txn).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &txn, nil
}

// Transition applies a conditional update keyed on the current status. A
// concurrent caller that lost the race sees zero affected rows and gets
// ErrInvalidTransition; the stored record is left untouched.
func (l *gormLedger) Transition(ref string, newStatus types.TransactionStatus, updates *models.Transaction) (*models.Transaction, error) {
	preds := models.TransitionPredecessors(newStatus)
	if len(preds) == 0 {
		return nil, ErrInvalidTransition
	}
	predValues := make([]any, 0, len(preds))
	for _, p := range preds {
		predValues = append(predValues, p)
	}
	if updates == nil {
		updates = &models.Transaction{}
	}
	updates.Status = newStatus

	db := db.GetDb()
	var txn models.Transaction
	err := db.Transaction(func(tx *gorm.DB) error {
		res := tx.
			Model(&models.Transaction{}).
			Where("provider_reference = ?", ref).
			Where(clause.IN{Column: "status", Values: predValues}).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInvalidTransition
		}
		return tx.
			Model(&models.Transaction{}).
			Where("provider_reference = ?", ref).
			First(&txn).
			Error
	})
	if err != nil {
		return nil, err
	}
	return &txn, nil
}
