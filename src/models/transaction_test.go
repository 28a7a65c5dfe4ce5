package models

import (
	"lms/src/types"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransitionPredecessorsAreForwardOnly(t *testing.T) {
	// Terminal statuses are never a legal source for any transition.
	terminal := []types.TransactionStatus{
		types.TRANSACTION_COMPLETED,
		types.TRANSACTION_AMOUNT_MISMATCH,
	}
	for target := range transitionPredecessors {
		for _, pred := range TransitionPredecessors(target) {
			for _, term := range terminal {
				assert.NotEqual(t, term, pred, "terminal status %s must have no outgoing edge", term)
			}
		}
	}
}

func TestCreatedIsNeverATransitionTarget(t *testing.T) {
	assert.Empty(t, TransitionPredecessors(types.TRANSACTION_CREATED))
}

func TestCompletedReachableOnlyFromPendingConfirmation(t *testing.T) {
	preds := TransitionPredecessors(types.TRANSACTION_COMPLETED)
	assert.Equal(t, []types.TransactionStatus{types.TRANSACTION_PENDING_CONFIRM}, preds)
}
