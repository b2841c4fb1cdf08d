package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestExpectedStep(t *testing.T) {
	tx := &Transaction{Status: StatusInProgress}
	for step := 1; step <= StepCount; step++ {
		tx.ProgressPercentage = ProgressFor(step - 1)
		assert.Equal(t, step, tx.ExpectedStep())
	}

	tx.Status = StatusPending
	assert.Equal(t, 0, tx.ExpectedStep())

	tx.Status = StatusCompleted
	tx.ProgressPercentage = 100
	assert.Equal(t, 0, tx.ExpectedStep())
}

func TestCanApproveAndDecline(t *testing.T) {
	tx := &Transaction{Status: StatusPending}
	assert.NoError(t, tx.CanApprove())
	assert.NoError(t, tx.CanDecline())

	for _, s := range []TxStatus{StatusInProgress, StatusCompleted, StatusDeclined} {
		tx.Status = s
		assert.ErrorIs(t, tx.CanApprove(), ErrInvalidState, "status %s", s)
		assert.ErrorIs(t, tx.CanDecline(), ErrInvalidState, "status %s", s)
	}
}

func TestCodeMatches(t *testing.T) {
	tx := &Transaction{}
	assert.False(t, tx.CodeMatches(1, "12345678"), "no codes minted yet")

	tx.Codes = &VerificationCodes{"11111111", "22222222", "33333333", "44444444"}
	assert.True(t, tx.CodeMatches(2, "22222222"))
	assert.False(t, tx.CodeMatches(2, "11111111"))
	assert.False(t, tx.CodeMatches(0, "11111111"))
	assert.False(t, tx.CodeMatches(5, "11111111"))
}

func TestEffectOf(t *testing.T) {
	from := uuid.New()
	to := uuid.New()
	tx := &Transaction{FromAccountID: &from, ToAccountID: &to}

	// Only slot 2 debits and only slot 4 credits.
	assert.Equal(t, StepEffect{}, tx.EffectOf(1))
	assert.Equal(t, &from, tx.EffectOf(2).DebitFrom)
	assert.Nil(t, tx.EffectOf(2).CreditTo)
	assert.Equal(t, StepEffect{}, tx.EffectOf(3))
	assert.Equal(t, &to, tx.EffectOf(4).CreditTo)
	assert.Nil(t, tx.EffectOf(4).DebitFrom)
}

func TestEffectOfNilAccounts(t *testing.T) {
	// Admin credit has no source; PayID to an unknown alias has no destination.
	tx := &Transaction{}
	assert.Nil(t, tx.EffectOf(2).DebitFrom)
	assert.Nil(t, tx.EffectOf(4).CreditTo)
}

func TestImpliesDebit(t *testing.T) {
	from := uuid.New()
	for _, typ := range []TxType{TxTransfer, TxBillPay, TxPayID, TxWithdrawal} {
		tx := &Transaction{Type: typ, FromAccountID: &from}
		assert.True(t, tx.ImpliesDebit(), "type %s", typ)
	}
	assert.False(t, (&Transaction{Type: TxTransfer}).ImpliesDebit(), "no source account")
	assert.False(t, (&Transaction{Type: TxAdminCredit, FromAccountID: &from}).ImpliesDebit())
	assert.False(t, (&Transaction{Type: TxDeposit}).ImpliesDebit())
}

func TestProgressValues(t *testing.T) {
	want := []int{0, 25, 50, 75, 100}
	for step := 0; step <= StepCount; step++ {
		assert.Equal(t, want[step], ProgressFor(step))
	}
}
