package fixtures

import (
	"testing"

	"github.com/lumenly/eventcore/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func amount(v int64) *int64 { return &v }

func TestAccountHandleCreateRequiresOwner(t *testing.T) {
	a := &Account{ID: "acc-1"}
	_, err := a.HandleCreate(OpenAccount{Owner: ""}, nil)
	require.Error(t, err)
}

func TestAccountDepositThenWithdraw(t *testing.T) {
	a := &Account{ID: "acc-1"}
	events, err := a.HandleCreate(OpenAccount{Owner: "alice"}, nil)
	require.NoError(t, err)
	for _, e := range events {
		a.Apply(e)
	}
	assert.Equal(t, "alice", a.Owner)

	events, err = a.HandleUpdate(UpdateAccount{Deposit: amount(100)}, nil)
	require.NoError(t, err)
	for _, e := range events {
		a.Apply(e)
	}
	assert.Equal(t, int64(100), a.Balance)

	events, err = a.HandleUpdate(UpdateAccount{Withdraw: amount(40)}, nil)
	require.NoError(t, err)
	for _, e := range events {
		a.Apply(e)
	}
	assert.Equal(t, int64(60), a.Balance)
}

func TestAccountWithdrawOnEmptyIsUserError(t *testing.T) {
	a := &Account{ID: "acc-1", Owner: "alice"}
	_, err := a.HandleUpdate(UpdateAccount{Withdraw: amount(10)}, nil)
	require.Error(t, err)

	coreErr, ok := err.(*domain.Error)
	require.True(t, ok)
	assert.Equal(t, "USER_ERROR", coreErr.Code)
	assert.Equal(t, "ACCOUNT_INSUFFICIENT_FUNDS", coreErr.Details["code"])
}

func TestAccountNegativeDepositBecomesWithdrawal(t *testing.T) {
	a := &Account{ID: "acc-1", Owner: "alice", Balance: 50}
	events, err := a.HandleUpdate(UpdateAccount{Deposit: amount(-20)}, nil)
	require.NoError(t, err)
	require.Len(t, events, 1)
	withdrawn, ok := events[0].(FundsWithdrawn)
	require.True(t, ok)
	assert.Equal(t, int64(20), withdrawn.Amount)
}

func TestAccountRejectsOperationsAfterClose(t *testing.T) {
	a := &Account{ID: "acc-1", Owner: "alice", Closed: true}
	_, err := a.HandleUpdate(UpdateAccount{Deposit: amount(10)}, nil)
	require.Error(t, err)
}
