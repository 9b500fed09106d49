// Package fixtures provides small, fully worked aggregates — Account and
// TodoList — used by the core's own test suite to exercise the engine,
// storage, and view-dispatch packages end to end. They are not meant to be
// imported by applications; copy the pattern, not the package.
package fixtures

import (
	"github.com/lumenly/eventcore/pkg/domain"
)

// Account is a bank account aggregate: it can be opened, have funds
// deposited or withdrawn, and be closed. A negative deposit is treated as
// a withdrawal and vice versa, mirroring how a ledger reconciles signed
// adjustments.
type Account struct {
	ID      string
	Owner   string
	Balance int64
	Closed  bool
}

// Account events.

type AccountOpened struct {
	AccountID string
	Owner     string
}

func (AccountOpened) EventType() string { return "account.opened" }

type FundsDeposited struct {
	Amount int64
}

func (FundsDeposited) EventType() string { return "account.deposited" }

type FundsWithdrawn struct {
	Amount int64
}

func (FundsWithdrawn) EventType() string { return "account.withdrawn" }

type AccountClosed struct{}

func (AccountClosed) EventType() string { return "account.closed" }

// Account commands.

type OpenAccount struct {
	Owner string
}

type UpdateAccount struct {
	Deposit  *int64
	Withdraw *int64
	Close    bool
}

func (a *Account) AggregateType() string { return "account" }

// SetID assigns the aggregate id the engine generated before HandleCreate
// runs, so HandleCreate can stamp it onto the AccountOpened event.
func (a *Account) SetID(id string) { a.ID = id }

func (a *Account) Apply(event domain.Event) {
	switch e := event.(type) {
	case AccountOpened:
		a.ID = e.AccountID
		a.Owner = e.Owner
	case FundsDeposited:
		a.Balance += e.Amount
	case FundsWithdrawn:
		a.Balance -= e.Amount
	case AccountClosed:
		a.Closed = true
	}
}

// HandleCreate opens the account. The aggregate id is assigned by the
// engine before HandleCreate runs, via the create command's context.
func (a *Account) HandleCreate(cmd OpenAccount, _ any) ([]domain.Event, error) {
	if cmd.Owner == "" {
		return nil, domain.NewUserError("owner is required to open an account", "", nil)
	}
	return []domain.Event{AccountOpened{AccountID: a.ID, Owner: cmd.Owner}}, nil
}

// HandleUpdate deposits, withdraws, or closes the account. A deposit of a
// negative amount becomes a withdrawal of its absolute value and vice
// versa; withdrawing more than the balance is a user error.
func (a *Account) HandleUpdate(cmd UpdateAccount, _ any) ([]domain.Event, error) {
	if a.Closed {
		return nil, domain.NewUserError("account is closed", "", nil)
	}

	var events []domain.Event

	if cmd.Deposit != nil {
		amount := *cmd.Deposit
		if amount < 0 {
			events = append(events, FundsWithdrawn{Amount: -amount})
		} else if amount > 0 {
			events = append(events, FundsDeposited{Amount: amount})
		}
	}

	if cmd.Withdraw != nil {
		amount := *cmd.Withdraw
		if amount < 0 {
			events = append(events, FundsDeposited{Amount: -amount})
		} else if amount > 0 {
			if amount > a.Balance {
				return nil, domain.NewUserError("insufficient funds", "", map[string]any{
					"code":      "ACCOUNT_INSUFFICIENT_FUNDS",
					"balance":   a.Balance,
					"requested": amount,
				})
			}
			events = append(events, FundsWithdrawn{Amount: amount})
		}
	}

	if cmd.Close {
		events = append(events, AccountClosed{})
	}

	return events, nil
}
