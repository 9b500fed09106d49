package domain

// Aggregate is the fold contract every event-sourced aggregate type
// implements on its state struct, typically with a pointer receiver so
// Apply can mutate in place.
//
// Example:
//
//	type Account struct {
//	    ID      string
//	    Owner   string
//	    Balance int64
//	}
//
//	func (a *Account) AggregateType() string { return "account" }
//
//	func (a *Account) Apply(event Event) {
//	    switch e := event.(type) {
//	    case AccountOpened:
//	        a.ID, a.Owner = e.AccountID, e.Owner
//	    case FundsDeposited:
//	        a.Balance += e.Amount
//	    }
//	}
type Aggregate interface {
	// AggregateType names the journal/table/topic partition this
	// aggregate's events live under, e.g. "account".
	AggregateType() string

	// Apply folds a single event into the receiver's state. Apply must
	// not generate new events or return an error: by the time an event
	// reaches Apply it is already a committed fact.
	Apply(event Event)
}

// CommandHandler extends Aggregate with the two entry points a command
// engine drives: handling the command that brings an aggregate into
// existence, and handling commands against an aggregate that already
// exists. C and U are the create- and update-command types for this
// aggregate — typically small closed sums of command structs, switched on
// by concrete type inside the handler body, the same way Event is.
type CommandHandler[C any, U any] interface {
	Aggregate

	// HandleCreate validates a creation command against services and
	// returns the events that establish the aggregate's initial state.
	// It runs before any event has been applied, so it must not read
	// the receiver's zero-valued fields as if they were real state.
	HandleCreate(cmd C, services any) ([]Event, error)

	// HandleUpdate validates a command against the aggregate's current
	// state (already folded up to the observed version) and returns the
	// events it produces. An empty, nil-error result means the command
	// was a no-op.
	HandleUpdate(cmd U, services any) ([]Event, error)
}
