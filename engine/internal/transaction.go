package internal

import (
	"context"
)

type transactionContextKey struct{}

// TransactionContextFrom returns the transaction context, which is bound to ctx, or nil.
func TransactionContextFrom(ctx context.Context) *TransactionContext {
	transactionContext, _ := ctx.Value(transactionContextKey{}).(*TransactionContext)
	return transactionContext
}

type TransactionState int

const (
	TransactionCommitting TransactionState = iota + 1
	TransactionCommitted
	TransactionRollingBack
	TransactionRolledBack
)

func (v TransactionState) String() string {
	switch v {
	case TransactionCommitting:
		return "committing"
	case TransactionCommitted:
		return "committed"
	case TransactionRollingBack:
		return "rolling back"
	case TransactionRolledBack:
		return "rolled back"
	default:
		return "unknown"
	}
}

// TransactionListener is notified about a transaction state. Errors of committed and rolled back listeners are logged.
type TransactionListener func(*CommandContext) error

// TransactionContext binds a storage transaction to the commands, which are executed within it.
type TransactionContext struct {
	tx        Tx
	cc        *CommandContext // first command context, created within the transaction
	listeners map[TransactionState][]TransactionListener
}

func newTransactionContext(tx Tx) *TransactionContext {
	return &TransactionContext{
		tx:        tx,
		listeners: make(map[TransactionState][]TransactionListener),
	}
}

// Tx returns the storage transaction.
func (c *TransactionContext) Tx() Tx {
	return c.tx
}

// AddTransactionListener registers a listener for a transaction state.
func (c *TransactionContext) AddTransactionListener(state TransactionState, listener TransactionListener) {
	c.listeners[state] = append(c.listeners[state], listener)
}

func (c *TransactionContext) fire(state TransactionState, cc *CommandContext) error {
	for _, listener := range c.listeners[state] {
		if err := listener(cc); err != nil {
			return err
		}
	}
	return nil
}

// AddTransactionListener registers a listener at the transaction context of a command context.
func AddTransactionListener(cc *CommandContext, state TransactionState, listener TransactionListener) {
	if transactionContext := TransactionContextFrom(cc.Context()); transactionContext != nil {
		transactionContext.AddTransactionListener(state, listener)
	}
}

// transactionCloseListener fires the committing and rolling back listeners of a transaction context.
type transactionCloseListener struct {
	DefaultCloseListener
	transactionContext *TransactionContext
}

func (l transactionCloseListener) AfterSessionsFlush(cc *CommandContext) error {
	return l.transactionContext.fire(TransactionCommitting, cc)
}

func (l transactionCloseListener) CloseFailure(cc *CommandContext) error {
	return l.transactionContext.fire(TransactionRollingBack, cc)
}

func (l transactionCloseListener) MultipleAllowed() bool {
	return false
}
