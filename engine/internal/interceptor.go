package internal

import (
	"context"
	"fmt"
	"time"

	"github.com/gclaussn/go-bpmn-core/engine"
	"github.com/sethvargo/go-retry"
)

type interceptor struct {
	next CommandInterceptor
}

func (i *interceptor) SetNext(next CommandInterceptor) {
	i.next = next
}

// loggingInterceptor logs each command and records its outcome and duration.
type loggingInterceptor struct {
	interceptor
	runtime *Runtime
}

func (i *loggingInterceptor) Execute(ctx context.Context, config CommandConfig, command Command) (any, error) {
	name := commandName(command)
	logger := i.runtime.Logger()

	logger.Debug("executing command", "command", name)

	start := time.Now()
	result, err := i.next.Execute(ctx, config, command)
	duration := time.Since(start)

	outcome := "success"
	if err != nil {
		outcome = "failure"
	}

	metrics := i.runtime.metrics
	metrics.Commands.WithLabelValues(name, outcome).Inc()
	metrics.CommandDuration.WithLabelValues(name).Observe(duration.Seconds())

	logger.Debug("executed command", "command", name, "outcome", outcome, "duration", duration)
	return result, err
}

// retryInterceptor executes the downstream chain again, if a command failed due to a transient storage conflict.
// Each attempt runs in a new transaction and a new command context.
type retryInterceptor struct {
	interceptor
	runtime  *Runtime
	detector TransientErrorDetector
}

func (i *retryInterceptor) Execute(ctx context.Context, config CommandConfig, command Command) (any, error) {
	if config.ContextReusePossible && CommandContextFrom(ctx) != nil {
		return i.next.Execute(ctx, config, command) // nested command, retried by the outer command
	}

	options := i.runtime.options

	interval := options.RetryInterval
	if interval <= 0 {
		interval = time.Nanosecond // constant backoff must be positive
	}
	backoff := retry.WithMaxRetries(uint64(options.RetryLimit-1), retry.NewConstant(interval))

	attempt := 0
	return retry.DoValue(ctx, backoff, func(ctx context.Context) (any, error) {
		attempt++

		result, err := i.next.Execute(ctx, config, command)
		if err != nil && i.detector.IsTransient(err) {
			i.runtime.Logger().Debug("transient storage conflict", "command", commandName(command), "attempt", attempt, "error", err)
			return nil, retry.RetryableError(err)
		}
		return result, err
	})
}

// transactionInterceptor begins a transaction before and commits or rolls it back after the command context is closed.
type transactionInterceptor struct {
	interceptor
	runtime *Runtime
}

func (i *transactionInterceptor) Execute(ctx context.Context, config CommandConfig, command Command) (result any, err error) {
	if config.ContextReusePossible && TransactionContextFrom(ctx) != nil {
		return i.next.Execute(ctx, config, command)
	}

	tx, err := i.runtime.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	transactionContext := newTransactionContext(tx)
	ctx = context.WithValue(ctx, transactionContextKey{}, transactionContext)

	committed := false
	defer func() {
		if committed {
			return
		}

		r := recover()
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			i.runtime.Logger().Debug("failed to roll back transaction", "command", commandName(command), "error", rollbackErr)
		}
		i.fireLogged(transactionContext, TransactionRolledBack)
		if r != nil {
			panic(r)
		}
	}()

	result, err = i.next.Execute(ctx, config, command)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	committed = true
	i.fireLogged(transactionContext, TransactionCommitted)
	return result, nil
}

func (i *transactionInterceptor) fireLogged(transactionContext *TransactionContext, state TransactionState) {
	cc := transactionContext.cc
	if cc == nil {
		return
	}
	if err := transactionContext.fire(state, cc); err != nil {
		i.runtime.Logger().Error("transaction listener failed", "state", state, "error", err)
	}
}

// commandContextInterceptor creates or reuses a command context and guarantees that a created context is closed.
type commandContextInterceptor struct {
	interceptor
	runtime *Runtime
}

func (i *commandContextInterceptor) Execute(ctx context.Context, config CommandConfig, command Command) (any, error) {
	cc := CommandContextFrom(ctx)

	reused := cc != nil && config.ContextReusePossible && cc.runtime == i.runtime
	if reused && cc.err != nil {
		// the transaction of a failed context is rolled back
		return nil, engine.Error{
			Type:   engine.ErrorBug,
			Title:  "failed to execute command",
			Detail: fmt.Sprintf("command %s cannot reuse the context of command %s, which has failed", commandName(command), commandName(cc.command)),
		}
	}
	if !reused {
		cc = newCommandContext(ctx, i.runtime, command)
		if transactionContext := TransactionContextFrom(ctx); transactionContext != nil && transactionContext.cc == nil {
			transactionContext.cc = cc
		}
	}

	cc.pushEngineKey(i.runtime.options.EngineId)
	defer cc.popEngineKey()

	cc.depth++
	func() {
		defer func() {
			if r := recover(); r != nil {
				cc.SetError(panicError{value: r})
			}
		}()

		if _, err := i.next.Execute(cc.Context(), config, command); err != nil {
			cc.SetError(err)
		}
	}()
	cc.depth--

	if reused {
		// a nested command, which failed, must not mark the outer command as failed
		if err := cc.resetError(); err != nil {
			if p, ok := err.(panicError); ok {
				panic(p.value)
			}
			return nil, err
		}
		return cc.popResult(), nil
	}

	if err := cc.Close(); err != nil {
		return nil, err
	}
	return cc.popResult(), nil
}

// transactionContextInterceptor registers a close listener, which fires the committing and rolling back listeners
// of the transaction context.
type transactionContextInterceptor struct {
	interceptor
}

func (i *transactionContextInterceptor) Execute(ctx context.Context, config CommandConfig, command Command) (any, error) {
	cc := CommandContextFrom(ctx)
	if transactionContext := TransactionContextFrom(ctx); cc != nil && transactionContext != nil {
		cc.AddCloseListener(transactionCloseListener{transactionContext: transactionContext})
	}
	return i.next.Execute(ctx, config, command)
}

// commandInvoker executes the command and drains the agenda.
type commandInvoker struct {
	interceptor
	runtime *Runtime
}

func (i *commandInvoker) Execute(ctx context.Context, _ CommandConfig, command Command) (any, error) {
	cc := CommandContextFrom(ctx)
	if cc == nil {
		return nil, engine.Error{
			Type:   engine.ErrorBug,
			Title:  "failed to invoke command",
			Detail: "no command context bound",
		}
	}

	result, err := command.Execute(cc)
	if err != nil {
		return nil, err
	}

	// operations of nested commands are executed by the outermost command
	if session, ok := cc.sessions[SessionAgenda]; ok && cc.depth == 1 {
		agenda := session.(*Agenda)
		for !agenda.IsEmpty() {
			if err := i.runtime.operationRunner.Run(cc, agenda.next()); err != nil {
				return nil, err
			}
		}
	}

	if resultFunc, ok := result.(ResultFunc); ok {
		if result, err = resultFunc(cc); err != nil {
			return nil, err
		}
	}

	cc.pushResult(result)
	return result, nil
}
