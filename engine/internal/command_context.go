package internal

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"time"

	"github.com/gclaussn/go-bpmn-core/engine"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"
)

type commandContextKey struct{}

// CommandContextFrom returns the command context, which is bound to ctx, or nil.
func CommandContextFrom(ctx context.Context) *CommandContext {
	cc, _ := ctx.Value(commandContextKey{}).(*CommandContext)
	return cc
}

func newCommandContext(ctx context.Context, runtime *Runtime, command Command) *CommandContext {
	cc := CommandContext{
		runtime: runtime,
		command: command,
		logger:  runtime.Logger(),

		sessions:   make(map[SessionType]Session),
		attributes: make(map[string]any),

		time: runtime.Now(),
	}

	if outer := CommandContextFrom(ctx); outer != nil {
		cc.engineKeys = slices.Clone(outer.engineKeys)
	}

	cc.ctx = context.WithValue(ctx, commandContextKey{}, &cc)
	return &cc
}

// CommandContext is the resource scope of a single command. It owns the sessions, the first error, which occurred
// during the execution, close listeners, attributes and a result stack.
//
// A command context is never shared between commands, except nested commands of the same engine, which reuse it.
type CommandContext struct {
	ctx     context.Context
	runtime *Runtime
	command Command
	logger  glog.Logger

	sessions     map[SessionType]Session
	sessionOrder []Session

	err       error
	listeners []CloseListener

	attributes map[string]any
	results    []any
	engineKeys []string
	depth      int // number of commands, currently executed within the context

	time time.Time
}

// AddCloseListener registers a listener, keeping listeners sorted by ascending order.
// A listener, which does not allow multiple instances, is ignored, when a listener of the same type is registered.
func (cc *CommandContext) AddCloseListener(listener CloseListener) {
	if !listener.MultipleAllowed() {
		listenerType := reflect.TypeOf(listener)
		for _, registered := range cc.listeners {
			if reflect.TypeOf(registered) == listenerType {
				return
			}
		}
	}

	cc.listeners = append(cc.listeners, listener)
	slices.SortStableFunc(cc.listeners, func(a CloseListener, b CloseListener) int {
		return a.Order() - b.Order()
	})
}

func (cc *CommandContext) Attribute(name string) (any, bool) {
	v, ok := cc.attributes[name]
	return v, ok
}

// Close closes the command context in five phases:
//
//  1. if no error is recorded: run closing listeners and flush all sessions
//  2. if no error is recorded: run after sessions flush listeners
//  3. if an error is recorded: log it and run close failure listeners, otherwise run closed listeners
//  4. close all sessions
//  5. return the first recorded error
//
// Errors and panics of each phase are recorded and do not prevent subsequent phases.
// A recorded panic is re-panicked after all sessions are closed.
func (cc *CommandContext) Close() error {
	if cc.err == nil {
		cc.guard(func() error {
			for _, listener := range cc.listeners {
				if err := listener.Closing(cc); err != nil {
					return err
				}
			}
			return cc.flushSessions()
		})
	}

	if cc.err == nil {
		cc.guard(func() error {
			for _, listener := range cc.listeners {
				if err := listener.AfterSessionsFlush(cc); err != nil {
					return err
				}
			}
			return nil
		})
	}

	if cc.err != nil {
		cc.logError(cc.err)
		cc.guard(func() error {
			for _, listener := range cc.listeners {
				if err := listener.CloseFailure(cc); err != nil {
					return err
				}
			}
			return nil
		})
	} else {
		cc.guard(func() error {
			for _, listener := range cc.listeners {
				if err := listener.Closed(cc); err != nil {
					return err
				}
			}
			return nil
		})
	}

	for _, session := range cc.sessionOrder {
		cc.guard(session.Close)
	}

	return cc.rethrow()
}

func (cc *CommandContext) Command() Command {
	return cc.command
}

// Context returns the context, which is bound to this command context.
func (cc *CommandContext) Context() context.Context {
	return cc.ctx
}

func (cc *CommandContext) Err() error {
	return cc.err
}

// IsRootUsageOfCurrentEngine reports whether the current engine is used for the first time within a chain of nested
// engine calls.
func (cc *CommandContext) IsRootUsageOfCurrentEngine() bool {
	if len(cc.engineKeys) == 0 {
		return true
	}

	current := cc.engineKeys[len(cc.engineKeys)-1]
	for i := 0; i < len(cc.engineKeys)-1; i++ {
		if cc.engineKeys[i] == current {
			return false
		}
	}
	return true
}

func (cc *CommandContext) Logger() glog.Logger {
	return cc.logger
}

func (cc *CommandContext) Options() engine.Options {
	return cc.runtime.options
}

func (cc *CommandContext) Runtime() *Runtime {
	return cc.runtime
}

// Session returns the session of the given type, opening it on first access.
func (cc *CommandContext) Session(sessionType SessionType) (Session, error) {
	if session, ok := cc.sessions[sessionType]; ok {
		return session, nil
	}

	factory, ok := cc.runtime.sessionFactories[sessionType]
	if !ok {
		return nil, engine.Error{
			Type:   engine.ErrorBug,
			Title:  "failed to open session",
			Detail: fmt.Sprintf("no session factory configured for %s", sessionType),
		}
	}

	session, err := factory.OpenSession(cc)
	if err != nil {
		return nil, err
	}

	cc.sessions[sessionType] = session
	cc.sessionOrder = append(cc.sessionOrder, session)
	return session, nil
}

func (cc *CommandContext) SetAttribute(name string, value any) {
	cc.attributes[name] = value
}

// SetError records an error. Only the first error is kept, subsequent errors are logged as masked.
func (cc *CommandContext) SetError(err error) {
	if err == nil {
		return
	}
	if cc.err == nil {
		cc.err = err
		return
	}

	cc.logger.Error("masked error in command context", "command", commandName(cc.command), "error", err, "cause", cc.err)
}

// Time returns the time of the command, which is fixed during its execution.
func (cc *CommandContext) Time() time.Time {
	return cc.time
}

// Tx returns the transaction of the enclosing transaction context.
func (cc *CommandContext) Tx() Tx {
	if transactionContext := TransactionContextFrom(cc.ctx); transactionContext != nil {
		return transactionContext.tx
	}
	return nil
}

func (cc *CommandContext) Agenda() (*Agenda, error) {
	session, err := cc.Session(SessionAgenda)
	if err != nil {
		return nil, err
	}
	return session.(*Agenda), nil
}

func (cc *CommandContext) EntityCache() (*EntityCache, error) {
	session, err := cc.Session(SessionEntityCache)
	if err != nil {
		return nil, err
	}
	return session.(*EntityCache), nil
}

func (cc *CommandContext) ExecutionTree() (*ExecutionTree, error) {
	session, err := cc.Session(SessionExecutionTree)
	if err != nil {
		return nil, err
	}
	return session.(*ExecutionTree), nil
}

func (cc *CommandContext) flushSessions() error {
	// a flush may open further sessions
	for i := 0; i < len(cc.sessionOrder); i++ {
		if err := cc.sessionOrder[i].Flush(); err != nil {
			return err
		}
	}
	return nil
}

func (cc *CommandContext) guard(f func() error) {
	defer func() {
		if r := recover(); r != nil {
			cc.SetError(panicError{value: r})
		}
	}()

	cc.SetError(f())
}

func (cc *CommandContext) logError(err error) {
	name := commandName(cc.command)

	var engineErr engine.Error
	switch {
	case engine.IsOptimisticLockingError(err):
		cc.logger.Debug("optimistic locking conflict", "command", name, "error", err)
	case errors.As(err, &engineErr) && engineErr.IsLogged:
		return
	case errors.As(err, &engineErr) && engineErr.ReduceLogLevel:
		cc.logger.Info("command failed", "command", name, "error", err)
	default:
		cc.logger.Error("error while closing command context", "command", name, "error", err)
	}
}

func (cc *CommandContext) popEngineKey() {
	if len(cc.engineKeys) != 0 {
		cc.engineKeys = cc.engineKeys[:len(cc.engineKeys)-1]
	}
}

func (cc *CommandContext) popResult() any {
	if len(cc.results) == 0 {
		return nil
	}
	result := cc.results[len(cc.results)-1]
	cc.results = cc.results[:len(cc.results)-1]
	return result
}

func (cc *CommandContext) pushEngineKey(key string) {
	cc.engineKeys = append(cc.engineKeys, key)
}

func (cc *CommandContext) pushResult(result any) {
	cc.results = append(cc.results, result)
}

// resetError removes the recorded error and returns it.
func (cc *CommandContext) resetError() error {
	err := cc.err
	cc.err = nil
	return err
}

// rethrow returns the recorded error. Engine errors are returned as they are, other errors are wrapped.
func (cc *CommandContext) rethrow() error {
	err := cc.err
	if err == nil {
		return nil
	}

	if p, ok := err.(panicError); ok {
		panic(p.value)
	}

	var engineErr engine.Error
	if errors.As(err, &engineErr) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	name := commandName(cc.command)
	return goerrors.Wrap(err, goerrors.CategoryHandler, fmt.Sprintf("failed to execute command %s", name)).
		WithTextCode("COMMAND_FAILED").
		WithMetadata(map[string]any{"command": name})
}

// CloseListener is notified about the phases of closing a command context.
type CloseListener interface {
	// Closing is called before the sessions are flushed.
	Closing(*CommandContext) error
	// AfterSessionsFlush is called after the sessions have been flushed successfully.
	AfterSessionsFlush(*CommandContext) error
	// Closed is called, when the command succeeded.
	Closed(*CommandContext) error
	// CloseFailure is called, when the command or one of the previous phases failed.
	CloseFailure(*CommandContext) error

	// Order determines the position of the listener. Listeners are called in ascending order.
	Order() int
	// MultipleAllowed reports whether multiple listeners of the same type can be registered at one command context.
	MultipleAllowed() bool
}

// DefaultCloseListener provides no-op implementations, which can be embedded.
type DefaultCloseListener struct{}

func (DefaultCloseListener) Closing(*CommandContext) error            { return nil }
func (DefaultCloseListener) AfterSessionsFlush(*CommandContext) error { return nil }
func (DefaultCloseListener) Closed(*CommandContext) error             { return nil }
func (DefaultCloseListener) CloseFailure(*CommandContext) error       { return nil }
func (DefaultCloseListener) Order() int                               { return 0 }
func (DefaultCloseListener) MultipleAllowed() bool                    { return true }

type panicError struct {
	value any
}

func (e panicError) Error() string {
	return fmt.Sprintf("panic: %v", e.value)
}
