package internal

import (
	"fmt"
	"time"

	"github.com/gclaussn/go-bpmn-core/engine"
	"github.com/goliatone/go-logger/glog"
	"github.com/sasha-s/go-deadlock"
)

// RuntimeConfig configures the runtime of an engine.
type RuntimeConfig struct {
	Options     engine.Options
	Store       Store
	LockManager LockManager

	// Extra interceptors, executed between the transaction context interceptor and the invoker.
	CommandInterceptors []CommandInterceptor
	// Runs agenda operations. If nil, the [DefaultOperationRunner] is used.
	OperationRunner OperationRunner
	// Session factories, which replace or extend the default session factories.
	SessionFactories []SessionFactory
}

// Runtime holds the engine wide state: options, storage, caches, metrics and the command executor.
type Runtime struct {
	options          engine.Options
	store            Store
	lockManager      LockManager
	sessionFactories map[SessionType]SessionFactory
	operationRunner  OperationRunner

	processCache *ProcessCache
	metrics      *Metrics
	executor     *CommandExecutor

	mutex      deadlock.RWMutex
	timeOffset time.Duration
}

func NewRuntime(config RuntimeConfig) (*Runtime, error) {
	if err := config.Options.Validate(); err != nil {
		return nil, err
	}

	r := Runtime{
		options:          config.Options,
		store:            config.Store,
		lockManager:      config.LockManager,
		sessionFactories: make(map[SessionType]SessionFactory),
		operationRunner:  config.OperationRunner,

		processCache: NewProcessCache(),
		metrics:      NewMetrics(config.Options.MetricsRegisterer),
	}

	if r.operationRunner == nil {
		r.operationRunner = DefaultOperationRunner{}
	}

	for _, factory := range defaultSessionFactories() {
		r.sessionFactories[factory.SessionType()] = factory
	}
	for _, factory := range config.SessionFactories {
		r.sessionFactories[factory.SessionType()] = factory
	}

	interceptors := []CommandInterceptor{&loggingInterceptor{runtime: &r}}
	if detector, ok := config.Store.(TransientErrorDetector); ok && config.Options.RetryEnabled {
		interceptors = append(interceptors, &retryInterceptor{runtime: &r, detector: detector})
	}
	interceptors = append(interceptors,
		&transactionInterceptor{runtime: &r},
		&commandContextInterceptor{runtime: &r},
		&transactionContextInterceptor{},
	)
	interceptors = append(interceptors, config.CommandInterceptors...)
	interceptors = append(interceptors, &commandInvoker{runtime: &r})

	r.executor = NewCommandExecutor(DefaultCommandConfig(), interceptors...)

	return &r, nil
}

func (r *Runtime) Executor() *CommandExecutor {
	return r.executor
}

func (r *Runtime) LockManager() LockManager {
	return r.lockManager
}

func (r *Runtime) Logger() glog.Logger {
	return r.options.Logger
}

func (r *Runtime) Metrics() *Metrics {
	return r.metrics
}

// Now returns the current time of the engine: UTC, truncated to milliseconds and shifted by the time offset.
func (r *Runtime) Now() time.Time {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	return time.Now().Add(r.timeOffset).UTC().Truncate(time.Millisecond)
}

func (r *Runtime) Options() engine.Options {
	return r.options
}

func (r *Runtime) ProcessCache() *ProcessCache {
	return r.processCache
}

func (r *Runtime) Store() Store {
	return r.store
}

// SetTime shifts the engine time. A time before the current engine time is rejected.
func (r *Runtime) SetTime(t time.Time) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	old := time.Now().Add(r.timeOffset).UTC().Truncate(time.Millisecond)
	new := t.UTC().Truncate(time.Millisecond)

	sub := new.Sub(old)
	if sub.Milliseconds() < 0 {
		return engine.Error{
			Type:  engine.ErrorConflict,
			Title: "failed to set time",
			Detail: fmt.Sprintf(
				"time %s is before engine time %s",
				new.Format(time.RFC3339),
				old.Format(time.RFC3339),
			),
		}
	}

	r.timeOffset = r.timeOffset + sub
	return nil
}
