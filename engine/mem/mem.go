package mem

import (
	"io"
	"time"

	"github.com/gclaussn/go-bpmn-core/engine"
	"github.com/gclaussn/go-bpmn-core/engine/internal"
)

func New(customizers ...func(*Options)) (engine.Engine, error) {
	options := NewOptions()
	for _, customizer := range customizers {
		customizer(&options)
	}

	if err := options.Validate(); err != nil {
		return nil, err
	}

	store, err := newStore()
	if err != nil {
		return nil, err
	}

	config := internal.RuntimeConfig{
		Options:     options.Common,
		Store:       store,
		LockManager: newLockManager(),
	}
	if options.LogOperations {
		config.OperationRunner = internal.LoggingOperationRunner{}
	}

	runtime, err := internal.NewRuntime(config)
	if err != nil {
		return nil, err
	}

	return &memEngine{Engine: internal.NewEngine(runtime)}, nil
}

func NewOptions() Options {
	return Options{
		Common: engine.Options{
			EngineId:            engine.DefaultEngineId,
			ExpressionEvaluator: engine.NewExpressionEvaluator(),
			InsertBatchSize:     100,
			LockPollInterval:    10 * time.Millisecond,
			LockWaitTimeout:     time.Second,
			Logger:              engine.NewLogger(io.Discard, "info"),
			RetryEnabled:        false,
			RetryInterval:       0,
			RetryLimit:          1,

			TimerExecutorEnabled:  false,
			TimerExecutorInterval: 60 * time.Second,
			TimerExecutorLimit:    10,
		},
	}
}

type Options struct {
	Common engine.Options // Common options

	LogOperations bool // Logs each executed agenda operation at debug level.
}

func (o Options) Validate() error {
	return o.Common.Validate()
}

type memEngine struct {
	*internal.Engine
}
