package internal

import (
	"context"

	"github.com/gclaussn/go-bpmn-core/engine"
)

// NewEngine returns an engine, which executes each operation as a command of the given runtime.
// If enabled, the timer executor is started.
func NewEngine(runtime *Runtime) *Engine {
	e := Engine{runtime: runtime}

	if options := runtime.Options(); options.TimerExecutorEnabled {
		e.timerExecutor = NewTimerExecutor(runtime, options.TimerExecutorInterval, options.TimerExecutorLimit)
		e.timerExecutor.Execute()
	}

	return &e
}

// Engine implements [engine.Engine] on top of a runtime. Storage backends only provide the runtime.
type Engine struct {
	runtime       *Runtime
	timerExecutor *TimerExecutor
}

func (e *Engine) CreateProcess(ctx context.Context, cmd engine.CreateProcessCmd) (engine.Process, error) {
	if err := validateCmd("failed to create process", cmd); err != nil {
		return engine.Process{}, err
	}
	return ExecuteCommand[engine.Process](ctx, e.runtime.Executor(), e.defaultConfig(), createProcessCmd{cmd: cmd})
}

func (e *Engine) DeleteProcessInstance(ctx context.Context, cmd engine.DeleteProcessInstanceCmd) error {
	if err := validateCmd("failed to delete process instance", cmd); err != nil {
		return err
	}
	_, err := e.runtime.Executor().ExecuteWithConfig(ctx, e.defaultConfig(), deleteProcessInstanceCmd{cmd: cmd})
	return err
}

func (e *Engine) ExecuteTimers(ctx context.Context, cmd engine.ExecuteTimersCmd) ([]engine.EventSubscription, error) {
	if err := validateCmd("failed to execute timers", cmd); err != nil {
		return nil, err
	}
	return ExecuteTimers(ctx, e.runtime, cmd)
}

func (e *Engine) GetEventSubscriptions(ctx context.Context, cmd engine.GetEventSubscriptionsCmd) ([]engine.EventSubscription, error) {
	if err := validateCmd("failed to get event subscriptions", cmd); err != nil {
		return nil, err
	}
	return ExecuteCommand[[]engine.EventSubscription](ctx, e.runtime.Executor(), e.defaultConfig(), getEventSubscriptionsCmd{cmd: cmd})
}

func (e *Engine) GetExecutions(ctx context.Context, cmd engine.GetExecutionsCmd) ([]engine.Execution, error) {
	if err := validateCmd("failed to get executions", cmd); err != nil {
		return nil, err
	}
	return ExecuteCommand[[]engine.Execution](ctx, e.runtime.Executor(), e.defaultConfig(), getExecutionsCmd{cmd: cmd})
}

func (e *Engine) GetProcessInstance(ctx context.Context, cmd engine.GetProcessInstanceCmd) (engine.ProcessInstance, error) {
	if err := validateCmd("failed to get process instance", cmd); err != nil {
		return engine.ProcessInstance{}, err
	}
	return ExecuteCommand[engine.ProcessInstance](ctx, e.runtime.Executor(), e.defaultConfig(), getProcessInstanceCmd{cmd: cmd})
}

func (e *Engine) GetVariables(ctx context.Context, cmd engine.GetVariablesCmd) (map[string]any, error) {
	if err := validateCmd("failed to get variables", cmd); err != nil {
		return nil, err
	}
	return ExecuteCommand[map[string]any](ctx, e.runtime.Executor(), e.defaultConfig(), getVariablesCmd{cmd: cmd})
}

func (e *Engine) Runtime() *Runtime {
	return e.runtime
}

func (e *Engine) SetTime(_ context.Context, cmd engine.SetTimeCmd) error {
	if err := validateCmd("failed to set time", cmd); err != nil {
		return err
	}
	return e.runtime.SetTime(cmd.Time)
}

func (e *Engine) SetVariables(ctx context.Context, cmd engine.SetVariablesCmd) error {
	if err := validateCmd("failed to set variables", cmd); err != nil {
		return err
	}
	_, err := e.runtime.Executor().ExecuteWithConfig(ctx, e.defaultConfig(), setVariablesCmd{cmd: cmd})
	return err
}

func (e *Engine) Shutdown() {
	if e.timerExecutor != nil {
		e.timerExecutor.Stop()
	}
	e.runtime.Store().Close()
}

func (e *Engine) StartProcessInstance(ctx context.Context, cmd engine.StartProcessInstanceCmd) (engine.ProcessInstance, error) {
	if err := validateCmd("failed to start process instance", cmd); err != nil {
		return engine.ProcessInstance{}, err
	}
	return ExecuteCommand[engine.ProcessInstance](ctx, e.runtime.Executor(), e.defaultConfig(), startProcessInstanceCmd{cmd: cmd})
}

func (e *Engine) TriggerExecution(ctx context.Context, cmd engine.TriggerExecutionCmd) error {
	if err := validateCmd("failed to trigger execution", cmd); err != nil {
		return err
	}
	_, err := e.runtime.Executor().ExecuteWithConfig(ctx, e.defaultConfig(), triggerExecutionCmd{cmd: cmd})
	return err
}

func (e *Engine) defaultConfig() CommandConfig {
	return e.runtime.Executor().DefaultConfig()
}
