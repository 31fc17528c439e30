package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-logger/glog"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	DefaultEngineId = "default-engine" // Default ID of an engine, used when no specific ID is provided via [Options].
)

// An Engine creates and executes process instances, based on the BPMN 2.0 specification.
//
// Every method is executed as a command, which runs in its own transaction.
// A command that fails due to a transient storage conflict is retried, if retries are enabled.
type Engine interface {
	// CreateProcess creates a process, using a BPMN definition that is provided as XML.
	//
	// If a process with the same BPMN process ID and version exists, the BPMN XML is compared.
	// When the BPMN XML equals, the existing process is returned.
	// When the BPMN XML differs, an error of type [ErrorConflict] is returned.
	CreateProcess(context.Context, CreateProcessCmd) (Process, error)

	// DeleteProcessInstance cancels an active process instance by destroying all of its executions.
	DeleteProcessInstance(context.Context, DeleteProcessInstanceCmd) error

	// ExecuteTimers triggers the executions of due timer events.
	//
	// Due timers are acquired under an advisory lock, so that only one engine acquires them at a time.
	// Each timer is triggered in a separate command.
	ExecuteTimers(context.Context, ExecuteTimersCmd) ([]EventSubscription, error)

	// GetEventSubscriptions gets the pending event subscriptions of a process instance.
	GetEventSubscriptions(context.Context, GetEventSubscriptionsCmd) ([]EventSubscription, error)

	// GetExecutions gets the execution tree of a process instance, ordered by creation.
	GetExecutions(context.Context, GetExecutionsCmd) ([]Execution, error)

	// GetProcessInstance gets an active or ended process instance.
	GetProcessInstance(context.Context, GetProcessInstanceCmd) (ProcessInstance, error)

	// GetVariables gets the variables, which are visible from a specific execution.
	// Variables of inner scopes shadow variables of outer scopes.
	GetVariables(context.Context, GetVariablesCmd) (map[string]any, error)

	// SetTime increases the engine's time for testing purposes.
	SetTime(context.Context, SetTimeCmd) error

	// SetVariables sets or deletes variables of an active execution.
	SetVariables(context.Context, SetVariablesCmd) error

	// StartProcessInstance creates an instance of an existing process and runs it, until it waits or ends.
	StartProcessInstance(context.Context, StartProcessInstanceCmd) (ProcessInstance, error)

	// TriggerExecution signals an execution, which waits for a trigger - e.g. at a user task.
	TriggerExecution(context.Context, TriggerExecutionCmd) error

	// Shutdown shuts the engine down.
	Shutdown()
}

// Options are common configuration options that are shared between engine implementations.
type Options struct {
	EngineId            string              // ID of the engine.
	ExpressionEvaluator ExpressionEvaluator // Evaluates conditions, cardinalities and collections.
	InsertBatchSize     int                 // Maximum number of entities of the same type, inserted at once.
	LockPollInterval    time.Duration       // Interval between attempts to acquire an advisory lock.
	LockWaitTimeout     time.Duration       // Maximum time to wait for an advisory lock.
	Logger              glog.Logger         // Structured logger.
	RetryEnabled        bool                // Enables or disables the retry of commands, which failed due to a transient storage conflict.
	RetryInterval       time.Duration       // Constant backoff between two attempts.
	RetryLimit          int                 // Maximum number of attempts, including the first one.

	TimerExecutorEnabled  bool          // Enables or disables the periodic execution of due timers.
	TimerExecutorInterval time.Duration // Interval between two timer executions.
	TimerExecutorLimit    int           // Maximum number of due timers to trigger at once.

	MetricsRegisterer prometheus.Registerer // Optional registerer for command metrics. If nil, a private registry is used.
}

func (o Options) Validate() error {
	if strings.TrimSpace(o.EngineId) == "" {
		return errors.New("engine ID must not be empty or blank")
	}
	if o.ExpressionEvaluator == nil {
		return errors.New("expression evaluator must not be nil")
	}
	if o.InsertBatchSize < 1 {
		return errors.New("insert batch size must be greater than or equal to 1")
	}
	if o.InsertBatchSize > 1000 {
		return errors.New("insert batch size must be less than or equal to 1000")
	}
	if o.LockPollInterval <= 0 {
		return errors.New("lock poll interval must be greater than 0")
	}
	if o.LockWaitTimeout < o.LockPollInterval {
		return errors.New("lock wait timeout must be greater than or equal to the lock poll interval")
	}
	if o.Logger == nil {
		return errors.New("logger must not be nil")
	}
	if o.RetryInterval < 0 {
		return errors.New("retry interval must be greater than or equal to 0")
	}
	if o.RetryLimit < 1 {
		return errors.New("retry limit must be greater than or equal to 1")
	}
	if o.RetryLimit > 10 {
		return errors.New("retry limit must be less than or equal to 10")
	}
	if o.TimerExecutorEnabled {
		if o.TimerExecutorInterval <= 0 {
			return errors.New("timer executor interval must be greater than 0")
		}
		if o.TimerExecutorLimit < 1 {
			return errors.New("timer executor limit must be greater than or equal to 1")
		}
		if o.TimerExecutorLimit > 1000 {
			return errors.New("timer executor limit must be less than or equal to 1000")
		}
	}

	return nil
}

// Error is the error type of all engine operations.
type Error struct {
	Type   ErrorType
	Title  string
	Detail string
	Causes []ErrorCause

	IsLogged       bool // Indicates that the error has already been logged.
	ReduceLogLevel bool // Indicates an expected error, which is logged with a reduced level.
}

func (e Error) Error() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%s: %s: %s", e.Type, e.Title, e.Detail))

	for _, cause := range e.Causes {
		sb.WriteRune('\n')
		sb.WriteString(cause.String())
	}

	return sb.String()
}

// IsOptimisticLockingError reports whether err is an engine error of type [ErrorOptimisticLocking].
func IsOptimisticLockingError(err error) bool {
	var engineErr Error
	return errors.As(err, &engineErr) && engineErr.Type == ErrorOptimisticLocking
}

type ErrorType int

const (
	ErrorBug ErrorType = iota + 1
	ErrorConflict
	ErrorNotFound
	ErrorOptimisticLocking
	ErrorProcessModel
	ErrorValidation
)

func MapErrorType(s string) ErrorType {
	switch s {
	case "BUG":
		return ErrorBug
	case "CONFLICT":
		return ErrorConflict
	case "NOT_FOUND":
		return ErrorNotFound
	case "OPTIMISTIC_LOCKING":
		return ErrorOptimisticLocking
	case "PROCESS_MODEL":
		return ErrorProcessModel
	case "VALIDATION":
		return ErrorValidation
	default:
		return 0
	}
}

func (v ErrorType) String() string {
	switch v {
	case ErrorBug:
		return "BUG"
	case ErrorConflict:
		return "CONFLICT"
	case ErrorNotFound:
		return "NOT_FOUND"
	case ErrorOptimisticLocking:
		return "OPTIMISTIC_LOCKING"
	case ErrorProcessModel:
		return "PROCESS_MODEL"
	case ErrorValidation:
		return "VALIDATION"
	default:
		return "UNKNOWN"
	}
}

// A cause of a process model or validation [Error] like an unsupported BPMN element or an invalid command field.
type ErrorCause struct {
	Pointer string // A pointer, locating the invalid BPMN element, sequence flow or command field.
	Type    string // Type indicator.
	Detail  string // Human-readable, detailed information about the cause.
}

func (e ErrorCause) String() string {
	return fmt.Sprintf("%s: %s: %s", e.Type, e.Pointer, e.Detail)
}
