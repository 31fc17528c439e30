package internal

import (
	"context"
	"errors"
	"fmt"

	"github.com/gclaussn/go-bpmn-core/engine"
	"github.com/jackc/pgx/v5"
)

const lockTimerAcquisition = "timer-acquisition"

// ExecuteTimers triggers due timers. Timers are acquired under an advisory lock, so that a timer is triggered by
// one engine only. Each timer is triggered in a separate command and transaction.
func ExecuteTimers(ctx context.Context, runtime *Runtime, cmd engine.ExecuteTimersCmd) ([]engine.EventSubscription, error) {
	options := runtime.Options()

	lock, err := PollLock(ctx, runtime.LockManager(), lockTimerAcquisition, options.LockPollInterval, options.LockWaitTimeout)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			runtime.Logger().Error("failed to release lock", "lock", lockTimerAcquisition, "error", err)
		}
	}()

	executor := runtime.Executor()

	due, err := ExecuteCommand[[]*EventSubscriptionEntity](ctx, executor, executor.DefaultConfig(), selectDueTimersCmd{limit: cmd.Limit})
	if err != nil {
		return nil, err
	}

	var (
		triggered []engine.EventSubscription
		errs      []error
	)
	for _, subscription := range due {
		result, err := ExecuteCommand[engine.EventSubscription](ctx, executor, executor.DefaultConfig().RequiresNew(), triggerTimerCmd{subscriptionId: subscription.Id})
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to trigger timer %s: %w", subscription.Id, err))
			continue
		}
		if result.Id != "" {
			triggered = append(triggered, result)
		}
	}

	return triggered, errors.Join(errs...)
}

type selectDueTimersCmd struct {
	limit int
}

func (c selectDueTimersCmd) CommandName() string {
	return "SelectDueTimers"
}

func (c selectDueTimersCmd) Execute(cc *CommandContext) (any, error) {
	return cc.Tx().EventSubscriptions().SelectDue(cc.Time(), c.limit)
}

// triggerTimerCmd triggers the execution of a single timer subscription.
// A subscription, which has been removed or is not due anymore, is skipped.
type triggerTimerCmd struct {
	subscriptionId string
}

func (c triggerTimerCmd) CommandName() string {
	return "TriggerTimer"
}

func (c triggerTimerCmd) Execute(cc *CommandContext) (any, error) {
	selected, err := cc.Tx().EventSubscriptions().Select(c.subscriptionId)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	tree, err := cc.ExecutionTree()
	if err != nil {
		return nil, err
	}

	if _, err := tree.Load(selected.ExecutionId); err == pgx.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	subscription, ok := tree.EventSubscription(c.subscriptionId)
	if !ok || subscription.EventType != engine.EventTimer {
		return nil, nil
	}
	if !subscription.DueAt.Valid || subscription.DueAt.Time.After(cc.Time()) {
		return nil, nil
	}

	agenda, err := cc.Agenda()
	if err != nil {
		return nil, err
	}

	touchProcessInstance(cc, tree, subscription.ProcessInstanceId)
	agenda.PlanTriggerExecution(subscription.ExecutionId, engine.EventTimer.String(), nil)

	return subscription.EventSubscription(), nil
}
