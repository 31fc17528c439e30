package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gclaussn/go-bpmn-core/engine"
	"github.com/spf13/cobra"
)

func newRunCmd(cli *Cli) *cobra.Command {
	var (
		bpmnFileName  string
		bpmnProcessId string
		version       string
		variables     map[string]string
		complete      bool
		maxSteps      int
	)

	c := cobra.Command{
		Use:   "run",
		Short: "Create a process from a BPMN file and run an instance of it",
		Long: `Create a process from a BPMN file and run an instance of it.

With --complete, waiting executions are triggered and the engine time is advanced to due timers,
until the process instance is ended or the maximum number of steps is reached.`,
		RunE: func(c *cobra.Command, _ []string) error {
			ctx := context.Background()

			bpmnXml, err := readBpmnFile(bpmnFileName)
			if err != nil {
				return err
			}

			process, err := cli.e.CreateProcess(ctx, engine.CreateProcessCmd{
				BpmnProcessId: bpmnProcessId,
				BpmnXml:       bpmnXml,
				Version:       version,
				WorkerId:      cli.workerId,
			})
			if err != nil {
				return err
			}

			processInstance, err := cli.e.StartProcessInstance(ctx, engine.StartProcessInstanceCmd{
				BpmnProcessId: process.BpmnProcessId,
				Variables:     mapVariables(variables),
				Version:       process.Version,
				WorkerId:      cli.workerId,
			})
			if err != nil {
				return err
			}

			if complete {
				r := runner{e: cli.e, processInstanceId: processInstance.Id}
				if err := r.run(ctx, maxSteps); err != nil {
					return err
				}

				processInstance, err = cli.e.GetProcessInstance(ctx, engine.GetProcessInstanceCmd{ProcessInstanceId: processInstance.Id})
				if err != nil {
					return err
				}
			}

			executions, err := cli.e.GetExecutions(ctx, engine.GetExecutionsCmd{ProcessInstanceId: processInstance.Id})
			if err != nil {
				return err
			}

			variables, err := cli.e.GetVariables(ctx, engine.GetVariablesCmd{ExecutionId: processInstance.Id})
			if err != nil {
				return err
			}

			c.Print(formatProcessInstance(processInstance))
			c.Println()
			c.Print(formatExecutions(executions))
			c.Println()
			c.Print(formatVariables(variables))
			return nil
		},
	}

	c.Flags().StringVar(&bpmnFileName, "bpmn-file", "", "Path to a BPMN XML file")
	c.Flags().StringVar(&bpmnProcessId, "bpmn-process-id", "", "ID of the process element within the BPMN XML")
	c.Flags().StringVar(&version, "version", "1", "Process version")
	c.Flags().StringToStringVar(&variables, "variable", nil, "Variable to set, value as JSON")
	c.Flags().BoolVar(&complete, "complete", false, "Trigger waiting executions and due timers, until the process instance is ended")
	c.Flags().IntVar(&maxSteps, "max-steps", 100, "Maximum number of triggers, when completing a process instance")

	c.MarkFlagRequired("bpmn-file")
	c.MarkFlagRequired("bpmn-process-id")

	return &c
}

// runner drives a process instance to its end by triggering waiting executions and due timers.
type runner struct {
	e                 engine.Engine
	processInstanceId string
}

func (r runner) run(ctx context.Context, maxSteps int) error {
	for step := 0; step < maxSteps; step++ {
		processInstance, err := r.e.GetProcessInstance(ctx, engine.GetProcessInstanceCmd{ProcessInstanceId: r.processInstanceId})
		if err != nil {
			return err
		}
		if processInstance.IsEnded {
			return nil
		}

		ok, err := r.executeNextTimer(ctx)
		if err != nil {
			return err
		}
		if ok {
			continue
		}

		ok, err = r.triggerNextExecution(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("process instance %s is neither ended nor waiting", r.processInstanceId)
		}
	}

	return fmt.Errorf("process instance %s is not ended after %d steps", r.processInstanceId, maxSteps)
}

// executeNextTimer advances the engine time to the earliest due timer and triggers it.
func (r runner) executeNextTimer(ctx context.Context) (bool, error) {
	subscriptions, err := r.e.GetEventSubscriptions(ctx, engine.GetEventSubscriptionsCmd{ProcessInstanceId: r.processInstanceId})
	if err != nil {
		return false, err
	}

	var dueAt *time.Time
	for _, subscription := range subscriptions {
		if subscription.EventType != engine.EventTimer || subscription.DueAt == nil {
			continue
		}
		if dueAt == nil || subscription.DueAt.Before(*dueAt) {
			dueAt = subscription.DueAt
		}
	}

	if dueAt == nil {
		return false, nil
	}

	if err := r.e.SetTime(ctx, engine.SetTimeCmd{Time: *dueAt}); err != nil {
		var engineErr engine.Error
		if !errors.As(err, &engineErr) || engineErr.Type != engine.ErrorConflict {
			return false, err
		}
		// already due
	}

	triggered, err := r.e.ExecuteTimers(ctx, engine.ExecuteTimersCmd{Limit: 100})
	if err != nil {
		return false, err
	}
	return len(triggered) != 0, nil
}

func (r runner) triggerNextExecution(ctx context.Context) (bool, error) {
	executions, err := r.e.GetExecutions(ctx, engine.GetExecutionsCmd{ProcessInstanceId: r.processInstanceId})
	if err != nil {
		return false, err
	}

	for _, execution := range executions {
		if !execution.IsActive || execution.IsScope || execution.ParentId == "" {
			continue
		}

		return true, r.e.TriggerExecution(ctx, engine.TriggerExecutionCmd{ExecutionId: execution.Id})
	}

	return false, nil
}
