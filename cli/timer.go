package cli

import (
	"context"

	"github.com/gclaussn/go-bpmn-core/engine"
	"github.com/spf13/cobra"
)

func newTimerCmd(cli *Cli) *cobra.Command {
	c := cobra.Command{
		Use:         "timer",
		Short:       "Query and execute timers",
		RunE:        cli.help,
		Annotations: map[string]string{noEngineRequired: ""},
	}

	c.AddCommand(newTimerExecuteCmd(cli))
	c.AddCommand(newTimerListCmd(cli))

	return &c
}

func newTimerExecuteCmd(cli *Cli) *cobra.Command {
	var cmd engine.ExecuteTimersCmd

	c := cobra.Command{
		Use:   "execute",
		Short: "Trigger due timers",
		RunE: func(c *cobra.Command, _ []string) error {
			triggered, err := cli.e.ExecuteTimers(context.Background(), cmd)
			if err != nil {
				return err
			}

			c.Print(formatEventSubscriptions(triggered))
			return nil
		},
	}

	c.Flags().IntVar(&cmd.Limit, "limit", 100, "Maximum number of timers to trigger")

	return &c
}

func newTimerListCmd(cli *Cli) *cobra.Command {
	var cmd engine.GetEventSubscriptionsCmd

	c := cobra.Command{
		Use:   "list",
		Short: "List the event subscriptions of a process instance",
		RunE: func(c *cobra.Command, _ []string) error {
			subscriptions, err := cli.e.GetEventSubscriptions(context.Background(), cmd)
			if err != nil {
				return err
			}

			c.Print(formatEventSubscriptions(subscriptions))
			return nil
		},
	}

	c.Flags().StringVar(&cmd.ProcessInstanceId, "process-instance-id", "", "Process instance ID")

	c.MarkFlagRequired("process-instance-id")

	return &c
}
