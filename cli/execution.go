package cli

import (
	"context"

	"github.com/gclaussn/go-bpmn-core/engine"
	"github.com/spf13/cobra"
)

func newExecutionCmd(cli *Cli) *cobra.Command {
	c := cobra.Command{
		Use:         "execution",
		Short:       "Query and trigger executions",
		RunE:        cli.help,
		Annotations: map[string]string{noEngineRequired: ""},
	}

	c.AddCommand(newExecutionListCmd(cli))
	c.AddCommand(newExecutionTriggerCmd(cli))

	return &c
}

func newExecutionListCmd(cli *Cli) *cobra.Command {
	var cmd engine.GetExecutionsCmd

	c := cobra.Command{
		Use:   "list",
		Short: "List the execution tree of a process instance",
		RunE: func(c *cobra.Command, _ []string) error {
			executions, err := cli.e.GetExecutions(context.Background(), cmd)
			if err != nil {
				return err
			}

			c.Print(formatExecutions(executions))
			return nil
		},
	}

	c.Flags().StringVar(&cmd.ProcessInstanceId, "process-instance-id", "", "Process instance ID")

	c.MarkFlagRequired("process-instance-id")

	return &c
}

func newExecutionTriggerCmd(cli *Cli) *cobra.Command {
	var (
		variables map[string]string

		cmd engine.TriggerExecutionCmd
	)

	c := cobra.Command{
		Use:   "trigger",
		Short: "Trigger an execution, which waits for a trigger",
		RunE: func(c *cobra.Command, _ []string) error {
			cmd.Variables = mapVariables(variables)

			return cli.e.TriggerExecution(context.Background(), cmd)
		},
	}

	c.Flags().StringVar(&cmd.ExecutionId, "id", "", "Execution ID")
	c.Flags().StringVar(&cmd.Signal, "signal", "", "Signal name")
	c.Flags().StringToStringVar(&variables, "variable", nil, "Variable to set, value as JSON")

	c.MarkFlagRequired("id")

	return &c
}
