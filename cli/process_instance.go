package cli

import (
	"context"

	"github.com/gclaussn/go-bpmn-core/engine"
	"github.com/spf13/cobra"
)

func newProcessInstanceCmd(cli *Cli) *cobra.Command {
	c := cobra.Command{
		Use:         "process-instance",
		Short:       "Manage process instances",
		RunE:        cli.help,
		Annotations: map[string]string{noEngineRequired: ""},
	}

	c.AddCommand(newProcessInstanceDeleteCmd(cli))
	c.AddCommand(newProcessInstanceGetCmd(cli))
	c.AddCommand(newProcessInstanceStartCmd(cli))

	return &c
}

func newProcessInstanceDeleteCmd(cli *Cli) *cobra.Command {
	var cmd engine.DeleteProcessInstanceCmd

	c := cobra.Command{
		Use:   "delete",
		Short: "Delete an active process instance",
		RunE: func(c *cobra.Command, _ []string) error {
			return cli.e.DeleteProcessInstance(context.Background(), cmd)
		},
	}

	c.Flags().StringVar(&cmd.ProcessInstanceId, "id", "", "Process instance ID")
	c.Flags().StringVar(&cmd.Reason, "reason", "", "Reason of the deletion")

	c.MarkFlagRequired("id")

	return &c
}

func newProcessInstanceGetCmd(cli *Cli) *cobra.Command {
	var (
		processInstanceId string
		withExecutions    bool
	)

	c := cobra.Command{
		Use:   "get",
		Short: "Get a process instance",
		RunE: func(c *cobra.Command, _ []string) error {
			ctx := context.Background()

			processInstance, err := cli.e.GetProcessInstance(ctx, engine.GetProcessInstanceCmd{ProcessInstanceId: processInstanceId})
			if err != nil {
				return err
			}

			c.Print(formatProcessInstance(processInstance))

			if !withExecutions {
				return nil
			}

			executions, err := cli.e.GetExecutions(ctx, engine.GetExecutionsCmd{ProcessInstanceId: processInstanceId})
			if err != nil {
				return err
			}

			c.Println()
			c.Print(formatExecutions(executions))
			return nil
		},
	}

	c.Flags().StringVar(&processInstanceId, "id", "", "Process instance ID")
	c.Flags().BoolVar(&withExecutions, "executions", false, "Show the execution tree")

	c.MarkFlagRequired("id")

	return &c
}

func newProcessInstanceStartCmd(cli *Cli) *cobra.Command {
	var (
		variables map[string]string

		cmd engine.StartProcessInstanceCmd
	)

	c := cobra.Command{
		Use:   "start",
		Short: "Start a process instance",
		RunE: func(c *cobra.Command, _ []string) error {
			cmd.Variables = mapVariables(variables)
			cmd.WorkerId = cli.workerId

			processInstance, err := cli.e.StartProcessInstance(context.Background(), cmd)
			if err != nil {
				return err
			}

			c.Println(processInstance.Id)
			return nil
		},
	}

	c.Flags().StringVar(&cmd.BpmnProcessId, "bpmn-process-id", "", "BPMN ID of an existing process")
	c.Flags().StringVar(&cmd.Version, "version", "1", "Version of an existing process")
	c.Flags().StringVar(&cmd.BusinessKey, "business-key", "", "Key, used to correlate a process instance with a business entity")
	c.Flags().StringVar(&cmd.TenantId, "tenant-id", "", "Tenant")
	c.Flags().StringToStringVar(&variables, "variable", nil, "Variable to set, value as JSON")

	c.MarkFlagRequired("bpmn-process-id")

	return &c
}
