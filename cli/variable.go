package cli

import (
	"context"

	"github.com/gclaussn/go-bpmn-core/engine"
	"github.com/spf13/cobra"
)

func newVariableCmd(cli *Cli) *cobra.Command {
	c := cobra.Command{
		Use:         "variable",
		Short:       "Get and set variables",
		RunE:        cli.help,
		Annotations: map[string]string{noEngineRequired: ""},
	}

	c.AddCommand(newVariableGetCmd(cli))
	c.AddCommand(newVariableSetCmd(cli))

	return &c
}

func newVariableGetCmd(cli *Cli) *cobra.Command {
	var cmd engine.GetVariablesCmd

	c := cobra.Command{
		Use:   "get",
		Short: "Get the variables, visible from an execution",
		RunE: func(c *cobra.Command, _ []string) error {
			variables, err := cli.e.GetVariables(context.Background(), cmd)
			if err != nil {
				return err
			}

			c.Print(formatVariables(variables))
			return nil
		},
	}

	c.Flags().StringVar(&cmd.ExecutionId, "execution-id", "", "Execution ID")
	c.Flags().StringSliceVar(&cmd.Names, "name", nil, "Names of variables to include")

	c.MarkFlagRequired("execution-id")

	return &c
}

func newVariableSetCmd(cli *Cli) *cobra.Command {
	var (
		variables map[string]string

		cmd engine.SetVariablesCmd
	)

	c := cobra.Command{
		Use:   "set",
		Short: "Set or delete variables",
		RunE: func(c *cobra.Command, _ []string) error {
			cmd.Variables = mapVariables(variables)

			return cli.e.SetVariables(context.Background(), cmd)
		},
	}

	c.Flags().StringVar(&cmd.ExecutionId, "execution-id", "", "Execution ID")
	c.Flags().BoolVar(&cmd.Local, "local", false, "Set variables local to the execution")
	c.Flags().StringToStringVar(&variables, "variable", nil, "Variable to set, value as JSON - an empty value deletes the variable")

	c.MarkFlagRequired("execution-id")
	c.MarkFlagRequired("variable")

	return &c
}
