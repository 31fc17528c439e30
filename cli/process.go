package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/gclaussn/go-bpmn-core/engine"
	"github.com/spf13/cobra"
)

func newProcessCmd(cli *Cli) *cobra.Command {
	c := cobra.Command{
		Use:         "process",
		Short:       "Create processes",
		RunE:        cli.help,
		Annotations: map[string]string{noEngineRequired: ""},
	}

	c.AddCommand(newProcessCreateCmd(cli))

	return &c
}

func newProcessCreateCmd(cli *Cli) *cobra.Command {
	var (
		bpmnFileName string

		cmd engine.CreateProcessCmd
	)

	c := cobra.Command{
		Use:   "create",
		Short: "Create a process",
		RunE: func(c *cobra.Command, _ []string) error {
			bpmnXml, err := readBpmnFile(bpmnFileName)
			if err != nil {
				return err
			}

			cmd.BpmnXml = bpmnXml
			cmd.WorkerId = cli.workerId

			process, err := cli.e.CreateProcess(context.Background(), cmd)
			if err != nil {
				return err
			}

			c.Println(process.Id)
			return nil
		},
	}

	c.Flags().StringVar(&bpmnFileName, "bpmn-file", "", "Path to a BPMN XML file")
	c.Flags().StringVar(&cmd.BpmnProcessId, "bpmn-process-id", "", "ID of the process element within the BPMN XML")
	c.Flags().StringVar(&cmd.Version, "version", "1", "Process version")

	c.MarkFlagRequired("bpmn-file")
	c.MarkFlagRequired("bpmn-process-id")

	return &c
}

func readBpmnFile(fileName string) (string, error) {
	bpmnFile, err := os.Open(fileName)
	if err != nil {
		return "", fmt.Errorf("failed to open BPMN file %s: %v", fileName, err)
	}

	defer bpmnFile.Close()

	bpmnXml, err := io.ReadAll(bpmnFile)
	if err != nil {
		return "", fmt.Errorf("failed to read BPMN XML: %v", err)
	}

	return string(bpmnXml), nil
}
