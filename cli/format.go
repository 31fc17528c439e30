package cli

import (
	"encoding/json"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gclaussn/go-bpmn-core/engine"
)

func formatTime(v time.Time) string {
	if v.IsZero() {
		return ""
	}
	return v.Format(time.RFC3339)
}

func formatTimeOrNil(v *time.Time) string {
	if v == nil {
		return ""
	}
	return formatTime(*v)
}

func formatEventSubscriptions(subscriptions []engine.EventSubscription) string {
	table := newTable([]string{
		"ID",
		"EVENT TYPE",
		"EXECUTION ID",
		"ELEMENT ID",
		"ACTIVITY ID",
		"DUE AT",
	})

	for _, subscription := range subscriptions {
		table.addRow([]string{
			subscription.Id,
			subscription.EventType.String(),
			subscription.ExecutionId,
			subscription.ElementId,
			subscription.ActivityId,
			formatTimeOrNil(subscription.DueAt),
		})
	}

	return table.format()
}

// formatExecutions formats an execution tree. Element IDs are indented by the depth of the execution.
func formatExecutions(executions []engine.Execution) string {
	depths := make(map[string]int, len(executions))

	table := newTable([]string{
		"ID",
		"ELEMENT ID",
		"ACTIVE",
		"CONCURRENT",
		"SCOPE",
		"EVENT SCOPE",
		"MI ROOT",
	})

	for _, execution := range executions {
		depth := 0
		if execution.ParentId != "" {
			depth = depths[execution.ParentId] + 1
		}
		depths[execution.Id] = depth

		table.addRow([]string{
			execution.Id,
			strings.Repeat("  ", depth) + execution.ElementId,
			strconv.FormatBool(execution.IsActive),
			strconv.FormatBool(execution.IsConcurrent),
			strconv.FormatBool(execution.IsScope),
			strconv.FormatBool(execution.IsEventScope),
			strconv.FormatBool(execution.IsMultiInstanceRoot),
		})
	}

	return table.format()
}

func formatProcessInstance(processInstance engine.ProcessInstance) string {
	table := newTable([]string{
		"ID",
		"PROCESS",
		"BUSINESS KEY",
		"CREATED AT",
		"ENDED AT",
	})

	table.addRow([]string{
		processInstance.Id,
		processInstance.BpmnProcessId + ":" + processInstance.Version,
		processInstance.BusinessKey,
		formatTime(processInstance.CreatedAt),
		formatTimeOrNil(processInstance.EndedAt),
	})

	return table.format()
}

func formatVariables(variables map[string]any) string {
	names := make([]string, 0, len(variables))
	for name := range variables {
		names = append(names, name)
	}
	slices.Sort(names)

	table := newTable([]string{"NAME", "VALUE"})
	for _, name := range names {
		b, err := json.Marshal(variables[name])
		if err != nil {
			b = []byte(err.Error())
		}
		table.addRow([]string{name, string(b)})
	}

	return table.format()
}

func newTable(headers []string) table {
	rows := make([][]string, 2)
	rows[0] = headers
	rows[1] = make([]string, len(headers))

	return table{rows: rows}
}

type table struct {
	rows [][]string
}

func (t *table) addRow(row []string) {
	t.rows = append(t.rows, row)
}

func (t *table) format() string {
	rows := t.rows

	columns := make([]int, len(rows[0]))
	for i := 0; i < len(rows); i++ {
		for j := 0; j < len(columns); j++ {
			l := utf8.RuneCountInString(rows[i][j])
			if columns[j] < l {
				columns[j] = l
			}
		}
	}

	var sb strings.Builder
	for i := 0; i < len(rows); i++ {
		for j := 0; j < len(columns); j++ {
			if j != 0 {
				sb.WriteString("   ")
			}

			value := rows[i][j]
			sb.WriteString(value)

			l := utf8.RuneCountInString(value)
			for k := 0; k < columns[j]-l; k++ {
				sb.WriteRune(' ')
			}
		}
		sb.WriteRune('\n')
	}

	return sb.String()
}
