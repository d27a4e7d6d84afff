package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"patrol/internal/jobs"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the pending task queue",
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueAddCommand(ctx))
	queueCmd.AddCommand(newQueueRemoveCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))

	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List pending tasks in dispatch order",
		RunE: func(cmd *cobra.Command, args []string) error {
			envelope, err := ctx.apiGet("/api/tasks")
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, envelope.Data)
			}

			data := dataMap(envelope)
			tasks, _ := data["tasks"].([]any)
			if len(tasks) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
				return nil
			}

			rows := make([][]string, 0, len(tasks))
			for _, raw := range tasks {
				task, ok := raw.(map[string]any)
				if !ok {
					continue
				}
				rows = append(rows, []string{
					stringField(task, "task_id"),
					jobTypeName(task["task_type"]),
					numberField(task, "station_id"),
					stringField(task, "priority"),
					stringField(task, "created_at"),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Task", "Type", "Station", "Priority", "Created"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
			))
			return nil
		},
	}
}

func newQueueAddCommand(ctx *commandContext) *cobra.Command {
	var stationID int
	var taskType int
	var priority string
	var paramsJSON string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Queue an inspection task for later dispatch",
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]any{
				"station_id": stationID,
				"task_type":  taskType,
			}
			if priority != "" {
				body["priority"] = priority
			}
			if paramsJSON != "" {
				var params map[string]any
				if err := json.Unmarshal([]byte(paramsJSON), &params); err != nil {
					return fmt.Errorf("parse --params: %w", err)
				}
				body["params"] = params
			}

			envelope, err := ctx.apiPost("/api/tasks/add", body)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, envelope.Data)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Queued task %s\n", stringField(dataMap(envelope), "task_id"))
			return nil
		},
	}

	cmd.Flags().IntVarP(&stationID, "station", "s", 0, "Station identifier (required)")
	cmd.Flags().IntVarP(&taskType, "type", "t", 0, "Inspection type 1-4 (required)")
	cmd.Flags().StringVarP(&priority, "priority", "p", "", "Priority: high, medium, or low")
	cmd.Flags().StringVar(&paramsJSON, "params", "", "Task parameters as a JSON object")
	_ = cmd.MarkFlagRequired("station")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func newQueueRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <task-id>",
		Short: "Remove a pending task from the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			envelope, err := ctx.apiDelete("/api/tasks/" + args[0])
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, envelope.Data)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed task %s\n", args[0])
			return nil
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Purge stale tasks from the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			envelope, err := ctx.apiPost("/api/tasks/clear", nil)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, envelope.Data)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Purged %s stale task(s)\n", numberField(dataMap(envelope), "removed"))
			return nil
		},
	}
}

func jobTypeName(raw any) string {
	value, ok := raw.(float64)
	if !ok {
		return fmt.Sprint(raw)
	}
	spec, ok := jobs.Lookup(jobs.JobType(int(value)))
	if !ok {
		return strconv.Itoa(int(value))
	}
	return spec.Name
}

func stringField(data map[string]any, key string) string {
	if value, ok := data[key].(string); ok {
		return value
	}
	return ""
}

func numberField(data map[string]any, key string) string {
	if value, ok := data[key].(float64); ok {
		return strconv.FormatFloat(value, 'f', -1, 64)
	}
	return ""
}
