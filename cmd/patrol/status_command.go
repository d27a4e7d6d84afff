package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon health and registered inspection types",
		RunE: func(cmd *cobra.Command, args []string) error {
			envelope, err := ctx.apiGet("/health")
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, envelope.Data)
			}

			data := dataMap(envelope)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Daemon:      %s\n", stringField(data, "status"))
			fmt.Fprintf(out, "Queue depth: %s\n", numberField(data, "queue_depth"))

			jobTypes, _ := data["job_types"].([]any)
			if len(jobTypes) == 0 {
				return nil
			}
			rows := make([][]string, 0, len(jobTypes))
			for _, raw := range jobTypes {
				jt, ok := raw.(map[string]any)
				if !ok {
					continue
				}
				rows = append(rows, []string{
					numberField(jt, "type"),
					stringField(jt, "name"),
					stringField(jt, "description"),
					strconv.FormatBool(jt["uses_model"] == true),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Type", "Name", "Description", "Model"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}
}
