package main

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var taskType int
	var stationID int
	var startDate string
	var endDate string
	var limit int
	var offset int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show stored inspection results, most recent first",
		RunE: func(cmd *cobra.Command, args []string) error {
			query := url.Values{}
			if taskType > 0 {
				query.Set("task_type", strconv.Itoa(taskType))
			}
			if stationID > 0 {
				query.Set("station_id", strconv.Itoa(stationID))
			}
			if startDate != "" {
				query.Set("start_date", startDate)
			}
			if endDate != "" {
				query.Set("end_date", endDate)
			}
			if limit > 0 {
				query.Set("limit", strconv.Itoa(limit))
			}
			if offset > 0 {
				query.Set("offset", strconv.Itoa(offset))
			}

			path := "/api/history"
			if encoded := query.Encode(); encoded != "" {
				path += "?" + encoded
			}

			envelope, err := ctx.apiGet(path)
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, envelope.Data)
			}

			data := dataMap(envelope)
			records, _ := data["records"].([]any)
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No inspection records found")
				return nil
			}

			rows := make([][]string, 0, len(records))
			for _, raw := range records {
				record, ok := raw.(map[string]any)
				if !ok {
					continue
				}
				rows = append(rows, []string{
					numberField(record, "id"),
					stringField(record, "task_id"),
					jobTypeName(record["task_type"]),
					numberField(record, "station_id"),
					stringField(record, "status"),
					numberField(record, "confidence"),
					stringField(record, "created_at"),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Task", "Type", "Station", "Status", "Confidence", "Created"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft, alignRight, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().IntVarP(&taskType, "type", "t", 0, "Filter by inspection type")
	cmd.Flags().IntVarP(&stationID, "station", "s", 0, "Filter by station")
	cmd.Flags().StringVar(&startDate, "start", "", "Earliest date to include (YYYY-MM-DD)")
	cmd.Flags().StringVar(&endDate, "end", "", "Latest date to include (YYYY-MM-DD)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum records to return")
	cmd.Flags().IntVar(&offset, "offset", 0, "Records to skip")
	return cmd
}
