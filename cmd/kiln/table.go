package main

import (
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"kiln/internal/jobs"
)

// renderJobTable renders the merged job list. Optimistic records show a
// blank ID cell until the server assigns one.
func renderJobTable(list []jobs.Job, now time.Time) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"ID", "NAME", "STATUS", "SOURCE", "VERSIONS", "UPDATED"})

	for _, job := range list {
		id := ""
		if !job.IsOptimistic() {
			id = strconv.FormatInt(job.ID, 10)
		}
		tw.AppendRow(table.Row{
			id,
			job.Name,
			statusLabel(job),
			job.SourceRef,
			versionSummary(job),
			formatAge(job.UpdatedAt, now),
		})
	}

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 5, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}
