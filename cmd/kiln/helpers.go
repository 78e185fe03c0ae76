package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/mattn/go-isatty"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"kiln/internal/jobs"
)

var statusTitle = cases.Title(language.Und)

// statusLabel renders a status for display. Optimistic records are flagged
// because their status is synthetic until the server confirms the job.
func statusLabel(job jobs.Job) string {
	label := statusTitle.String(string(job.Status))
	if job.IsOptimistic() {
		return label + " (pending)"
	}
	return label
}

func versionSummary(job jobs.Job) string {
	if job.VersionCount == 0 {
		return "-"
	}
	return fmt.Sprintf("%d/%d", job.ActiveVersion, job.VersionCount)
}

func formatAge(ts time.Time, now time.Time) string {
	if ts.IsZero() {
		return "-"
	}
	age := now.Sub(ts)
	if age < 0 {
		age = 0
	}
	switch {
	case age < time.Minute:
		return strconv.Itoa(int(age.Seconds())) + "s ago"
	case age < time.Hour:
		return strconv.Itoa(int(age.Minutes())) + "m ago"
	case age < 24*time.Hour:
		return strconv.Itoa(int(age.Hours())) + "h ago"
	default:
		return ts.UTC().Format("2006-01-02")
	}
}

// writeJobList prints the merged list: a table on terminals, plain
// tab-separated lines otherwise.
func writeJobList(out io.Writer, plain bool, list []jobs.Job, now time.Time) {
	if len(list) == 0 {
		fmt.Fprintln(out, "No jobs.")
		return
	}
	if plain {
		for _, job := range list {
			fmt.Fprintf(out, "%d\t%s\t%s\t%s\n", job.ID, job.Name, statusLabel(job), job.SourceRef)
		}
		return
	}
	fmt.Fprintln(out, renderJobTable(list, now))
}

func stdoutIsTerminal(out io.Writer) bool {
	file, ok := out.(interface{ Fd() uintptr })
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
