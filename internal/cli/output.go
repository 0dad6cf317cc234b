package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/jmaddaus/sprintboard/internal/model"
)

const timeLayout = "2006-01-02 15:04:05"

// printJSON outputs v as indented JSON.
func printJSON(w io.Writer, v interface{}) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

// printReport prints a run report either as JSON or as a readable block.
func printReport(w io.Writer, r *model.RunReport, pretty bool) {
	if !pretty {
		printJSON(w, r)
		return
	}

	fmt.Fprintf(w, "Run %s\n", r.ID)
	fmt.Fprintf(w, "  Started:   %s\n", r.StartedAt.Local().Format(timeLayout))
	fmt.Fprintf(w, "  Duration:  %s\n", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	if r.Iteration != "" {
		fmt.Fprintf(w, "  Iteration: %s\n", r.Iteration)
	}
	if r.BoardPath != "" {
		fmt.Fprintf(w, "  Board:     %s\n", r.BoardPath)
	}
	if r.Error != "" {
		fmt.Fprintf(w, "  Error:     %s\n", r.Error)
	}
	fmt.Fprintf(w, "  Notes:     %d created, %d existing, %d failed\n",
		r.Count(model.OutcomeCreated),
		r.Count(model.OutcomeExisting),
		r.Count(model.OutcomeFailed)+r.Count(model.OutcomeFetchFailed))

	if len(r.Items) == 0 {
		return
	}
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tOUTCOME\tSTATE\tTITLE\tNOTE")
	for _, it := range r.Items {
		note := it.NotePath
		if it.Error != "" {
			note = it.Error
		}
		fmt.Fprintf(tw, "#%d\t%s\t%s\t%s\t%s\n", it.WorkItemID, it.Outcome, it.State, it.Title, note)
	}
	tw.Flush()
}

// printRuns prints a run list either as JSON or as a table.
func printRuns(w io.Writer, runs []*model.RunReport, pretty bool) {
	if !pretty {
		printJSON(w, runs)
		return
	}
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tITERATION\tCREATED\tFAILED\tERROR")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n",
			r.ID,
			r.StartedAt.Local().Format(timeLayout),
			r.Iteration,
			r.Count(model.OutcomeCreated),
			r.Count(model.OutcomeFailed)+r.Count(model.OutcomeFetchFailed),
			r.Error,
		)
	}
	tw.Flush()
}

// printSettings prints settings as JSON or one "key = value" line per field.
func printSettings(w io.Writer, s *model.Settings, pretty bool) {
	if !pretty {
		printJSON(w, s)
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)
	for _, f := range model.SettingsFields {
		v, _ := s.Get(f.Key)
		fmt.Fprintf(tw, "%s\t= %s\n", f.Key, v)
	}
	tw.Flush()
}
