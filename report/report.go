// Package report puts the results of several runs side by side in a
// spreadsheet.
package report

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/xuri/excelize/v2"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"gitlab.com/slon/readerswriters/simulate"
)

const (
	SummarySheet = "summary"
	EventsSheet  = "events"
)

var header = []interface{}{
	"strategy", "run", "readers", "writers", "rounds",
	"reads", "writes", "read failures", "write failures",
	"max readers", "overlaps", "duration ms",
}

func row(r simulate.Result) []interface{} {
	return []interface{}{
		r.Strategy, r.RunID.String(), r.Plan.Readers, r.Plan.Writers, r.Plan.Rounds,
		r.Reads, r.Writes, r.ReadFailures, r.WriteFailures,
		r.Probe.MaxReaders, r.Probe.Overlaps, r.Duration.Milliseconds(),
	}
}

// byStrategy orders results by strategy name, keeping run order within one
// strategy.
func byStrategy(results []simulate.Result) []simulate.Result {
	groups := make(map[string][]simulate.Result)
	for _, r := range results {
		groups[r.Strategy] = append(groups[r.Strategy], r)
	}
	names := maps.Keys(groups)
	slices.Sort(names)

	out := make([]simulate.Result, 0, len(results))
	for _, name := range names {
		out = append(out, groups[name]...)
	}
	return out
}

// Write saves results to an xlsx file with a summary sheet and an events
// sheet.
func Write(path string, results []simulate.Result) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return err
	}
	if _, err := f.NewSheet(EventsSheet); err != nil {
		return err
	}

	results = byStrategy(results)

	if err := f.SetSheetRow(SummarySheet, "A1", &header); err != nil {
		return err
	}
	for i, r := range results {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := row(r)
		if err := f.SetSheetRow(SummarySheet, cell, &values); err != nil {
			return err
		}
	}

	eventsHeader := []interface{}{"strategy", "run", "#", "role", "at"}
	if err := f.SetSheetRow(EventsSheet, "A1", &eventsHeader); err != nil {
		return err
	}
	line := 2
	for _, r := range results {
		for i, ev := range r.Events {
			cell, err := excelize.CoordinatesToCellName(1, line)
			if err != nil {
				return err
			}
			values := []interface{}{ev.Strategy, r.RunID.String(), i + 1, string(ev.Role), ev.At.Format("15:04:05.000000")}
			if err := f.SetSheetRow(EventsSheet, cell, &values); err != nil {
				return err
			}
			line++
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save report: %w", err)
	}
	return nil
}

// Print writes the summary as an aligned text table.
func Print(w io.Writer, results []simulate.Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STRATEGY\tREADS\tWRITES\tFAILURES\tMAX READERS\tOVERLAPS\tDURATION")
	for _, r := range byStrategy(results) {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\t%s\n",
			r.Strategy, r.Reads, r.Writes, r.ReadFailures+r.WriteFailures,
			r.Probe.MaxReaders, r.Probe.Overlaps, r.Duration.Round(time.Microsecond))
	}
	return tw.Flush()
}
