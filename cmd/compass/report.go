package main

import (
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/banshee-data/heading.report/internal/db"
	"github.com/banshee-data/heading.report/internal/report"
	"github.com/banshee-data/heading.report/internal/security"
	"github.com/banshee-data/heading.report/internal/units"
)

func runReport(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("report", flag.ContinueOnError)
	dbFile := fs.String("db", "compass.db", "SQLite recording file")
	out := fs.String("out", "heading.png", "PNG output path; empty skips the plot")
	sessionID := fs.String("session", "", "Session to report (default: latest)")
	tz := fs.String("tz", "UTC", "Timezone for the reported span")
	rateUnits := fs.String("rates", units.DPS, "Angular rate units: "+units.GetValidUnitsString())
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !units.IsValid(*rateUnits) {
		return fmt.Errorf("invalid -rates %q: expected one of %s", *rateUnits, units.GetValidUnitsString())
	}
	loc, err := units.LoadLocation(*tz)
	if err != nil {
		return err
	}
	if *out != "" {
		if err := security.ValidateOutputPath(*out); err != nil {
			return err
		}
	}

	store, err := db.Open(*dbFile)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	id := *sessionID
	if id == "" {
		sessions, err := store.Sessions()
		if err != nil {
			return err
		}
		if len(sessions) == 0 {
			return fmt.Errorf("no sessions recorded in %s", *dbFile)
		}
		id = sessions[0].ID
	}

	samples, err := store.SessionSamples(id)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "session:      %s\n", id)
	if err := report.Summarize(samples).In(loc, *rateUnits).WriteText(stdout); err != nil {
		return err
	}

	if *out == "" {
		return nil
	}
	switch err := report.PlotHeadings(samples, *out); {
	case errors.Is(err, report.ErrNoMeasurements):
		fmt.Fprintln(stdout, "plot:         skipped, nothing measured")
	case err != nil:
		return err
	default:
		fmt.Fprintf(stdout, "plot:         %s\n", *out)
	}
	return nil
}
