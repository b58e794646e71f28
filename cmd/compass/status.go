package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/banshee-data/heading.report/internal/api"
	"github.com/banshee-data/heading.report/internal/httputil"
)

func runStatus(ctx context.Context, args []string, stdout io.Writer, client httputil.Doer) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	addr := fs.String("addr", "http://localhost:8080", "Base URL of a running compass service")
	timeout := fs.Duration("timeout", 3*time.Second, "Request timeout")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	var heading api.HeadingResponse
	if err := httputil.GetJSON(ctx, client, *addr+"/api/heading", &heading); err != nil {
		return err
	}
	var stats api.StatsResponse
	if err := httputil.GetJSON(ctx, client, *addr+"/api/stats", &stats); err != nil {
		return err
	}

	fmt.Fprintf(stdout, "%s  %s\n", heading.Formatted, heading.Status)
	if heading.Error != "" {
		fmt.Fprintf(stdout, "last error: %s\n", heading.Error)
	}
	ps := stats.Pipeline
	fmt.Fprintf(stdout, "frames %d  overflows %d  decode errors %d  bytes %d\n",
		ps.FramesDecoded, ps.Overflows, ps.DecodeErrors, ps.BytesRead)
	if l := stats.Link; l != nil {
		fmt.Fprintf(stdout, "link %s  opens %d  attempts %d\n", l.Target, l.Opens, l.Attempts)
	}
	return nil
}
