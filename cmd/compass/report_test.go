package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/heading.report/internal/db"
	"github.com/banshee-data/heading.report/internal/httputil"
	"github.com/banshee-data/heading.report/internal/telemetry"
)

func seedDB(t *testing.T, measured bool) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "compass.db")
	store, err := db.Open(path)
	require.NoError(t, err)
	defer store.Close()

	t0 := time.Date(2024, 8, 1, 12, 0, 0, 0, time.UTC)
	sess, err := store.StartSession("magnetometer", "/dev/ttyACM0", t0)
	require.NoError(t, err)

	samples := []telemetry.Sample{{Time: t0, Status: telemetry.Connected}}
	if measured {
		for i := 1; i <= 20; i++ {
			samples = append(samples, telemetry.Sample{
				Time:     t0.Add(time.Duration(i) * 50 * time.Millisecond),
				Status:   telemetry.Connected,
				Measured: true,
				Heading:  88 + float64(i%5),
			})
		}
	}
	require.NoError(t, store.RecordSamples(sess.ID, samples))
	return path
}

func TestRunReport(t *testing.T) {
	dbFile := seedDB(t, true)
	png := filepath.Join(t.TempDir(), "heading.png")

	var out bytes.Buffer
	require.NoError(t, runReport([]string{"-db", dbFile, "-out", png}, &out))

	assert.Contains(t, out.String(), "samples:      21 (20 measured)")
	assert.Contains(t, out.String(), "mean heading: 090")
	assert.Contains(t, out.String(), "plot:         "+png)
	info, err := os.Stat(png)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}

func TestRunReportUnitsAndZone(t *testing.T) {
	var out bytes.Buffer
	err := runReport([]string{"-db", seedDB(t, true), "-out", "", "-tz", "Asia/Tokyo", "-rates", "rpm"}, &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "2024-08-01T21:00:00+09:00")
}

func TestRunReportRejectsBadOptions(t *testing.T) {
	dbFile := seedDB(t, true)
	for _, args := range [][]string{
		{"-rates", "mph"},
		{"-tz", "Nowhere/Special"},
		{"-out", "/proc/heading.png"},
	} {
		var out bytes.Buffer
		assert.Error(t, runReport(append([]string{"-db", dbFile}, args...), &out), args)
	}
}

func TestRunReportNothingMeasured(t *testing.T) {
	var out bytes.Buffer
	err := runReport([]string{"-db", seedDB(t, false), "-out", filepath.Join(t.TempDir(), "x.png")}, &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "skipped")
}

func TestRunReportNoSessions(t *testing.T) {
	var out bytes.Buffer
	err := runReport([]string{"-db", filepath.Join(t.TempDir(), "empty.db"), "-out", ""}, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no sessions")
}

func TestRunReportBadFlag(t *testing.T) {
	var out bytes.Buffer
	assert.Error(t, runReport([]string{"-nope"}, &out))
}

func TestRunStatus(t *testing.T) {
	client := httputil.NewMockHTTPClient().
		AddResponse(http.StatusOK, `{"status":"connected","heading_degrees":271.2,"heading":"271"}`).
		AddResponse(http.StatusOK, `{"pipeline":{"frames_decoded":42,"overflows":1,"decode_errors":2,"bytes_read":900},"link":{"target":"/dev/ttyACM0","opens":1,"attempts":3}}`)

	var out bytes.Buffer
	require.NoError(t, runStatus(context.Background(), []string{"-addr", "http://compass.local:8080"}, &out, client))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "271  connected", lines[0])
	assert.Equal(t, "frames 42  overflows 1  decode errors 2  bytes 900", lines[1])
	assert.Equal(t, "link /dev/ttyACM0  opens 1  attempts 3", lines[2])
	assert.Equal(t, "http://compass.local:8080/api/heading", client.Requests[0].URL.String())
}

func TestRunStatusUnreachable(t *testing.T) {
	client := httputil.NewMockHTTPClient().AddErrorResponse(errors.New("connection refused"))
	var out bytes.Buffer
	err := runStatus(context.Background(), nil, &out, client)
	assert.ErrorContains(t, err, "connection refused")
}
