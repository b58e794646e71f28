package db

import (
	"compress/gzip"
	"io"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/heading.report/internal/telemetry"
	"github.com/banshee-data/heading.report/internal/testutil"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "compass.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

var t0 = time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

func TestOpenMigrates(t *testing.T) {
	db := openTestDB(t)

	version, dirty, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)

	// A second MigrateUp is a no-op.
	require.NoError(t, db.MigrateUp())
}

func TestMigrateDown(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.MigrateDown())

	version, _, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)

	_, err = db.StartSession("magnetometer", "/dev/ttyACM0", t0)
	assert.Error(t, err)
}

func TestSessions(t *testing.T) {
	db := openTestDB(t)

	first, err := db.StartSession("magnetometer", "/dev/ttyACM0", t0)
	require.NoError(t, err)
	second, err := db.StartSession("imu", "usb 2341:0043", t0.Add(time.Hour))
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	sessions, err := db.Sessions()
	require.NoError(t, err)
	if diff := cmp.Diff([]Session{second, first}, sessions); diff != "" {
		t.Errorf("Sessions() mismatch (-want +got):\n%s", diff)
	}
}

func TestRecordAndReadSamples(t *testing.T) {
	db := openTestDB(t)
	sess, err := db.StartSession("imu", "/dev/ttyACM0", t0)
	require.NoError(t, err)

	temp := int8(-4)
	want := []telemetry.Sample{
		{Time: t0, Status: telemetry.Connected},
		{
			Time:         t0.Add(10 * time.Millisecond),
			Status:       telemetry.Connected,
			Measured:     true,
			Heading:      271.5,
			AngularRates: &[3]float64{0.5, -1, 2},
			Temperature:  &temp,
			Command:      "hi",
		},
		{Time: t0.Add(20 * time.Millisecond), Status: telemetry.Disconnected, Heading: 271.5, Err: "unplugged"},
	}
	require.NoError(t, db.RecordSamples(sess.ID, want))

	got, err := db.SessionSamples(sess.ID)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("SessionSamples() mismatch (-want +got):\n%s", diff)
	}
}

func TestRecentSamples(t *testing.T) {
	db := openTestDB(t)
	sess, err := db.StartSession("magnetometer", "/dev/ttyACM0", t0)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, db.RecordSample(sess.ID, telemetry.Sample{
			Time:     t0.Add(time.Duration(i) * time.Second),
			Status:   telemetry.Connected,
			Measured: true,
			Heading:  float64(i * 10),
		}))
	}

	got, err := db.RecentSamples(3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []float64{20, 30, 40}, []float64{got[0].Heading, got[1].Heading, got[2].Heading})

	all, err := db.RecentSamples(0)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestRecordSamplesEmpty(t *testing.T) {
	db := openTestDB(t)
	assert.NoError(t, db.RecordSamples("missing", nil))
}

func TestRecordSampleUnknownSession(t *testing.T) {
	db := openTestDB(t)
	err := db.RecordSample("no-such-session", telemetry.Sample{Time: t0})
	assert.Error(t, err)
}

func TestAdminRoutes(t *testing.T) {
	db := openTestDB(t)
	sess, err := db.StartSession("magnetometer", "/dev/ttyACM0", t0)
	require.NoError(t, err)
	require.NoError(t, db.RecordSample(sess.ID, telemetry.Sample{Time: t0, Measured: true, Heading: 90}))

	mux := http.NewServeMux()
	require.NoError(t, db.AttachAdminRoutes(mux))

	rec := testutil.Serve(mux, testutil.LocalRequest(http.MethodGet, "/debug/backup"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "compass-backup-")

	gz, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.Equal(t, "SQLite format 3\x00", string(body[:16]))
}
