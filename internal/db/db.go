// Package db records published telemetry samples in SQLite.
package db

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/heading.report/internal/telemetry"
)

type DB struct {
	*sql.DB
	path string
}

// Session is one run of the service against one transceiver.
type Session struct {
	ID          string    `json:"session_id"`
	RecordShape string    `json:"record_shape"`
	Port        string    `json:"port"`
	StartedAt   time.Time `json:"started_at"`
}

// Open opens or creates the database at path and migrates it to the latest
// schema.
func Open(path string) (*DB, error) {
	// Pragmas go in the DSN so every pooled connection gets them.
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	db := &DB{DB: sqlDB, path: path}
	if err := db.MigrateUp(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// Path returns the file the database was opened from.
func (db *DB) Path() string { return db.path }

// StartSession registers a new recording session and returns it.
func (db *DB) StartSession(shape, port string, now time.Time) (Session, error) {
	s := Session{
		ID:          uuid.NewString(),
		RecordShape: shape,
		Port:        port,
		StartedAt:   now.UTC(),
	}
	_, err := db.Exec(
		`INSERT INTO sessions (session_id, record_shape, port, started_at) VALUES (?, ?, ?, ?)`,
		s.ID, s.RecordShape, s.Port, s.StartedAt.UnixNano(),
	)
	if err != nil {
		return Session{}, fmt.Errorf("failed to start session: %w", err)
	}
	return s, nil
}

// Sessions lists recording sessions, newest first.
func (db *DB) Sessions() ([]Session, error) {
	rows, err := db.Query(`SELECT session_id, record_shape, port, started_at FROM sessions ORDER BY started_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var s Session
		var started int64
		if err := rows.Scan(&s.ID, &s.RecordShape, &s.Port, &started); err != nil {
			return nil, err
		}
		s.StartedAt = time.Unix(0, started).UTC()
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

const insertSample = `INSERT INTO samples (
	session_id, recorded_at, status, measured, heading,
	rate_x, rate_y, rate_z, temperature, command, error
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// RecordSample stores one sample.
func (db *DB) RecordSample(sessionID string, s telemetry.Sample) error {
	return db.RecordSamples(sessionID, []telemetry.Sample{s})
}

// RecordSamples stores a batch of samples in one transaction.
func (db *DB) RecordSamples(sessionID string, samples []telemetry.Sample) error {
	if len(samples) == 0 {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(insertSample)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, s := range samples {
		var rx, ry, rz sql.NullFloat64
		if s.AngularRates != nil {
			rx = sql.NullFloat64{Float64: s.AngularRates[0], Valid: true}
			ry = sql.NullFloat64{Float64: s.AngularRates[1], Valid: true}
			rz = sql.NullFloat64{Float64: s.AngularRates[2], Valid: true}
		}
		var temp sql.NullInt64
		if s.Temperature != nil {
			temp = sql.NullInt64{Int64: int64(*s.Temperature), Valid: true}
		}
		if _, err := stmt.Exec(
			sessionID, s.Time.UnixNano(), s.Status.String(), s.Measured, s.Heading,
			rx, ry, rz, temp, s.Command, s.Err,
		); err != nil {
			return fmt.Errorf("failed to record sample: %w", err)
		}
	}
	return tx.Commit()
}

const selectSamples = `SELECT recorded_at, status, measured, heading,
	rate_x, rate_y, rate_z, temperature, command, error
FROM samples`

// RecentSamples returns up to limit of the latest samples across all
// sessions, oldest first.
func (db *DB) RecentSamples(limit int) ([]telemetry.Sample, error) {
	if limit <= 0 {
		limit = 100
	}
	samples, err := db.querySamples(selectSamples+` ORDER BY recorded_at DESC, sample_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(samples)-1; i < j; i, j = i+1, j-1 {
		samples[i], samples[j] = samples[j], samples[i]
	}
	return samples, nil
}

// SessionSamples returns every sample of one session, oldest first.
func (db *DB) SessionSamples(sessionID string) ([]telemetry.Sample, error) {
	return db.querySamples(selectSamples+` WHERE session_id = ? ORDER BY recorded_at, sample_id`, sessionID)
}

func (db *DB) querySamples(query string, args ...interface{}) ([]telemetry.Sample, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []telemetry.Sample
	for rows.Next() {
		var (
			s          telemetry.Sample
			recordedAt int64
			status     string
			rx, ry, rz sql.NullFloat64
			temp       sql.NullInt64
		)
		if err := rows.Scan(&recordedAt, &status, &s.Measured, &s.Heading,
			&rx, &ry, &rz, &temp, &s.Command, &s.Err); err != nil {
			return nil, err
		}
		s.Time = time.Unix(0, recordedAt).UTC()
		if err := s.Status.UnmarshalText([]byte(strings.TrimSpace(status))); err != nil {
			return nil, err
		}
		if rx.Valid && ry.Valid && rz.Valid {
			s.AngularRates = &[3]float64{rx.Float64, ry.Float64, rz.Float64}
		}
		if temp.Valid {
			t := int8(temp.Int64)
			s.Temperature = &t
		}
		samples = append(samples, s)
	}
	return samples, rows.Err()
}
