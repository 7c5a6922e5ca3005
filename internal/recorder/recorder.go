// Package recorder persists a log of transmitted frames to SQLite so an
// operator can audit what the consumer was sent: timestamps, joint counts
// and the seat-occupancy result per frame.
package recorder

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/posecast/posecast/internal/monitoring"
	"github.com/posecast/posecast/internal/seating"
	"github.com/posecast/posecast/internal/skeleton"
)

// Recorder writes one row per transmitted frame. It implements
// capture.Observer; insert failures are logged and dropped so persistence
// problems never disturb the capture loop.
type Recorder struct {
	db        *sql.DB
	sessionID string
}

// Row is one recorded frame observation.
type Row struct {
	SessionID   string    `json:"sessionId"`
	TimestampMS int64     `json:"timestamp"`
	JointCount  int       `json:"jointCount"`
	ActiveSeat  *string   `json:"activeSeatId"`
	Confidence  *float64  `json:"confidence"`
	RecordedAt  time.Time `json:"recordedAt"`
}

// Open creates or opens the recorder database and ensures its schema. Each
// Recorder instance tags its rows with a fresh session id.
func Open(path string) (*Recorder, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS frames (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL,
			frame_timestamp_ms BIGINT NOT NULL,
			joint_count INTEGER NOT NULL,
			active_seat TEXT,
			confidence DOUBLE,
			recorded_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialise recorder schema: %w", err)
	}
	return &Recorder{db: db, sessionID: uuid.NewString()}, nil
}

// SessionID returns the id tagging this process's rows.
func (r *Recorder) SessionID() string { return r.sessionID }

// ObserveFrame records one transmitted frame. A nil report stores NULL seat
// columns.
func (r *Recorder) ObserveFrame(frame *skeleton.Frame, report *seating.Report) {
	var activeSeat *string
	var confidence *float64
	if report != nil {
		activeSeat = report.ActiveSeatID
		c := report.Confidence
		confidence = &c
	}
	_, err := r.db.Exec(
		"INSERT INTO frames (session_id, frame_timestamp_ms, joint_count, active_seat, confidence) VALUES (?, ?, ?, ?, ?)",
		r.sessionID, frame.TimestampMS, len(frame.Joints), activeSeat, confidence,
	)
	if err != nil {
		monitoring.Logf("recorder: failed to record frame: %v", err)
	}
}

// Recent returns the most recent rows, newest first.
func (r *Recorder) Recent(limit int) ([]Row, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Query(
		"SELECT session_id, frame_timestamp_ms, joint_count, active_seat, confidence, recorded_at FROM frames ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var row Row
		if err := rows.Scan(&row.SessionID, &row.TimestampMS, &row.JointCount, &row.ActiveSeat, &row.Confidence, &row.RecordedAt); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// Close releases the database handle.
func (r *Recorder) Close() error {
	return r.db.Close()
}
