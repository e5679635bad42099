// Package store persists recorded transform samples in SQLite so a restarted
// service can warm its buffer and past sessions can be inspected.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/tfcache/internal/tf"
	"github.com/banshee-data/tfcache/internal/tfbuffer"
	"github.com/banshee-data/tfcache/internal/timeutil"
)

// ErrNoSession is returned when a session id is unknown or no session exists.
var ErrNoSession = errors.New("no such recording session")

// Store wraps the SQLite database holding recorded transforms.
type Store struct {
	*sql.DB
	path  string
	clock timeutil.Clock
}

// Session is one run of the ingress pipeline.
type Session struct {
	ID        string    `json:"session_id"`
	Source    string    `json:"source"`
	StartedAt time.Time `json:"started_at"`
}

// Open opens (or creates) the database at path, applies pragmas and runs
// any pending migrations.
func Open(path string) (*Store, error) {
	// pragmas go in the DSN so every pooled connection gets them
	dsn := path + "?" + strings.Join([]string{
		"_pragma=journal_mode(WAL)",
		"_pragma=busy_timeout(5000)",
		"_pragma=synchronous(NORMAL)",
		"_pragma=temp_store(MEMORY)",
		"_pragma=foreign_keys(1)",
	}, "&")
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}

	s := &Store{DB: db, path: path, clock: timeutil.RealClock{}}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// StartSession registers a new recording session.
func (s *Store) StartSession(source string) (Session, error) {
	sess := Session{
		ID:        uuid.NewString(),
		Source:    source,
		StartedAt: s.clock.Now().UTC(),
	}
	_, err := s.Exec(
		`INSERT INTO sessions (session_id, source, started_ns) VALUES (?, ?, ?)`,
		sess.ID, sess.Source, sess.StartedAt.UnixNano(),
	)
	if err != nil {
		return Session{}, fmt.Errorf("failed to start session: %w", err)
	}
	return sess, nil
}

// Sessions lists sessions newest first.
func (s *Store) Sessions() ([]Session, error) {
	rows, err := s.Query(`SELECT session_id, source, started_ns FROM sessions ORDER BY started_ns DESC, rowid DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var sess Session
		var startedNs int64
		if err := rows.Scan(&sess.ID, &sess.Source, &startedNs); err != nil {
			return nil, err
		}
		sess.StartedAt = time.Unix(0, startedNs).UTC()
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// LatestSession returns the most recently started session.
func (s *Store) LatestSession() (Session, error) {
	sessions, err := s.Sessions()
	if err != nil {
		return Session{}, err
	}
	if len(sessions) == 0 {
		return Session{}, ErrNoSession
	}
	return sessions[0], nil
}

// Record stores a single sample under sessionID.
func (s *Store) Record(sessionID string, sample tf.Stamped, static bool) error {
	return s.RecordBatch(sessionID, []tf.Stamped{sample}, static)
}

// RecordBatch stores samples in one transaction.
func (s *Store) RecordBatch(sessionID string, samples []tf.Stamped, static bool) error {
	tx, err := s.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO transforms (
			session_id, parent_frame, child_frame, stamp_ns, is_static,
			tx, ty, tz, qx, qy, qz, qw, recorded_ns
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	recordedNs := s.clock.Now().UnixNano()
	for _, sample := range samples {
		t, q := sample.Transform.Translation, sample.Transform.Rotation
		if _, err := stmt.Exec(
			sessionID, sample.ParentFrameID, sample.ChildFrameID, sample.Stamp.Nanos(), static,
			t.X, t.Y, t.Z, q.Imag, q.Jmag, q.Kmag, q.Real, recordedNs,
		); err != nil {
			return fmt.Errorf("failed to record %s: %w", sample, err)
		}
	}
	return tx.Commit()
}

// Samples returns the recorded samples of pair with from <= stamp <= to,
// ordered by stamp. A zero to means no upper bound.
func (s *Store) Samples(pair tfbuffer.Pair, from, to tf.Stamp) ([]tf.Stamped, error) {
	upper := to.Nanos()
	if to.IsZero() {
		upper = math.MaxInt64
	}
	rows, err := s.Query(`
		SELECT parent_frame, child_frame, stamp_ns, is_static, tx, ty, tz, qx, qy, qz, qw
		FROM transforms
		WHERE parent_frame = ? AND child_frame = ? AND stamp_ns >= ? AND stamp_ns <= ?
		ORDER BY stamp_ns, transform_id`,
		pair.Parent, pair.Child, from.Nanos(), upper,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []tf.Stamped
	for rows.Next() {
		sample, _, err := scanSample(rows)
		if err != nil {
			return nil, err
		}
		samples = append(samples, sample)
	}
	return samples, rows.Err()
}

// Replay calls fn for every sample of sessionID in recording order. It stops
// at the first error fn returns.
func (s *Store) Replay(sessionID string, fn func(sample tf.Stamped, static bool) error) error {
	var exists bool
	if err := s.QueryRow(`SELECT COUNT(*) > 0 FROM sessions WHERE session_id = ?`, sessionID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrNoSession, sessionID)
	}

	rows, err := s.Query(`
		SELECT parent_frame, child_frame, stamp_ns, is_static, tx, ty, tz, qx, qy, qz, qw
		FROM transforms
		WHERE session_id = ?
		ORDER BY transform_id`, sessionID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		sample, static, err := scanSample(rows)
		if err != nil {
			return err
		}
		if err := fn(sample, static); err != nil {
			return err
		}
	}
	return rows.Err()
}

// WarmBuffer replays sessionID into buf and returns how many samples were
// accepted.
func (s *Store) WarmBuffer(buf *tfbuffer.Buffer, sessionID string) (int, error) {
	n := 0
	err := s.Replay(sessionID, func(sample tf.Stamped, static bool) error {
		if err := buf.AddTransform(sample, static); err != nil {
			return err
		}
		n++
		return nil
	})
	return n, err
}

func scanSample(rows *sql.Rows) (tf.Stamped, bool, error) {
	var (
		sample         tf.Stamped
		stampNs        int64
		static         bool
		tx, ty, tz     float64
		qx, qy, qz, qw float64
	)
	if err := rows.Scan(&sample.ParentFrameID, &sample.ChildFrameID, &stampNs, &static,
		&tx, &ty, &tz, &qx, &qy, &qz, &qw); err != nil {
		return tf.Stamped{}, false, err
	}
	sample.Stamp = tf.StampFromNanos(stampNs)
	sample.Transform = tf.NewTransform(
		r3.Vec{X: tx, Y: ty, Z: tz},
		quat.Number{Real: qw, Imag: qx, Jmag: qy, Kmag: qz},
	)
	return sample, static, nil
}
