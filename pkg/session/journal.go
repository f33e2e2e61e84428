package session

import (
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/gwillem/trackbot/pkg/search"
)

// OutcomeRunning marks a session that has not ended.
const OutcomeRunning = "running"

//go:embed schema.sql
var schemaSQL string

// Record is one row of the session journal.
type Record struct {
	ID          string
	StartedAt   time.Time
	EndedAt     *time.Time
	Outcome     string
	TargetClass string
	Confidence  *float64
	ImageFile   string
	Scans       int
	Cycles      int
}

// Duration returns how long the session ran, or zero while it is running.
func (r Record) Duration() time.Duration {
	if r.EndedAt == nil {
		return 0
	}
	return r.EndedAt.Sub(r.StartedAt)
}

// Journal stores one row per search session in sqlite.
type Journal struct {
	db *sql.DB
}

// OpenJournal opens or creates the journal database at path.
func OpenJournal(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create journal schema: %w", err)
	}
	return &Journal{db: db}, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Begin records the start of a session.
func (j *Journal) Begin(id string, started time.Time, targetClass string) error {
	_, err := j.db.Exec(
		`INSERT INTO sessions (id, started_at, outcome, target_class) VALUES (?, ?, ?, ?)`,
		id, started.UnixNano(), OutcomeRunning, targetClass,
	)
	if err != nil {
		return fmt.Errorf("begin session %s: %w", id, err)
	}
	return nil
}

// End records how a session finished.
func (j *Journal) End(id string, ended time.Time, st search.Status) error {
	var (
		confidence *float64
		image      *string
	)
	if st.Target != nil {
		c := st.Target.Detection.Confidence
		confidence = &c
		image = &st.Target.ImageFile
	}

	res, err := j.db.Exec(`
		UPDATE sessions
		SET ended_at = ?, outcome = ?, target_confidence = ?, image_file = ?, scans = ?, cycles = ?
		WHERE id = ?`,
		ended.UnixNano(), strings.ToLower(st.Phase.String()), confidence, image, st.Scans, st.Cycles, id,
	)
	if err != nil {
		return fmt.Errorf("end session %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("end session %s: no such session", id)
	}
	return nil
}

// Recent returns up to limit sessions, newest first.
func (j *Journal) Recent(limit int) ([]Record, error) {
	rows, err := j.db.Query(`
		SELECT id, started_at, ended_at, outcome, target_class, target_confidence, image_file, scans, cycles
		FROM sessions
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			r       Record
			started int64
			ended   sql.NullInt64
			conf    sql.NullFloat64
			image   sql.NullString
		)
		if err := rows.Scan(&r.ID, &started, &ended, &r.Outcome, &r.TargetClass, &conf, &image, &r.Scans, &r.Cycles); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		r.StartedAt = time.Unix(0, started)
		if ended.Valid {
			t := time.Unix(0, ended.Int64)
			r.EndedAt = &t
		}
		if conf.Valid {
			c := conf.Float64
			r.Confidence = &c
		}
		r.ImageFile = image.String
		records = append(records, r)
	}
	return records, rows.Err()
}
