// Package store persists gateway responses and meter readings in SQLite.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Meter report types in the order their phases are stored.
var ReportTypes = []string{"production", "net-consumption", "total-consumption"}

// MaxPhases is the number of phases a meter reading has room for.
const MaxPhases = 3

// Store is a SQLite database of cached samples and meter readings.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path. ":memory:" is accepted.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One connection keeps ":memory:" databases alive and writes serialised.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialise %s: %w", path, err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) init() error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`CREATE TABLE IF NOT EXISTS samples (
			endpoint TEXT NOT NULL,
			example TEXT NOT NULL,
			target TEXT NOT NULL,
			body TEXT NOT NULL,
			raw INTEGER NOT NULL,
			fetched_at DATETIME NOT NULL,
			PRIMARY KEY(endpoint, example, target)
		);`,
		`CREATE TABLE IF NOT EXISTS MeterReading_Result (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			p REAL NOT NULL,
			q REAL NOT NULL,
			s REAL NOT NULL,
			v REAL NOT NULL,
			i REAL NOT NULL,
			pf REAL NOT NULL,
			f REAL NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS MeterReading (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			Timestamp DATETIME NOT NULL,
			` + strings.Join(phaseColumns(" INTEGER REFERENCES MeterReading_Result(id)"), ",\n\t\t\t") + `
		);`,
		`CREATE INDEX IF NOT EXISTS idx_meter_reading_timestamp ON MeterReading(Timestamp);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// phaseColumns returns the MeterReading column of every report type and
// phase, e.g. NetConsumption_Phase_B_ID, each followed by suffix.
func phaseColumns(suffix string) []string {
	columns := make([]string, 0, len(ReportTypes)*MaxPhases)
	for _, reportType := range ReportTypes {
		prefix := ""
		for _, part := range strings.Split(reportType, "-") {
			prefix += strings.ToUpper(part[:1]) + part[1:]
		}
		for phase := 0; phase < MaxPhases; phase++ {
			columns = append(columns, fmt.Sprintf("%s_Phase_%c_ID%s", prefix, 'A'+phase, suffix))
		}
	}
	return columns
}

// SampleKey identifies a cached response.
type SampleKey struct {
	Endpoint string
	Example  string
	Target   string
}

// CachedSample is a stored response body.
type CachedSample struct {
	Body      string
	Raw       bool
	FetchedAt time.Time
}

// LoadSample returns the cached response for key. found is false when none
// has been stored.
func (s *Store) LoadSample(ctx context.Context, key SampleKey) (sample CachedSample, found bool, err error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT body, raw, fetched_at FROM samples WHERE endpoint=? AND example=? AND target=?`,
		key.Endpoint, key.Example, key.Target)
	err = row.Scan(&sample.Body, &sample.Raw, &sample.FetchedAt)
	if err == sql.ErrNoRows {
		return CachedSample{}, false, nil
	}
	if err != nil {
		return CachedSample{}, false, err
	}
	return sample, true, nil
}

// SaveSample stores or replaces the cached response for key.
func (s *Store) SaveSample(ctx context.Context, key SampleKey, sample CachedSample) error {
	if sample.FetchedAt.IsZero() {
		sample.FetchedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO samples(endpoint, example, target, body, raw, fetched_at) VALUES(?,?,?,?,?,?)
		ON CONFLICT(endpoint, example, target) DO UPDATE SET body=excluded.body, raw=excluded.raw, fetched_at=excluded.fetched_at`,
		key.Endpoint, key.Example, key.Target, sample.Body, sample.Raw, sample.FetchedAt)
	return err
}

// MeterResult is the reading of one phase of one meter.
type MeterResult struct {
	P, Q, S, V, I, PF, F float64
}

// MeterReading is one poll of every meter. Results are indexed by report
// type offset times MaxPhases plus phase; missing phases are nil.
type MeterReading struct {
	ID        int64
	Timestamp time.Time
	Results   [9]*MeterResult
}

// SaveMeterReading stores a reading and its results in one transaction and
// returns the reading's id.
func (s *Store) SaveMeterReading(ctx context.Context, reading MeterReading) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO MeterReading_Result(p, q, s, v, i, pf, f) VALUES(?,?,?,?,?,?,?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	args := make([]any, 0, len(reading.Results)+1)
	args = append(args, reading.Timestamp.UTC())
	for _, r := range reading.Results {
		if r == nil {
			args = append(args, nil)
			continue
		}
		res, err := stmt.ExecContext(ctx, r.P, r.Q, r.S, r.V, r.I, r.PF, r.F)
		if err != nil {
			return 0, err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return 0, err
		}
		args = append(args, id)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(args)), ",")
	res, err := tx.ExecContext(ctx,
		`INSERT INTO MeterReading(Timestamp, `+strings.Join(phaseColumns(""), ", ")+`) VALUES(`+placeholders+`)`,
		args...)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return id, tx.Commit()
}

// LatestMeterReading returns the most recently stored reading.
// sql.ErrNoRows is returned when there is none.
func (s *Store) LatestMeterReading(ctx context.Context) (MeterReading, error) {
	var reading MeterReading
	ids := make([]sql.NullInt64, len(reading.Results))
	dest := []any{&reading.ID, &reading.Timestamp}
	for i := range ids {
		dest = append(dest, &ids[i])
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id, Timestamp, `+strings.Join(phaseColumns(""), ", ")+` FROM MeterReading ORDER BY id DESC LIMIT 1`)
	if err := row.Scan(dest...); err != nil {
		return MeterReading{}, err
	}

	for i, id := range ids {
		if !id.Valid {
			continue
		}
		var r MeterResult
		err := s.db.QueryRowContext(ctx,
			`SELECT p, q, s, v, i, pf, f FROM MeterReading_Result WHERE id=?`, id.Int64).
			Scan(&r.P, &r.Q, &r.S, &r.V, &r.I, &r.PF, &r.F)
		if err != nil {
			return MeterReading{}, err
		}
		reading.Results[i] = &r
	}
	return reading, nil
}

// CountMeterReadings returns how many readings are stored.
func (s *Store) CountMeterReadings(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM MeterReading`).Scan(&n)
	return n, err
}
