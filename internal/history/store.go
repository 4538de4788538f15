// Package history keeps every published prediction in a SQL database.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq" // register postgres driver
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite" // register sqlite driver

	"github.com/cleared-dev/forecast/internal/model"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// ErrUnknownDriver is returned by Open for drivers other than sqlite and postgres.
var ErrUnknownDriver = errors.New("unknown history driver")

// Record is one stored prediction.
type Record struct {
	RunID       string             `json:"run_id"`
	RecordedAt  time.Time          `json:"recorded_at"`
	BasisDate   time.Time          `json:"basis_date"`
	TargetDate  time.Time          `json:"target_date"`
	Balance     decimal.Decimal    `json:"balance"`
	Past        bool               `json:"past"`
	Checkpoints []model.Checkpoint `json:"checkpoints,omitempty"`
}

// NewRecord captures p as produced by run runID at time at.
func NewRecord(runID string, at time.Time, p model.Prediction) Record {
	return Record{
		RunID:       runID,
		RecordedAt:  at.UTC(),
		BasisDate:   p.BasisDate.UTC(),
		TargetDate:  p.TargetDate.UTC(),
		Balance:     p.Balance,
		Past:        p.Past,
		Checkpoints: p.Checkpoints,
	}
}

// Delta returns the change applied by step, or zero if the step is absent.
func (r Record) Delta(step string) decimal.Decimal {
	for _, cp := range r.Checkpoints {
		if cp.Step == step {
			return cp.Delta
		}
	}
	return decimal.Zero
}

// Store is a prediction history backed by sqlite or postgres.
type Store struct {
	db     *sql.DB
	driver string
	now    func() time.Time
}

// Open connects to the history database and creates the schema.
// For sqlite, dsn is a file path; its directory is created if needed.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	var (
		db  *sql.DB
		err error
	)
	switch driver {
	case DriverSQLite:
		if dsn == "" {
			return nil, errors.New("history: sqlite needs a database path")
		}
		if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
			if err := os.MkdirAll(filepath.Dir(dsn), 0o750); err != nil {
				return nil, fmt.Errorf("creating history dir: %w", err)
			}
			dsn += "?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)"
		}
		db, err = sql.Open("sqlite", dsn)
	case DriverPostgres:
		db, err = sql.Open("postgres", dsn)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
	if err != nil {
		return nil, fmt.Errorf("opening history db: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connecting to history db: %w", err)
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &Store{db: db, driver: driver, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Add stores r. Adding the same run twice is an error.
func (s *Store) Add(ctx context.Context, r Record) error {
	cps, err := json.Marshal(r.Checkpoints)
	if err != nil {
		return fmt.Errorf("encoding checkpoints: %w", err)
	}
	past := 0
	if r.Past {
		past = 1
	}

	_, err = s.db.ExecContext(ctx, s.rebind(`INSERT INTO predictions
		(run_id, recorded_at, basis_date, target_date, balance, past, checkpoints)
		VALUES (?, ?, ?, ?, ?, ?, ?)`),
		r.RunID,
		r.RecordedAt.UTC().Format(time.RFC3339),
		r.BasisDate.UTC().Format(time.RFC3339),
		r.TargetDate.UTC().Format(time.DateOnly),
		r.Balance.String(),
		past,
		string(cps),
	)
	if err != nil {
		return fmt.Errorf("storing run %s: %w", r.RunID, err)
	}
	return nil
}

// Publish stores p, making the Store usable as a publish.Sink.
func (s *Store) Publish(ctx context.Context, runID string, p model.Prediction) error {
	return s.Add(ctx, NewRecord(runID, s.now(), p))
}

// List returns the most recent records first. limit <= 0 returns all.
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	q := `SELECT run_id, recorded_at, basis_date, target_date, balance, past, checkpoints
		FROM predictions ORDER BY recorded_at DESC, run_id DESC`
	var args []any
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(q), args...)
	if err != nil {
		return nil, fmt.Errorf("listing history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func scanRecord(rows *sql.Rows) (Record, error) {
	var (
		r                            Record
		recorded, basis, target, bal string
		past                         int
		cps                          string
	)
	if err := rows.Scan(&r.RunID, &recorded, &basis, &target, &bal, &past, &cps); err != nil {
		return Record{}, fmt.Errorf("scanning history row: %w", err)
	}

	var err error
	if r.RecordedAt, err = time.Parse(time.RFC3339, recorded); err != nil {
		return Record{}, fmt.Errorf("run %s: parsing recorded_at %q: %w", r.RunID, recorded, err)
	}
	if r.BasisDate, err = time.Parse(time.RFC3339, basis); err != nil {
		return Record{}, fmt.Errorf("run %s: parsing basis_date %q: %w", r.RunID, basis, err)
	}
	if r.TargetDate, err = time.Parse(time.DateOnly, target); err != nil {
		return Record{}, fmt.Errorf("run %s: parsing target_date %q: %w", r.RunID, target, err)
	}
	if r.Balance, err = decimal.NewFromString(bal); err != nil {
		return Record{}, fmt.Errorf("run %s: parsing balance %q: %w", r.RunID, bal, err)
	}
	r.Past = past != 0
	if err := json.Unmarshal([]byte(cps), &r.Checkpoints); err != nil {
		return Record{}, fmt.Errorf("run %s: decoding checkpoints: %w", r.RunID, err)
	}
	return r, nil
}

// rebind rewrites ? placeholders to $n for postgres.
func (s *Store) rebind(q string) string {
	if s.driver != DriverPostgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, c := range q {
		if c == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}
