package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mohammedtaufeeqahmed/work-report-application-sub000/pkg/reports"
)

const uniqueViolation = "23505"

const schema = `
CREATE TABLE IF NOT EXISTS work_reports (
	id            UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	employee_id   TEXT NOT NULL,
	report_date   DATE NOT NULL,
	employee_name TEXT NOT NULL DEFAULT '',
	department    TEXT NOT NULL DEFAULT '',
	tasks         TEXT NOT NULL,
	blockers      TEXT NOT NULL DEFAULT '',
	hours_worked  DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (employee_id, report_date)
)`

const selectColumns = `id::text, employee_id, to_char(report_date, 'YYYY-MM-DD'),
	employee_name, department, tasks, blockers, hours_worked, created_at`

// Postgres stores work reports in PostgreSQL through a pgx connection pool.
// The pool is shared with the rest of the application.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects a pool to connString and verifies it with a ping.
func NewPostgres(ctx context.Context, connString string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool.
func NewPostgresFromPool(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// EnsureSchema creates the work_reports table if it does not exist.
func (s *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create work_reports table: %w", err)
	}
	return nil
}

// FindByNaturalKey returns nil, nil when no report exists for the key.
func (s *Postgres) FindByNaturalKey(ctx context.Context, employeeID, date string) (*reports.Record, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+selectColumns+` FROM work_reports WHERE employee_id = $1 AND report_date = $2::date`,
		employeeID, date,
	)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find work report: %w", classify(err))
	}
	return rec, nil
}

// Create inserts a report. A unique-key violation is reported as reports.ErrDuplicate.
func (s *Postgres) Create(ctx context.Context, p reports.Payload) (*reports.Record, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO work_reports (employee_id, report_date, employee_name, department, tasks, blockers, hours_worked)
		 VALUES ($1, $2::date, $3, $4, $5, $6, $7)
		 RETURNING `+selectColumns,
		p.EmployeeID, p.Date, p.EmployeeName, p.Department, p.Tasks, p.Blockers, p.HoursWorked,
	)
	rec, err := scanRecord(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, reports.DuplicateError(p.Key())
		}
		return nil, fmt.Errorf("failed to create work report: %w", classify(err))
	}
	return rec, nil
}

// classify marks server errors that no retry can fix with reports.ErrRejected.
// Connection, resource, shutdown and serialization classes stay retryable.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && !retryableSQLState(pgErr.Code) {
		return fmt.Errorf("%w: %w", reports.ErrRejected, err)
	}
	return err
}

func retryableSQLState(code string) bool {
	switch {
	case strings.HasPrefix(code, "08"), strings.HasPrefix(code, "53"), strings.HasPrefix(code, "57P"):
		return true
	case code == "40001", code == "40P01":
		return true
	}
	return false
}

// Close releases the pool.
func (s *Postgres) Close() {
	s.pool.Close()
}

func scanRecord(row pgx.Row) (*reports.Record, error) {
	var rec reports.Record
	err := row.Scan(
		&rec.ID,
		&rec.EmployeeID,
		&rec.Date,
		&rec.EmployeeName,
		&rec.Department,
		&rec.Tasks,
		&rec.Blockers,
		&rec.HoursWorked,
		&rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
