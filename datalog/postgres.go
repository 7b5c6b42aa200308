package datalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	logger "github.com/sirupsen/logrus"
)

const createTable = `CREATE TABLE IF NOT EXISTS %s (
	recorded_at timestamptz NOT NULL,
	boot_id     uuid        NOT NULL,
	warnings    text        NOT NULL,
	sensors     bigint[],
	controllers bigint[]
)`

const insertLine = `INSERT INTO %s (recorded_at, boot_id, warnings, sensors, controllers) VALUES ($1, $2, $3, $4, $5)`

type execer interface {
	PingContext(ctx context.Context) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// PostgresSink inserts one row per line. Invalid readings are stored as NULL;
// the error markers only survive in the warnings column.
type PostgresSink struct {
	db        execer
	table     string
	mandatory bool
	created   bool
	header    *Header
}

func NewPostgresSink(dsn, table string, mandatory bool) (*PostgresSink, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgresql database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxIdleTime(time.Minute)
	return newPostgresSink(db, table, mandatory), nil
}

func newPostgresSink(db execer, table string, mandatory bool) *PostgresSink {
	if table == "" {
		table = "envmon_log"
	}
	return &PostgresSink{db: db, table: pq.QuoteIdentifier(table), mandatory: mandatory}
}

func (s *PostgresSink) Name() string {
	return "postgres"
}

func (s *PostgresSink) Mandatory() bool {
	return s.mandatory
}

func (s *PostgresSink) Open(ctx context.Context, h *Header) error {
	s.header = h
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping postgresql database: %w", err)
	}
	if !s.created {
		if _, err := s.db.ExecContext(ctx, fmt.Sprintf(createTable, s.table)); err != nil {
			return fmt.Errorf("create log table: %w", err)
		}
		logger.Infof("Log table [%v] ready", s.table)
		s.created = true
	}
	return nil
}

func (s *PostgresSink) WriteLine(ctx context.Context, snap *Snapshot, _ string) error {
	boot := ""
	if s.header != nil {
		boot = s.header.BootID
	}
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(insertLine, s.table),
		time.Unix(int64(snap.Time), 0).UTC(),
		boot,
		snap.Warnings.String(),
		pq.Array(nullable(snap.Sensors)),
		pq.Array(nullable(snap.Controllers)),
	)
	if err != nil {
		return fmt.Errorf("insert log line: %w", err)
	}
	return nil
}

func (s *PostgresSink) Close() error {
	return nil
}

func nullable(rs []Reading) []sql.NullInt64 {
	out := make([]sql.NullInt64, len(rs))
	for i, r := range rs {
		out[i] = sql.NullInt64{Int64: int64(r.Value), Valid: r.Valid}
	}
	return out
}
