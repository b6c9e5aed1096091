// Package store persists run results in SQLite.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/boristopalov/dojo/pkg/results"

	// Pure Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

const (
	runsTable     = "runs"
	episodesTable = "episodes"
)

// Run is one persisted experiment run.
type Run struct {
	ID        string
	AgentName string
	StartedAt time.Time
	Episodes  int
}

// Store is a results.Store backed by SQLite.
type Store struct {
	db  *sql.DB
	drv *entsql.Driver
}

var _ results.Store = (*Store)(nil)

// Open connects to the SQLite database at dsn and creates the tables if
// needed.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}

	s := &Store{db: db, drv: entsql.OpenDB(dialect.SQLite, db)}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// DB returns the underlying *sql.DB for raw queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Close() error {
	return s.drv.Close()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id         TEXT NOT NULL PRIMARY KEY,
		agent      TEXT NOT NULL,
		started_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS episodes (
		run_id     TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		episode    INTEGER NOT NULL,
		cumulative REAL NOT NULL,
		mean       REAL NOT NULL,
		steps      INTEGER NOT NULL,
		PRIMARY KEY (run_id, episode)
	)`,
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if err := s.drv.Exec(ctx, stmt, []any{}, nil); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	return nil
}

// SaveResults stores a run and all of its episode summaries in one
// transaction.
func (s *Store) SaveResults(ctx context.Context, rec results.Record) error {
	tx, err := s.drv.Tx(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	b := entsql.Dialect(dialect.SQLite)
	query, args := b.Insert(runsTable).
		Columns("id", "agent", "started_at").
		Values(rec.RunID, rec.AgentName, rec.StartedAt.UTC().Format(time.RFC3339Nano)).
		Query()
	if err := tx.Exec(ctx, query, args, nil); err != nil {
		tx.Rollback()
		return fmt.Errorf("insert run %s: %w", rec.RunID, err)
	}

	if len(rec.Summaries) > 0 {
		insert := b.Insert(episodesTable).Columns("run_id", "episode", "cumulative", "mean", "steps")
		for _, sum := range rec.Summaries {
			insert.Values(rec.RunID, sum.Episode, sum.Cumulative, sum.Mean, sum.Steps)
		}
		query, args = insert.Query()
		if err := tx.Exec(ctx, query, args, nil); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert episodes of run %s: %w", rec.RunID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Runs lists stored runs, newest first. An empty agent lists every run.
func (s *Store) Runs(ctx context.Context, agent string) ([]Run, error) {
	r := entsql.Table(runsTable).As("r")
	e := entsql.Table(episodesTable).As("e")
	sel := entsql.Dialect(dialect.SQLite).
		Select(r.C("id"), r.C("agent"), r.C("started_at"), entsql.Count(e.C("episode"))).
		From(r).
		LeftJoin(e).On(r.C("id"), e.C("run_id")).
		GroupBy(r.C("id"), r.C("agent"), r.C("started_at")).
		OrderBy(entsql.Desc(r.C("started_at")))
	if agent != "" {
		sel.Where(entsql.EQ(r.C("agent"), agent))
	}
	query, args := sel.Query()

	rows := &entsql.Rows{}
	if err := s.drv.Query(ctx, query, args, rows); err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run     Run
			started string
			err     error
		)
		if err := rows.Scan(&run.ID, &run.AgentName, &started, &run.Episodes); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if run.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("parse start time of run %s: %w", run.ID, err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Episodes returns the summaries of one run in episode order.
func (s *Store) Episodes(ctx context.Context, runID string) ([]results.Summary, error) {
	query, args := entsql.Dialect(dialect.SQLite).
		Select("episode", "cumulative", "mean", "steps").
		From(entsql.Table(episodesTable)).
		Where(entsql.EQ("run_id", runID)).
		OrderBy("episode").
		Query()

	rows := &entsql.Rows{}
	if err := s.drv.Query(ctx, query, args, rows); err != nil {
		return nil, fmt.Errorf("query episodes: %w", err)
	}
	defer rows.Close()

	var out []results.Summary
	for rows.Next() {
		var sum results.Summary
		if err := rows.Scan(&sum.Episode, &sum.Cumulative, &sum.Mean, &sum.Steps); err != nil {
			return nil, fmt.Errorf("scan episode: %w", err)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}
