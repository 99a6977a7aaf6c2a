// Package store provides the transactional SQL storage behind the engagement
// engine. SQLite (pure Go, default) and PostgreSQL (pgx) share one schema and
// one set of queries; only placeholder syntax differs.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)

	"github.com/studydash/studydash/internal/domain"
)

// Driver names accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config selects and tunes the backing database.
type Config struct {
	Driver       string `toml:"driver"`
	Dir          string `toml:"dir"`
	DSN          string `toml:"dsn"`
	MaxOpenConns int    `toml:"max_open_conns"`
}

// DB wraps a database/sql handle with its dialect and migrations.
type DB struct {
	db       *sql.DB
	postgres bool
	log      *zap.Logger
}

// Open opens the database selected by cfg and runs migrations.
func Open(ctx context.Context, cfg Config, log *zap.Logger) (*DB, error) {
	switch cfg.Driver {
	case "", DriverSQLite:
		return OpenSQLite(ctx, cfg.Dir, log)
	case DriverPostgres:
		return OpenPostgres(ctx, cfg.DSN, cfg.MaxOpenConns, log)
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownDriver, cfg.Driver)
	}
}

// OpenSQLite creates or opens the SQLite database at dir/state.db.
// Enables WAL mode, foreign keys, and 5-second busy timeout.
func OpenSQLite(ctx context.Context, dir string, log *zap.Logger) (*DB, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dir, "state.db")
	dsn := "file:" + dbPath +
		"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite is single-writer; one connection also serializes transactions.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return finishOpen(ctx, db, false, log)
}

// OpenPostgres connects through the pgx database/sql adapter.
func OpenPostgres(ctx context.Context, dsn string, maxOpen int, log *zap.Logger) (*DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("open postgres: empty dsn")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
		db.SetMaxIdleConns(maxOpen)
	}
	return finishOpen(ctx, db, true, log)
}

func finishOpen(ctx context.Context, db *sql.DB, postgres bool, log *zap.Logger) (*DB, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	d := &DB{db: db, postgres: postgres, log: log.Named("store")}
	if err := d.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return d, nil
}

// Close cleanly shuts down the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks database connectivity.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Driver returns the active driver name.
func (d *DB) Driver() string {
	if d.postgres {
		return DriverPostgres
	}
	return DriverSQLite
}

// WithTx runs fn inside a single transaction. The transaction commits when fn
// returns nil and rolls back otherwise, so a failure leaves no partial state.
func (d *DB) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	tx := &Tx{tx: sqlTx, postgres: d.postgres}

	if err := fn(tx); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			d.log.Warn("rollback failed", zap.Error(rbErr))
		}
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// View runs fn inside a read-only transaction so multi-query reads see one
// consistent snapshot. Postgres needs REPEATABLE READ for that; SQLite pins
// the snapshot at the first read.
func (d *DB) View(ctx context.Context, fn func(tx *Tx) error) error {
	opts := &sql.TxOptions{ReadOnly: d.postgres}
	if d.postgres {
		opts.Isolation = sql.LevelRepeatableRead
	}
	sqlTx, err := d.db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin read tx: %w", err)
	}
	defer sqlTx.Rollback()
	return fn(&Tx{tx: sqlTx, postgres: d.postgres})
}

// migrate runs idempotent schema migrations. The DDL is shared by both
// drivers: TEXT keys, BIGINT unix seconds, INTEGER counters and flags.
func (d *DB) migrate(ctx context.Context) error {
	migrations := []string{
		// Per-user streak / XP state
		`CREATE TABLE IF NOT EXISTS user_streaks (
			user_id               TEXT PRIMARY KEY,
			current_streak        INTEGER NOT NULL DEFAULT 0,
			longest_streak        INTEGER NOT NULL DEFAULT 0,
			last_activity_date    TEXT,
			streak_start_date     TEXT,
			total_tasks_completed INTEGER NOT NULL DEFAULT 0,
			total_xp              INTEGER NOT NULL DEFAULT 0,
			level                 INTEGER NOT NULL DEFAULT 1,
			vacation_mode         INTEGER NOT NULL DEFAULT 0,
			vacation_started_at   BIGINT,
			early_bird_count      INTEGER NOT NULL DEFAULT 0,
			night_owl_count       INTEGER NOT NULL DEFAULT 0,
			created_at            BIGINT NOT NULL,
			updated_at            BIGINT NOT NULL
		)`,

		// Completion credit log (double-credit guard)
		`CREATE TABLE IF NOT EXISTS completion_credits (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL,
			item_type  TEXT NOT NULL,
			item_id    TEXT NOT NULL,
			xp_awarded INTEGER NOT NULL,
			created_at BIGINT NOT NULL,
			UNIQUE (user_id, item_type, item_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_credits_user_created ON completion_credits(user_id, created_at)`,

		// Per-day activity counters
		`CREATE TABLE IF NOT EXISTS daily_activity (
			user_id         TEXT NOT NULL,
			day             TEXT NOT NULL,
			tasks_completed INTEGER NOT NULL DEFAULT 0,
			xp_earned       INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (user_id, day)
		)`,

		// Achievement grants
		`CREATE TABLE IF NOT EXISTS user_achievements (
			user_id        TEXT NOT NULL,
			achievement_id TEXT NOT NULL,
			earned_at      BIGINT NOT NULL,
			PRIMARY KEY (user_id, achievement_id)
		)`,

		// Daily challenge reward grants (existence == claimed)
		`CREATE TABLE IF NOT EXISTS daily_challenge_rewards (
			user_id      TEXT NOT NULL,
			challenge_id TEXT NOT NULL,
			date_key     TEXT NOT NULL,
			xp_awarded   INTEGER NOT NULL,
			claimed_at   BIGINT NOT NULL,
			PRIMARY KEY (user_id, challenge_id, date_key)
		)`,

		// Monthly leaderboard accumulator
		`CREATE TABLE IF NOT EXISTS monthly_xp_totals (
			user_id        TEXT NOT NULL,
			year_month     TEXT NOT NULL,
			institution_id TEXT NOT NULL,
			xp             INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (user_id, year_month)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_monthly_inst ON monthly_xp_totals(institution_id, year_month)`,

		// Institution membership (routes monthly totals)
		`CREATE TABLE IF NOT EXISTS user_institutions (
			user_id        TEXT PRIMARY KEY,
			institution_id TEXT NOT NULL
		)`,

		// Append-only XP ledger: SUM(amount) per user == user_streaks.total_xp
		`CREATE TABLE IF NOT EXISTS xp_ledger (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL,
			source     TEXT NOT NULL,
			reference  TEXT NOT NULL,
			amount     INTEGER NOT NULL,
			day        TEXT NOT NULL,
			created_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_xp_ledger_user ON xp_ledger(user_id, created_at)`,
	}

	for _, m := range migrations {
		if _, err := d.db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	d.log.Debug("migrations applied", zap.Int("count", len(migrations)), zap.String("driver", d.Driver()))
	return nil
}

// ─── Tx ─────────────────────────────────────────────────────────────────────

// Tx is a unit of work. All engine reads and writes go through a Tx so that
// a logical operation commits or rolls back as a whole.
type Tx struct {
	tx       *sql.Tx
	postgres bool
}

func (t *Tx) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, t.rebind(query), args...)
}

func (t *Tx) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.tx.QueryContext(ctx, t.rebind(query), args...)
}

func (t *Tx) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(ctx, t.rebind(query), args...)
}

// rebind rewrites "?" placeholders to "$n" for PostgreSQL.
func (t *Tx) rebind(query string) string {
	if !t.postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// inserted reports whether an INSERT ... ON CONFLICT DO NOTHING wrote a row.
func inserted(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
