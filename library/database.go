package library

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

// Dialect names the SQL flavour of the backing store. The values double as goqu dialect names.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite3"
	DialectPostgres Dialect = "postgres"
)

const (
	DefaultLockTimeout = 5 * time.Second

	defaultMaxOpenConns    = 20
	defaultMaxIdleConns    = 5
	defaultConnMaxLifetime = time.Hour
	defaultConnMaxIdleTime = 5 * time.Minute
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationsFS embed.FS

// Database owns the connection pools. Writes go through RunInTx, which
// serialises them per book (PostgreSQL row locks) or globally (SQLite's
// single writer). Reads use db and never block the writer.
type Database struct {
	db      *sqlx.DB
	writeDB *sqlx.DB
	dialect Dialect
	builder goqu.DialectWrapper

	lockTimeout  time.Duration
	maxOpenConns int
	logger       Logger
}

// Option configures a Database.
type Option func(*Database) error

// WithLockTimeout bounds how long a write transaction waits for locks.
func WithLockTimeout(d time.Duration) Option {
	return func(db *Database) error {
		if d <= 0 {
			return fmt.Errorf("%w: lock timeout must be positive", ErrInvalidInput)
		}
		db.lockTimeout = d
		return nil
	}
}

// WithLogger sets the logger used for database lifecycle events.
func WithLogger(logger Logger) Option {
	return func(db *Database) error {
		if logger != nil {
			db.logger = logger
		}
		return nil
	}
}

// WithMaxOpenConns sets the PostgreSQL pool size. SQLite ignores it.
func WithMaxOpenConns(n int) Option {
	return func(db *Database) error {
		if n <= 0 {
			return fmt.Errorf("%w: max open connections must be positive", ErrInvalidInput)
		}
		db.maxOpenConns = n
		return nil
	}
}

func newDatabase(dialect Dialect, opts []Option) (*Database, error) {
	d := &Database{
		dialect:      dialect,
		builder:      goqu.Dialect(string(dialect)),
		lockTimeout:  DefaultLockTimeout,
		maxOpenConns: defaultMaxOpenConns,
		logger:       discardLogger(),
	}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// NewDatabase opens (or creates) the SQLite database at dbPath and applies
// schema migrations.
func NewDatabase(dbPath string, opts ...Option) (*Database, error) {
	if isMemoryPath(dbPath) {
		// The reader and writer pools would each get their own private database.
		return nil, fmt.Errorf("%w: in-memory sqlite database %q is not supported, use a file path", ErrInvalidInput, dbPath)
	}

	d, err := newDatabase(DialectSQLite, opts)
	if err != nil {
		return nil, err
	}

	// Ensure directory exists so first-run succeeds.
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	params := fmt.Sprintf("_busy_timeout=%d&_foreign_keys=1&_journal_mode=WAL", d.lockTimeout.Milliseconds())

	d.db, err = sqlx.Open("sqlite3", fmt.Sprintf("file:%s?%s", dbPath, params))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// One writer connection; BEGIN IMMEDIATE takes the write lock up front.
	d.writeDB, err = sqlx.Open("sqlite3", fmt.Sprintf("file:%s?%s&_txlock=immediate", dbPath, params))
	if err != nil {
		d.db.Close()
		return nil, fmt.Errorf("open sqlite writer: %w", err)
	}
	d.writeDB.SetMaxOpenConns(1)

	if err := d.applyMigrations(context.Background()); err != nil {
		d.Close()
		return nil, err
	}

	d.logger.Info(logMsgStoreOpened, logAttrDriver, string(d.dialect))
	return d, nil
}

func isMemoryPath(dbPath string) bool {
	p := strings.TrimSpace(dbPath)
	return strings.Contains(p, ":memory:") || strings.Contains(p, "mode=memory")
}

// NewPostgresDatabase connects to PostgreSQL and applies schema migrations.
func NewPostgresDatabase(ctx context.Context, dsn string, opts ...Option) (*Database, error) {
	d, err := newDatabase(DialectPostgres, opts)
	if err != nil {
		return nil, err
	}

	d.db, err = sqlx.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	d.db.SetMaxOpenConns(d.maxOpenConns)
	d.db.SetMaxIdleConns(defaultMaxIdleConns)
	d.db.SetConnMaxLifetime(defaultConnMaxLifetime)
	d.db.SetConnMaxIdleTime(defaultConnMaxIdleTime)
	d.writeDB = d.db

	if err := d.db.PingContext(ctx); err != nil {
		d.db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if err := d.applyMigrations(ctx); err != nil {
		d.db.Close()
		return nil, err
	}

	d.logger.Info(logMsgStoreOpened, logAttrDriver, string(d.dialect))
	return d, nil
}

// Close closes both pools.
func (d *Database) Close() error {
	var errs []error
	if d.writeDB != nil && d.writeDB != d.db {
		errs = append(errs, d.writeDB.Close())
	}
	if d.db != nil {
		errs = append(errs, d.db.Close())
	}
	return errors.Join(errs...)
}

// Dialect reports which SQL flavour backs the database.
func (d *Database) Dialect() Dialect { return d.dialect }

// ---------------------------------------------------------------------------
// Schema migration
// ---------------------------------------------------------------------------

func (d *Database) applyMigrations(ctx context.Context) error {
	dir, gooseDialect := "migrations/sqlite", goose.DialectSQLite3
	if d.dialect == DialectPostgres {
		dir, gooseDialect = "migrations/postgres", goose.DialectPostgres
	}

	fsys, err := fs.Sub(migrationsFS, dir)
	if err != nil {
		return fmt.Errorf("migrations fs: %w", err)
	}

	provider, err := goose.NewProvider(gooseDialect, d.db.DB, fsys)
	if err != nil {
		return fmt.Errorf("migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("apply migration: %w", err)
	}
	for _, r := range results {
		d.logger.Info(logMsgMigrated, logAttrVersion, r.Source.Version)
	}
	return nil
}

// SchemaVersion returns the highest applied migration version.
func (d *Database) SchemaVersion(ctx context.Context) (int64, error) {
	var version int64
	err := d.db.GetContext(ctx, &version,
		`SELECT COALESCE(MAX(version_id), 0) FROM goose_db_version WHERE is_applied`)
	if err != nil {
		return 0, fmt.Errorf("schema version: %w", err)
	}
	return version, nil
}

// ---------------------------------------------------------------------------
// Units of work
// ---------------------------------------------------------------------------

// Stores groups the repositories bound to one unit of work.
type Stores struct {
	Books *BookStore
	Users *UserStore
	Loans *LoanStore
	Debts *DebtStore
}

func (d *Database) stores(q sqlx.ExtContext, forUpdate bool) Stores {
	base := store{q: q, dialect: d.dialect, builder: d.builder, forUpdate: forUpdate}
	return Stores{
		Books: &BookStore{store: base},
		Users: &UserStore{store: base},
		Loans: &LoanStore{store: base},
		Debts: &DebtStore{store: base},
	}
}

// Stores returns repositories outside any transaction. Each call sees the
// latest committed state; use RunInReadTx when several reads must agree.
func (d *Database) Stores() Stores { return d.stores(d.db, false) }

// RunInTx runs fn inside one write transaction. Nothing fn does is visible
// unless it returns nil and the commit succeeds. Lock waits are bounded by
// the context deadline, or the configured lock timeout when there is none;
// exceeding it yields ErrContention.
func (d *Database) RunInTx(ctx context.Context, fn func(s Stores) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.lockTimeout)
		defer cancel()
	}

	tx, err := d.writeDB.BeginTxx(ctx, nil)
	if err != nil {
		return classifyError(fmt.Errorf("begin tx: %w", err))
	}
	defer func() { _ = tx.Rollback() }()

	if d.dialect == DialectPostgres {
		// SET does not take bind parameters.
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", d.lockTimeout.Milliseconds())
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return classifyError(fmt.Errorf("set lock timeout: %w", err))
		}
	}

	if err := fn(d.stores(tx, d.dialect == DialectPostgres)); err != nil {
		err = classifyError(err)
		if KindOf(err) == KindUnknown {
			d.logger.Error(logMsgTxFailed, logAttrError, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return classifyError(fmt.Errorf("commit tx: %w", err))
	}
	return nil
}

// RunInReadTx runs fn against one consistent snapshot.
func (d *Database) RunInReadTx(ctx context.Context, fn func(s Stores) error) error {
	var opts *sql.TxOptions
	if d.dialect == DialectPostgres {
		opts = &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	}

	tx, err := d.db.BeginTxx(ctx, opts)
	if err != nil {
		return classifyError(fmt.Errorf("begin read tx: %w", err))
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(d.stores(tx, false)); err != nil {
		return classifyError(err)
	}
	return classifyError(tx.Commit())
}

// ---------------------------------------------------------------------------
// Driver error classification
// ---------------------------------------------------------------------------

const (
	pgLockNotAvailable     = "55P03"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgUniqueViolation      = "23505"
)

// classifyError turns lock failures into ErrContention. Errors that already
// carry a kind pass through unchanged.
func classifyError(err error) error {
	if err == nil || KindOf(err) != KindUnknown {
		return err
	}
	if isLockError(err) {
		return errors.Join(ErrContention, err)
	}
	return err
}

func isLockError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgLockNotAvailable, pgSerializationFailure, pgDeadlockDetected:
			return true
		}
	}
	return false
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return false
}
