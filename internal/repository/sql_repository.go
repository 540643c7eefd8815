package repository

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	pgmigrate "github.com/golang-migrate/migrate/v4/database/postgres"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	migrationsTable = "fulfillment_schema_migrations"
)

//go:embed migrations
var migrationsFS embed.FS

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// stores binds every table accessor to either the pool or an open transaction.
type stores struct {
	q querier
}

func (s stores) Carts() CartStore          { return &sqlCarts{q: s.q} }
func (s stores) Inventory() InventoryStore { return &sqlInventory{q: s.q} }
func (s stores) Orders() OrderLedger       { return &sqlOrders{q: s.q} }
func (s stores) Outbox() Outbox            { return &sqlOutbox{q: s.q} }

// Repository is the database/sql implementation of Store, backed by
// Postgres in production and SQLite for embedded runs and tests.
type Repository struct {
	stores
	db     *sql.DB
	driver string
}

func NewPostgresRepository(cred *Credentials) (*Repository, error) {
	psqlconn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cred.Host,
		cred.Port,
		cred.User,
		cred.Password,
		cred.DBName)

	db, err := sql.Open(DriverPostgres, psqlconn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if e2 := db.Ping(); e2 != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", e2)
	}

	db.SetMaxOpenConns(100)
	db.SetMaxIdleConns(10)
	return &Repository{stores: stores{q: db}, db: db, driver: DriverPostgres}, nil
}

// NewSQLiteRepository opens a single-connection SQLite database. ":memory:"
// gives a private throwaway database.
func NewSQLiteRepository(dbPath string) (*Repository, error) {
	db, err := sql.Open(DriverSQLite, dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// every connection to :memory: is a separate database, and SQLite
	// serializes writers anyway
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Repository{stores: stores{q: db}, db: db, driver: DriverSQLite}, nil
}

func (r *Repository) Driver() string {
	return r.driver
}

// RunMigrations applies the schema for the repository's driver. An empty
// dirPath uses the migrations compiled into the binary.
func (r *Repository) RunMigrations(dirPath string) error {
	var m *migrate.Migrate
	var err error

	switch r.driver {
	case DriverPostgres:
		driver, e2 := pgmigrate.WithInstance(r.db, &pgmigrate.Config{MigrationsTable: migrationsTable})
		if e2 != nil {
			return fmt.Errorf("could not create migration driver: %w", e2)
		}
		m, err = r.newMigrate(dirPath, driver)
	case DriverSQLite:
		driver, e2 := sqlitemigrate.WithInstance(r.db, &sqlitemigrate.Config{MigrationsTable: migrationsTable})
		if e2 != nil {
			return fmt.Errorf("could not create migration driver: %w", e2)
		}
		m, err = r.newMigrate(dirPath, driver)
	default:
		return fmt.Errorf("unsupported driver %q", r.driver)
	}
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}

	return nil
}

func (r *Repository) newMigrate(dirPath string, dbDriver database.Driver) (*migrate.Migrate, error) {
	if dirPath != "" {
		return migrate.NewWithDatabaseInstance(fmt.Sprintf("file://%s", dirPath), r.driver, dbDriver)
	}

	src, err := iofs.New(migrationsFS, "migrations/"+r.driver)
	if err != nil {
		return nil, fmt.Errorf("open embedded migrations: %w", err)
	}
	return migrate.NewWithInstance("iofs", src, r.driver, dbDriver)
}

// WithinTx runs fn inside a database transaction using the driver's default
// isolation. A cancelled ctx rolls the transaction back.
func (r *Repository) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return persistenceError("begin tx", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, stores{q: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, persistenceError("rollback tx", rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return persistenceError("commit tx", err)
	}
	return nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}
