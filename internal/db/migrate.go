package db

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"homework_bot/internal/logger"

	"github.com/golang-migrate/migrate/v4"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

// Files follow golang-migrate naming: NNNN_name.up.sql / NNNN_name.down.sql
//
//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migration is one embedded schema step
type Migration struct {
	Version uint
	Name    string
}

// Status is the schema version recorded in the database
type Status struct {
	Version uint
	Dirty   bool
}

func newSource() (source.Driver, error) {
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return nil, fmt.Errorf("open embedded migrations: %w", err)
	}
	return src, nil
}

// Migrations lists the embedded migrations ordered by version
func Migrations() ([]Migration, error) {
	src, err := newSource()
	if err != nil {
		return nil, err
	}
	defer src.Close()
	return listMigrations(src)
}

func listMigrations(src source.Driver) ([]Migration, error) {
	var out []Migration
	v, err := src.First()
	for err == nil {
		r, name, rerr := src.ReadUp(v)
		if rerr != nil {
			return nil, fmt.Errorf("read migration %d: %w", v, rerr)
		}
		_ = r.Close()
		out = append(out, Migration{Version: v, Name: name})
		v, err = src.Next(v)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	return out, nil
}

type migrateLog struct{}

func (migrateLog) Printf(format string, v ...any) {
	logger.Debug(fmt.Sprintf(format, v...), "component", "migrate")
}

func (migrateLog) Verbose() bool { return false }

// newMigrator runs on a database/sql view of the pool. Closing the
// migrator does not close the pool.
func newMigrator(pool *pgxpool.Pool) (*migrate.Migrate, error) {
	src, err := newSource()
	if err != nil {
		return nil, err
	}
	driver, err := pgxmigrate.WithInstance(stdlib.OpenDBFromPool(pool), &pgxmigrate.Config{})
	if err != nil {
		_ = src.Close()
		return nil, fmt.Errorf("open migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "pgx5", driver)
	if err != nil {
		return nil, fmt.Errorf("create migrator: %w", err)
	}
	m.Log = migrateLog{}
	return m, nil
}

func closeMigrator(m *migrate.Migrate) {
	srcErr, dbErr := m.Close()
	if err := errors.Join(srcErr, dbErr); err != nil {
		logger.Warn("failed to close migrator", "error", err)
	}
}

// stopOnCancel asks a running migration to stop after the current step
// when ctx ends. The returned func releases the watcher.
func stopOnCancel(ctx context.Context, m *migrate.Migrate) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			m.GracefulStop <- true
		case <-done:
		}
	}()
	return func() { close(done) }
}

func version(m *migrate.Migrate) (Status, error) {
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return Status{}, nil
	}
	if err != nil {
		return Status{}, err
	}
	return Status{Version: v, Dirty: dirty}, nil
}

// appliedBetween counts the migrations with before < version <= after
func appliedBetween(ms []Migration, before, after uint) int {
	n := 0
	for _, m := range ms {
		if m.Version > before && m.Version <= after {
			n++
		}
	}
	return n
}

// Migrate applies every pending migration under the driver's advisory
// lock and reports how many were applied. Reruns are no-ops.
func Migrate(ctx context.Context, pool *pgxpool.Pool) (int, error) {
	m, err := newMigrator(pool)
	if err != nil {
		return 0, err
	}
	defer closeMigrator(m)
	release := stopOnCancel(ctx, m)
	defer release()

	before, err := version(m)
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	if before.Dirty {
		return 0, fmt.Errorf("schema version %d is dirty, fix it and force the version", before.Version)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("apply migrations: %w", err)
	}

	after, err := version(m)
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}

	ms, err := Migrations()
	if err != nil {
		return 0, err
	}
	applied := appliedBetween(ms, before.Version, after.Version)
	if applied > 0 {
		logger.Info("migrations applied", "from", before.Version, "to", after.Version, "count", applied)
	}
	return applied, nil
}

// Rollback reverts the most recent migration
func Rollback(ctx context.Context, pool *pgxpool.Pool) error {
	m, err := newMigrator(pool)
	if err != nil {
		return err
	}
	defer closeMigrator(m)
	release := stopOnCancel(ctx, m)
	defer release()

	if err := m.Steps(-1); err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

// CurrentStatus reports the recorded schema version
func CurrentStatus(ctx context.Context, pool *pgxpool.Pool) (Status, error) {
	m, err := newMigrator(pool)
	if err != nil {
		return Status{}, err
	}
	defer closeMigrator(m)
	return version(m)
}
