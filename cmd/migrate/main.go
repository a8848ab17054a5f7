package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"homework_bot/internal/db"
	"homework_bot/internal/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
)

func main() {
	_ = godotenv.Load()

	app := &cli.Command{
		Name:  "migrate",
		Usage: "Database schema management",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "database-url",
				Usage: "postgres connection string, defaults to DATABASE_URL",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "up",
				Usage:  "Apply pending migrations",
				Action: withPool(handleUp),
			},
			{
				Name:   "down",
				Usage:  "Roll back the most recent migration",
				Action: withPool(handleDown),
			},
			{
				Name:   "status",
				Usage:  "Show applied and pending migrations",
				Action: withPool(handleStatus),
			},
			{
				Name:  "list",
				Usage: "List embedded migrations",
				Action: func(_ context.Context, _ *cli.Command) error {
					migrations, err := db.Migrations()
					if err != nil {
						return err
					}
					for _, m := range migrations {
						fmt.Printf("%04d_%s\n", m.Version, m.Name)
					}
					return nil
				},
			},
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		logger.Error("migrate failed", "error", err)
		os.Exit(1)
	}
}

func withPool(fn func(ctx context.Context, pool *pgxpool.Pool) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		dsn := cmd.String("database-url")
		if dsn == "" {
			dsn = os.Getenv("DATABASE_URL")
		}
		if dsn == "" {
			return fmt.Errorf("DATABASE_URL is not set")
		}
		pool, err := db.Connect(ctx, dsn)
		if err != nil {
			return err
		}
		defer pool.Close()
		return fn(ctx, pool)
	}
}

func handleUp(ctx context.Context, pool *pgxpool.Pool) error {
	applied, err := db.Migrate(ctx, pool)
	if err != nil {
		return err
	}
	if applied == 0 {
		logger.Info("no new migrations to run (database is up to date)")
		return nil
	}
	logger.Info("successfully migrated", "applied", applied)
	return nil
}

func handleDown(ctx context.Context, pool *pgxpool.Pool) error {
	if err := db.Rollback(ctx, pool); err != nil {
		return err
	}
	st, err := db.CurrentStatus(ctx, pool)
	if err != nil {
		return err
	}
	logger.Info("rolled back", "version", st.Version)
	return nil
}

func handleStatus(ctx context.Context, pool *pgxpool.Pool) error {
	migrations, err := db.Migrations()
	if err != nil {
		return err
	}
	st, err := db.CurrentStatus(ctx, pool)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tNAME\tSTATE")
	for _, m := range migrations {
		state := "pending"
		switch {
		case m.Version == st.Version && st.Dirty:
			state = "dirty"
		case m.Version <= st.Version:
			state = "applied"
		}
		fmt.Fprintf(w, "%04d\t%s\t%s\n", m.Version, m.Name, state)
	}
	return w.Flush()
}
