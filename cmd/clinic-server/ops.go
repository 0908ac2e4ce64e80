package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dentflow/clinic/internal/config"
	"github.com/dentflow/clinic/internal/domain/scheduling"
	"github.com/dentflow/clinic/internal/platform/db"
	"github.com/dentflow/clinic/internal/platform/events"
	"github.com/dentflow/clinic/internal/platform/reminders"
)

// connect loads config and opens a pool for one-shot commands.
func connect(ctx context.Context) (*config.Config, *pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, err
	}
	return cfg, pool, nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			ctx := context.Background()
			_, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			fmt.Printf("Running migrations on schema: %s\n", schema)

			count, err := migrator.Up(ctx, schema)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	addMigrateFlags(upCmd)
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			ctx := context.Background()
			_, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, dir).Status(ctx, schema)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("Migration status for schema: %s\n", schema)
			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	addMigrateFlags(statusCmd)
	cmd.AddCommand(statusCmd)

	// migrate down
	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recently applied migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			ctx := context.Background()
			_, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			mig, err := db.NewMigrator(pool, dir).Down(ctx, schema)
			if errors.Is(err, db.ErrNothingToRollback) {
				fmt.Printf("Nothing to roll back on schema: %s\n", schema)
				return nil
			}
			if err != nil {
				return fmt.Errorf("rollback failed: %w", err)
			}
			fmt.Printf("Rolled back %03d_%s on schema: %s\n", mig.Version, mig.Name, schema)
			return nil
		},
	}
	addMigrateFlags(downCmd)
	cmd.AddCommand(downCmd)

	return cmd
}

func addMigrateFlags(cmd *cobra.Command) {
	cmd.Flags().String("schema", db.SchemaName("default"), "Target schema for migrations")
	cmd.Flags().String("dir", "./migrations", "Path to migrations directory")
}

func clinicCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clinic",
		Short: "Manage clinics",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a clinic schema and apply migrations to it",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			dir, _ := cmd.Flags().GetString("dir")
			if name == "" {
				return fmt.Errorf("--name is required")
			}

			ctx := context.Background()
			_, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			fmt.Printf("Creating clinic schema: %s\n", db.SchemaName(name))
			if err := db.CreateClinicSchema(ctx, pool, name, dir); err != nil {
				return err
			}
			fmt.Println("Clinic created successfully.")
			return nil
		},
	}
	createCmd.Flags().String("name", "", "Clinic identifier (letters, digits, underscore)")
	createCmd.Flags().String("dir", "./migrations", "Path to migrations directory")

	cmd.AddCommand(createCmd)
	return cmd
}

func newReminderScheduler(cfg *config.Config, pool *pgxpool.Pool, repo scheduling.AppointmentRepository, pub events.Publisher, logger zerolog.Logger) (*reminders.Scheduler, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	inClinic := func(ctx context.Context, clinicID string, fn func(ctx context.Context) error) error {
		return db.InClinic(ctx, pool, clinicID, fn)
	}
	return reminders.New(reminders.Config{
		Spec:     cfg.ReminderCron,
		Clinics:  cfg.ReminderClinics,
		Location: loc,
	}, scheduling.NewService(repo, nil), pub, inClinic, logger)
}

func remindersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reminders",
		Short: "Appointment reminders",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Publish reminders for tomorrow's appointments once",
		RunE: func(cmd *cobra.Command, args []string) error {
			clinics, _ := cmd.Flags().GetStringSlice("clinic")

			ctx := context.Background()
			cfg, pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()
			if len(clinics) > 0 {
				cfg.ReminderClinics = clinics
			}

			logger := newLogger(cfg)
			pub, err := newPublisher(cfg, logger)
			if err != nil {
				return err
			}
			defer pub.Close()

			sched, err := newReminderScheduler(cfg, pool, scheduling.NewAppointmentRepoPG(pool), pub, logger)
			if err != nil {
				return err
			}
			n, err := sched.RunOnce(logger.WithContext(ctx))
			fmt.Printf("Sent %d reminder(s).\n", n)
			return err
		},
	}
	runCmd.Flags().StringSlice("clinic", nil, "Clinic to remind (repeatable; defaults to REMINDER_CLINICS)")

	cmd.AddCommand(runCmd)
	return cmd
}
