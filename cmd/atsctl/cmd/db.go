package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	dbfs "github.com/garnizeh/ats/db"
	"github.com/garnizeh/ats/internal/db"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply schema migrations and seed data",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		d, err := db.New(ctx, cfg.DatabasePath, lg)
		if err != nil {
			return err
		}
		defer d.Close()

		if err := db.Migrate(ctx, d, dbfs.Migrations, dbfs.SeedFiles); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Database initialized successfully.")
		return nil
	},
}

var backupCmd = &cobra.Command{
	Use:   "backup [destination]",
	Short: "Write a consistent copy of the database (default: <database_path>.bak)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dst := cfg.DatabasePath + ".bak"
		if len(args) == 1 {
			dst = args[0]
		}
		// VACUUM INTO refuses to overwrite
		if err := os.Remove(dst); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}

		ctx := cmd.Context()
		d, err := db.New(ctx, cfg.DatabasePath, lg)
		if err != nil {
			return err
		}
		defer d.Close()

		if _, err := d.Exec(ctx, `VACUUM INTO ?`, dst); err != nil {
			return fmt.Errorf("backup: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Database backup completed: %s\n", dst)
		return nil
	},
}

var restoreForce bool

var restoreCmd = &cobra.Command{
	Use:   "restore [source]",
	Short: "Replace the database with a backup (default: <database_path>.bak)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src := cfg.DatabasePath + ".bak"
		if len(args) == 1 {
			src = args[0]
		}
		if _, err := os.Stat(cfg.DatabasePath); err == nil && !restoreForce {
			return fmt.Errorf("%s exists; pass --force to overwrite it", cfg.DatabasePath)
		}
		if err := copyFile(src, cfg.DatabasePath); err != nil {
			return fmt.Errorf("restore: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Database restore completed.")
		return nil
	},
}

// copyFile writes src to a temporary file beside dst and renames it into place.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), filepath.Base(dst)+".restore-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}

func init() {
	restoreCmd.Flags().BoolVarP(&restoreForce, "force", "f", false, "overwrite an existing database")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(restoreCmd)
}
