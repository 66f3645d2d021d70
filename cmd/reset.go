package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Ashfaaq98/enrich-console/internal/bus"
)

var (
	confirmReset bool
	resetRedis   bool
	resetDB      bool
)

// resetCmd represents the reset command
var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete session history and/or the verdict streams",
	Long: `Reset removes the SQLite history database and/or the Redis streams the
console publishes to. Other keys in Redis are left alone.

By default both are reset. Use --redis-only or --db-only to pick one.

WARNING: This operation is irreversible.

Examples:
  # Reset both (asks for confirmation)
  enrich-console reset

  # Reset with automatic confirmation
  enrich-console reset --yes

  # Reset only the history database
  enrich-console reset --db-only`,
	RunE: runReset,
}

func init() {
	rootCmd.AddCommand(resetCmd)

	resetCmd.Flags().BoolVarP(&confirmReset, "yes", "y", false, "Automatically confirm reset operation")
	resetCmd.Flags().BoolVar(&resetRedis, "redis-only", false, "Reset only the Redis streams")
	resetCmd.Flags().BoolVar(&resetDB, "db-only", false, "Reset only the history database")
	resetCmd.MarkFlagsMutuallyExclusive("redis-only", "db-only")
}

func runReset(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := GetConfig()
	out := cmd.OutOrStdout()

	doRedis, doDB := resetRedis, resetDB
	if !doRedis && !doDB {
		doRedis, doDB = true, true
	}

	var targets []string
	if doRedis {
		targets = append(targets, "Redis verdict streams")
	}
	if doDB {
		targets = append(targets, "session history database")
	}
	fmt.Fprintf(out, "This will permanently delete: %s\n", strings.Join(targets, " and "))

	if !confirmReset && !confirm(cmd.InOrStdin(), out, "Are you sure you want to continue? (y/N): ") {
		fmt.Fprintln(out, "Reset operation cancelled.")
		return nil
	}

	if doRedis {
		if err := resetStreams(ctx, out, cfg.Redis); err != nil {
			if !doDB || resetRedis {
				return err
			}
			fmt.Fprintf(out, "Warning: %v\n", err)
		}
	}

	if doDB {
		if err := removeDatabase(out, cfg.Database.Path); err != nil {
			return fmt.Errorf("failed to reset database: %w", err)
		}
	}

	fmt.Fprintln(out, "Reset operation completed successfully!")
	return nil
}

func confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprint(out, prompt)
	var response string
	fmt.Fscanln(in, &response)
	response = strings.ToLower(strings.TrimSpace(response))
	return response == "y" || response == "yes"
}

func resetStreams(ctx context.Context, out io.Writer, cfg RedisConfig) error {
	if cfg.URL == "" {
		fmt.Fprintln(out, "Redis is not configured, nothing to clear")
		return nil
	}
	rb, err := bus.NewRedisBus(cfg.URL, cfg.Stream, nil)
	if err != nil {
		return err
	}
	defer rb.Close()

	n, err := rb.Purge(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "✓ Cleared %d of %d streams (%s)\n", n, len(rb.Streams()), strings.Join(rb.Streams(), ", "))
	return nil
}

// removeDatabase deletes the SQLite file and its WAL companions.
func removeDatabase(out io.Writer, dbPath string) error {
	if dbPath == "" {
		fmt.Fprintln(out, "No database configured")
		return nil
	}

	var removed []string
	for _, file := range []string{dbPath, dbPath + "-shm", dbPath + "-wal"} {
		if _, err := os.Stat(file); err != nil {
			continue
		}
		if err := os.Remove(file); err != nil {
			return fmt.Errorf("failed to remove database file %s: %w", file, err)
		}
		removed = append(removed, filepath.Base(file))
	}

	if len(removed) == 0 {
		fmt.Fprintln(out, "No database files found to remove")
		return nil
	}
	fmt.Fprintf(out, "✓ Removed database files: %s\n", strings.Join(removed, ", "))
	return nil
}
