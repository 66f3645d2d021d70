package cmd

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Ashfaaq98/enrich-console/internal/enrich"
	"github.com/Ashfaaq98/enrich-console/internal/store"
)

// sessionsCmd represents the sessions command
var sessionsCmd = &cobra.Command{
	Use:   "sessions [show <id> | delete <id>]",
	Short: "List stored enrichment sessions",
	Long: `List enrichment sessions from the history database in a simple text format.

Examples:
  # List the 20 most recent sessions
  enrich-console sessions

  # Show verdict counts, warnings and audit trail for one session
  enrich-console sessions show 6f1c...

  # Remove a session and everything recorded for it
  enrich-console sessions delete 6f1c...`,
	Args: cobra.MaximumNArgs(2),
	RunE: runSessions,
}

var sessionsLimit int

func init() {
	rootCmd.AddCommand(sessionsCmd)

	sessionsCmd.Flags().IntVar(&sessionsLimit, "limit", 20, "Maximum number of sessions to show")
}

func runSessions(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	config := GetConfig()

	st, err := store.NewStore(config.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer st.Close()

	out := cmd.OutOrStdout()
	if len(args) == 0 {
		return listSessions(ctx, out, st, sessionsLimit)
	}
	if len(args) != 2 {
		return fmt.Errorf("%s needs a session id", args[0])
	}

	switch strings.ToLower(args[0]) {
	case "show":
		return showSession(ctx, out, st, args[1])
	case "delete":
		if err := st.DeleteSession(ctx, args[1]); err != nil {
			return fmt.Errorf("failed to delete session %s: %w", args[1], err)
		}
		fmt.Fprintf(out, "Deleted session %s\n", args[1])
		return nil
	default:
		return fmt.Errorf("unknown sessions action: %s (use 'show' or 'delete')", args[0])
	}
}

func listSessions(ctx context.Context, out io.Writer, st *store.Store, limit int) error {
	sessions, err := st.ListSessions(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	if len(sessions) == 0 {
		fmt.Fprintln(out, "No sessions found.")
		return nil
	}

	fmt.Fprintf(out, "Found %d sessions:\n\n", len(sessions))
	for i, s := range sessions {
		title := s.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Fprintf(out, "%d. [%s] %s\n", i+1, strings.ToUpper(s.Mode), title)
		fmt.Fprintf(out, "   ID: %s\n", s.ID)
		if s.JobID != "" {
			fmt.Fprintf(out, "   Job: %s\n", s.JobID)
		}
		fmt.Fprintf(out, "   Indicators: %d\n", s.IndicatorCount)
		fmt.Fprintf(out, "   Progress: %s\n", progressLabel(s))
		fmt.Fprintf(out, "   Created: %s\n", s.CreatedAt.Format("2006-01-02 15:04:05"))
		fmt.Fprintln(out)
	}
	return nil
}

func showSession(ctx context.Context, out io.Writer, st *store.Store, id string) error {
	sess, seeds, err := st.GetSession(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load session %s: %w", id, err)
	}
	counts, err := st.CountByVerdict(ctx, id)
	if err != nil {
		return err
	}
	warnings, err := st.GetWarnings(ctx, id)
	if err != nil {
		return err
	}
	audit, err := st.GetAuditEntries(ctx, id, 10)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Session %s\n", sess.ID)
	fmt.Fprintf(out, "   Mode: %s\n", sess.Mode)
	if sess.JobID != "" {
		fmt.Fprintf(out, "   Job: %s\n", sess.JobID)
	}
	if sess.Source != "" {
		fmt.Fprintf(out, "   Source: %s\n", sess.Source)
	}
	fmt.Fprintf(out, "   Indicators: %d\n", len(seeds))
	fmt.Fprintf(out, "   Progress: %s\n", progressLabel(*sess))

	fmt.Fprintln(out, "\nResults by verdict:")
	verdicts := enrich.Verdicts()
	for i := len(verdicts) - 1; i >= 0; i-- {
		v := verdicts[i]
		fmt.Fprintf(out, "   %-10s %d\n", v.Label(), counts[string(v)])
	}

	if len(warnings) > 0 {
		fmt.Fprintln(out, "\nWarnings:")
		for _, w := range warnings {
			fmt.Fprintf(out, "   %s %s\n", w.CreatedAt.Format("15:04:05"), w.Message)
		}
	}

	if len(audit) > 0 {
		fmt.Fprintln(out, "\nRecent activity:")
		for _, a := range audit {
			fmt.Fprintf(out, "   %s %-17s %s\n", a.Timestamp.Format("2006-01-02 15:04:05"), a.Action, detailsLine(a.Details))
		}
	}
	return nil
}

func progressLabel(s store.Session) string {
	if s.Complete {
		return fmt.Sprintf("complete (%d/%d)", s.Done, s.Total)
	}
	if s.Total == 0 {
		return "not started"
	}
	return fmt.Sprintf("%d/%d providers", s.Done, s.Total)
}

func detailsLine(details map[string]interface{}) string {
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, details[k]))
	}
	return strings.Join(parts, " ")
}
