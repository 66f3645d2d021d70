package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Ashfaaq98/enrich-console/internal/enrich"
	"github.com/Ashfaaq98/enrich-console/internal/logger"
	"github.com/Ashfaaq98/enrich-console/internal/poller"
	"github.com/Ashfaaq98/enrich-console/internal/session"
	"github.com/Ashfaaq98/enrich-console/internal/store"
)

var (
	exportSessionID string
	exportManifest  string
	exportReplay    string
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Print the clipboard export for a session",
	Long: `Print one line per indicator: the value alone, or "value | provider: verdict (detail)"
for the indicator's worst verdict.

Examples:
  # Re-export a stored session
  enrich-console export --session 6f1c...

  # Export a manifest against a recorded status replay
  enrich-console export --manifest session.json --replay frames.json`,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVar(&exportSessionID, "session", "", "Stored session id")
	exportCmd.Flags().StringVar(&exportManifest, "manifest", "", "Session manifest (JSON)")
	exportCmd.Flags().StringVar(&exportReplay, "replay", "", "Recorded status frames to apply to the manifest")
	exportCmd.MarkFlagsMutuallyExclusive("session", "manifest")
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := GetConfig()
	log := newLogger(cfg.Log, cmd.ErrOrStderr())

	switch {
	case exportSessionID != "":
		st, err := store.NewStore(cfg.Database.Path)
		if err != nil {
			return fmt.Errorf("failed to initialize store: %w", err)
		}
		defer st.Close()
		return exportStoredSession(ctx, cmd.OutOrStdout(), st, exportSessionID, log)
	case exportManifest != "":
		m, err := session.Load(exportManifest)
		if err != nil {
			return err
		}
		return exportReplayed(ctx, cmd.OutOrStdout(), m, exportReplay, log)
	default:
		return fmt.Errorf("one of --session or --manifest is required")
	}
}

// exportStoredSession rebuilds the board from the stored results and prints
// its export. Results replay in arrival order so worst-verdict ties resolve
// as they did live.
func exportStoredSession(ctx context.Context, out io.Writer, st *store.Store, sessionID string, log *logger.Logger) error {
	log = logger.OrDiscard(log)
	sess, seeds, err := st.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	items, err := st.GetSessionResults(ctx, sessionID)
	if err != nil {
		return err
	}

	e := enrich.NewEngine(seeds, enrich.Options{Logger: log})
	defer e.Close()
	rep := e.ApplyStatus(&enrich.JobStatus{Total: sess.Total, Done: sess.Done, Complete: sess.Complete, Results: items})
	if rep.Dropped > 0 {
		log.WithFields(logger.Fields{"session_id": sessionID, "dropped": rep.Dropped}).Warn("stored results did not match the session indicators")
	}

	fmt.Fprintln(out, e.Export())
	if err := st.LogSessionAction(ctx, sessionID, store.ActionExported, actorConsole, map[string]interface{}{
		"indicators": len(seeds),
		"replayed":   true,
	}); err != nil {
		log.WithError(err).Warn("failed to write audit entry")
	}
	return nil
}

// exportReplayed applies every recorded frame, stopping at the first
// complete one, and prints the export. Without a recording the bare
// indicator list is exported.
func exportReplayed(ctx context.Context, out io.Writer, m *session.Manifest, replay string, log *logger.Logger) error {
	e := enrich.NewEngine(m.Indicators, enrich.Options{Logger: log})
	defer e.Close()

	if replay != "" {
		src, err := poller.NewFileSource(replay)
		if err != nil {
			return err
		}
		for i := 0; i < src.Frames(); i++ {
			status, err := src.Status(ctx, m.JobID)
			if err != nil {
				return err
			}
			e.ApplyStatus(status)
			if status.Complete {
				e.Complete(status)
				break
			}
		}
	}

	fmt.Fprintln(out, e.Export())
	return nil
}
