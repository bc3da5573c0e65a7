package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/reportsync/internal/ingest"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the ingest log",
	Long:  "Displays the ingestion history and when each report was last synced.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx, cfg)
		if err != nil {
			return err
		}
		defer e.Close()

		entries, err := e.Log.ListAll(ctx)
		if err != nil {
			return eris.Wrap(err, "status")
		}
		if len(entries) == 0 {
			zap.L().Info("no ingest entries found, run 'reportsync ingest' or 'reportsync batch' first")
			return nil
		}

		last := make(map[string]*time.Time, len(e.Catalog.AllNames()))
		for _, id := range e.Catalog.AllNames() {
			t, err := e.Log.LastSuccess(ctx, id)
			if err != nil {
				return eris.Wrap(err, "status")
			}
			last[id] = t
		}

		formatLastSuccess(os.Stdout, e.Catalog.AllNames(), last)
		_, _ = fmt.Fprintln(os.Stdout)
		formatStatusEntries(os.Stdout, entries)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

// formatLastSuccess writes when each report was last synced.
func formatLastSuccess(out io.Writer, ids []string, last map[string]*time.Time) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "REPORT\tLAST SYNCED")
	_, _ = fmt.Fprintln(w, "------\t-----------")
	for _, id := range ids {
		when := "never"
		if t := last[id]; t != nil {
			when = t.Format("2006-01-02 15:04")
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\n", id, when)
	}
	_ = w.Flush()
}

// formatStatusEntries writes a tabular representation of ingest log entries to w.
func formatStatusEntries(out io.Writer, entries []ingest.Entry) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tREPORT\tSTATUS\tSTARTED\tDURATION\tROWS\tREJECTS\tERROR")
	_, _ = fmt.Fprintln(w, "--\t------\t------\t-------\t--------\t----\t-------\t-----")

	for _, e := range entries {
		dur := "-"
		if e.CompletedAt != nil {
			dur = e.CompletedAt.Sub(e.StartedAt).Round(time.Second).String()
		}

		errMsg := ""
		if e.Error != "" {
			errMsg = truncate(e.Error, 60)
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			e.ID[:min(8, len(e.ID))],
			e.Report,
			e.Status,
			e.StartedAt.Format("2006-01-02 15:04"),
			dur,
			e.Rows,
			e.Rejects,
			errMsg,
		)
	}
	_ = w.Flush()
}
