package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/reportsync/internal/ingest"
)

var (
	ingestReport string
	ingestFile   string
	ingestStrict bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest one report file",
	Long:  "Reads one export, verifies it is the given report type and syncs it into the report's table.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx, cfg)
		if err != nil {
			return err
		}
		defer e.Close()

		out, err := e.engine(cfg, ingestStrict).Ingest(ctx, ingestReport, ingestFile)
		formatOutcomes(os.Stdout, []*ingest.Outcome{out})
		if err != nil {
			return eris.Wrapf(err, "ingest %s", ingestReport)
		}
		if out.Status != ingest.StatusSynced {
			return eris.Errorf("ingest %s: file not loaded (%s)", ingestReport, out.Status)
		}
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestReport, "report", "", "report id (see 'reportsync reports')")
	ingestCmd.Flags().StringVar(&ingestFile, "file", "", "path of the export to ingest")
	ingestCmd.Flags().BoolVar(&ingestStrict, "strict", false, "fail the file when any row is rejected")
	_ = ingestCmd.MarkFlagRequired("report")
	_ = ingestCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(ingestCmd)
}

// formatOutcomes writes one line per ingested file to w.
func formatOutcomes(out io.Writer, outcomes []*ingest.Outcome) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "REPORT\tFILE\tSTATUS\tROWS\tREJECTS\tSKIPPED\tDELETED\tINSERTED\tELAPSED\tERROR")
	_, _ = fmt.Fprintln(w, "------\t----\t------\t----\t-------\t-------\t-------\t--------\t-------\t-----")

	for _, o := range outcomes {
		if o == nil {
			continue
		}
		errMsg := ""
		if err := o.Err(); err != nil {
			errMsg = truncate(err.Error(), 60)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\t%s\t%s\n",
			o.Report,
			o.File,
			o.Status,
			o.Rows,
			o.Rejects,
			o.Skipped,
			o.Deleted,
			o.Inserted,
			o.Elapsed.Round(time.Millisecond),
			errMsg,
		)
	}
	_ = w.Flush()
}

// truncate shortens s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
