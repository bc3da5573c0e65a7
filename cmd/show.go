package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/reportsync/internal/canon"
	"github.com/sells-group/reportsync/internal/schema"
)

var (
	showTable string
	showLimit int
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the rows of a report table",
	Long:  "Reads a table back through its declared schema, ordered by primary key.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx, cfg)
		if err != nil {
			return err
		}
		defer e.Close()

		def, err := e.Catalog.Tables().Get(showTable)
		if err != nil {
			return err
		}
		rs, err := schema.Read(ctx, e.Store, def, showLimit)
		if err != nil {
			return eris.Wrapf(err, "show %s", def.QualifiedName())
		}
		formatRecordSet(os.Stdout, rs)
		return nil
	},
}

func init() {
	showCmd.Flags().StringVar(&showTable, "table", "", "table name, e.g. banco_invico")
	showCmd.Flags().IntVar(&showLimit, "limit", 20, "max rows to print; 0 prints all")
	_ = showCmd.MarkFlagRequired("table")
	rootCmd.AddCommand(showCmd)
}

// formatRecordSet writes the records of rs as a table. Nulls print as "-".
func formatRecordSet(out io.Writer, rs *canon.RecordSet) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, strings.ToUpper(strings.Join(rs.Columns, "\t")))

	for _, rec := range rs.Records {
		cells := make([]string, len(rs.Columns))
		for i, c := range rs.Columns {
			if rec[c] == nil {
				cells[i] = "-"
				continue
			}
			cells[i] = truncate(canon.FormatValue(rec[c]), 40)
		}
		_, _ = fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	_ = w.Flush()
	_, _ = fmt.Fprintf(out, "(%d rows)\n", rs.Len())
}
