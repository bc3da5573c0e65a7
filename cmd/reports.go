package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/reportsync/internal/report"
	"github.com/sells-group/reportsync/internal/reports"
	"github.com/sells-group/reportsync/internal/schema"
	"github.com/sells-group/reportsync/internal/tablesync"
)

var (
	reportsYAML      bool
	reportsSubsystem string
)

var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "List the known report types",
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := reports.NewCatalog()
		if err != nil {
			return err
		}

		var sub *report.Subsystem
		if reportsSubsystem != "" {
			s, err := report.ParseSubsystem(reportsSubsystem)
			if err != nil {
				return err
			}
			sub = &s
		}
		defs, err := cat.Select(sub, nil)
		if err != nil {
			return err
		}

		if reportsYAML {
			return writeCatalogYAML(os.Stdout, defs)
		}
		formatCatalog(os.Stdout, defs)
		return nil
	},
}

func init() {
	reportsCmd.Flags().BoolVar(&reportsYAML, "yaml", false, "dump signatures, tables and policies as YAML")
	reportsCmd.Flags().StringVar(&reportsSubsystem, "subsystem", "", "only list reports of one subsystem ("+report.SubsystemNames()+")")
	rootCmd.AddCommand(reportsCmd)
}

// reportSummary is the YAML view of a definition. Rules hold code, so only
// their output fields are listed.
type reportSummary struct {
	ID          string                 `yaml:"id"`
	Subsystem   report.Subsystem       `yaml:"subsystem"`
	Description string                 `yaml:"description,omitempty"`
	FilePattern string                 `yaml:"file_pattern"`
	Signature   report.Signature       `yaml:"signature"`
	Fields      []string               `yaml:"fields"`
	Table       schema.TableDefinition `yaml:"table"`
	Policy      tablesync.Policy       `yaml:"policy"`
}

func writeCatalogYAML(out io.Writer, defs []report.Definition) error {
	summaries := make([]reportSummary, len(defs))
	for i, d := range defs {
		summaries[i] = reportSummary{
			ID:          d.ID,
			Subsystem:   d.Subsystem,
			Description: d.Description,
			FilePattern: d.FilePattern,
			Signature:   d.Signature,
			Fields:      d.Fields(),
			Table:       d.Table,
			Policy:      d.Policy,
		}
	}

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(summaries); err != nil {
		return eris.Wrap(err, "reports: encode yaml")
	}
	return eris.Wrap(enc.Close(), "reports: flush yaml")
}

// formatCatalog writes one line per report to w.
func formatCatalog(out io.Writer, defs []report.Definition) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSUBSYSTEM\tPATTERN\tTABLE\tKEY\tPOLICY")
	_, _ = fmt.Fprintln(w, "--\t---------\t-------\t-----\t---\t------")
	for _, d := range defs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			d.ID,
			d.Subsystem,
			d.FilePattern,
			d.Table.QualifiedName(),
			strings.Join(d.Table.PrimaryKey, ", "),
			d.Policy,
		)
	}
	_ = w.Flush()
}
