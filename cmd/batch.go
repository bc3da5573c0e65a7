package main

import (
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/reportsync/internal/ingest"
	"github.com/sells-group/reportsync/internal/report"
)

var (
	batchDir    string
	batchStrict bool
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Ingest every recognized export in a directory",
	Long:  "Matches each file in the directory against the report file patterns and ingests all matches, dimension tables first.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := initEnv(ctx, cfg)
		if err != nil {
			return err
		}
		defer e.Close()

		jobs, err := collectJobs(batchDir, e.Catalog)
		if err != nil {
			return err
		}
		if len(jobs) == 0 {
			zap.L().Info("no recognized report files", zap.String("dir", batchDir))
			return nil
		}

		outcomes, err := e.engine(cfg, batchStrict).Run(ctx, jobs)
		formatOutcomes(os.Stdout, outcomes)
		if err != nil {
			return eris.Wrap(err, "batch")
		}

		failed := 0
		for _, o := range outcomes {
			if o.Status == ingest.StatusFailed {
				failed++
			}
		}
		if failed > 0 {
			return eris.Errorf("batch: %d of %d files failed", failed, len(outcomes))
		}
		return nil
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchDir, "dir", ".", "directory holding the exports")
	batchCmd.Flags().BoolVar(&batchStrict, "strict", false, "fail a file when any row is rejected")
	rootCmd.AddCommand(batchCmd)
}

// collectJobs pairs every regular file in dir with each report whose file
// pattern it matches. Unmatched files are logged and ignored.
func collectJobs(dir string, cat *report.Catalog) ([]ingest.Job, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "batch: read dir %s", dir)
	}

	var jobs []ingest.Job
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		matched := cat.Match(path)
		if len(matched) == 0 {
			zap.L().Debug("skipping unrecognized file", zap.String("file", path))
			continue
		}
		for _, d := range matched {
			jobs = append(jobs, ingest.Job{Report: d.ID, File: path})
		}
	}
	return jobs, nil
}
