package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"stripd/internal/aggregate"
	"stripd/internal/archive"
	"stripd/internal/render"
	"stripd/internal/ui"
	"stripd/internal/util"
)

var (
	flagArchive string
	flagCSS     string
	flagNoIndex bool
)

func init() {
	downloadCmd := &cobra.Command{
		Use:   "download",
		Short: "Download the selected strips into the dated archive and regenerate the browsing index",
		RunE:  runDownload,
	}

	addSelectionFlags(downloadCmd)
	downloadCmd.Flags().StringVarP(&flagArchive, "archive", "d", "", "archive directory")
	downloadCmd.Flags().StringVar(&flagCSS, "css", "", "CSS filename linked from generated pages")
	downloadCmd.Flags().BoolVar(&flagNoIndex, "no-index", false, "skip HTML index generation")

	rootCmd.AddCommand(downloadCmd)
}

func runDownload(cmd *cobra.Command, _ []string) error {
	cfg, logSvc, registry, runner, err := buildRuntime(cmd)
	if err != nil {
		return err
	}

	if flagArchive != "" {
		cfg.Archive = flagArchive
	}
	if flagCSS != "" {
		cfg.CSSFile = flagCSS
	}
	if cfg.Archive == "" {
		return fmt.Errorf("missing --archive and no archive dir in config")
	}
	if err := os.MkdirAll(cfg.Archive, 0755); err != nil {
		return fmt.Errorf("cannot create archive folder: %w", err)
	}

	keys, err := selectKeys(cfg, registry)
	if err != nil {
		return err
	}

	logSvc.Debugf("Full config:\n")
	if cfg.Debug {
		cfg.Print()
	}

	util.SetupInterruptHandler(cfg.Archive)

	pm := ui.NewProgressManager()
	defer pm.Close()

	runner.Store = archive.NewStore(cfg.Archive, logSvc)
	runner.Reporter = pm

	start := time.Now()
	outcomes, err := runner.Run(context.Background(), keys, flagDate, aggregate.ModeDownload)
	if err != nil {
		return err
	}
	pm.Close()

	stats := &ui.Stats{}
	for _, out := range outcomes {
		if out.Err != nil {
			stats.Failed.Add(1)
			logSvc.Errorf("%s (%s): %v\n", out.Strip.Name, out.Key, out.Err)
			continue
		}
		stats.TotalSources.Add(1)
		stats.TotalArtifacts.Add(int64(len(out.Entry.Artifacts)))
		stats.TotalBytes.Add(out.Bytes)
	}

	if !flagNoIndex && len(outcomes) > 0 {
		r := &render.Renderer{Dir: cfg.Archive, CSSFile: cfg.CSSFile}
		page, err := r.WritePage(outcomes[0].Date, outcomes)
		if err != nil {
			return err
		}
		logSvc.Debugf("Wrote index page %s\n", page)
	}

	fmt.Println()
	fmt.Println("Download Summary:")
	fmt.Printf("Sources:   %d ok, %d failed\n", stats.TotalSources.Load(), stats.Failed.Load())
	fmt.Printf("Artifacts: %d\n", stats.TotalArtifacts.Load())
	fmt.Printf("Data:      %s\n", util.Human(stats.TotalBytes.Load()))
	fmt.Printf("Time:      %s\n", time.Since(start).Round(time.Second))

	if stats.Failed.Load() > 0 {
		return fmt.Errorf("%d source(s) failed", stats.Failed.Load())
	}
	return nil
}
