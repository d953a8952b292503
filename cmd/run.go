package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"stripd/internal/aggregate"
	"stripd/internal/config"
	"stripd/internal/dateutil"
	"stripd/internal/extract"
	"stripd/internal/fetch"
	"stripd/internal/strips"
	"stripd/internal/ui"
)

// Flags shared by the fetch and download commands.
var (
	flagStrip       string
	flagGroup       string
	flagDate        string
	flagDefinitions string
	flagWorkers     int
	flagUserAgent   string
	flagCABundle    string
	flagCFBypass    bool
)

func addSelectionFlags(c *cobra.Command) {
	c.Flags().StringVarP(&flagStrip, "strip", "s", "", "strip key to process")
	c.Flags().StringVarP(&flagGroup, "group", "g", "", "group key to process")
	c.Flags().StringVar(&flagDate, "date", "", "date to process (YYYY-MM-DD or free-form, default today)")
	c.Flags().StringVar(&flagDefinitions, "definitions", "", "strip definitions file")
	c.Flags().IntVar(&flagWorkers, "workers", 0, "parallel sources")
	c.Flags().StringVar(&flagUserAgent, "user-agent", "", "override User-Agent")
	c.Flags().StringVar(&flagCABundle, "ca-certs", "", "PEM bundle replacing the system trust store")
	c.Flags().BoolVar(&flagCFBypass, "cf-bypass", false, "enable Cloudflare bypass transport")
}

// buildRuntime assembles the config, logger, registry and runner every
// processing command needs.
func buildRuntime(cmd *cobra.Command) (*config.Config, *ui.Logger, *strips.Registry, *aggregate.Runner, error) {
	cfg, usedPath, err := config.LoadMerged(config.Options{
		IgnoreConfig:     flagIgnoreConfig,
		Debug:            flagDebug,
		Definitions:      flagDefinitions,
		Workers:          flagWorkers,
		UserAgent:        flagUserAgent,
		CABundle:         flagCABundle,
		CloudflareBypass: flagCFBypass,
	})
	if err != nil {
		return nil, nil, nil, nil, err
	}

	logSvc := ui.NewLogger(cfg.Debug)
	if usedPath != "" {
		logSvc.Debugf("Config file: %s\n", usedPath)
	}

	registry, err := strips.LoadFile(cfg.Definitions)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	client, err := fetch.NewClient(fetch.Options{
		Timeout:          30 * time.Second,
		UserAgent:        fetch.PickUserAgent(cfg.UserAgent),
		CABundle:         cfg.CABundle,
		CloudflareBypass: cfg.CloudflareBypass,
		DebugLogger:      logSvc,
	})
	if err != nil {
		return nil, nil, nil, nil, err
	}

	runner := &aggregate.Runner{
		Registry: registry,
		Fetcher:  client,
		Chain:    extract.NewChain(client, logSvc),
		Resolver: dateutil.NewResolver().WithNaturalLanguage(),
		Workers:  cfg.Workers,
		Log:      logSvc,
	}

	return cfg, logSvc, registry, runner, nil
}

// selectKeys turns the -s/-g flags (or the configured default group) into
// the key list for this run.
func selectKeys(cfg *config.Config, registry *strips.Registry) ([]string, error) {
	if flagStrip == "" && flagGroup == "" && cfg.DefaultGroup != "" {
		return registry.Expand("", cfg.DefaultGroup)
	}
	return registry.Expand(flagStrip, flagGroup)
}

func printOutcome(out aggregate.Outcome) {
	s := out.Strip
	fmt.Printf("%s: %s\n", s.Key, s.Name)
	if s.OnHold {
		fmt.Println("\t(marked as 'on hold')")
	}
	if s.Artist != "" {
		fmt.Printf("\tArtist: %s\n", s.Artist)
	}
	fmt.Printf("\tHomepage: %s\n", s.Homepage)
	fmt.Printf("\tSearch Page: %s\n", out.SearchURL)
	for i := range s.Steps {
		st := &s.Steps[i]
		role := st.Kind.String()
		if st.FetchThrough {
			role = "fetch-through"
		}
		fmt.Printf("\t%s pattern (%s): %s\n", st.Name, role, st.Pattern)
	}
	fmt.Println("\t------")
	if out.Err != nil {
		fmt.Printf("\tError: %v\n", out.Err)
	} else {
		for _, res := range out.Results {
			fmt.Printf("\t%s: %s\n", res.Name, res.Value)
		}
	}
	fmt.Println()
}
