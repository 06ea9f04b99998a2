package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/gvprof/gvprof/config"
	"github.com/gvprof/gvprof/internal/app"
	"github.com/gvprof/gvprof/internal/domain"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type flags struct {
	configFile  string
	format      string
	interval    int
	relative    bool
	keepPartial bool
	fillGaps    bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var f flags
	root := &cobra.Command{
		Use:   "gvprof [flags] <profile-log>",
		Short: "Turn gluster volume profile logs into CSV files and graphs",
		Long: `gvprof reads the output of "gluster volume profile <vol> info" (server) or
the io-stats dump of a client mount (client), collected every N seconds, and
writes per-operation CSV files plus an HTML dashboard into <profile-log>_csvdir.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			application := app.NewApplication(cfg)
			if err := application.Init(); err != nil {
				return err
			}
			defer application.Release()

			report, err := application.Run(args[0])
			if err != nil {
				return err
			}
			if url := report.URL(); url != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "graphs now available at browser URL %s\n", url)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "output written to %s\n", report.Dir)
			}
			return nil
		},
	}

	fl := root.Flags()
	fl.StringVarP(&f.configFile, "config", "c", "", "YAML config file")
	fl.StringVarP(&f.format, "format", "f", "", "log format: auto, server, client or a configured name")
	fl.IntVarP(&f.interval, "interval", "i", 0, "sampling interval in seconds, overrides the log")
	fl.BoolVar(&f.relative, "relative", false, "timestamps relative to the first sample")
	fl.BoolVar(&f.keepPartial, "keep-partial", false, "keep an incomplete trailing sample")
	fl.BoolVar(&f.fillGaps, "fill-gaps", false, "write zero rates for samples an entity is missing from")

	root.AddCommand(newOpsCmd())
	return root
}

// loadConfig applies the command line on top of the config file.
func loadConfig(cmd *cobra.Command, f flags) (*config.AppConfig, error) {
	cfg, err := config.Load(f.configFile)
	if err != nil {
		return nil, err
	}
	fl := cmd.Flags()
	if fl.Changed("format") {
		cfg.Profile.Format = f.format
	}
	if fl.Changed("interval") {
		if f.interval <= 0 {
			return nil, errors.Errorf("--interval must be positive, got %d", f.interval)
		}
		cfg.Profile.Interval = f.interval
	}
	if f.relative {
		cfg.Profile.TimestampMode = config.TimestampRelative
	}
	if f.keepPartial {
		cfg.Profile.KeepPartial = true
	}
	if f.fillGaps {
		cfg.Profile.FillGaps = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newOpsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ops",
		Short: "List the file operations gvprof recognises",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tCOMMON\tDESCRIPTION")
			for _, op := range domain.AllOps() {
				info := op.Info()
				common := ""
				if info.Common {
					common = "yes"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", info.Name, common, info.Description)
			}
			return w.Flush()
		},
	}
}
