package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"txschools-scraper/internal/components/telemetry"
	"txschools-scraper/internal/crawl"
	"txschools-scraper/lib/configutil"
	"txschools-scraper/lib/osutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	configPath *string
	debugLogs  *bool
	jsonLogs   *bool
)

var rootCmd = &cobra.Command{
	Use:   "txschools",
	Short: "txschools crawls the Texas school directory into a csv file.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_, err := telemetry.InitSlog(telemetry.SlogOptions{Debug: *debugLogs, JSON: *jsonLogs})
		if err != nil {
			osutil.Fatal("failed to initialize logging", err)
		}
	},
}

func init() {
	configPath = rootCmd.PersistentFlags().String("config", "config.json5", "The configuration file, <name>.local.json5 is merged on top of it.")
	debugLogs = rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logs.")
	jsonLogs = rootCmd.PersistentFlags().Bool("json-logs", false, "Write logs as json.")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	os.Exit(exitCode)
}

// readConfig reads the configuration file, a missing file just means defaults.
func readConfig() (crawl.Config, error) {
	cfg, err := configutil.ReadConfig[crawl.Config](*configPath)
	if errors.Is(err, fs.ErrNotExist) {
		return crawl.Config{}, nil
	}
	return cfg, err
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(os.Stdout)
	return t
}
