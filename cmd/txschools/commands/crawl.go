package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"txschools-scraper/internal/browser"
	"txschools-scraper/internal/browser/rodbrowser"
	"txschools-scraper/internal/browser/static"
	"txschools-scraper/internal/components/chrono"
	"txschools-scraper/internal/components/telemetry"
	"txschools-scraper/internal/crawl"
	"txschools-scraper/internal/output"
	"txschools-scraper/internal/output/store"
	"txschools-scraper/internal/scrapers/directory"
	"txschools-scraper/lib/osutil"
	"txschools-scraper/lib/restyutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var crawlFlags struct {
	url         *string
	maxPages    *int
	batchSize   *int
	workers     *int
	backend     *string
	outputDir   *string
	progressDir *string
	noFilters   *bool
}

func init() {
	f := crawlCmd.Flags()
	crawlFlags.url = f.String("url", "", "The listing url to start from.")
	crawlFlags.maxPages = f.Int("max-pages", 0, "The maximum number of listing pages to read, negative for no limit.")
	crawlFlags.batchSize = f.Int("batch-size", 0, "The number of detail links per batch.")
	crawlFlags.workers = f.Int("workers", 0, "The number of parallel workers (default logical cpus - 1).")
	crawlFlags.backend = f.String("backend", "", "The page backend: rod or static.")
	crawlFlags.outputDir = f.String("output-dir", "", "The directory of the final csv file.")
	crawlFlags.progressDir = f.String("progress-dir", "", "The directory of the checkpoint files.")
	crawlFlags.noFilters = f.Bool("no-filters", false, "Do not apply the grade level filters.")
	rootCmd.AddCommand(crawlCmd)
}

// applyFlags overrides the configuration with every flag set on the command line.
func applyFlags(cmd *cobra.Command, cfg *crawl.Config) {
	f := cmd.Flags()
	if f.Changed("url") {
		cfg.ListingURL = *crawlFlags.url
	}
	if f.Changed("max-pages") {
		cfg.MaxPages = *crawlFlags.maxPages
	}
	if f.Changed("batch-size") {
		cfg.BatchSize = *crawlFlags.batchSize
	}
	if f.Changed("workers") {
		cfg.Workers = *crawlFlags.workers
	}
	if f.Changed("backend") {
		cfg.Backend = *crawlFlags.backend
	}
	if f.Changed("output-dir") {
		cfg.OutputDir = *crawlFlags.outputDir
	}
	if f.Changed("progress-dir") {
		cfg.ProgressDir = *crawlFlags.progressDir
	}
	if f.Changed("no-filters") {
		cfg.SkipFilters = *crawlFlags.noFilters
	}
}

func newLauncher(ctx context.Context, cfg crawl.Config, tel telemetry.API) (browser.Launcher, error) {
	switch cfg.Backend {
	case crawl.BackendStatic:
		opts := static.Options{
			UserAgent:         cfg.Http.UserAgent,
			RequestsPerSecond: cfg.Http.RequestsPerSecond,
			Timeout:           time.Duration(cfg.Http.TimeoutSeconds * float64(time.Second)),
			CloudflareBypass:  cfg.Http.CloudflareBypass,
		}
		if cfg.Http.DumpDir != "" {
			dump, err := restyutil.NewFilesystemOutput(cfg.Http.DumpDir)
			if err != nil {
				return nil, err
			}
			opts.Dump = dump
		}
		return static.NewLauncher(opts, tel), nil
	default:
		l, err := rodbrowser.NewLauncher(ctx, rodbrowser.Options{
			Bin:        cfg.Browser.Bin,
			Headless:   !cfg.Browser.Headful,
			ControlURL: cfg.Browser.ControlURL,
		}, tel)
		if err != nil {
			return nil, err
		}
		return l, nil
	}
}

var crawlCmd = &cobra.Command{
	Use:   "crawl [--url <listing url>] [--max-pages <n>] [--workers <n>]",
	Short: "Collects every school on the listing and writes them to a csv file.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		cfg, err := readConfig()
		if err != nil {
			osutil.Fatal("failed to read config", err)
		}
		applyFlags(cmd, &cfg)
		cfg, err = cfg.WithDefaults(ctx)
		if err != nil {
			osutil.Fatal("failed to apply config defaults", err)
		}
		err = cfg.Validate()
		if err != nil {
			osutil.Fatal("invalid config", err)
		}

		closeLog, err := telemetry.InitSlog(telemetry.SlogOptions{
			Debug:   *debugLogs,
			JSON:    *jsonLogs,
			LogFile: cfg.LogFile,
		})
		if err != nil {
			osutil.Fatal("failed to open log file", err)
		}
		defer closeLog()

		otelProviders, err := telemetry.SetupOtel(ctx, "txschools", cfg.Otlp)
		if err != nil {
			osutil.Fatal("failed to setup otel", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			err := otelProviders.Shutdown(shutdownCtx)
			if err != nil {
				slog.Warn("failed to shutdown otel", "err", err)
			}
		}()

		tel := telemetry.SlogAPI{}
		telemetry.InstrumentPerfStats(ctx, tel, 15*time.Second)
		clock := chrono.NewStandardImpl()

		launcher, err := newLauncher(ctx, cfg, tel)
		if err != nil {
			osutil.Fatal("failed to start browser", err)
		}
		defer launcher.Close()

		sinks := []output.Sink{output.CSVSink{
			OutputDir:   cfg.OutputDir,
			ProgressDir: cfg.ProgressDir,
		}}
		if cfg.Store.Enabled() {
			db, err := cfg.Store.OpenDB()
			if err != nil {
				osutil.Fatal("failed to open results store", err)
			}
			defer db.Close()
			run, err := store.NewRun(ctx, db, cfg.ListingURL, clock)
			if err != nil {
				osutil.Fatal("failed to register run", err)
			}
			slog.Info("recording run", "id", run.RunID())
			sinks = append(sinks, run)
		}

		slog.Info(
			"starting crawl",
			"url", cfg.ListingURL,
			"max_pages", cfg.MaxPages,
			"batch_size", cfg.BatchSize,
			"workers", cfg.Workers,
			"backend", cfg.Backend,
		)

		start := clock.Now()
		crawler := crawl.New(cfg.Options(directory.TXSchoolsProfile), crawl.Deps{
			Launcher: launcher,
			Sinks:    sinks,
			Time:     clock,
			Tel:      tel,
		})
		result, err := crawler.Run(ctx)
		if errors.Is(err, crawl.ErrNoLinks) {
			slog.Error("no links were collected, nothing was written", "err", err)
			exit(1)
			return
		}

		printResult(result, clock.Now().Sub(start))
		if err != nil {
			slog.Error("crawl did not finish cleanly", "err", err)
			exit(1)
		}
	},
}

// exitCode is the process status, the process only exits once the command returned and its
// deferred cleanups ran.
var exitCode int

func exit(code int) {
	exitCode = code
}

func printResult(result crawl.Result, elapsed time.Duration) {
	t := newTable()
	t.SetTitle("Data Quality Summary")
	t.AppendRows([]table.Row{
		{"Pages visited", fmt.Sprintf("%d (p%d-%d)", result.Walk.PagesVisited, result.Walk.FirstPage, result.Walk.LastPage)},
		{"Links collected", len(result.Walk.Links)},
		{"Batches", fmt.Sprintf("%d (%d failed)", result.Batches, result.FailedBatches)},
		{"Total schools processed", result.Summary.Total},
		{"Average quality score", fmt.Sprintf("%.2f%%", result.Summary.AverageScore)},
		{"Schools with quality issues", result.Summary.WithIssues},
		{"Quality rate", fmt.Sprintf("%.2f%%", result.Summary.QualityRate)},
		{"Elapsed", elapsed.Round(time.Second).String()},
	})
	for _, location := range result.Locations {
		t.AppendRow(table.Row{"Data saved to", location})
	}
	t.Render()
}
