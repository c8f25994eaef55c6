package commands

import (
	"fmt"
	"os"
	"time"
	"txschools-scraper/internal/output"
	"txschools-scraper/internal/output/store"
	"txschools-scraper/lib/osutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var runsExport *string

func init() {
	runsExport = runsCmd.Flags().String("export", "", "Write the records of the given run id to <run id>.csv instead of listing runs.")
	rootCmd.AddCommand(runsCmd)
}

var runsCmd = &cobra.Command{
	Use:   "runs [--export <run id>]",
	Short: "Lists the crawls recorded in the results store.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		cfg, err := readConfig()
		if err != nil {
			osutil.Fatal("failed to read config", err)
		}
		if !cfg.Store.Enabled() {
			osutil.Fatal("no results store configured", fmt.Errorf("store.file or store.url must be set in %s", *configPath))
		}
		db, err := cfg.Store.OpenDB()
		if err != nil {
			osutil.Fatal("failed to open results store", err)
		}
		defer db.Close()
		err = store.Migrate(ctx, db)
		if err != nil {
			osutil.Fatal("failed to migrate results store", err)
		}

		if *runsExport != "" {
			records, err := store.Records(ctx, db, *runsExport)
			if err != nil {
				osutil.Fatal("failed to read records", err)
			}
			path := *runsExport + ".csv"
			f, err := os.Create(path)
			if err != nil {
				osutil.Fatal("failed to create export file", err)
			}
			defer f.Close()
			err = output.WriteCSV(f, records)
			if err != nil {
				osutil.Fatal("failed to export records", err)
			}
			fmt.Printf("exported %d records to %s\n", len(records), path)
			return
		}

		runs, err := store.Runs(ctx, db)
		if err != nil {
			osutil.Fatal("failed to list runs", err)
		}

		t := newTable()
		t.AppendHeader(table.Row{"Run", "Started", "Finished", "Pages", "Checkpoints", "Records", "Listing"})
		for _, r := range runs {
			finished := "-"
			pages := "-"
			if r.Finished() {
				finished = r.FinishedAt.Format(time.DateTime)
				pages = fmt.Sprintf("%d-%d", r.FirstPage, r.LastPage)
			}
			t.AppendRow(table.Row{
				r.ID,
				r.StartedAt.Format(time.DateTime),
				finished,
				pages,
				r.Checkpoints,
				r.Total,
				r.ListingURL,
			})
		}
		t.Render()
	},
}
