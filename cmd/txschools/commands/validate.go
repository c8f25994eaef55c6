package commands

import (
	"fmt"
	"os"
	"txschools-scraper/internal/output"
	"txschools-scraper/internal/record"
	"txschools-scraper/internal/validate"
	"txschools-scraper/lib/osutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	validateOut     *string
	validateChanged *bool
)

func init() {
	validateOut = validateCmd.Flags().String("out", "", "Write the revalidated records to this csv file.")
	validateChanged = validateCmd.Flags().Bool("changed", false, "Only list records whose score changed.")
	rootCmd.AddCommand(validateCmd)
}

// revalidate recomputes the quality fields of every record and counts the records whose score
// differs from the stored one.
func revalidate(records []record.Record) (updated []record.Record, changed []bool) {
	updated = make([]record.Record, len(records))
	changed = make([]bool, len(records))
	for i, rec := range records {
		next := rec.Clone()
		validate.Apply(next)
		updated[i] = next
		changed[i] = next[record.QualityScore] != rec[record.QualityScore] ||
			next[record.QualityIssues] != rec[record.QualityIssues]
	}
	return updated, changed
}

var validateCmd = &cobra.Command{
	Use:   "validate <output.csv> [--out <revalidated.csv>]",
	Short: "Recomputes the data quality of an existing csv output and prints it.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		records, err := output.ReadCSVFile(args[0])
		if err != nil {
			osutil.Fatal("failed to read csv", err)
		}

		updated, changed := revalidate(records)

		t := newTable()
		t.AppendHeader(table.Row{"#", "Page", "Name", "Stored", "Score", "Issues"})
		changedCount := 0
		for i, rec := range updated {
			if changed[i] {
				changedCount++
			}
			if *validateChanged && !changed[i] {
				continue
			}
			t.AppendRow(table.Row{
				rec[record.RecordNumber],
				rec[record.PageNumber],
				rec[record.Name],
				records[i][record.QualityScore],
				rec[record.QualityScore],
				rec[record.QualityIssues],
			})
		}
		t.Render()

		summary := record.Summarize(updated)
		s := newTable()
		s.SetTitle("Data Quality Summary")
		s.AppendRows([]table.Row{
			{"Total schools", summary.Total},
			{"Average quality score", fmt.Sprintf("%.2f%%", summary.AverageScore)},
			{"Schools with quality issues", summary.WithIssues},
			{"Quality rate", fmt.Sprintf("%.2f%%", summary.QualityRate)},
			{"Changed since written", changedCount},
		})
		s.Render()

		if *validateOut == "" {
			return
		}
		f, err := os.Create(*validateOut)
		if err != nil {
			osutil.Fatal("failed to create output file", err)
		}
		defer f.Close()
		err = output.WriteCSV(f, updated)
		if err != nil {
			osutil.Fatal("failed to write output file", err)
		}
	},
}
