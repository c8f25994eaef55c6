// main.go is the fuzzing runner, it explores a target until a property is violated or it is
// interrupted.
package main

import (
	"fmt"
	"os"
	"txschools-scraper/internal/components/telemetry"
	"txschools-scraper/lib/osutil"
	"txschools-scraper/test/fuzzing"

	"github.com/spf13/cobra"
)

var tel = telemetry.SlogAPI{}

var (
	pathFlag string
	minSteps uint64
	maxSteps uint64
)

func runFuzzing(provider fuzzing.TargetProvider) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		var path fuzzing.Path
		if pathFlag != "" {
			var err error
			path, err = fuzzing.ParsePath(pathFlag)
			if err != nil {
				return err
			}
		}

		f, err := fuzzing.New(tel, provider, minSteps, maxSteps, path)
		if err != nil {
			return fmt.Errorf("fuzzing.New: %w", err)
		}
		f.StartFuzzTest(cmd.Context())
		return nil
	}
}

func main() {
	root := &cobra.Command{
		Use:   "fuzz",
		Short: "the txschools scraper fuzzer",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := telemetry.InitSlog(telemetry.SlogOptions{Debug: true})
			return err
		},
	}
	root.PersistentFlags().StringVarP(&pathFlag, "path", "p", "", "replay a single fuzz path given as <seed>:<steps>")
	root.PersistentFlags().Uint64Var(&minSteps, "min-steps", 10, "the minimum amount of steps executed on any given fuzz target")
	root.PersistentFlags().Uint64Var(&maxSteps, "max-steps", 100, "the maximum amount of steps executed on any given fuzz target")

	root.AddCommand(
		&cobra.Command{
			Use:   "validate",
			Short: "fuzz record validation and summaries",
			RunE:  runFuzzing(fuzzing.ValidateProvider{}),
		},
		&cobra.Command{
			Use:   "crawl",
			Short: "fuzz complete crawls against a generated listing",
			RunE:  runFuzzing(fuzzing.CrawlProvider{}),
		},
	)

	err := root.ExecuteContext(osutil.SignalContext())
	if err != nil {
		os.Exit(1)
	}
}
