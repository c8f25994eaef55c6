package commands

import (
	"testing"
	"txschools-scraper/internal/crawl"
	"txschools-scraper/internal/record"

	"github.com/stretchr/testify/require"
)

func TestApplyFlags(t *testing.T) {
	cfg := crawl.Config{Workers: 2, BatchSize: 10, Backend: crawl.BackendRod}

	require.NoError(t, crawlCmd.Flags().Set("workers", "6"))
	require.NoError(t, crawlCmd.Flags().Set("backend", "static"))
	require.NoError(t, crawlCmd.Flags().Set("max-pages", "-1"))
	applyFlags(crawlCmd, &cfg)

	require.Equal(t, 6, cfg.Workers)
	require.Equal(t, crawl.BackendStatic, cfg.Backend)
	require.Equal(t, -1, cfg.MaxPages)
	// flags that were not set keep the file's value
	require.Equal(t, 10, cfg.BatchSize)
}

func TestRevalidate(t *testing.T) {
	stale := record.New(1)
	stale[record.Name] = "Alpha Elementary"
	stale[record.QualityScore] = "100"

	fresh := record.New(1)
	fresh[record.QualityScore] = "0"
	fresh[record.QualityIssues] = "Name not available, Address1 not available, City not available, " +
		"State not available, Zip not available, Phone not available, Website not available, " +
		"ParentOrg not available, Category not available, ContactName not available"

	updated, changed := revalidate([]record.Record{stale, fresh})
	require.Equal(t, []bool{true, false}, changed)
	require.Equal(t, "10", updated[0][record.QualityScore])
	// the input is left untouched
	require.Equal(t, "100", stale[record.QualityScore])
}
