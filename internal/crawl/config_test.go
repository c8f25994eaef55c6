package crawl

import (
	"context"
	"testing"
	"time"
	"txschools-scraper/internal/scrapers/directory"

	"github.com/stretchr/testify/require"
)

func TestWithDefaults(t *testing.T) {
	cfg, err := Config{
		MaxPages: -1,
		Workers:  3,
		Timeouts: TimeoutsConfig{Field: 0.5},
	}.WithDefaults(context.Background())
	require.NoError(t, err)

	require.Equal(t, "https://txschools.gov/?view=schools&lng=en", cfg.ListingURL)
	require.Equal(t, -1, cfg.MaxPages)
	require.Equal(t, 50, cfg.BatchSize)
	require.Equal(t, 3, cfg.Workers)
	require.Equal(t, BackendRod, cfg.Backend)
	require.Equal(t, 0.5, cfg.Timeouts.Field)
	require.Equal(t, 15.0, cfg.Timeouts.Body)
	require.Equal(t, directory.TXSchoolsProfile.Filters, cfg.Filters)
	require.NoError(t, cfg.Validate())

	cfg, err = Config{}.WithDefaults(context.Background())
	require.NoError(t, err)
	require.Equal(t, directory.DefaultMaxPages, cfg.MaxPages)
	require.GreaterOrEqual(t, cfg.Workers, 1)
}

func TestValidate(t *testing.T) {
	valid, err := Config{Workers: 1}.WithDefaults(context.Background())
	require.NoError(t, err)

	cases := []func(c *Config){
		func(c *Config) { c.ListingURL = "ftp://txschools.gov" },
		func(c *Config) { c.ListingURL = "://" },
		func(c *Config) { c.BatchSize = -1 },
		func(c *Config) { c.Workers = 0 },
		func(c *Config) { c.Backend = "chromedp" },
	}
	for _, mutate := range cases {
		cfg := valid
		mutate(&cfg)
		require.Error(t, cfg.Validate())
	}
}

func TestOptions(t *testing.T) {
	cfg, err := Config{Workers: 2, Filters: []string{"Kindergarten"}}.WithDefaults(context.Background())
	require.NoError(t, err)

	opts := cfg.Options(directory.TXSchoolsProfile)
	require.Equal(t, []string{"Kindergarten"}, opts.Profile.Filters)
	require.Equal(t, 5*time.Second, opts.Timeouts.Field)
	require.Equal(t, 20*time.Second, opts.Walker.Timeouts.Container)
	require.Equal(t, 1500*time.Millisecond, seconds(1.5))
	require.Equal(t, 2*time.Second, opts.ListingSettleMin)
	require.Equal(t, 3*time.Second, opts.ListingSettleMax)
	require.Equal(t, directory.DefaultMaxPages, opts.Walker.MaxPages)
	// the shared profile is not modified
	require.Len(t, directory.TXSchoolsProfile.Filters, 3)

	cfg.SkipFilters = true
	require.Empty(t, cfg.Options(directory.TXSchoolsProfile).Profile.Filters)
}

func TestWithDefaultsKeepsEmptyFilters(t *testing.T) {
	cfg, err := Config{Workers: 2, Filters: []string{}}.WithDefaults(context.Background())
	require.NoError(t, err)
	require.NotNil(t, cfg.Filters)
	require.Empty(t, cfg.Filters)
	require.Empty(t, cfg.Options(directory.TXSchoolsProfile).Profile.Filters)

	cfg, err = Config{Workers: 2}.WithDefaults(context.Background())
	require.NoError(t, err)
	require.Equal(t, directory.TXSchoolsProfile.Filters, cfg.Filters)
}
