package crawl

import (
	"context"
	"fmt"
	"net/url"
	"time"
	"txschools-scraper/internal/components/telemetry"
	"txschools-scraper/internal/scrapers/directory"
	configlibsql "txschools-scraper/lib/configutil/libsql"

	"dario.cat/mergo"
)

const (
	BackendRod    = "rod"
	BackendStatic = "static"
)

type BrowserConfig struct {
	Bin string `json:"bin"`
	// Headful shows the browser window, browsers run headless by default.
	Headful    bool   `json:"headful"`
	ControlURL string `json:"control_url"`
}

type HttpConfig struct {
	RequestsPerSecond float64 `json:"requests_per_second"`
	UserAgent         string  `json:"user_agent"`
	TimeoutSeconds    float64 `json:"timeout_seconds"`
	CloudflareBypass  bool    `json:"cloudflare_bypass"`
	// DumpDir, if set, receives a file per http exchange made by the static backend.
	DumpDir string `json:"dump_dir"`
}

// TimeoutsConfig is in seconds.
type TimeoutsConfig struct {
	Field     float64 `json:"field"`
	Body      float64 `json:"body"`
	Container float64 `json:"container"`
	Filter    float64 `json:"filter"`
}

// DelaysConfig is in seconds.
type DelaysConfig struct {
	FilterRetry  float64 `json:"filter_retry"`
	ScrollSettle float64 `json:"scroll_settle"`
	ClickSettle  float64 `json:"click_settle"`
	FilterMin    float64 `json:"filter_min"`
	FilterMax    float64 `json:"filter_max"`
	PageMin      float64 `json:"page_min"`
	PageMax      float64 `json:"page_max"`
	LinkMin      float64 `json:"link_min"`
	LinkMax      float64 `json:"link_max"`
}

// Config is the configuration file of a crawl. Zero values are replaced by Defaults.
type Config struct {
	ListingURL string `json:"listing_url"`
	// MaxPages caps how many listing pages are read, a negative value removes the cap.
	MaxPages  int `json:"max_pages"`
	BatchSize int `json:"batch_size"`
	// Workers defaults to the number of logical cpus minus one.
	Workers     int    `json:"workers"`
	OutputDir   string `json:"output_dir"`
	ProgressDir string `json:"progress_dir"`
	LogFile     string `json:"log_file"`
	// Backend is either "rod" (a real browser) or "static" (plain http requests).
	Backend string `json:"backend"`
	// Filters defaults to the grade levels of the profile when left out, an explicit empty list
	// applies no filter.
	Filters []string `json:"filters"`
	// SkipFilters leaves the listing unfiltered.
	SkipFilters bool `json:"skip_filters"`

	Browser  BrowserConfig        `json:"browser"`
	Http     HttpConfig           `json:"http"`
	Timeouts TimeoutsConfig       `json:"timeouts"`
	Delays   DelaysConfig         `json:"delays"`
	Store    configlibsql.Struct  `json:"store"`
	Otlp     telemetry.OtlpConfig `json:"otlp"`
}

func Defaults() Config {
	return Config{
		ListingURL:  "https://txschools.gov/?view=schools&lng=en",
		MaxPages:    directory.DefaultMaxPages,
		BatchSize:   50,
		OutputDir:   "output",
		ProgressDir: "progress",
		LogFile:     "scraper.log",
		Backend:     BackendRod,
		Filters:     directory.TXSchoolsProfile.Filters,
		Http: HttpConfig{
			RequestsPerSecond: 2,
			TimeoutSeconds:    30,
		},
		Timeouts: TimeoutsConfig{
			Field:     5,
			Body:      15,
			Container: 20,
			Filter:    10,
		},
		Delays: DelaysConfig{
			FilterRetry:  2,
			ScrollSettle: 2,
			ClickSettle:  3,
			FilterMin:    1,
			FilterMax:    2,
			PageMin:      2,
			PageMax:      3,
			LinkMin:      1,
			LinkMax:      2,
		},
	}
}

// WithDefaults fills every zero field from Defaults and the worker count from the machine.
func (c Config) WithDefaults(ctx context.Context) (Config, error) {
	noFilters := c.Filters != nil && len(c.Filters) == 0
	err := mergo.Merge(&c, Defaults())
	if err != nil {
		return c, err
	}
	if noFilters {
		c.Filters = []string{}
	}
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers(ctx)
	}
	return c, nil
}

// DefaultWorkers leaves one logical cpu for the listing browser and the collector.
func DefaultWorkers(ctx context.Context) int {
	n := telemetry.LogicalCPUs(ctx) - 1
	if n < 1 {
		return 1
	}
	return n
}

func (c Config) Validate() error {
	u, err := url.Parse(c.ListingURL)
	if err != nil {
		return fmt.Errorf("listing_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("listing_url: expected an http(s) url, got %q", c.ListingURL)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive, got %d", c.BatchSize)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	if c.Backend != BackendRod && c.Backend != BackendStatic {
		return fmt.Errorf("backend must be %q or %q, got %q", BackendRod, BackendStatic, c.Backend)
	}
	return nil
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// Options converts the configuration into crawl options for the given profile.
func (c Config) Options(profile directory.Profile) Options {
	profile.Filters = c.Filters
	if c.SkipFilters {
		profile.Filters = nil
	}

	timeouts := directory.Timeouts{
		Field:     seconds(c.Timeouts.Field),
		Body:      seconds(c.Timeouts.Body),
		Container: seconds(c.Timeouts.Container),
		Filter:    seconds(c.Timeouts.Filter),
	}
	delays := directory.Delays{
		FilterRetry:  seconds(c.Delays.FilterRetry),
		ScrollSettle: seconds(c.Delays.ScrollSettle),
		ClickSettle:  seconds(c.Delays.ClickSettle),
		FilterMin:    seconds(c.Delays.FilterMin),
		FilterMax:    seconds(c.Delays.FilterMax),
		PageMin:      seconds(c.Delays.PageMin),
		PageMax:      seconds(c.Delays.PageMax),
		LinkMin:      seconds(c.Delays.LinkMin),
		LinkMax:      seconds(c.Delays.LinkMax),
	}

	return Options{
		ListingURL:       c.ListingURL,
		BatchSize:        c.BatchSize,
		Workers:          c.Workers,
		ListingSettleMin: delays.PageMin,
		ListingSettleMax: delays.PageMax,
		Profile:          profile,
		Walker: directory.WalkerOptions{
			MaxPages: c.MaxPages,
			Timeouts: timeouts,
			Delays:   delays,
		},
		Timeouts: timeouts,
		Delays:   delays,
	}
}
