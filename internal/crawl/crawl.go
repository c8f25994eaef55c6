// Package crawl runs a complete crawl: it walks the listing once to collect every detail link,
// then extracts the details in parallel batches while checkpointing progress.
package crawl

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
	"txschools-scraper/internal/browser"
	"txschools-scraper/internal/components/assert"
	"txschools-scraper/internal/components/chrono"
	"txschools-scraper/internal/components/telemetry"
	"txschools-scraper/internal/output"
	"txschools-scraper/internal/record"
	"txschools-scraper/internal/scrapers/directory"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	report_crawl_discover   = "crawl.discover"
	report_crawl_batch      = "crawl.batch"
	report_crawl_checkpoint = "crawl.checkpoint"
	report_crawl_finalize   = "crawl.finalize"
)

// ErrNoLinks is returned when the listing yielded no detail links, nothing is written then.
var ErrNoLinks = errors.New("crawl: no detail links found on the listing")

var tracer = otel.Tracer("txschools.crawl")
var meter = otel.Meter("txschools.crawl")
var pagesCounter, _ = meter.Int64Counter("listing_pages_visited")
var linksCounter, _ = meter.Int64Counter("detail_links_discovered")
var recordsCounter, _ = meter.Int64Counter("records_collected")
var failedBatchesCounter, _ = meter.Int64Counter("batches_failed")

type Options struct {
	ListingURL string
	// BatchSize is the number of links handed to a worker at once.
	BatchSize int
	// Workers is the size of the worker pool.
	Workers int
	// ListingSettleMin/Max bound the pause after the listing first loads.
	ListingSettleMin time.Duration
	ListingSettleMax time.Duration

	Profile  directory.Profile
	Walker   directory.WalkerOptions
	Timeouts directory.Timeouts
	Delays   directory.Delays
}

type Deps struct {
	Launcher browser.Launcher
	// Sinks receive every checkpoint and the final result, in order.
	Sinks []output.Sink
	Time  chrono.API
	Tel   telemetry.API
}

// Result describes a finished crawl.
type Result struct {
	Walk directory.WalkResult
	// Records are numbered in the order their batches completed.
	Records       []record.Record
	Batches       int
	FailedBatches int
	// Locations lists where each sink put the final result.
	Locations []string
	Summary   record.Summary
}

type Crawler struct {
	opts     Options
	launcher browser.Launcher
	sinks    []output.Sink
	walker   directory.Walker
	worker   directory.Worker
	time     chrono.API
	tel      telemetry.API
}

func New(opts Options, deps Deps) *Crawler {
	assert.NotNil(deps.Launcher, "launcher")
	assert.NotNil(deps.Time, "chrono")
	assert.NotNil(deps.Tel, "telemetry")
	assert.NotEmptyStr(opts.ListingURL, "listing url")
	assert.Positive(opts.BatchSize, "batch size")
	assert.Positive(opts.Workers, "workers")

	tel := telemetry.NewScopedAPI("crawl", deps.Tel)
	extractor := directory.NewExtractor(opts.Profile, opts.Timeouts, deps.Tel)

	return &Crawler{
		opts:     opts,
		launcher: deps.Launcher,
		sinks:    deps.Sinks,
		walker:   directory.NewWalker(opts.Profile, opts.Walker, deps.Time, deps.Tel),
		worker:   directory.NewWorker(deps.Launcher, extractor, opts.Delays, deps.Time, deps.Tel),
		time:     deps.Time,
		tel:      tel,
	}
}

// Run crawls the listing. Failed batches only reduce the result, the returned error is either
// ErrNoLinks, a listing session that could not be opened, a cancelled ctx or a sink that
// could not write the final result.
func (c *Crawler) Run(ctx context.Context) (Result, error) {
	ctx, span := tracer.Start(ctx, "crawl.run", trace.WithAttributes(
		attribute.String("listing_url", c.opts.ListingURL),
	))
	defer span.End()

	var result Result
	walk, err := c.discover(ctx)
	result.Walk = walk
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return result, err
	}

	batches := Partition(walk.Links, c.opts.BatchSize)
	result.Batches = len(batches)
	c.tel.ReportInfo("starting detail extraction", "links", len(walk.Links), "batches", len(batches), "workers", c.opts.Workers)

	records, failed := c.extract(ctx, batches)
	result.FailedBatches = failed

	// the collected records are still written when the crawl was interrupted
	finalCtx := context.WithoutCancel(ctx)
	record.NumberRecords(records)
	result.Records = records
	result.Summary = record.Summarize(records)

	prov := output.Provenance{
		FirstPage: walk.FirstPage,
		LastPage:  walk.LastPage,
		At:        c.time.Now(),
	}
	var errs []error
	for _, sink := range c.sinks {
		location, err := sink.Finalize(finalCtx, prov, records)
		if err != nil {
			c.tel.ReportBroken(report_crawl_finalize, err)
			errs = append(errs, err)
			continue
		}
		result.Locations = append(result.Locations, location)
		c.tel.ReportInfo("data saved", "location", location)
	}

	c.tel.ReportInfo(
		"data quality summary",
		"total", result.Summary.Total,
		"average_score", fmt.Sprintf("%.2f%%", result.Summary.AverageScore),
		"with_issues", result.Summary.WithIssues,
		"quality_rate", fmt.Sprintf("%.2f%%", result.Summary.QualityRate),
	)

	if err := errors.Join(errs...); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return result, fmt.Errorf("finalize: %w", err)
	}
	if err := ctx.Err(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return result, err
	}
	return result, nil
}

func (c *Crawler) discover(ctx context.Context) (directory.WalkResult, error) {
	ctx, span := tracer.Start(ctx, "crawl.discover")
	defer span.End()

	session, err := c.launcher.NewSession(ctx)
	if err != nil {
		c.tel.ReportBroken(report_crawl_discover, fmt.Errorf("open session: %w", err))
		return directory.WalkResult{}, fmt.Errorf("open listing session: %w", err)
	}
	defer session.Close()

	err = session.Load(ctx, c.opts.ListingURL)
	if err != nil {
		c.tel.ReportBroken(report_crawl_discover, fmt.Errorf("load listing: %w", err))
		return directory.WalkResult{}, fmt.Errorf("%w: load listing: %w", ErrNoLinks, err)
	}
	err = c.time.Sleep(ctx, chrono.Jitter(c.opts.ListingSettleMin, c.opts.ListingSettleMax))
	if err != nil {
		return directory.WalkResult{}, err
	}

	walk, err := c.walker.Walk(ctx, session)
	pagesCounter.Add(ctx, int64(walk.PagesVisited))
	linksCounter.Add(ctx, int64(len(walk.Links)))
	span.SetAttributes(
		attribute.Int("pages", walk.PagesVisited),
		attribute.Int("links", len(walk.Links)),
	)
	if err != nil {
		return walk, err
	}
	if len(walk.Links) == 0 {
		c.tel.ReportBroken(report_crawl_discover, ErrNoLinks)
		return walk, ErrNoLinks
	}

	c.tel.ReportInfo("total links collected", "links", len(walk.Links), "first_page", walk.FirstPage, "last_page", walk.LastPage)
	return walk, nil
}

type batchResult struct {
	batch   directory.Batch
	records []record.Record
	err     error
}

// extract runs the batches on the worker pool. Only this goroutine touches the cumulative
// records and the sinks.
func (c *Crawler) extract(ctx context.Context, batches []directory.Batch) ([]record.Record, int) {
	jobs := make(chan directory.Batch, len(batches))
	results := make(chan batchResult)

	workers := c.opts.Workers
	if workers > len(batches) {
		workers = len(batches)
	}

	wg := sync.WaitGroup{}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for b := range jobs {
				results <- c.runBatch(ctx, b)
			}
		}()
	}
	for _, b := range batches {
		jobs <- b
	}
	close(jobs)
	go func() {
		wg.Wait()
		close(results)
	}()

	var cumulative []record.Record
	failed := 0
	for res := range results {
		if res.err != nil {
			failed++
			failedBatchesCounter.Add(ctx, 1)
			if !interrupted(res.err) {
				c.tel.ReportBroken(report_crawl_batch, res.err, res.batch.Index)
				continue
			}
			c.tel.ReportWarning(report_crawl_batch, res.err, res.batch.Index, "kept", len(res.records))
			if len(res.records) == 0 {
				continue
			}
		}

		cumulative = append(cumulative, res.records...)
		recordsCounter.Add(ctx, int64(len(res.records)))
		for _, sink := range c.sinks {
			err := sink.Checkpoint(context.WithoutCancel(ctx), res.batch.Index, cumulative)
			if err != nil {
				c.tel.ReportWarning(report_crawl_checkpoint, err, res.batch.Index)
			}
		}
		c.tel.ReportInfo("progress saved", "batch", res.batch.Index, "records", len(cumulative))
	}
	return cumulative, failed
}

// interrupted batches still hand back the records they extracted before ctx was done.
func interrupted(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (c *Crawler) runBatch(ctx context.Context, batch directory.Batch) batchResult {
	ctx, span := tracer.Start(ctx, "crawl.batch", trace.WithAttributes(
		attribute.Int("batch", batch.Index),
		attribute.Int("links", len(batch.Links)),
	))
	defer span.End()

	records, err := c.worker.RunBatch(ctx, batch)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return batchResult{batch: batch, records: records, err: err}
}

// Partition splits links into contiguous batches of at most size links, batch indices start
// at 1.
func Partition(links []record.Link, size int) []directory.Batch {
	var batches []directory.Batch
	for start := 0; start < len(links); start += size {
		end := start + size
		if end > len(links) {
			end = len(links)
		}
		batches = append(batches, directory.Batch{
			Index: len(batches) + 1,
			Links: links[start:end],
		})
	}
	return batches
}
