package fuzzing

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"
	"txschools-scraper/internal/browser/browsertest"
	"txschools-scraper/internal/components/chrono"
	"txschools-scraper/internal/components/telemetry"
	"txschools-scraper/internal/crawl"
	"txschools-scraper/internal/output"
	"txschools-scraper/internal/record"
	"txschools-scraper/internal/scrapers/directory"
	testutil "txschools-scraper/test/util"
)

// steps:
// - AddPage: append a listing page with a random number of detail links (including 0)
// - FailDetail: make a random known detail page fail to load
// - Crawl: run a complete crawl against the current site
//
// fault injection:
// - detail pages failing to load
// - a random session failing to open (taking its whole batch down)
//
// properties of the system:
// - the links discovered are exactly those of the leading non-empty pages, capped by max pages
// - no record is produced for a link that failed or was in a failed batch, and none twice
// - records are numbered 1..n
// - checkpoints only ever grow and the final result holds every record
// - every session that was opened is closed

const fuzzListingURL = "https://txschools.example/?view=schools"

type crawlTarget struct {
	tel  telemetry.API
	rndm *rand.Rand

	pages    [][]string
	details  map[string]string
	failLoad map[string]bool
	maxPages int
	nextID   int

	// pickSession decides how often a crawl loses a session:
	// 0: no session fails (70%)
	// 1: one random session fails (30%)
	pickSession func(*rand.Rand) int
}

type CrawlProvider struct{}

func (CrawlProvider) CreateTarget(tel telemetry.API, rndm *rand.Rand) (Target, error) {
	return &crawlTarget{
		tel:         tel,
		rndm:        rndm,
		details:     map[string]string{},
		failLoad:    map[string]bool{},
		maxPages:    1 + rndm.Intn(6),
		pickSession: testutil.RandomSwitch(7, 3),
	}, nil
}

func (t *crawlTarget) absolute(href string) string {
	return "https://txschools.example" + href
}

func (t *crawlTarget) StepAddPage(ctx context.Context, res *Results) error {
	count := t.rndm.Intn(5)
	if len(t.pages) == 0 {
		count++
	}

	hrefs := make([]string, count)
	for i := range hrefs {
		t.nextID++
		rec := testutil.RandomValidRecord(t.rndm)
		hrefs[i] = fmt.Sprintf("/school/%d", t.nextID)
		t.details[t.absolute(hrefs[i])] = browsertest.DetailPage(
			fmt.Sprintf("%s %d", rec[record.Name], t.nextID),
			fmt.Sprintf("%s\n%s, %s %s", rec[record.Address1], rec[record.City], rec[record.State], rec[record.Zip]),
			rec[record.Phone],
			rec[record.ContactName],
			rec[record.Website],
			rec[record.ParentOrg],
			rec[record.Category],
		)
	}
	t.pages = append(t.pages, hrefs)
	return nil
}

func (t *crawlTarget) StepFailDetail(ctx context.Context, res *Results) error {
	if len(t.details) == 0 {
		return nil
	}
	uris := make([]string, 0, len(t.details))
	for uri := range t.details {
		uris = append(uris, uri)
	}
	sort.Strings(uris)
	t.failLoad[uris[t.rndm.Intn(len(uris))]] = true
	return nil
}

func (t *crawlTarget) StepCrawl(ctx context.Context, res *Results) error {
	return t.crawl(ctx)
}

func (t *crawlTarget) OnEnd(ctx context.Context, res *Results) {
	err := t.crawl(ctx)
	if err != nil {
		res.Fail(fmt.Errorf("OnEnd: %w", err))
	}
}

// expectedLinks lists the uris the walker should find, in listing order.
func (t *crawlTarget) expectedLinks() []string {
	var out []string
	for i, hrefs := range t.pages {
		if len(hrefs) == 0 || i >= t.maxPages {
			break
		}
		for _, href := range hrefs {
			out = append(out, t.absolute(href))
		}
	}
	return out
}

func (t *crawlTarget) site() *browsertest.Site {
	site := &browsertest.Site{
		ListingURL: fuzzListingURL,
		Listing: browsertest.Listing{
			Pages:   t.pages,
			Filters: []string{"Early Education", "Prekindergarten", "Kindergarten"},
		},
		Details:  t.details,
		FailLoad: t.failLoad,
	}
	if t.pickSession(t.rndm) == 1 {
		// session 1 is the listing, a failure there is not what this step is exploring
		failing := 2 + t.rndm.Intn(4)
		site.FailSession = func(n int) bool {
			return n == failing
		}
	}
	return site
}

func (t *crawlTarget) crawl(ctx context.Context) error {
	site := t.site()
	sink := &checkingSink{}

	timeouts := directory.Timeouts{
		Field:     time.Millisecond,
		Body:      time.Millisecond,
		Container: time.Millisecond,
		Filter:    time.Millisecond,
	}
	crawler := crawl.New(crawl.Options{
		ListingURL: fuzzListingURL,
		BatchSize:  1 + t.rndm.Intn(4),
		Workers:    1 + t.rndm.Intn(4),
		Profile:    directory.TXSchoolsProfile,
		Walker: directory.WalkerOptions{
			MaxPages: t.maxPages,
			Timeouts: timeouts,
		},
		Timeouts: timeouts,
	}, crawl.Deps{
		Launcher: site,
		Sinks:    []output.Sink{sink},
		Time:     chrono.FixedImpl{At: time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)},
		Tel:      t.tel,
	})

	result, err := crawler.Run(ctx)
	expected := t.expectedLinks()

	if _, open := site.Sessions(); open != 0 {
		return fmt.Errorf("%d sessions left open", open)
	}

	if len(expected) == 0 {
		if !errors.Is(err, crawl.ErrNoLinks) {
			return fmt.Errorf("expected ErrNoLinks on an empty listing, got %v", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("crawl: %w", err)
	}

	discovered := make([]string, len(result.Walk.Links))
	for i, l := range result.Walk.Links {
		discovered[i] = l.URI
	}
	if fmt.Sprint(discovered) != fmt.Sprint(expected) {
		return fmt.Errorf("discovered %v, expected %v", discovered, expected)
	}

	seen := map[string]bool{}
	for i, rec := range result.Records {
		if rec[record.RecordNumber] != fmt.Sprint(i+1) {
			return fmt.Errorf("record %d is numbered %s", i+1, rec[record.RecordNumber])
		}
		name := rec[record.Name]
		if seen[name] {
			return fmt.Errorf("record %q collected twice", name)
		}
		seen[name] = true
	}

	succeeded := 0
	for _, uri := range expected {
		if !t.failLoad[uri] {
			succeeded++
		}
	}
	if len(result.Records) > succeeded {
		return fmt.Errorf("%d records from %d loadable links", len(result.Records), succeeded)
	}
	if result.FailedBatches == 0 && len(result.Records) != succeeded {
		return fmt.Errorf("no batch failed but only %d of %d loadable links produced a record", len(result.Records), succeeded)
	}

	return sink.check(len(result.Records))
}

// checkingSink records the sizes it was handed.
type checkingSink struct {
	mu    sync.Mutex
	sizes []int
	final int
}

func (s *checkingSink) Checkpoint(ctx context.Context, batchIndex int, records []record.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sizes = append(s.sizes, len(records))
	return nil
}

func (s *checkingSink) Finalize(ctx context.Context, prov output.Provenance, records []record.Record) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.final = len(records)
	return "memory", nil
}

func (s *checkingSink) check(total int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := 1; i < len(s.sizes); i++ {
		if s.sizes[i] < s.sizes[i-1] {
			return fmt.Errorf("checkpoint shrank from %d to %d records", s.sizes[i-1], s.sizes[i])
		}
	}
	if s.final != total {
		return fmt.Errorf("final result holds %d records, expected %d", s.final, total)
	}
	return nil
}
