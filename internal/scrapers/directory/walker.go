// walker.go applies the listing filters and pages through the results collecting detail links.

package directory

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"txschools-scraper/internal/browser"
	"txschools-scraper/internal/components/assert"
	"txschools-scraper/internal/components/chrono"
	"txschools-scraper/internal/components/telemetry"
	"txschools-scraper/internal/record"
	"txschools-scraper/lib/textutil"
)

const (
	report_walker_filter  = "walker.filter"
	report_walker_paging  = "walker.paging"
	report_walker_advance = "walker.advance"
)

// optionSimilarity is the minimum Jaro-Winkler similarity for a filter option to be chosen when
// no option text contains the filter name.
const optionSimilarity = 0.85

type walkState int

const (
	stateFiltering walkState = iota
	statePaging
	stateDone
)

type WalkerOptions struct {
	// MaxPages stops the walk once that many pages were read, <= 0 means no cap.
	MaxPages      int
	FilterRetries int
	Timeouts      Timeouts
	Delays        Delays
}

// WalkResult is every link collected from the listing, in page order.
type WalkResult struct {
	Links []record.Link
	// FirstPage and LastPage are the first and last pages whose links were read, both are 0 if
	// none were.
	FirstPage    int
	LastPage     int
	PagesVisited int
}

// Walker drives a listing page. It must only be used from one goroutine at a time since the
// listing is stateful.
type Walker struct {
	profile Profile
	opts    WalkerOptions
	time    chrono.API
	tel     telemetry.API
}

func NewWalker(profile Profile, opts WalkerOptions, time chrono.API, tel telemetry.API) Walker {
	assert.NotNil(time, "chrono")
	assert.NotNil(tel, "telemetry")

	if opts.FilterRetries <= 0 {
		opts.FilterRetries = DefaultFilterRetries
	}

	return Walker{
		profile: profile,
		opts:    opts,
		time:    time,
		tel:     telemetry.NewScopedAPI("directory", tel),
	}
}

// Walk expects page to have the listing loaded. It only returns an error when ctx is done, the
// links collected until then are still returned.
func (w Walker) Walk(ctx context.Context, page browser.Page) (WalkResult, error) {
	var result WalkResult
	state := stateFiltering
	pageNumber := 0

	for state != stateDone {
		switch state {
		case stateFiltering:
			err := w.applyFilters(ctx, page)
			if err != nil {
				return result, err
			}
			pageNumber = w.startPage(ctx, page)
			state = statePaging

		case statePaging:
			links := w.readLinks(ctx, page, pageNumber)
			if err := ctx.Err(); err != nil {
				return result, err
			}
			if len(links) == 0 {
				w.tel.ReportInfo("no more links found", "page", pageNumber)
				state = stateDone
				break
			}

			result.Links = append(result.Links, links...)
			result.PagesVisited++
			if result.FirstPage == 0 {
				result.FirstPage = pageNumber
			}
			result.LastPage = pageNumber
			w.tel.ReportInfo("links collected", "page", pageNumber, "count", len(links))

			if w.opts.MaxPages > 0 && result.PagesVisited >= w.opts.MaxPages {
				w.tel.ReportInfo("page limit reached", "max_pages", w.opts.MaxPages)
				state = stateDone
				break
			}

			next, ok, err := w.advance(ctx, page, pageNumber)
			if err != nil {
				return result, err
			}
			if !ok {
				state = stateDone
				break
			}
			pageNumber = next

			err = w.time.Sleep(ctx, chrono.Jitter(w.opts.Delays.PageMin, w.opts.Delays.PageMax))
			if err != nil {
				return result, err
			}
		}
	}

	w.tel.ReportInfo("link collection done", "links", len(result.Links), "pages", result.PagesVisited)
	return result, nil
}

func (w Walker) applyFilters(ctx context.Context, page browser.Page) error {
	for _, filter := range w.profile.Filters {
		err := browser.Retry(ctx, w.opts.FilterRetries, w.opts.Delays.FilterRetry, w.time.Sleep, func() error {
			return w.selectFilter(ctx, page, filter)
		})
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			w.tel.ReportWarning(report_walker_filter, fmt.Errorf("select %q: %w", filter, err))
			continue
		}
		w.tel.ReportInfo("filter selected", "filter", filter)

		err = w.time.Sleep(ctx, chrono.Jitter(w.opts.Delays.FilterMin, w.opts.Delays.FilterMax))
		if err != nil {
			return err
		}
	}
	return nil
}

func (w Walker) selectFilter(ctx context.Context, page browser.Page, filter string) error {
	input, err := page.WaitFor(ctx, w.profile.FilterInput, w.opts.Timeouts.Filter)
	if err != nil {
		return fmt.Errorf("filter input: %w", err)
	}
	err = page.Click(ctx, input)
	if err != nil {
		return fmt.Errorf("open filter: %w", err)
	}

	_, err = page.WaitFor(ctx, w.profile.FilterOption, w.opts.Timeouts.Filter)
	if err != nil {
		return fmt.Errorf("filter options: %w", err)
	}
	options, err := page.FindAll(ctx, w.profile.FilterOption)
	if err != nil {
		return err
	}

	texts := make([]string, len(options))
	for i, opt := range options {
		texts[i], err = opt.Text()
		if err != nil {
			return err
		}
	}
	idx := textutil.BestMatch(filter, texts, optionSimilarity)
	if idx < 0 {
		return fmt.Errorf("no option matches %q: %w", filter, browser.ErrNotFound)
	}
	return page.Click(ctx, options[idx])
}

// startPage returns the page number shown by the listing, 1 if it shows none.
func (w Walker) startPage(ctx context.Context, page browser.Page) int {
	current, ok := w.currentPage(ctx, page)
	if !ok {
		return 1
	}
	return current
}

func (w Walker) currentPage(ctx context.Context, page browser.Page) (int, bool) {
	el, err := page.WaitFor(ctx, w.profile.CurrentPage, w.opts.Timeouts.Field)
	if err != nil {
		return 0, false
	}
	text, err := el.Text()
	if err != nil {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return 0, false
	}
	return n, true
}

func (w Walker) readLinks(ctx context.Context, page browser.Page, pageNumber int) []record.Link {
	_, err := page.WaitFor(ctx, w.profile.Container, w.opts.Timeouts.Container)
	if err != nil {
		w.tel.ReportWarning(report_walker_paging, fmt.Errorf("wait for results: %w", err), pageNumber)
		return nil
	}

	rows, err := page.FindAll(ctx, w.profile.Rows)
	if err != nil {
		w.tel.ReportWarning(report_walker_paging, fmt.Errorf("find rows: %w", err), pageNumber)
		return nil
	}

	base := page.URL()
	links := make([]record.Link, 0, len(rows))
	for i, row := range rows {
		anchor, err := row.Find(w.profile.RowLink)
		if err != nil {
			w.tel.ReportDebug("row without link", "page", pageNumber, "row", i)
			continue
		}
		href, ok, err := anchor.Attribute("href")
		if err != nil || !ok || strings.TrimSpace(href) == "" {
			w.tel.ReportDebug("row link without href", "page", pageNumber, "row", i)
			continue
		}
		links = append(links, record.Link{
			URI:  absolute(base, strings.TrimSpace(href)),
			Page: pageNumber,
		})
	}
	return links
}

// advance clicks the pagination button for the page after current. ok is false when the listing
// has no further page or did not move.
func (w Walker) advance(ctx context.Context, page browser.Page, current int) (next int, ok bool, err error) {
	before, found := w.currentPage(ctx, page)
	if !found {
		w.tel.ReportInfo("no current page indicator, stopping", "page", current)
		return 0, false, ctx.Err()
	}
	want := strconv.Itoa(before + 1)

	buttons, err := page.FindAll(ctx, w.profile.PageButtons)
	if err != nil {
		w.tel.ReportWarning(report_walker_advance, err)
		return 0, false, ctx.Err()
	}
	var button browser.Element
	for _, b := range buttons {
		text, err := b.Text()
		if err == nil && strings.TrimSpace(text) == want {
			button = b
			break
		}
	}
	if button == nil {
		w.tel.ReportInfo("no button for next page", "page", want)
		return 0, false, nil
	}

	err = page.ScrollIntoView(ctx, button)
	if err != nil {
		w.tel.ReportDebug("scroll into view failed", err)
	}
	if err := w.time.Sleep(ctx, w.opts.Delays.ScrollSettle); err != nil {
		return 0, false, err
	}

	err = page.Click(ctx, button)
	if err != nil {
		w.tel.ReportWarning(report_walker_advance, fmt.Errorf("click page %s: %w", want, err))
		return 0, false, ctx.Err()
	}
	if err := w.time.Sleep(ctx, w.opts.Delays.ClickSettle); err != nil {
		return 0, false, err
	}

	after, found := w.currentPage(ctx, page)
	if !found || after == before {
		w.tel.ReportWarning(report_walker_advance, fmt.Errorf("page did not change after clicking %s", want))
		return 0, false, ctx.Err()
	}
	return after, true, nil
}
