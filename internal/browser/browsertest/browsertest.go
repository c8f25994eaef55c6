// Package browsertest provides an in-memory directory site implementing browser.Launcher. The
// listing reacts to clicks on its filter dropdown and pagination buttons the way the real
// directory does, without a browser process.
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
	"txschools-scraper/internal/browser"
	"txschools-scraper/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

var ErrLoad = errors.New("browsertest: load failed")

// Listing describes the paginated listing served at Site.ListingURL.
type Listing struct {
	// Pages holds the detail hrefs shown on every page, an empty page renders an empty table.
	Pages [][]string
	// Filters are the options offered by the grade level dropdown.
	Filters []string
	// StuckAfter makes clicking the button for the page after it a no-op (0 disables).
	StuckAfter int
	// NoIndicator drops aria-current from the pagination buttons.
	NoIndicator bool
	// NoTable leaves the results table out entirely.
	NoTable bool
}

// Site is a fake website, it is safe for concurrent use by many sessions.
type Site struct {
	ListingURL string
	Listing    Listing
	// Details maps absolute urls to documents.
	Details map[string]string
	// FailLoad lists urls whose Load always fails.
	FailLoad map[string]bool
	// FailSession, if set, is called with the 1-based index of every NewSession call and makes
	// it fail when it returns true.
	FailSession func(n int) bool

	mu       sync.Mutex
	sessions int
	open     int
	loads    []string
	applied  [][]string
}

// Sessions returns how many sessions were requested and how many are still open.
func (s *Site) Sessions() (requested, open int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions, s.open
}

// Loads returns every url loaded so far, across sessions.
func (s *Site) Loads() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.loads...)
}

// AppliedFilters returns the filters selected in every session that visited the listing.
func (s *Site) AppliedFilters() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]string(nil), s.applied...)
}

func (s *Site) NewSession(ctx context.Context) (browser.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions++
	if s.FailSession != nil && s.FailSession(s.sessions) {
		return nil, fmt.Errorf("browsertest: session %d refused", s.sessions)
	}
	s.open++
	return &page{site: s}, nil
}

func (s *Site) Close() error {
	return nil
}

type listingState struct {
	page     int
	open     bool
	filterID int
}

type page struct {
	site *Site

	url     string
	doc     *goquery.Document
	listing *listingState
	closed  bool
}

func (p *page) Load(ctx context.Context, uri string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.closed {
		return errors.New("browsertest: session closed")
	}

	p.site.mu.Lock()
	p.site.loads = append(p.site.loads, uri)
	fail := p.site.FailLoad[uri]
	body, isDetail := p.site.Details[uri]
	p.site.mu.Unlock()

	if fail {
		return ErrLoad
	}

	p.url = uri
	if uri == p.site.ListingURL {
		p.site.mu.Lock()
		p.site.applied = append(p.site.applied, nil)
		filterID := len(p.site.applied) - 1
		p.site.mu.Unlock()

		p.listing = &listingState{page: 1, filterID: filterID}
		return p.render()
	}

	p.listing = nil
	if !isDetail {
		body = "<html><body><p>not found</p></body></html>"
	}
	return p.parse(body)
}

func (p *page) parse(body string) error {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return err
	}
	p.doc = doc
	return nil
}

func (p *page) render() error {
	l := p.site.Listing
	st := p.listing

	var b strings.Builder
	b.WriteString(`<html><body>`)
	b.WriteString(`<input placeholder="Select a grade level">`)
	if st.open {
		b.WriteString(`<ul role="listbox">`)
		for i, f := range l.Filters {
			fmt.Fprintf(&b, `<li data-option="%d">%s</li>`, i, html.EscapeString(f))
		}
		b.WriteString(`</ul>`)
	}

	if !l.NoTable {
		b.WriteString(`<table><tbody>`)
		if st.page >= 1 && st.page <= len(l.Pages) {
			for i, href := range l.Pages[st.page-1] {
				fmt.Fprintf(
					&b,
					`<tr><td><a href="%s">School %d-%d</a></td><td><a href="/other">Other</a></td></tr>`,
					html.EscapeString(href), st.page, i+1,
				)
			}
		}
		b.WriteString(`</tbody></table>`)
	}

	b.WriteString(`<nav aria-label="pagination navigation">`)
	for i := 1; i <= len(l.Pages); i++ {
		current := ""
		if i == st.page && !l.NoIndicator {
			current = ` aria-current="true"`
		}
		fmt.Fprintf(&b, `<button data-page="%d"%s>%d</button>`, i, current, i)
	}
	b.WriteString(`</nav></body></html>`)

	return p.parse(b.String())
}

func (p *page) URL() string {
	return p.url
}

func (p *page) WaitFor(ctx context.Context, loc browser.Locator, timeout time.Duration) (browser.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.doc == nil {
		return nil, browser.ErrTimeout
	}
	matches := htmlutil.Locate(p.doc.Selection, loc.CSS, loc.Contains, loc.Child)
	if len(matches) == 0 {
		return nil, browser.ErrTimeout
	}
	return element{sel: matches[0]}, nil
}

func (p *page) FindAll(ctx context.Context, loc browser.Locator) ([]browser.Element, error) {
	if p.doc == nil {
		return nil, nil
	}
	matches := htmlutil.Locate(p.doc.Selection, loc.CSS, loc.Contains, loc.Child)
	out := make([]browser.Element, len(matches))
	for i, m := range matches {
		out[i] = element{sel: m}
	}
	return out, nil
}

func (p *page) Click(ctx context.Context, el browser.Element) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e, ok := el.(element)
	if !ok {
		return fmt.Errorf("browsertest: foreign element %T", el)
	}

	if p.listing != nil {
		if _, ok := e.sel.Attr("placeholder"); ok {
			p.listing.open = true
			return p.render()
		}
		if raw, ok := e.sel.Attr("data-option"); ok {
			i, _ := strconv.Atoi(raw)
			p.site.mu.Lock()
			p.site.applied[p.listing.filterID] = append(p.site.applied[p.listing.filterID], p.site.Listing.Filters[i])
			p.site.mu.Unlock()
			p.listing.open = false
			return p.render()
		}
		if raw, ok := e.sel.Attr("data-page"); ok {
			n, _ := strconv.Atoi(raw)
			stuck := p.site.Listing.StuckAfter
			if stuck > 0 && n > stuck {
				return nil
			}
			p.listing.page = n
			return p.render()
		}
	}

	href, ok := e.sel.Attr("href")
	if !ok {
		return browser.ErrNotNavigable
	}
	base, err := url.Parse(p.url)
	if err != nil {
		return err
	}
	target, err := base.Parse(href)
	if err != nil {
		return err
	}
	return p.Load(ctx, target.String())
}

func (p *page) ScrollIntoView(ctx context.Context, el browser.Element) error {
	return ctx.Err()
}

func (p *page) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	p.site.mu.Lock()
	p.site.open--
	p.site.mu.Unlock()
	return nil
}

type element struct {
	sel *goquery.Selection
}

func (e element) Text() (string, error) {
	return htmlutil.RenderText(e.sel.Nodes[0]), nil
}

func (e element) Attribute(name string) (string, bool, error) {
	v, ok := e.sel.Attr(name)
	return v, ok, nil
}

func (e element) Find(loc browser.Locator) (browser.Element, error) {
	matches := htmlutil.Locate(e.sel, loc.CSS, loc.Contains, loc.Child)
	if len(matches) == 0 {
		return nil, browser.ErrNotFound
	}
	return element{sel: matches[0]}, nil
}

// DetailPage renders a detail document laid out like the directory's school pages. Empty
// arguments leave the corresponding block out.
func DetailPage(name, address, phone, principal, website, district, grades string) string {
	var b strings.Builder
	b.WriteString(`<html><body>`)
	if name != "" {
		fmt.Fprintf(&b, `<h1>%s</h1>`, html.EscapeString(name))
	}
	if address != "" {
		lines := strings.Split(address, "\n")
		for i := range lines {
			lines[i] = html.EscapeString(lines[i])
		}
		fmt.Fprintf(&b, `<div class="MuiGrid-root MuiGrid-grid-md-5"><p><b>ADDRESS:</b> %s</p></div>`, lines[0])
		fmt.Fprintf(&b, `<div class="MuiGrid-root MuiGrid-grid-sm-4"><p><b>Address:</b><br>%s</p></div>`, strings.Join(lines, "<br>"))
	}
	if phone != "" {
		fmt.Fprintf(&b, `<div class="MuiGrid-root MuiGrid-grid-sm-4"><p><b>Phone:</b> %s</p></div>`, html.EscapeString(phone))
	}
	if principal != "" {
		fmt.Fprintf(&b, `<div class="MuiGrid-root MuiGrid-grid-sm-4"><p><b>Principal Name:</b> %s</p></div>`, html.EscapeString(principal))
	}
	if website != "" {
		fmt.Fprintf(&b, `<a class="MuiButton-root MuiButton-contained" href="%s">Website</a>`, html.EscapeString(website))
	}
	if district != "" {
		fmt.Fprintf(&b, `<span>District: <b><a href="/district">%s</a></b></span>`, html.EscapeString(district))
	}
	if grades != "" {
		fmt.Fprintf(&b, `<span>Grades Served: <b>%s</b></span>`, html.EscapeString(grades))
	}
	b.WriteString(`</body></html>`)
	return b.String()
}
