// Package static implements browser.Launcher over plain HTTP requests and goquery. It suits
// server rendered directories: clicking an element follows its href, nothing else is executed.
package static

import (
	"bytes"
	"context"
	"fmt"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync/atomic"
	"time"
	"txschools-scraper/internal/browser"
	"txschools-scraper/internal/components/assert"
	"txschools-scraper/internal/components/telemetry"
	"txschools-scraper/lib/htmlutil"
	"txschools-scraper/lib/restyutil"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const (
	report_page_load  = "page.load"
	report_page_click = "page.click"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

type Options struct {
	UserAgent string
	// RequestsPerSecond is shared by every session of the launcher, 0 disables limiting.
	RequestsPerSecond float64
	Timeout           time.Duration
	// CloudflareBypass wraps the transport with cloudflare-bp-go.
	CloudflareBypass bool
	// Dump, if set, receives every http exchange in full.
	Dump restyutil.InstrumentOutput
}

// Launcher hands out sessions that each own an http client and cookie jar.
type Launcher struct {
	opts     Options
	limiter  *rate.Limiter
	sessions uint64
	tel      telemetry.API
}

func NewLauncher(opts Options, tel telemetry.API) *Launcher {
	assert.NotNil(tel, "telemetry")

	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = time.Second * 30
	}

	l := &Launcher{
		opts: opts,
		tel:  telemetry.NewScopedAPI("static_browser", tel),
	}
	if opts.RequestsPerSecond > 0 {
		// burst >= 1 just means that no requests will be dropped
		burst := int(opts.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		l.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	return l
}

func (l *Launcher) NewSession(ctx context.Context) (browser.Session, error) {
	httpClient := resty.New()
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	httpClient.SetCookieJar(jar)
	if l.opts.CloudflareBypass {
		httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)
	}
	httpClient.SetHeader("user-agent", l.opts.UserAgent)
	httpClient.SetTimeout(l.opts.Timeout)

	if l.limiter != nil {
		httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return l.limiter.Wait(req.Context())
		})
	}
	telemetry.InstrumentResty(httpClient, l.tel)
	restyutil.InstrumentClient(httpClient, restyutil.InstrumentOptions{
		Output: l.opts.Dump,
		Prefix: fmt.Sprintf("session%d-", atomic.AddUint64(&l.sessions, 1)),
	})

	return &page{http: httpClient, tel: l.tel}, nil
}

func (l *Launcher) Close() error {
	return nil
}

type page struct {
	http *resty.Client
	tel  telemetry.API

	url *url.URL
	doc *goquery.Document
}

func (p *page) Load(ctx context.Context, uri string) error {
	res, err := p.http.R().
		SetContext(ctx).
		Get(uri)
	if err != nil {
		p.tel.ReportWarning(report_page_load, fmt.Errorf("fetch: %w", err), uri)
		return err
	}
	if res.IsError() {
		err := fmt.Errorf("load %s: unexpected status %s", uri, res.Status())
		p.tel.ReportWarning(report_page_load, err)
		return err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		p.tel.ReportWarning(report_page_load, fmt.Errorf("parse: %w", err), uri)
		return err
	}

	final := res.RawResponse.Request.URL
	if final == nil {
		final, err = url.Parse(uri)
		if err != nil {
			return err
		}
	}
	p.url = final
	p.doc = doc
	return nil
}

func (p *page) URL() string {
	if p.url == nil {
		return ""
	}
	return p.url.String()
}

func (p *page) root() (*goquery.Selection, error) {
	if p.doc == nil {
		return nil, fmt.Errorf("static browser: no document loaded")
	}
	return p.doc.Selection, nil
}

// WaitFor does not actually wait, a fetched document never changes.
func (p *page) WaitFor(ctx context.Context, loc browser.Locator, timeout time.Duration) (browser.Element, error) {
	root, err := p.root()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	matches := resolve(root, loc)
	if len(matches) == 0 {
		return nil, browser.ErrTimeout
	}
	return element{sel: matches[0]}, nil
}

func (p *page) FindAll(ctx context.Context, loc browser.Locator) ([]browser.Element, error) {
	root, err := p.root()
	if err != nil {
		return nil, err
	}
	matches := resolve(root, loc)
	out := make([]browser.Element, len(matches))
	for i, m := range matches {
		out[i] = element{sel: m}
	}
	return out, nil
}

// Click follows the href of el (or of its closest enclosing anchor).
func (p *page) Click(ctx context.Context, el browser.Element) error {
	e, ok := el.(element)
	if !ok {
		return fmt.Errorf("static browser: foreign element %T", el)
	}

	anchor := e.sel
	if _, ok := anchor.Attr("href"); !ok {
		anchor = e.sel.Closest("a[href]")
	}
	href, _ := anchor.Attr("href")
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
		return browser.ErrNotNavigable
	}

	anchors := htmlutil.GetAnchors(p.url, anchor)
	if len(anchors) == 0 {
		return browser.ErrNotNavigable
	}

	target := anchors[0].Url.String()
	err := p.Load(ctx, target)
	if err != nil {
		p.tel.ReportWarning(report_page_click, err, target)
		return err
	}
	return nil
}

func (p *page) ScrollIntoView(context.Context, browser.Element) error {
	return nil
}

func (p *page) Close() error {
	p.doc = nil
	return nil
}

type element struct {
	sel *goquery.Selection
}

func (e element) Text() (string, error) {
	if len(e.sel.Nodes) == 0 {
		return "", nil
	}
	return htmlutil.RenderText(e.sel.Nodes[0]), nil
}

func (e element) Attribute(name string) (string, bool, error) {
	value, ok := e.sel.Attr(name)
	return value, ok, nil
}

func (e element) Find(loc browser.Locator) (browser.Element, error) {
	matches := resolve(e.sel, loc)
	if len(matches) == 0 {
		return nil, browser.ErrNotFound
	}
	return element{sel: matches[0]}, nil
}

func resolve(root *goquery.Selection, loc browser.Locator) []*goquery.Selection {
	return htmlutil.Locate(root, loc.CSS, loc.Contains, loc.Child)
}
