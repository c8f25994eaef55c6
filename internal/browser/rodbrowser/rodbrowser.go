// Package rodbrowser implements browser.Launcher with a Chromium instance driven over the
// DevTools protocol by go-rod. Every session is its own tab.
package rodbrowser

import (
	"context"
	"fmt"
	"strings"
	"time"
	"txschools-scraper/internal/browser"
	"txschools-scraper/internal/components/assert"
	"txschools-scraper/internal/components/telemetry"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

const (
	report_launch       = "launch"
	report_page_click   = "page.click"
	report_session_open = "session.open"
)

const pollInterval = 250 * time.Millisecond

type Options struct {
	// Bin is the browser executable, empty lets rod find or download one.
	Bin      string
	Headless bool
	// ControlURL connects to an already running browser instead of launching one.
	ControlURL string
}

type Launcher struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	tel      telemetry.API
}

func NewLauncher(ctx context.Context, opts Options, tel telemetry.API) (*Launcher, error) {
	assert.NotNil(tel, "telemetry")
	tel = telemetry.NewScopedAPI("rod_browser", tel)

	l := &Launcher{tel: tel}

	controlURL := opts.ControlURL
	if controlURL == "" {
		l.launcher = launcher.New().
			Context(ctx).
			Headless(opts.Headless).
			Leakless(true)
		if opts.Bin != "" {
			l.launcher = l.launcher.Bin(opts.Bin)
		}
		u, err := l.launcher.Launch()
		if err != nil {
			tel.ReportBroken(report_launch, err)
			return nil, fmt.Errorf("launch browser: %w", err)
		}
		controlURL = u
	}

	b := rod.New().ControlURL(controlURL)
	err := b.Connect()
	if err != nil {
		tel.ReportBroken(report_launch, err, controlURL)
		if l.launcher != nil {
			l.launcher.Kill()
		}
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	l.browser = b
	return l, nil
}

func (l *Launcher) NewSession(ctx context.Context) (browser.Session, error) {
	p, err := l.browser.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		l.tel.ReportWarning(report_session_open, err)
		return nil, err
	}
	return &page{page: p, tel: l.tel}, nil
}

func (l *Launcher) Close() error {
	err := l.browser.Close()
	if l.launcher != nil {
		l.launcher.Kill()
		l.launcher.Cleanup()
	}
	return err
}

type page struct {
	page *rod.Page
	tel  telemetry.API
}

func (p *page) Load(ctx context.Context, uri string) error {
	pg := p.page.Context(ctx)
	err := pg.Navigate(uri)
	if err != nil {
		return err
	}
	return pg.WaitLoad()
}

func (p *page) URL() string {
	info, err := p.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

func (p *page) WaitFor(ctx context.Context, loc browser.Locator, timeout time.Duration) (browser.Element, error) {
	return browser.Poll(ctx, timeout, pollInterval, func() (browser.Element, error) {
		matches, err := resolve(ctx, p.page.Context(ctx), loc)
		if err != nil {
			return nil, err
		}
		if len(matches) == 0 {
			return nil, browser.ErrNotFound
		}
		return element{el: matches[0]}, nil
	})
}

func (p *page) FindAll(ctx context.Context, loc browser.Locator) ([]browser.Element, error) {
	matches, err := resolve(ctx, p.page.Context(ctx), loc)
	if err != nil {
		return nil, err
	}
	out := make([]browser.Element, len(matches))
	for i, m := range matches {
		out[i] = element{el: m}
	}
	return out, nil
}

// Click performs a real mouse click and falls back to a script click when the element is covered
// or otherwise refuses pointer events.
func (p *page) Click(ctx context.Context, el browser.Element) error {
	e, ok := el.(element)
	if !ok {
		return fmt.Errorf("rod browser: foreign element %T", el)
	}
	target := e.el.Context(ctx)

	err := target.Click(proto.InputMouseButtonLeft, 1)
	if err == nil {
		return nil
	}
	p.tel.ReportDebug("mouse click failed, falling back to script click", err)

	_, jsErr := target.Eval(`() => this.click()`)
	if jsErr != nil {
		p.tel.ReportWarning(report_page_click, err, jsErr)
		return jsErr
	}
	return nil
}

func (p *page) ScrollIntoView(ctx context.Context, el browser.Element) error {
	e, ok := el.(element)
	if !ok {
		return fmt.Errorf("rod browser: foreign element %T", el)
	}
	return e.el.Context(ctx).ScrollIntoView()
}

func (p *page) Close() error {
	return p.page.Close()
}

type element struct {
	el *rod.Element
}

func (e element) Text() (string, error) {
	return e.el.Text()
}

func (e element) Attribute(name string) (string, bool, error) {
	value, err := e.el.Attribute(name)
	if err != nil {
		return "", false, err
	}
	if value == nil {
		return "", false, nil
	}
	return *value, true, nil
}

func (e element) Find(loc browser.Locator) (browser.Element, error) {
	matches, err := resolve(context.Background(), e.el, loc)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, browser.ErrNotFound
	}
	return element{el: matches[0]}, nil
}

type elementSource interface {
	Elements(selector string) (rod.Elements, error)
}

// resolve lists the elements under root matching loc, an empty result is not an error.
func resolve(ctx context.Context, root elementSource, loc browser.Locator) (rod.Elements, error) {
	all, err := root.Elements(loc.CSS)
	if err != nil {
		return nil, err
	}

	var matches rod.Elements
	for _, el := range all {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if loc.Contains != "" {
			text, err := el.Text()
			if err != nil || !strings.Contains(text, loc.Contains) {
				continue
			}
		}
		matches = append(matches, el)
	}
	if loc.Child == "" || len(matches) == 0 {
		return matches, nil
	}
	return matches[0].Elements(loc.Child)
}
