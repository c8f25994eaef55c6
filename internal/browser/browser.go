// Package browser describes the page access capability the crawler consumes. The crawler never
// touches markup directly, it only asks a Page to locate elements and read them.
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrTimeout is returned when an element did not appear within the allowed wait.
	ErrTimeout = errors.New("browser: timed out waiting for element")
	// ErrNotFound is returned by lookups that do not wait.
	ErrNotFound = errors.New("browser: element not found")
	// ErrNotNavigable is returned when clicking an element the backend cannot act on.
	ErrNotNavigable = errors.New("browser: element cannot be clicked")
)

// Locator identifies an element to read.
type Locator struct {
	// CSS is a css selector.
	CSS string
	// Contains, if set, keeps only elements whose text contains it.
	Contains string
	// Child, if set, is a css selector applied under the first element matched by CSS and Contains.
	Child string
}

func (l Locator) String() string {
	s := l.CSS
	if l.Contains != "" {
		s += fmt.Sprintf(" :contains(%q)", l.Contains)
	}
	if l.Child != "" {
		s += " >> " + l.Child
	}
	return s
}

// Element is a handle to an element on a loaded page. It is only valid until the page navigates.
type Element interface {
	// Text returns the rendered text of the element, lines are separated by "\n".
	Text() (string, error)
	// Attribute returns the named attribute, ok is false if the element doesn't have it.
	Attribute(name string) (value string, ok bool, err error)
	// Find returns the first descendant matching loc or ErrNotFound.
	Find(loc Locator) (Element, error)
}

// Page is the capability to drive and query one page.
type Page interface {
	// Load navigates to uri and waits for the document to load.
	Load(ctx context.Context, uri string) error
	// URL returns the url of the currently loaded document.
	URL() string
	// WaitFor blocks until an element matching loc exists or the timeout passes (ErrTimeout).
	WaitFor(ctx context.Context, loc Locator, timeout time.Duration) (Element, error)
	// FindAll returns every element currently matching loc, it does not wait.
	FindAll(ctx context.Context, loc Locator) ([]Element, error)
	Click(ctx context.Context, el Element) error
	ScrollIntoView(ctx context.Context, el Element) error
}

// Session is a page owned by exactly one user, it must be closed when that user is done.
type Session interface {
	Page
	Close() error
}

// Launcher creates independent sessions.
type Launcher interface {
	NewSession(ctx context.Context) (Session, error)
	// Close releases whatever the launcher holds (a browser process, an http client).
	Close() error
}

// Poll calls try every interval until it returns an element, a non-ErrNotFound error or the
// timeout passes.
func Poll(ctx context.Context, timeout, interval time.Duration, try func() (Element, error)) (Element, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		el, err := try()
		if err == nil {
			return el, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, ErrTimeout
		case <-ticker.C:
		}
	}
}

// Retry runs fn up to attempts times, sleeping delay between attempts, and returns the last error.
func Retry(ctx context.Context, attempts int, delay time.Duration, sleep func(context.Context, time.Duration) error, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		err = fn()
		if err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		if serr := sleep(ctx, delay); serr != nil {
			return serr
		}
	}
	return err
}
