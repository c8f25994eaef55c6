package static

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
	"txschools-scraper/internal/browser"
	"txschools-scraper/internal/components/telemetry/telemetrytest"

	"github.com/stretchr/testify/require"
)

const listingPage = `<html><body>
<table><tbody>
<tr><td><a href="/school/1">One</a></td></tr>
<tr><td><a href="school/2">Two</a></td></tr>
</tbody></table>
<nav aria-label="pagination navigation">
<button aria-current="true">1</button>
<a href="/list?page=2"><button>2</button></a>
<button>Next</button>
</nav>
</body></html>`

const detailPage = `<html><body>
<h1> Alpha  Elementary </h1>
<div class="MuiGrid-grid-sm-4"><p>Address:<br>100 Main St<br>Austin, TX 78701</p></div>
<div class="MuiGrid-grid-sm-4"><p>Phone: 512-555-0100</p></div>
<span>District: <b><a href="/d/1">Austin ISD</a></b></span>
<span>Grades Served: <b>PK - 05</b></span>
</body></html>`

func newServer(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/list", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(listingPage))
	})
	mux.HandleFunc("/school/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(detailPage))
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newSession(t *testing.T, rec *telemetrytest.Recorder) browser.Session {
	l := NewLauncher(Options{RequestsPerSecond: 100}, rec)
	session, err := l.NewSession(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() {
		session.Close()
		l.Close()
	})
	return session
}

func TestLoadAndQuery(t *testing.T) {
	srv := newServer(t)
	ctx := context.Background()
	session := newSession(t, &telemetrytest.Recorder{})

	require.NoError(t, session.Load(ctx, srv.URL+"/list"))
	require.Equal(t, srv.URL+"/list", session.URL())

	rows, err := session.FindAll(ctx, browser.Locator{CSS: "table tbody tr"})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	link, err := rows[1].Find(browser.Locator{CSS: "a"})
	require.NoError(t, err)
	href, ok, err := link.Attribute("href")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "school/2", href)

	current, err := session.WaitFor(ctx, browser.Locator{CSS: "button[aria-current='true']"}, time.Second)
	require.NoError(t, err)
	text, err := current.Text()
	require.NoError(t, err)
	require.Equal(t, "1", text)

	_, err = session.WaitFor(ctx, browser.Locator{CSS: "h1"}, time.Second)
	require.ErrorIs(t, err, browser.ErrTimeout)

	_, err = rows[0].Find(browser.Locator{CSS: "img"})
	require.ErrorIs(t, err, browser.ErrNotFound)
}

func TestContainsAndChild(t *testing.T) {
	srv := newServer(t)
	ctx := context.Background()
	session := newSession(t, &telemetrytest.Recorder{})
	require.NoError(t, session.Load(ctx, srv.URL+"/school/1"))

	el, err := session.WaitFor(ctx, browser.Locator{CSS: "span", Contains: "District:", Child: "b > a"}, time.Second)
	require.NoError(t, err)
	text, err := el.Text()
	require.NoError(t, err)
	require.Equal(t, "Austin ISD", text)

	el, err = session.WaitFor(ctx, browser.Locator{CSS: "div[class*='MuiGrid-grid-sm-4'] > p", Contains: "Address:"}, time.Second)
	require.NoError(t, err)
	text, err = el.Text()
	require.NoError(t, err)
	require.Equal(t, "Address:\n100 Main St\nAustin, TX 78701", text)

	name, err := session.WaitFor(ctx, browser.Locator{CSS: "h1"}, time.Second)
	require.NoError(t, err)
	text, err = name.Text()
	require.NoError(t, err)
	require.Equal(t, "Alpha Elementary", text)

	_, err = session.WaitFor(ctx, browser.Locator{CSS: "span", Contains: "Principal Name:"}, time.Second)
	require.ErrorIs(t, err, browser.ErrTimeout)
}

func TestClick(t *testing.T) {
	srv := newServer(t)
	ctx := context.Background()
	session := newSession(t, &telemetrytest.Recorder{})
	require.NoError(t, session.Load(ctx, srv.URL+"/list"))

	buttons, err := session.FindAll(ctx, browser.Locator{CSS: "nav[aria-label='pagination navigation'] button"})
	require.NoError(t, err)
	require.Len(t, buttons, 3)

	// a button without an enclosing anchor cannot be followed
	err = session.Click(ctx, buttons[2])
	require.True(t, errors.Is(err, browser.ErrNotNavigable))

	// relative links resolve against the current document
	links, err := session.FindAll(ctx, browser.Locator{CSS: "table tbody tr a"})
	require.NoError(t, err)
	require.NoError(t, session.Click(ctx, links[1]))
	require.Equal(t, srv.URL+"/school/2", session.URL())

	_, err = session.WaitFor(ctx, browser.Locator{CSS: "h1"}, time.Second)
	require.NoError(t, err)
}

func TestLoadErrorStatus(t *testing.T) {
	srv := newServer(t)
	rec := &telemetrytest.Recorder{}
	session := newSession(t, rec)

	err := session.Load(context.Background(), srv.URL+"/missing")
	require.Error(t, err)
	require.NotEmpty(t, rec.Find(telemetrytest.LevelWarning, report_page_load))
}

func TestQueryBeforeLoad(t *testing.T) {
	session := newSession(t, &telemetrytest.Recorder{})
	_, err := session.FindAll(context.Background(), browser.Locator{CSS: "a"})
	require.Error(t, err)
	require.Equal(t, "", session.URL())
}

type dumpOutput struct {
	ids []string
}

func (d *dumpOutput) Write(id string, contents string) {
	d.ids = append(d.ids, id)
}

func TestDump(t *testing.T) {
	srv := newServer(t)
	dump := &dumpOutput{}
	l := NewLauncher(Options{Dump: dump}, &telemetrytest.Recorder{})
	session, err := l.NewSession(context.Background())
	require.NoError(t, err)
	defer session.Close()

	require.NoError(t, session.Load(context.Background(), srv.URL+"/list"))
	require.NoError(t, session.Load(context.Background(), srv.URL+"/school/1"))

	other, err := l.NewSession(context.Background())
	require.NoError(t, err)
	defer other.Close()
	require.NoError(t, other.Load(context.Background(), srv.URL+"/list"))

	require.Equal(t, []string{"session1-1", "session1-2", "session2-1"}, dump.ids)
}
