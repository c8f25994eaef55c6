package rodbrowser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
	"txschools-scraper/internal/browser"
	"txschools-scraper/internal/components/telemetry/telemetrytest"

	"github.com/go-rod/rod/lib/launcher"
	"github.com/stretchr/testify/require"
)

const fixture = `<html><body>
<h1>Alpha Elementary</h1>
<span>District: <b><a href="/d/1">Austin ISD</a></b></span>
<button id="go" onclick="document.querySelector('h1').textContent = 'clicked'">Go</button>
<script>
setTimeout(() => {
	const p = document.createElement('p')
	p.className = 'late'
	p.textContent = 'rendered later'
	document.body.appendChild(p)
}, 300)
</script>
</body></html>`

// requires a local chromium, the test is skipped when none can be found.
func newLauncher(t *testing.T) *Launcher {
	if testing.Short() {
		t.Skip("skipping browser test in short mode")
	}
	bin, ok := launcher.LookPath()
	if !ok {
		t.Skip("no browser available")
	}

	l, err := NewLauncher(context.Background(), Options{Bin: bin, Headless: true}, &telemetrytest.Recorder{})
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func TestSession(t *testing.T) {
	l := newLauncher(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(fixture))
	}))
	defer srv.Close()

	ctx := context.Background()
	session, err := l.NewSession(ctx)
	require.NoError(t, err)
	defer session.Close()

	require.NoError(t, session.Load(ctx, srv.URL))
	require.Equal(t, srv.URL+"/", session.URL())

	district, err := session.WaitFor(ctx, browser.Locator{CSS: "span", Contains: "District:", Child: "b > a"}, 5*time.Second)
	require.NoError(t, err)
	text, err := district.Text()
	require.NoError(t, err)
	require.Equal(t, "Austin ISD", text)

	late, err := session.WaitFor(ctx, browser.Locator{CSS: "p.late"}, 5*time.Second)
	require.NoError(t, err)
	text, err = late.Text()
	require.NoError(t, err)
	require.Equal(t, "rendered later", text)

	_, err = session.WaitFor(ctx, browser.Locator{CSS: "table"}, 500*time.Millisecond)
	require.ErrorIs(t, err, browser.ErrTimeout)

	button, err := session.WaitFor(ctx, browser.Locator{CSS: "#go"}, time.Second)
	require.NoError(t, err)
	require.NoError(t, session.ScrollIntoView(ctx, button))
	require.NoError(t, session.Click(ctx, button))

	heading, err := session.WaitFor(ctx, browser.Locator{CSS: "h1", Contains: "clicked"}, 2*time.Second)
	require.NoError(t, err)
	_, ok, err := heading.Attribute("id")
	require.NoError(t, err)
	require.False(t, ok)
}
