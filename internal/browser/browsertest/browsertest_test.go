package browsertest

import (
	"context"
	"testing"
	"time"
	"txschools-scraper/internal/browser"

	"github.com/stretchr/testify/require"
)

func TestListingInteractions(t *testing.T) {
	site := &Site{
		ListingURL: "https://example.com/list",
		Listing: Listing{
			Pages:   [][]string{{"/s/1", "/s/2"}, {"/s/3"}},
			Filters: []string{"Early Education", "Kindergarten"},
		},
	}
	ctx := context.Background()

	session, err := site.NewSession(ctx)
	require.NoError(t, err)
	require.NoError(t, session.Load(ctx, site.ListingURL))

	input, err := session.WaitFor(ctx, browser.Locator{CSS: "input[placeholder='Select a grade level']"}, time.Second)
	require.NoError(t, err)
	options, err := session.FindAll(ctx, browser.Locator{CSS: "li"})
	require.NoError(t, err)
	require.Empty(t, options)

	require.NoError(t, session.Click(ctx, input))
	options, err = session.FindAll(ctx, browser.Locator{CSS: "li"})
	require.NoError(t, err)
	require.Len(t, options, 2)
	require.NoError(t, session.Click(ctx, options[1]))
	require.Equal(t, [][]string{{"Kindergarten"}}, site.AppliedFilters())

	rows, err := session.FindAll(ctx, browser.Locator{CSS: "table tbody tr"})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	next, err := session.WaitFor(ctx, browser.Locator{CSS: "nav[aria-label='pagination navigation'] button", Contains: "2"}, time.Second)
	require.NoError(t, err)
	require.NoError(t, session.Click(ctx, next))

	current, err := session.WaitFor(ctx, browser.Locator{CSS: "button[aria-current='true']"}, time.Second)
	require.NoError(t, err)
	text, err := current.Text()
	require.NoError(t, err)
	require.Equal(t, "2", text)

	link, err := session.WaitFor(ctx, browser.Locator{CSS: "table tbody tr a"}, time.Second)
	require.NoError(t, err)
	require.NoError(t, session.Click(ctx, link))
	require.Equal(t, "https://example.com/s/3", session.URL())

	require.NoError(t, session.Close())
	requested, open := site.Sessions()
	require.Equal(t, 1, requested)
	require.Equal(t, 0, open)
}

func TestFailureInjection(t *testing.T) {
	site := &Site{
		FailLoad:    map[string]bool{"https://example.com/bad": true},
		FailSession: func(n int) bool { return n == 2 },
	}
	ctx := context.Background()

	first, err := site.NewSession(ctx)
	require.NoError(t, err)
	_, err = site.NewSession(ctx)
	require.Error(t, err)

	require.ErrorIs(t, first.Load(ctx, "https://example.com/bad"), ErrLoad)
	require.Equal(t, []string{"https://example.com/bad"}, site.Loads())

	requested, open := site.Sessions()
	require.Equal(t, 2, requested)
	require.Equal(t, 1, open)
}
