package directory

import (
	"context"
	"fmt"
	"testing"
	"txschools-scraper/internal/browser/browsertest"
	"txschools-scraper/internal/components/telemetry/telemetrytest"
	"txschools-scraper/internal/record"

	"github.com/stretchr/testify/require"
)

var gradeOptions = []string{"Early Education", "Prekindergarten", "Kindergarten", "Elementary"}

// pages returns n listing pages holding perPage relative links each.
func pages(n, perPage int) [][]string {
	out := make([][]string, n)
	for p := range out {
		for i := 0; i < perPage; i++ {
			out[p] = append(out[p], fmt.Sprintf("/school/%d-%d", p+1, i+1))
		}
	}
	return out
}

func walk(t *testing.T, listing browsertest.Listing, maxPages int) (WalkResult, *browsertest.Site, *telemetrytest.Recorder) {
	return walkProfile(t, TXSchoolsProfile, listing, maxPages)
}

func walkProfile(t *testing.T, profile Profile, listing browsertest.Listing, maxPages int) (WalkResult, *browsertest.Site, *telemetrytest.Recorder) {
	site := &browsertest.Site{ListingURL: listingURL, Listing: listing}
	rec := &telemetrytest.Recorder{}
	ctx := context.Background()

	session, err := site.NewSession(ctx)
	require.NoError(t, err)
	defer session.Close()
	require.NoError(t, session.Load(ctx, listingURL))

	walker := NewWalker(profile, WalkerOptions{
		MaxPages: maxPages,
		Timeouts: testTimeouts(),
		Delays:   DefaultDelays(),
	}, testClock(), rec)
	result, err := walker.Walk(ctx, session)
	require.NoError(t, err)
	return result, site, rec
}

func TestWalkAllPages(t *testing.T) {
	listing := browsertest.Listing{Pages: pages(3, 2), Filters: gradeOptions}
	listing.Pages[2] = listing.Pages[2][:1]

	result, site, _ := walk(t, listing, 0)

	require.Equal(t, 3, result.PagesVisited)
	require.Equal(t, 1, result.FirstPage)
	require.Equal(t, 3, result.LastPage)
	require.Equal(t, []record.Link{
		{URI: "https://txschools.example/school/1-1", Page: 1},
		{URI: "https://txschools.example/school/1-2", Page: 1},
		{URI: "https://txschools.example/school/2-1", Page: 2},
		{URI: "https://txschools.example/school/2-2", Page: 2},
		{URI: "https://txschools.example/school/3-1", Page: 3},
	}, result.Links)

	require.Equal(t, [][]string{{"Early Education", "Prekindergarten", "Kindergarten"}}, site.AppliedFilters())
}

func TestWalkPageCap(t *testing.T) {
	result, _, rec := walk(t, browsertest.Listing{Pages: pages(6, 3), Filters: gradeOptions}, 2)

	require.Equal(t, 2, result.PagesVisited)
	require.Equal(t, 1, result.FirstPage)
	require.Equal(t, 2, result.LastPage)
	require.Len(t, result.Links, 6)
	require.Len(t, rec.Find(telemetrytest.LevelInfo, "page limit reached"), 1)
}

func TestWalkStopsOnEmptyPage(t *testing.T) {
	listing := browsertest.Listing{Pages: pages(3, 2), Filters: gradeOptions}
	listing.Pages[1] = nil

	result, _, _ := walk(t, listing, 0)
	require.Equal(t, 1, result.PagesVisited)
	require.Equal(t, 1, result.LastPage)
	require.Len(t, result.Links, 2)
}

func TestWalkStopsWhenPageDoesNotChange(t *testing.T) {
	listing := browsertest.Listing{Pages: pages(4, 1), Filters: gradeOptions, StuckAfter: 2}

	result, _, rec := walk(t, listing, 0)
	require.Equal(t, 2, result.PagesVisited)
	require.Equal(t, 2, result.LastPage)
	require.Len(t, rec.Find(telemetrytest.LevelWarning, report_walker_advance), 1)
}

func TestWalkWithoutIndicator(t *testing.T) {
	listing := browsertest.Listing{Pages: pages(3, 1), Filters: gradeOptions, NoIndicator: true}

	result, _, _ := walk(t, listing, 0)
	require.Equal(t, 1, result.PagesVisited)
	require.Equal(t, 1, result.FirstPage)
	require.Len(t, result.Links, 1)
}

func TestWalkWithoutResults(t *testing.T) {
	result, _, rec := walk(t, browsertest.Listing{Pages: pages(2, 2), NoTable: true}, 0)
	require.Empty(t, result.Links)
	require.Equal(t, 0, result.FirstPage)
	require.Equal(t, 0, result.LastPage)
	require.Len(t, rec.Find(telemetrytest.LevelWarning, report_walker_paging), 1)
}

func TestWalkDegradesMissingFilters(t *testing.T) {
	profile := TXSchoolsProfile
	profile.Filters = []string{"Early Education", "Kindergarten"}
	listing := browsertest.Listing{Pages: pages(1, 2), Filters: []string{"Elementary", "Kindergarten"}}

	result, site, rec := walkProfile(t, profile, listing, 0)
	require.Len(t, result.Links, 2)
	require.Equal(t, [][]string{{"Kindergarten"}}, site.AppliedFilters())

	warnings := rec.Find(telemetrytest.LevelWarning, report_walker_filter)
	require.Len(t, warnings, 1)
}

func TestWalkCanceled(t *testing.T) {
	site := &browsertest.Site{ListingURL: listingURL, Listing: browsertest.Listing{Pages: pages(2, 2)}}
	ctx, cancel := context.WithCancel(context.Background())

	session, err := site.NewSession(ctx)
	require.NoError(t, err)
	require.NoError(t, session.Load(ctx, listingURL))
	cancel()

	walker := NewWalker(TXSchoolsProfile, WalkerOptions{Timeouts: testTimeouts()}, testClock(), &telemetrytest.Recorder{})
	_, err = walker.Walk(ctx, session)
	require.ErrorIs(t, err, context.Canceled)
}
