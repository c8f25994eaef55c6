package directory

import (
	"context"
	"time"
	"txschools-scraper/internal/browser"
	"txschools-scraper/internal/browser/browsertest"
	"txschools-scraper/internal/components/chrono"
	"txschools-scraper/internal/components/telemetry/telemetrytest"
)

const listingURL = "https://txschools.example/?view=schools"

func testClock() chrono.API {
	return chrono.FixedImpl{At: time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)}
}

func testTimeouts() Timeouts {
	return Timeouts{
		Field:     time.Millisecond,
		Body:      time.Millisecond,
		Container: time.Millisecond,
		Filter:    time.Millisecond,
	}
}

func alphaPage() string {
	return browsertest.DetailPage(
		"Alpha Elementary",
		"100 Main St\nAustin, TX 78701",
		"(512) 555-0100",
		"Jane Doe",
		"https://alpha.example.com",
		"Austin ISD",
		"PK - 05",
	)
}

func newExtractor(rec *telemetrytest.Recorder) Extractor {
	return NewExtractor(TXSchoolsProfile, testTimeouts(), rec)
}

// loadedPage opens a session on a single document served at uri.
func loadedPage(uri, body string) (browser.Session, error) {
	site := &browsertest.Site{Details: map[string]string{uri: body}}
	session, err := site.NewSession(context.Background())
	if err != nil {
		return nil, err
	}
	return session, session.Load(context.Background(), uri)
}
