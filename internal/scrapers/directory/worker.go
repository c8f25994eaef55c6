// worker.go visits the detail pages of one batch of links.

package directory

import (
	"context"
	"fmt"
	"txschools-scraper/internal/browser"
	"txschools-scraper/internal/components/assert"
	"txschools-scraper/internal/components/chrono"
	"txschools-scraper/internal/components/telemetry"
	"txschools-scraper/internal/record"
)

const (
	report_worker_session = "worker.session"
	report_worker_link    = "worker.link"
)

// Batch is a contiguous slice of the collected links, Index is 1-based.
type Batch struct {
	Index int
	Links []record.Link
}

// Worker extracts the records of a batch in its own browser session.
type Worker struct {
	launcher  browser.Launcher
	extractor Extractor
	delays    Delays
	time      chrono.API
	tel       telemetry.API
}

func NewWorker(launcher browser.Launcher, extractor Extractor, delays Delays, time chrono.API, tel telemetry.API) Worker {
	assert.NotNil(launcher, "launcher")
	assert.NotNil(time, "chrono")
	assert.NotNil(tel, "telemetry")

	return Worker{
		launcher:  launcher,
		extractor: extractor,
		delays:    delays,
		time:      time,
		tel:       telemetry.NewScopedAPI("directory", tel),
	}
}

// RunBatch returns the records of every link that could be read, in link order. Links that fail
// are skipped, an error is only returned when no session could be opened or ctx is done. When ctx
// is done the records extracted until then are returned along with ctx.Err().
func (w Worker) RunBatch(ctx context.Context, batch Batch) ([]record.Record, error) {
	session, err := w.launcher.NewSession(ctx)
	if err != nil {
		w.tel.ReportBroken(report_worker_session, fmt.Errorf("open session: %w", err), batch.Index)
		return nil, fmt.Errorf("batch %d: open session: %w", batch.Index, err)
	}
	defer func() {
		err := session.Close()
		if err != nil {
			w.tel.ReportWarning(report_worker_session, fmt.Errorf("close session: %w", err), batch.Index)
		}
	}()

	records := make([]record.Record, 0, len(batch.Links))
	for i, link := range batch.Links {
		if err := ctx.Err(); err != nil {
			return records, err
		}
		w.tel.ReportDebug("processing link", "batch", batch.Index, "link", i+1, "of", len(batch.Links), "uri", link.URI)

		err := session.Load(ctx, link.URI)
		if err != nil {
			if ctx.Err() != nil {
				return records, ctx.Err()
			}
			w.tel.ReportWarning(report_worker_link, fmt.Errorf("load: %w", err), link.URI)
			continue
		}

		err = w.time.Sleep(ctx, chrono.Jitter(w.delays.LinkMin, w.delays.LinkMax))
		if err != nil {
			return records, err
		}

		rec, err := w.extractor.Extract(ctx, session, link.Page)
		if err != nil {
			if ctx.Err() != nil {
				return records, ctx.Err()
			}
			w.tel.ReportWarning(report_worker_link, fmt.Errorf("extract: %w", err), link.URI)
			continue
		}
		records = append(records, rec)
	}

	w.tel.ReportInfo("batch done", "batch", batch.Index, "records", len(records), "links", len(batch.Links))
	return records, nil
}
