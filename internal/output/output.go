// Package output persists crawl results: per-batch checkpoints while the crawl runs and one
// consolidated result set at the end.
package output

import (
	"context"
	"fmt"
	"time"
	"txschools-scraper/internal/record"
)

// Provenance identifies the part of the listing a result set was collected from.
type Provenance struct {
	FirstPage int
	LastPage  int
	At        time.Time
}

// Sink receives the cumulative records of a crawl. It is only ever called from one goroutine.
type Sink interface {
	// Checkpoint stores every record collected after the given (1-based) batch completed.
	Checkpoint(ctx context.Context, batchIndex int, records []record.Record) error
	// Finalize stores the numbered, complete record set and returns where it was written.
	Finalize(ctx context.Context, prov Provenance, records []record.Record) (location string, err error)
}

// CheckpointName is the file name of the checkpoint written after batch batchIndex.
func CheckpointName(batchIndex int) string {
	return fmt.Sprintf("progress_batch_%d.csv", batchIndex)
}

// FinalName is the file name of the consolidated output.
func FinalName(prov Provenance) string {
	return fmt.Sprintf(
		"schools_data_p%d-%d_%s.csv",
		prov.FirstPage,
		prov.LastPage,
		prov.At.Format("20060102_150405"),
	)
}
