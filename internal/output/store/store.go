// Package store keeps crawl runs and their records in a sqlite (or remote libsql) database so
// that results of earlier runs can be listed and compared.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
	"txschools-scraper/internal/components/assert"
	"txschools-scraper/internal/components/chrono"
	"txschools-scraper/internal/output"
	"txschools-scraper/internal/record"

	_ "embed"

	"github.com/mazen160/go-random"
)

//go:embed schema.sql
var Schema string

// columns maps record fields to their column in the records table.
var columns = []struct {
	field  record.Field
	column string
}{
	{record.RecordNumber, "record_number"},
	{record.PageNumber, "page_number"},
	{record.Name, "name"},
	{record.Address1, "address1"},
	{record.Address2, "address2"},
	{record.City, "city"},
	{record.State, "state"},
	{record.Zip, "zip"},
	{record.Phone, "phone"},
	{record.ContactName, "contact_name"},
	{record.Website, "website"},
	{record.ParentOrg, "parent_org"},
	{record.Category, "category"},
	{record.QualityScore, "quality_score"},
	{record.QualityIssues, "quality_issues"},
}

// Store persists one crawl run, it implements output.Sink.
type Store struct {
	db    *sql.DB
	runID string
}

// Migrate creates the tables if they don't exist yet.
func Migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, Schema)
	return err
}

// NewRun registers a new run of the crawl of listingURL.
func NewRun(ctx context.Context, db *sql.DB, listingURL string, time chrono.API) (*Store, error) {
	assert.NotNil(db, "db")
	assert.NotNil(time, "chrono")

	err := Migrate(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	id, err := random.String(8)
	if err != nil {
		return nil, err
	}
	_, err = db.ExecContext(
		ctx,
		"insert into runs(id, listing_url, started_at) values (?, ?, ?)",
		id, listingURL, time.Now().Unix(),
	)
	if err != nil {
		return nil, err
	}

	return &Store{db: db, runID: id}, nil
}

func (s *Store) RunID() string {
	return s.runID
}

func (s *Store) Checkpoint(ctx context.Context, batchIndex int, records []record.Record) error {
	return s.replace(ctx, records, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(
			ctx,
			"update runs set checkpoints = ?, total = ? where id = ?",
			batchIndex, len(records), s.runID,
		)
		return err
	})
}

func (s *Store) Finalize(ctx context.Context, prov output.Provenance, records []record.Record) (string, error) {
	err := s.replace(ctx, records, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(
			ctx,
			"update runs set finished_at = ?, first_page = ?, last_page = ?, total = ? where id = ?",
			prov.At.Unix(), prov.FirstPage, prov.LastPage, len(records), s.runID,
		)
		return err
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("run %s", s.runID), nil
}

// replace swaps the stored records of the run for records and applies update in the same
// transaction.
func (s *Store) replace(ctx context.Context, records []record.Record, update func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, "delete from records where run_id = ?", s.runID)
	if err != nil {
		return err
	}

	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.column
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"insert into records(run_id, position, %s) values (?, ?%s)",
		strings.Join(names, ", "),
		strings.Repeat(", ?", len(columns)),
	))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, rec := range records {
		args := make([]any, 0, len(columns)+2)
		args = append(args, s.runID, i)
		for _, c := range columns {
			if c.field == record.QualityScore {
				args = append(args, rec.Score())
				continue
			}
			args = append(args, rec[c.field])
		}
		_, err = stmt.ExecContext(ctx, args...)
		if err != nil {
			return fmt.Errorf("insert record %d: %w", i, err)
		}
	}

	err = update(tx)
	if err != nil {
		return err
	}
	return tx.Commit()
}

// Run is the summary of one stored run.
type Run struct {
	ID          string
	ListingURL  string
	StartedAt   time.Time
	FinishedAt  time.Time
	FirstPage   int
	LastPage    int
	Checkpoints int
	Total       int
}

// Finished reports whether the run wrote its final result set.
func (r Run) Finished() bool {
	return !r.FinishedAt.IsZero()
}

// Runs lists every stored run, newest first.
func Runs(ctx context.Context, db *sql.DB) ([]Run, error) {
	rows, err := db.QueryContext(ctx, `
		select id, listing_url, started_at, finished_at, first_page, last_page, checkpoints, total
		from runs
		order by started_at desc, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var started int64
		var finished, first, last sql.NullInt64
		err := rows.Scan(&r.ID, &r.ListingURL, &started, &finished, &first, &last, &r.Checkpoints, &r.Total)
		if err != nil {
			return nil, err
		}
		r.StartedAt = time.Unix(started, 0)
		if finished.Valid {
			r.FinishedAt = time.Unix(finished.Int64, 0)
		}
		r.FirstPage = int(first.Int64)
		r.LastPage = int(last.Int64)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Records returns the stored records of a run in order.
func Records(ctx context.Context, db *sql.DB, runID string) ([]record.Record, error) {
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.column
	}
	rows, err := db.QueryContext(
		ctx,
		fmt.Sprintf("select %s from records where run_id = ? order by position", strings.Join(names, ", ")),
		runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []record.Record
	for rows.Next() {
		values := make([]string, len(columns))
		dest := make([]any, len(columns))
		for i := range values {
			dest[i] = &values[i]
		}
		err := rows.Scan(dest...)
		if err != nil {
			return nil, err
		}
		rec := record.Record{}
		for i, c := range columns {
			rec[c.field] = values[i]
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
