package output

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"txschools-scraper/internal/record"
)

// CSVSink writes checkpoints into ProgressDir and the final file into OutputDir.
type CSVSink struct {
	OutputDir   string
	ProgressDir string
}

func (s CSVSink) Checkpoint(ctx context.Context, batchIndex int, records []record.Record) error {
	return writeFile(filepath.Join(s.ProgressDir, CheckpointName(batchIndex)), records)
}

func (s CSVSink) Finalize(ctx context.Context, prov Provenance, records []record.Record) (string, error) {
	path := filepath.Join(s.OutputDir, FinalName(prov))
	err := writeFile(path, records)
	if err != nil {
		return "", err
	}
	return path, nil
}

// writeFile replaces path with the records, the file is renamed into place so a reader never
// sees a partial checkpoint.
func writeFile(path string, records []record.Record) error {
	err := os.MkdirAll(filepath.Dir(path), 0777)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	err = WriteCSV(tmp, records)
	if err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	err = tmp.Close()
	if err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// WriteCSV writes the header followed by one row per record.
func WriteCSV(w io.Writer, records []record.Record) error {
	writer := csv.NewWriter(w)
	err := writer.Write(record.Header())
	if err != nil {
		return err
	}
	for _, rec := range records {
		err = writer.Write(rec.Row())
		if err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// ReadCSV reads a file written by WriteCSV, columns are matched by header name.
func ReadCSV(r io.Reader) ([]record.Record, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("read csv: missing header")
	}
	if err != nil {
		return nil, err
	}

	var records []record.Record
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		records = append(records, record.FromRow(header, row))
	}
	return records, nil
}

// ReadCSVFile reads the csv file at path.
func ReadCSVFile(path string) ([]record.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadCSV(f)
}
