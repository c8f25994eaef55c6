package output

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"txschools-scraper/internal/record"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func sampleRecords() []record.Record {
	a := record.New(1)
	a[record.Name] = "Alpha Elementary"
	a[record.Address1] = "100 Main St, Suite \"B\""
	a[record.QualityScore] = "90"
	a[record.QualityIssues] = "Invalid phone number format"

	b := record.New(2)
	b[record.Name] = "Beta Middle"
	return []record.Record{a, b}
}

func TestNames(t *testing.T) {
	require.Equal(t, "progress_batch_3.csv", CheckpointName(3))
	require.Equal(t, "schools_data_p1-30_20240501_103000.csv", FinalName(Provenance{
		FirstPage: 1,
		LastPage:  30,
		At:        time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC),
	}))
}

func TestWriteReadCSV(t *testing.T) {
	records := sampleRecords()
	record.NumberRecords(records)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, records))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	require.Equal(t, strings.Join(record.Header(), ","), lines[0])

	read, err := ReadCSV(&buf)
	require.NoError(t, err)
	if diff := cmp.Diff(records, read); diff != "" {
		t.Fatalf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestReadCSVMissingHeader(t *testing.T) {
	_, err := ReadCSV(strings.NewReader(""))
	require.Error(t, err)
}

func TestCSVSink(t *testing.T) {
	dir := t.TempDir()
	sink := CSVSink{
		OutputDir:   filepath.Join(dir, "output"),
		ProgressDir: filepath.Join(dir, "progress"),
	}
	ctx := context.Background()
	records := sampleRecords()

	require.NoError(t, sink.Checkpoint(ctx, 1, records[:1]))
	require.NoError(t, sink.Checkpoint(ctx, 2, records))

	first, err := ReadCSVFile(filepath.Join(dir, "progress", "progress_batch_1.csv"))
	require.NoError(t, err)
	require.Len(t, first, 1)
	second, err := ReadCSVFile(filepath.Join(dir, "progress", "progress_batch_2.csv"))
	require.NoError(t, err)
	require.Len(t, second, 2)

	record.NumberRecords(records)
	path, err := sink.Finalize(ctx, Provenance{FirstPage: 2, LastPage: 5, At: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)}, records)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "output", "schools_data_p2-5_20240102_030405.csv"), path)

	final, err := ReadCSVFile(path)
	require.NoError(t, err)
	require.Equal(t, "2", final[1][record.RecordNumber])

	// no temporary files are left behind
	entries, err := os.ReadDir(filepath.Join(dir, "output"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}
