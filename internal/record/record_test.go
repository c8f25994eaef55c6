package record

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestNewRecordHasSentinels(t *testing.T) {
	rec := New(4)
	for _, f := range Descriptive {
		require.Equal(t, Sentinel, rec[f], f)
		_, ok := rec.Get(f)
		require.False(t, ok)
	}
	require.Equal(t, "4", rec[PageNumber])
	require.Equal(t, "", rec[RecordNumber])
	require.Len(t, rec.Row(), len(Columns))
}

func TestRowRoundTrip(t *testing.T) {
	rec := New(2)
	rec[Name] = "Austin Elementary"
	rec[QualityScore] = "90"

	back := FromRow(Header(), rec.Row())
	if diff := cmp.Diff(rec, back); diff != "" {
		t.Fatalf("record mismatch (-want +got):\n%s", diff)
	}
}

func TestFromRowFillsMissing(t *testing.T) {
	rec := FromRow([]string{"Name", "Bogus"}, []string{"Some School", "x"})
	require.Equal(t, "Some School", rec[Name])
	require.Equal(t, Sentinel, rec[City])
	_, ok := rec["Bogus"]
	require.False(t, ok)
}

func TestNumberRecords(t *testing.T) {
	records := []Record{New(1), New(1), New(3)}
	NumberRecords(records)
	require.Equal(t, "1", records[0][RecordNumber])
	require.Equal(t, "3", records[2][RecordNumber])
}

func TestSummarize(t *testing.T) {
	require.Equal(t, Summary{}, Summarize(nil))

	a := New(1)
	a[QualityScore] = "100"
	b := New(1)
	b[QualityScore] = "50"
	b[QualityIssues] = "Zip not available"

	s := Summarize([]Record{a, b})
	require.Equal(t, 2, s.Total)
	require.Equal(t, 1, s.WithIssues)
	require.InDelta(t, 75.0, s.AverageScore, 0.001)
	require.InDelta(t, 50.0, s.QualityRate, 0.001)
}
