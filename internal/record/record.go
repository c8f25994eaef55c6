// Package record defines the directory entry collected by the crawler, its fixed column
// layout and the links that point at detail pages.
package record

import (
	"strconv"
)

// Sentinel is the value of a descriptive field that could not be resolved.
const Sentinel = "Not Found"

// Field is the name of a column in a Record.
type Field string

const (
	RecordNumber  Field = "RecordNumber"
	PageNumber    Field = "PageNumber"
	Name          Field = "Name"
	Address1      Field = "Address1"
	Address2      Field = "Address2"
	City          Field = "City"
	State         Field = "State"
	Zip           Field = "Zip"
	Phone         Field = "Phone"
	ContactName   Field = "ContactName"
	Website       Field = "Website"
	ParentOrg     Field = "ParentOrg"
	Category      Field = "Category"
	QualityScore  Field = "QualityScore"
	QualityIssues Field = "QualityIssues"
)

// Columns is the fixed column order, it is also the CSV header.
var Columns = []Field{
	RecordNumber,
	PageNumber,
	Name,
	Address1,
	Address2,
	City,
	State,
	Zip,
	Phone,
	ContactName,
	Website,
	ParentOrg,
	Category,
	QualityScore,
	QualityIssues,
}

// Descriptive are the fields read off a detail page, they always hold a value or Sentinel.
var Descriptive = []Field{
	Name,
	Address1,
	Address2,
	City,
	State,
	Zip,
	Phone,
	ContactName,
	Website,
	ParentOrg,
	Category,
}

// Required are the fields that count towards the quality score, in the order they are checked.
var Required = []Field{
	Name,
	Address1,
	City,
	State,
	Zip,
	Phone,
	Website,
	ParentOrg,
	Category,
	ContactName,
}

// Record is one directory entry keyed by field.
type Record map[Field]string

// New creates a record where every descriptive field is Sentinel.
func New(pageNumber int) Record {
	rec := Record{
		RecordNumber:  "",
		PageNumber:    strconv.Itoa(pageNumber),
		QualityScore:  "0",
		QualityIssues: "",
	}
	for _, f := range Descriptive {
		rec[f] = Sentinel
	}
	return rec
}

// Get returns the value of a field and whether it holds a real (non-sentinel, non-empty) value.
func (r Record) Get(f Field) (string, bool) {
	v, ok := r[f]
	if !ok || v == "" || v == Sentinel {
		return v, false
	}
	return v, true
}

// Score returns the parsed QualityScore, 0 if it isn't a number.
func (r Record) Score() int {
	n, err := strconv.Atoi(r[QualityScore])
	if err != nil {
		return 0
	}
	return n
}

// Row returns the values of the record in column order.
func (r Record) Row() []string {
	row := make([]string, len(Columns))
	for i, c := range Columns {
		row[i] = r[c]
	}
	return row
}

// Clone returns a copy of the record that shares no memory with r.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Header returns the column names as strings.
func Header() []string {
	out := make([]string, len(Columns))
	for i, c := range Columns {
		out[i] = string(c)
	}
	return out
}

// FromRow is the inverse of Row given a header, unknown columns are ignored and missing
// descriptive fields are filled with Sentinel.
func FromRow(header, row []string) Record {
	rec := Record{}
	known := map[Field]bool{}
	for _, c := range Columns {
		known[c] = true
	}
	for i, h := range header {
		if i >= len(row) || !known[Field(h)] {
			continue
		}
		rec[Field(h)] = row[i]
	}
	for _, f := range Descriptive {
		if _, ok := rec[f]; !ok {
			rec[f] = Sentinel
		}
	}
	return rec
}

// NumberRecords assigns sequential 1-based record numbers in slice order.
func NumberRecords(records []Record) {
	for i, r := range records {
		r[RecordNumber] = strconv.Itoa(i + 1)
	}
}

// Link is a detail page URI and the listing page it was discovered on.
type Link struct {
	URI  string
	Page int
}
