// Package validate scores how complete and well-formed a record is.
package validate

import (
	"fmt"
	"strings"
	"txschools-scraper/internal/record"
	"unicode"
	"unicode/utf8"
)

// Report is the outcome of validating one record.
type Report struct {
	IsValid bool
	// Score is the percentage of required fields that are present and well-formed, truncated.
	Score  int
	Issues []string
}

var validStates = map[string]struct{}{
	"AL": {}, "AK": {}, "AZ": {}, "AR": {}, "CA": {}, "CO": {}, "CT": {}, "DE": {}, "FL": {}, "GA": {},
	"HI": {}, "ID": {}, "IL": {}, "IN": {}, "IA": {}, "KS": {}, "KY": {}, "LA": {}, "ME": {}, "MD": {},
	"MA": {}, "MI": {}, "MN": {}, "MS": {}, "MO": {}, "MT": {}, "NE": {}, "NV": {}, "NH": {}, "NJ": {},
	"NM": {}, "NY": {}, "NC": {}, "ND": {}, "OH": {}, "OK": {}, "OR": {}, "PA": {}, "RI": {}, "SC": {},
	"SD": {}, "TN": {}, "TX": {}, "UT": {}, "VT": {}, "VA": {}, "WA": {}, "WV": {}, "WI": {}, "WY": {},
	"DC": {},
}

type rule struct {
	check func(value string) bool
	issue string
}

// rules holds the format checks, required fields without an entry only need to be present.
var rules = map[record.Field]rule{
	record.Zip:         {check: isZip, issue: "Invalid ZIP format - must be 5 digits"},
	record.State:       {check: isState, issue: "Invalid state abbreviation"},
	record.Phone:       {check: isPhone, issue: "Invalid phone number format"},
	record.Website:     {check: isWebsite, issue: "Invalid website URL format"},
	record.Name:        {check: isName, issue: "Invalid school name format"},
	record.City:        {check: isCity, issue: "City name should only contain letters"},
	record.ContactName: {check: isFullName, issue: "Principal name should include first and last name"},
}

// Validate checks every required field in order. It has no side effects, calling it twice on
// the same record yields the same report.
func Validate(rec record.Record) Report {
	var issues []string
	filled := 0

	for _, field := range record.Required {
		raw, present := rec.Get(field)
		if !present {
			issues = append(issues, fmt.Sprintf("%s not available", field))
			continue
		}

		r, ok := rules[field]
		if ok && !r.check(strings.TrimSpace(raw)) {
			issues = append(issues, r.issue)
			continue
		}
		filled++
	}

	score := filled * 100 / len(record.Required)
	return Report{
		IsValid: score == 100,
		Score:   score,
		Issues:  issues,
	}
}

// Apply validates rec and copies the score and issues into its quality fields.
func Apply(rec record.Record) Report {
	report := Validate(rec)
	rec[record.QualityScore] = fmt.Sprint(report.Score)
	rec[record.QualityIssues] = strings.Join(report.Issues, ", ")
	return report
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if !unicode.IsDigit(c) {
			return false
		}
	}
	return true
}

func isZip(value string) bool {
	return allDigits(value) && utf8.RuneCountInString(value) == 5
}

func isState(value string) bool {
	_, ok := validStates[strings.ToUpper(value)]
	return ok
}

func isPhone(value string) bool {
	digits := 0
	for _, c := range value {
		if unicode.IsDigit(c) {
			digits++
		}
	}
	return digits == 10
}

func isWebsite(value string) bool {
	return strings.HasPrefix(value, "http://") || strings.HasPrefix(value, "https://")
}

func isName(value string) bool {
	if utf8.RuneCountInString(value) < 3 {
		return false
	}
	return strings.IndexFunc(value, unicode.IsLetter) >= 0
}

func isCity(value string) bool {
	letters := strings.ReplaceAll(value, " ", "")
	if letters == "" {
		return false
	}
	for _, c := range letters {
		if !unicode.IsLetter(c) {
			return false
		}
	}
	return true
}

func isFullName(value string) bool {
	return len(strings.Fields(value)) >= 2
}
