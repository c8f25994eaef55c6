package fuzzing

import (
	"context"
	"fmt"
	"math/rand"
	"slices"
	"strings"
	"txschools-scraper/internal/components/telemetry"
	"txschools-scraper/internal/record"
	"txschools-scraper/internal/validate"
	testutil "txschools-scraper/test/util"
)

// steps:
// - AddValid: a record whose required fields are all well-formed
// - AddBroken: a valid record with one required field either missing or malformed
// - Blank: a random required field of a random record is emptied or set to the sentinel
// - Pad: a random required field of a random record is replaced by whitespace
// - Revalidate: a random record is validated again
//
// properties of the system:
// - a valid record scores 100 and reports no issue
// - a record with exactly one broken field scores 90 and reports exactly one issue
// - a blank field is reported as "<field> not available", a whitespace one never is
// - validating twice yields the same report (no side effects besides the quality fields)
// - the summary counts exactly the records that reported an issue

type validateTarget struct {
	tel  telemetry.API
	rndm *rand.Rand

	records []record.Record
	broken  []bool
}

type ValidateProvider struct{}

func (ValidateProvider) CreateTarget(tel telemetry.API, rndm *rand.Rand) (Target, error) {
	return &validateTarget{tel: tel, rndm: rndm}, nil
}

func (t *validateTarget) add(rec record.Record, broken bool) {
	t.records = append(t.records, rec)
	t.broken = append(t.broken, broken)
}

func (t *validateTarget) StepAddValid(ctx context.Context, res *Results) error {
	rec := testutil.RandomValidRecord(t.rndm)
	report := validate.Apply(rec)
	t.add(rec, false)

	if !report.IsValid || report.Score != 100 || len(report.Issues) != 0 {
		return fmt.Errorf("valid record %v scored %d with issues %v", rec.Row(), report.Score, report.Issues)
	}
	return nil
}

func (t *validateTarget) StepAddBroken(ctx context.Context, res *Results) error {
	rec := testutil.RandomValidRecord(t.rndm)
	field := testutil.BreakRandomField(t.rndm, rec)
	report := validate.Apply(rec)
	t.add(rec, true)

	expected := (len(record.Required) - 1) * 100 / len(record.Required)
	if report.IsValid || report.Score != expected || len(report.Issues) != 1 {
		return fmt.Errorf(
			"record with broken %s (%q) scored %d with issues %v",
			field, rec[field], report.Score, report.Issues,
		)
	}
	return nil
}

func (t *validateTarget) StepBlank(ctx context.Context, res *Results) error {
	if len(t.records) == 0 {
		return nil
	}
	idx := t.rndm.Intn(len(t.records))
	field := record.Required[t.rndm.Intn(len(record.Required))]
	t.records[idx][field] = ""
	if t.rndm.Intn(2) == 0 {
		t.records[idx][field] = record.Sentinel
	}
	t.broken[idx] = true

	report := validate.Apply(t.records[idx])
	missing := fmt.Sprintf("%s not available", field)
	if !slices.Contains(report.Issues, missing) {
		return fmt.Errorf("blank %s not reported, issues: %v", field, report.Issues)
	}
	return nil
}

func (t *validateTarget) StepPad(ctx context.Context, res *Results) error {
	if len(t.records) == 0 {
		return nil
	}
	idx := t.rndm.Intn(len(t.records))
	field := record.Required[t.rndm.Intn(len(record.Required))]
	t.records[idx][field] = strings.Repeat(" ", 1+t.rndm.Intn(3))

	report := validate.Apply(t.records[idx])
	t.broken[idx] = len(report.Issues) > 0
	missing := fmt.Sprintf("%s not available", field)
	if slices.Contains(report.Issues, missing) {
		return fmt.Errorf("whitespace %s reported as missing", field)
	}
	return nil
}

func (t *validateTarget) StepRevalidate(ctx context.Context, res *Results) error {
	if len(t.records) == 0 {
		return nil
	}
	rec := t.records[t.rndm.Intn(len(t.records))]
	before := rec.Clone()

	first := validate.Validate(rec)
	second := validate.Apply(rec)
	if first.Score != second.Score || !slices.Equal(first.Issues, second.Issues) {
		return fmt.Errorf("validation is not stable: %v then %v", first, second)
	}
	if fmt.Sprint(second.Score) != before[record.QualityScore] {
		return fmt.Errorf("score changed from %s to %d without the record changing", before[record.QualityScore], second.Score)
	}
	for _, f := range record.Descriptive {
		if rec[f] != before[f] {
			return fmt.Errorf("validation modified %s", f)
		}
	}
	return nil
}

func (t *validateTarget) OnEnd(ctx context.Context, res *Results) {
	summary := record.Summarize(t.records)

	withIssues := 0
	for _, b := range t.broken {
		if b {
			withIssues++
		}
	}

	if summary.Total != len(t.records) {
		res.Fail(fmt.Errorf("summary total %d, expected %d", summary.Total, len(t.records)))
	}
	if summary.WithIssues != withIssues {
		res.Fail(fmt.Errorf("summary counted %d records with issues, expected %d", summary.WithIssues, withIssues))
	}
	t.tel.ReportDebug("validate path done", "records", summary.Total, "average", summary.AverageScore)
}
