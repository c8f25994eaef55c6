// extract.go reads a single detail page into a record.

package directory

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"txschools-scraper/internal/browser"
	"txschools-scraper/internal/components/assert"
	"txschools-scraper/internal/components/telemetry"
	"txschools-scraper/internal/record"
	"txschools-scraper/internal/validate"
)

const (
	report_extractor_extract = "extractor.extract"
	report_extractor_address = "extractor.address"
)

// Extractor reads detail pages laid out according to a Profile.
type Extractor struct {
	profile  Profile
	timeouts Timeouts
	tel      telemetry.API
}

func NewExtractor(profile Profile, timeouts Timeouts, tel telemetry.API) Extractor {
	assert.NotNil(tel, "telemetry")
	return Extractor{
		profile:  profile,
		timeouts: timeouts,
		tel:      telemetry.NewScopedAPI("directory", tel),
	}
}

// Extract reads the detail page currently loaded in page. A field that cannot be located keeps
// the sentinel value, the only failure is a page whose body never renders.
func (e Extractor) Extract(ctx context.Context, page browser.Page, pageNumber int) (record.Record, error) {
	_, err := page.WaitFor(ctx, e.profile.Body, e.timeouts.Body)
	if err != nil {
		e.tel.ReportWarning(report_extractor_extract, fmt.Errorf("wait for body: %w", err), page.URL())
		return nil, fmt.Errorf("wait for body: %w", err)
	}

	rec := record.New(pageNumber)
	for _, fl := range e.profile.Fields {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		value, err := e.readField(ctx, page, fl)
		if err != nil {
			e.tel.ReportDebug("field not found", string(fl.Field), fl.Locator.String(), err)
			continue
		}
		if value != "" {
			rec[fl.Field] = value
		}
	}

	e.decomposeAddress(ctx, page, rec)

	report := validate.Apply(rec)
	e.tel.ReportDebug("extracted", rec[record.Name], report.Score, rec[record.QualityIssues])

	return rec, nil
}

func (e Extractor) readField(ctx context.Context, page browser.Page, fl FieldLocator) (string, error) {
	el, err := page.WaitFor(ctx, fl.Locator, e.timeouts.Field)
	if err != nil {
		return "", err
	}

	var value string
	if fl.Attribute != "" {
		attr, ok, err := el.Attribute(fl.Attribute)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", browser.ErrNotFound
		}
		value = attr
		if fl.Attribute == "href" {
			value = absolute(page.URL(), value)
		}
	} else {
		value, err = el.Text()
		if err != nil {
			return "", err
		}
	}

	if fl.StripPrefix != "" {
		value = strings.ReplaceAll(value, fl.StripPrefix, "")
	}
	return strings.TrimSpace(value), nil
}

// decomposeAddress fills Address2, City, State and Zip from the combined address block:
//
//	Address:
//	100 Main St
//	Austin, TX 78701
func (e Extractor) decomposeAddress(ctx context.Context, page browser.Page, rec record.Record) {
	matches, err := page.FindAll(ctx, e.profile.AddressBlock)
	if err != nil || len(matches) == 0 {
		if err == nil {
			err = browser.ErrNotFound
		}
		e.tel.ReportDebug("address block not found", err)
		return
	}
	text, err := matches[0].Text()
	if err != nil {
		e.tel.ReportWarning(report_extractor_address, err)
		return
	}
	text = strings.TrimSpace(strings.ReplaceAll(text, e.profile.StripAddressPrefix, ""))

	lines := strings.Split(text, "\n")
	if len(lines) < 2 {
		return
	}
	if line := strings.TrimSpace(lines[0]); line != "" {
		rec[record.Address2] = line
	}

	cityStateZip := strings.Split(lines[len(lines)-1], ", ")
	if len(cityStateZip) < 2 {
		return
	}
	if city := strings.TrimSpace(cityStateZip[0]); city != "" {
		rec[record.City] = city
	}
	stateZip := strings.Fields(cityStateZip[1])
	if len(stateZip) == 2 {
		rec[record.State] = stateZip[0]
		rec[record.Zip] = stateZip[1]
	}
}

func absolute(base, href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	b, err := url.Parse(base)
	if err != nil || base == "" {
		return href
	}
	return b.ResolveReference(ref).String()
}
