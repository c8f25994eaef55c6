package directory

import (
	"time"
	"txschools-scraper/internal/browser"
	"txschools-scraper/internal/record"
)

// FieldLocator declares where one field of a record lives on a detail page.
type FieldLocator struct {
	Field   record.Field
	Locator browser.Locator
	// Attribute, if set, is read instead of the element text.
	Attribute string
	// StripPrefix is a literal removed from the value before trimming.
	StripPrefix string
}

// Profile holds everything specific to one directory site.
type Profile struct {
	Fields []FieldLocator
	// AddressBlock locates the combined multi-line address, StripAddressPrefix is removed from
	// its text before it is split into lines.
	AddressBlock       browser.Locator
	StripAddressPrefix string
	// Body must be present before any field is looked up.
	Body browser.Locator

	FilterInput  browser.Locator
	FilterOption browser.Locator
	Filters      []string

	Container   browser.Locator
	Rows        browser.Locator
	RowLink     browser.Locator
	CurrentPage browser.Locator
	PageButtons browser.Locator
}

// Timeouts bound every wait for an element.
type Timeouts struct {
	Field     time.Duration
	Body      time.Duration
	Container time.Duration
	Filter    time.Duration
}

// Delays are the pauses taken between interactions, Min/Max pairs are jittered uniformly.
type Delays struct {
	FilterRetry  time.Duration
	ScrollSettle time.Duration
	ClickSettle  time.Duration
	FilterMin    time.Duration
	FilterMax    time.Duration
	PageMin      time.Duration
	PageMax      time.Duration
	LinkMin      time.Duration
	LinkMax      time.Duration
}

const (
	DefaultMaxPages      = 30
	DefaultFilterRetries = 3
)

func DefaultTimeouts() Timeouts {
	return Timeouts{
		Field:     5 * time.Second,
		Body:      15 * time.Second,
		Container: 20 * time.Second,
		Filter:    10 * time.Second,
	}
}

func DefaultDelays() Delays {
	return Delays{
		FilterRetry:  2 * time.Second,
		ScrollSettle: 2 * time.Second,
		ClickSettle:  3 * time.Second,
		FilterMin:    1 * time.Second,
		FilterMax:    2 * time.Second,
		PageMin:      2 * time.Second,
		PageMax:      3 * time.Second,
		LinkMin:      1 * time.Second,
		LinkMax:      2 * time.Second,
	}
}

const (
	gridSm4 = "div[class*='MuiGrid-grid-sm-4'] > p"
	gridMd5 = "div[class*='MuiGrid-grid-md-5'] > p"
)

// TXSchoolsProfile is the layout of txschools.gov.
var TXSchoolsProfile = Profile{
	Fields: []FieldLocator{
		{Field: record.Name, Locator: browser.Locator{CSS: "h1"}},
		{
			Field:       record.Address1,
			Locator:     browser.Locator{CSS: gridMd5, Contains: "ADDRESS:"},
			StripPrefix: "ADDRESS:",
		},
		{
			Field:       record.Phone,
			Locator:     browser.Locator{CSS: gridSm4, Contains: "Phone:"},
			StripPrefix: "Phone:",
		},
		{
			Field:       record.ContactName,
			Locator:     browser.Locator{CSS: gridSm4, Contains: "Principal Name:"},
			StripPrefix: "Principal Name:",
		},
		{
			Field:     record.Website,
			Locator:   browser.Locator{CSS: "a[class*='MuiButton-contained']"},
			Attribute: "href",
		},
		{
			Field:   record.ParentOrg,
			Locator: browser.Locator{CSS: "span", Contains: "District:", Child: "b > a"},
		},
		{
			Field:   record.Category,
			Locator: browser.Locator{CSS: "span", Contains: "Grades Served:", Child: "b"},
		},
	},
	AddressBlock:       browser.Locator{CSS: gridSm4, Contains: "Address:"},
	StripAddressPrefix: "Address:",
	Body:               browser.Locator{CSS: "body"},

	FilterInput:  browser.Locator{CSS: "input[placeholder='Select a grade level']"},
	FilterOption: browser.Locator{CSS: "li"},
	Filters:      []string{"Early Education", "Prekindergarten", "Kindergarten"},

	Container:   browser.Locator{CSS: "table"},
	Rows:        browser.Locator{CSS: "table tbody tr"},
	RowLink:     browser.Locator{CSS: "a"},
	CurrentPage: browser.Locator{CSS: "button[aria-current='true']"},
	PageButtons: browser.Locator{CSS: "nav[aria-label='pagination navigation'] button"},
}
