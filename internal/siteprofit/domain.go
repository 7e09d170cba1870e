package siteprofit

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sitebooks/sitebooks/internal/platform/httpx"
)

// Nature is the sign convention of a site transaction.
type Nature string

const (
	// NatureDebit records a cost posted against a site.
	NatureDebit Nature = "DEBIT"
	// NatureCredit records income received for a site.
	NatureCredit Nature = "CREDIT"
)

// DefaultMissingDepartment labels sites without a department.
const DefaultMissingDepartment = "N/A"

// ErrInvalidFilter is returned when report filters cannot be parsed. It wraps
// httpx.ErrValidation so the transport answers 400 with the detail message.
var ErrInvalidFilter = fmt.Errorf("%w", httpx.ErrValidation)

// Site is a construction project location as listed by the site directory.
type Site struct {
	ID         string
	Name       string
	Department string
	Status     string
}

// NatureTotal is the summed amount of one site's transactions of a given nature.
type NatureTotal struct {
	SiteID string
	Nature Nature
	Amount decimal.Decimal
}

// MaterialEntry is a material-supplier ledger row. Numeric fields carry the raw
// column text so that missing or malformed values can be told apart from zero.
type MaterialEntry struct {
	SiteID   string
	Qty      string
	Rate     string
	TotalAmt string
}

// LabourTotal is the summed labour payments of one site.
type LabourTotal struct {
	SiteID string
	Amount decimal.Decimal
}

// Filter narrows the report. Zero values leave the dimension unrestricted.
type Filter struct {
	SiteID string
	From   time.Time
	To     time.Time
}

// HasFrom reports whether a lower date bound is set.
func (f Filter) HasFrom() bool { return !f.From.IsZero() }

// HasTo reports whether an upper date bound is set.
func (f Filter) HasTo() bool { return !f.To.IsZero() }

// Summary is the profit and loss line for a single site.
type Summary struct {
	SiteID               string          `json:"siteId"`
	Department           string          `json:"department"`
	SiteName             string          `json:"siteName"`
	Expenses             decimal.Decimal `json:"expenses"`
	AmountReceived       decimal.Decimal `json:"amountReceived"`
	Profit               decimal.Decimal `json:"profit"`
	Status               string          `json:"status"`
	MaterialPurchaseCost decimal.Decimal `json:"materialPurchaseCost"`
	LabourContractorCost decimal.Decimal `json:"labourContractorCost"`
}

// Snapshot is a persisted summary captured for a reporting window.
type Snapshot struct {
	ID         string    `json:"id"`
	PeriodFrom time.Time `json:"periodFrom"`
	PeriodTo   time.Time `json:"periodTo"`
	CapturedAt time.Time `json:"capturedAt"`
	Summary
}
