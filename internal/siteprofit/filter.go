package siteprofit

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const dateLayout = "2006-01-02"

// earliestReportDate is the lowest accepted bound. Earlier dates would collide
// with the zero time that marks an absent bound.
var earliestReportDate = time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)

var filterValidator = validator.New()

type filterInput struct {
	From string `validate:"omitempty,datetime=2006-01-02"`
	To   string `validate:"omitempty,datetime=2006-01-02"`
}

// ParseFilter builds a Filter from raw query values. Empty values are treated as
// absent. Any siteId is accepted; one that matches no site yields an empty report.
// Malformed dates, dates before 1900 and inverted ranges yield ErrInvalidFilter.
func ParseFilter(siteID, from, to string) (Filter, error) {
	input := filterInput{
		From: strings.TrimSpace(from),
		To:   strings.TrimSpace(to),
	}
	if err := filterValidator.Struct(input); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return Filter{}, fmt.Errorf("%w: %s must be %s", ErrInvalidFilter, queryName(fieldErrs[0].Field()), describeTag(fieldErrs[0]))
		}
		return Filter{}, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
	}

	filter := Filter{SiteID: strings.TrimSpace(siteID)}
	var err error
	if input.From != "" {
		if filter.From, err = time.Parse(dateLayout, input.From); err != nil {
			return Filter{}, fmt.Errorf("%w: from: %v", ErrInvalidFilter, err)
		}
		if filter.From.Before(earliestReportDate) {
			return Filter{}, fmt.Errorf("%w: from must not be before %s", ErrInvalidFilter, earliestReportDate.Format(dateLayout))
		}
	}
	if input.To != "" {
		if filter.To, err = time.Parse(dateLayout, input.To); err != nil {
			return Filter{}, fmt.Errorf("%w: to: %v", ErrInvalidFilter, err)
		}
		if filter.To.Before(earliestReportDate) {
			return Filter{}, fmt.Errorf("%w: to must not be before %s", ErrInvalidFilter, earliestReportDate.Format(dateLayout))
		}
	}
	if filter.HasFrom() && filter.HasTo() && filter.From.After(filter.To) {
		return Filter{}, fmt.Errorf("%w: from must not be after to", ErrInvalidFilter)
	}
	return filter, nil
}

func queryName(field string) string {
	switch field {
	case "From":
		return "from"
	case "To":
		return "to"
	default:
		return strings.ToLower(field)
	}
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "datetime":
		return "a date in YYYY-MM-DD format"
	default:
		return "valid"
	}
}
