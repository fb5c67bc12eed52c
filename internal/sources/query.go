package sources

import (
	"net/url"
	"strings"
	"time"
)

// DefaultLookbackDays is the search window ending today
const DefaultLookbackDays = 7

const queryDateLayout = "2006-01-02"

// Query is one per-name search against a source
type Query struct {
	Name          string
	DateFrom      time.Time
	DateTo        time.Time
	Jurisdictions []string // Only sent to national sources
}

// NewQuery builds a query whose window ends on the calendar day of now
func NewQuery(name string, now time.Time, lookbackDays int, jurisdictions []string) Query {
	if lookbackDays <= 0 {
		lookbackDays = DefaultLookbackDays
	}
	to := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	return Query{
		Name:          name,
		DateFrom:      to.AddDate(0, 0, -lookbackDays),
		DateTo:        to,
		Jurisdictions: jurisdictions,
	}
}

// Values encodes the query parameters understood by every source
func (q Query) Values() url.Values {
	v := url.Values{}
	v.Set("name", q.Name)
	v.Set("dateFrom", q.DateFrom.Format(queryDateLayout))
	v.Set("dateTo", q.DateTo.Format(queryDateLayout))
	if len(q.Jurisdictions) > 0 {
		v.Set("jurisdictionFilter", strings.Join(q.Jurisdictions, ","))
	}
	v.Set("format", "json")
	return v
}
