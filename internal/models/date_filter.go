package models

import (
	"errors"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

var ErrInvalidDate = errors.New("invalid date: expected YYYY-MM-DD")

// DateFilter restricts a query to one calendar date. The zero value matches everything.
type DateFilter struct {
	date string
}

// ParseDateFilter accepts "YYYY-MM-DD" or a full ISO-8601 timestamp, keeping only its date.
// An empty string yields the match-all filter.
func ParseDateFilter(s string) (DateFilter, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DateFilter{}, nil
	}
	if len(s) < len(dateLayout) {
		return DateFilter{}, ErrInvalidDate
	}
	d := s[:len(dateLayout)]
	if _, err := time.Parse(dateLayout, d); err != nil {
		return DateFilter{}, ErrInvalidDate
	}
	return DateFilter{date: d}, nil
}

func (f DateFilter) IsZero() bool {
	return f.date == ""
}

// Date returns the YYYY-MM-DD value, or "" for the match-all filter.
func (f DateFilter) Date() string {
	return f.date
}

func (f DateFilter) String() string {
	if f.date == "" {
		return "ALL"
	}
	return f.date
}
