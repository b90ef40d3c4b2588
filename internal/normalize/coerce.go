// Package normalize converts raw parsed statement cells into the canonical
// row shape. Coercion never fails hard: unparseable values degrade to nil so
// a single bad cell cannot abort ingestion.
package normalize

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	periodPattern = regexp.MustCompile(`^(19|20)\d{2}(0[1-9]|1[0-2])$`)
	datePattern   = regexp.MustCompile(`^(19|20)\d{2}(0[1-9]|1[0-2])(0[1-9]|[12]\d|3[01])$`)
	nonDigit      = regexp.MustCompile(`\D`)
	nonIntChar    = regexp.MustCompile(`[^\d-]`)
)

// ValueOrNull trims the input; empty strings become nil.
func ValueOrNull(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

// NumOrNull strips currency symbols and thousands separators, then parses a
// float. Failure yields nil, never an error.
func NumOrNull(v string) *float64 {
	v = strings.TrimSpace(v)
	v = strings.ReplaceAll(v, "$", "")
	v = strings.ReplaceAll(v, ",", "")
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil
	}
	return &f
}

// IntOrNull strips everything except digits and hyphens, then parses an
// integer. Failure yields nil, never an error.
func IntOrNull(v string) *int64 {
	v = nonIntChar.ReplaceAllString(strings.TrimSpace(v), "")
	if v == "" || v == "-" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}

// NormalizePeriod reduces a raw period cell to a 6-digit YYYYMM string:
//
//	6 digits, valid YYYYMM           -> accepted as-is
//	8 digits, valid YYYYMMDD         -> truncated to YYYYMM (day discarded)
//	>= 12 digits (range-like)        -> leading 6 digits, validated
//	anything else                    -> nil
//
// The same rules apply to every source format so grouping by year/month
// substring works identically downstream.
func NormalizePeriod(raw string) *string {
	digits := nonDigit.ReplaceAllString(raw, "")
	switch {
	case len(digits) == 6:
		if periodPattern.MatchString(digits) {
			return &digits
		}
	case len(digits) == 8:
		if datePattern.MatchString(digits) {
			p := digits[:6]
			return &p
		}
	case len(digits) >= 12:
		p := digits[:6]
		if periodPattern.MatchString(p) {
			return &p
		}
	}
	return nil
}
