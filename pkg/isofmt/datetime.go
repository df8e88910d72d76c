// Package isofmt implements the lexical checks of ISO 20022 data types.
package isofmt

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	ErrBlank          = errors.New("value is blank")
	ErrSpaceSeparator = errors.New("date and time must be separated by 'T'")
	ErrNoLayout       = errors.New("value matches no accepted ISO 8601 layout")
)

// Local layouts tried in order once any zone suffix has been removed.
// time.Parse accepts fractional seconds after the seconds field, so the
// first layout also covers ".SSS" style values.
var dateTimeLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.000",
}

const dateLayout = "2006-01-02"

var zoneSuffix = regexp.MustCompile(`(Z|[+-]\d{2}:?\d{2})$`)

// ParseDateTime parses an ISODateTime value such as "2023-12-20T10:30:00Z",
// "2023-12-20T10:30:00.123+02:00" or "2023-12-20T10:30:00".
//
// The zone suffix is split off before the local part is matched. Values
// without a suffix are interpreted as UTC.
func ParseDateTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, ErrBlank
	}
	if strings.Contains(value, " ") {
		return time.Time{}, ErrSpaceSeparator
	}

	local, loc, err := splitZone(value)
	if err != nil {
		return time.Time{}, err
	}

	for _, layout := range dateTimeLayouts {
		if t, err := time.ParseInLocation(layout, local, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrNoLayout, value)
}

// ParseDate parses an ISODate value such as "2024-01-15".
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, ErrBlank
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrNoLayout, value)
	}
	return t, nil
}

// ParseDateOrDateTime accepts either an ISODate or an ISODateTime.
func ParseDateOrDateTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if !strings.Contains(value, "T") && !strings.Contains(value, " ") {
		if t, err := ParseDate(value); err == nil || errors.Is(err, ErrBlank) {
			return t, err
		}
	}
	return ParseDateTime(value)
}

func splitZone(value string) (string, *time.Location, error) {
	m := zoneSuffix.FindString(value)
	if m == "" {
		return value, time.UTC, nil
	}
	local := strings.TrimSuffix(value, m)
	if m == "Z" {
		return local, time.UTC, nil
	}

	hours, err := strconv.Atoi(m[1:3])
	if err != nil {
		return "", nil, fmt.Errorf("%w: %q", ErrNoLayout, value)
	}
	minutes, err := strconv.Atoi(m[len(m)-2:])
	if err != nil || hours > 23 || minutes > 59 {
		return "", nil, fmt.Errorf("%w: %q", ErrNoLayout, value)
	}
	offset := hours*3600 + minutes*60
	if m[0] == '-' {
		offset = -offset
	}
	return local, time.FixedZone(m, offset), nil
}
