package odata

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// noneDateTime is the provider's "no value" idiom: a timestamp in year 9999.
const noneDateTime = "/Date(253402214400000)/"

// Wire dates are whole-second epoch values with three literal zero digits
// denoting the milliseconds.
var reDate = regexp.MustCompile(`^/Date\((\d+)000\)/$`)

func decodeWire(s string) (time.Time, bool, error) {
	if s == noneDateTime {
		return time.Time{}, false, nil
	}
	m := reDate.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false, &FormatError{Value: s, Pattern: reDate.String()}
	}
	secs, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return time.Time{}, false, &FormatError{Value: s, Pattern: reDate.String()}
	}
	return time.Unix(secs, 0).UTC(), true, nil
}

func encodeWire(t time.Time, valid bool) string {
	if !valid {
		return noneDateTime
	}
	return fmt.Sprintf("/Date(%d000)/", t.Unix())
}

// DateTime is an optional timestamp. The zero value decodes from and
// encodes to the provider's "no date" sentinel. A valid DateTime always
// carries an absolute instant; time.Time has no naive form, so the
// wrong-offset submissions the original wire format invites cannot be
// constructed here.
type DateTime struct {
	t     time.Time
	valid bool
}

// NewDateTime wraps a concrete timestamp.
func NewDateTime(t time.Time) DateTime {
	return DateTime{t: t, valid: true}
}

// Valid reports whether the value holds a timestamp rather than the
// provider's "no date" sentinel.
func (d DateTime) Valid() bool { return d.valid }

// Time returns the wrapped instant. Zero when Valid is false.
func (d DateTime) Time() time.Time { return d.t }

// Equal compares by instant; two invalid values are equal.
func (d DateTime) Equal(other DateTime) bool {
	if d.valid != other.valid {
		return false
	}
	return !d.valid || d.t.Equal(other.t)
}

func (d DateTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(encodeWire(d.t, d.valid))
}

func (d *DateTime) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return &FormatError{Value: string(b), Pattern: reDate.String()}
	}
	t, ok, err := decodeWire(s)
	if err != nil {
		return err
	}
	d.t, d.valid = t, ok
	return nil
}

// Date is an optional calendar date. Decoding truncates the wire instant
// to its UTC calendar day; encoding treats the date as midnight UTC.
type Date struct {
	t     time.Time
	valid bool
}

// NewDate builds a concrete calendar date.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC), valid: true}
}

// DateOf truncates t to its calendar day in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, m, d)
}

// Valid reports whether the value holds a date rather than the provider's
// "no date" sentinel.
func (d Date) Valid() bool { return d.valid }

// Time returns midnight UTC of the wrapped date. Zero when Valid is false.
func (d Date) Time() time.Time { return d.t }

// Equal compares by calendar day; two invalid values are equal.
func (d Date) Equal(other Date) bool {
	if d.valid != other.valid {
		return false
	}
	return !d.valid || d.t.Equal(other.t)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(encodeWire(d.t, d.valid))
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return &FormatError{Value: string(b), Pattern: reDate.String()}
	}
	t, ok, err := decodeWire(s)
	if err != nil {
		return err
	}
	if !ok {
		d.t, d.valid = time.Time{}, false
		return nil
	}
	y, m, day := t.Date()
	d.t, d.valid = time.Date(y, m, day, 0, 0, 0, 0, time.UTC), true
	return nil
}
