package portal

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/vlsemenov/samaraenergo/internal/odata"
)

// decoder reads typed fields out of one raw entity object. The first
// failure sticks and turns every later accessor into a no-op, so entity
// decode functions assign all fields and check the error once. Unknown
// wire fields are ignored.
type decoder struct {
	entity string
	fields map[string]json.RawMessage
	err    error
}

func newDecoder(entity string, raw json.RawMessage) *decoder {
	d := &decoder{entity: entity}
	if err := json.Unmarshal(raw, &d.fields); err != nil {
		d.err = fmt.Errorf("portal: entity %s is not a JSON object: %w", entity, err)
	}
	return d
}

func (d *decoder) require(name string) (json.RawMessage, bool) {
	if d.err != nil {
		return nil, false
	}
	raw, ok := d.fields[name]
	if !ok {
		d.err = &MissingFieldError{Entity: d.entity, Field: name}
		return nil, false
	}
	return raw, true
}

func (d *decoder) fail(name string, err error) {
	if d.err == nil {
		d.err = fmt.Errorf("portal: %s.%s: %w", d.entity, name, err)
	}
}

func (d *decoder) str(name string) string {
	raw, ok := d.require(name)
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		d.fail(name, err)
		return ""
	}
	return s
}

// flag decodes the provider's empty/non-empty string convention for a
// boolean. Only Prkrasch is known to use it; other booleans must not
// assume the same rule.
func (d *decoder) flag(name string) bool {
	return d.str(name) != ""
}

func (d *decoder) dec(name string) decimal.Decimal {
	raw, ok := d.require(name)
	if !ok {
		return decimal.Decimal{}
	}
	var v decimal.Decimal
	if err := json.Unmarshal(raw, &v); err != nil {
		d.fail(name, err)
		return decimal.Decimal{}
	}
	return v
}

func (d *decoder) integer(name string) int {
	raw, ok := d.require(name)
	if !ok {
		return 0
	}
	var v int
	if err := json.Unmarshal(raw, &v); err == nil {
		return v
	}
	// the provider sometimes quotes integer counts
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		d.fail(name, err)
		return 0
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		d.fail(name, err)
		return 0
	}
	return v
}

func (d *decoder) date(name string) odata.Date {
	raw, ok := d.require(name)
	if !ok {
		return odata.Date{}
	}
	var v odata.Date
	if err := json.Unmarshal(raw, &v); err != nil {
		d.fail(name, err)
		return odata.Date{}
	}
	return v
}

func (d *decoder) dateTime(name string) odata.DateTime {
	raw, ok := d.require(name)
	if !ok {
		return odata.DateTime{}
	}
	var v odata.DateTime
	if err := json.Unmarshal(raw, &v); err != nil {
		d.fail(name, err)
		return odata.DateTime{}
	}
	return v
}

// nested decodes an inline (always expanded) child entity.
func nested[T any](d *decoder, name string, decode func(json.RawMessage) (T, error)) T {
	var zero T
	raw, ok := d.require(name)
	if !ok {
		return zero
	}
	v, err := decode(raw)
	if err != nil {
		d.fail(name, err)
		return zero
	}
	return v
}

// deferred decodes a single-valued navigation property. Deferred or
// absent resolves to nil.
func deferred[T any](d *decoder, name string, decode func(json.RawMessage) (T, error)) *T {
	if d.err != nil {
		return nil
	}
	res, err := odata.ResolveSingle(d.fields[name])
	if err != nil {
		d.fail(name, err)
		return nil
	}
	if res == nil {
		return nil
	}
	v, err := decode(res)
	if err != nil {
		d.fail(name, err)
		return nil
	}
	return &v
}

// deferredList decodes a collection-valued navigation property. Deferred
// or absent resolves to an empty slice.
func deferredList[T any](d *decoder, name string, decode func(json.RawMessage) (T, error)) []T {
	if d.err != nil {
		return nil
	}
	items, err := odata.ResolveCollection(d.fields[name])
	if err != nil {
		d.fail(name, err)
		return nil
	}
	out := make([]T, 0, len(items))
	for _, item := range items {
		v, err := decode(item)
		if err != nil {
			d.fail(name, err)
			return nil
		}
		out = append(out, v)
	}
	return out
}
