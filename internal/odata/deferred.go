package odata

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// deferredKey marks a navigation property the provider did not expand.
const deferredKey = "__deferred"

// resultsKey wraps expanded collections (and, defensively, some singletons).
const resultsKey = "results"

func isJSONObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '{'
}

// ResolveSingle normalizes a single-valued navigation property to either
// the concrete record or nil (deferred or absent). Resolution is total
// over the provider's three payload shapes: expanded object,
// deferred-placeholder object, or bare value.
func ResolveSingle(raw json.RawMessage) (json.RawMessage, error) {
	if raw == nil || !isJSONObject(raw) {
		return raw, nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("odata: malformed navigation property: %w", err)
	}
	if _, ok := obj[deferredKey]; ok {
		return nil, nil
	}
	if res, ok := obj[resultsKey]; ok {
		return res, nil
	}
	return raw, nil
}

// ResolveCollection normalizes a collection-valued navigation property to
// an ordered slice of raw records. Deferred or absent resolves to empty:
// "not requested" must never read as "confirmed empty" elsewhere, and the
// distinction is the caller's to draw before resolving.
func ResolveCollection(raw json.RawMessage) ([]json.RawMessage, error) {
	if raw == nil {
		return []json.RawMessage{}, nil
	}
	if !isJSONObject(raw) {
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("odata: malformed navigation collection: %w", err)
		}
		return items, nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("odata: malformed navigation collection: %w", err)
	}
	if _, ok := obj[deferredKey]; ok {
		return []json.RawMessage{}, nil
	}
	res, ok := obj[resultsKey]
	if !ok {
		return nil, &MissingKeyError{Key: resultsKey}
	}
	var items []json.RawMessage
	if err := json.Unmarshal(res, &items); err != nil {
		return nil, fmt.Errorf("odata: %q is not an array: %w", resultsKey, err)
	}
	return items, nil
}
