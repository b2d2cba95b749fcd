package odata

import (
	"encoding/json"
	"fmt"
)

// UnwrapList strips the {"d": {"results": [...]}} wrapper every list
// response carries and returns the raw records. Both nesting keys are
// mandatory; their absence is a validation error, never an empty result.
func UnwrapList(raw []byte) ([]json.RawMessage, error) {
	_, inner, err := unwrapD(raw)
	if err != nil {
		return nil, err
	}
	res, ok := inner[resultsKey]
	if !ok {
		return nil, &MissingKeyError{Key: resultsKey}
	}
	var records []json.RawMessage
	if err := json.Unmarshal(res, &records); err != nil {
		return nil, fmt.Errorf("odata: %q is not an array: %w", resultsKey, err)
	}
	return records, nil
}

// UnwrapSingle strips the {"d": {...}} wrapper from a singleton response.
// Some singleton endpoints still wrap the record in "results"; when that
// key is present it is unwrapped once more.
func UnwrapSingle(raw []byte) (json.RawMessage, error) {
	d, inner, err := unwrapD(raw)
	if err != nil {
		return nil, err
	}
	if res, ok := inner[resultsKey]; ok {
		return res, nil
	}
	return d, nil
}

func unwrapD(raw []byte) (json.RawMessage, map[string]json.RawMessage, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil, nil, fmt.Errorf("odata: response is not a JSON object: %w", err)
	}
	d, ok := top["d"]
	if !ok {
		return nil, nil, &MissingKeyError{Key: "d"}
	}
	var inner map[string]json.RawMessage
	if err := json.Unmarshal(d, &inner); err != nil {
		return nil, nil, fmt.Errorf("odata: key \"d\" is not a JSON object: %w", err)
	}
	return d, inner, nil
}
