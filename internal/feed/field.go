package feed

import (
	"bytes"
	"encoding/json"
	"math"
)

// StateField holds one element of a state vector: a number, a string, or
// nothing. Nulls and any other JSON kind decode as absent.
type StateField struct {
	value any
}

// UnmarshalJSON never fails; unexpected kinds leave the field absent
func (f *StateField) UnmarshalJSON(data []byte) error {
	f.value = nil

	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		f.value = num
		return nil
	}

	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		f.value = str
		return nil
	}

	return nil
}

// Float64 returns the numeric value. Strings and booleans are not numbers here.
func (f StateField) Float64() (float64, bool) {
	v, ok := f.value.(float64)
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// String returns the string value
func (f StateField) String() (string, bool) {
	v, ok := f.value.(string)
	return v, ok
}
