// Package jsonutil decodes loosely typed upstream JSON, where the same
// field may arrive as a number, a numeric string or null.
package jsonutil

import (
	"encoding/json"
	"strconv"
	"strings"
)

func isNull(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s == "" || s == "null"
}

// FlexibleString converts a JSON string, number or boolean to a string.
// It returns "" for null or missing values.
func FlexibleString(raw json.RawMessage) string {
	if isNull(raw) {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}

	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return strconv.FormatBool(b)
	}

	return ""
}

// FlexibleFloat converts a JSON number or numeric string to a float64.
// The boolean is false for null, empty strings and anything non-numeric.
func FlexibleFloat(raw json.RawMessage) (float64, bool) {
	if isNull(raw) {
		return 0, false
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
		if s == "" {
			return 0, false
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

// FloatPtr is FlexibleFloat returning nil when the value is absent.
func FloatPtr(raw json.RawMessage) *float64 {
	f, ok := FlexibleFloat(raw)
	if !ok {
		return nil
	}
	return &f
}

// StringPtr is FlexibleString returning nil for null or empty values.
func StringPtr(raw json.RawMessage) *string {
	s := FlexibleString(raw)
	if s == "" {
		return nil
	}
	return &s
}

// FlexibleBool accepts JSON booleans and the strings "true", "yes" and "1"
// in any case. Everything else is false.
func FlexibleBool(raw json.RawMessage) bool {
	if isNull(raw) {
		return false
	}

	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b
	}

	switch strings.ToLower(strings.TrimSpace(FlexibleString(raw))) {
	case "true", "yes", "1":
		return true
	}
	return false
}

// Object decodes raw as a JSON object. The boolean is false when raw is
// anything else.
func Object(raw json.RawMessage) (map[string]json.RawMessage, bool) {
	if isNull(raw) {
		return nil, false
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, false
	}
	return m, true
}

// Array decodes raw as a JSON array. The boolean is false when raw is
// anything else.
func Array(raw json.RawMessage) ([]json.RawMessage, bool) {
	if isNull(raw) {
		return nil, false
	}
	var a []json.RawMessage
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, false
	}
	return a, true
}
