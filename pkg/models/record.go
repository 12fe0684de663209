// Package models defines the canonical, vendor-independent records that
// cross the public boundary of connectors and integration modules.
//
// Connectors hand vendor-native payloads around as Record values. Integration
// modules transform those into the typed canonical structs in this package
// (Transaction, Balance, Payment, Invoice, ...) and back.
package models

import (
	"fmt"
	"strconv"
	"time"
)

// Record is a loosely typed key/value payload, used for vendor-native data
// and for plugin and broker messages.
type Record map[string]any

// Get returns the value for the first key present and not nil.
func (r Record) Get(keys ...string) any {
	for _, k := range keys {
		if v, ok := r[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

// String returns the first non-empty string representation among keys.
// Numbers are written in plain decimal notation, so JSON-decoded ids such
// as 5637144576 keep their digits.
func (r Record) String(keys ...string) string {
	for _, k := range keys {
		v, ok := r[k]
		if !ok || v == nil {
			continue
		}
		var s string
		switch t := v.(type) {
		case string:
			s = t
		case float64:
			s = strconv.FormatFloat(t, 'f', -1, 64)
		case float32:
			s = strconv.FormatFloat(float64(t), 'f', -1, 32)
		case fmt.Stringer:
			s = t.String()
		default:
			s = fmt.Sprint(t)
		}
		if s != "" {
			return s
		}
	}
	return ""
}

// Bool returns the value at key as a bool. Strings "true", "y", "yes" and "1" are true.
func (r Record) Bool(key string) bool {
	switch t := r[key].(type) {
	case bool:
		return t
	case string:
		switch t {
		case "true", "TRUE", "True", "y", "Y", "yes", "1":
			return true
		}
	case float64:
		return t != 0
	case int:
		return t != 0
	}
	return false
}

// Map returns a nested record at key or nil.
func (r Record) Map(key string) Record {
	switch t := r[key].(type) {
	case Record:
		return t
	case map[string]any:
		return Record(t)
	}
	return nil
}

// Clone returns a shallow copy of r.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// AsRecord converts the common map shapes produced by JSON decoders and YAML
// parsers into a Record.
func AsRecord(v any) (Record, bool) {
	switch t := v.(type) {
	case Record:
		return t, true
	case map[string]any:
		return Record(t), true
	case map[any]any:
		out := make(Record, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = val
		}
		return out, true
	}
	return nil, false
}

// ParseTime accepts RFC 3339 timestamps and plain dates.
func ParseTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, true
	case string:
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02", "20060102"} {
			if ts, err := time.Parse(layout, t); err == nil {
				return ts, true
			}
		}
	}
	return time.Time{}, false
}
