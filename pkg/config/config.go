// Package config provides connector configuration for the gateway.
//
// A ConnectorConfig is the persisted, operator-edited description of one
// connector: its unique name, a type tag selecting the implementation, an
// arbitrary key/value map and an active flag. Many live connector instances
// may be built from the same config over time.
//
// Values wraps the key/value map with typed accessors so connectors never
// type-assert raw interface values themselves:
//
//	cfg := config.Values{"host": "localhost", "port": 9092, "timeout_ms": 2500}
//	addr := fmt.Sprintf("%s:%d", cfg.String("host", ""), cfg.Int("port", 0))
//	timeout := cfg.Duration("timeout_ms", 5*time.Second) // 2.5s
package config

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// ConnectorConfig describes a connector instance.
type ConnectorConfig struct {
	Name   string `yaml:"name" json:"name" validate:"required,max=100"`
	Type   string `yaml:"type" json:"type" validate:"required,oneof=kafka rabbitmq activemq crm pm banking erp custom"`
	Data   Values `yaml:"config" json:"config_data"`
	Active bool   `yaml:"active" json:"is_active"`
}

// Validate checks the structural rules of the config. Connector specific
// required fields are checked by the connector itself.
func (c *ConnectorConfig) Validate() error {
	return validateStruct(c)
}

// Values is an arbitrary configuration map with typed accessors.
type Values map[string]any

// Has reports whether key is present, even with an empty value.
func (v Values) Has(key string) bool {
	_, ok := v[key]
	return ok
}

// IsEmpty reports whether key is present but nil, blank or an empty collection.
func (v Values) IsEmpty(key string) bool {
	raw, ok := v[key]
	if !ok {
		return false
	}
	return isEmptyValue(raw)
}

// ValidateRequired returns one message per required field that is missing or
// empty. An empty map yields a single "Configuration is required" message.
func (v Values) ValidateRequired(fields []string) []string {
	if len(v) == 0 {
		return []string{"Configuration is required"}
	}
	var errs []string
	for _, field := range fields {
		switch {
		case !v.Has(field):
			errs = append(errs, fmt.Sprintf("Required field '%s' is missing", field))
		case v.IsEmpty(field):
			errs = append(errs, fmt.Sprintf("Required field '%s' cannot be empty", field))
		}
	}
	return errs
}

// String returns the value at key as a string, or def when absent or blank.
func (v Values) String(key, def string) string {
	raw, ok := v[key]
	if !ok || raw == nil {
		return def
	}
	var s string
	switch t := raw.(type) {
	case string:
		s = t
	case fmt.Stringer:
		s = t.String()
	default:
		s = fmt.Sprint(t)
	}
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

// Int returns the value at key as an int, or def when absent or not numeric.
func (v Values) Int(key string, def int) int {
	raw, ok := v[key]
	if !ok || raw == nil {
		return def
	}
	switch t := raw.(type) {
	case int:
		return t
	case int32:
		return int(t)
	case int64:
		return int(t)
	case uint:
		return int(t)
	case float64:
		return int(t)
	case float32:
		return int(t)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
			return n
		}
	case fmt.Stringer:
		if n, err := strconv.Atoi(t.String()); err == nil {
			return n
		}
	}
	return def
}

// Bool returns the value at key as a bool, or def when absent or unparseable.
func (v Values) Bool(key string, def bool) bool {
	raw, ok := v[key]
	if !ok || raw == nil {
		return def
	}
	switch t := raw.(type) {
	case bool:
		return t
	case string:
		if b, err := strconv.ParseBool(strings.TrimSpace(t)); err == nil {
			return b
		}
	}
	return def
}

// Duration reads key as a duration. Numbers are milliseconds, strings may be
// either a Go duration ("2s") or a millisecond count.
func (v Values) Duration(key string, def time.Duration) time.Duration {
	raw, ok := v[key]
	if !ok || raw == nil {
		return def
	}
	if s, isString := raw.(string); isString {
		if d, err := time.ParseDuration(strings.TrimSpace(s)); err == nil {
			return d
		}
	}
	ms := v.Int(key, -1)
	if ms < 0 {
		return def
	}
	return time.Duration(ms) * time.Millisecond
}

// Map returns a nested map at key, or nil.
func (v Values) Map(key string) Values {
	return asValues(v[key])
}

// Strings returns a list at key. A comma-separated string is split.
func (v Values) Strings(key string) []string {
	switch t := v[key].(type) {
	case []string:
		return append([]string(nil), t...)
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			out = append(out, fmt.Sprint(item))
		}
		return out
	case string:
		var out []string
		for _, part := range strings.Split(t, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	}
	return nil
}

// Clone returns a shallow copy of v.
func (v Values) Clone() Values {
	out := make(Values, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

func asValues(raw any) Values {
	switch t := raw.(type) {
	case Values:
		return t
	case map[string]any:
		return Values(t)
	case map[any]any:
		out := make(Values, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = val
		}
		return out
	}
	rv := reflect.ValueOf(raw)
	if rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String {
		out := make(Values, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = iter.Value().Interface()
		}
		return out
	}
	return nil
}

func isEmptyValue(raw any) bool {
	if raw == nil {
		return true
	}
	if s, ok := raw.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	rv := reflect.ValueOf(raw)
	switch rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Array:
		return rv.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
