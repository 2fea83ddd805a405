// Package transform provides record normalization: date parsing,
// key renaming, response flattening, and schema-driven coercion of
// raw API values.
package transform

import (
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/singer-go/tap-sailthru/pkg/errors"
)

// Record is a field-name to value mapping
type Record = map[string]interface{}

// RFC2822ToISO8601 parses an RFC-2822 date string and renders it as an
// ISO-8601 timestamp in UTC.
func RFC2822ToISO8601(datestring string) (string, error) {
	t, err := mail.ParseDate(datestring)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeData, "failed to parse RFC 2822 date")
	}
	return t.UTC().Format(time.RFC3339), nil
}

// NormalizeDates converts the named RFC-2822 date fields of a record
// to ISO-8601 in place. Fields that are absent, empty, or already
// ISO-8601 are left untouched.
func NormalizeDates(record Record, dateKeys []string) {
	for _, key := range dateKeys {
		raw, ok := record[key].(string)
		if !ok || raw == "" {
			continue
		}
		if iso, err := RFC2822ToISO8601(raw); err == nil {
			record[key] = iso
		}
	}
}

// ToSnakeCase converts a field name to snake case by replacing spaces
// with underscores and lowercasing.
func ToSnakeCase(key string) string {
	return strings.ToLower(strings.Join(strings.Fields(key), "_"))
}

// SnakeCaseKeys renames all keys of a record to snake case in place
func SnakeCaseKeys(record Record) {
	for key, value := range record {
		snake := ToSnakeCase(key)
		if snake != key {
			delete(record, key)
			record[snake] = value
		}
	}
}

// FlattenUserResponse reshapes a /user endpoint response into a flat
// profile record.
func FlattenUserResponse(response Record) Record {
	keys, _ := response["keys"].(map[string]interface{})

	var listNames []interface{}
	if lists, ok := response["lists"].(map[string]interface{}); ok {
		listNames = make([]interface{}, 0, len(lists))
		for name := range lists {
			listNames = append(listNames, name)
		}
	}

	flat := Record{
		"profile_id":   nil,
		"cookie":       nil,
		"email":        nil,
		"vars":         response["vars"],
		"lists":        listNames,
		"engagement":   response["engagement"],
		"optout_email": response["optout_email"],
	}
	if keys != nil {
		flat["profile_id"] = keys["sid"]
		flat["cookie"] = keys["cookie"]
		flat["email"] = keys["email"]
	}
	return flat
}

// Transformer coerces records against a stream's JSON schema before
// emission. Values arriving as CSV strings are converted to the
// declared schema type; properties absent from the schema pass
// through unchanged.
type Transformer struct{}

// NewTransformer creates a schema transformer
func NewTransformer() *Transformer {
	return &Transformer{}
}

// Transform returns a coerced copy of the record per the schema's
// property types.
func (t *Transformer) Transform(record Record, schema map[string]interface{}) Record {
	properties, _ := schema["properties"].(map[string]interface{})
	out := make(Record, len(record))
	for key, value := range record {
		propSchema, ok := properties[key].(map[string]interface{})
		if !ok {
			out[key] = value
			continue
		}
		out[key] = coerce(value, propSchema)
	}
	return out
}

func coerce(value interface{}, propSchema map[string]interface{}) interface{} {
	if value == nil {
		return nil
	}
	for _, typ := range schemaTypes(propSchema) {
		switch typ {
		case "integer":
			if n, ok := toInt(value); ok {
				return n
			}
		case "number":
			if f, ok := toFloat(value); ok {
				return f
			}
		case "boolean":
			if b, ok := toBool(value); ok {
				return b
			}
		case "string":
			if s, ok := value.(string); ok {
				return s
			}
		}
	}
	return value
}

func schemaTypes(propSchema map[string]interface{}) []string {
	switch t := propSchema["type"].(type) {
	case string:
		return []string{t}
	case []interface{}:
		types := make([]string, 0, len(t))
		for _, v := range t {
			if s, ok := v.(string); ok && s != "null" {
				types = append(types, s)
			}
		}
		return types
	}
	return nil
}

func toInt(value interface{}) (int64, bool) {
	switch v := value.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	case string:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}

func toFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

func toBool(value interface{}) (bool, bool) {
	switch v := value.(type) {
	case bool:
		return v, true
	case string:
		if b, err := strconv.ParseBool(v); err == nil {
			return b, true
		}
	}
	return false, false
}
