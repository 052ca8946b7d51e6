package store

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"time"

	"go-tweet-pipeline/internal/model"
)

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func checkIdentifier(name string) error {
	if !identifier.MatchString(name) {
		return fmt.Errorf("invalid table or column name: %q", name)
	}
	return nil
}

func sqliteType(t model.ColumnType) string {
	switch t {
	case model.TypeTimestamp:
		return "DATETIME"
	case model.TypeInteger:
		return "INTEGER"
	case model.TypeFloat:
		return "REAL"
	case model.TypeBoolean:
		return "BOOLEAN"
	default:
		return "TEXT"
	}
}

func postgresType(t model.ColumnType) string {
	switch t {
	case model.TypeTimestamp:
		return "TIMESTAMPTZ"
	case model.TypeInteger:
		return "BIGINT"
	case model.TypeFloat:
		return "DOUBLE PRECISION"
	case model.TypeBoolean:
		return "BOOLEAN"
	case model.TypeList:
		return "JSONB"
	default:
		return "TEXT"
	}
}

// looseValue converts a cell for a dynamically typed column. Lists and maps
// are stored as JSON text.
func looseValue(v interface{}) (interface{}, error) {
	switch val := v.(type) {
	case nil, string, bool, int64, float64, time.Time:
		return val, nil
	case int:
		return int64(val), nil
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i, nil
		}
		return val.Float64()
	case []interface{}, map[string]interface{}:
		b, err := json.Marshal(val)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	default:
		return fmt.Sprint(val), nil
	}
}

// strictValue converts a cell to the Go type of the column's SQL type and
// fails when the value does not fit.
func strictValue(col model.Column, v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	loose, err := looseValue(v)
	if err != nil {
		return nil, err
	}

	switch col.Type {
	case model.TypeTimestamp:
		if ts, ok := loose.(time.Time); ok {
			return ts, nil
		}
	case model.TypeInteger:
		switch n := loose.(type) {
		case int64:
			return n, nil
		case float64:
			if n == math.Trunc(n) && n >= -(1<<63) && n < 1<<63 {
				return int64(n), nil
			}
		case string:
			if i, err := strconv.ParseInt(n, 10, 64); err == nil {
				return i, nil
			}
		}
	case model.TypeFloat:
		switch n := loose.(type) {
		case float64:
			return n, nil
		case int64:
			return float64(n), nil
		case string:
			if f, err := strconv.ParseFloat(n, 64); err == nil {
				return f, nil
			}
		}
	case model.TypeBoolean:
		switch b := loose.(type) {
		case bool:
			return b, nil
		case string:
			if parsed, err := strconv.ParseBool(b); err == nil {
				return parsed, nil
			}
		}
	case model.TypeList:
		if s, ok := loose.(string); ok && json.Valid([]byte(s)) {
			return s, nil
		}
	default:
		if ts, ok := loose.(time.Time); ok {
			return ts.Format(time.RFC3339), nil
		}
		return fmt.Sprint(loose), nil
	}
	return nil, fmt.Errorf("column %s: value %v (%T) does not fit type %s", col.Name, v, v, col.Type)
}
