package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go-tweet-pipeline/internal/model"
	"go-tweet-pipeline/pkg/logger"

	"go.uber.org/zap"
)

// Cleaning defaults
const (
	DefaultCutoff   = "2020-12-31"
	DefaultLanguage = "en"
)

// ErrMissingColumn is returned when a step needs a column the table lacks.
var ErrMissingColumn = errors.New("missing column")

// NumericColumns are coerced to numbers by ConvertToNumbers.
var NumericColumns = []string{
	"polarity",
	"favourites_count",
	"subjectivity",
	"retweet_count",
	"friends_count",
	"followers_count",
}

// DuplicateKey identifies rows that are not expected to repeat.
var DuplicateKey = [3]string{"screen_name", "original_text", "created_at"}

var timestampLayouts = []string{
	time.RubyDate,
	"Mon Jan 2 15:04:05 -0700 2006",
	time.RFC3339Nano,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05-07:00",
	time.DateTime,
	time.DateOnly,
}

var sourceDelims = regexp.MustCompile(`[<>]`)

// TweetCleaner turns an extracted table into an analysis-ready one.
// Every step returns a new table and leaves its input untouched.
type TweetCleaner struct {
	cutoff   time.Time
	language string
	logger   *zap.Logger
}

// NewTweetCleaner creates a cleaner from opts, filling in defaults for
// an empty cutoff or language.
func NewTweetCleaner(opts model.CleanOptions, log *zap.Logger) (*TweetCleaner, error) {
	cutoffText := opts.Cutoff
	if cutoffText == "" {
		cutoffText = DefaultCutoff
	}
	cutoff, err := ParseTimestamp(cutoffText)
	if err != nil {
		return nil, fmt.Errorf("invalid cutoff date: %w", err)
	}
	language := opts.Language
	if language == "" {
		language = DefaultLanguage
	}
	return &TweetCleaner{
		cutoff:   cutoff,
		language: language,
		logger:   logger.OrNop(log).Named("cleaner"),
	}, nil
}

// Cutoff returns the earliest creation time kept by ConvertToDatetime.
func (c *TweetCleaner) Cutoff() time.Time { return c.cutoff }

// Language returns the language code kept by RemoveNonEnglish.
func (c *TweetCleaner) Language() string { return c.language }

// Clean runs every step in order.
func (c *TweetCleaner) Clean(t *model.Table) (*model.Table, error) {
	return c.ApplySteps(t, nil, nil)
}

func columnIndex(t *model.Table, name string) (int, error) {
	idx := t.Index(name)
	if idx < 0 {
		return -1, fmt.Errorf("%w: %s", ErrMissingColumn, name)
	}
	return idx, nil
}

// DropUnwantedRows removes header lines that were duplicated into the data
// during collection.
func (c *TweetCleaner) DropUnwantedRows(t *model.Table) (*model.Table, error) {
	retweets, err := columnIndex(t, "retweet_count")
	if err != nil {
		return nil, err
	}
	polarity, err := columnIndex(t, "polarity")
	if err != nil {
		return nil, err
	}

	out := t.Clone().Filter(func(r model.Row) bool {
		if s, ok := r[retweets].(string); ok && s == "retweet_count" {
			return false
		}
		if s, ok := r[polarity].(string); ok && s == "polarity" {
			return false
		}
		return true
	})

	c.logger.Info("unwanted rows removed", zap.Int("dropped", t.Len()-out.Len()))
	return out, nil
}

// DropDuplicates keeps the first row of every (screen_name, original_text,
// created_at) combination.
func (c *TweetCleaner) DropDuplicates(t *model.Table) (*model.Table, error) {
	var idx [3]int
	for i, name := range DuplicateKey {
		pos, err := columnIndex(t, name)
		if err != nil {
			return nil, err
		}
		idx[i] = pos
	}

	seen := make(map[[3]string]bool, t.Len())
	out := t.Clone().Filter(func(r model.Row) bool {
		var key [3]string
		for i, pos := range idx {
			key[i] = keyOf(r[pos])
		}
		if seen[key] {
			return false
		}
		seen[key] = true
		return true
	})

	c.logger.Info("duplicate rows removed", zap.Int("dropped", t.Len()-out.Len()))
	return out, nil
}

// keyOf renders a value with a type tag so that values of different types,
// nil included, never compare equal.
func keyOf(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "n"
	case string:
		return "s" + val
	case time.Time:
		return "t" + val.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprintf("v%T:%v", val, val)
	}
}

// ConvertToDatetime parses created_at and drops rows created before the
// cutoff. Rows without a creation time are dropped too.
func (c *TweetCleaner) ConvertToDatetime(t *model.Table) (*model.Table, error) {
	idx, err := columnIndex(t, "created_at")
	if err != nil {
		return nil, err
	}

	out := t.Clone()
	for i, r := range out.Rows {
		if r[idx] == nil {
			continue
		}
		ts, err := toTimestamp(r[idx])
		if err != nil {
			return nil, fmt.Errorf("row %d: column created_at: %w", i, err)
		}
		r[idx] = ts
	}

	out = out.Filter(func(r model.Row) bool {
		ts, ok := r[idx].(time.Time)
		return ok && !ts.Before(c.cutoff)
	})

	c.logger.Info("strings converted to datetime",
		zap.Time("cutoff", c.cutoff),
		zap.Int("dropped", t.Len()-out.Len()))
	return out, nil
}

func toTimestamp(v interface{}) (time.Time, error) {
	switch val := v.(type) {
	case time.Time:
		return val, nil
	case string:
		return ParseTimestamp(val)
	default:
		return time.Time{}, fmt.Errorf("cannot parse %v (%T) as timestamp", v, v)
	}
}

// ParseTimestamp accepts the Twitter API format and the usual ISO variants.
// Values without a zone are read as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	clean := strings.Join(strings.Fields(s), " ")
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, clean); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse %q as timestamp", s)
}

// ConvertToNumbers coerces the numeric columns. A single non-numeric value
// fails the whole step.
func (c *TweetCleaner) ConvertToNumbers(t *model.Table) (*model.Table, error) {
	out := t.Clone()
	for _, name := range NumericColumns {
		idx, err := columnIndex(out, name)
		if err != nil {
			return nil, err
		}
		integer := out.Columns[idx].Type == model.TypeInteger
		for i, r := range out.Rows {
			n, err := toNumber(r[idx], integer)
			if err != nil {
				return nil, fmt.Errorf("row %d: column %s: %w", i, name, err)
			}
			r[idx] = n
		}
	}

	c.logger.Info("strings converted to numbers", zap.Strings("columns", NumericColumns))
	return out, nil
}

// toNumber returns int64 for integral values of integer columns and float64
// otherwise. nil stays nil.
func toNumber(v interface{}, integer bool) (interface{}, error) {
	var f float64
	switch val := v.(type) {
	case nil:
		return nil, nil
	case int:
		f = float64(val)
	case int32:
		f = float64(val)
	case int64:
		if integer {
			return val, nil
		}
		return float64(val), nil
	case float32:
		f = float64(val)
	case float64:
		f = val
	case json.Number:
		return parseNumber(val.String(), integer)
	case string:
		return parseNumber(val, integer)
	default:
		return nil, fmt.Errorf("cannot convert %v (%T) to a number", v, v)
	}
	if integer && fitsInt64(f) {
		return int64(f), nil
	}
	return f, nil
}

// fitsInt64 reports whether f is integral and within [-2^63, 2^63).
func fitsInt64(f float64) bool {
	return f == math.Trunc(f) && f >= -(1<<63) && f < 1<<63
}

func parseNumber(s string, integer bool) (interface{}, error) {
	s = strings.TrimSpace(s)
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		if integer {
			return i, nil
		}
		return float64(i), nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("cannot parse %q as a number", s)
	}
	return toNumber(f, integer)
}

// RemoveNonEnglish keeps the rows written in the target language.
func (c *TweetCleaner) RemoveNonEnglish(t *model.Table) (*model.Table, error) {
	idx, err := columnIndex(t, "language")
	if err != nil {
		return nil, err
	}

	out := t.Clone().Filter(func(r model.Row) bool {
		lang, ok := r[idx].(string)
		return ok && lang == c.language
	})

	c.logger.Info("other languages removed",
		zap.String("language", c.language),
		zap.Int("dropped", t.Len()-out.Len()))
	return out, nil
}

// SourceName returns the device name of a source written as an anchor
// fragment such as `<a href="...">Twitter Web App</a>`. Other values are
// returned trimmed.
func SourceName(source string) string {
	parts := sourceDelims.Split(source, -1)
	if len(parts) < 3 {
		return strings.TrimSpace(source)
	}
	return strings.TrimSpace(parts[2])
}
