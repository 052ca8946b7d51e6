package pipeline

import (
	"fmt"
	"time"

	"go-tweet-pipeline/internal/model"
	"go-tweet-pipeline/pkg/utils"
)

// DefaultValidationRules returns the invariants of a table cleaned with the
// given steps.
func DefaultValidationRules(opts model.CleanOptions) model.ValidationRules {
	names := make([]string, len(TweetColumns))
	for i, c := range TweetColumns {
		names[i] = c.Name
	}

	rules := model.ValidationRules{
		RequiredFields: names,
		MinValues:      map[string]float64{},
		MaxValues:      map[string]float64{},
		EqualValues:    map[string]string{},
	}

	selected, err := selectSteps(opts.Steps)
	if err != nil {
		return rules
	}
	if selected[StepConvertToDatetime] {
		rules.TimestampFields = []string{"created_at"}
	}
	if selected[StepConvertToNumbers] {
		rules.NumericFields = append([]string(nil), NumericColumns...)
		rules.MinValues["polarity"] = -1
		rules.MaxValues["polarity"] = 1
		rules.MinValues["subjectivity"] = 0
		rules.MaxValues["subjectivity"] = 1
	}
	if selected[StepRemoveNonEnglish] {
		language := opts.Language
		if language == "" {
			language = DefaultLanguage
		}
		rules.EqualValues["language"] = language
	}
	return rules
}

// ValidateTable checks every row of t against rules and returns the first
// violation. Missing values are only checked by RequiredFields.
func ValidateTable(t *model.Table, rules model.ValidationRules) error {
	for _, field := range rules.RequiredFields {
		if t.Index(field) < 0 {
			return fmt.Errorf("%w: %s", ErrMissingColumn, field)
		}
	}

	for i, r := range t.Rows {
		if len(r) != len(t.Columns) {
			return fmt.Errorf("row %d has %d values for %d columns", i, len(r), len(t.Columns))
		}
		if err := validateRow(t, i, rules); err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
	}
	return nil
}

func validateRow(t *model.Table, i int, rules model.ValidationRules) error {
	for _, field := range rules.TimestampFields {
		val := t.Value(i, field)
		if _, ok := val.(time.Time); !ok && val != nil {
			return fmt.Errorf("field %s must be a timestamp, got %T", field, val)
		}
	}

	for _, field := range rules.NumericFields {
		val := t.Value(i, field)
		if val != nil && !utils.IsNumeric(val) {
			return fmt.Errorf("field %s must be numeric, got %T", field, val)
		}
	}

	// Check min values
	for field, min := range rules.MinValues {
		if val := t.Value(i, field); val != nil && utils.IsNumeric(val) {
			if utils.Numeric(val) < min {
				return fmt.Errorf("field %s below minimum: got %v, want ≥ %v", field, val, min)
			}
		}
	}

	// Check max values
	for field, max := range rules.MaxValues {
		if val := t.Value(i, field); val != nil && utils.IsNumeric(val) {
			if utils.Numeric(val) > max {
				return fmt.Errorf("field %s above maximum: got %v, want ≤ %v", field, val, max)
			}
		}
	}

	for field, want := range rules.EqualValues {
		if got := t.Value(i, field); got != want {
			return fmt.Errorf("field %s must equal %q, got %v", field, want, got)
		}
	}
	return nil
}
