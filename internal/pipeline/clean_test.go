package pipeline

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"go-tweet-pipeline/internal/model"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

func newCleaner(t *testing.T, opts model.CleanOptions) *TweetCleaner {
	t.Helper()
	c, err := NewTweetCleaner(opts, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewTweetCleaner returned error: %v", err)
	}
	return c
}

func TestNewTweetCleanerDefaults(t *testing.T) {
	c := newCleaner(t, model.CleanOptions{})

	if want := time.Date(2020, 12, 31, 0, 0, 0, 0, time.UTC); !c.Cutoff().Equal(want) {
		t.Errorf("cutoff: got %v, want %v", c.Cutoff(), want)
	}
	if c.Language() != "en" {
		t.Errorf("language: got %q, want en", c.Language())
	}

	if _, err := NewTweetCleaner(model.CleanOptions{Cutoff: "yesterday"}, nil); err == nil {
		t.Error("Expected an error for an invalid cutoff")
	}
}

func TestDropUnwantedRows(t *testing.T) {
	table := tweetTable(
		tweetRow(nil),
		tweetRow(map[string]interface{}{"retweet_count": "retweet_count"}),
		tweetRow(map[string]interface{}{"polarity": "polarity"}),
		tweetRow(map[string]interface{}{"screen_name": "bob"}),
	)

	out, err := newCleaner(t, model.CleanOptions{}).DropUnwantedRows(table)
	if err != nil {
		t.Fatalf("DropUnwantedRows returned error: %v", err)
	}
	if out.Len() != 2 {
		t.Fatalf("Expected 2 rows, got %d", out.Len())
	}
	if out.Value(1, "screen_name") != "bob" {
		t.Errorf("Expected order to be kept, got %v", out.Value(1, "screen_name"))
	}
	if table.Len() != 4 {
		t.Errorf("Input table was modified: %d rows", table.Len())
	}
}

func TestDropDuplicates(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	c, err := NewTweetCleaner(model.CleanOptions{}, zap.New(core))
	if err != nil {
		t.Fatal(err)
	}

	table := tweetTable(
		tweetRow(map[string]interface{}{"location": "first"}),
		tweetRow(map[string]interface{}{"location": "second"}),
		tweetRow(map[string]interface{}{"screen_name": "bob"}),
		tweetRow(map[string]interface{}{"screen_name": nil}),
		tweetRow(map[string]interface{}{"screen_name": ""}),
		tweetRow(map[string]interface{}{"screen_name": nil}),
	)

	out, err := c.DropDuplicates(table)
	if err != nil {
		t.Fatalf("DropDuplicates returned error: %v", err)
	}
	if out.Len() != 4 {
		t.Fatalf("Expected 4 rows, got %d", out.Len())
	}
	if out.Value(0, "location") != "first" {
		t.Errorf("Expected the first occurrence to be kept, got %v", out.Value(0, "location"))
	}

	entries := logs.FilterMessage("duplicate rows removed").All()
	if len(entries) != 1 {
		t.Fatalf("Expected one log entry, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["dropped"]; got != int64(2) {
		t.Errorf("dropped: got %v, want 2", got)
	}
}

func TestDropDuplicatesDistinctKeys(t *testing.T) {
	table := tweetTable(
		tweetRow(map[string]interface{}{"screen_name": "a\x1fb", "original_text": "c"}),
		tweetRow(map[string]interface{}{"screen_name": "a", "original_text": "b\x1fc"}),
		tweetRow(map[string]interface{}{"screen_name": nil}),
		tweetRow(map[string]interface{}{"screen_name": "\x00"}),
		tweetRow(map[string]interface{}{"screen_name": "n"}),
		tweetRow(map[string]interface{}{"screen_name": int64(1)}),
		tweetRow(map[string]interface{}{"screen_name": "1"}),
	)

	out, err := newCleaner(t, model.CleanOptions{}).DropDuplicates(table)
	if err != nil {
		t.Fatalf("DropDuplicates returned error: %v", err)
	}
	if out.Len() != table.Len() {
		t.Errorf("Expected all %d distinct rows to be kept, got %d", table.Len(), out.Len())
	}
}

func TestConvertToDatetime(t *testing.T) {
	table := tweetTable(
		tweetRow(map[string]interface{}{"created_at": "Tue Jan 05 10:00:00 +0000 2021"}),
		tweetRow(map[string]interface{}{"created_at": "Mon Jun 01 10:00:00 +0000 2020"}),
		tweetRow(map[string]interface{}{"created_at": "2020-12-31 00:00:00+00:00"}),
		tweetRow(map[string]interface{}{"created_at": nil}),
	)

	out, err := newCleaner(t, model.CleanOptions{}).ConvertToDatetime(table)
	if err != nil {
		t.Fatalf("ConvertToDatetime returned error: %v", err)
	}
	if out.Len() != 2 {
		t.Fatalf("Expected 2 rows, got %d", out.Len())
	}

	got, ok := out.Value(0, "created_at").(time.Time)
	if !ok {
		t.Fatalf("Expected time.Time, got %T", out.Value(0, "created_at"))
	}
	if want := time.Date(2021, 1, 5, 10, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Errorf("created_at: got %v, want %v", got, want)
	}
	if _, ok := table.Value(0, "created_at").(string); !ok {
		t.Error("Input table was modified")
	}
}

func TestConvertToDatetimeInvalid(t *testing.T) {
	table := tweetTable(
		tweetRow(nil),
		tweetRow(map[string]interface{}{"created_at": "not a date"}),
	)

	_, err := newCleaner(t, model.CleanOptions{}).ConvertToDatetime(table)
	if err == nil {
		t.Fatal("Expected an error for an unparseable timestamp")
	}
}

func TestConvertToNumbers(t *testing.T) {
	table := tweetTable(
		tweetRow(map[string]interface{}{"polarity": "0.5", "retweet_count": json.Number("3"), "friends_count": nil}),
		tweetRow(map[string]interface{}{"subjectivity": int64(1), "followers_count": "20", "favourites_count": 2.0}),
		tweetRow(map[string]interface{}{"retweet_count": "1e20", "friends_count": json.Number("-9223372036854775808"), "followers_count": -1e19}),
	)

	out, err := newCleaner(t, model.CleanOptions{}).ConvertToNumbers(table)
	if err != nil {
		t.Fatalf("ConvertToNumbers returned error: %v", err)
	}

	want := []struct {
		row int
		col string
		val interface{}
	}{
		{0, "polarity", 0.5},
		{0, "retweet_count", int64(3)},
		{0, "friends_count", nil},
		{1, "subjectivity", 1.0},
		{1, "followers_count", int64(20)},
		{1, "favourites_count", int64(2)},
		{2, "retweet_count", 1e20},
		{2, "friends_count", int64(-9223372036854775808)},
		{2, "followers_count", -1e19},
	}
	for _, w := range want {
		if got := out.Value(w.row, w.col); got != w.val {
			t.Errorf("row %d %s: got %v (%T), want %v (%T)", w.row, w.col, got, got, w.val, w.val)
		}
	}
}

func TestConvertToNumbersInvalid(t *testing.T) {
	testCases := []struct {
		name  string
		value interface{}
	}{
		{name: "text", value: "abc"},
		{name: "bool", value: true},
		{name: "list", value: []interface{}{1}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			table := tweetTable(tweetRow(map[string]interface{}{"retweet_count": tc.value}))
			if _, err := newCleaner(t, model.CleanOptions{}).ConvertToNumbers(table); err == nil {
				t.Errorf("Expected an error for %v", tc.value)
			}
		})
	}
}

func TestRemoveNonEnglish(t *testing.T) {
	table := tweetTable(
		tweetRow(nil),
		tweetRow(map[string]interface{}{"language": "fr"}),
		tweetRow(map[string]interface{}{"language": nil}),
		tweetRow(map[string]interface{}{"language": "EN"}),
	)

	out, err := newCleaner(t, model.CleanOptions{}).RemoveNonEnglish(table)
	if err != nil {
		t.Fatalf("RemoveNonEnglish returned error: %v", err)
	}
	if out.Len() != 1 {
		t.Errorf("Expected 1 row, got %d", out.Len())
	}

	out, err = newCleaner(t, model.CleanOptions{Language: "fr"}).RemoveNonEnglish(table)
	if err != nil {
		t.Fatal(err)
	}
	if out.Len() != 1 || out.Value(0, "language") != "fr" {
		t.Errorf("Expected only the fr row, got %d rows", out.Len())
	}
}

func TestStepMissingColumn(t *testing.T) {
	table := model.NewTable([]model.Column{{Name: "text", Type: model.TypeText}})
	c := newCleaner(t, model.CleanOptions{})

	steps := map[string]func(*model.Table) (*model.Table, error){
		StepDropUnwantedRows:  c.DropUnwantedRows,
		StepDropDuplicates:    c.DropDuplicates,
		StepConvertToDatetime: c.ConvertToDatetime,
		StepConvertToNumbers:  c.ConvertToNumbers,
		StepRemoveNonEnglish:  c.RemoveNonEnglish,
	}
	for name, step := range steps {
		if _, err := step(table); !errors.Is(err, ErrMissingColumn) {
			t.Errorf("%s: expected ErrMissingColumn, got %v", name, err)
		}
	}
}

func TestCleanIsIdempotent(t *testing.T) {
	table := tweetTable(
		tweetRow(nil),
		tweetRow(nil),
		tweetRow(map[string]interface{}{"retweet_count": "retweet_count"}),
		tweetRow(map[string]interface{}{"screen_name": "bob", "language": "de"}),
		tweetRow(map[string]interface{}{"screen_name": "carol", "created_at": "Mon Jun 01 10:00:00 +0000 2020"}),
		tweetRow(map[string]interface{}{"screen_name": "dave", "polarity": json.Number("-0.25")}),
	)
	c := newCleaner(t, model.CleanOptions{})

	once, err := c.Clean(table)
	if err != nil {
		t.Fatalf("Clean returned error: %v", err)
	}
	twice, err := c.Clean(once)
	if err != nil {
		t.Fatalf("second Clean returned error: %v", err)
	}

	if once.Len() != 2 {
		t.Errorf("Expected 2 rows, got %d", once.Len())
	}
	if !reflect.DeepEqual(once.Rows, twice.Rows) {
		t.Errorf("Cleaning twice changed the table:\n%v\n%v", once.Rows, twice.Rows)
	}
	if err := ValidateTable(once, DefaultValidationRules(model.CleanOptions{})); err != nil {
		t.Errorf("Cleaned table fails validation: %v", err)
	}
}

func TestApplyStepsOrder(t *testing.T) {
	c := newCleaner(t, model.CleanOptions{})
	obs := &recordingObserver{}

	_, err := c.ApplySteps(tweetTable(tweetRow(nil)), []string{StepRemoveNonEnglish, StepConvertToDatetime, StepDropUnwantedRows}, obs)
	if err != nil {
		t.Fatalf("ApplySteps returned error: %v", err)
	}

	want := []string{StepDropUnwantedRows, StepConvertToDatetime, StepRemoveNonEnglish}
	if !reflect.DeepEqual(obs.started, want) || !reflect.DeepEqual(obs.ended, want) {
		t.Errorf("Expected steps %v, got started=%v ended=%v", want, obs.started, obs.ended)
	}
}

func TestApplyStepsErrors(t *testing.T) {
	c := newCleaner(t, model.CleanOptions{})

	if _, err := c.ApplySteps(tweetTable(), []string{"lowercase"}, nil); !errors.Is(err, ErrUnknownStep) {
		t.Errorf("Expected ErrUnknownStep, got %v", err)
	}

	obs := &recordingObserver{}
	bad := tweetTable(tweetRow(map[string]interface{}{"created_at": "soon"}))
	if _, err := c.ApplySteps(bad, nil, obs); err == nil {
		t.Fatal("Expected an error for an unparseable timestamp")
	}
	if !reflect.DeepEqual(obs.failed, []string{StepConvertToDatetime}) {
		t.Errorf("Expected %s to fail, got %v", StepConvertToDatetime, obs.failed)
	}
}

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2021, 1, 5, 10, 0, 0, 0, time.UTC)
	testCases := []struct {
		name string
		in   string
	}{
		{name: "twitter", in: "Tue Jan 05 10:00:00 +0000 2021"},
		{name: "twitter single digit day", in: "Tue Jan  5 10:00:00 +0000 2021"},
		{name: "rfc3339", in: "2021-01-05T10:00:00Z"},
		{name: "export layout", in: "2021-01-05 10:00:00+00:00"},
		{name: "no zone", in: "2021-01-05 10:00:00"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseTimestamp(tc.in)
			if err != nil {
				t.Fatalf("ParseTimestamp(%q) returned error: %v", tc.in, err)
			}
			if !got.Equal(want) {
				t.Errorf("ParseTimestamp(%q) = %v, want %v", tc.in, got, want)
			}
		})
	}
}

func TestSourceName(t *testing.T) {
	testCases := []struct {
		name string
		in   string
		want string
	}{
		{name: "anchor", in: `<a href="http://twitter.com/download/android" rel="nofollow">Twitter for Android</a>`, want: "Twitter for Android"},
		{name: "single quotes", in: "<a href='x'>Twitter Web App</a>", want: "Twitter Web App"},
		{name: "plain", in: "  Twitter Web App ", want: "Twitter Web App"},
		{name: "empty", in: "", want: ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SourceName(tc.in); got != tc.want {
				t.Errorf("SourceName(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
