package pipeline

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go-tweet-pipeline/internal/model"
)

const sampleTweet = `{"created_at": "Tue Jan 05 10:00:00 +0000 2021", "source": "<a href='x'>Twitter Web App</a>", "text": "RT @bob: hello world", "lang": "en", "retweet_count": 3, "user": {"screen_name": "alice", "friends_count": 10, "followers_count": 20, "statuses_count": 5, "favourites_count": 1, "location": "NY"}, "entities": {"hashtags": [], "user_mentions": []}, "possibly_sensitive": false}`

// decodeRecords parses JSON lines the way ReadJSON does.
func decodeRecords(t *testing.T, lines ...string) []model.Record {
	t.Helper()
	records := make([]model.Record, 0, len(lines))
	for _, line := range lines {
		dec := json.NewDecoder(strings.NewReader(line))
		dec.UseNumber()
		var rec model.Record
		if err := dec.Decode(&rec); err != nil {
			t.Fatalf("bad fixture %q: %v", line, err)
		}
		records = append(records, rec)
	}
	return records
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

// tweetRow builds a row in TweetColumns order with the given overrides.
func tweetRow(overrides map[string]interface{}) model.Row {
	base := map[string]interface{}{
		"created_at":         "Tue Jan 05 10:00:00 +0000 2021",
		"source":             "Twitter Web App",
		"original_text":      "hello world",
		"clean_text":         "hello world",
		"polarity":           0.5,
		"subjectivity":       0.5,
		"screen_name":        "alice",
		"language":           "en",
		"retweet_count":      json.Number("3"),
		"friends_count":      json.Number("10"),
		"hashtags":           []interface{}{},
		"statuses_count":     json.Number("5"),
		"followers_count":    json.Number("20"),
		"favourites_count":   json.Number("1"),
		"user_mentions":      []interface{}{},
		"possibly_sensitive": false,
		"location":           "NY",
	}
	for k, v := range overrides {
		base[k] = v
	}
	row := make(model.Row, len(TweetColumns))
	for i, c := range TweetColumns {
		row[i] = base[c.Name]
	}
	return row
}

func tweetTable(rows ...model.Row) *model.Table {
	table := model.NewTable(TweetColumns)
	table.Rows = append(table.Rows, rows...)
	return table
}

// recordingObserver captures StepObserver calls.
type recordingObserver struct {
	started []string
	ended   []string
	failed  []string
}

func (o *recordingObserver) StartStage(stage string, _ int) { o.started = append(o.started, stage) }
func (o *recordingObserver) EndStage(stage string, _ int)   { o.ended = append(o.ended, stage) }
func (o *recordingObserver) FailStage(stage string, _ error) {
	o.failed = append(o.failed, stage)
}
