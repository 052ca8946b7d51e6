package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "source:\n  path: tweets.json\n")

	spec, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if spec.Source.Type != "json" {
		t.Errorf("source type: got %q, want json", spec.Source.Type)
	}
	if !spec.Cleaning.Enabled || spec.Cleaning.Cutoff != "2020-12-31" || spec.Cleaning.Language != "en" {
		t.Errorf("unexpected cleaning defaults: %+v", spec.Cleaning)
	}
	if !spec.Validate {
		t.Error("validate should default to true")
	}
	if spec.Export.Table != "tweets" {
		t.Errorf("export table: got %q, want tweets", spec.Export.Table)
	}
	if spec.Extract.SavePath != "processed_tweet_data.csv" {
		t.Errorf("save path: got %q", spec.Extract.SavePath)
	}
	if spec.Timeout != "5m" || spec.Sentiment != "vader" {
		t.Errorf("unexpected defaults: timeout=%q sentiment=%q", spec.Timeout, spec.Sentiment)
	}
}

func TestLoadFileValues(t *testing.T) {
	path := writeConfig(t, `
source:
  type: csv
  path: saved.csv
cleaning:
  steps: [drop_duplicates, remove_non_english]
  language: fr
export:
  file: out.json
  db: sqlite
  dsn: export.db
logging:
  level: debug
`)

	spec, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if spec.Source.Type != "csv" || spec.Source.Path != "saved.csv" {
		t.Errorf("unexpected source: %+v", spec.Source)
	}
	if len(spec.Cleaning.Steps) != 2 || spec.Cleaning.Steps[1] != "remove_non_english" {
		t.Errorf("unexpected steps: %v", spec.Cleaning.Steps)
	}
	if spec.Cleaning.Language != "fr" {
		t.Errorf("language: got %q, want fr", spec.Cleaning.Language)
	}
	if spec.Export.File != "out.json" || spec.Export.DB != "sqlite" || spec.Export.DSN != "export.db" {
		t.Errorf("unexpected export: %+v", spec.Export)
	}
	if spec.Logging.Level != "debug" {
		t.Errorf("logging level: got %q, want debug", spec.Logging.Level)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, "source:\n  path: tweets.json\n")
	t.Setenv("TWEETS_SOURCE_PATH", "other.json")
	t.Setenv("TWEETS_EXPORT_TABLE", "clean_tweets")

	spec, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if spec.Source.Path != "other.json" {
		t.Errorf("source path: got %q, want other.json", spec.Source.Path)
	}
	if spec.Export.Table != "clean_tweets" {
		t.Errorf("export table: got %q, want clean_tweets", spec.Export.Table)
	}
}

func TestLoadWithOverrides(t *testing.T) {
	path := writeConfig(t, "validate: false\n")
	t.Setenv("TWEETS_SOURCE_PATH", "env.json")

	spec, err := LoadWithOverrides(path, map[string]interface{}{"source.path": "flag.json"})
	if err != nil {
		t.Fatalf("LoadWithOverrides returned error: %v", err)
	}
	if spec.Source.Path != "flag.json" {
		t.Errorf("source path: got %q, want flag.json", spec.Source.Path)
	}
	if spec.Validate {
		t.Error("file value for validate was lost")
	}
}

func TestLoadErrors(t *testing.T) {
	testCases := []struct {
		name string
		path func(t *testing.T) string
	}{
		{
			name: "missing file",
			path: func(t *testing.T) string { return filepath.Join(t.TempDir(), "absent.yaml") },
		},
		{
			name: "no source path",
			path: func(t *testing.T) string { return writeConfig(t, "validate: false\n") },
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Load(tc.path(t)); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}
