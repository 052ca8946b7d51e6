package model

// Source describes where a run reads its input from
type Source struct {
	Type string `mapstructure:"type" json:"type"` // json (one post per line) or csv (saved table)
	Path string `mapstructure:"path" json:"path"`
}

// ExtractOptions controls the optional raw table dump after extraction
type ExtractOptions struct {
	Save     bool   `mapstructure:"save" json:"save"`
	SavePath string `mapstructure:"save_path" json:"save_path"`
}

// CleanOptions configures the table cleaner
type CleanOptions struct {
	Enabled  bool     `mapstructure:"enabled" json:"enabled"`
	Steps    []string `mapstructure:"steps" json:"steps"`       // empty means every step
	Cutoff   string   `mapstructure:"cutoff" json:"cutoff"`     // e.g., 2020-12-31
	Language string   `mapstructure:"language" json:"language"` // e.g., en
}

// ValidationRules defines the invariants a cleaned table must satisfy
type ValidationRules struct {
	RequiredFields  []string           `json:"requiredFields"`  // columns that must exist
	TimestampFields []string           `json:"timestampFields"` // columns that must hold time.Time
	NumericFields   []string           `json:"numericFields"`   // columns that must be numeric
	MinValues       map[string]float64 `json:"minValues"`       // min allowed numeric values
	MaxValues       map[string]float64 `json:"maxValues"`       // max allowed numeric values
	EqualValues     map[string]string  `json:"equalValues"`     // e.g., language must be "en"
}

// Export defines export targets
type Export struct {
	File  string `mapstructure:"file" json:"file"`   // e.g., clean_tweets.csv
	DB    string `mapstructure:"db" json:"db"`       // sqlite or postgres
	DSN   string `mapstructure:"dsn" json:"dsn"`     // connection string for db
	Table string `mapstructure:"table" json:"table"` // target table name
}

// LoggingConfig configures the zap logger
type LoggingConfig struct {
	Level       string `mapstructure:"level" json:"level"`
	Development bool   `mapstructure:"development" json:"development"`
}

// MetricsConfig configures run metrics output
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile" json:"textfile"` // prometheus textfile path, empty disables
}

// PipelineSpec defines the entire run configuration
type PipelineSpec struct {
	Source    Source         `mapstructure:"source" json:"source"`
	Extract   ExtractOptions `mapstructure:"extract" json:"extract"`
	Cleaning  CleanOptions   `mapstructure:"cleaning" json:"cleaning"`
	Validate  bool           `mapstructure:"validate" json:"validate"`
	Export    Export         `mapstructure:"export" json:"export"`
	Sentiment string         `mapstructure:"sentiment" json:"sentiment"` // vader or none
	StorePath string         `mapstructure:"store_path" json:"store_path"`
	OutputDir string         `mapstructure:"output_dir" json:"output_dir"`
	Timeout   string         `mapstructure:"timeout" json:"timeout"` // e.g., "5m"
	Logging   LoggingConfig  `mapstructure:"logging" json:"logging"`
	Metrics   MetricsConfig  `mapstructure:"metrics" json:"metrics"`
}
