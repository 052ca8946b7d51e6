package config

import (
	"errors"
	"fmt"
	"strings"

	"go-tweet-pipeline/internal/model"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. TWEETS_SOURCE_PATH.
const EnvPrefix = "TWEETS"

// Load reads the run configuration from the YAML file at path, if any, with
// environment variables taking precedence over the file.
func Load(path string) (*model.PipelineSpec, error) {
	return LoadWithOverrides(path, nil)
}

// LoadWithOverrides is Load with values, keyed like "source.path", that take
// precedence over both the file and the environment.
func LoadWithOverrides(path string, overrides map[string]interface{}) (*model.PipelineSpec, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	for key, value := range overrides {
		v.Set(key, value)
	}

	var spec model.PipelineSpec
	if err := v.Unmarshal(&spec); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if spec.Source.Path == "" {
		return nil, errors.New("source.path is required")
	}
	return &spec, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("source.type", "json")
	v.SetDefault("source.path", "")
	v.SetDefault("extract.save", false)
	v.SetDefault("extract.save_path", "processed_tweet_data.csv")
	v.SetDefault("cleaning.enabled", true)
	v.SetDefault("cleaning.steps", []string{})
	v.SetDefault("cleaning.cutoff", "2020-12-31")
	v.SetDefault("cleaning.language", "en")
	v.SetDefault("validate", true)
	v.SetDefault("export.file", "")
	v.SetDefault("export.db", "")
	v.SetDefault("export.dsn", "")
	v.SetDefault("export.table", "tweets")
	v.SetDefault("sentiment", "vader")
	v.SetDefault("store_path", "pipeline.db")
	v.SetDefault("output_dir", "outputs")
	v.SetDefault("timeout", "5m")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.development", false)
	v.SetDefault("metrics.textfile", "")
}
