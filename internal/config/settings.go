package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/Veraticus/katalog/internal/common"
	"github.com/Veraticus/katalog/internal/engine"
	"github.com/Veraticus/katalog/internal/learning"
	"github.com/Veraticus/katalog/internal/similarity"
	"github.com/Veraticus/katalog/internal/websearch"
)

// EnvPrefix is the prefix of environment variables overriding settings.
const EnvPrefix = "KATALOG"

// Settings is the complete application configuration.
type Settings struct {
	Catalog  PathSettings       `mapstructure:"catalog"`
	Taxonomy PathSettings       `mapstructure:"taxonomy"`
	Database PathSettings       `mapstructure:"database"`
	Rules    PathSettings       `mapstructure:"rules"`
	Logging  LoggingSettings    `mapstructure:"logging"`
	External websearch.Config   `mapstructure:"external"`
	Learning learning.Config    `mapstructure:"learning"`
	Scoring  similarity.Weights `mapstructure:"scoring"`
	Matching engine.Config      `mapstructure:"matching"`
}

// PathSettings points at a file.
type PathSettings struct {
	Path string `mapstructure:"path"`
}

// LoggingSettings configures slog output.
type LoggingSettings struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DefaultDatabasePath returns the database location used when none is
// configured.
func DefaultDatabasePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "katalog.db"
	}
	return filepath.Join(home, ".local", "share", "katalog", "katalog.db")
}

// SetDefaults registers every setting with its default so environment
// variables can override keys that are absent from the config file.
func SetDefaults(v *viper.Viper) {
	match := engine.DefaultConfig()
	weights := similarity.DefaultWeights()
	learn := learning.DefaultConfig()
	ext := websearch.DefaultConfig()

	v.SetDefault("catalog.path", "")
	v.SetDefault("taxonomy.path", "")
	v.SetDefault("database.path", DefaultDatabasePath())
	v.SetDefault("rules.path", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("matching.mode", string(match.Mode))
	v.SetDefault("matching.top_n", match.TopN)
	v.SetDefault("matching.min_confidence", match.MinConfidence)
	v.SetDefault("matching.concurrency", match.Concurrency)
	v.SetDefault("matching.classify_first", match.ClassifyFirst)
	v.SetDefault("matching.auto_accept_threshold", match.AutoAcceptThreshold)
	v.SetDefault("matching.auto_learn", match.AutoLearn)
	v.SetDefault("matching.cache_min_confidence", match.CacheMinConfidence)
	v.SetDefault("matching.fallback_threshold", match.FallbackThreshold)
	v.SetDefault("matching.external_timeout", match.ExternalTimeout)

	v.SetDefault("scoring.phrase_weight", weights.Phrase)
	v.SetDefault("scoring.token_weight", weights.Token)
	v.SetDefault("scoring.edit_weight", weights.Edit)

	v.SetDefault("learning.approve_increment", learn.ApproveIncrement)
	v.SetDefault("learning.reject_decrement", learn.RejectDecrement)
	v.SetDefault("learning.confidence_floor", learn.ConfidenceFloor)
	v.SetDefault("learning.retention", learn.Retention)
	v.SetDefault("learning.related_limit", learn.RelatedLimit)

	v.SetDefault("external.provider", ext.Provider)
	v.SetDefault("external.api_key", "")
	v.SetDefault("external.endpoint", ext.Endpoint)
	v.SetDefault("external.query_suffix", ext.QuerySuffix)
	v.SetDefault("external.timeout", ext.Timeout)
	v.SetDefault("external.requests_per_minute", ext.RequestsPerMinute)
	v.SetDefault("external.result_count", ext.ResultCount)
	v.SetDefault("external.max_confidence", ext.MaxConfidence)
}

// BindEnv makes KATALOG_SECTION_KEY variables override section.key.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load decodes and validates the settings held by v. Paths are expanded.
func Load(v *viper.Viper) (*Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidConfig, err)
	}

	s.Catalog.Path = ExpandPath(s.Catalog.Path)
	s.Taxonomy.Path = ExpandPath(s.Taxonomy.Path)
	s.Database.Path = ExpandPath(s.Database.Path)
	s.Rules.Path = ExpandPath(s.Rules.Path)
	s.External.APIKey = os.ExpandEnv(s.External.APIKey)

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks value ranges.
func (s *Settings) Validate() error {
	if _, err := common.ParseLevel(s.Logging.Level); err != nil {
		return err
	}
	if !s.Matching.Mode.Valid() {
		return fmt.Errorf("%w: matching.mode %q", common.ErrInvalidConfig, s.Matching.Mode)
	}
	if s.Matching.MinConfidence < 0 || s.Matching.MinConfidence > 1 {
		return fmt.Errorf("%w: matching.min_confidence must be within [0, 1]", common.ErrInvalidConfig)
	}
	if s.Matching.Concurrency < 1 {
		return fmt.Errorf("%w: matching.concurrency must be positive", common.ErrInvalidConfig)
	}
	if s.Scoring.Phrase < 0 || s.Scoring.Token < 0 || s.Scoring.Edit < 0 {
		return fmt.Errorf("%w: scoring weights must not be negative", common.ErrInvalidConfig)
	}
	if f := s.Learning.ConfidenceFloor; f <= 0 || f >= 1 {
		return fmt.Errorf("%w: learning.confidence_floor must be within (0, 1)", common.ErrInvalidConfig)
	}
	return nil
}

// ExternalEnabled reports whether an external search backend is configured.
func (s *Settings) ExternalEnabled() bool {
	return strings.TrimSpace(s.External.APIKey) != ""
}
