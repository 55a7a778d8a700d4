package config

// Config holds namefind configuration.
// Stored at: ./config.yaml or {home}/config.yaml
type Config struct {
	Detection DetectionCfg `mapstructure:"detection" yaml:"detection"`
	Workers   int          `mapstructure:"workers" yaml:"workers"`     // CPU pool size (0 = runtime.NumCPU())
	LogLevel  string       `mapstructure:"log_level" yaml:"log_level"` // debug, info, warn, error
}

// DetectionCfg configures a detection cycle. Every field is re-read and
// revalidated at the start of each cycle.
type DetectionCfg struct {
	// EntityTypes are the annotation type names the panel manages.
	EntityTypes []string `mapstructure:"entity_types" yaml:"entity_types"`
	// SentenceType is the annotation type whose annotations bound decoding.
	SentenceType string `mapstructure:"sentence_type" yaml:"sentence_type"`
	// AdditionalSentenceTypes are decoded as sentences too (e.g. headings).
	AdditionalSentenceTypes []string `mapstructure:"additional_sentence_types" yaml:"additional_sentence_types"`
	// TokenType is the annotation type of tokens.
	TokenType string `mapstructure:"token_type" yaml:"token_type"`
	// ModelPaths holds one model file per entity type, in the same order.
	// Relative paths resolve against {home}/models; ${ENV_VAR} is expanded.
	ModelPaths []string `mapstructure:"model_paths" yaml:"model_paths"`

	RecallBoosting           bool `mapstructure:"recall_boosting" yaml:"recall_boosting"`
	IgnoreShortTokens        bool `mapstructure:"ignore_short_tokens" yaml:"ignore_short_tokens"`
	OnlyAllLetterTokens      bool `mapstructure:"only_all_letter_tokens" yaml:"only_all_letter_tokens"`
	OnlyInitialCapitalTokens bool `mapstructure:"only_initial_capital_tokens" yaml:"only_initial_capital_tokens"`

	// DiscardStaleResults drops results of a cycle superseded by a newer one.
	// When false the last job to complete wins.
	DiscardStaleResults bool `mapstructure:"discard_stale_results" yaml:"discard_stale_results"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Detection: DetectionCfg{
			EntityTypes:              []string{"PERSON"},
			SentenceType:             "Sentence",
			AdditionalSentenceTypes:  []string{},
			TokenType:                "Token",
			ModelPaths:               []string{"person.json"},
			RecallBoosting:           true,
			IgnoreShortTokens:        true,
			OnlyAllLetterTokens:      true,
			OnlyInitialCapitalTokens: true,
			DiscardStaleResults:      true,
		},
		Workers:  0,
		LogLevel: "info",
	}
}

// Clone returns a deep copy so callers can hold a snapshot across reloads.
func (d DetectionCfg) Clone() DetectionCfg {
	out := d
	out.EntityTypes = append([]string(nil), d.EntityTypes...)
	out.AdditionalSentenceTypes = append([]string(nil), d.AdditionalSentenceTypes...)
	out.ModelPaths = append([]string(nil), d.ModelPaths...)
	return out
}
