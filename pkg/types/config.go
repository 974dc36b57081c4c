package types

import "time"

// ProviderConfig holds shared settings for the generation backends.
type ProviderConfig struct {
	// Timeout is the HTTP request timeout for one generation call.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// RateLimitRetries is the number of back-off retries on HTTP 429 before
	// the call is reported as rate limited (default 3).
	RateLimitRetries int `json:"rate_limit_retries" yaml:"rate_limit_retries" mapstructure:"rate_limit_retries"`

	// MaxTokens bounds the Anthropic response length (default 1024).
	MaxTokens int `json:"max_tokens" yaml:"max_tokens" mapstructure:"max_tokens"`
}

// CouncilConfig selects the prompt set and the council schema.
type CouncilConfig struct {
	// Mode names the prompt set (default "ideation").
	Mode string `json:"mode" yaml:"mode" mapstructure:"mode"`

	// SchemaFile optionally replaces the embedded council schema.
	SchemaFile string `json:"schema_file,omitempty" yaml:"schema_file,omitempty" mapstructure:"schema_file"`
}

// ServerConfig holds the HTTP API settings.
type ServerConfig struct {
	// Addr is the listen address (default "127.0.0.1:8080").
	Addr string `json:"addr" yaml:"addr" mapstructure:"addr"`

	// BasePath prefixes every route (default "/api").
	BasePath string `json:"base_path" yaml:"base_path" mapstructure:"base_path"`

	// ShutdownTimeout bounds the graceful drain on SIGINT/SIGTERM.
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

// LogConfig controls the structured logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level" yaml:"level" mapstructure:"level"`

	// Format is "text" or "json".
	Format string `json:"format" yaml:"format" mapstructure:"format"`
}

// AppConfig groups every setting read by the research-council CLI.
type AppConfig struct {
	// Workspace is the directory holding the database, mailboxes and
	// exported ideas.
	Workspace string `json:"workspace" yaml:"workspace" mapstructure:"workspace"`

	// SecretsDir holds plain-text fallback API keys (e.g. openai-api-key).
	SecretsDir string `json:"secrets_dir" yaml:"secrets_dir" mapstructure:"secrets_dir"`

	Provider ProviderConfig `json:"provider" yaml:"provider" mapstructure:"provider"`
	Council  CouncilConfig  `json:"council" yaml:"council" mapstructure:"council"`
	Server   ServerConfig   `json:"server" yaml:"server" mapstructure:"server"`
	Log      LogConfig      `json:"log" yaml:"log" mapstructure:"log"`
}
