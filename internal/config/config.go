// Package config loads the mdnotes YAML configuration.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"
)

// DefaultFile is read when no path is given.
const DefaultFile = "mdnotes.yaml"

// EnvFile is the environment variable overriding the config path.
const EnvFile = "MDNOTES_CONFIG"

// Log levels.
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Id schemes, matching notes.IDScheme.
const (
	IDSchemeTime = "time"
	IDSchemeKSID = "ksid"
)

// emailRe accepts addresses without a dotted domain such as anonymous@localhost.
var emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+$`)

// Validator is an interface for configuration validation.
type Validator interface {
	Validate() error
}

// Config is the mdnotes configuration.
type Config struct {
	DataDir  string       `yaml:"data_dir" json:"data_dir" jsonschema:"description=Storage root holding notes/ and .git"`
	LogLevel string       `yaml:"log_level" json:"log_level" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
	Author   AuthorConfig `yaml:"author" json:"author" jsonschema:"description=Identity recorded on every revision"`
	IDScheme string       `yaml:"id_scheme" json:"id_scheme" jsonschema:"enum=time,enum=ksid,description=How new note ids are generated"`
	Export   ExportConfig `yaml:"export" json:"export"`
	Watch    WatchConfig  `yaml:"watch" json:"watch"`
}

// AuthorConfig is the single user identity.
type AuthorConfig struct {
	Name  string `yaml:"name" json:"name"`
	Email string `yaml:"email" json:"email"`
}

// Validate validates the author.
func (c AuthorConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Name, validation.Required, validation.Length(1, 256)),
		validation.Field(&c.Email, validation.Required, validation.Match(emailRe).Error("must be an email address")),
	)
}

// ExportConfig configures archives.
type ExportConfig struct {
	Folder string `yaml:"folder" json:"folder" jsonschema:"description=Top level folder inside the archive"`
}

// Validate validates the export configuration.
func (c ExportConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Folder, validation.Required, validation.By(func(v any) error {
			s, _ := v.(string)
			if s == "." || s == ".." || strings.ContainsAny(s, `/\`) {
				return errors.New("must be a single path element")
			}
			return nil
		})),
	)
}

// WatchConfig configures the autosave watcher.
type WatchConfig struct {
	Debounce Duration `yaml:"debounce" json:"debounce" jsonschema:"description=Quiet period before an external edit is committed"`
}

// Validate validates the watcher configuration.
func (c WatchConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Debounce, validation.By(func(v any) error {
			if d, _ := v.(Duration); d <= 0 {
				return errors.New("must be positive")
			}
			return nil
		})),
	)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.DataDir, validation.Required),
		validation.Field(&c.LogLevel, validation.Required, validation.In(LevelDebug, LevelInfo, LevelWarn, LevelError)),
		validation.Field(&c.IDScheme, validation.Required, validation.In(IDSchemeTime, IDSchemeKSID)),
		validation.Field(&c.Author),
		validation.Field(&c.Export),
		validation.Field(&c.Watch),
	)
}

// Level returns LogLevel as a slog.Level.
func (c *Config) Level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		DataDir:  "./data",
		LogLevel: LevelInfo,
		Author: AuthorConfig{
			Name:  "Anonymous",
			Email: "anonymous@localhost",
		},
		IDScheme: IDSchemeTime,
		Export:   ExportConfig{Folder: "mdnotes-repo"},
		Watch:    WatchConfig{Debounce: Duration(500 * time.Millisecond)},
	}
}

// Load loads configuration from a YAML file with environment variable expansion.
func Load[T any](filename string, target *T) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", filename, err)
	}

	expandedData := os.ExpandEnv(string(data))

	if err := yaml.Unmarshal([]byte(expandedData), target); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", filename, err)
	}

	if validator, ok := any(target).(Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("config validation failed: %w", err)
		}
	}

	return nil
}

// LoadFile returns the defaults overlaid with filename. When filename is
// empty, $MDNOTES_CONFIG then DefaultFile are tried, and a missing default
// file yields the defaults. A missing explicit file is an error.
func LoadFile(filename string) (*Config, error) {
	cfg := NewDefaultConfig()
	explicit := true
	if filename == "" {
		filename = os.Getenv(EnvFile)
	}
	if filename == "" {
		filename = DefaultFile
		explicit = false
	}
	if _, err := os.Stat(filename); errors.Is(err, os.ErrNotExist) && !explicit {
		return cfg, nil
	}
	if err := Load(filename, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Schema returns the JSON Schema of the configuration file.
func Schema() ([]byte, error) {
	r := jsonschema.Reflector{FieldNameTag: "yaml", DoNotReference: true, ExpandedStruct: true}
	s := r.Reflect(&Config{})
	s.Title = "mdnotes configuration"
	return json.MarshalIndent(s, "", "  ")
}

// Duration is a time.Duration written as a string such as "500ms".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// JSONSchema describes Duration as a string.
func (Duration) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "string",
		Pattern:     `^([0-9]+(\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$`,
		Description: "Go duration such as 500ms or 2s",
	}
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}
