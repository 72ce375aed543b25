// Package config loads pipeline configuration from defaults, an optional config file, environment variables, and command line flags.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/saylorsolutions/fieldparser/pkg/fields"
	"github.com/saylorsolutions/fieldparser/pkg/iterator"
	"github.com/saylorsolutions/fieldparser/plugin"
	"github.com/saylorsolutions/fieldparser/runtime"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	EnvPrefix  = "FIELDPARSER"
	configName = ".fieldparser"
)

const (
	KeyLogLevel        = "log_level"
	KeyTag             = "tag"
	KeyJoinPatterns    = "join_patterns"
	KeySources         = "sources"
	KeySinks           = "sinks"
	KeySource          = "source"
	KeySink            = "sink"
	KeyRemoveTagPrefix = "remove_tag_prefix"
	KeyAddTagPrefix    = "add_tag_prefix"
	KeyParseKey        = "parse_key"
	KeyFieldsKey       = "fields_key"
	KeyPattern         = "pattern"
	KeyStrictKeyValue  = "strict_key_value"
)

var (
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrReadConfig    = errors.New("failed to read config file")
)

var (
	DefaultSources = []runtime.Endpoint{{Class: "std.In"}}
	DefaultSinks   = []runtime.Endpoint{{Class: "std.Out"}}
)

// Config is the complete configuration of a pipeline run.
// Engine options are read from the top level, alongside the pipeline settings.
type Config struct {
	LogLevel     string             `mapstructure:"log_level" json:"log_level"`
	Tag          string             `mapstructure:"tag" json:"tag"`
	JoinPatterns []string           `mapstructure:"join_patterns" json:"join_patterns,omitempty"`
	Sources      []runtime.Endpoint `mapstructure:"sources" json:"sources"`
	Sinks        []runtime.Endpoint `mapstructure:"sinks" json:"sinks"`
	Fields       fields.Options     `mapstructure:",squash" json:"fields"`
}

// New creates a viper instance with defaults registered, and environment overrides enabled.
func New() *viper.Viper {
	v := viper.New()
	defaults := fields.DefaultOptions()
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyTag, "")
	v.SetDefault(KeyJoinPatterns, []string{})
	v.SetDefault(KeySource, []string{})
	v.SetDefault(KeySink, []string{})
	v.SetDefault(KeyRemoveTagPrefix, defaults.RemoveTagPrefix)
	v.SetDefault(KeyAddTagPrefix, defaults.AddTagPrefix)
	v.SetDefault(KeyParseKey, defaults.ParseKey)
	v.SetDefault(KeyFieldsKey, defaults.FieldsKey)
	v.SetDefault(KeyPattern, defaults.Pattern)
	v.SetDefault(KeyStrictKeyValue, defaults.StrictKeyValue)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	return v
}

// RegisterFlags adds a flag for every scalar setting to flags.
// Sources and sinks may be given as repeated --source and --sink flags, like --source "file.Tail /var/log/app.log".
func RegisterFlags(flags *pflag.FlagSet) {
	defaults := fields.DefaultOptions()
	flags.String("log-level", "info", "log level: trace, debug, info, warn, error")
	flags.String("tag", "", "tag for entries that don't have one")
	flags.StringSlice("join-pattern", nil, "regular expression matching the first line of a multi-line record (repeatable)")
	flags.StringArray("source", nil, `source as "CLASS [ARG...]", like "file.Tail app.log" (repeatable, default std.In)`)
	flags.StringArray("sink", nil, `sink as "CLASS [ARG...]", like "file.File out.json 644" (repeatable, default std.Out)`)
	flags.String("remove-tag-prefix", "", "prefix removed from the tag")
	flags.String("add-tag-prefix", "", "prefix added to the tag")
	flags.String("parse-key", defaults.ParseKey, "field containing the text to extract fields from")
	flags.String("fields-key", "", "nest extracted fields under this field")
	flags.String("pattern", defaults.Pattern, "extraction pattern, with the key in group 1 and value in group 2")
	flags.Bool("strict-key-value", false, "parse the text as a logfmt line instead of using the pattern")
}

// BindFlags binds flags registered with RegisterFlags to their configuration keys.
// Only flags that are explicitly set override the config file and environment.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	bindings := map[string]string{
		KeyLogLevel:        "log-level",
		KeyTag:             "tag",
		KeyJoinPatterns:    "join-pattern",
		KeySource:          "source",
		KeySink:            "sink",
		KeyRemoveTagPrefix: "remove-tag-prefix",
		KeyAddTagPrefix:    "add-tag-prefix",
		KeyParseKey:        "parse-key",
		KeyFieldsKey:       "fields-key",
		KeyPattern:         "pattern",
		KeyStrictKeyValue:  "strict-key-value",
	}
	for key, name := range bindings {
		flag := flags.Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("binding flag '%s': %w", name, err)
		}
	}
	return nil
}

// ReadFile reads the named config file, or searches the working and home directories for .fieldparser.{yaml,json,toml} if it's empty.
// A missing config file is only an error if one was named.
func ReadFile(v *viper.Viper, filename, home string) error {
	if filename != "" {
		v.SetConfigFile(filename)
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath(".")
		if home != "" {
			v.AddConfigPath(home)
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if filename == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrReadConfig, err)
	}
	return nil
}

// Load decodes and validates the configuration held by v.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.applyEndpointFlags(v.GetStringSlice(KeySource), v.GetStringSlice(KeySink)); err != nil {
		return cfg, err
	}
	if len(cfg.Sources) == 0 {
		cfg.Sources = append([]runtime.Endpoint{}, DefaultSources...)
	}
	if len(cfg.Sinks) == 0 {
		cfg.Sinks = append([]runtime.Endpoint{}, DefaultSinks...)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEndpointFlags(sources, sinks []string) error {
	if len(sources) > 0 {
		eps, err := ParseEndpoints(sources)
		if err != nil {
			return err
		}
		c.Sources = eps
	}
	if len(sinks) > 0 {
		eps, err := ParseEndpoints(sinks)
		if err != nil {
			return err
		}
		c.Sinks = eps
	}
	return nil
}

// ParseEndpoints parses endpoint references of the form "CLASS [ARG...]".
func ParseEndpoints(refs []string) ([]runtime.Endpoint, error) {
	eps := make([]runtime.Endpoint, 0, len(refs))
	for _, ref := range refs {
		parts := strings.Fields(ref)
		if len(parts) == 0 {
			return nil, fmt.Errorf("%w: empty endpoint", ErrInvalidConfig)
		}
		eps = append(eps, runtime.Endpoint{Class: parts[0], Args: parts[1:]})
	}
	return eps, nil
}

// Validate reports every problem found in c, each wrapping ErrInvalidConfig.
func (c Config) Validate() error {
	var errs []error
	if hclog.LevelFromString(c.LogLevel) == hclog.NoLevel {
		errs = append(errs, fmt.Errorf("%w: unknown log level '%s'", ErrInvalidConfig, c.LogLevel))
	}
	if _, err := fields.Compile(c.Fields.Pattern); c.Fields.Pattern != "" && err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrInvalidConfig, err))
	}
	if _, err := iterator.CompileJoinPatterns(c.JoinPatterns...); err != nil {
		errs = append(errs, fmt.Errorf("%w: %w", ErrInvalidConfig, err))
	}
	for _, ep := range append(append([]runtime.Endpoint{}, c.Sources...), c.Sinks...) {
		if _, _, err := plugin.ParseClass(ep.Class); err != nil {
			errs = append(errs, fmt.Errorf("%w: %w", ErrInvalidConfig, err))
		}
	}
	return errors.Join(errs...)
}

// Level returns the configured log level.
func (c Config) Level() hclog.Level {
	return hclog.LevelFromString(c.LogLevel)
}

// Pipeline converts c to a runtime.Pipeline.
func (c Config) Pipeline() runtime.Pipeline {
	return runtime.Pipeline{
		Tag:          c.Tag,
		JoinPatterns: c.JoinPatterns,
		Sources:      c.Sources,
		Sinks:        c.Sinks,
		Fields:       c.Fields,
	}
}
