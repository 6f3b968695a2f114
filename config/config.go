// Package config resolves the client settings. Sources are applied in
// order, later ones winning: defaults, the YAML file, environment
// variables, command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	DefaultBaseURL    = "http://localhost:5000/api"
	DefaultLanguage   = "en-US"
	DefaultRecognizer = "mic"
	DefaultFormat     = "wav"
)

type Config struct {
	BaseURL    string `yaml:"base_url" validate:"required,url"`
	Language   string `yaml:"language" validate:"required"`
	Recognizer string `yaml:"recognizer" validate:"oneof=mic none"`
	Format     string `yaml:"format" validate:"oneof=wav flac"`
	Device     string `yaml:"device"`
	Gain       int    `yaml:"gain" validate:"gte=1,lte=10"`
	PushToTalk bool   `yaml:"push_to_talk"`
	LogPath    string `yaml:"log_path"`

	// Path is the file that was read, empty when none existed.
	Path    string   `yaml:"-"`
	Sources []string `yaml:"-"`
}

// Overrides are the command-line values. Zero values are unset.
type Overrides struct {
	ConfigPath string
	BaseURL    string
	Language   string
	Recognizer string
	Format     string
	Device     string
	Gain       int
	PushToTalk bool
	LogPath    string
}

var ErrInvalid = errors.New("invalid configuration")

func Defaults() *Config {
	return &Config{
		BaseURL:    DefaultBaseURL,
		Language:   DefaultLanguage,
		Recognizer: DefaultRecognizer,
		Format:     DefaultFormat,
		Gain:       1,
	}
}

// ResolvePath picks the config file location: flag, then SHOPVOX_CONFIG,
// then the user config directory. explicit is false for the fallback,
// whose absence is not an error.
func ResolvePath(flagPath string) (path string, explicit bool, err error) {
	if flagPath != "" {
		return flagPath, true, nil
	}
	if env := os.Getenv("SHOPVOX_CONFIG"); env != "" {
		return env, true, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", false, err
	}
	return filepath.Join(dir, "shopvox", "config.yaml"), false, nil
}

func Load(ov Overrides) (*Config, error) {
	cfg := Defaults()
	cfg.Sources = []string{"defaults"}

	path, explicit, err := ResolvePath(ov.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	switch err := loadFile(path, cfg); {
	case err == nil:
		cfg.Path = path
		cfg.Sources = append(cfg.Sources, path)
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, err
	}

	if applyEnv(cfg) {
		cfg.Sources = append(cfg.Sources, "environment")
	}
	if applyOverrides(cfg, ov) {
		cfg.Sources = append(cfg.Sources, "flags")
	}

	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	cfg.Recognizer = strings.ToLower(cfg.Recognizer)
	cfg.Format = strings.ToLower(cfg.Format)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) bool {
	applied := false
	// VITE_API_URL is the server root used by the web client.
	if v := os.Getenv("VITE_API_URL"); v != "" {
		cfg.BaseURL = strings.TrimRight(v, "/") + "/api"
		applied = true
	}
	if v := os.Getenv("SHOPVOX_API_URL"); v != "" {
		cfg.BaseURL = v
		applied = true
	}
	if v := os.Getenv("SHOPVOX_LANG"); v != "" {
		cfg.Language = v
		applied = true
	}
	return applied
}

func applyOverrides(cfg *Config, ov Overrides) bool {
	applied := false
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
			applied = true
		}
	}
	set(&cfg.BaseURL, ov.BaseURL)
	set(&cfg.Language, ov.Language)
	set(&cfg.Recognizer, ov.Recognizer)
	set(&cfg.Format, ov.Format)
	set(&cfg.Device, ov.Device)
	set(&cfg.LogPath, ov.LogPath)
	if ov.Gain != 0 {
		cfg.Gain = ov.Gain
		applied = true
	}
	if ov.PushToTalk {
		cfg.PushToTalk = true
		applied = true
	}
	return applied
}

var validate = validator.New()

func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
}

var yamlNames = map[string]string{
	"BaseURL":    "base_url",
	"Language":   "language",
	"Recognizer": "recognizer",
	"Format":     "format",
	"Gain":       "gain",
}

func fieldMessage(fe validator.FieldError) string {
	name := yamlNames[fe.Field()]
	if name == "" {
		name = strings.ToLower(fe.Field())
	}
	switch fe.Tag() {
	case "required":
		return name + " is required"
	case "url":
		return fmt.Sprintf("%s must be a URL, got %q", name, fe.Value())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", name, fe.Param(), fe.Value())
	case "gte", "lte":
		return fmt.Sprintf("%s out of range: %v", name, fe.Value())
	default:
		return name + " is invalid"
	}
}

// Diff describes the settings that differ between two configs.
func Diff(old, new *Config) []string {
	var changes []string
	add := func(name string, a, b any) {
		if a != b {
			changes = append(changes, fmt.Sprintf("%s: %v -> %v", name, a, b))
		}
	}
	add("base_url", old.BaseURL, new.BaseURL)
	add("language", old.Language, new.Language)
	add("recognizer", old.Recognizer, new.Recognizer)
	add("format", old.Format, new.Format)
	add("device", old.Device, new.Device)
	add("gain", old.Gain, new.Gain)
	add("push_to_talk", old.PushToTalk, new.PushToTalk)
	return changes
}
