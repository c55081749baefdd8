// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/jeranaias/ragdesk-tui/internal/model"
	"github.com/jeranaias/ragdesk-tui/internal/util"
)

// CurrentVersion is written into freshly generated config files.
const CurrentVersion = "1"

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete ragdesk configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	API       APIConfig       `toml:"api" json:"api"`
	Chat      ChatSection     `toml:"chat" json:"chat"`
	Polling   PollingConfig   `toml:"polling" json:"polling"`
	Upload    UploadConfig    `toml:"upload" json:"upload"`
	Cache     CacheConfig     `toml:"cache" json:"cache"`
	Logging   LoggingConfig   `toml:"logging" json:"logging"`
	Telemetry TelemetryConfig `toml:"telemetry" json:"telemetry"`
	UI        UIConfig        `toml:"ui" json:"ui"`
	Storage   StorageConfig   `toml:"storage" json:"storage"`
}

// APIConfig configures the backend HTTP client.
type APIConfig struct {
	BaseURL     string  `toml:"base_url" json:"base_url" validate:"required,url"`
	TimeoutSecs int     `toml:"timeout_secs" json:"timeout_secs" validate:"gte=1,lte=600"`
	RateLimit   float64 `toml:"rate_limit" json:"rate_limit" validate:"gte=0"`
	RateBurst   int     `toml:"rate_burst" json:"rate_burst" validate:"gte=1"`
}

// ChatSection holds the defaults a new chat session starts with.
type ChatSection struct {
	UseRAG    bool   `toml:"use_rag" json:"use_rag"`
	Mode      string `toml:"mode" json:"mode" validate:"oneof=brief extended"`
	ModelName string `toml:"model_name" json:"model_name" validate:"required"`
}

// PollingConfig holds the recurring-request intervals.
type PollingConfig struct {
	ReloadIntervalSecs   int `toml:"reload_interval_secs" json:"reload_interval_secs" validate:"gte=1"`
	HealthIntervalSecs   int `toml:"health_interval_secs" json:"health_interval_secs" validate:"gte=1"`
	DashboardRefreshSecs int `toml:"dashboard_refresh_secs" json:"dashboard_refresh_secs" validate:"gte=0"`
}

// UploadConfig limits what the client offers to upload.
type UploadConfig struct {
	MaxSizeMB         int      `toml:"max_size_mb" json:"max_size_mb" validate:"gte=1,lte=1024"`
	AllowedExtensions []string `toml:"allowed_extensions" json:"allowed_extensions" validate:"min=1,dive,required"`
	WatchDir          string   `toml:"watch_dir" json:"watch_dir"`
	DebounceMillis    int      `toml:"debounce_millis" json:"debounce_millis" validate:"gte=0"`
}

// CacheConfig sets the client-side cache lifetimes.
type CacheConfig struct {
	DocumentsTTLSecs int `toml:"documents_ttl_secs" json:"documents_ttl_secs" validate:"gte=0"`
	ReportTTLSecs    int `toml:"report_ttl_secs" json:"report_ttl_secs" validate:"gte=0"`
}

// LoggingConfig configures the rotating file logger.
type LoggingConfig struct {
	Level      string `toml:"level" json:"level" validate:"oneof=debug info warn error"`
	File       string `toml:"file" json:"file"`
	MaxSizeMB  int    `toml:"max_size_mb" json:"max_size_mb" validate:"gte=1"`
	MaxBackups int    `toml:"max_backups" json:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `toml:"max_age_days" json:"max_age_days" validate:"gte=0"`
	Compress   bool   `toml:"compress" json:"compress"`
}

// TelemetryConfig configures tracing export and the optional metrics endpoint.
type TelemetryConfig struct {
	Enabled      bool   `toml:"enabled" json:"enabled"`
	ServiceName  string `toml:"service_name" json:"service_name" validate:"required"`
	OTLPEndpoint string `toml:"otlp_endpoint" json:"otlp_endpoint"`
	Insecure     bool   `toml:"insecure" json:"insecure"`
	MetricsAddr  string `toml:"metrics_addr" json:"metrics_addr"`
}

// UIConfig holds display preferences.
type UIConfig struct {
	Theme       string `toml:"theme" json:"theme" validate:"oneof=dark light auto"`
	WordWrap    int    `toml:"word_wrap" json:"word_wrap" validate:"gte=20,lte=400"`
	ShowSources bool   `toml:"show_sources" json:"show_sources"`
	ShowMetrics bool   `toml:"show_metrics" json:"show_metrics"`
}

// StorageConfig configures the local conversation history.
type StorageConfig struct {
	HistoryPath string `toml:"history_path" json:"history_path"`
	Autosave    bool   `toml:"autosave" json:"autosave"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns the built-in configuration.
func Default() *Config {
	chat := model.DefaultChatConfig()
	return &Config{
		Version: CurrentVersion,
		API: APIConfig{
			BaseURL:     "http://localhost:8000",
			TimeoutSecs: 60,
			RateLimit:   10,
			RateBurst:   5,
		},
		Chat: ChatSection{
			UseRAG:    chat.UseRAG,
			Mode:      string(chat.Mode),
			ModelName: chat.ModelName,
		},
		Polling: PollingConfig{
			ReloadIntervalSecs:   3,
			HealthIntervalSecs:   30,
			DashboardRefreshSecs: 0,
		},
		Upload: UploadConfig{
			MaxSizeMB:         10,
			AllowedExtensions: []string{"txt", "pdf"},
			DebounceMillis:    500,
		},
		Cache: CacheConfig{
			DocumentsTTLSecs: 30,
			ReportTTLSecs:    15,
		},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
			Compress:   true,
		},
		Telemetry: TelemetryConfig{
			ServiceName: "ragdesk",
			Insecure:    true,
		},
		UI: UIConfig{
			Theme:       "auto",
			WordWrap:    80,
			ShowSources: true,
			ShowMetrics: true,
		},
		Storage: StorageConfig{
			Autosave: true,
		},
	}
}

// SetDefaults fills zero values that would otherwise fail validation.
func (c *Config) SetDefaults() {
	d := Default()
	if c.Version == "" {
		c.Version = d.Version
	}
	if c.API.BaseURL == "" {
		c.API.BaseURL = d.API.BaseURL
	}
	c.API.BaseURL = strings.TrimRight(c.API.BaseURL, "/")
	if c.API.TimeoutSecs == 0 {
		c.API.TimeoutSecs = d.API.TimeoutSecs
	}
	if c.API.RateBurst == 0 {
		c.API.RateBurst = d.API.RateBurst
	}
	if c.Chat.Mode == "" {
		c.Chat.Mode = d.Chat.Mode
	}
	if c.Chat.ModelName == "" {
		c.Chat.ModelName = d.Chat.ModelName
	}
	if c.Polling.ReloadIntervalSecs == 0 {
		c.Polling.ReloadIntervalSecs = d.Polling.ReloadIntervalSecs
	}
	if c.Polling.HealthIntervalSecs == 0 {
		c.Polling.HealthIntervalSecs = d.Polling.HealthIntervalSecs
	}
	if c.Upload.MaxSizeMB == 0 {
		c.Upload.MaxSizeMB = d.Upload.MaxSizeMB
	}
	if len(c.Upload.AllowedExtensions) == 0 {
		c.Upload.AllowedExtensions = d.Upload.AllowedExtensions
	}
	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
	c.Logging.Level = strings.ToLower(c.Logging.Level)
	if c.Logging.MaxSizeMB == 0 {
		c.Logging.MaxSizeMB = d.Logging.MaxSizeMB
	}
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = d.Telemetry.ServiceName
	}
	if c.UI.Theme == "" {
		c.UI.Theme = d.UI.Theme
	}
	if c.UI.WordWrap == 0 {
		c.UI.WordWrap = d.UI.WordWrap
	}
}

// ChatDefaults converts the chat section into a session config.
func (c *Config) ChatDefaults() model.ChatConfig {
	return model.ChatConfig{
		UseRAG:    c.Chat.UseRAG,
		Mode:      model.Mode(c.Chat.Mode),
		ModelName: c.Chat.ModelName,
	}
}

// Timeout returns the per-request timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.API.TimeoutSecs) * time.Second
}

// ReloadInterval returns the reload status poll interval.
func (c *Config) ReloadInterval() time.Duration {
	return time.Duration(c.Polling.ReloadIntervalSecs) * time.Second
}

// HealthInterval returns the health check interval.
func (c *Config) HealthInterval() time.Duration {
	return time.Duration(c.Polling.HealthIntervalSecs) * time.Second
}

// MaxUploadBytes returns the upload size limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Upload.MaxSizeMB) * 1024 * 1024
}

// LogPath returns the log file, defaulting to ~/.ragdesk/logs/ragdesk.log.
func (c *Config) LogPath() string {
	if c.Logging.File != "" {
		return c.Logging.File
	}
	return util.HomePath("logs", "ragdesk.log")
}

// HistoryPath returns the sqlite history database path.
func (c *Config) HistoryPath() string {
	if c.Storage.HistoryPath != "" {
		return c.Storage.HistoryPath
	}
	return util.HomePath("history.db")
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the ragdesk configuration directory path.
func ConfigDir() string {
	return util.HomePath()
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() string {
	return filepath.Join(ConfigDir(), "config.json")
}

// ensureSecurePermissions tightens config files to 0600.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("fix permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load reads configuration from path, or from the default locations when
// path is empty (TOML first, then JSON). A missing file is not an error.
// Overrides from .env and the environment are applied before validation.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		for _, candidate := range []string{ConfigPathTOML(), ConfigPathJSON()} {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		if err := decodeFile(cfg, path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	if err := LoadDotEnv(".env"); err != nil {
		return nil, err
	}
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func decodeFile(cfg *Config, path string) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	if strings.HasSuffix(path, ".json") {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("decode JSON config %s: %w", path, err)
		}
		return nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("decode TOML config %s: %w", path, err)
	}
	return nil
}

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is ignored.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// ApplyEnvOverrides applies environment variable overrides.
//
// Supported environment variables:
//   - RAGDESK_API_URL: overrides api.base_url
//   - RAGDESK_MODEL: overrides chat.model_name
//   - RAGDESK_MODE: overrides chat.mode
//   - RAGDESK_USE_RAG: "1"/"true"/"yes" enables retrieval, anything else disables it
//   - RAGDESK_LOG_LEVEL: overrides logging.level
//   - OTEL_EXPORTER_OTLP_ENDPOINT: sets telemetry.otlp_endpoint and enables tracing
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("RAGDESK_API_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("RAGDESK_MODEL"); v != "" {
		c.Chat.ModelName = v
	}
	if v := os.Getenv("RAGDESK_MODE"); v != "" {
		c.Chat.Mode = strings.ToLower(v)
	}
	if v := os.Getenv("RAGDESK_USE_RAG"); v != "" {
		c.Chat.UseRAG = parseBool(v)
	}
	if v := os.Getenv("RAGDESK_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); v != "" {
		c.Telemetry.OTLPEndpoint = v
		c.Telemetry.Enabled = true
	}
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes the configuration to path (TOML unless it ends in .json),
// or to the default TOML location when path is empty. Files are 0600.
func Save(cfg *Config, path string) error {
	if path == "" {
		path = ConfigPathTOML()
	}

	var data []byte
	if strings.HasSuffix(path, ".json") {
		b, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return fmt.Errorf("encode config: %w", err)
		}
		data = b
	} else {
		var sb strings.Builder
		sb.WriteString("# ragdesk configuration file\n")
		sb.WriteString("# Generated by ragdesk - edit with care\n\n")
		if err := toml.NewEncoder(&sb).Encode(cfg); err != nil {
			return fmt.Errorf("encode config: %w", err)
		}
		data = []byte(sb.String())
	}

	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("toml"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Validate checks the struct tags and returns ValidateErrors keyed by the
// dot-notation config key.
func (c *Config) Validate() error {
	err := structValidator().Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	errs := make(ValidateErrors, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if i := strings.IndexByte(field, '.'); i >= 0 {
			field = field[i+1:]
		}
		errs = append(errs, ValidationError{Field: field, Message: describeTag(fe)})
	}
	return errs
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "url":
		return fmt.Sprintf("invalid URL %q", fe.Value())
	case "oneof":
		return fmt.Sprintf("invalid value %q, must be one of: %s", fe.Value(), strings.ReplaceAll(fe.Param(), " ", ", "))
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "min":
		return fmt.Sprintf("must have at least %s entries", fe.Param())
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g. "api.base_url").
func (c *Config) Get(key string) (any, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set assigns a configuration value using dot notation. String values are
// converted to the field's type; slices accept comma-separated lists.
func (c *Config) Set(key string, value any) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	if strings.TrimSpace(key) == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")
	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		field, ok := fieldByTag(v, part)
		if !ok {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a section", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

func fieldByTag(v reflect.Value, name string) (reflect.Value, bool) {
	name = strings.ReplaceAll(strings.ToLower(name), "-", "_")
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		tag := strings.SplitN(t.Field(i).Tag.Get("toml"), ",", 2)[0]
		if tag == name {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

func setFieldValue(field reflect.Value, value any) error {
	if s, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(s)
			return nil
		case reflect.Int, reflect.Int64:
			n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(n)
			return nil
		case reflect.Float64:
			f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return fmt.Errorf("invalid float value: %v", err)
			}
			field.SetFloat(f)
			return nil
		case reflect.Bool:
			field.SetBool(parseBool(s))
			return nil
		case reflect.Slice:
			if field.Type().Elem().Kind() == reflect.String {
				var items []string
				for _, item := range strings.Split(s, ",") {
					if item = strings.TrimSpace(item); item != "" {
						items = append(items, item)
					}
				}
				field.Set(reflect.ValueOf(items))
				return nil
			}
		}
	}

	val := reflect.ValueOf(value)
	if !val.IsValid() {
		return fmt.Errorf("cannot assign nil to %s", field.Type())
	}
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// Keys returns every configuration key in dot notation.
func Keys() []string {
	var keys []string
	var walk func(t reflect.Type, prefix string)
	walk = func(t reflect.Type, prefix string) {
		for i := 0; i < t.NumField(); i++ {
			tag := strings.SplitN(t.Field(i).Tag.Get("toml"), ",", 2)[0]
			if tag == "" || tag == "-" {
				continue
			}
			if t.Field(i).Type.Kind() == reflect.Struct {
				walk(t.Field(i).Type, prefix+tag+".")
				continue
			}
			keys = append(keys, prefix+tag)
		}
	}
	walk(reflect.TypeOf(Config{}), "")
	return keys
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Upload.AllowedExtensions = append([]string(nil), c.Upload.AllowedExtensions...)
	return &clone
}

// String returns the configuration as indented JSON.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the process-wide configuration, loading it on first access.
// Load failures fall back to defaults with a warning on stderr.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load("")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
			cfg = Default()
		}
		globalConfigMu.Lock()
		if globalConfig == nil {
			globalConfig = cfg
		}
		globalConfigMu.Unlock()
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// SetGlobal replaces the process-wide configuration.
func SetGlobal(cfg *Config) {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting resets the global config state between tests.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
