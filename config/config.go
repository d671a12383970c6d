// Package config provides configuration management for the penf-ner recognizer.
// It supports loading configuration from YAML files, environment variables, and command-line flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/otherjamesbrown/penf-ner/pkg/db"
	"github.com/otherjamesbrown/penf-ner/pkg/kb"
	"github.com/otherjamesbrown/penf-ner/pkg/lang"
	"github.com/otherjamesbrown/penf-ner/pkg/logging"
	"github.com/otherjamesbrown/penf-ner/pkg/mentions/resolver"
)

// Default configuration values.
const (
	DefaultLanguage       = "en"
	DefaultBackend        = kb.BackendTSV
	DefaultConnectTimeout = kb.DefaultConnectTimeout
	DefaultPollInterval   = kb.DefaultPollInterval
	DefaultRedisTTL       = 7 * 24 * time.Hour
	DefaultRedisPrefix    = "penf-ner"
	DefaultLogLevel       = "info"
	DefaultConfigDir      = ".penf-ner"
	DefaultConfigFile     = "config.yaml"

	// EnvConfigDir overrides the configuration directory.
	EnvConfigDir = "PENF_NER_CONFIG_DIR"
)

// PostgresConfig holds the knowledge base database settings. The password is
// never stored here; see the credentials package.
type PostgresConfig struct {
	Host     string `yaml:"host,omitempty"`
	Port     int    `yaml:"port,omitempty"`
	Database string `yaml:"database,omitempty"`
	User     string `yaml:"user,omitempty"`
	SSLMode  string `yaml:"sslmode,omitempty"`
}

// KBConfig selects the knowledge base backend.
type KBConfig struct {
	// Backend is one of tsv, sqlite or postgres.
	Backend string `yaml:"backend"`

	// Path is the TSV or SQLite file. Supports ~ for home directory expansion.
	Path string `yaml:"path,omitempty"`

	// ExpectedVersion, when set, must match the loaded knowledge base version.
	ExpectedVersion string `yaml:"expected_version,omitempty"`

	// ConnectTimeout bounds the whole load, retries included.
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	// PollInterval is the wait between load attempts.
	PollInterval time.Duration `yaml:"poll_interval"`

	Postgres PostgresConfig `yaml:"postgres,omitempty"`
}

// RedisConfig holds the name index cache settings.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr,omitempty"`
	Password string        `yaml:"password,omitempty"`
	DB       int           `yaml:"db,omitempty"`
	TTL      time.Duration `yaml:"ttl"`
	Prefix   string        `yaml:"prefix,omitempty"`
}

// MatcherConfig selects the fragment matcher. Command wins over Dictionary.
type MatcherConfig struct {
	// Dictionary is a "fragment TAB ids" file loaded in memory.
	Dictionary string `yaml:"dictionary,omitempty"`

	// LowercaseDictionary is used instead of Dictionary when matching
	// lowercased text. Unset lowercases Dictionary on load.
	LowercaseDictionary string `yaml:"lowercase_dictionary,omitempty"`

	// Command runs an external matcher process that reads text on stdin.
	Command string `yaml:"command,omitempty"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level string `yaml:"level"`

	// JSON forces JSON (true) or console (false) output. Unset picks JSON
	// when stderr is not a terminal.
	JSON *bool `yaml:"json,omitempty"`
}

// Config holds the recognizer configuration settings.
type Config struct {
	// Language is the text language code (en, cs).
	Language string `yaml:"language"`

	// InputDir holds the dictionary and knowledge base files when their
	// paths are relative.
	InputDir string `yaml:"input_dir,omitempty"`

	Lowercase        bool `yaml:"lowercase,omitempty"`
	RemoveAccent     bool `yaml:"remove_accent,omitempty"`
	MergeOverlapping bool `yaml:"merge_overlapping,omitempty"`
	SplitIntervals   bool `yaml:"split_intervals"`
	ShowURI          bool `yaml:"show_uri,omitempty"`

	// CopulaWindow bounds the copula search after a mention, in characters.
	CopulaWindow int `yaml:"copula_window"`

	KB      KBConfig      `yaml:"kb"`
	Redis   RedisConfig   `yaml:"redis,omitempty"`
	Matcher MatcherConfig `yaml:"matcher,omitempty"`
	Log     LogConfig     `yaml:"log"`

	// MetricsAddr serves /metrics and /version in daemon mode. Empty disables it.
	MetricsAddr string `yaml:"metrics_addr,omitempty"`

	// HealthAddr serves the gRPC health service in daemon mode. Empty disables it.
	HealthAddr string `yaml:"health_addr,omitempty"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Language:       DefaultLanguage,
		SplitIntervals: true,
		CopulaWindow:   resolver.DefaultCopulaWindow,
		KB: KBConfig{
			Backend:        DefaultBackend,
			ConnectTimeout: DefaultConnectTimeout,
			PollInterval:   DefaultPollInterval,
		},
		Redis: RedisConfig{
			Addr:   "localhost:6379",
			TTL:    DefaultRedisTTL,
			Prefix: DefaultRedisPrefix,
		},
		Log: LogConfig{Level: DefaultLogLevel},
	}
}

// ConfigDir returns the configuration directory path.
// Uses $PENF_NER_CONFIG_DIR if set, otherwise ~/.penf-ner
func ConfigDir() (string, error) {
	if dir := os.Getenv(EnvConfigDir); dir != "" {
		return dir, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}

	return filepath.Join(home, DefaultConfigDir), nil
}

// ConfigPath returns the full path to the configuration file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DefaultConfigFile), nil
}

// LoadConfig loads the configuration from file and environment variables.
// Configuration is loaded in this order (later sources override earlier):
// 1. Default values
// 2. Config file (path if given, else ~/.penf-ner/config.yaml or $PENF_NER_CONFIG_DIR/config.yaml)
// 3. Environment variables (PENF_NER_*)
//
// An explicit path must exist; the default one is optional. Flags are applied
// by the caller, which validates again afterwards.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		p, err := ConfigPath()
		if err != nil {
			return nil, fmt.Errorf("getting config path: %w", err)
		}
		path = p
	}

	if _, err := os.Stat(path); err == nil {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	} else if explicit {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}

	loadFromEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Durations are written as strings ("60s") in the file.
type kbFile struct {
	Backend         string         `yaml:"backend,omitempty"`
	Path            string         `yaml:"path,omitempty"`
	ExpectedVersion string         `yaml:"expected_version,omitempty"`
	ConnectTimeout  string         `yaml:"connect_timeout,omitempty"`
	PollInterval    string         `yaml:"poll_interval,omitempty"`
	Postgres        PostgresConfig `yaml:"postgres,omitempty"`
}

type redisFile struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
	TTL      string `yaml:"ttl,omitempty"`
	Prefix   string `yaml:"prefix,omitempty"`
}

type configFile struct {
	Language         string        `yaml:"language,omitempty"`
	InputDir         string        `yaml:"input_dir,omitempty"`
	Lowercase        *bool         `yaml:"lowercase,omitempty"`
	RemoveAccent     *bool         `yaml:"remove_accent,omitempty"`
	MergeOverlapping *bool         `yaml:"merge_overlapping,omitempty"`
	SplitIntervals   *bool         `yaml:"split_intervals,omitempty"`
	ShowURI          *bool         `yaml:"show_uri,omitempty"`
	CopulaWindow     int           `yaml:"copula_window,omitempty"`
	KB               kbFile        `yaml:"kb,omitempty"`
	Redis            redisFile     `yaml:"redis,omitempty"`
	Matcher          MatcherConfig `yaml:"matcher,omitempty"`
	Log              LogConfig     `yaml:"log,omitempty"`
	MetricsAddr      string        `yaml:"metrics_addr,omitempty"`
	HealthAddr       string        `yaml:"health_addr,omitempty"`
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	var fileCfg configFile
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	if fileCfg.Language != "" {
		cfg.Language = fileCfg.Language
	}
	if fileCfg.InputDir != "" {
		cfg.InputDir = fileCfg.InputDir
	}
	setBool(&cfg.Lowercase, fileCfg.Lowercase)
	setBool(&cfg.RemoveAccent, fileCfg.RemoveAccent)
	setBool(&cfg.MergeOverlapping, fileCfg.MergeOverlapping)
	setBool(&cfg.SplitIntervals, fileCfg.SplitIntervals)
	setBool(&cfg.ShowURI, fileCfg.ShowURI)
	if fileCfg.CopulaWindow != 0 {
		cfg.CopulaWindow = fileCfg.CopulaWindow
	}

	if fileCfg.KB.Backend != "" {
		cfg.KB.Backend = fileCfg.KB.Backend
	}
	if fileCfg.KB.Path != "" {
		cfg.KB.Path = fileCfg.KB.Path
	}
	if fileCfg.KB.ExpectedVersion != "" {
		cfg.KB.ExpectedVersion = fileCfg.KB.ExpectedVersion
	}
	if err := setDuration(&cfg.KB.ConnectTimeout, fileCfg.KB.ConnectTimeout, "kb.connect_timeout"); err != nil {
		return err
	}
	if err := setDuration(&cfg.KB.PollInterval, fileCfg.KB.PollInterval, "kb.poll_interval"); err != nil {
		return err
	}
	cfg.KB.Postgres = fileCfg.KB.Postgres

	cfg.Redis.Enabled = fileCfg.Redis.Enabled
	if fileCfg.Redis.Addr != "" {
		cfg.Redis.Addr = fileCfg.Redis.Addr
	}
	if fileCfg.Redis.Password != "" {
		cfg.Redis.Password = fileCfg.Redis.Password
	}
	if fileCfg.Redis.DB != 0 {
		cfg.Redis.DB = fileCfg.Redis.DB
	}
	if fileCfg.Redis.Prefix != "" {
		cfg.Redis.Prefix = fileCfg.Redis.Prefix
	}
	if err := setDuration(&cfg.Redis.TTL, fileCfg.Redis.TTL, "redis.ttl"); err != nil {
		return err
	}

	cfg.Matcher = fileCfg.Matcher
	if fileCfg.Log.Level != "" {
		cfg.Log.Level = fileCfg.Log.Level
	}
	if fileCfg.Log.JSON != nil {
		cfg.Log.JSON = fileCfg.Log.JSON
	}
	if fileCfg.MetricsAddr != "" {
		cfg.MetricsAddr = fileCfg.MetricsAddr
	}
	if fileCfg.HealthAddr != "" {
		cfg.HealthAddr = fileCfg.HealthAddr
	}

	return nil
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v, name string) error {
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", name, err)
	}
	*dst = d
	return nil
}

func envBool(name string) (bool, bool) {
	switch strings.ToLower(os.Getenv(name)) {
	case "true", "1", "yes":
		return true, true
	case "false", "0", "no":
		return false, true
	}
	return false, false
}

// loadFromEnv overlays environment variables onto the configuration.
func loadFromEnv(cfg *Config) {
	if v := os.Getenv("PENF_NER_LANGUAGE"); v != "" {
		cfg.Language = v
	}
	if v := os.Getenv("PENF_NER_INPUT_DIR"); v != "" {
		cfg.InputDir = v
	}

	if v, ok := envBool("PENF_NER_LOWERCASE"); ok {
		cfg.Lowercase = v
	}
	if v, ok := envBool("PENF_NER_REMOVE_ACCENT"); ok {
		cfg.RemoveAccent = v
	}
	if v, ok := envBool("PENF_NER_MERGE_OVERLAPPING"); ok {
		cfg.MergeOverlapping = v
	}
	if v, ok := envBool("PENF_NER_SPLIT_INTERVALS"); ok {
		cfg.SplitIntervals = v
	}
	if v := os.Getenv("PENF_NER_COPULA_WINDOW"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.CopulaWindow = n
		}
	}

	// Knowledge base environment variables.
	if v := os.Getenv("PENF_NER_KB_BACKEND"); v != "" {
		cfg.KB.Backend = v
	}
	if v := os.Getenv("PENF_NER_KB_PATH"); v != "" {
		cfg.KB.Path = v
	}
	if v := os.Getenv("PENF_NER_KB_EXPECTED_VERSION"); v != "" {
		cfg.KB.ExpectedVersion = v
	}
	if v := os.Getenv("PENF_NER_KB_CONNECT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.KB.ConnectTimeout = d
		}
	}
	if v := os.Getenv("PENF_NER_KB_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.KB.PollInterval = d
		}
	}
	loadPostgresFromEnv(&cfg.KB.Postgres)

	// Redis environment variables.
	if v, ok := envBool("PENF_NER_REDIS_ENABLED"); ok {
		cfg.Redis.Enabled = v
	}
	if v := os.Getenv("PENF_NER_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("PENF_NER_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("PENF_NER_REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Redis.DB = n
		}
	}
	if v := os.Getenv("PENF_NER_REDIS_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Redis.TTL = d
		}
	}

	if v := os.Getenv("PENF_NER_DICTIONARY"); v != "" {
		cfg.Matcher.Dictionary = v
	}
	if v := os.Getenv("PENF_NER_LOWERCASE_DICTIONARY"); v != "" {
		cfg.Matcher.LowercaseDictionary = v
	}
	if v := os.Getenv("PENF_NER_MATCHER_COMMAND"); v != "" {
		cfg.Matcher.Command = v
	}

	if v := os.Getenv("PENF_NER_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v, ok := envBool("PENF_NER_LOG_JSON"); ok {
		cfg.Log.JSON = &v
	}
	if v := os.Getenv("PENF_NER_METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
	if v := os.Getenv("PENF_NER_HEALTH_ADDR"); v != "" {
		cfg.HealthAddr = v
	}
}

// loadPostgresFromEnv uses the same variable names as db.ConfigFromEnv.
func loadPostgresFromEnv(pg *PostgresConfig) {
	if v := os.Getenv(db.EnvPrefix + "HOST"); v != "" {
		pg.Host = v
	}
	if v := os.Getenv(db.EnvPrefix + "PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			pg.Port = port
		}
	}
	if v := os.Getenv(db.EnvPrefix + "NAME"); v != "" {
		pg.Database = v
	}
	if v := os.Getenv(db.EnvPrefix + "USER"); v != "" {
		pg.User = v
	}
	if v := os.Getenv(db.EnvPrefix + "SSLMODE"); v != "" {
		pg.SSLMode = v
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if _, err := lang.Lookup(c.Language); err != nil {
		return fmt.Errorf("invalid language: %w (supported: %s)", err, strings.Join(lang.Supported(), ", "))
	}

	switch c.KB.Backend {
	case kb.BackendTSV, kb.BackendSQLite, kb.BackendPostgres:
	default:
		return fmt.Errorf("invalid kb.backend: %q (must be tsv, sqlite, or postgres)", c.KB.Backend)
	}

	if c.KB.ConnectTimeout <= 0 {
		return fmt.Errorf("kb.connect_timeout must be positive")
	}
	if c.KB.PollInterval <= 0 {
		return fmt.Errorf("kb.poll_interval must be positive")
	}
	if c.Redis.Enabled && c.Redis.TTL <= 0 {
		return fmt.Errorf("redis.ttl must be positive")
	}
	if c.CopulaWindow <= 0 {
		return fmt.Errorf("copula_window must be positive")
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log.level: %w", err)
	}

	return nil
}

// ResolverConfig returns the recognizer settings.
func (c *Config) ResolverConfig() resolver.Config {
	return resolver.Config{
		Lowercase:        c.Lowercase,
		RemoveAccent:     c.RemoveAccent,
		SplitIntervals:   c.SplitIntervals,
		MergeOverlapping: c.MergeOverlapping,
		ShowURI:          c.ShowURI,
		CopulaWindow:     c.CopulaWindow,
	}
}

// PostgresDBConfig returns the pool settings for the postgres backend.
func (c *Config) PostgresDBConfig(password string) *db.Config {
	cfg := db.DefaultConfig()
	pg := c.KB.Postgres
	if pg.Host != "" {
		cfg.Host = pg.Host
	}
	if pg.Port != 0 {
		cfg.Port = pg.Port
	}
	if pg.Database != "" {
		cfg.Database = pg.Database
	}
	if pg.User != "" {
		cfg.User = pg.User
	}
	if pg.SSLMode != "" {
		cfg.SSLMode = pg.SSLMode
	}
	cfg.Password = password
	cfg.ConnectTimeout = c.KB.ConnectTimeout
	return cfg
}

// LoggingConfig returns the logger settings; stderr decides the format when
// log.json is unset.
func (c *Config) LoggingConfig(serviceName string) *logging.Config {
	lc := logging.DefaultConfig()
	lc.ServiceName = serviceName
	lc.Environment = "cli"
	if level, err := logging.ParseLevel(c.Log.Level); err == nil {
		lc.Level = level
	}
	if c.Log.JSON != nil {
		lc.JSONFormat = *c.Log.JSON
	} else {
		lc.JSONFormat = logging.AutoJSON(lc.Output)
	}
	return lc
}

// ResolvePath expands ~ and joins relative paths onto InputDir.
func (c *Config) ResolvePath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	p, err := ExpandPath(path)
	if err != nil {
		return "", err
	}
	if filepath.IsAbs(p) || c.InputDir == "" {
		return p, nil
	}
	dir, err := ExpandPath(c.InputDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, p), nil
}

// SaveConfig saves the configuration to the config file.
func SaveConfig(cfg *Config) error {
	if err := EnsureConfigDir(); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath, err := ConfigPath()
	if err != nil {
		return fmt.Errorf("getting config path: %w", err)
	}

	// Convert to YAML-friendly format with durations as strings.
	fileCfg := configFile{
		Language:         cfg.Language,
		InputDir:         cfg.InputDir,
		Lowercase:        &cfg.Lowercase,
		RemoveAccent:     &cfg.RemoveAccent,
		MergeOverlapping: &cfg.MergeOverlapping,
		SplitIntervals:   &cfg.SplitIntervals,
		ShowURI:          &cfg.ShowURI,
		CopulaWindow:     cfg.CopulaWindow,
		KB: kbFile{
			Backend:         cfg.KB.Backend,
			Path:            cfg.KB.Path,
			ExpectedVersion: cfg.KB.ExpectedVersion,
			ConnectTimeout:  cfg.KB.ConnectTimeout.String(),
			PollInterval:    cfg.KB.PollInterval.String(),
			Postgres:        cfg.KB.Postgres,
		},
		Redis: redisFile{
			Enabled:  cfg.Redis.Enabled,
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.TTL.String(),
			Prefix:   cfg.Redis.Prefix,
		},
		Matcher:     cfg.Matcher,
		Log:         cfg.Log,
		MetricsAddr: cfg.MetricsAddr,
		HealthAddr:  cfg.HealthAddr,
	}

	data, err := yaml.Marshal(&fileCfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// EnsureConfigDir creates the configuration directory if it doesn't exist.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

// ExpandPath expands ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}
