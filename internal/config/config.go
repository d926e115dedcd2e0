// Package config loads locator settings from defaults, an optional YAML file
// and environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar overrides the config file search.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultConfigPaths are searched in order when no path is given.
var DefaultConfigPaths = []string{"config.yaml", "config.yml"}

// Config holds all locator settings.
type Config struct {
	Forum           Forum         `koanf:"forum"`
	Nominatim       Nominatim     `koanf:"nominatim"`
	Cache           Cache         `koanf:"cache"`
	Export          Export        `koanf:"export"`
	Kafka           Kafka         `koanf:"kafka"`
	HTTP            HTTP          `koanf:"http"`
	Log             Log           `koanf:"log"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}

// Forum configures the member directory scraper.
type Forum struct {
	BaseURL           string        `koanf:"base_url" validate:"required,url"`
	Username          string        `koanf:"username"`
	Password          string        `koanf:"password"`
	Timeout           time.Duration `koanf:"timeout" validate:"gt=0"`
	RequestsPerSecond float64       `koanf:"requests_per_second" validate:"gte=0"`
}

// Nominatim configures the geocoding backend.
type Nominatim struct {
	BaseURL         string        `koanf:"base_url" validate:"required,url"`
	Email           string        `koanf:"email" validate:"required,email"`
	UserAgent       string        `koanf:"user_agent" validate:"required"`
	Timeout         time.Duration `koanf:"timeout" validate:"gt=0"`
	Cooldown        time.Duration `koanf:"cooldown" validate:"gte=0"`
	BreakerFailures uint32        `koanf:"breaker_failures" validate:"gte=1"`
	BreakerTimeout  time.Duration `koanf:"breaker_timeout" validate:"gt=0"`
}

// Cache configures the persistent cache store and its thinning at startup.
type Cache struct {
	Dir            string   `koanf:"dir" validate:"required"`
	ThinPercent    float64  `koanf:"thin_percent" validate:"gte=0,lte=100"`
	ThinNamespaces []string `koanf:"thin_namespaces" validate:"dive,oneof=nominatim user_details member_page members_dict"`
}

// Export configures the JSON file outputs.
type Export struct {
	Path        string `koanf:"path" validate:"required"`
	MembersDump string `koanf:"members_dump"`
}

// Kafka configures the optional Kafka sink; it is enabled when brokers are set.
type Kafka struct {
	Brokers []string `koanf:"brokers"`
	Topic   string   `koanf:"topic" validate:"required_with=Brokers"`
}

// Enabled reports whether enriched members are published to Kafka.
func (k Kafka) Enabled() bool { return len(k.Brokers) > 0 }

// HTTP configures the health and metrics server; an empty address disables it.
type HTTP struct {
	Addr string `koanf:"addr"`
}

// Log configures the process logger.
type Log struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn warning error"`
	Format string `koanf:"format" validate:"oneof=json text"`
}

func defaultConfig() *Config {
	return &Config{
		Forum: Forum{
			BaseURL:           "https://www.velomobilforum.de",
			Timeout:           30 * time.Second,
			RequestsPerSecond: 2,
		},
		Nominatim: Nominatim{
			BaseURL:         "https://nominatim.openstreetmap.org",
			UserAgent:       "member-locator/1.0 (+https://github.com/couchcryptid/member-locator)",
			Timeout:         10 * time.Second,
			Cooldown:        time.Second,
			BreakerFailures: 5,
			BreakerTimeout:  time.Minute,
		},
		Cache: Cache{
			Dir:            "cache",
			ThinPercent:    1,
			ThinNamespaces: []string{"user_details", "nominatim"},
		},
		Export: Export{
			Path: "shared/vmforum_members.json",
		},
		Kafka: Kafka{
			Topic: "member-locations",
		},
		Log: Log{
			Level:  "info",
			Format: "json",
		},
		ShutdownTimeout: 10 * time.Second,
	}
}

// envKeys maps environment variables to config paths.
var envKeys = map[string]string{
	"FORUM_BASE_URL":             "forum.base_url",
	"FORUM_USERNAME":             "forum.username",
	"FORUM_PASSWORD":             "forum.password",
	"FORUM_TIMEOUT":              "forum.timeout",
	"FORUM_REQUESTS_PER_SECOND":  "forum.requests_per_second",
	"NOMINATIM_BASE_URL":         "nominatim.base_url",
	"NOMINATIM_EMAIL":            "nominatim.email",
	"NOMINATIM_USER_AGENT":       "nominatim.user_agent",
	"NOMINATIM_TIMEOUT":          "nominatim.timeout",
	"NOMINATIM_COOLDOWN":         "nominatim.cooldown",
	"NOMINATIM_BREAKER_FAILURES": "nominatim.breaker_failures",
	"NOMINATIM_BREAKER_TIMEOUT":  "nominatim.breaker_timeout",
	"CACHE_DIR":                  "cache.dir",
	"CACHE_THIN_PERCENT":         "cache.thin_percent",
	"CACHE_THIN_NAMESPACES":      "cache.thin_namespaces",
	"EXPORT_PATH":                "export.path",
	"EXPORT_MEMBERS_DUMP":        "export.members_dump",
	"KAFKA_BROKERS":              "kafka.brokers",
	"KAFKA_TOPIC":                "kafka.topic",
	"HTTP_ADDR":                  "http.addr",
	"LOG_LEVEL":                  "log.level",
	"LOG_FORMAT":                 "log.format",
	"SHUTDOWN_TIMEOUT":           "shutdown_timeout",
}

// listKeys hold comma-separated lists when set from the environment.
var listKeys = map[string]bool{
	"kafka.brokers":         true,
	"cache.thin_namespaces": true,
}

func envValue(key, value string) (string, any) {
	path, ok := envKeys[key]
	if !ok {
		return "", nil
	}
	if listKeys[path] {
		return path, sharedcfg.ParseBrokers(value)
	}
	return path, value
}

// Load reads the configuration. path names a YAML file; when empty, the file
// named by CONFIG_PATH or the first of DefaultConfigPaths that exists is used,
// if any.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path == "" {
		path = findConfigFile()
	} else if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file: %w", err)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.ProviderWithValue("", ".", envValue), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := sharedcfg.EnvOrDefault(ConfigPathEnvVar, ""); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

var validate = newValidator()

// newValidator reports fields by their koanf names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("koanf"), ",")
		return name
	})
	return v
}

// Validate checks field constraints and reports every violation by its config path.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %q", strings.TrimPrefix(fe.Namespace(), "Config."), fe.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// RequireForumCredentials reports an error unless forum login data is set.
// Only runs that scrape the forum need it.
func (c *Config) RequireForumCredentials() error {
	if c.Forum.Username == "" || c.Forum.Password == "" {
		return errors.New("invalid config: forum.username and forum.password are required to scrape the forum (FORUM_USERNAME, FORUM_PASSWORD)")
	}
	return nil
}
