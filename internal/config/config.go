package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"districtfinder/internal/nces"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "DISTRICTFINDER_"

const (
	BackendArcGIS = "arcgis"
	BackendLocal  = "local"
)

// Config holds all districtfinder settings.
type Config struct {
	DataDir string `yaml:"data_dir" validate:"required"`
	Backend string `yaml:"backend" validate:"oneof=arcgis local"`

	// ArcGIS lookup service
	DistrictsURL     string        `yaml:"districts_url" validate:"required,url"`
	SchoolsURL       string        `yaml:"schools_url" validate:"required,url"`
	MaxDistricts     int           `yaml:"max_districts" validate:"min=1,max=2000"`
	ArcGISPageSize   int           `yaml:"arcgis_page_size" validate:"min=1,max=2000"`
	FetchConcurrency int           `yaml:"fetch_concurrency" validate:"min=1,max=32"`
	HTTPTimeout      time.Duration `yaml:"http_timeout" validate:"gt=0"`

	// Lookup cache, zero TTL disables it
	CacheTTL      time.Duration `yaml:"cache_ttl" validate:"gte=0"`
	PurgeSchedule string        `yaml:"purge_schedule" validate:"required"`

	// Delay before a typed query is committed, zero commits on every keystroke
	Debounce time.Duration `yaml:"debounce" validate:"gte=0"`

	Port int `yaml:"port" validate:"min=1,max=65535"`

	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	Model           string `yaml:"model"`
}

// DefaultConfig returns the built-in settings
func DefaultConfig() *Config {
	return &Config{
		DataDir:          "tmpdata/",
		Backend:          BackendArcGIS,
		DistrictsURL:     nces.DefaultDistrictsURL,
		SchoolsURL:       nces.DefaultSchoolsURL,
		MaxDistricts:     100,
		ArcGISPageSize:   1000,
		FetchConcurrency: 4,
		HTTPTimeout:      30 * time.Second,
		CacheTTL:         24 * time.Hour,
		PurgeSchedule:    "@hourly",
		Port:             8080,
		Model:            "claude-haiku-4-5-20251001",
	}
}

// Load builds the configuration from defaults, a .env file in the working
// directory, the YAML file at path (skipped when empty or missing) and
// DISTRICTFINDER_* environment variables, in that order.
func Load(path string) (*Config, error) {
	// .env never overrides variables already set in the environment
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() error {
	strs := map[string]*string{
		"DATA_DIR":       &c.DataDir,
		"BACKEND":        &c.Backend,
		"DISTRICTS_URL":  &c.DistrictsURL,
		"SCHOOLS_URL":    &c.SchoolsURL,
		"PURGE_SCHEDULE": &c.PurgeSchedule,
		"MODEL":          &c.Model,
	}
	for name, dst := range strs {
		if v, ok := os.LookupEnv(EnvPrefix + name); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"MAX_DISTRICTS":     &c.MaxDistricts,
		"ARCGIS_PAGE_SIZE":  &c.ArcGISPageSize,
		"FETCH_CONCURRENCY": &c.FetchConcurrency,
		"PORT":              &c.Port,
	}
	for name, dst := range ints {
		v, ok := os.LookupEnv(EnvPrefix + name)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %s%s: %w", EnvPrefix, name, err)
		}
		*dst = n
	}

	durations := map[string]*time.Duration{
		"HTTP_TIMEOUT": &c.HTTPTimeout,
		"CACHE_TTL":    &c.CacheTTL,
		"DEBOUNCE":     &c.Debounce,
	}
	for name, dst := range durations {
		v, ok := os.LookupEnv(EnvPrefix + name)
		if !ok {
			continue
		}
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %s%s: %w", EnvPrefix, name, err)
		}
		*dst = d
	}

	// The provider's own variable wins over the prefixed one
	if key := os.Getenv(EnvPrefix + "ANTHROPIC_API_KEY"); key != "" {
		c.AnthropicAPIKey = key
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		c.AnthropicAPIKey = key
	}
	return nil
}

var validate = validator.New()

// Validate checks field constraints and the purge schedule syntax.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed '%s'", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, ", "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}

	if _, err := cron.ParseStandard(c.PurgeSchedule); err != nil {
		return fmt.Errorf("invalid config: purge_schedule %q: %w", c.PurgeSchedule, err)
	}
	return nil
}

// CacheEnabled reports whether lookups are cached in DuckDB
func (c *Config) CacheEnabled() bool {
	return c.CacheTTL > 0
}
