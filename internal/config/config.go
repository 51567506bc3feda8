// Package config loads crawler settings from defaults, an optional YAML file
// and ANIME_COVER_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/sakuzeng/anime-cover-crawler/internal/models"
	"github.com/sakuzeng/anime-cover-crawler/internal/util"
)

// EnvPrefix is prepended to every environment override, e.g.
// ANIME_COVER_SEARCH_MIN_SIMILARITY=70
const EnvPrefix = "ANIME_COVER"

// QueryPlaceholder is replaced by the escaped query in a portal search URL
const QueryPlaceholder = "{query}"

type Config struct {
	Search   SearchConfig            `mapstructure:"search"`
	HTTP     HTTPConfig              `mapstructure:"http"`
	Sources  map[string]SourceConfig `mapstructure:"sources"`
	Portals  []PortalConfig          `mapstructure:"portals"`
	Download DownloadConfig          `mapstructure:"download"`
}

type SearchConfig struct {
	Sources          []string      `mapstructure:"sources"`
	MinSimilarity    int           `mapstructure:"min_similarity"`
	MaxSimilarity    int           `mapstructure:"max_similarity"`
	Timeout          time.Duration `mapstructure:"timeout"`
	InterSourceDelay time.Duration `mapstructure:"inter_source_delay"`
	Retry            RetryConfig   `mapstructure:"retry"`
}

type RetryConfig struct {
	MaxRetries int           `mapstructure:"max_retries"`
	Backoff    time.Duration `mapstructure:"backoff"`
}

type HTTPConfig struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
}

// SourceConfig holds the pacing and ranking knobs of one source
type SourceConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Delay      time.Duration `mapstructure:"delay"`
	Jitter     time.Duration `mapstructure:"jitter"`
	TieBreak   string        `mapstructure:"tie_break"`
	MaxResults int           `mapstructure:"max_results"`
}

// PortalConfig describes an HTML video portal searched with CSS selectors.
// SearchURL must contain {query}.
type PortalConfig struct {
	Name          string        `mapstructure:"name"`
	SearchURL     string        `mapstructure:"search_url"`
	ItemSelector  string        `mapstructure:"item_selector"`
	TitleSelector string        `mapstructure:"title_selector"`
	ImageSelector string        `mapstructure:"image_selector"`
	ImageAttr     string        `mapstructure:"image_attr"`
	LinkSelector  string        `mapstructure:"link_selector"`
	Delay         time.Duration `mapstructure:"delay"`
	Jitter        time.Duration `mapstructure:"jitter"`
	TieBreak      string        `mapstructure:"tie_break"`
	MaxResults    int           `mapstructure:"max_results"`
}

type DownloadConfig struct {
	Dir          string `mapstructure:"dir"`
	ConvertJPEG  bool   `mapstructure:"convert_jpeg"`
	MaxDimension int    `mapstructure:"max_dimension"`
}

var sourceDelays = map[models.SourceID]time.Duration{
	models.SourceBilibili:    2 * time.Second,
	models.SourceAniList:     time.Second,
	models.SourceBangumi:     time.Second,
	models.SourceMyAnimeList: time.Second,
	models.SourceAniDB:       3 * time.Second,
}

const (
	defaultPortalDelay  = 2 * time.Second
	defaultPortalJitter = time.Second
	defaultMaxResults   = 10
)

func setDefaults(v *viper.Viper) {
	builtin := make([]string, 0, len(models.BuiltinSources))
	for _, id := range models.BuiltinSources {
		builtin = append(builtin, string(id))
	}

	v.SetDefault("search.sources", builtin)
	v.SetDefault("search.min_similarity", 80)
	v.SetDefault("search.max_similarity", 100)
	v.SetDefault("search.timeout", 2*time.Minute)
	v.SetDefault("search.inter_source_delay", 500*time.Millisecond)
	v.SetDefault("search.retry.max_retries", 3)
	v.SetDefault("search.retry.backoff", 2*time.Second)

	v.SetDefault("http.timeout", 10*time.Second)
	v.SetDefault("http.user_agent", util.DefaultUserAgent)

	for _, id := range models.BuiltinSources {
		key := "sources." + string(id)
		v.SetDefault(key+".enabled", true)
		v.SetDefault(key+".delay", sourceDelays[id])
		v.SetDefault(key+".jitter", time.Second)
		v.SetDefault(key+".tie_break", string(models.TieBreakSimilarity))
		v.SetDefault(key+".max_results", defaultMaxResults)
	}

	v.SetDefault("portals", []PortalConfig{})

	v.SetDefault("download.dir", "covers")
	v.SetDefault("download.convert_jpeg", false)
	v.SetDefault("download.max_dimension", 0)
}

// Default returns the built-in configuration without reading any file.
// Environment overrides still apply.
func Default() *Config {
	v := newViper()
	setDefaults(v)
	cfg, err := decode(v)
	if err != nil {
		util.Warn("Ignoring invalid environment configuration", "error", err)
		v = viper.New()
		setDefaults(v)
		cfg, _ = decode(v)
	}
	return cfg
}

// Load reads the config file at path, or searches ./config.yaml,
// ./configs/config.yaml and $HOME/.config/anime-cover/config.yaml when path
// is empty. A missing file is not an error.
func Load(path string) (*Config, error) {
	return load(newViper(), path)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func load(v *viper.Viper, path string) (*Config, error) {
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "anime-cover"))
		}
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	if used := v.ConfigFileUsed(); used != "" {
		util.Debug("Loaded config file", "path", used)
	}

	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.applyPortalDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyPortalDefaults() {
	for i := range c.Portals {
		p := &c.Portals[i]
		p.Name = strings.ToLower(strings.TrimSpace(p.Name))
		if p.Delay == 0 {
			p.Delay = defaultPortalDelay
		}
		if p.Jitter == 0 {
			p.Jitter = defaultPortalJitter
		}
		if p.TieBreak == "" {
			p.TieBreak = string(models.TieBreakQuality)
		}
		if p.ImageAttr == "" {
			p.ImageAttr = "src"
		}
		if p.MaxResults == 0 {
			p.MaxResults = defaultMaxResults
		}
	}
}

// Validate checks ranges and cross references
func (c *Config) Validate() error {
	s := c.Search
	if s.MinSimilarity < 0 || s.MaxSimilarity > 100 || s.MinSimilarity > s.MaxSimilarity {
		return fmt.Errorf("invalid similarity range [%d, %d]: want 0 <= min <= max <= 100", s.MinSimilarity, s.MaxSimilarity)
	}
	if s.Timeout <= 0 {
		return fmt.Errorf("search.timeout must be positive, got %s", s.Timeout)
	}
	if s.InterSourceDelay < 0 {
		return fmt.Errorf("search.inter_source_delay must not be negative")
	}
	if s.Retry.MaxRetries < 1 {
		return fmt.Errorf("search.retry.max_retries must be at least 1, got %d", s.Retry.MaxRetries)
	}
	if s.Retry.Backoff < 0 {
		return fmt.Errorf("search.retry.backoff must not be negative")
	}
	if c.Download.MaxDimension < 0 {
		return fmt.Errorf("download.max_dimension must not be negative")
	}

	for name, sc := range c.Sources {
		if !models.SourceID(name).IsBuiltin() {
			return fmt.Errorf("sources.%s: unknown source", name)
		}
		if sc.TieBreak != "" && !models.TieBreak(sc.TieBreak).Valid() {
			return fmt.Errorf("sources.%s.tie_break: unknown policy %q", name, sc.TieBreak)
		}
		if sc.Delay < 0 || sc.Jitter < 0 {
			return fmt.Errorf("sources.%s: delay and jitter must not be negative", name)
		}
	}

	seen := make(map[string]bool, len(c.Portals))
	for i, p := range c.Portals {
		if p.Name == "" {
			return fmt.Errorf("portals[%d]: name is required", i)
		}
		if seen[p.Name] {
			return fmt.Errorf("portals[%d]: duplicate name %q", i, p.Name)
		}
		seen[p.Name] = true
		if !strings.Contains(p.SearchURL, QueryPlaceholder) {
			return fmt.Errorf("portal %s: search_url must contain %s", p.Name, QueryPlaceholder)
		}
		if p.ItemSelector == "" {
			return fmt.Errorf("portal %s: item_selector is required", p.Name)
		}
		if !models.TieBreak(p.TieBreak).Valid() {
			return fmt.Errorf("portal %s: unknown tie_break %q", p.Name, p.TieBreak)
		}
	}

	for _, raw := range s.Sources {
		id := models.SourceID(strings.ToLower(strings.TrimSpace(raw)))
		if id.IsBuiltin() {
			continue
		}
		if id.IsPortal() && seen[strings.TrimPrefix(string(id), "portal:")] {
			continue
		}
		return fmt.Errorf("search.sources: unknown source %q", raw)
	}
	return nil
}

// Source returns the effective settings of a source
func (c *Config) Source(id models.SourceID) SourceConfig {
	if id.IsPortal() {
		if p, ok := c.Portal(id); ok {
			return SourceConfig{
				Enabled:    true,
				Delay:      p.Delay,
				Jitter:     p.Jitter,
				TieBreak:   p.TieBreak,
				MaxResults: p.MaxResults,
			}
		}
		return SourceConfig{}
	}

	sc, ok := c.Sources[string(id)]
	if !ok {
		sc = SourceConfig{Enabled: true, Delay: sourceDelays[id], Jitter: time.Second, MaxResults: defaultMaxResults}
	}
	if sc.TieBreak == "" {
		sc.TieBreak = string(models.TieBreakSimilarity)
	}
	return sc
}

// Portal looks up a configured portal by its SourceID
func (c *Config) Portal(id models.SourceID) (PortalConfig, bool) {
	for _, p := range c.Portals {
		if models.PortalSource(p.Name) == id {
			return p, true
		}
	}
	return PortalConfig{}, false
}

// EnabledSources returns the sources to query, in order: search.sources
// first, then any configured portal not already listed.
func (c *Config) EnabledSources() []models.SourceID {
	var ids []models.SourceID
	listed := make(map[models.SourceID]bool)

	for _, raw := range c.Search.Sources {
		id := models.SourceID(strings.ToLower(strings.TrimSpace(raw)))
		if listed[id] {
			continue
		}
		listed[id] = true
		if c.Source(id).Enabled {
			ids = append(ids, id)
		}
	}
	for _, p := range c.Portals {
		id := models.PortalSource(p.Name)
		if !listed[id] {
			listed[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}
