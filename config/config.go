package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Scan        ScanConfig
	Credentials Credentials
	Scheduler   SchedulerConfig
	Session     SessionConfig
	Postgres    PostgresConfig
	Drafter     DrafterConfig
	Proxy       ProxyConfig
	DBPath      string
	LogLevel    string
	Sites       map[string]*SiteConfig
}

// ScanConfig are the caller-facing scan parameters. The scraper core only
// sees these through scraper.ScanParams, never the process environment.
type ScanConfig struct {
	Keywords    []string
	Location    string
	MinMargin   float64
	Limit       int
	Headless    bool
	BrowserPath string
}

type Credentials struct {
	Email    string
	Password string
}

func (c Credentials) Configured() bool {
	return c.Email != "" && c.Password != ""
}

type SchedulerConfig struct {
	Interval time.Duration
	Cron     string
}

type SessionConfig struct {
	Backend         string // sqlite or s3
	S3Bucket        string
	S3Region        string
	S3Endpoint      string
	AccessKeyID     string
	SecretAccessKey string
}

type PostgresConfig struct {
	DBURL string
}

type DrafterConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

type ProxyConfig struct {
	URL string
}

// SiteConfig describes one marketplace: where to navigate and the ordered
// selector candidates tried for each field.
type SiteConfig struct {
	ID                string           `yaml:"id"`
	Name              string           `yaml:"name"`
	Origin            string           `yaml:"origin"`
	SearchURL         string           `yaml:"search_url"` // %s is the location slug
	LoginURLMarker    string           `yaml:"login_url_marker"`
	CheckpointMarkers []string         `yaml:"checkpoint_markers"`
	RateLimitMS       int              `yaml:"rate_limit_ms"`
	Selectors         SelectorConfig   `yaml:"selectors"`
	Login             LoginSelectors   `yaml:"login"`
	Actions           ActionSelectors  `yaml:"actions"`
	Enrichment        EnrichmentConfig `yaml:"enrichment"`
}

type SelectorConfig struct {
	Container string   `yaml:"container"`
	Title     []string `yaml:"title"`
	Price     []string `yaml:"price"`
	Link      []string `yaml:"link"`
	LoadMore  []string `yaml:"load_more"`
}

type LoginSelectors struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	Submit   string `yaml:"submit"`
}

type ActionSelectors struct {
	MessageButton []string `yaml:"message_button"`
	Composer      []string `yaml:"composer"`
	CreateURL     string   `yaml:"create_url"`
	TitleField    string   `yaml:"title_field"`
	PriceField    string   `yaml:"price_field"`
	DescField     string   `yaml:"desc_field"`
}

type EnrichmentConfig struct {
	Description []string `yaml:"description"`
	Condition   []string `yaml:"condition"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Scan: ScanConfig{
			Keywords:    splitKeywords(getEnv("SCAN_KEYWORDS", "")),
			Location:    getEnv("SCAN_LOCATION", "london"),
			MinMargin:   getEnvFloat("MIN_MARGIN", 0.25),
			Limit:       getEnvInt("SCAN_LIMIT", 15),
			Headless:    getEnv("HEADLESS", "true") == "true",
			BrowserPath: os.Getenv("BROWSER_PATH"),
		},
		Credentials: Credentials{
			Email:    os.Getenv("MARKET_EMAIL"),
			Password: os.Getenv("MARKET_PASSWORD"),
		},
		Scheduler: SchedulerConfig{
			Cron: os.Getenv("SCAN_CRON"),
		},
		Session: SessionConfig{
			Backend:         getEnv("SESSION_BACKEND", "sqlite"),
			S3Bucket:        os.Getenv("SESSION_S3_BUCKET"),
			S3Region:        getEnv("SESSION_S3_REGION", "us-east-1"),
			S3Endpoint:      os.Getenv("SESSION_S3_ENDPOINT"),
			AccessKeyID:     os.Getenv("SESSION_S3_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("SESSION_S3_SECRET_ACCESS_KEY"),
		},
		Postgres: PostgresConfig{
			DBURL: os.Getenv("DATABASE_URL"),
		},
		Drafter: DrafterConfig{
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			BaseURL: getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Model:   getEnv("OPENAI_MODEL", "gpt-4"),
		},
		Proxy: ProxyConfig{
			URL: os.Getenv("PROXY_URL"),
		},
		DBPath:   getEnv("DB_PATH", "flipscout.db"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Sites:    make(map[string]*SiteConfig),
	}

	if interval := os.Getenv("SCAN_INTERVAL"); interval != "" {
		d, err := time.ParseDuration(interval)
		if err == nil {
			cfg.Scheduler.Interval = d
		}
	}

	if err := cfg.loadSiteConfigs(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadSiteConfigs() error {
	configDir := "config/sites"
	entries, err := os.ReadDir(configDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}

		path := filepath.Join(configDir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		var site SiteConfig
		if err := yaml.Unmarshal(data, &site); err != nil {
			return err
		}

		c.Sites[site.ID] = &site
	}

	return nil
}

func splitKeywords(raw string) []string {
	var out []string
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, k)
		}
	}
	return out
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
