package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	AffiliateTag string
	RegistryPath string
	DBPath       string
	DatabaseURL  string
	LogLevel     string
	Scheduler    SchedulerConfig
	Scraper      ScraperConfig
	SMTP         SMTPConfig
	Proxy        ProxyConfig
	Categories   map[string]string
}

type SchedulerConfig struct {
	Interval time.Duration
	Cron     string
}

type ScraperConfig struct {
	BaseURL        string
	BrowserEnabled bool
	Headless       bool
	DelayMinMS     int
	DelayMaxMS     int
	PageTimeoutMS  int
	DefaultPages   int
}

type SMTPConfig struct {
	Host     string
	Port     int
	From     string
	Username string
	Password string
}

type ProxyConfig struct {
	URL string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		AffiliateTag: getEnv("AFFILIATE_TAG", "dealwatch-20"),
		RegistryPath: getEnv("REGISTRY_PATH", "monitors.json"),
		DBPath:       getEnv("DB_PATH", "dealwatch.db"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		Scheduler: SchedulerConfig{
			Cron: os.Getenv("SCRAPE_CRON"),
		},
		Scraper: ScraperConfig{
			BaseURL:        getEnv("SCRAPE_BASE_URL", "https://www.amazon.com"),
			BrowserEnabled: os.Getenv("BROWSER_DISABLED") != "true",
			Headless:       os.Getenv("BROWSER_HEADFUL") != "true",
			DelayMinMS:     getEnvInt("SCRAPE_DELAY_MIN_MS", 1500),
			DelayMaxMS:     getEnvInt("SCRAPE_DELAY_MAX_MS", 4000),
			PageTimeoutMS:  getEnvInt("SCRAPE_PAGE_TIMEOUT_MS", 30000),
			DefaultPages:   getEnvInt("SCRAPE_DEFAULT_PAGES", 2),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", "smtp.gmail.com"),
			Port:     getEnvInt("SMTP_PORT", 587),
			From:     os.Getenv("SMTP_FROM"),
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
		},
		Proxy: ProxyConfig{
			URL: os.Getenv("PROXY_URL"),
		},
		Categories: make(map[string]string),
	}

	if interval := os.Getenv("SCRAPE_INTERVAL"); interval != "" {
		if d, err := time.ParseDuration(interval); err == nil {
			cfg.Scheduler.Interval = d
		}
	}

	if err := cfg.loadCategories(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// CategoryID resolves a category display name to the site's node id; "" and
// "All" mean no category filter.
func (c *Config) CategoryID(category string) string {
	if category == "" || category == "All" {
		return ""
	}
	return c.Categories[category]
}

func (c *Config) loadCategories() error {
	path := getEnv("CATEGORIES_PATH", "config/categories.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			c.Categories = defaultCategories()
			return nil
		}
		return err
	}

	return yaml.Unmarshal(data, &c.Categories)
}

func defaultCategories() map[string]string {
	return map[string]string{
		"Electronics": "172282",
		"Books":       "283155",
		"Clothing":    "7141123011",
		"Home":        "1055398",
		"Sports":      "3375251",
		"Toys":        "165793011",
	}
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
