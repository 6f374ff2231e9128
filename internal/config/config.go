package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port         int           `yaml:"port"`
		ReadTimeout  time.Duration `yaml:"readTimeout"`
		WriteTimeout time.Duration `yaml:"writeTimeout"`
		IdleTimeout  time.Duration `yaml:"idleTimeout"`
		CORSOrigins  []string      `yaml:"corsOrigins"`
		RateLimit    struct {
			Capacity   int `yaml:"capacity"`
			RefillRate int `yaml:"refillRate"`
		} `yaml:"rateLimit"`
	} `yaml:"server"`

	Log struct {
		Level   string `yaml:"level"`
		Format  string `yaml:"format"`
		Service string `yaml:"service"`
	} `yaml:"log"`

	OpenAI struct {
		APIKey       string        `yaml:"apiKey"`
		AssistantID  string        `yaml:"assistantId"`
		Model        string        `yaml:"model"`
		BaseURL      string        `yaml:"baseUrl"`
		PollInterval time.Duration `yaml:"pollInterval"`
		MaxPolls     int           `yaml:"maxPolls"`
	} `yaml:"openai"`

	Database struct {
		Driver   string `yaml:"driver"` // mysql | postgres | mongo
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		SSLMode  string `yaml:"sslMode"`
	} `yaml:"database"`

	Mongo struct {
		URI        string `yaml:"uri"`
		Database   string `yaml:"database"`
		Collection string `yaml:"collection"`
	} `yaml:"mongo"`

	Redis struct {
		Addr     string        `yaml:"addr"`
		Password string        `yaml:"password"`
		DB       int           `yaml:"db"`
		TTL      time.Duration `yaml:"ttl"`
	} `yaml:"redis"`

	Minio struct {
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`

	Chrome struct {
		RemoteURL   string        `yaml:"remoteUrl"`
		ExecPath    string        `yaml:"execPath"`
		Timeout     time.Duration `yaml:"timeout"`
		Concurrency int           `yaml:"concurrency"`
	} `yaml:"chrome"`

	SMTP struct {
		Host               string `yaml:"host"`
		Port               int    `yaml:"port"`
		User               string `yaml:"user"`
		Password           string `yaml:"password"`
		FromEmail          string `yaml:"fromEmail"`
		FromName           string `yaml:"fromName"`
		InsecureSkipVerify bool   `yaml:"insecureSkipVerify"`
	} `yaml:"smtp"`
}

// Load baca file config.yaml, lalu override dari environment.
// A missing file is not an error so the service can run on env vars alone.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, err
	}

	cfg.applyEnv(os.Getenv)
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	first := func(keys ...string) string {
		for _, k := range keys {
			if v := getenv(k); v != "" {
				return v
			}
		}
		return ""
	}
	set := func(dst *string, keys ...string) {
		if v := first(keys...); v != "" {
			*dst = v
		}
	}

	set(&c.OpenAI.APIKey, "OPENAI_API_KEY")
	set(&c.OpenAI.AssistantID, "OPENAI_ASSISTANT_ID")
	set(&c.OpenAI.Model, "OPENAI_MODEL")

	set(&c.Database.Driver, "DATABASE_DRIVER")
	set(&c.Database.Password, "DATABASE_PASSWORD")
	set(&c.Mongo.URI, "MONGODB_URI")
	set(&c.Redis.Addr, "REDIS_ADDR")

	set(&c.SMTP.Host, "SMTP_HOST", "SMTP_SERVER")
	set(&c.SMTP.User, "SMTP_LOGIN_EMAIL", "SMTP_USER")
	set(&c.SMTP.Password, "SMTP_SERVER_KEY", "SMTP_PASSWORD")
	set(&c.SMTP.FromEmail, "SMTP_FROM_EMAIL")
	if v := first("SMTP_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.SMTP.Port = p
		}
	}
	if v := first("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Server.Port = p
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	// a report run can poll for ~84s before timing out
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 150 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}
	if len(c.Server.CORSOrigins) == 0 {
		c.Server.CORSOrigins = []string{"*"}
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Log.Service == "" {
		c.Log.Service = "kinetic-intake"
	}

	if c.OpenAI.PollInterval == 0 {
		c.OpenAI.PollInterval = 700 * time.Millisecond
	}
	if c.OpenAI.MaxPolls == 0 {
		c.OpenAI.MaxPolls = 120
	}

	if c.Database.Driver == "" {
		c.Database.Driver = "mysql"
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Mongo.Database == "" {
		c.Mongo.Database = "hydrawav3"
	}
	if c.Mongo.Collection == "" {
		c.Mongo.Collection = "reports"
	}
	if c.Redis.TTL == 0 {
		c.Redis.TTL = 24 * time.Hour
	}

	if c.Chrome.Timeout == 0 {
		c.Chrome.Timeout = 60 * time.Second
	}
	if c.Chrome.Concurrency <= 0 {
		c.Chrome.Concurrency = 2
	}

	if c.SMTP.Port == 0 {
		c.SMTP.Port = 587
	}
	if c.SMTP.FromName == "" {
		c.SMTP.FromName = "Hydrawav3"
	}
	if c.SMTP.FromEmail == "" {
		c.SMTP.FromEmail = c.SMTP.User
	}
	if c.SMTP.FromEmail == "" {
		c.SMTP.FromEmail = "no-reply@hydrawav3.com"
	}
}

// Helper untuk build DSN MySQL
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
	)
}

// PostgresDSN builds a lib/pq connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// SMTPConfigured reports whether host and credentials are all present.
func (c *Config) SMTPConfigured() bool {
	return c.SMTP.Host != "" && c.SMTP.User != "" && c.SMTP.Password != ""
}
