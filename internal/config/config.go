package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"gopkg.in/yaml.v3"
)

const (
	DriverMemory   = "memory"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"

	ProviderPredict = "predict"
	ProviderOpenAI  = "openai"
)

type Config struct {
	Server struct {
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"readTimeout"`
		WriteTimeout    time.Duration `yaml:"writeTimeout"`
		ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	} `yaml:"server"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`

	Inference struct {
		Provider  string        `yaml:"provider"`
		BaseURL   string        `yaml:"baseURL"`
		Timeout   time.Duration `yaml:"timeout"`
		UserAgent string        `yaml:"userAgent"`
		OpenAI    struct {
			APIKey  string `yaml:"apiKey"`
			Model   string `yaml:"model"`
			BaseURL string `yaml:"baseURL"`
		} `yaml:"openai"`
	} `yaml:"inference"`

	Database struct {
		Driver   string `yaml:"driver"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		SSLMode  string `yaml:"sslmode"`
	} `yaml:"database"`

	Minio struct {
		Enabled    bool   `yaml:"enabled"`
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`

	Upload struct {
		Dir      string   `yaml:"dir"`
		CacheDir string   `yaml:"cacheDir"`
		MaxBytes int64    `yaml:"maxBytes"`
		Roots    []string `yaml:"roots"`
	} `yaml:"upload"`

	RateLimit struct {
		Capacity   int `yaml:"capacity"`
		RefillRate int `yaml:"refillRate"`
	} `yaml:"rateLimit"`

	CORS struct {
		AllowedOrigins []string `yaml:"allowedOrigins"`
	} `yaml:"cors"`
}

// Default returns a config that runs locally with the in-memory store.
func Default() *Config {
	var c Config
	c.Server.Port = 8080
	c.Server.ReadTimeout = 15 * time.Second
	c.Server.WriteTimeout = 60 * time.Second
	c.Server.ShutdownTimeout = 10 * time.Second
	c.Log.Level = "info"
	c.Inference.Provider = ProviderPredict
	c.Inference.BaseURL = "http://localhost:8000"
	c.Inference.Timeout = 30 * time.Second
	c.Inference.OpenAI.Model = "gpt-4o-mini"
	c.Database.Driver = DriverMemory
	c.Database.SSLMode = "disable"
	c.Upload.Dir = "uploads"
	c.Upload.MaxBytes = 10 << 20
	c.RateLimit.Capacity = 20
	c.RateLimit.RefillRate = 5
	c.CORS.AllowedOrigins = []string{"*"}
	return &c
}

// Load reads the YAML file at path over the defaults and applies env overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides selected fields from the environment.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("PREDICT_BASE_URL"); ok && v != "" {
		c.Inference.BaseURL = v
	}
	if v, ok := lookup("INFERENCE_PROVIDER"); ok && v != "" {
		c.Inference.Provider = v
	}
	if v, ok := lookup("OPENAI_API_KEY"); ok && v != "" {
		c.Inference.OpenAI.APIKey = v
	}
	if v, ok := lookup("DB_DRIVER"); ok && v != "" {
		c.Database.Driver = v
	}
	if v, ok := lookup("DB_PASSWORD"); ok && v != "" {
		c.Database.Password = v
	}
	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		c.Log.Level = v
	}
	if v, ok := lookup("PORT"); ok && v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		c.Server.Port = p
	}
	return nil
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	switch c.Database.Driver {
	case DriverMemory:
	case DriverMySQL, DriverPostgres:
		if c.Database.Host == "" || c.Database.Name == "" {
			errs = append(errs, fmt.Errorf("database.host and database.name are required for %s", c.Database.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown database.driver %q", c.Database.Driver))
	}
	switch c.Inference.Provider {
	case ProviderPredict:
		if _, err := url.ParseRequestURI(c.Inference.BaseURL); err != nil {
			errs = append(errs, fmt.Errorf("inference.baseURL: %w", err))
		}
	case ProviderOpenAI:
		if c.Inference.OpenAI.APIKey == "" {
			errs = append(errs, errors.New("inference.openai.apiKey is required for the openai provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown inference.provider %q", c.Inference.Provider))
	}
	if c.Inference.Timeout <= 0 {
		errs = append(errs, errors.New("inference.timeout must be positive"))
	}
	if c.Minio.Enabled && (c.Minio.Endpoint == "" || c.Minio.BucketName == "") {
		errs = append(errs, errors.New("minio.endpoint and minio.bucketName are required when minio is enabled"))
	}
	return errors.Join(errs...)
}

// MySQLDSN builds the go-sql-driver DSN.
func (c *Config) MySQLDSN() string {
	m := mysql.NewConfig()
	m.User = c.Database.User
	m.Passwd = c.Database.Password
	m.Net = "tcp"
	m.Addr = net.JoinHostPort(c.Database.Host, strconv.Itoa(c.dbPort(3306)))
	m.DBName = c.Database.Name
	m.ParseTime = true
	m.Loc = time.UTC
	m.Params = map[string]string{"charset": "utf8mb4"}
	return m.FormatDSN()
}

// PostgresDSN builds a lib/pq connection URL.
func (c *Config) PostgresDSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.Database.User, c.Database.Password),
		Host:   net.JoinHostPort(c.Database.Host, strconv.Itoa(c.dbPort(5432))),
		Path:   "/" + c.Database.Name,
	}
	sslmode := c.Database.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	u.RawQuery = url.Values{"sslmode": {sslmode}}.Encode()
	return u.String()
}

func (c *Config) dbPort(def int) int {
	if c.Database.Port > 0 {
		return c.Database.Port
	}
	return def
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return ":" + strconv.Itoa(c.Server.Port)
}

// Redacted returns a copy safe to log.
func (c *Config) Redacted() Config {
	out := *c
	mask := func(s string) string {
		if s == "" {
			return ""
		}
		return strings.Repeat("*", 8)
	}
	out.Database.Password = mask(out.Database.Password)
	out.Minio.SecretKey = mask(out.Minio.SecretKey)
	out.Inference.OpenAI.APIKey = mask(out.Inference.OpenAI.APIKey)
	return out
}
