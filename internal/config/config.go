// Package config loads sectionpdf settings from config.toml and SECTIONPDF_ environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/gompdf/sectionpdf/internal/geometry"
	"github.com/gompdf/sectionpdf/internal/pagination"
)

// Config holds all application configuration
type Config struct {
	App         AppConfig
	Log         LogConfig
	Page        PageConfig
	Header      HeaderConfig
	Render      RenderConfig
	Storage     StorageConfig
	S3          S3Config
	Entitlement EntitlementConfig
	Redis       RedisConfig
}

// AppConfig names the running instance
type AppConfig struct {
	Name string
	Env  string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string
	Format string
	Output string
}

// PageConfig holds page geometry in millimetres
type PageConfig struct {
	WidthMM        float64
	HeightMM       float64
	MarginMM       float64
	HeaderHeightMM float64
	FooterHeightMM float64
	SectionGapMM   float64
	RenderScale    float64
	// TailPolicy is "new-page" or "reuse"
	TailPolicy string
}

// HeaderConfig holds the texts of the header and footer bands
type HeaderConfig struct {
	Mark        string
	Destination string
	Brand       string
	AccentColor string
}

// RenderConfig controls section capture
type RenderConfig struct {
	// Mode is "lazy" or "eager"
	Mode        string
	Marker      string
	ContainerID string
	ChromeURL   string
	Timeout     time.Duration
	NoSandbox   bool
}

// StorageConfig selects where exports go
type StorageConfig struct {
	// Backend is "filesystem", "s3" or "none"
	Backend  string
	BasePath string
}

// S3Config holds S3-compatible storage settings
type S3Config struct {
	Endpoint          string
	Region            string
	Bucket            string
	AccessKey         string
	SecretKey         string
	UseSSL            bool
	UsePathStyle      bool
	Prefix            string
	PresignExpiration time.Duration
}

// EntitlementConfig selects the export gate
type EntitlementConfig struct {
	// Backend is "always", "deny", "memory" or "redis"
	Backend string
	// Default answers for subjects without a flag
	Default bool
	FlagTTL time.Duration
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Load reads configuration. An explicit file must exist; otherwise config.toml
// is looked up in ".", "./config" and "/etc/sectionpdf" and may be absent.
//
// Priority (highest to lowest):
// 1. Environment variables with SECTIONPDF_ prefix (e.g., SECTIONPDF_PAGE_MARGIN_MM)
// 2. the config file
// 3. Built-in defaults
func Load(file string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/sectionpdf")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	v.SetEnvPrefix("SECTIONPDF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		Page: PageConfig{
			WidthMM:        v.GetFloat64("page.width_mm"),
			HeightMM:       v.GetFloat64("page.height_mm"),
			MarginMM:       v.GetFloat64("page.margin_mm"),
			HeaderHeightMM: v.GetFloat64("page.header_height_mm"),
			FooterHeightMM: v.GetFloat64("page.footer_height_mm"),
			SectionGapMM:   v.GetFloat64("page.section_gap_mm"),
			RenderScale:    v.GetFloat64("page.render_scale"),
			TailPolicy:     v.GetString("page.tail_policy"),
		},
		Header: HeaderConfig{
			Mark:        v.GetString("header.mark"),
			Destination: v.GetString("header.destination"),
			Brand:       v.GetString("header.brand"),
			AccentColor: v.GetString("header.accent_color"),
		},
		Render: RenderConfig{
			Mode:        v.GetString("render.mode"),
			Marker:      v.GetString("render.marker"),
			ContainerID: v.GetString("render.container_id"),
			ChromeURL:   v.GetString("render.chrome_url"),
			Timeout:     v.GetDuration("render.timeout"),
			NoSandbox:   v.GetBool("render.no_sandbox"),
		},
		Storage: StorageConfig{
			Backend:  v.GetString("storage.backend"),
			BasePath: v.GetString("storage.base_path"),
		},
		S3: S3Config{
			Endpoint:          v.GetString("s3.endpoint"),
			Region:            v.GetString("s3.region"),
			Bucket:            v.GetString("s3.bucket"),
			AccessKey:         v.GetString("s3.access_key"),
			SecretKey:         v.GetString("s3.secret_key"),
			UseSSL:            v.GetBool("s3.use_ssl"),
			UsePathStyle:      v.GetBool("s3.use_path_style"),
			Prefix:            v.GetString("s3.prefix"),
			PresignExpiration: v.GetDuration("s3.presign_expiration"),
		},
		Entitlement: EntitlementConfig{
			Backend: v.GetString("entitlement.backend"),
			Default: v.GetBool("entitlement.default"),
			FlagTTL: v.GetDuration("entitlement.flag_ttl"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers numeric defaults, where zero can be a deliberate value
func setDefaults(v *viper.Viper) {
	page := geometry.DefaultPageConfig()
	v.SetDefault("page.width_mm", page.PageWidthMM)
	v.SetDefault("page.height_mm", page.PageHeightMM)
	v.SetDefault("page.margin_mm", page.MarginMM)
	v.SetDefault("page.header_height_mm", page.HeaderHeightMM)
	v.SetDefault("page.footer_height_mm", page.FooterHeightMM)
	v.SetDefault("page.section_gap_mm", page.SectionGapMM)
	v.SetDefault("page.render_scale", page.RenderScale)
	v.SetDefault("redis.port", 6379)
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "sectionpdf"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		if cfg.App.Env == "production" {
			cfg.Log.Format = "json"
		} else {
			cfg.Log.Format = "console"
		}
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stderr"
	}
	if cfg.Page.TailPolicy == "" {
		cfg.Page.TailPolicy = pagination.TailNewPage.String()
	}
	if cfg.Header.Brand == "" {
		cfg.Header.Brand = cfg.App.Name
	}
	if cfg.Render.Mode == "" {
		cfg.Render.Mode = "lazy"
	}
	if cfg.Render.Timeout == 0 {
		cfg.Render.Timeout = 30 * time.Second
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "filesystem"
	}
	if cfg.Storage.BasePath == "" {
		cfg.Storage.BasePath = "exports"
	}
	if cfg.S3.Region == "" {
		cfg.S3.Region = "us-east-1"
	}
	if cfg.S3.PresignExpiration == 0 {
		cfg.S3.PresignExpiration = 15 * time.Minute
	}
	if cfg.Entitlement.Backend == "" {
		cfg.Entitlement.Backend = "always"
	}
	if cfg.Entitlement.FlagTTL == 0 {
		cfg.Entitlement.FlagTTL = 24 * time.Hour
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
}

func (c *Config) validate() error {
	if err := c.PageConfig().Validate(); err != nil {
		return fmt.Errorf("page: %w", err)
	}
	if _, err := ParseTailPolicy(c.Page.TailPolicy); err != nil {
		return err
	}

	switch c.Render.Mode {
	case "lazy", "eager":
	default:
		return fmt.Errorf("render.mode must be lazy or eager, got %q", c.Render.Mode)
	}

	switch c.Storage.Backend {
	case "filesystem", "none":
	case "s3":
		if c.S3.Bucket == "" {
			return fmt.Errorf("s3.bucket is required for the s3 storage backend")
		}
		if c.S3.AccessKey == "" || c.S3.SecretKey == "" {
			return fmt.Errorf("s3.access_key and s3.secret_key are required for the s3 storage backend")
		}
	default:
		return fmt.Errorf("unknown storage.backend %q", c.Storage.Backend)
	}

	switch c.Entitlement.Backend {
	case "always", "deny", "memory":
	case "redis":
		if c.Redis.Port <= 0 {
			return fmt.Errorf("redis.port must be positive")
		}
	default:
		return fmt.Errorf("unknown entitlement.backend %q", c.Entitlement.Backend)
	}
	return nil
}

// PageConfig returns the page geometry
func (c *Config) PageConfig() geometry.PageConfig {
	return geometry.PageConfig{
		PageWidthMM:    c.Page.WidthMM,
		PageHeightMM:   c.Page.HeightMM,
		MarginMM:       c.Page.MarginMM,
		HeaderHeightMM: c.Page.HeaderHeightMM,
		FooterHeightMM: c.Page.FooterHeightMM,
		SectionGapMM:   c.Page.SectionGapMM,
		RenderScale:    c.Page.RenderScale,
	}
}

// TailPolicy returns the parsed tail policy
func (c *Config) TailPolicy() pagination.TailPolicy {
	p, _ := ParseTailPolicy(c.Page.TailPolicy)
	return p
}

// ParseTailPolicy accepts "new-page" and "reuse"
func ParseTailPolicy(s string) (pagination.TailPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", pagination.TailNewPage.String():
		return pagination.TailNewPage, nil
	case pagination.TailReuse.String():
		return pagination.TailReuse, nil
	}
	return pagination.TailNewPage, fmt.Errorf("page.tail_policy must be %q or %q, got %q",
		pagination.TailNewPage, pagination.TailReuse, s)
}
