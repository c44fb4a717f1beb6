package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// ConfigFileEnv は設定ファイルのパスを指定する環境変数名。
const ConfigFileEnv = "COUNTDOWN_CONFIG"

// Config はアプリケーション全体の設定を保持する。
// 起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Server
	ServerPort string `toml:"server_port"`
	BaseURL    string `toml:"base_url"`

	// Cookie
	CookieDomain string `toml:"cookie_domain"`
	CookieMaxAge int    `toml:"cookie_max_age"`
	CookieSecure bool   `toml:"-"`

	// CORS
	CORSAllowedOrigin string `toml:"cors_allowed_origin"`

	// Rate Limit（req/min/client）
	RateLimitGeneral int `toml:"rate_limit_general"`
	RateLimitShare   int `toml:"rate_limit_share"`

	// Logging
	LogLevel string `toml:"log_level"`
}

// Default は既定値のConfigを返す。
func Default() Config {
	return Config{
		ServerPort:        "8080",
		BaseURL:           "http://localhost:8080",
		CookieMaxAge:      31536000,
		CORSAllowedOrigin: "http://localhost:5173",
		RateLimitGeneral:  120,
		RateLimitShare:    30,
		LogLevel:          "info",
	}
}

// Load は設定を読み込む。
// COUNTDOWN_CONFIGでTOMLファイルが指定された場合はその値を既定値とし、
// 環境変数が設定されていればそちらを優先する。
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv(ConfigFileEnv); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	cfg.ServerPort = getEnvString("SERVER_PORT", cfg.ServerPort)
	cfg.BaseURL = strings.TrimRight(getEnvString("BASE_URL", cfg.BaseURL), "/")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", cfg.CookieDomain)
	cfg.CookieMaxAge = getEnvInt("COOKIE_MAX_AGE", cfg.CookieMaxAge)
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", cfg.CORSAllowedOrigin)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", cfg.RateLimitGeneral)
	cfg.RateLimitShare = getEnvInt("RATE_LIMIT_SHARE", cfg.RateLimitShare)
	cfg.LogLevel = strings.ToLower(getEnvString("LOG_LEVEL", cfg.LogLevel))
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate は設定値の整合性を検証する。
func (c *Config) Validate() error {
	var invalid []string

	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		invalid = append(invalid, "BASE_URL")
	}
	if c.ServerPort == "" {
		invalid = append(invalid, "SERVER_PORT")
	}
	if c.CookieMaxAge <= 0 {
		invalid = append(invalid, "COOKIE_MAX_AGE")
	}
	if c.RateLimitGeneral <= 0 {
		invalid = append(invalid, "RATE_LIMIT_GENERAL")
	}
	if c.RateLimitShare <= 0 {
		invalid = append(invalid, "RATE_LIMIT_SHARE")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		invalid = append(invalid, "LOG_LEVEL")
	}

	if len(invalid) > 0 {
		return fmt.Errorf("invalid configuration values: %v", invalid)
	}
	return nil
}

// loadFile はTOMLファイルの値をcfgに上書きする。未知のキーはエラーとする。
func loadFile(path string, cfg *Config) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("unknown keys in config file %s: %v", path, undecoded)
	}
	return nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}
